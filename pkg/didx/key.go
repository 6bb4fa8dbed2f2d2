package didx

import (
	"context"
	"crypto/ecdsa"
	"fmt"
)

// KeyMethod resolves did:key identifiers locally. The document it returns
// has a single verification method "<did>#<multibase>" that is also the
// assertion method.
type KeyMethod struct{}

func (KeyMethod) Resolve(_ context.Context, d DID) (*Document, error) {
	if d.Method != "key" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, d.Method)
	}

	pub, err := DecodeMultibaseKey(d.ID)
	if err != nil {
		// The identifier is the key: a bad key means there is nothing to find.
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, d, err)
	}

	vmType := "Ed25519VerificationKey2020"
	if _, ok := pub.(*ecdsa.PublicKey); ok {
		vmType = "Multikey"
	}

	vmID := d.String() + "#" + d.ID
	return &Document{
		Context: []string{"https://www.w3.org/ns/did/v1"},
		ID:      d.String(),
		VerificationMethod: []VerificationMethod{{
			ID:                 vmID,
			Type:               vmType,
			Controller:         d.String(),
			PublicKeyMultibase: d.ID,
		}},
		AssertionMethod: []VerificationRef{{Ref: vmID}},
		Authentication:  []VerificationRef{{Ref: vmID}},
	}, nil
}
