package didx

import (
	"bytes"
	"crypto"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
)

// Document is the subset of a DID document needed to find signing keys.
type Document struct {
	Context            any                  `json:"@context,omitempty"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod,omitempty"`
	AssertionMethod    []VerificationRef    `json:"assertionMethod,omitempty"`
	Authentication     []VerificationRef    `json:"authentication,omitempty"`
}

// VerificationMethod publishes one key, either as a JWK or multibase.
type VerificationMethod struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	Controller         string    `json:"controller"`
	PublicKeyJwk       *jwtx.JWK `json:"publicKeyJwk,omitempty"`
	PublicKeyMultibase string    `json:"publicKeyMultibase,omitempty"`
}

// PublicKey decodes the key material.
func (vm VerificationMethod) PublicKey() (crypto.PublicKey, error) {
	switch {
	case vm.PublicKeyJwk != nil:
		return vm.PublicKeyJwk.PublicKey()
	case vm.PublicKeyMultibase != "":
		return DecodeMultibaseKey(vm.PublicKeyMultibase)
	default:
		return nil, fmt.Errorf("didx: verification method %s has no key material", vm.ID)
	}
}

// VerificationRef is an entry of a verification relationship: either a
// reference to a method by id or an embedded method.
type VerificationRef struct {
	Ref      string
	Embedded *VerificationMethod
}

func (r *VerificationRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Ref)
	}
	var vm VerificationMethod
	if err := json.Unmarshal(data, &vm); err != nil {
		return err
	}
	r.Embedded = &vm
	return nil
}

func (r VerificationRef) MarshalJSON() ([]byte, error) {
	if r.Embedded != nil {
		return json.Marshal(r.Embedded)
	}
	return json.Marshal(r.Ref)
}

// Method finds a verification method by fragment or absolute id. Embedded
// methods in assertionMethod and authentication are searched as well.
func (d *Document) Method(idOrFragment string) (VerificationMethod, bool) {
	want := d.absolute(idOrFragment)

	for _, vm := range d.VerificationMethod {
		if d.absolute(vm.ID) == want {
			return vm, true
		}
	}
	for _, refs := range [][]VerificationRef{d.AssertionMethod, d.Authentication} {
		for _, ref := range refs {
			if ref.Embedded != nil && d.absolute(ref.Embedded.ID) == want {
				return *ref.Embedded, true
			}
		}
	}
	return VerificationMethod{}, false
}

// SigningMethod picks the key a token issuer signs with when the token does
// not name one: the first assertionMethod, else the first verification
// method.
func (d *Document) SigningMethod() (VerificationMethod, bool) {
	if len(d.AssertionMethod) > 0 {
		ref := d.AssertionMethod[0]
		if ref.Embedded != nil {
			return *ref.Embedded, true
		}
		if vm, ok := d.Method(ref.Ref); ok {
			return vm, true
		}
	}
	if len(d.VerificationMethod) > 0 {
		return d.VerificationMethod[0], true
	}
	return VerificationMethod{}, false
}

// absolute expands "#key-1" and "key-1" to "<doc id>#key-1".
func (d *Document) absolute(id string) string {
	switch {
	case strings.HasPrefix(id, "#"):
		return d.ID + id
	case strings.HasPrefix(id, "did:"):
		return id
	default:
		return d.ID + "#" + id
	}
}
