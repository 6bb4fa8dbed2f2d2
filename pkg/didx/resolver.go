package didx

import (
	"context"
	"crypto"
	"errors"
	"fmt"
)

// Resolver turns a DID into its document.
type Resolver interface {
	Resolve(ctx context.Context, d DID) (*Document, error)
}

// Invalidator is implemented by resolvers that keep documents around.
type Invalidator interface {
	Invalidate(d DID)
}

// Registry dispatches to a Resolver per DID method.
type Registry struct {
	methods map[string]Resolver
}

// NewRegistry returns a registry with did:key and the given did:web method.
// A nil web method leaves did:web unsupported.
func NewRegistry(web *WebMethod) *Registry {
	r := &Registry{methods: map[string]Resolver{}}
	r.Register("key", KeyMethod{})
	if web != nil {
		r.Register("web", web)
	}
	return r
}

// Register adds or replaces the resolver for method.
func (r *Registry) Register(method string, res Resolver) {
	r.methods[method] = res
}

func (r *Registry) Resolve(ctx context.Context, d DID) (*Document, error) {
	res, ok := r.methods[d.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, d.Method)
	}
	return res.Resolve(ctx, d)
}

// KeyResolver resolves verification keys from DIDs and DID URLs.
type KeyResolver struct {
	docs Resolver
}

func NewKeyResolver(docs Resolver) *KeyResolver {
	return &KeyResolver{docs: docs}
}

// ResolvePublicKey resolves identifier, a DID or a DID URL, to a public key.
// A DID URL selects the verification method named by its fragment; a bare
// DID selects the document's signing method. Every failure wraps either
// ErrNotFound or ErrUnavailable.
func (r *KeyResolver) ResolvePublicKey(ctx context.Context, identifier string) (crypto.PublicKey, error) {
	u, err := ParseURL(identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	doc, err := r.docs.Resolve(ctx, u.DID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		// Unsupported methods and other permanent problems: nothing to find.
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var (
		vm VerificationMethod
		ok bool
	)
	if u.Fragment != "" {
		vm, ok = doc.Method("#" + u.Fragment)
	} else {
		vm, ok = doc.SigningMethod()
	}
	if !ok {
		return nil, fmt.Errorf("%w: no verification method for %s", ErrNotFound, u)
	}

	pub, err := vm.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, vm.ID, err)
	}
	return pub, nil
}

// RefreshPublicKey drops any cached document for identifier's DID and
// resolves the key again, picking up a rotation before the cache entry
// expires. refreshed is false, and nothing is resolved, when there is no
// cache underneath or the DID method cannot rotate keys (did:key).
func (r *KeyResolver) RefreshPublicKey(ctx context.Context, identifier string) (pub crypto.PublicKey, refreshed bool, err error) {
	inv, ok := r.docs.(Invalidator)
	if !ok {
		return nil, false, nil
	}
	u, err := ParseURL(identifier)
	if err != nil || u.DID.Method == "key" {
		return nil, false, nil
	}

	inv.Invalidate(u.DID)
	pub, err = r.ResolvePublicKey(ctx, identifier)
	return pub, true, err
}
