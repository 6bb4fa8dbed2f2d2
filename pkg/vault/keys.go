package vault

import (
	"context"
	"crypto"
	"fmt"

	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
)

// KeyResolver resolves private signing keys stored as PEM under an alias.
// Nothing is cached: every call reads the vault, so a rotated key takes
// effect on the next signing operation.
type KeyResolver struct {
	vault Vault
}

func NewKeyResolver(v Vault) *KeyResolver {
	return &KeyResolver{vault: v}
}

// ResolvePrivateKey returns the key stored under alias. A missing alias
// wraps ErrNotFound; a stored secret that is not a usable key is reported
// the same way since there is no key to sign with either way.
func (r *KeyResolver) ResolvePrivateKey(ctx context.Context, alias string) (crypto.PrivateKey, error) {
	pemKey, err := r.vault.Get(ctx, alias)
	if err != nil {
		return nil, err
	}

	key, err := jwtx.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a private key: %v", ErrNotFound, alias, err)
	}
	return key, nil
}
