package app

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/tokenrefresh/pkg/cryptox"
	"github.com/aussiebroadwan/tokenrefresh/pkg/didx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/vault"
)

// KeyInfo identifies a signing key to verifiers.
type KeyInfo struct {
	Alias string
	DID   string // did:key of the public key
	KeyID string // DID URL of the verification method
}

// OpenVault returns the configured vault.
//
// Vault modes:
//   - VAULT_DIR set: sealed files on disk. The master key comes from
//     VAULT_MASTER_KEY_PATH; in dev a missing path falls back to a random
//     key, which makes the vault unreadable after a restart.
//   - VAULT_DIR empty (dev only): in-memory vault, seeded with a freshly
//     generated EdDSA signing key so the service starts without setup.
func OpenVault(ctx context.Context, cfg Config, logger *slog.Logger) (vault.Vault, error) {
	if cfg.VaultDir == "" {
		if !cfg.IsDev() {
			return nil, errors.New("in-memory vault is only allowed in dev")
		}

		v := vault.NewMemory()
		pemKey, err := cryptox.GenerateKey(cryptox.AlgEdDSA)
		if err != nil {
			return nil, fmt.Errorf("generate dev signing key: %w", err)
		}
		if err := v.Put(ctx, cfg.SigningKeyAlias, pemKey); err != nil {
			return nil, fmt.Errorf("store dev signing key: %w", err)
		}

		logger.Warn("using in-memory vault with a generated signing key; tokens will not survive a restart",
			"alias", cfg.SigningKeyAlias,
		)
		return v, nil
	}

	sealer, ephemeral, err := cryptox.LoadSealer(cfg.VaultMasterKeyPath)
	if err != nil {
		return nil, err
	}
	if ephemeral {
		if !cfg.IsDev() {
			return nil, errors.New("vault master key path is required outside dev")
		}
		logger.Warn("vault master key is ephemeral; sealed keys written now are lost on restart")
	}

	v, err := vault.NewFile(cfg.VaultDir, sealer)
	if err != nil {
		return nil, err
	}
	logger.Info("file vault opened", "dir", cfg.VaultDir)
	return v, nil
}

// DescribeSigningKey resolves the signing key and derives its did:key
// identity. The private key is dropped before returning.
func DescribeSigningKey(ctx context.Context, v vault.Vault, alias string) (KeyInfo, error) {
	key, err := vault.NewKeyResolver(v).ResolvePrivateKey(ctx, alias)
	if err != nil {
		return KeyInfo{}, fmt.Errorf("resolve signing key %q: %w", alias, err)
	}
	return keyInfo(alias, key)
}

// keyInfo fails for key types did:key cannot express (RSA); such keys need
// a did:web PARTICIPANT_DID.
func keyInfo(alias string, key crypto.PrivateKey) (KeyInfo, error) {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return KeyInfo{}, fmt.Errorf("signing key %q has no public half", alias)
	}

	did, err := didx.KeyDID(signer.Public())
	if err != nil {
		return KeyInfo{}, fmt.Errorf("derive did:key for %q: %w", alias, err)
	}

	return KeyInfo{
		Alias: alias,
		DID:   did.String(),
		KeyID: did.String() + "#" + did.ID,
	}, nil
}

// GenerateSigningKey creates a key for alg, seals it into the configured
// vault under the signing alias and reports its identity. An existing key is
// only replaced when overwrite is set. Without a PARTICIPANT_DID the key
// must be expressible as did:key.
func GenerateSigningKey(ctx context.Context, cfg Config, alg string, overwrite bool, logger *slog.Logger) (KeyInfo, error) {
	if cfg.VaultDir == "" {
		return KeyInfo{}, errors.New("VAULT_DIR is required to store a generated key")
	}

	v, err := OpenVault(ctx, cfg, logger)
	if err != nil {
		return KeyInfo{}, err
	}

	if !overwrite {
		_, err := v.Get(ctx, cfg.SigningKeyAlias)
		switch {
		case err == nil:
			return KeyInfo{}, fmt.Errorf("alias %q already holds a key", cfg.SigningKeyAlias)
		case !errors.Is(err, vault.ErrNotFound):
			return KeyInfo{}, err
		}
	}

	pemKey, err := cryptox.GenerateKey(alg)
	if err != nil {
		return KeyInfo{}, err
	}
	key, err := jwtx.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return KeyInfo{}, err
	}

	info, err := keyInfo(cfg.SigningKeyAlias, key)
	if err != nil {
		if cfg.ParticipantDID == "" {
			return KeyInfo{}, err
		}
		info = KeyInfo{Alias: cfg.SigningKeyAlias, DID: cfg.ParticipantDID, KeyID: cfg.PublicKeyID}
	}

	if err := v.Put(ctx, cfg.SigningKeyAlias, pemKey); err != nil {
		return KeyInfo{}, err
	}

	logger.Info("signing key generated", "alias", info.Alias, "did", info.DID, "algorithm", alg)
	return info, nil
}
