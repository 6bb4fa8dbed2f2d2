// Package vault stores secrets by alias and resolves signing keys from them.
package vault

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"sync"
)

var (
	ErrNotFound     = errors.New("vault: secret not found")
	ErrInvalidAlias = errors.New("vault: invalid alias")
)

// Vault is a secret store keyed by alias.
type Vault interface {
	Get(ctx context.Context, alias string) ([]byte, error)
	Put(ctx context.Context, alias string, secret []byte) error
	Delete(ctx context.Context, alias string) error
}

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateAlias rejects aliases that could escape a directory or collide
// with sealed file names.
func ValidateAlias(alias string) error {
	if !aliasPattern.MatchString(alias) {
		return fmt.Errorf("%w: %q", ErrInvalidAlias, alias)
	}
	return nil
}

// Memory is an in-process vault for tests and single-node development.
type Memory struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{secrets: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, alias string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.secrets[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, alias)
	}
	return slices.Clone(s), nil
}

func (m *Memory) Put(_ context.Context, alias string, secret []byte) error {
	if err := ValidateAlias(alias); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[alias] = slices.Clone(secret)
	return nil
}

func (m *Memory) Delete(_ context.Context, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, alias)
	return nil
}

// Aliases lists stored aliases in sorted order.
func (m *Memory) Aliases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.secrets))
}
