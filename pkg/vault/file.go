package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/tokenrefresh/pkg/cryptox"
)

const sealedExt = ".sealed"

// File keeps each secret in its own AES-GCM sealed file under dir. The alias
// is bound into the ciphertext, so renaming a file does not move a secret
// to another alias.
type File struct {
	dir    string
	sealer *cryptox.Sealer
}

// NewFile opens (creating if needed) a file vault rooted at dir.
func NewFile(dir string, sealer *cryptox.Sealer) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("vault: create dir: %w", err)
	}
	return &File{dir: dir, sealer: sealer}, nil
}

func (f *File) path(alias string) string {
	return filepath.Join(f.dir, alias+sealedExt)
}

func (f *File) Get(_ context.Context, alias string) ([]byte, error) {
	if err := ValidateAlias(alias); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	sealed, err := os.ReadFile(f.path(alias))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, alias)
	}
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", alias, err)
	}

	secret, err := f.sealer.Open(sealed, []byte(alias))
	if err != nil {
		return nil, fmt.Errorf("vault: open %s: %w", alias, err)
	}
	return secret, nil
}

// Put writes the sealed secret to a temp file and renames it into place so
// readers never see a partial write.
func (f *File) Put(_ context.Context, alias string, secret []byte) error {
	if err := ValidateAlias(alias); err != nil {
		return err
	}

	sealed, err := f.sealer.Seal(secret, []byte(alias))
	if err != nil {
		return fmt.Errorf("vault: seal %s: %w", alias, err)
	}

	tmp, err := os.CreateTemp(f.dir, alias+".*.tmp")
	if err != nil {
		return fmt.Errorf("vault: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: write %s: %w", alias, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close %s: %w", alias, err)
	}
	if err := os.Rename(tmp.Name(), f.path(alias)); err != nil {
		return fmt.Errorf("vault: rename %s: %w", alias, err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, alias string) error {
	if err := ValidateAlias(alias); err != nil {
		return err
	}
	err := os.Remove(f.path(alias))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("vault: delete %s: %w", alias, err)
	}
	return nil
}
