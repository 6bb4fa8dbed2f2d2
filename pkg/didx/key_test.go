package didx_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/aussiebroadwan/tokenrefresh/pkg/didx"
	"github.com/stretchr/testify/require"
)

func TestMultibaseRoundTrip(t *testing.T) {
	edPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	t.Run("ed25519", func(t *testing.T) {
		mb, err := didx.EncodeMultibaseKey(edPub)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(mb, "z6Mk"), mb)

		back, err := didx.DecodeMultibaseKey(mb)
		require.NoError(t, err)
		require.True(t, edPub.Equal(back))
	})

	t.Run("p256", func(t *testing.T) {
		mb, err := didx.EncodeMultibaseKey(&ecKey.PublicKey)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(mb, "zDn"), mb)

		back, err := didx.DecodeMultibaseKey(mb)
		require.NoError(t, err)
		require.True(t, ecKey.PublicKey.Equal(back))
	})
}

func TestDecodeMultibaseKey_Rejects(t *testing.T) {
	for _, bad := range []string{
		"",
		"z",
		"m6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK", // base64 multibase
		"z0OIl",       // not base58
		"z2J9gaYxrKV", // unknown codec
	} {
		_, err := didx.DecodeMultibaseKey(bad)
		require.Error(t, err, bad)
	}
}

func TestKeyMethod(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	d, err := didx.KeyDID(pub)
	require.NoError(t, err)

	doc, err := didx.KeyMethod{}.Resolve(context.Background(), d)
	require.NoError(t, err)
	require.Equal(t, d.String(), doc.ID)

	vm, ok := doc.SigningMethod()
	require.True(t, ok)
	require.Equal(t, d.String()+"#"+d.ID, vm.ID)

	got, err := vm.PublicKey()
	require.NoError(t, err)
	require.True(t, pub.Equal(got))

	t.Run("wrong method", func(t *testing.T) {
		_, err := didx.KeyMethod{}.Resolve(context.Background(), didx.DID{Method: "web", ID: "x"})
		require.ErrorIs(t, err, didx.ErrUnsupportedMethod)
	})

	t.Run("garbage key", func(t *testing.T) {
		_, err := didx.KeyMethod{}.Resolve(context.Background(), didx.DID{Method: "key", ID: "zzz"})
		require.ErrorIs(t, err, didx.ErrNotFound)
	})
}
