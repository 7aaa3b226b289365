package cookie

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ydethe/quizzy/internal/security/secretbox"
)

func mustSigner(t *testing.T, secret string) *Signer {
	t.Helper()
	s, err := NewSigner([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestSealUnseal_RoundTrip(t *testing.T) {
	s := mustSigner(t, "cookie-secret")
	for _, v := range []string{"", "eyJhbGciOiJSUzI1NiJ9.payload.sig", "ñandú ✓"} {
		sealed := s.Seal(v)
		assert.NotContains(t, sealed, "=")
		got, err := s.Unseal(sealed)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestUnseal_WrongSecret(t *testing.T) {
	sealed := mustSigner(t, "secret-A").Seal("access-token")
	_, err := mustSigner(t, "secret-B").Unseal(sealed)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestUnseal_Truncated(t *testing.T) {
	s := mustSigner(t, "cookie-secret")
	sealed := s.Seal("access-token")
	for n := 0; n < len(sealed); n++ {
		_, err := s.Unseal(sealed[:n])
		assert.ErrorIs(t, err, ErrInvalidSignature, "prefix len %d", n)
	}
}

func TestUnseal_SingleBitFlip(t *testing.T) {
	s := mustSigner(t, "cookie-secret")
	sealed := s.Seal("access-token")
	for i := 0; i < len(sealed); i++ {
		b := []byte(sealed)
		b[i] ^= 0x01
		_, err := s.Unseal(string(b))
		assert.ErrorIs(t, err, ErrInvalidSignature, "flip at %d", i)
	}
}

func TestUnseal_SwappedPayload(t *testing.T) {
	s := mustSigner(t, "cookie-secret")
	a := s.Seal("alice")
	b := s.Seal("bob")
	forged := a[:strings.LastIndex(a, ".")] + b[strings.LastIndex(b, "."):]
	_, err := s.Unseal(forged)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestNewSigner_EmptySecret(t *testing.T) {
	_, err := NewSigner(nil)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestCodec_EncryptThenSign(t *testing.T) {
	box, err := secretbox.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	c := NewCodec(mustSigner(t, "cookie-secret"), box)

	sealed, err := c.Seal("raw-access-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "raw-access-token")

	got, err := c.Unseal(sealed)
	require.NoError(t, err)
	assert.Equal(t, "raw-access-token", got)

	// firma válida sobre algo que no es un ciphertext
	plain := mustSigner(t, "cookie-secret").Seal("not-a-ciphertext")
	_, err = c.Unseal(plain)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPurpose_NotInterchangeable(t *testing.T) {
	box, err := secretbox.New([]byte("0123456789abcdef"))
	require.NoError(t, err)
	c := NewCodec(mustSigner(t, "cookie-secret"), box)
	login, session := c.For("login"), c.For("session")

	sealed, err := login.Seal("state nonce")
	require.NoError(t, err)
	got, err := login.Unseal(sealed)
	require.NoError(t, err)
	assert.Equal(t, "state nonce", got)

	_, err = session.Unseal(sealed)
	assert.ErrorIs(t, err, ErrWrongPurpose)

	// sin propósito tampoco abre como sesión
	plain, err := c.Seal("eyJhbGciOiJSUzI1NiJ9.payload.sig")
	require.NoError(t, err)
	_, err = session.Unseal(plain)
	assert.ErrorIs(t, err, ErrWrongPurpose)
}
