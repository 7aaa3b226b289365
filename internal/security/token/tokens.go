// Package tokens genera valores aleatorios opacos (state/nonce OIDC, secretos)
// y huellas SHA-256 estables (hash de definiciones de quiz).
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Opaque genera nBytes aleatorios y los devuelve en base64url sin padding.
func Opaque(nBytes int) (string, error) {
	b, err := Random(nBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Random devuelve nBytes de crypto/rand.
func Random(nBytes int) ([]byte, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Fingerprint devuelve sha256(b) en hexadecimal.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
