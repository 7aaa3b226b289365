package exam

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/ydethe/quizzy/internal/security/secretbox"
)

// Secrets son las dos claves del codec: una cifra el Examen, la otra firma el sobre.
type Secrets struct {
	Payload []byte // AES-128/192/256
	Signing []byte // HMAC-SHA256
}

var (
	errNoSigning  = errors.New("exam: signing secret is required")
	errSameSecret = errors.New("exam: payload and signing secrets must differ")
)

// Validate exige ambas claves y que sean distintas.
func (s Secrets) Validate() error {
	switch len(s.Payload) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("exam: payload secret: %w", secretbox.ErrInvalidKey)
	}
	if len(s.Signing) == 0 {
		return errNoSigning
	}
	if hmac.Equal(s.Payload, s.Signing) {
		return errSameSecret
	}
	return nil
}

// DeriveSecrets obtiene las dos claves a partir de un único secreto maestro (HKDF-SHA256).
func DeriveSecrets(master []byte) (Secrets, error) {
	if len(master) < 16 {
		return Secrets{}, errors.New("exam: master secret must be at least 16 bytes")
	}
	payload, err := expand(master, "quizzy exam payload v1")
	if err != nil {
		return Secrets{}, err
	}
	signing, err := expand(master, "quizzy exam signing v1")
	if err != nil {
		return Secrets{}, err
	}
	return Secrets{Payload: payload, Signing: signing}, nil
}

func expand(master []byte, info string) ([]byte, error) {
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("exam: hkdf: %w", err)
	}
	return out, nil
}
