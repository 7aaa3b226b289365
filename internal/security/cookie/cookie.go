// Package cookie firma valores opacos para guardarlos en una cookie del cliente.
//
// Formato: base64url(valor) "." base64url(HMAC-SHA256(secret, base64url(valor))).
// La firma da integridad, no confidencialidad; Codec agrega cifrado con secretbox
// cuando el valor es un access token de terceros.
package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/ydethe/quizzy/internal/security/secretbox"
)

// ErrInvalidSignature cubre firma distinta, valor truncado y formato inválido.
var ErrInvalidSignature = errors.New("cookie: invalid signature")

// ErrWrongPurpose: el valor es válido pero fue sellado para otro uso.
var ErrWrongPurpose = errors.New("cookie: wrong purpose")

// ErrEmptySecret se devuelve al construir un Signer sin secreto.
var ErrEmptySecret = errors.New("cookie: empty secret")

const sep = "."

var b64 = base64.RawURLEncoding.Strict()

// Signer firma y verifica valores con un secreto fijo.
type Signer struct {
	secret []byte
}

// NewSigner crea un Signer. El secreto se copia.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Signer{secret: s}, nil
}

// Seal devuelve el valor firmado, URL-safe.
func (s *Signer) Seal(value string) string {
	payload := b64.EncodeToString([]byte(value))
	return payload + sep + b64.EncodeToString(s.mac(payload))
}

// Unseal verifica la firma (comparación en tiempo constante) y devuelve el valor original.
func (s *Signer) Unseal(cookieValue string) (string, error) {
	i := strings.LastIndex(cookieValue, sep)
	if i < 0 {
		return "", ErrInvalidSignature
	}
	payload, sig := cookieValue[:i], cookieValue[i+1:]
	got, err := b64.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidSignature
	}
	if !hmac.Equal(got, s.mac(payload)) {
		return "", ErrInvalidSignature
	}
	raw, err := b64.DecodeString(payload)
	if err != nil {
		return "", ErrInvalidSignature
	}
	return string(raw), nil
}

func (s *Signer) mac(payload string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

// Codec cifra con secretbox y luego firma (encrypt-then-MAC).
// Con box nil se comporta como el Signer solo.
type Codec struct {
	signer *Signer
	box    *secretbox.Box
}

// NewCodec combina un Signer con un Box opcional.
func NewCodec(signer *Signer, box *secretbox.Box) *Codec {
	return &Codec{signer: signer, box: box}
}

// Seal cifra (si hay box) y firma.
func (c *Codec) Seal(value string) (string, error) {
	if c.box == nil {
		return c.signer.Seal(value), nil
	}
	ct, err := c.box.Encrypt([]byte(value))
	if err != nil {
		return "", err
	}
	return c.signer.Seal(ct), nil
}

// Unseal verifica la firma antes de tocar el cifrado. Un fallo de descifrado
// tras una firma válida también se reporta como ErrInvalidSignature.
func (c *Codec) Unseal(cookieValue string) (string, error) {
	v, err := c.signer.Unseal(cookieValue)
	if err != nil {
		return "", err
	}
	if c.box == nil {
		return v, nil
	}
	pt, err := c.box.Decrypt(v)
	if err != nil {
		return "", ErrInvalidSignature
	}
	return string(pt), nil
}

// Purpose liga los valores a un uso ("login", "session"): un valor sellado
// para un propósito no se abre con otro aunque las claves sean las mismas.
type Purpose struct {
	codec  *Codec
	prefix string
}

// For devuelve la vista del Codec para purpose.
func (c *Codec) For(purpose string) *Purpose {
	return &Purpose{codec: c, prefix: purpose + "|"}
}

func (p *Purpose) Seal(value string) (string, error) {
	return p.codec.Seal(p.prefix + value)
}

func (p *Purpose) Unseal(cookieValue string) (string, error) {
	v, err := p.codec.Unseal(cookieValue)
	if err != nil {
		return "", err
	}
	rest, ok := strings.CutPrefix(v, p.prefix)
	if !ok {
		return "", ErrWrongPurpose
	}
	return rest, nil
}
