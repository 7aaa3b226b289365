// Package secretbox cifra payloads opacos con AES-CBC.
//
// Formato de transporte: base64(IV(16 bytes) || ciphertext), padding PKCS#7.
// El IV se genera con crypto/rand en cada Encrypt. CBC no autentica: los
// llamadores que exponen el token (links de examen, cookies) lo envuelven en
// una firma HMAC y verifican la firma antes de llamar a Decrypt.
package secretbox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const ivSize = aes.BlockSize

// ErrDecryption cubre clave incorrecta, input truncado, base64 inválido y padding inconsistente.
var ErrDecryption = errors.New("secretbox: decryption failed")

// ErrInvalidKey se devuelve cuando la clave no mide 16, 24 o 32 bytes.
var ErrInvalidKey = errors.New("secretbox: key must be 16, 24 or 32 bytes")

// Box cifra y descifra con una clave fija. Es seguro para uso concurrente.
type Box struct {
	block cipher.Block
	rand  io.Reader
}

// New crea un Box para una clave AES-128/192/256.
func New(key []byte) (*Box, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	return &Box{block: block, rand: rand.Reader}, nil
}

// ParseKey interpreta un secreto de configuración: base64 (std o raw) o hex
// que decodifiquen a 32 bytes, o bien el texto crudo si mide 16, 24 o 32 bytes.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	if len(s) == 64 {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	switch len(s) {
	case 16, 24, 32:
		return []byte(s), nil
	}
	return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(s))
}

// Encrypt cifra plaintext con un IV fresco y devuelve base64(IV||ciphertext).
func (b *Box) Encrypt(plaintext []byte) (string, error) {
	padded := pad(plaintext)
	out := make([]byte, ivSize+len(padded))
	iv := out[:ivSize]
	if _, err := io.ReadFull(b.rand, iv); err != nil {
		return "", fmt.Errorf("iv random: %w", err)
	}
	cipher.NewCBCEncrypter(b.block, iv).CryptBlocks(out[ivSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt revierte Encrypt. Cualquier inconsistencia devuelve ErrDecryption.
func (b *Box) Decrypt(token string) ([]byte, error) {
	raw, err := base64.StdEncoding.Strict().DecodeString(token)
	if err != nil {
		return nil, ErrDecryption
	}
	if len(raw) < ivSize+aes.BlockSize || (len(raw)-ivSize)%aes.BlockSize != 0 {
		return nil, ErrDecryption
	}
	iv := raw[:ivSize]
	ct := raw[ivSize:]
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(b.block, iv).CryptBlocks(pt, ct)
	return unpad(pt)
}

func pad(p []byte) []byte {
	n := aes.BlockSize - len(p)%aes.BlockSize
	out := make([]byte, len(p), len(p)+n)
	copy(out, p)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad exige PKCS#7 exacto: 1..16 bytes, todos iguales al largo.
func unpad(p []byte) ([]byte, error) {
	if len(p) == 0 || len(p)%aes.BlockSize != 0 {
		return nil, ErrDecryption
	}
	n := int(p[len(p)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, ErrDecryption
	}
	for _, c := range p[len(p)-n:] {
		if int(c) != n {
			return nil, ErrDecryption
		}
	}
	return p[:len(p)-n], nil
}
