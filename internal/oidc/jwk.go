package oidc

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// DiscoveryDocument es el subconjunto de openid-configuration que usamos.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`
	JWKSURI               string `json:"jwks_uri"`
}

func parseDiscovery(b []byte) (*DiscoveryDocument, error) {
	var d DiscoveryDocument
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("oidc: discovery: %w", err)
	}
	if d.Issuer == "" || d.JWKSURI == "" {
		return nil, errors.New("oidc: discovery: issuer and jwks_uri are required")
	}
	return &d, nil
}

// Key es una clave pública del JWKS. Inmutable.
type Key struct {
	ID        string
	Algorithm string
	Public    *rsa.PublicKey
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jsonWebKeySet struct {
	Keys []jsonWebKey `json:"keys"`
}

const minRSABits = 2048

var supportedAlgs = map[string]bool{"RS256": true, "RS384": true, "RS512": true}

// parseKeySet indexa por kid las claves RSA de firma. Las que no sirven se omiten;
// un set sin ninguna clave utilizable es un error.
func parseKeySet(b []byte) (map[string]Key, error) {
	var set jsonWebKeySet
	if err := json.Unmarshal(b, &set); err != nil {
		return nil, fmt.Errorf("oidc: jwks: %w", err)
	}
	out := make(map[string]Key, len(set.Keys))
	for _, jk := range set.Keys {
		k, err := jk.toKey()
		if err != nil {
			continue
		}
		if _, dup := out[k.ID]; dup {
			continue
		}
		out[k.ID] = k
	}
	if len(out) == 0 {
		return nil, errors.New("oidc: jwks: no usable keys")
	}
	return out, nil
}

func (jk jsonWebKey) toKey() (Key, error) {
	if !strings.EqualFold(jk.Kty, "RSA") {
		return Key{}, fmt.Errorf("unsupported kty %q", jk.Kty)
	}
	if jk.Use != "" && jk.Use != "sig" {
		return Key{}, fmt.Errorf("unsupported use %q", jk.Use)
	}
	if jk.Kid == "" {
		return Key{}, errors.New("missing kid")
	}
	alg := jk.Alg
	if alg == "" {
		alg = "RS256"
	}
	if !supportedAlgs[alg] {
		return Key{}, fmt.Errorf("unsupported alg %q", alg)
	}
	nb, err := decodeB64URL(jk.N)
	if err != nil {
		return Key{}, fmt.Errorf("n: %w", err)
	}
	eb, err := decodeB64URL(jk.E)
	if err != nil {
		return Key{}, fmt.Errorf("e: %w", err)
	}
	n := new(big.Int).SetBytes(nb)
	if n.BitLen() < minRSABits {
		return Key{}, fmt.Errorf("modulus too small (%d bits)", n.BitLen())
	}
	e := new(big.Int).SetBytes(eb)
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return Key{}, errors.New("bad exponent")
	}
	return Key{
		ID:        jk.Kid,
		Algorithm: alg,
		Public:    &rsa.PublicKey{N: n, E: int(e.Int64())},
	}, nil
}

func decodeB64URL(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty")
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
