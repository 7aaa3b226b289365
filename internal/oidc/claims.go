package oidc

import (
	"encoding/json"
	"strconv"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// IdentityClaims es el resultado de una verificación exitosa. Sólo Verifier
// lo construye y sólo después de que pasaron todos los validadores.
type IdentityClaims struct {
	Issuer          string
	Subject         string
	Audience        []string
	ExpiresAt       time.Time
	IssuedAt        time.Time // cero si el token no trae iat
	AuthTime        time.Time // cero si el token no trae auth_time
	Nonce           string
	SessionID       string
	Email           string
	EmailVerified   bool
	AuthorizedParty string
	KeyID           string

	Name       string
	GivenName  string
	FamilyName string
	Picture    string
}

// idTokenClaims es la forma cruda del payload, sólo para decodificar.
type idTokenClaims struct {
	jwtv5.RegisteredClaims
	AuthTime        *jwtv5.NumericDate `json:"auth_time,omitempty"`
	Nonce           string             `json:"nonce,omitempty"`
	SessionID       string             `json:"sid,omitempty"`
	Email           string             `json:"email,omitempty"`
	EmailVerified   flexBool           `json:"email_verified,omitempty"`
	AuthorizedParty string             `json:"azp,omitempty"`
	Name            string             `json:"name,omitempty"`
	GivenName       string             `json:"given_name,omitempty"`
	FamilyName      string             `json:"family_name,omitempty"`
	Picture         string             `json:"picture,omitempty"`
}

// flexBool acepta true/false y "true"/"false" (algunos IdP mandan string).
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}

func (c *idTokenClaims) identity(kid string) *IdentityClaims {
	out := &IdentityClaims{
		Issuer:          c.Issuer,
		Subject:         c.Subject,
		Audience:        append([]string(nil), c.Audience...),
		Nonce:           c.Nonce,
		SessionID:       c.SessionID,
		Email:           c.Email,
		EmailVerified:   bool(c.EmailVerified),
		AuthorizedParty: c.AuthorizedParty,
		KeyID:           kid,
		Name:            c.Name,
		GivenName:       c.GivenName,
		FamilyName:      c.FamilyName,
		Picture:         c.Picture,
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.AuthTime != nil {
		out.AuthTime = c.AuthTime.Time
	}
	return out
}
