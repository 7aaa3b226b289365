package oidc

import (
	"errors"
)

// Motivos de rechazo. Se comparan con errors.Is contra el *VerificationError devuelto.
var (
	ErrMalformedToken    = errors.New("oidc: malformed token")
	ErrUnknownKey        = errors.New("oidc: unknown key id")
	ErrAlgorithmMismatch = errors.New("oidc: algorithm does not match key")
	ErrBadSignature      = errors.New("oidc: bad signature")
	ErrAudienceMismatch  = errors.New("oidc: audience mismatch")
	ErrIssuerMismatch    = errors.New("oidc: issuer mismatch")
	ErrExpired           = errors.New("oidc: token expired")
	ErrInvalidClaim      = errors.New("oidc: invalid claim")
	ErrNonceMismatch     = errors.New("oidc: nonce mismatch")
	ErrKeySetUnavailable = errors.New("oidc: key set unavailable")
)

// ErrKeyNotFound lo devuelve KeySet.Key cuando el kid no existe tras un refresh.
var ErrKeyNotFound = errors.New("oidc: key not found")

// VerificationError clasifica un rechazo (Kind) y conserva la causa para logs.
// Nunca debe llegar tal cual a un cliente no confiable.
type VerificationError struct {
	Kind  error
	Cause error
}

func (e *VerificationError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *VerificationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Transient indica si reintentar con el mismo token puede tener sentido
// (red caída o timeout, no un token inválido).
func (e *VerificationError) Transient() bool {
	return e.Kind == ErrKeySetUnavailable
}

func reject(kind, cause error) *VerificationError {
	return &VerificationError{Kind: kind, Cause: cause}
}

var reasons = []struct {
	err   error
	label string
}{
	{ErrMalformedToken, "malformed"},
	{ErrUnknownKey, "unknown_key"},
	{ErrAlgorithmMismatch, "algorithm_mismatch"},
	{ErrBadSignature, "bad_signature"},
	{ErrAudienceMismatch, "audience_mismatch"},
	{ErrIssuerMismatch, "issuer_mismatch"},
	{ErrExpired, "expired"},
	{ErrInvalidClaim, "invalid_claim"},
	{ErrNonceMismatch, "nonce_mismatch"},
	{ErrKeySetUnavailable, "keyset_unavailable"},
}

// Reason devuelve una etiqueta estable (logs, métricas) para un resultado de Verify.
func Reason(err error) string {
	if err == nil {
		return "ok"
	}
	var ve *VerificationError
	if errors.As(err, &ve) {
		for _, r := range reasons {
			if ve.Kind == r.err {
				return r.label
			}
		}
	}
	return "error"
}
