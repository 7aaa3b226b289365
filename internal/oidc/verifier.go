package oidc

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ydethe/quizzy/internal/observability/logger"
)

// Verifier valida id_tokens emitidos por el proveedor del KeySet para un client_id.
// Seguro para uso concurrente.
type Verifier struct {
	keys     *KeySet
	audience string
	leeway   time.Duration
	now      func() time.Time
	log      *zap.Logger
	observe  func(result string)
}

type VerifierOption func(*Verifier)

// WithLeeway tolera desfase de reloj en exp/iat/auth_time. Por defecto 0.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.leeway = d }
}

func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

func WithVerifierLogger(l *zap.Logger) VerifierOption {
	return func(v *Verifier) { v.log = l }
}

// WithResultObserver recibe Reason(err) de cada verificación.
func WithResultObserver(fn func(result string)) VerifierOption {
	return func(v *Verifier) { v.observe = fn }
}

func NewVerifier(keys *KeySet, audience string, opts ...VerifierOption) *Verifier {
	v := &Verifier{keys: keys, audience: audience, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	if v.log == nil {
		v.log = logger.Named("oidc.verifier")
	}
	return v
}

// Verify valida header, firma, audiencia, issuer y expiración, en ese orden,
// y sólo entonces construye IdentityClaims. Todo rechazo es *VerificationError.
func (v *Verifier) Verify(ctx context.Context, raw string) (*IdentityClaims, error) {
	claims, err := v.verify(ctx, raw)
	v.done(err)
	return claims, err
}

// VerifyNonce es Verify más la comparación del nonce del flujo de login.
func (v *Verifier) VerifyNonce(ctx context.Context, raw, nonce string) (*IdentityClaims, error) {
	claims, err := v.verify(ctx, raw)
	if err == nil && (nonce == "" || subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1) {
		claims, err = nil, reject(ErrNonceMismatch, nil)
	}
	v.done(err)
	return claims, err
}

func (v *Verifier) done(err error) {
	reason := Reason(err)
	if err != nil {
		v.log.Debug("id_token rejected", logger.Reason(reason), logger.Err(err))
	}
	if v.observe != nil {
		v.observe(reason)
	}
}

func (v *Verifier) verify(ctx context.Context, raw string) (*IdentityClaims, error) {
	// 1. header sin verificar
	if strings.Count(raw, ".") != 2 {
		return nil, reject(ErrMalformedToken, errors.New("expected three segments"))
	}
	unverified, _, err := jwtv5.NewParser().ParseUnverified(raw, &idTokenClaims{})
	if err != nil {
		return nil, reject(ErrMalformedToken, err)
	}
	kid, _ := unverified.Header["kid"].(string)
	alg, _ := unverified.Header["alg"].(string)
	if kid == "" || alg == "" {
		return nil, reject(ErrMalformedToken, errors.New("header needs kid and alg"))
	}

	// 2. clave
	key, err := v.keys.Key(ctx, kid)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, reject(ErrUnknownKey, err)
		}
		return nil, reject(ErrKeySetUnavailable, err)
	}

	// 3. firma, con el algoritmo que declara la clave
	if alg != key.Algorithm {
		return nil, reject(ErrAlgorithmMismatch, fmt.Errorf("token %s, key %s", alg, key.Algorithm))
	}
	var claims idTokenClaims
	parser := jwtv5.NewParser(
		jwtv5.WithValidMethods([]string{key.Algorithm}),
		jwtv5.WithStrictDecoding(),
		jwtv5.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(raw, &claims, func(*jwtv5.Token) (any, error) {
		return key.Public, nil
	}); err != nil {
		if errors.Is(err, jwtv5.ErrTokenMalformed) {
			return nil, reject(ErrMalformedToken, err)
		}
		return nil, reject(ErrBadSignature, err)
	}

	// 4. audiencia e issuer
	if err := v.checkAudience(&claims); err != nil {
		return nil, err
	}
	disc, err := v.keys.Discovery(ctx)
	if err != nil {
		return nil, reject(ErrKeySetUnavailable, err)
	}
	if claims.Issuer != disc.Issuer {
		return nil, reject(ErrIssuerMismatch, fmt.Errorf("got %q", claims.Issuer))
	}

	// 5. expiración: now < exp estricto
	now := v.now()
	if claims.ExpiresAt == nil {
		return nil, reject(ErrMalformedToken, errors.New("missing exp"))
	}
	if !now.Before(claims.ExpiresAt.Time.Add(v.leeway)) {
		return nil, reject(ErrExpired, fmt.Errorf("exp %s", claims.ExpiresAt.Time.UTC().Format(time.RFC3339)))
	}

	if err := v.checkSemantics(&claims, now); err != nil {
		return nil, err
	}
	return claims.identity(kid), nil
}

// Con varias audiencias el token además tiene que estar emitido para nosotros (azp).
func (v *Verifier) checkAudience(c *idTokenClaims) error {
	aud := c.Audience
	switch {
	case len(aud) == 1 && aud[0] == v.audience:
		return nil
	case len(aud) > 1 && slices.Contains(aud, v.audience):
		if c.AuthorizedParty != v.audience {
			return reject(ErrAudienceMismatch, fmt.Errorf("azp %q", c.AuthorizedParty))
		}
		return nil
	default:
		return reject(ErrAudienceMismatch, fmt.Errorf("aud %v", []string(aud)))
	}
}

func (v *Verifier) checkSemantics(c *idTokenClaims, now time.Time) error {
	if strings.TrimSpace(c.Subject) == "" {
		return reject(ErrInvalidClaim, errors.New("empty sub"))
	}
	limit := now.Add(v.leeway)
	if c.IssuedAt != nil && c.IssuedAt.Time.After(limit) {
		return reject(ErrInvalidClaim, errors.New("iat in the future"))
	}
	if c.AuthTime != nil && c.AuthTime.Time.After(limit) {
		return reject(ErrInvalidClaim, errors.New("auth_time in the future"))
	}
	if c.NotBefore != nil && c.NotBefore.Time.After(limit) {
		return reject(ErrInvalidClaim, errors.New("nbf in the future"))
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return reject(ErrInvalidClaim, fmt.Errorf("email: %w", err))
		}
	}
	return nil
}
