// Package exam emite y canjea links de examen autocontenidos.
//
// Un token es un JWT HS256 (firmado con Secrets.Signing) cuyas claims son
//
//	{"token_creation_date": "<RFC3339>", "exam_data": "<secretbox(json(Examen))>"}
//
// donde exam_data está cifrado con Secrets.Payload. No hay estado en servidor.
// El token no expira por sí mismo: quien necesite expiración valida IssuedAt
// con CheckAge.
package exam

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ydethe/quizzy/internal/observability/logger"
	"github.com/ydethe/quizzy/internal/security/secretbox"
)

var (
	// ErrInvalidToken es el único error visible de Redeem/Open, sea cual sea el paso que falló.
	ErrInvalidToken = errors.New("exam: invalid token")
	// ErrTokenTooOld lo devuelve CheckAge.
	ErrTokenTooOld = errors.New("exam: token too old")
	// ErrInvalidExamen se devuelve al emitir un Examen sin quiz.
	ErrInvalidExamen = errors.New("exam: quiz id is required")
)

// Examen identifica a quién se le asigna qué quiz. Inmutable una vez emitido.
// Los nombres JSON son los de los links ya distribuidos.
type Examen struct {
	QuizID    string `json:"quizz"`
	Email     string `json:"email"`
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
}

// Envelope es el contenido verificado de un token.
type Envelope struct {
	Examen   Examen
	IssuedAt time.Time
}

type envelopeClaims struct {
	TokenCreationDate string `json:"token_creation_date"`
	ExamData          string `json:"exam_data"`
	jwtv5.RegisteredClaims
}

// Codec emite y canjea tokens. Seguro para uso concurrente.
type Codec struct {
	box     *secretbox.Box
	signing []byte
	now     func() time.Time
	parser  *jwtv5.Parser
	log     *zap.Logger
}

// Option configura un Codec.
type Option func(*Codec)

// WithClock reemplaza time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithLogger reemplaza el logger del paquete.
func WithLogger(l *zap.Logger) Option {
	return func(c *Codec) { c.log = l }
}

// NewCodec valida los secretos y construye el codec.
func NewCodec(s Secrets, opts ...Option) (*Codec, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	box, err := secretbox.New(s.Payload)
	if err != nil {
		return nil, fmt.Errorf("exam: payload secret: %w", err)
	}
	c := &Codec{
		box:     box,
		signing: append([]byte(nil), s.Signing...),
		now:     time.Now,
		parser: jwtv5.NewParser(
			jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
			jwtv5.WithStrictDecoding(),
			jwtv5.WithoutClaimsValidation(),
		),
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = logger.Named("exam")
	}
	return c, nil
}

// Issue serializa, cifra y firma el Examen.
func (c *Codec) Issue(e Examen) (string, error) {
	if strings.TrimSpace(e.QuizID) == "" {
		return "", ErrInvalidExamen
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("exam: marshal: %w", err)
	}
	data, err := c.box.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("exam: encrypt: %w", err)
	}
	claims := envelopeClaims{
		TokenCreationDate: c.now().UTC().Format(time.RFC3339Nano),
		ExamData:          data,
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.signing)
	if err != nil {
		return "", fmt.Errorf("exam: sign: %w", err)
	}
	return signed, nil
}

// Redeem devuelve el Examen de un token válido.
func (c *Codec) Redeem(token string) (Examen, error) {
	env, err := c.Open(token)
	if err != nil {
		return Examen{}, err
	}
	return env.Examen, nil
}

// Open verifica la firma primero, luego descifra y deserializa.
// Cualquier fallo es ErrInvalidToken; el paso concreto sólo se loguea.
func (c *Codec) Open(token string) (Envelope, error) {
	var claims envelopeClaims
	_, err := c.parser.ParseWithClaims(token, &claims, func(*jwtv5.Token) (any, error) {
		return c.signing, nil
	})
	if err != nil {
		return Envelope{}, c.reject("signature", err)
	}

	issuedAt, err := parseCreationDate(claims.TokenCreationDate)
	if err != nil {
		return Envelope{}, c.reject("issued_at", err)
	}

	plain, err := c.box.Decrypt(claims.ExamData)
	if err != nil {
		return Envelope{}, c.reject("payload", err)
	}

	var e Examen
	dec := json.NewDecoder(bytes.NewReader(plain))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return Envelope{}, c.reject("examen", err)
	}
	if strings.TrimSpace(e.QuizID) == "" {
		return Envelope{}, c.reject("examen", ErrInvalidExamen)
	}
	return Envelope{Examen: e, IssuedAt: issuedAt}, nil
}

func (c *Codec) reject(step string, cause error) error {
	c.log.Debug("exam token rejected", logger.Reason(step), logger.Err(cause))
	return ErrInvalidToken
}

// CheckAge aplica una política de expiración sobre IssuedAt. maxAge <= 0 desactiva el chequeo.
func CheckAge(env Envelope, maxAge time.Duration, now time.Time) error {
	if maxAge <= 0 {
		return nil
	}
	if now.Sub(env.IssuedAt) > maxAge {
		return ErrTokenTooOld
	}
	return nil
}

// creationLayouts acepta RFC3339 y el isoformat() sin zona de los links antiguos (UTC asumido).
var creationLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseCreationDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range creationLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
