package logger

import (
	"strings"

	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// ---- Dominio ----

// QuizID identifica la definición de quiz (nombre del archivo YAML).
func QuizID(v string) zap.Field { return zap.String("quiz_id", v) }

// KeyID es el kid del JWKS usado (o buscado) para verificar una firma.
func KeyID(v string) zap.Field { return zap.String("kid", v) }

func Issuer(v string) zap.Field  { return zap.String("issuer", v) }
func Subject(v string) zap.Field { return zap.String("sub", v) }

// Email crea un campo email enmascarado (a…@e….org).
func Email(v string) zap.Field { return zap.String("email", MaskEmail(v)) }

// MaskEmail deja la primera letra del usuario y del dominio, y el TLD.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	user, dom, ok := strings.Cut(s, "@")
	if !ok || user == "" {
		switch {
		case s == "":
			return ""
		case len(s) <= 3:
			return "***"
		}
		return s[:1] + "…" + s[len(s)-1:]
	}
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	host, rest, _ := strings.Cut(dom, ".")
	if len(host) > 1 {
		host = host[:1] + "…"
	}
	if rest != "" {
		host += "." + rest
	}
	return user + "@" + host
}

// Reason es la razón interna de un rechazo. Nunca se devuelve al cliente.
func Reason(v string) zap.Field { return zap.String("reason", v) }

func Score(v int) zap.Field { return zap.Int("score", v) }

// ---- Sistema ----

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }
func URL(v string) zap.Field       { return zap.String("url", v) }

func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
