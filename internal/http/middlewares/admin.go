package middlewares

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/ydethe/quizzy/internal/http/errors"
	"github.com/ydethe/quizzy/internal/observability/logger"
	"github.com/ydethe/quizzy/internal/oidc"
)

// SessionCookieName guarda el id_token sellado (cifrado + firmado).
const SessionCookieName = "quizzy_session"

// SessionOpener abre la cookie de sesión (cookie.Codec).
type SessionOpener interface {
	Unseal(value string) (string, error)
}

// IdentityVerifier verifica un id_token contra el key set vigente (oidc.Verifier).
type IdentityVerifier interface {
	Verify(ctx context.Context, raw string) (*oidc.IdentityClaims, error)
}

type AdminConfig struct {
	Sessions SessionOpener
	Verifier IdentityVerifier
	// Admins: emails permitidos. Vacío = cualquier identidad verificada.
	Admins []string
}

// RequireAdmin abre la cookie, re-verifica el id_token en cada request y deja
// las claims en el contexto. Cualquier rechazo es el mismo 401; el motivo sólo
// va al log. Si el key set no está disponible responde 503.
func RequireAdmin(cfg AdminConfig) Middleware {
	admins := make(map[string]struct{}, len(cfg.Admins))
	for _, a := range cfg.Admins {
		admins[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.From(r.Context())

			c, err := r.Cookie(SessionCookieName)
			if err != nil || c.Value == "" {
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			raw, err := cfg.Sessions.Unseal(c.Value)
			if err != nil {
				log.Debug("admin session rejected", logger.Reason("cookie"), logger.Err(err))
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			claims, err := cfg.Verifier.Verify(r.Context(), raw)
			if err != nil {
				var ve *oidc.VerificationError
				if stderrors.As(err, &ve) && ve.Transient() {
					log.Warn("identity provider unavailable", logger.Err(err))
					errors.WriteError(w, errors.ErrServiceUnavailable)
					return
				}
				log.Info("admin session rejected", logger.Reason(oidc.Reason(err)))
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			if len(admins) > 0 {
				_, ok := admins[strings.ToLower(claims.Email)]
				if !ok || !claims.EmailVerified {
					log.Warn("admin access denied", logger.Subject(claims.Subject), logger.Email(claims.Email))
					errors.WriteError(w, errors.ErrForbidden)
					return
				}
			}
			ctx := logger.ToContext(WithIdentity(r.Context(), claims), log.With(logger.Subject(claims.Subject)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
