package controllers

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/ydethe/quizzy/internal/http/errors"
	mw "github.com/ydethe/quizzy/internal/http/middlewares"
	"github.com/ydethe/quizzy/internal/observability/logger"
	"github.com/ydethe/quizzy/internal/oidc"
	tokens "github.com/ydethe/quizzy/internal/security/token"
)

const (
	loginCookieName = "quizzy_login"
	loginCookieTTL  = 10 * time.Minute
)

// LoginClient es la parte del cliente OIDC que usa el login (oidc.Client).
type LoginClient interface {
	AuthCodeURL(ctx context.Context, state, nonce string) (string, error)
	Exchange(ctx context.Context, code string) (*oidc.TokenResponse, error)
}

type NonceVerifier interface {
	VerifyNonce(ctx context.Context, raw, nonce string) (*oidc.IdentityClaims, error)
}

// CookieSealer cifra y firma valores de cookie (cookie.Purpose).
type CookieSealer interface {
	Seal(value string) (string, error)
	Unseal(value string) (string, error)
}

type AuthController struct {
	Client   LoginClient
	Verifier NonceVerifier
	// Logins sella state+nonce; Sessions el id_token. Deben tener propósitos distintos.
	Logins   CookieSealer
	Sessions CookieSealer
	Secure   bool
	// AfterLogin es el destino tras el callback. Default /admin/me.
	AfterLogin string
	Now        func() time.Time
}

func (c *AuthController) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *AuthController) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login GET /auth/login: guarda state+nonce en una cookie sellada y redirige al proveedor.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	sealed, target, err := c.begin(r.Context())
	if err != nil {
		logger.From(r.Context()).Error("login redirect failed", logger.Err(err))
		errors.WriteError(w, errors.ErrBadGateway.WithCause(err))
		return
	}
	http.SetCookie(w, c.cookie(loginCookieName, sealed, "/auth", int(loginCookieTTL.Seconds())))
	http.Redirect(w, r, target, http.StatusFound)
}

func (c *AuthController) begin(ctx context.Context) (sealed, target string, err error) {
	state, err := tokens.Opaque(24)
	if err != nil {
		return "", "", err
	}
	nonce, err := tokens.Opaque(24)
	if err != nil {
		return "", "", err
	}
	if sealed, err = c.Logins.Seal(state + " " + nonce); err != nil {
		return "", "", err
	}
	if target, err = c.Client.AuthCodeURL(ctx, state, nonce); err != nil {
		return "", "", err
	}
	return sealed, target, nil
}

// Callback GET /auth/callback: valida state, canjea el code, verifica el
// id_token con el nonce y abre la sesión.
func (c *AuthController) Callback(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context())
	http.SetCookie(w, c.cookie(loginCookieName, "", "/auth", -1))

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		log.Info("login refused by provider", logger.Reason(e))
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	lc, err := r.Cookie(loginCookieName)
	if err != nil {
		errors.WriteError(w, errors.ErrUnauthorized.WithDetail("login expirado"))
		return
	}
	plain, err := c.Logins.Unseal(lc.Value)
	if err != nil {
		log.Debug("login cookie rejected", logger.Err(err))
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	state, nonce, _ := strings.Cut(plain, " ")
	got := q.Get("state")
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(state)) != 1 {
		log.Info("login rejected", logger.Reason("state_mismatch"))
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	code := q.Get("code")
	if code == "" {
		errors.WriteError(w, errors.ErrMissingFields.WithDetail("code"))
		return
	}

	tr, err := c.Client.Exchange(r.Context(), code)
	if err != nil {
		log.Warn("code exchange failed", logger.Err(err))
		errors.WriteError(w, errors.ErrBadGateway.WithCause(err))
		return
	}
	claims, err := c.Verifier.VerifyNonce(r.Context(), tr.IDToken, nonce)
	if err != nil {
		var ve *oidc.VerificationError
		if stderrors.As(err, &ve) && ve.Transient() {
			errors.WriteError(w, errors.ErrServiceUnavailable)
			return
		}
		log.Info("id_token rejected", logger.Reason(oidc.Reason(err)))
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	sealed, err := c.Sessions.Seal(tr.IDToken)
	if err != nil {
		errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
		return
	}
	maxAge := int(claims.ExpiresAt.Sub(c.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, c.cookie(mw.SessionCookieName, sealed, "/", maxAge))
	log.Info("admin login", logger.Subject(claims.Subject), logger.Email(claims.Email))

	dest := c.AfterLogin
	if dest == "" {
		dest = "/admin/me"
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

// Logout POST /auth/logout
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, c.cookie(mw.SessionCookieName, "", "/", -1))
	w.WriteHeader(http.StatusNoContent)
}
