// Package router arma el árbol de rutas (chi) con sus middlewares.
package router

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/ydethe/quizzy/internal/http/controllers"
	"github.com/ydethe/quizzy/internal/http/errors"
	mw "github.com/ydethe/quizzy/internal/http/middlewares"
	"github.com/ydethe/quizzy/internal/rate"
)

type Deps struct {
	Exam   *controllers.ExamController
	Health *controllers.HealthController
	// Auth y Admin son nil cuando OIDC no está configurado.
	Auth  *controllers.AuthController
	Admin *controllers.AdminController
	// AdminAuth es RequireAdmin ya configurado.
	AdminAuth mw.Middleware

	// RateLimiter nil = sin límite.
	RateLimiter rate.Limiter
	Metrics     http.Handler
	// TrustedProxies: peers cuyo X-Forwarded-For se acepta. Vacío = sólo RemoteAddr.
	TrustedProxies []netip.Prefix
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithClientIP(d.TrustedProxies),
		mw.WithLogging(),
		mw.WithMetrics(),
		mw.WithSecurityHeaders(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrMethodNotAllowed)
	})

	if d.Health != nil {
		r.Get("/healthz", d.Health.Health)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/exam/{token}", func(r chi.Router) {
		r.Use(mw.WithNoStore(), mw.WithRateLimit(mw.RateLimitConfig{
			Limiter: d.RateLimiter,
			KeyFunc: mw.IPRateKey("exam"),
		}))
		r.Get("/", d.Exam.Welcome)
		r.Get("/questions/{page}", d.Exam.Question)
		r.Post("/answers", d.Exam.Toggle)
		r.Post("/submit", d.Exam.Submit)
	})

	if d.Auth != nil {
		r.Route("/auth", func(r chi.Router) {
			r.Use(mw.WithNoStore(), mw.WithRateLimit(mw.RateLimitConfig{
				Limiter: d.RateLimiter,
				KeyFunc: mw.IPRateKey("auth"),
			}))
			r.Get("/login", d.Auth.Login)
			r.Get("/callback", d.Auth.Callback)
			r.Post("/logout", d.Auth.Logout)
		})
	}
	if d.Admin != nil && d.AdminAuth != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.WithNoStore(), d.AdminAuth)
			r.Post("/exams", d.Admin.Issue)
			r.Get("/me", d.Admin.Me)
			r.Get("/results/{quiz}", d.Admin.Results)
		})
	}
	return r
}
