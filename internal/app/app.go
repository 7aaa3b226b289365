// Package app arma el servicio a partir de la configuración: store, cache,
// quizzes, codecs, OIDC, SMTP y el router HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ydethe/quizzy/internal/cache"
	"github.com/ydethe/quizzy/internal/config"
	"github.com/ydethe/quizzy/internal/email"
	"github.com/ydethe/quizzy/internal/exam"
	"github.com/ydethe/quizzy/internal/http/controllers"
	mw "github.com/ydethe/quizzy/internal/http/middlewares"
	"github.com/ydethe/quizzy/internal/http/router"
	"github.com/ydethe/quizzy/internal/http/server"
	"github.com/ydethe/quizzy/internal/metrics"
	"github.com/ydethe/quizzy/internal/observability/logger"
	"github.com/ydethe/quizzy/internal/oidc"
	"github.com/ydethe/quizzy/internal/quiz"
	"github.com/ydethe/quizzy/internal/rate"
	"github.com/ydethe/quizzy/internal/security/cookie"
	"github.com/ydethe/quizzy/internal/security/secretbox"
	"github.com/ydethe/quizzy/internal/store"
	"github.com/ydethe/quizzy/internal/store/core"
)

type App struct {
	Config  *config.Config
	Handler http.Handler
	Codec   *exam.Codec
	Quizzes *quiz.CachedSource
	Store   core.Repository
	Cache   cache.Client
	Mailer  email.Sender // nil si SMTP no está configurado

	closers []func() error
}

// ExamSecrets arma las claves del codec: AES_SECRET + JWT_SECRET, o
// derivadas de MASTER_SECRET.
func ExamSecrets(cfg *config.Config) (exam.Secrets, error) {
	if cfg.Secrets.Master != "" {
		return exam.DeriveSecrets([]byte(cfg.Secrets.Master))
	}
	payload, err := secretbox.ParseKey(cfg.Secrets.AES)
	if err != nil {
		return exam.Secrets{}, fmt.Errorf("AES_SECRET: %w", err)
	}
	s := exam.Secrets{Payload: payload, Signing: []byte(cfg.Secrets.JWT)}
	return s, s.Validate()
}

// NewCodec construye el codec de examen de la configuración (también lo usa el CLI).
func NewCodec(cfg *config.Config) (*exam.Codec, error) {
	s, err := ExamSecrets(cfg)
	if err != nil {
		return nil, err
	}
	return exam.NewCodec(s, exam.WithLogger(logger.Named("exam")))
}

// NewMailer devuelve nil si no hay SMTP configurado.
func NewMailer(cfg *config.Config) email.Sender {
	sc := email.SMTPConfig{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		From:               cfg.SMTP.From,
		Username:           cfg.SMTP.Username,
		Password:           cfg.SMTP.Password,
		TLSMode:            cfg.SMTP.TLSMode,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
	}
	if !sc.Enabled() {
		return nil
	}
	return email.NewSMTPSender(sc)
}

// StoreConfig traduce la sección storage.
func StoreConfig(cfg *config.Config) (store.Config, error) {
	sc := store.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN, AutoMigrate: cfg.Storage.AutoMigrate}
	sc.Postgres.MaxConns = int32(cfg.Storage.Postgres.MaxConns)
	sc.Postgres.MinConns = int32(cfg.Storage.Postgres.MinConns)
	lt, err := config.Duration(cfg.Storage.Postgres.ConnMaxLifetime)
	if err != nil {
		return sc, err
	}
	sc.Postgres.ConnMaxLifetime = lt
	return sc, nil
}

// ServerConfig traduce la sección server.
func ServerConfig(cfg *config.Config) (server.Config, error) {
	d, err := durations(cfg)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     d["read"],
		WriteTimeout:    d["write"],
		ShutdownTimeout: 15 * time.Second,
	}, nil
}

func durations(cfg *config.Config) (map[string]time.Duration, error) {
	out := map[string]time.Duration{}
	for k, v := range map[string]string{
		"read":        cfg.Server.ReadTimeout,
		"write":       cfg.Server.WriteTimeout,
		"leeway":      cfg.OIDC.Leeway,
		"min_refresh": cfg.OIDC.MinRefreshInterval,
		"quiz_ttl":    cfg.Cache.QuizTTL,
		"rate_window": cfg.Rate.Window,
		"exam_max":    cfg.Exam.MaxAge,
	} {
		d, err := config.Duration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = d
	}
	return out, nil
}

// Build valida la configuración y conecta todas las dependencias.
// Si falla a mitad de camino cierra lo que ya abrió.
func Build(ctx context.Context, cfg *config.Config) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := durations(cfg)
	if err != nil {
		return nil, err
	}
	proxies, err := cfg.TrustedProxies()
	if err != nil {
		return nil, err
	}
	log := logger.Named("app")
	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}

	sc, err := StoreConfig(cfg)
	if err != nil {
		return nil, err
	}
	if a.Store, err = store.Open(ctx, sc); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	cc := cache.Config{Driver: cfg.Cache.Kind, Prefix: cfg.Cache.Redis.Prefix}
	cc.Addr, cc.Password, cc.DB = cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB
	if a.Cache, err = cache.New(ctx, cc); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.closers = append(a.closers, a.Cache.Close)

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		if cfg.Cache.Kind == "redis" {
			client := rdb.NewClient(&rdb.Options{Addr: cc.Addr, Password: cc.Password, DB: cc.DB})
			a.closers = append(a.closers, client.Close)
			limiter = rate.NewRedisLimiter(client, cc.Prefix+"rl:", cfg.Rate.Limit, d["rate_window"])
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.Limit, d["rate_window"])
		}
	}

	a.Quizzes = quiz.NewCachedSource(quiz.NewDirSource(cfg.Quizzes.Dir), a.Cache, d["quiz_ttl"])
	if a.Codec, err = NewCodec(cfg); err != nil {
		return nil, err
	}
	a.Mailer = NewMailer(cfg)

	deps := router.Deps{
		Exam: &controllers.ExamController{
			Codec:   a.Codec,
			Quizzes: a.Quizzes,
			Store:   a.Store,
			MaxAge:  d["exam_max"],
		},
		Health: &controllers.HealthController{
			Checks: map[string]controllers.Pinger{"store": a.Store, "cache": a.Cache},
		},
		RateLimiter:    limiter,
		Metrics:        promhttp.Handler(),
		TrustedProxies: proxies,
	}

	if cfg.OIDCEnabled() {
		if err := a.wireOIDC(cfg, d, &deps); err != nil {
			return nil, err
		}
	} else {
		log.Warn("OIDC not configured: admin routes disabled")
	}

	a.Handler = router.New(deps)
	log.Info("app ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("cache", cfg.Cache.Kind),
		zap.Bool("oidc", cfg.OIDCEnabled()),
		zap.Bool("smtp", a.Mailer != nil),
	)
	return a, nil
}

func (a *App) wireOIDC(cfg *config.Config, d map[string]time.Duration, deps *router.Deps) error {
	hc := &http.Client{Timeout: 10 * time.Second}
	keys := oidc.NewKeySet(cfg.OIDC.ConfigURL, oidc.NewHTTPFetcher(hc),
		oidc.WithMinRefreshInterval(d["min_refresh"]),
		oidc.WithFetchObserver(metrics.ObserveFetch),
		oidc.WithKeySetLogger(logger.Named("oidc")),
	)
	verifier := oidc.NewVerifier(keys, cfg.OIDC.ClientID,
		oidc.WithLeeway(d["leeway"]),
		oidc.WithResultObserver(metrics.ObserveVerification),
		oidc.WithVerifierLogger(logger.Named("oidc")),
	)
	client := oidc.NewClient(keys, cfg.OIDC.ClientID, cfg.OIDC.ClientSecret, cfg.OIDC.RedirectURI, cfg.OIDC.Scopes, hc)

	ck, err := secretbox.ParseKey(cfg.Secrets.Cookie)
	if err != nil {
		return fmt.Errorf("COOKIE_SECRET: %w", err)
	}
	signer, err := cookie.NewSigner(ck)
	if err != nil {
		return err
	}
	// la sesión se cifra con la misma clave AES que el payload de examen
	es, err := ExamSecrets(cfg)
	if err != nil {
		return err
	}
	box, err := secretbox.New(es.Payload)
	if err != nil {
		return err
	}
	codec := cookie.NewCodec(signer, box)
	sessions := codec.For("session")

	deps.Auth = &controllers.AuthController{
		Client:   client,
		Verifier: verifier,
		Logins:   codec.For("login"),
		Sessions: sessions,
		Secure:   cfg.Server.SecureCookies,
	}
	deps.Admin = &controllers.AdminController{
		Codec:   a.Codec,
		Quizzes: a.Quizzes,
		Store:   a.Store,
		Mailer:  a.Mailer,
		BaseURL: cfg.App.PublicBaseURL,
	}
	deps.AdminAuth = mw.RequireAdmin(mw.AdminConfig{
		Sessions: sessions,
		Verifier: verifier,
		Admins:   cfg.OIDC.Admins,
	})
	return nil
}

// WatchQuizzes invalida la cache de un quiz cuando su archivo cambia.
func (a *App) WatchQuizzes(ctx context.Context) error {
	log := logger.Named("app")
	return quiz.Watch(ctx, a.Config.Quizzes.Dir, func(name string) {
		if err := a.Quizzes.Invalidate(ctx, name); err != nil {
			log.Warn("quiz cache invalidation failed", logger.QuizID(name), logger.Err(err))
			return
		}
		log.Info("quiz reloaded", logger.QuizID(name))
	})
}

// Close libera en orden inverso lo abierto por Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
