package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ydethe/quizzy/internal/security/secretbox"
)

type Config struct {
	App struct {
		// dev | prod
		Env           string `yaml:"env"`
		LogLevel      string `yaml:"log_level"`
		PublicBaseURL string `yaml:"public_base_url"` // base de los links de examen
	} `yaml:"app"`

	Server struct {
		Addr          string `yaml:"addr"`
		ReadTimeout   string `yaml:"read_timeout"`
		WriteTimeout  string `yaml:"write_timeout"`
		SecureCookies bool   `yaml:"secure_cookies"`
		// TrustedProxies: IPs o CIDRs de los proxies cuyo X-Forwarded-For se acepta.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	// Secretos: base64 (32 bytes), hex (64) o texto crudo.
	Secrets struct {
		AES    string `yaml:"aes_secret"`
		JWT    string `yaml:"jwt_secret"`
		Cookie string `yaml:"cookie_secret"`
		// Master, si está, deriva AES y JWT cuando faltan.
		Master string `yaml:"master_secret"`
	} `yaml:"secrets"`

	OIDC struct {
		ConfigURL          string   `yaml:"config_url"`
		ClientID           string   `yaml:"client_id"`
		ClientSecret       string   `yaml:"client_secret"`
		RedirectURI        string   `yaml:"redirect_uri"`
		Scopes             []string `yaml:"scopes"`
		Leeway             string   `yaml:"leeway"`
		MinRefreshInterval string   `yaml:"min_refresh_interval"`
		// Admins limita el acceso admin a estos emails. Vacío = cualquier identidad verificada.
		Admins []string `yaml:"admins"`
	} `yaml:"oidc"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres | sqlite
		DSN      string `yaml:"dsn"`
		Postgres struct {
			User            string `yaml:"user"`
			Password        string `yaml:"password"`
			Host            string `yaml:"host"`
			DB              string `yaml:"db"`
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		AutoMigrate bool `yaml:"auto_migrate"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		QuizTTL string `yaml:"quiz_ttl"`
	} `yaml:"cache"`

	Rate struct {
		Enabled bool   `yaml:"enabled"`
		Limit   int    `yaml:"limit"`
		Window  string `yaml:"window"`
	} `yaml:"rate"`

	Quizzes struct {
		Dir   string `yaml:"dir"`
		Watch bool   `yaml:"watch"`
	} `yaml:"quizzes"`

	Exam struct {
		// MaxAge: 0 = los links no vencen.
		MaxAge string `yaml:"max_age"`
	} `yaml:"exam"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		From               string `yaml:"from"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		TLSMode            string `yaml:"tls_mode"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`
}

// Load lee path (YAML), aplica defaults y luego el entorno (.env incluido).
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	c.finish()
	return &c, nil
}

// LoadEnv arma la configuración sólo desde el entorno.
func LoadEnv() *Config {
	var c Config
	c.finish()
	return &c
}

// LoadDotEnv carga un .env sin pisar variables ya definidas. Ausente no es error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("config %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) finish() {
	c.applyEnvOverrides()
	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.App.PublicBaseURL == "" {
		c.App.PublicBaseURL = "http://localhost" + c.Server.Addr
	}
	if len(c.OIDC.Scopes) == 0 {
		c.OIDC.Scopes = []string{"openid", "email", "profile"}
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
		if c.Storage.DSN != "" || c.Storage.Postgres.Host != "" {
			c.Storage.Driver = "postgres"
		}
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" && c.Storage.Postgres.Host != "" {
		c.Storage.DSN = c.postgresDSN()
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "quizzy:"
	}
	if c.Cache.QuizTTL == "" {
		c.Cache.QuizTTL = "5m"
	}
	if c.Rate.Limit == 0 {
		c.Rate.Limit = 60
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Quizzes.Dir == "" {
		c.Quizzes.Dir = "quizzes"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLSMode == "" {
		c.SMTP.TLSMode = "auto"
	}
}

// postgresDSN arma la URL a partir de POSTGRES_USER/PASSWORD/HOST/DB.
func (c *Config) postgresDSN() string {
	p := c.Storage.Postgres
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   p.Host,
		Path:   "/" + p.DB,
	}
	if p.Password == "" {
		u.User = url.User(p.User)
	}
	return u.String()
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

func setStr(dst *string, key string) {
	if v, ok := getEnvStr(key); ok {
		*dst = v
	}
}

// applyEnvOverrides pisa el YAML con el entorno. Los nombres de secretos,
// OIDC y Postgres son los de los despliegues existentes.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	setStr(&c.App.LogLevel, "LOG_LEVEL")
	setStr(&c.App.PublicBaseURL, "PUBLIC_BASE_URL")

	setStr(&c.Server.Addr, "SERVER_ADDR")
	if v, ok := getEnvBool("SECURE_COOKIES"); ok {
		c.Server.SecureCookies = v
	}
	if v, ok := getEnvCSV("TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}

	setStr(&c.Secrets.AES, "AES_SECRET")
	setStr(&c.Secrets.JWT, "JWT_SECRET")
	setStr(&c.Secrets.Cookie, "COOKIE_SECRET")
	setStr(&c.Secrets.Master, "MASTER_SECRET")

	setStr(&c.OIDC.ConfigURL, "OPENID_CONFIG_URL")
	setStr(&c.OIDC.ClientID, "CLIENT_ID")
	setStr(&c.OIDC.ClientSecret, "CLIENT_SECRET")
	setStr(&c.OIDC.RedirectURI, "REDIRECT_URI")
	setStr(&c.OIDC.Leeway, "OIDC_LEEWAY")
	if v, ok := getEnvCSV("ADMIN_EMAILS"); ok {
		c.OIDC.Admins = v
	}

	setStr(&c.Storage.Driver, "STORAGE_DRIVER")
	setStr(&c.Storage.DSN, "STORAGE_DSN")
	setStr(&c.Storage.Postgres.User, "POSTGRES_USER")
	setStr(&c.Storage.Postgres.Password, "POSTGRES_PASSWORD")
	setStr(&c.Storage.Postgres.Host, "POSTGRES_HOST")
	setStr(&c.Storage.Postgres.DB, "POSTGRES_DB")
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvBool("STORAGE_AUTO_MIGRATE"); ok {
		c.Storage.AutoMigrate = v
	}

	setStr(&c.Cache.Kind, "CACHE_KIND")
	setStr(&c.Cache.Redis.Addr, "REDIS_ADDR")
	setStr(&c.Cache.Redis.Password, "REDIS_PASSWORD")
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LIMIT"); ok {
		c.Rate.Limit = v
	}
	setStr(&c.Rate.Window, "RATE_WINDOW")

	setStr(&c.Quizzes.Dir, "QUIZZES_DIR")
	if v, ok := getEnvBool("QUIZZES_WATCH"); ok {
		c.Quizzes.Watch = v
	}
	setStr(&c.Exam.MaxAge, "EXAM_MAX_AGE")

	setStr(&c.SMTP.Host, "SMTP_HOST")
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	setStr(&c.SMTP.From, "SMTP_FROM")
	setStr(&c.SMTP.Username, "SMTP_USERNAME")
	setStr(&c.SMTP.Password, "SMTP_PASSWORD")
	setStr(&c.SMTP.TLSMode, "SMTP_TLS_MODE")
}

// Duration parsea un campo de duración; vacío = 0.
func Duration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// OIDCEnabled indica si el flujo de login admin está configurado.
func (c *Config) OIDCEnabled() bool {
	return c.OIDC.ConfigURL != "" && c.OIDC.ClientID != ""
}

// Validate junta todos los problemas de configuración en un solo error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, a ...any) { errs = append(errs, fmt.Errorf(format, a...)) }

	if c.Secrets.Master == "" {
		if _, err := secretbox.ParseKey(c.Secrets.AES); err != nil {
			add("AES_SECRET: %w", err)
		}
		if strings.TrimSpace(c.Secrets.JWT) == "" {
			add("JWT_SECRET is required")
		}
	} else if len(c.Secrets.Master) < 16 {
		add("MASTER_SECRET must be at least 16 bytes")
	}
	if c.OIDCEnabled() {
		if _, err := secretbox.ParseKey(c.Secrets.Cookie); err != nil {
			add("COOKIE_SECRET: %w", err)
		}
		if c.OIDC.ClientSecret == "" {
			add("CLIENT_SECRET is required when OIDC is enabled")
		}
		if c.OIDC.RedirectURI == "" {
			add("REDIRECT_URI is required when OIDC is enabled")
		}
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Storage.DSN == "" {
			add("STORAGE_DSN is required for driver %q", c.Storage.Driver)
		}
	default:
		add("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			add("REDIS_ADDR is required for cache kind redis")
		}
	default:
		add("unknown cache kind %q", c.Cache.Kind)
	}
	for name, v := range map[string]string{
		"server.read_timeout":                c.Server.ReadTimeout,
		"server.write_timeout":               c.Server.WriteTimeout,
		"oidc.leeway":                        c.OIDC.Leeway,
		"oidc.min_refresh_interval":          c.OIDC.MinRefreshInterval,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
		"cache.quiz_ttl":                     c.Cache.QuizTTL,
		"rate.window":                        c.Rate.Window,
		"exam.max_age":                       c.Exam.MaxAge,
	} {
		if _, err := Duration(v); err != nil {
			add("%s: %w", name, err)
		}
	}
	if _, err := c.TrustedProxies(); err != nil {
		add("TRUSTED_PROXIES: %w", err)
	}
	if _, err := url.Parse(c.App.PublicBaseURL); err != nil {
		add("PUBLIC_BASE_URL: %w", err)
	}
	return errors.Join(errs...)
}

// TrustedProxies parsea server.trusted_proxies; una IP suelta vale como /32 o /128.
func (c *Config) TrustedProxies() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, v := range c.Server.TrustedProxies {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(v)
		if err != nil {
			return nil, err
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}
