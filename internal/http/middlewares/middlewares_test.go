package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ydethe/quizzy/internal/oidc"
	"github.com/ydethe/quizzy/internal/rate"
)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(okHandler), mk("a"), mk("b"), mk("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "bad id\nwith newline")
	h.ServeHTTP(rec, req)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestWithRecover(t *testing.T) {
	h := WithRecover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
}

func TestRedactPath(t *testing.T) {
	assert.Equal(t, "/exam/:token", redactPath("/exam/abc.def.ghi"))
	assert.Equal(t, "/exam/:token/questions/2", redactPath("/exam/abc.def.ghi/questions/2"))
	assert.Equal(t, "/exam/", redactPath("/exam/"))
	assert.Equal(t, "/admin/me", redactPath("/admin/me"))
}

func TestHeaders(t *testing.T) {
	h := Chain(http.HandlerFunc(okHandler), WithSecurityHeaders(), WithNoStore())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestClientIP(t *testing.T) {
	resolve := func(trusted []netip.Prefix, remote string, xff ...string) string {
		var got string
		h := WithClientIP(trusted)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = ClientIP(r)
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		for _, v := range xff {
			req.Header.Add("X-Forwarded-For", v)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		return got
	}

	t.Run("sin middleware usa el peer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		assert.Equal(t, "10.0.0.1", ClientIP(req))
	})

	t.Run("sin proxies confiables ignora XFF", func(t *testing.T) {
		assert.Equal(t, "198.51.100.7", resolve(nil, "198.51.100.7:4000", "203.0.113.9"))
		assert.Equal(t, "198.51.100.7", resolve(nil, "198.51.100.7:4000", "1.2.3.4, 5.6.7.8"))
	})

	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	t.Run("proxy confiable", func(t *testing.T) {
		assert.Equal(t, "203.0.113.9", resolve(proxies, "10.0.0.1:1234", "203.0.113.9"))
		// el cliente no puede anteponer una IP falsa
		assert.Equal(t, "203.0.113.9", resolve(proxies, "10.0.0.1:1234", "6.6.6.6, 203.0.113.9, 10.0.0.2"))
		assert.Equal(t, "203.0.113.9", resolve(proxies, "10.0.0.1:1234", "6.6.6.6", "203.0.113.9"))
		assert.Equal(t, "10.0.0.1", resolve(proxies, "10.0.0.1:1234"))
		assert.Equal(t, "10.0.0.1", resolve(proxies, "10.0.0.1:1234", "not-an-ip"))
	})

	t.Run("peer no confiable con XFF", func(t *testing.T) {
		assert.Equal(t, "198.51.100.7", resolve(proxies, "198.51.100.7:4000", "203.0.113.9"))
	})
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	h := WithClientIP(nil)(WithRateLimit(RateLimitConfig{
		Limiter: rate.NewMemoryLimiter(1, time.Hour),
		KeyFunc: IPRateKey("exam"),
	})(http.HandlerFunc(okHandler)))

	codes := make([]int, 0, 2)
	for _, xff := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

type errLimiter struct{}

func (errLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, errors.New("redis down")
}

func TestWithRateLimit(t *testing.T) {
	h := WithRateLimit(RateLimitConfig{Limiter: rate.NewMemoryLimiter(2, time.Hour)})(http.HandlerFunc(okHandler))
	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:5000"
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// fail-open
	h = WithRateLimit(RateLimitConfig{Limiter: errLimiter{}})(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// sin limiter es un no-op
	h = WithRateLimit(RateLimitConfig{})(http.HandlerFunc(okHandler))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakeSessions struct{}

func (fakeSessions) Unseal(v string) (string, error) {
	if v == "tampered" {
		return "", errors.New("bad signature")
	}
	return v, nil
}

type fakeVerifier struct {
	claims map[string]*oidc.IdentityClaims
	err    error
}

func (f fakeVerifier) Verify(_ context.Context, raw string) (*oidc.IdentityClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.claims[raw]
	if !ok {
		return nil, &oidc.VerificationError{Kind: oidc.ErrBadSignature}
	}
	return c, nil
}

func TestRequireAdmin(t *testing.T) {
	v := fakeVerifier{claims: map[string]*oidc.IdentityClaims{
		"admin":    {Subject: "1", Email: "Admin@Example.com", EmailVerified: true},
		"other":    {Subject: "2", Email: "other@example.com", EmailVerified: true},
		"unverify": {Subject: "3", Email: "admin@example.com"},
	}}
	var got *oidc.IdentityClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := RequireAdmin(AdminConfig{Sessions: fakeSessions{}, Verifier: v, Admins: []string{"admin@example.com"}})(next)

	do := func(cookie string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookie})
		}
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("tampered"))
	assert.Equal(t, http.StatusUnauthorized, do("forged"))
	assert.Equal(t, http.StatusForbidden, do("other"))
	assert.Equal(t, http.StatusForbidden, do("unverify"))

	require.Equal(t, http.StatusOK, do("admin"))
	require.NotNil(t, got)
	assert.Equal(t, "1", got.Subject)
}

func TestRequireAdminAnyIdentityAndTransient(t *testing.T) {
	v := fakeVerifier{claims: map[string]*oidc.IdentityClaims{"x": {Subject: "x"}}}
	h := RequireAdmin(AdminConfig{Sessions: fakeSessions{}, Verifier: v})(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "x"})
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	v.err = &oidc.VerificationError{Kind: oidc.ErrKeySetUnavailable}
	h = RequireAdmin(AdminConfig{Sessions: fakeSessions{}, Verifier: v})(http.HandlerFunc(okHandler))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
