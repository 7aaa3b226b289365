package middlewares

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// los ids entrantes se aceptan sólo si son cortos y sin caracteres raros
var requestIDRE = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// WithRequestID propaga X-Request-ID o genera uno (UUID v4).
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get("X-Request-ID")
			if !requestIDRE.MatchString(rid) {
				rid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", rid)
			next.ServeHTTP(w, r.WithContext(setRequestID(r.Context(), rid)))
		})
	}
}
