package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/vntrieu/impostor/internal/auth"
	"github.com/vntrieu/impostor/internal/httpapi/handler"
	"github.com/vntrieu/impostor/internal/ratelimit"
)

// RateLimitMiddleware limits by the key keyFunc extracts. Over the limit it answers 429 with Retry-After.
func RateLimitMiddleware(limiter ratelimit.Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				key = "unknown"
			}
			allowed, retryAfter := limiter.Allow(key)
			if !allowed {
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitKey keys a request by its token user when OptionalToken found one, otherwise by client address.
// chi's RealIP has already rewritten RemoteAddr from X-Real-IP / X-Forwarded-For.
func RateLimitKey(r *http.Request) string {
	if c := handler.ClaimsFromRequest(r); c != nil {
		return ratelimit.Key("user", c.UserID)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// DefaultMaxBodyBytes caps JSON request bodies. Every request in this API is a handful of ids.
const DefaultMaxBodyBytes = 64 << 10

// LimitRequestBody returns middleware that limits request body size; over-size requests get 413.
func LimitRequestBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalToken returns middleware that reads an Authorization Bearer token and, when it verifies, stores the
// claims in the request context. Requests without a token continue anonymously; a token that fails
// verification is rejected with 401.
func OptionalToken(tokenSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r, false)
			if len(tokenSecret) == 0 || token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := auth.VerifyToken(token, tokenSecret)
			if errors.Is(err, auth.ErrTokenExpired) {
				http.Error(w, "token expired", http.StatusUnauthorized)
				return
			}
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), handler.ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
