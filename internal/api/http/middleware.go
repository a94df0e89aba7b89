package http

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"

	"github.com/dsemenov/linkshrink/internal/entity"
	"github.com/dsemenov/linkshrink/internal/ratelimit"
	"github.com/dsemenov/linkshrink/pkg/response"
)

type ctxKey int

const userCtxKey ctxKey = iota

// userFromContext returns the authenticated user placed in the request
// context by the authenticate middleware.
func userFromContext(ctx context.Context) (*entity.User, bool) {
	user, ok := ctx.Value(userCtxKey).(*entity.User)
	return user, ok
}

// authenticate resolves the bearer token from the Authorization header into
// a user. Requests without a valid token are rejected with 401.
func authenticate(users UserStore) func(http.Handler) http.Handler {
	const op = "api.http.authenticate"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.UnauthorizedResponse)
				return
			}

			user, err := users.GetUserByToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, entity.ErrUserNotFound) {
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.UnauthorizedResponse)
					return
				}

				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
				return
			}

			ctx := context.WithValue(r.Context(), userCtxKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}

	return token, true
}

// rateLimit rejects requests above the limiter's ceiling with 429 and a
// Retry-After header. A failing limiter backend lets requests through, so
// the service degrades to unlimited rather than unavailable.
func rateLimit(limiter ratelimit.Limiter, key func(*http.Request) string) func(http.Handler) http.Handler {
	const op = "api.http.rateLimit"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter, err := limiter.Allow(r.Context(), key(r))
			if err != nil {
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))

				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.RateLimitedResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// keyByClientIP buckets requests by the client address.
func keyByClientIP(r *http.Request) string {
	return clientIP(r)
}

// keyByOwner buckets requests by the authenticated user, falling back to the
// client address when the middleware runs outside the authenticated group.
func keyByOwner(r *http.Request) string {
	if user, ok := userFromContext(r.Context()); ok {
		return strconv.FormatInt(user.ID, 10)
	}
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	// RealIP rewrites RemoteAddr without a port when forwarding headers
	// are present.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
