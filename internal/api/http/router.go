// Package http provides the HTTP delivery layer for the link shortening
// service. It contains the router, the request handlers and the middleware
// for authentication and admission control.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/dsemenov/linkshrink/internal/entity"
	"github.com/dsemenov/linkshrink/internal/ratelimit"
)

// URLService defines the interface for the core link shortening business logic.
type URLService interface {
	// Shorten allocates a short code for the original URL on behalf of the
	// owner. A non-empty customAlias is used verbatim; expiresIn is a TTL in
	// days, zero meaning no expiry.
	Shorten(ctx context.Context, ownerID int64, originalURL, customAlias string, expiresIn int) (*entity.URL, error)

	// Resolve returns the URL behind the short code and schedules the click
	// for recording.
	Resolve(ctx context.Context, shortCode string, click entity.ClickContext) (*entity.URL, error)

	// ListURLs returns one page of the owner's URLs together with the total
	// number of URLs the owner has.
	ListURLs(ctx context.Context, ownerID int64, page, limit int) ([]entity.URL, int64, error)

	// Analytics returns click statistics for one of the owner's URLs.
	Analytics(ctx context.Context, ownerID int64, shortCode string) (*entity.URLAnalytics, error)
}

// UserStore defines the user operations the delivery layer needs for
// registration and token authentication.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, apiToken string) (*entity.User, error)
	GetUserByToken(ctx context.Context, apiToken string) (*entity.User, error)
}

// Limiters bundles the admission-control limiters per guarded endpoint.
type Limiters struct {
	Register ratelimit.Limiter
	Shorten  ratelimit.Limiter
}

// getValidate initializes a new validator instance for validating incoming request payloads.
// It customizes tag name extraction from struct fields to match JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
func NewRouter(logger *httplog.Logger, baseURL string, urlSvc URLService, users UserStore, limits Limiters) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	start := time.Now()

	r.Get("/health", handleHealth(start))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Route("/api", func(r chi.Router) {
		validate := getValidate()

		r.With(rateLimit(limits.Register, keyByClientIP)).
			Post("/register", handleRegister(users, validate))

		r.Group(func(r chi.Router) {
			r.Use(authenticate(users))

			r.With(rateLimit(limits.Shorten, keyByOwner)).
				Post("/shorten", handleShorten(urlSvc, validate, baseURL))
			r.Get("/urls", handleListURLs(urlSvc, baseURL))
			r.Get("/analytics/{shortCode}", handleAnalytics(urlSvc))
		})
	})

	// Static prefixes above take precedence over the wildcard.
	r.Get("/{shortCode}", handleRedirect(urlSvc))

	return r
}
