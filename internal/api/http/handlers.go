package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/dsemenov/linkshrink/internal/entity"
	"github.com/dsemenov/linkshrink/internal/shortener"
	"github.com/dsemenov/linkshrink/pkg/response"
)

const apiTokenLength = 32

// healthResponse reports liveness together with the process uptime in seconds.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

func handleHealth(start time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, healthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Uptime:    time.Since(start).Seconds(),
		})
	}
}

// registerRequest represents the request payload for creating an account.
type registerRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// userResponse represents the account payload returned on registration.
type userResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	APIToken  string    `json:"apiToken"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleRegister handles POST requests to create an account.
//
// The handler issues an opaque API token for the new user. The token is
// returned once and must be presented as a bearer token on API requests.
func handleRegister(users UserStore, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleRegister"
	const successMsg = "The user has been registered successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		token, err := gonanoid.New(apiTokenLength)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		user, err := users.CreateUser(r.Context(), req.Name, req.Email, token)
		if err != nil {
			if errors.Is(err, entity.ErrUserExists) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.UserExistsResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, userResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			APIToken:  user.APIToken,
			CreatedAt: user.CreatedAt,
		}))
	}
}

// shortenRequest represents the request payload for shortening a URL.
// ExpiresIn is a TTL in days; zero means the link never expires.
type shortenRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required,max=2048"`
	CustomAlias string `json:"customAlias,omitempty" validate:"omitempty,max=50"`
	ExpiresIn   int    `json:"expiresIn,omitempty" validate:"omitempty,gt=0,lte=3650"`
}

// shortenResponse represents the response payload for a freshly shortened URL.
type shortenResponse struct {
	ShortURL    string     `json:"shortUrl"`
	ShortCode   string     `json:"shortCode"`
	OriginalURL string     `json:"originalUrl"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func shortURL(baseURL, shortCode string) string {
	return strings.TrimRight(baseURL, "/") + "/" + shortCode
}

// handleShorten handles POST requests to shorten a URL.
//
// Syntactic validation happens here; the business rules (absolute http(s)
// URL, alias shape, code uniqueness) live in the service and map onto
// dedicated 400 responses.
func handleShorten(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleShorten"

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		user, ok := userFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.UnauthorizedResponse)
			return
		}

		url, err := svc.Shorten(r.Context(), user.ID, req.OriginalURL, req.CustomAlias, req.ExpiresIn)
		if err != nil {
			switch {
			case errors.Is(err, entity.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidURLResponse)
			case errors.Is(err, entity.ErrInvalidAlias):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidAliasResponse)
			case errors.Is(err, entity.ErrShortCodeExists):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.AliasTakenResponse)
			case errors.Is(err, shortener.ErrMaxRetriesExceeded):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.AllocationExhaustedResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, shortenResponse{
			ShortURL:    shortURL(baseURL, url.ShortCode),
			ShortCode:   url.ShortCode,
			OriginalURL: url.OriginalURL,
			ExpiresAt:   url.ExpiresAt,
			CreatedAt:   url.CreatedAt,
		})
	}
}

// handleRedirect handles GET requests on short codes.
//
// A resolved code answers with a permanent redirect; the click is recorded
// off the request path and never delays the response.
func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		click := entity.ClickContext{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
			Referrer:  r.Referer(),
		}

		url, err := svc.Resolve(r.Context(), shortCode, click)
		if err != nil {
			switch {
			case errors.Is(err, entity.ErrURLNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, entity.ErrURLExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLExpiredResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		http.Redirect(w, r, url.OriginalURL, http.StatusMovedPermanently)
	}
}

// urlItem represents one URL in a listing.
type urlItem struct {
	ShortURL    string     `json:"shortUrl"`
	ShortCode   string     `json:"shortCode"`
	OriginalURL string     `json:"originalUrl"`
	ClickCount  int64      `json:"clickCount"`
	IsActive    bool       `json:"isActive"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// listURLsResponse represents one page of the owner's URLs.
type listURLsResponse struct {
	URLs       []urlItem `json:"urls"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
}

// handleListURLs handles GET requests for the authenticated user's URLs.
func handleListURLs(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleListURLs"

	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.UnauthorizedResponse)
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > 100 {
			limit = 10
		}

		urls, total, err := svc.ListURLs(r.Context(), user.ID, page, limit)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		items := make([]urlItem, 0, len(urls))
		for _, url := range urls {
			items = append(items, urlItem{
				ShortURL:    shortURL(baseURL, url.ShortCode),
				ShortCode:   url.ShortCode,
				OriginalURL: url.OriginalURL,
				ClickCount:  url.ClickCount,
				IsActive:    url.IsActive,
				ExpiresAt:   url.ExpiresAt,
				CreatedAt:   url.CreatedAt,
			})
		}

		totalPages := int((total + int64(limit) - 1) / int64(limit))

		render.Status(r, http.StatusOK)
		render.JSON(w, r, listURLsResponse{
			URLs:       items,
			Total:      total,
			Page:       page,
			TotalPages: totalPages,
		})
	}
}

// dayClicks represents the click count for one calendar day.
type dayClicks struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// analyticsResponse represents click statistics for one URL.
type analyticsResponse struct {
	TotalClicks int64       `json:"totalClicks"`
	ActiveDays  int         `json:"activeDays"`
	DailyClicks []dayClicks `json:"dailyClicks"`
}

// handleAnalytics handles GET requests for per-URL click statistics.
//
// URLs owned by other users answer 404, indistinguishable from unknown codes.
func handleAnalytics(svc URLService) http.HandlerFunc {
	const op = "api.http.handleAnalytics"

	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.UnauthorizedResponse)
			return
		}

		shortCode := chi.URLParam(r, "shortCode")

		stats, err := svc.Analytics(r.Context(), user.ID, shortCode)
		if err != nil {
			if errors.Is(err, entity.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		daily := make([]dayClicks, 0, len(stats.Daily))
		for _, day := range stats.Daily {
			daily = append(daily, dayClicks{
				Date:   day.Day.Format("2006-01-02"),
				Clicks: day.Clicks,
			})
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, analyticsResponse{
			TotalClicks: stats.TotalClicks,
			ActiveDays:  stats.ActiveDays,
			DailyClicks: daily,
		})
	}
}
