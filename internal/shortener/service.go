// Package shortener implements the core of the service: short-code allocation
// under concurrent writers, cache-aside redirect resolution with a durable
// fallback, and fire-and-forget click recording.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dsemenov/linkshrink/internal/config"
	"github.com/dsemenov/linkshrink/internal/entity"
)

// ErrMaxRetriesExceeded is returned when the bounded number of attempts to
// allocate a unique generated short code is exhausted.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

// URLStore is the durable, authoritative mapping from short code to URL.
// Create must be an atomic insert-if-absent on the short code: it is the sole
// serialization point for allocations.
type URLStore interface {
	// Create inserts a new URL record. It returns entity.ErrShortCodeExists
	// if the short code is already taken.
	Create(ctx context.Context, url *entity.URL) (*entity.URL, error)

	// GetByShortCode retrieves an active URL by its short code.
	// It returns entity.ErrURLNotFound if no active record matches.
	GetByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)

	// ListByOwner returns a page of the owner's URLs, newest first,
	// along with the total number of records for that owner.
	ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]entity.URL, int64, error)

	// DailyStats returns the per-day click aggregation for a URL.
	DailyStats(ctx context.Context, urlID int64) ([]entity.DayStats, error)
}

// Cache is a best-effort, time-bounded mapping from short code to URL record.
// A failing cache degrades the service to store-only operation; it never
// fails a request.
type Cache interface {
	// Get returns the cached record for the short code, or (nil, nil) on a miss.
	Get(ctx context.Context, shortCode string) (*entity.URL, error)

	// Set stores the record under its short code with the given TTL.
	Set(ctx context.Context, url *entity.URL, ttl time.Duration) error
}

// ClickScheduler accepts click recordings without blocking the caller.
// Enqueue reports whether the click was accepted; a dropped click is not an error.
type ClickScheduler interface {
	Enqueue(urlID int64, click entity.ClickContext) bool
}

// Service orchestrates the generator, store, cache and click scheduler.
type Service struct {
	logger     *slog.Logger
	store      URLStore
	cache      Cache
	clicks     ClickScheduler
	gen        *Generator
	maxRetries int
	cacheTTL   time.Duration
}

func New(logger *slog.Logger, store URLStore, cache Cache, clicks ClickScheduler, cfg config.Shortener) *Service {
	return &Service{
		logger:     logger,
		store:      store,
		cache:      cache,
		clicks:     clicks,
		gen:        NewGenerator(cfg.ShortCodeLength),
		maxRetries: cfg.MaxRetries,
		cacheTTL:   cfg.CacheTTL,
	}
}

// Shorten allocates a short code for the original URL and persists the record.
//
// With a custom alias the allocation is a single attempt: a conflict surfaces
// as entity.ErrShortCodeExists, since the caller chose that identity. Without
// an alias, generated candidates are retried on conflict up to the configured
// bound. On success the record is written through to the cache before returning.
func (s *Service) Shorten(ctx context.Context, ownerID int64, originalURL, customAlias string, expiresIn int) (*entity.URL, error) {
	const op = "shortener.Service.Shorten"

	if err := validateURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var expiresAt *time.Time
	if expiresIn > 0 {
		t := time.Now().Add(time.Duration(expiresIn) * 24 * time.Hour)
		expiresAt = &t
	}

	if customAlias != "" {
		if err := s.gen.ValidateAlias(customAlias); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		url, err := s.store.Create(ctx, &entity.URL{
			OwnerID:     ownerID,
			ShortCode:   customAlias,
			OriginalURL: originalURL,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: failed to allocate alias: %w", op, err)
		}

		s.cacheSet(ctx, url)

		return url, nil
	}

	for i := 0; i < s.maxRetries; i++ {
		code, err := s.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		url, err := s.store.Create(ctx, &entity.URL{
			OwnerID:     ownerID,
			ShortCode:   code,
			OriginalURL: originalURL,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		s.cacheSet(ctx, url)

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// Resolve returns the URL record behind a short code using cache-aside reads.
//
// A cache hit skips the store entirely. On a miss the store is queried and the
// record written back to the cache, best-effort. Expiry is evaluated at read
// time; expired records stay in both the store and the cache. The click is
// scheduled after a successful resolve and never awaited.
func (s *Service) Resolve(ctx context.Context, shortCode string, click entity.ClickContext) (*entity.URL, error) {
	const op = "shortener.Service.Resolve"

	url, err := s.cache.Get(ctx, shortCode)
	if err != nil {
		s.logger.Warn("cache lookup failed", slog.String("op", op), slog.Any("err", err))
		url = nil
	}

	if url == nil {
		url, err = s.store.GetByShortCode(ctx, shortCode)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
		}

		s.cacheSet(ctx, url)
	}

	if url.Expired(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLExpired)
	}

	s.clicks.Enqueue(url.ID, click)

	return url, nil
}

// ListURLs returns a page of the owner's URLs and the total record count.
func (s *Service) ListURLs(ctx context.Context, ownerID int64, page, limit int) ([]entity.URL, int64, error) {
	const op = "shortener.Service.ListURLs"

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	urls, total, err := s.store.ListByOwner(ctx, ownerID, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, total, nil
}

// Analytics returns the click statistics of an owner's URL. A URL owned by
// someone else behaves as not found.
func (s *Service) Analytics(ctx context.Context, ownerID int64, shortCode string) (*entity.URLAnalytics, error) {
	const op = "shortener.Service.Analytics"

	url, err := s.store.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url: %w", op, err)
	}

	if url.OwnerID != ownerID {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	daily, err := s.store.DailyStats(ctx, url.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get daily stats: %w", op, err)
	}

	return &entity.URLAnalytics{
		TotalClicks: url.ClickCount,
		ActiveDays:  len(daily),
		Daily:       daily,
	}, nil
}

func (s *Service) cacheSet(ctx context.Context, url *entity.URL) {
	const op = "shortener.Service.cacheSet"

	if err := s.cache.Set(ctx, url, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed", slog.String("op", op), slog.Any("err", err))
	}
}

func validateURL(rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return entity.ErrInvalidURL
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return entity.ErrInvalidURL
	}

	return nil
}
