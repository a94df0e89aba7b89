// Package entity defines the entities and errors shared across the application.
// It includes the URL struct, which represents a shortened URL along with its
// metadata, the append-only ClickEvent, and the relevant error definitions.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when an active URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when the URL exists but its expiry timestamp is in the past.
	ErrURLExpired = errors.New("url expired")
	// ErrInvalidURL is returned when the original URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidAlias is returned when a custom alias violates the allowed charset or length policy.
	ErrInvalidAlias = errors.New("invalid alias")
)

// URL represents a shortened URL.
type URL struct {
	ID          int64      // ID is the unique identifier of the URL in the store.
	OwnerID     int64      // OwnerID references the identity that created the URL.
	ShortCode   string     // ShortCode is the unique code that the short URL resolves through.
	OriginalURL string     // OriginalURL is the full URL that the short code resolves to.
	ClickCount  int64      // ClickCount is the number of recorded redirects, mutated only by the click recorder.
	IsActive    bool       // IsActive marks the URL as usable for redirects; inactive URLs behave as not found.
	ExpiresAt   *time.Time // ExpiresAt, when set and in the past, makes the URL expired for redirects.
	CreatedAt   time.Time  // CreatedAt is the timestamp when the URL was created.
}

// Expired reports whether the URL has an expiry timestamp in the past.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(now)
}

// ClickContext carries request metadata captured at redirect time.
type ClickContext struct {
	IP        string
	UserAgent string
	Referrer  string
}

// ClickEvent is an append-only record of a single redirect.
// Events are never mutated or deleted; duplicates are all recorded.
type ClickEvent struct {
	ID         int64
	URLID      int64
	OccurredAt time.Time
	IP         string
	UserAgent  string
	Referrer   string
}

// DayStats is a single row of the per-day click aggregation.
type DayStats struct {
	Day    time.Time
	Clicks int64
}

// URLAnalytics aggregates click statistics for a single URL.
type URLAnalytics struct {
	TotalClicks int64
	ActiveDays  int
	Daily       []DayStats
}
