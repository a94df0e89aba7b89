// Package ratelimit implements fixed-window admission counters that gate
// write-heavy endpoints before they reach the core. Limiter backends are
// best-effort: the HTTP layer fails open when a backend errors.
package ratelimit

import (
	"context"
	"time"
)

// Limiter counts requests per key over a fixed window. Allow reports whether
// the request fits under the ceiling and how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}
