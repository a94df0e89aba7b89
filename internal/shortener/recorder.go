package shortener

import (
	"context"
	"log/slog"
	"time"

	"github.com/dsemenov/linkshrink/internal/entity"
)

const (
	defaultQueueSize = 1024
	recordTimeout    = 5 * time.Second
)

// ClickStore is the subset of the durable store the recorder writes to.
// The counter update must be a relative increment so concurrent clicks
// are never lost.
type ClickStore interface {
	IncrementClickCount(ctx context.Context, urlID int64) error
	InsertClickEvent(ctx context.Context, event *entity.ClickEvent) error
}

type click struct {
	urlID      int64
	occurredAt time.Time
	ctx        entity.ClickContext
}

// Recorder drains a bounded queue of clicks in the background. Each click
// results in two independent best-effort writes: a counter increment and an
// event append. Neither failure rolls back or blocks the other, and nothing
// ever propagates to the redirect path.
type Recorder struct {
	logger *slog.Logger
	store  ClickStore
	queue  chan click
}

func NewRecorder(logger *slog.Logger, store ClickStore, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Recorder{
		logger: logger,
		store:  store,
		queue:  make(chan click, queueSize),
	}
}

// Enqueue submits a click without blocking. When the queue is full the click
// is dropped and false returned; under overload losing analytics is preferred
// over delaying redirects.
func (r *Recorder) Enqueue(urlID int64, c entity.ClickContext) bool {
	select {
	case r.queue <- click{urlID: urlID, occurredAt: time.Now(), ctx: c}:
		return true
	default:
		r.logger.Warn("click queue full, dropping click", slog.Int64("url_id", urlID))
		return false
	}
}

// Run drains the queue until ctx is done. Clicks still queued at shutdown are
// abandoned; no caller awaits them.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-r.queue:
			r.record(c)
		}
	}
}

func (r *Recorder) record(c click) {
	const op = "shortener.Recorder.record"

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.store.IncrementClickCount(ctx, c.urlID); err != nil {
		r.logger.Error("failed to increment click count",
			slog.String("op", op), slog.Int64("url_id", c.urlID), slog.Any("err", err))
	}

	event := &entity.ClickEvent{
		URLID:      c.urlID,
		OccurredAt: c.occurredAt,
		IP:         c.ctx.IP,
		UserAgent:  c.ctx.UserAgent,
		Referrer:   c.ctx.Referrer,
	}

	if err := r.store.InsertClickEvent(ctx, event); err != nil {
		r.logger.Error("failed to insert click event",
			slog.String("op", op), slog.Int64("url_id", c.urlID), slog.Any("err", err))
	}
}
