package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dsemenov/linkshrink/internal/entity"
)

type urlRecord struct {
	ID          int64      `db:"id"`
	OwnerID     int64      `db:"owner_id"`
	ShortCode   string     `db:"short_code"`
	OriginalURL string     `db:"original_url"`
	ClickCount  int64      `db:"click_count"`
	IsActive    bool       `db:"is_active"`
	ExpiresAt   *time.Time `db:"expires_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

func (r *urlRecord) toURL() *entity.URL {
	return &entity.URL{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		ClickCount:  r.ClickCount,
		IsActive:    r.IsActive,
		ExpiresAt:   r.ExpiresAt,
		CreatedAt:   r.CreatedAt,
	}
}

type userRecord struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	APIToken  string    `db:"api_token"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *userRecord) toUser() *entity.User {
	return &entity.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		APIToken:  r.APIToken,
		CreatedAt: r.CreatedAt,
	}
}

type dayStatsRecord struct {
	Day    time.Time `db:"day"`
	Clicks int64     `db:"clicks"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// Create inserts a new URL record. The insert is atomic with respect to the
// uniqueness of the short code: a conflicting concurrent insert surfaces as
// entity.ErrShortCodeExists, never as a lost update.
func (r *Repository) Create(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "database.postgres.Repository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(owner_id, short_code, original_url, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, url.OwnerID, url.ShortCode, url.OriginalURL, url.ExpiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.toURL(), nil
}

// GetByShortCode retrieves an active URL record. Inactive records behave as
// not found; expired records are returned and left to the caller's read-time
// expiry check.
func (r *Repository) GetByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "database.postgres.Repository.GetByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls
		WHERE short_code = $1 AND is_active`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.toURL(), nil
}

// IncrementClickCount bumps the click counter with a relative update, so
// concurrent increments are serialized by the database and never lost.
func (r *Repository) IncrementClickCount(ctx context.Context, urlID int64) error {
	const op = "database.postgres.Repository.IncrementClickCount"

	query := `UPDATE urls
		SET click_count = click_count + 1
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, urlID)
	if err != nil {
		return fmt.Errorf("%s: failed to increment click count: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return nil
}

// InsertClickEvent appends a click event. Events are never updated or deleted.
func (r *Repository) InsertClickEvent(ctx context.Context, event *entity.ClickEvent) error {
	const op = "database.postgres.Repository.InsertClickEvent"

	query := `INSERT INTO click_events(url_id, occurred_at, ip, user_agent, referrer)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, event.URLID, event.OccurredAt, event.IP, event.UserAgent, event.Referrer)
	if err != nil {
		return fmt.Errorf("%s: failed to insert click event: %w", op, err)
	}

	return nil
}

// ListByOwner returns a page of the owner's URLs, newest first, and the
// total number of records for that owner.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]entity.URL, int64, error) {
	const op = "database.postgres.Repository.ListByOwner"

	var total int64
	countQuery := `SELECT COUNT(*) FROM urls WHERE owner_id = $1`

	if err := r.db.GetContext(ctx, &total, countQuery, ownerID); err != nil {
		return nil, 0, fmt.Errorf("%s: failed to count url records: %w", op, err)
	}

	var recs []urlRecord
	query := `SELECT * FROM urls
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.SelectContext(ctx, &recs, query, ownerID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%s: failed to list url records: %w", op, err)
	}

	urls := make([]entity.URL, 0, len(recs))
	for _, rec := range recs {
		urls = append(urls, *rec.toURL())
	}

	return urls, total, nil
}

// DailyStats aggregates click events per day for a URL.
func (r *Repository) DailyStats(ctx context.Context, urlID int64) ([]entity.DayStats, error) {
	const op = "database.postgres.Repository.DailyStats"

	var recs []dayStatsRecord
	query := `SELECT date_trunc('day', occurred_at) AS day, COUNT(*) AS clicks
		FROM click_events
		WHERE url_id = $1
		GROUP BY day
		ORDER BY day`

	if err := r.db.SelectContext(ctx, &recs, query, urlID); err != nil {
		return nil, fmt.Errorf("%s: failed to get daily stats: %w", op, err)
	}

	stats := make([]entity.DayStats, 0, len(recs))
	for _, rec := range recs {
		stats = append(stats, entity.DayStats{Day: rec.Day, Clicks: rec.Clicks})
	}

	return stats, nil
}

// CreateUser registers a new identity and its opaque API token.
func (r *Repository) CreateUser(ctx context.Context, name, email, apiToken string) (*entity.User, error) {
	const op = "database.postgres.Repository.CreateUser"

	rec := new(userRecord)
	query := `INSERT INTO users(name, email, api_token)
		VALUES ($1, $2, $3)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, name, email, apiToken)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrUserExists)
		}

		return nil, fmt.Errorf("%s: failed to create user record: %w", op, err)
	}

	return rec.toUser(), nil
}

// GetUserByToken resolves an opaque API token to its user.
func (r *Repository) GetUserByToken(ctx context.Context, apiToken string) (*entity.User, error) {
	const op = "database.postgres.Repository.GetUserByToken"

	rec := new(userRecord)
	query := `SELECT * FROM users WHERE api_token = $1`

	err := r.db.GetContext(ctx, rec, query, apiToken)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get user record: %w", op, err)
	}

	return rec.toUser(), nil
}
