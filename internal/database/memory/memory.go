// Package memory implements the store on plain in-process maps. It backs
// tests and demo deployments; the mutex gives Create the same
// insert-if-absent atomicity the unique index provides in PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dsemenov/linkshrink/internal/entity"
)

type Store struct {
	mu      sync.Mutex
	nextID  int64
	byCode  map[string]*entity.URL
	byID    map[int64]*entity.URL
	events  []entity.ClickEvent
	nextUID int64
	byToken map[string]*entity.User
	byEmail map[string]*entity.User
}

func New() *Store {
	return &Store{
		byCode:  make(map[string]*entity.URL),
		byID:    make(map[int64]*entity.URL),
		byToken: make(map[string]*entity.User),
		byEmail: make(map[string]*entity.User),
	}
}

func (s *Store) Create(_ context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "database.memory.Store.Create"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[url.ShortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	s.nextID++
	rec := &entity.URL{
		ID:          s.nextID,
		OwnerID:     url.OwnerID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		IsActive:    true,
		ExpiresAt:   url.ExpiresAt,
		CreatedAt:   time.Now(),
	}

	s.byCode[rec.ShortCode] = rec
	s.byID[rec.ID] = rec

	out := *rec
	return &out, nil
}

func (s *Store) GetByShortCode(_ context.Context, shortCode string) (*entity.URL, error) {
	const op = "database.memory.Store.GetByShortCode"

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byCode[shortCode]
	if !ok || !rec.IsActive {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	out := *rec
	return &out, nil
}

func (s *Store) IncrementClickCount(_ context.Context, urlID int64) error {
	const op = "database.memory.Store.IncrementClickCount"

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[urlID]
	if !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	rec.ClickCount++

	return nil
}

func (s *Store) InsertClickEvent(_ context.Context, event *entity.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := *event
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, ev)

	return nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID int64, offset, limit int) ([]entity.URL, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owned []entity.URL
	for _, rec := range s.byID {
		if rec.OwnerID == ownerID {
			owned = append(owned, *rec)
		}
	}

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := int64(len(owned))

	if offset >= len(owned) {
		return []entity.URL{}, total, nil
	}

	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}

	return owned[offset:end], total, nil
}

func (s *Store) DailyStats(_ context.Context, urlID int64) ([]entity.DayStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDay := make(map[time.Time]int64)
	for _, ev := range s.events {
		if ev.URLID == urlID {
			day := ev.OccurredAt.UTC().Truncate(24 * time.Hour)
			byDay[day]++
		}
	}

	stats := make([]entity.DayStats, 0, len(byDay))
	for day, clicks := range byDay {
		stats = append(stats, entity.DayStats{Day: day, Clicks: clicks})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Day.Before(stats[j].Day)
	})

	return stats, nil
}

func (s *Store) CreateUser(_ context.Context, name, email, apiToken string) (*entity.User, error) {
	const op = "database.memory.Store.CreateUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrUserExists)
	}
	if _, ok := s.byToken[apiToken]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrUserExists)
	}

	s.nextUID++
	user := &entity.User{
		ID:        s.nextUID,
		Name:      name,
		Email:     email,
		APIToken:  apiToken,
		CreatedAt: time.Now(),
	}

	s.byEmail[email] = user
	s.byToken[apiToken] = user

	out := *user
	return &out, nil
}

func (s *Store) GetUserByToken(_ context.Context, apiToken string) (*entity.User, error) {
	const op = "database.memory.Store.GetUserByToken"

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byToken[apiToken]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrUserNotFound)
	}

	out := *user
	return &out, nil
}
