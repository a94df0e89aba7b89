package shortener

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dsemenov/linkshrink/internal/entity"
)

type MockURLStore struct {
	mock.Mock
}

func (s *MockURLStore) Create(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	args := s.Called(ctx, url)
	created, _ := args.Get(0).(*entity.URL)
	return created, args.Error(1)
}

func (s *MockURLStore) GetByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := s.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (s *MockURLStore) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]entity.URL, int64, error) {
	args := s.Called(ctx, ownerID, offset, limit)
	urls, _ := args.Get(0).([]entity.URL)
	total, _ := args.Get(1).(int64)
	return urls, total, args.Error(2)
}

func (s *MockURLStore) DailyStats(ctx context.Context, urlID int64) ([]entity.DayStats, error) {
	args := s.Called(ctx, urlID)
	stats, _ := args.Get(0).([]entity.DayStats)
	return stats, args.Error(1)
}

type MockClickStore struct {
	mock.Mock
}

func (s *MockClickStore) IncrementClickCount(ctx context.Context, urlID int64) error {
	args := s.Called(ctx, urlID)
	return args.Error(0)
}

func (s *MockClickStore) InsertClickEvent(ctx context.Context, event *entity.ClickEvent) error {
	args := s.Called(ctx, event)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (c *MockCache) Get(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := c.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (c *MockCache) Set(ctx context.Context, url *entity.URL, ttl time.Duration) error {
	args := c.Called(ctx, url, ttl)
	return args.Error(0)
}

type MockClickScheduler struct {
	mock.Mock
}

func (s *MockClickScheduler) Enqueue(urlID int64, click entity.ClickContext) bool {
	args := s.Called(urlID, click)
	return args.Bool(0)
}
