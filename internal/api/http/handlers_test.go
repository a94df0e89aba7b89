package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/dsemenov/linkshrink/internal/entity"
	"github.com/dsemenov/linkshrink/internal/shortener"
	"github.com/dsemenov/linkshrink/pkg/response"
)

const (
	testBaseURL = "http://sho.rt"
	testToken   = "test-api-token"
)

type MockURLService struct {
	mock.Mock
}

func (s *MockURLService) Shorten(ctx context.Context, ownerID int64, originalURL, customAlias string, expiresIn int) (*entity.URL, error) {
	args := s.Called(ctx, ownerID, originalURL, customAlias, expiresIn)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (s *MockURLService) Resolve(ctx context.Context, shortCode string, click entity.ClickContext) (*entity.URL, error) {
	args := s.Called(ctx, shortCode, click)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (s *MockURLService) ListURLs(ctx context.Context, ownerID int64, page, limit int) ([]entity.URL, int64, error) {
	args := s.Called(ctx, ownerID, page, limit)
	urls, _ := args.Get(0).([]entity.URL)
	total, _ := args.Get(1).(int64)
	return urls, total, args.Error(2)
}

func (s *MockURLService) Analytics(ctx context.Context, ownerID int64, shortCode string) (*entity.URLAnalytics, error) {
	args := s.Called(ctx, ownerID, shortCode)
	stats, _ := args.Get(0).(*entity.URLAnalytics)
	return stats, args.Error(1)
}

type MockUserStore struct {
	mock.Mock
}

func (s *MockUserStore) CreateUser(ctx context.Context, name, email, apiToken string) (*entity.User, error) {
	args := s.Called(ctx, name, email, apiToken)
	user, _ := args.Get(0).(*entity.User)
	return user, args.Error(1)
}

func (s *MockUserStore) GetUserByToken(ctx context.Context, apiToken string) (*entity.User, error) {
	args := s.Called(ctx, apiToken)
	user, _ := args.Get(0).(*entity.User)
	return user, args.Error(1)
}

type stubLimiter struct {
	allowed    bool
	retryAfter time.Duration
	err        error
}

func (l stubLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return l.allowed, l.retryAfter, l.err
}

type HandlersTestSuite struct {
	suite.Suite
	logger     *httplog.Logger
	urlSvcMock *MockURLService
	usersMock  *MockUserStore
	limits     Limiters
	server     *httptest.Server
	e          *httpexpect.Expect
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.urlSvcMock = new(MockURLService)
	suite.usersMock = new(MockUserStore)
	suite.limits = Limiters{
		Register: stubLimiter{allowed: true},
		Shorten:  stubLimiter{allowed: true},
	}
	suite.startServer()
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.urlSvcMock.AssertExpectations(suite.T())
	suite.usersMock.AssertExpectations(suite.T())
	suite.server.Close()
}

// startServer (re)builds the test server from the suite's current mocks and
// limiters. Redirects are not followed so handleRedirect can be asserted on.
func (suite *HandlersTestSuite) startServer() {
	if suite.server != nil {
		suite.server.Close()
	}

	router := NewRouter(suite.logger, testBaseURL, suite.urlSvcMock, suite.usersMock, suite.limits)
	suite.server = httptest.NewServer(router)
	suite.e = httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  suite.server.URL,
		Reporter: httpexpect.NewAssertReporter(suite.T()),
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
}

func (suite *HandlersTestSuite) expectAuth() {
	suite.usersMock.
		On("GetUserByToken", mock.Anything, testToken).
		Return(&entity.User{ID: 1, Name: "user", Email: "user@example.com", APIToken: testToken}, nil)
}

func (suite *HandlersTestSuite) TestHealth() {
	const path = "/health"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", "ok").
			ContainsKey("timestamp").
			ContainsKey("uptime")
	})
}

func (suite *HandlersTestSuite) TestRegister() {
	const path = "/api/register"

	suite.Run("empty request body", func() {
		suite.e.POST(path).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.EmptyRequestBodyResponse.Message)
	})

	suite.Run("invalid request body", func() {
		suite.e.POST(path).
			WithJSON("invalid body").
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.BadRequestResponse.Message)
	})

	suite.Run("validation error", func() {
		suite.e.POST(path).
			WithJSON(map[string]string{
				"name":  "user",
				"email": "invalid email",
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			ContainsKey("message").
			ContainsKey("details")
	})

	suite.Run("user exists", func() {
		suite.usersMock.
			On("CreateUser", mock.Anything, "user", "user@example.com", mock.Anything).
			Times(1).
			Return(nil, entity.ErrUserExists)

		suite.e.POST(path).
			WithJSON(map[string]string{
				"name":  "user",
				"email": "user@example.com",
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.UserExistsResponse.Message)
	})

	suite.Run("server error", func() {
		suite.usersMock.
			On("CreateUser", mock.Anything, "user", "user@example.com", mock.Anything).
			Times(1).
			Return(nil, errors.New("unknown error"))

		suite.e.POST(path).
			WithJSON(map[string]string{
				"name":  "user",
				"email": "user@example.com",
			}).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("success", func() {
		suite.usersMock.
			On("CreateUser", mock.Anything, "user", "user@example.com", mock.Anything).
			Times(1).
			Return(&entity.User{
				ID:       1,
				Name:     "user",
				Email:    "user@example.com",
				APIToken: "issued-token",
			}, nil)

		resp := suite.e.POST(path).
			WithJSON(map[string]string{
				"name":  "user",
				"email": "user@example.com",
			}).
			Expect().
			Status(http.StatusCreated).
			HasContentType("application/json").
			JSON().Object()

		resp.HasValue("status", response.StatusSuccess)
		resp.Value("data").Object().
			HasValue("id", 1).
			HasValue("email", "user@example.com").
			HasValue("apiToken", "issued-token")
	})
}

func (suite *HandlersTestSuite) TestShorten() {
	const path = "/api/shorten"

	suite.Run("missing token", func() {
		suite.e.POST(path).
			WithJSON(map[string]string{
				"originalUrl": "https://example.com",
			}).
			Expect().
			Status(http.StatusUnauthorized).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.UnauthorizedResponse.Message)
	})

	suite.Run("unknown token", func() {
		suite.usersMock.
			On("GetUserByToken", mock.Anything, "bogus").
			Times(1).
			Return(nil, entity.ErrUserNotFound)

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer bogus").
			WithJSON(map[string]string{
				"originalUrl": "https://example.com",
			}).
			Expect().
			Status(http.StatusUnauthorized).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.UnauthorizedResponse.Message)
	})

	suite.Run("empty request body", func() {
		suite.expectAuth()

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+testToken).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.EmptyRequestBodyResponse.Message)
	})

	suite.Run("validation error", func() {
		suite.expectAuth()

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+testToken).
			WithJSON(map[string]any{
				"originalUrl": "https://example.com",
				"expiresIn":   -1,
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			ContainsKey("details")
	})

	suite.Run("invalid url", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("Shorten", mock.Anything, int64(1), "not-a-url", "", 0).
			Times(1).
			Return(nil, entity.ErrInvalidURL)

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+testToken).
			WithJSON(map[string]string{
				"originalUrl": "not-a-url",
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.InvalidURLResponse.Message)
	})

	suite.Run("alias taken", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("Shorten", mock.Anything, int64(1), "https://example.com", "taken", 0).
			Times(1).
			Return(nil, entity.ErrShortCodeExists)

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+testToken).
			WithJSON(map[string]string{
				"originalUrl": "https://example.com",
				"customAlias": "taken",
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.AliasTakenResponse.Message)
	})

	suite.Run("allocation exhausted", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("Shorten", mock.Anything, int64(1), "https://example.com", "", 0).
			Times(1).
			Return(nil, shortener.ErrMaxRetriesExceeded)

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+testToken).
			WithJSON(map[string]string{
				"originalUrl": "https://example.com",
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.AllocationExhaustedResponse.Message)
	})

	suite.Run("server error", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("Shorten", mock.Anything, int64(1), "https://example.com", "", 0).
			Times(1).
			Return(nil, errors.New("unknown error"))

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+testToken).
			WithJSON(map[string]string{
				"originalUrl": "https://example.com",
			}).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("success", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("Shorten", mock.Anything, int64(1), "https://example.com", "", 7).
			Times(1).
			Return(&entity.URL{
				ID:          1,
				OwnerID:     1,
				ShortCode:   "abc123",
				OriginalURL: "https://example.com",
				IsActive:    true,
				CreatedAt:   time.Now(),
			}, nil)

		suite.e.POST(path).
			WithHeader("Authorization", "Bearer "+testToken).
			WithJSON(map[string]any{
				"originalUrl": "https://example.com",
				"expiresIn":   7,
			}).
			Expect().
			Status(http.StatusCreated).
			HasContentType("application/json").
			JSON().Object().
			HasValue("shortUrl", testBaseURL+"/abc123").
			HasValue("shortCode", "abc123").
			HasValue("originalUrl", "https://example.com").
			ContainsKey("createdAt")
	})
}

func (suite *HandlersTestSuite) TestRedirect() {
	suite.Run("not found", func() {
		suite.urlSvcMock.
			On("Resolve", mock.Anything, "missing", mock.Anything).
			Times(1).
			Return(nil, entity.ErrURLNotFound)

		suite.e.GET("/missing").
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("expired", func() {
		suite.urlSvcMock.
			On("Resolve", mock.Anything, "old", mock.Anything).
			Times(1).
			Return(nil, entity.ErrURLExpired)

		suite.e.GET("/old").
			Expect().
			Status(http.StatusGone).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.URLExpiredResponse.Message)
	})

	suite.Run("server error", func() {
		suite.urlSvcMock.
			On("Resolve", mock.Anything, "abc123", mock.Anything).
			Times(1).
			Return(nil, errors.New("unknown error"))

		suite.e.GET("/abc123").
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.
			On("Resolve", mock.Anything, "abc123", mock.MatchedBy(func(click entity.ClickContext) bool {
				return click.UserAgent != "" && click.Referrer == "https://ref.example.com"
			})).
			Times(1).
			Return(&entity.URL{
				ID:          1,
				ShortCode:   "abc123",
				OriginalURL: "https://example.com",
				IsActive:    true,
			}, nil)

		suite.e.GET("/abc123").
			WithHeader("User-Agent", "test-agent").
			WithHeader("Referer", "https://ref.example.com").
			Expect().
			Status(http.StatusMovedPermanently).
			Header("Location").IsEqual("https://example.com")
	})
}

func (suite *HandlersTestSuite) TestListURLs() {
	const path = "/api/urls"

	suite.Run("missing token", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusUnauthorized).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.UnauthorizedResponse.Message)
	})

	suite.Run("invalid query params fall back to defaults", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("ListURLs", mock.Anything, int64(1), 1, 10).
			Times(1).
			Return([]entity.URL{}, int64(0), nil)

		suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+testToken).
			WithQuery("page", "abc").
			WithQuery("limit", "-5").
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("total", 0).
			HasValue("page", 1).
			HasValue("totalPages", 0)
	})

	suite.Run("server error", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("ListURLs", mock.Anything, int64(1), 1, 10).
			Times(1).
			Return(nil, int64(0), errors.New("unknown error"))

		suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+testToken).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("success", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("ListURLs", mock.Anything, int64(1), 2, 2).
			Times(1).
			Return([]entity.URL{
				{ID: 3, ShortCode: "code3", OriginalURL: "https://example.com/3", ClickCount: 5, IsActive: true},
				{ID: 2, ShortCode: "code2", OriginalURL: "https://example.com/2", IsActive: true},
			}, int64(5), nil)

		resp := suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+testToken).
			WithQuery("page", 2).
			WithQuery("limit", 2).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object()

		resp.HasValue("total", 5).
			HasValue("page", 2).
			HasValue("totalPages", 3)

		urls := resp.Value("urls").Array()
		urls.Length().IsEqual(2)
		urls.Value(0).Object().
			HasValue("shortUrl", testBaseURL+"/code3").
			HasValue("shortCode", "code3").
			HasValue("clickCount", 5).
			HasValue("isActive", true)
	})
}

func (suite *HandlersTestSuite) TestAnalytics() {
	const path = "/api/analytics/abc123"

	suite.Run("missing token", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusUnauthorized).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.UnauthorizedResponse.Message)
	})

	suite.Run("not found", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("Analytics", mock.Anything, int64(1), "abc123").
			Times(1).
			Return(nil, entity.ErrURLNotFound)

		suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+testToken).
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("server error", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("Analytics", mock.Anything, int64(1), "abc123").
			Times(1).
			Return(nil, errors.New("unknown error"))

		suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+testToken).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("success", func() {
		suite.expectAuth()
		suite.urlSvcMock.
			On("Analytics", mock.Anything, int64(1), "abc123").
			Times(1).
			Return(&entity.URLAnalytics{
				TotalClicks: 7,
				ActiveDays:  2,
				Daily: []entity.DayStats{
					{Day: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Clicks: 4},
					{Day: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), Clicks: 3},
				},
			}, nil)

		resp := suite.e.GET(path).
			WithHeader("Authorization", "Bearer "+testToken).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object()

		resp.HasValue("totalClicks", 7).
			HasValue("activeDays", 2)

		daily := resp.Value("dailyClicks").Array()
		daily.Length().IsEqual(2)
		daily.Value(0).Object().
			HasValue("date", "2025-03-01").
			HasValue("clicks", 4)
	})
}

func (suite *HandlersTestSuite) TestRateLimit() {
	suite.Run("register above the ceiling", func() {
		suite.limits.Register = stubLimiter{allowed: false, retryAfter: 90 * time.Second}
		suite.startServer()

		resp := suite.e.POST("/api/register").
			WithJSON(map[string]string{
				"name":  "user",
				"email": "user@example.com",
			}).
			Expect().
			Status(http.StatusTooManyRequests)

		resp.Header("Retry-After").IsEqual("90")
		resp.JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.RateLimitedResponse.Message)
	})

	suite.Run("shorten above the ceiling", func() {
		suite.limits.Shorten = stubLimiter{allowed: false, retryAfter: time.Second}
		suite.startServer()
		suite.expectAuth()

		suite.e.POST("/api/shorten").
			WithHeader("Authorization", "Bearer "+testToken).
			WithJSON(map[string]string{
				"originalUrl": "https://example.com",
			}).
			Expect().
			Status(http.StatusTooManyRequests).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.RateLimitedResponse.Message)
	})

	suite.Run("limiter failure lets requests through", func() {
		suite.limits.Register = stubLimiter{err: errors.New("backend down")}
		suite.startServer()

		suite.usersMock.
			On("CreateUser", mock.Anything, "user", "user@example.com", mock.Anything).
			Times(1).
			Return(&entity.User{ID: 1, Name: "user", Email: "user@example.com", APIToken: "t"}, nil)

		suite.e.POST("/api/register").
			WithJSON(map[string]string{
				"name":  "user",
				"email": "user@example.com",
			}).
			Expect().
			Status(http.StatusCreated)
	})
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
