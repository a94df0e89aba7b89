package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	api "github.com/dsemenov/linkshrink/internal/api/http"
	"github.com/dsemenov/linkshrink/internal/cache"
	"github.com/dsemenov/linkshrink/internal/config"
	"github.com/dsemenov/linkshrink/internal/database/memory"
	"github.com/dsemenov/linkshrink/internal/database/postgres"
	"github.com/dsemenov/linkshrink/internal/ratelimit"
	"github.com/dsemenov/linkshrink/internal/shortener"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// storage is the full persistence surface the application wires together.
// Both the in-memory store and the PostgreSQL repository satisfy it.
type storage interface {
	shortener.URLStore
	shortener.ClickStore
	api.UserStore
}

func run(ctx context.Context) error {
	const op = "main.run"

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("%s: failed to load config: %w", op, err)
	}

	logger := newLogger(cfg.Env)

	g, ctx := errgroup.WithContext(ctx)

	var (
		store  storage
		cch    shortener.Cache
		limits api.Limiters
	)

	switch cfg.Storage {
	case config.StorageMemory:
		store = memory.New()
		cch = cache.NewMemory()
		limits = api.Limiters{
			Register: ratelimit.NewMemory(cfg.RateLimit.Register.Limit, cfg.RateLimit.Register.Window),
			Shorten:  ratelimit.NewMemory(cfg.RateLimit.Shorten.Limit, cfg.RateLimit.Shorten.Window),
		}
	case config.StoragePostgres:
		db, err := postgres.New(
			cfg.Postgres.DSN(),
			postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return fmt.Errorf("%s: failed to connect to database: %w", op, err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return db.Close()
		})

		if err := postgres.RunMigrations(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN()); err != nil {
			return fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		redisClient, err := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return redisClient.Close()
		})

		store = postgres.NewRepository(db)
		cch = cache.NewRedis(redisClient)
		limits = api.Limiters{
			Register: ratelimit.NewRedis(redisClient, "register", cfg.RateLimit.Register.Limit, cfg.RateLimit.Register.Window),
			Shorten:  ratelimit.NewRedis(redisClient, "shorten", cfg.RateLimit.Shorten.Limit, cfg.RateLimit.Shorten.Window),
		}
	default:
		return fmt.Errorf("%s: unknown storage backend: %q", op, cfg.Storage)
	}

	recorder := shortener.NewRecorder(logger.Logger, store, cfg.Shortener.ClickQueueSize)
	g.Go(func() error {
		return recorder.Run(ctx)
	})

	urlSvc := shortener.New(logger.Logger, store, cch, recorder, cfg.Shortener)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        api.NewRouter(logger, cfg.BaseURL, urlSvc, store, limits),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage),
			slog.String("addr", server.Addr))

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

func newLogger(env string) *httplog.Logger {
	opts := httplog.Options{
		LogLevel:       slog.LevelDebug,
		Concise:        true,
		RequestHeaders: true,
	}

	switch env {
	case config.EnvStage:
		opts.JSON = true
		opts.LogLevel = slog.LevelInfo
	case config.EnvProd:
		opts.JSON = true
		opts.LogLevel = slog.LevelInfo
		opts.Concise = false
	}

	return httplog.NewLogger("linkshrink", opts)
}
