package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/pressly/goose/v3"
	goredis "github.com/redis/go-redis/v9"

	"Mosaic/internal/api/handlers"
	"Mosaic/internal/api/middleware"
	"Mosaic/internal/api/routes"
	"Mosaic/internal/config"
	"Mosaic/internal/core/content"
	"Mosaic/internal/core/counters"
	"Mosaic/internal/core/listing"
	postgresRepo "Mosaic/internal/db/postgres"
	redisStore "Mosaic/internal/db/redis"
	"Mosaic/internal/db/sqlite"
	"Mosaic/internal/events"
)

func main() {
	cfg := config.FromEnv()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Run migrations
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("failed to set goose dialect", "error", err)
		os.Exit(1)
	}
	if err := goose.Up(db, cfg.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations completed successfully")

	ctx := context.Background()

	// Cache service is advisory: without it rankings are computed per request
	var rankingStore listing.RankingStore
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = rdb.Close() }()

		store := redisStore.NewRankingStore(rdb, "mosaic:")
		if err := store.Ping(ctx); err != nil {
			logger.Warn("redis unreachable at startup, rankings will be recomputed until it recovers", "error", err)
		} else {
			logger.Info("connected to redis", "addr", cfg.RedisAddr)
		}
		rankingStore = store
	} else {
		logger.Info("REDIS_ADDR not set, ranking cache disabled")
	}

	// Search index is optional: keyword requests degrade to empty pages without it
	var (
		searchIndex listing.SearchIndex
		publisher   content.IndexPublisher
	)
	if cfg.SearchIndexPath != "" {
		ix, err := sqlite.Open(cfg.SearchIndexPath)
		if err != nil {
			logger.Error("failed to open search index", "path", cfg.SearchIndexPath, "error", err)
			os.Exit(1)
		}
		defer func() { _ = ix.Close() }()
		searchIndex = ix
		consumer := events.NewIndexConsumer(ix, logger)

		if cfg.NATSURL != "" {
			nc, err := nats.Connect(cfg.NATSURL, nats.Name("mosaic-server"))
			if err != nil {
				logger.Error("unable to connect to NATS", "error", err)
				os.Exit(1)
			}
			defer nc.Close()

			if _, err := consumer.Subscribe(nc); err != nil {
				logger.Error("failed to subscribe to index events", "error", err)
				os.Exit(1)
			}
			publisher = events.NewNatsPublisher(nc)
			logger.Info("connected to NATS", "url", cfg.NATSURL)
		} else {
			direct := events.NewDirectPublisher(consumer, 0, logger)
			defer direct.Close()
			publisher = direct
			logger.Info("NATS_URL not set, applying index events in-process")
		}
	} else {
		logger.Warn("SEARCH_INDEX_PATH empty, search disabled")
	}

	codec := listing.NewCodec(cfg.CursorSecret)
	rankingCache := listing.NewRankingCache(rankingStore, logger)
	authMiddleware := middleware.NewJWTAuthMiddleware(cfg.JWTSecret)

	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	// Mounted inside the route groups, after auth has resolved the viewer
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// One engine per kind; only table names differ
	for _, kind := range content.Kinds {
		listingService := listing.NewService(listing.Config{
			Kind:          kind,
			SearchTimeout: cfg.SearchTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			RankingTTL:    cfg.RankingTTL,
			PopularWindow: cfg.PopularWindow,
			RankingLimit:  cfg.RankingLimit,
		}, postgresRepo.NewContentRepository(db, kind), searchIndex, rankingCache, codec, logger)

		counterService := counters.NewService(kind, postgresRepo.NewCounterRepository(db, kind), publisher, logger)

		routes.RegisterContentRoutes(r, kind, listingService, counterService, authMiddleware, rateLimiter.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			handlers.WriteError(w, http.StatusServiceUnavailable, "Unavailable", "database unreachable")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Mosaic API starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsDevelopment() {
		opts.Level = slog.LevelDebug
	}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
