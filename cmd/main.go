package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"signage-ads/internal/adapter/cache"
	httpadapter "signage-ads/internal/adapter/http"
	"signage-ads/internal/adapter/mail"
	"signage-ads/internal/adapter/memory"
	"signage-ads/internal/adapter/metrics"
	"signage-ads/internal/adapter/postgres"
	"signage-ads/internal/adapter/realtime"
	"signage-ads/internal/adapter/scheduler"
	"signage-ads/internal/adapter/usecase"
	"signage-ads/internal/config"
	"signage-ads/internal/core/eligibility"
	"signage-ads/internal/core/port"
	"signage-ads/internal/db"
)

// main loads configuration, opens storage, wires the use cases and runs
// the HTTP server together with the realtime hub, the feed cache listener
// and the status refresh job until SIGINT or SIGTERM.
func main() {
	exitCode := 1
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		} else {
			os.Exit(exitCode)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return
	}
	logger := cfg.Log.New(os.Stdout).With(slog.String("env", cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		return
	}
	logger.Info("server gracefully stopped")
	exitCode = 0
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	clock, err := eligibility.NewClock(cfg.App.Timezone, cfg.App.DateLayout)
	if err != nil {
		return fmt.Errorf("clock: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.App.Seed {
		if err = db.Seed(ctx, store, clock.Now(), clock.Layout()); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.Info("demo data loaded")
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err = rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	m := metrics.New()

	feedOpts := []cache.Option{cache.WithTTL(cfg.Cache.FeedTTL), cache.WithLogger(logger)}
	hub := realtime.NewHub(logger, realtime.WithAllowedOrigins(cfg.HTTP.AllowedOrigins...))
	var relay *realtime.RedisRelay
	if rdb != nil {
		feedOpts = append(feedOpts, cache.WithRedis(rdb))
		relay = realtime.NewRedisRelay(rdb, hub, logger)
		realtime.WithRelay(relay)(hub)
	}
	feed := cache.NewFeed(store, feedOpts...)

	mailer, err := mail.New(cfg.Mail, logger)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	opts := []usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithMetrics(m),
		usecase.WithFeedInvalidator(feed),
		usecase.WithNow(clock.Now),
	}
	evaluator := eligibility.NewEvaluator(clock, logger)
	events := usecase.NewPropagator(store, hub, mailer, opts...)
	ledger := usecase.NewLedgerUseCase(store, store, store, events, opts...)
	campaigns := usecase.NewCampaignUseCase(store, feed, evaluator, events, opts...)

	handler := httpadapter.NewHandler(httpadapter.Deps{
		Campaigns:     campaigns,
		Ledger:        ledger,
		Subscriptions: usecase.NewSubscriptionUseCase(store, store, ledger, events, opts...),
		Locations:     usecase.NewLocationUseCase(store, store, store, opts...),
		Inbox:         usecase.NewInboxUseCase(store),
		Accounts:      usecase.NewAccountUseCase(store, events, opts...),
		Stats:         usecase.NewStatsUseCase(store, store, opts...),
		Verifier:      httpadapter.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer),
		Hub:           hub,
		Metrics:       m,
	}, logger)

	jobs := scheduler.New(clock.Location(), cfg.Schedule.RefreshTimeout, logger)
	if err = jobs.AddStatusRefresh(cfg.Schedule.RefreshSpec, campaigns); err != nil {
		return fmt.Errorf("schedule status refresh: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.RunWithContext(gctx) })
	g.Go(func() error { return feed.Run(gctx) })
	g.Go(func() error { return jobs.Run(gctx) })
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("server listening", slog.Int("port", int(cfg.HTTP.Port)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStore returns the configured repository set and its cleanup.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (port.Store, func(), error) {
	switch cfg.App.Storage {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on exit")
		return memory.NewStore(), func() {}, nil
	case "postgres":
		if cfg.Psql.RunMigrations {
			if err := db.Migrate(cfg.Psql.Addr.String()); err != nil {
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied successfully")
		}
		pool, err := db.NewPostgresPool(ctx, cfg.Psql)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection: %w", err)
		}
		return postgres.NewStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", cfg.App.Storage)
	}
}
