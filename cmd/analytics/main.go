// Command analytics starts the standalone analytics aggregation service.
//
// It consumes studio events from Kafka, aggregates them in memory (event
// totals, match score and latency percentiles, most frequently missing
// keywords, model usage, export failures), and exposes an HTTP API at
// GET /api/v1/analytics for dashboards. When Redis is configured the stats
// are also snapshotted periodically and served at
// GET /api/v1/analytics/snapshots and /snapshots/latest.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/redis"
)

// main boots the analytics service: a Kafka consumer feeding the in-memory
// aggregator, the optional Redis snapshot loop, a health checker, and the
// HTTP API. Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	if len(cfg.Kafka.Brokers) == 0 {
		slog.Error("analytics service needs kafka brokers (kafka.brokers or RS_KAFKA_BROKERS)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.StudioEvents, analytics.HandleEvent(aggregator))
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.StudioEvents)

	checker := health.NewChecker("analytics")
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		select {
		case <-consumerDone:
			return health.ComponentHealth{Status: health.StatusDown, Message: "consumer stopped"}
		default:
		}
		stats := consumer.Stats()
		if err := kafka.Ping(ctx, cfg.Kafka.Brokers); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("consumer active, processed=%d failed=%d", stats.Processed, stats.Failed),
		}
	})

	// Snapshots need Redis; without it only live stats are served.
	var (
		snapshots    analytics.SnapshotLister
		snapshotDone <-chan struct{}
	)
	if cfg.Redis.Enabled && cfg.Analytics.SnapshotInterval > 0 {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, analytics snapshots disabled", "error", err)
			checker.Register("redis", health.Optional(func(context.Context) error { return err }))
		} else {
			defer redisClient.Close()
			store := snapshot.NewStore(redisClient, cfg.Analytics.SnapshotRetention)
			snapshots = store
			snapshotDone = store.Start(ctx, aggregator, cfg.Analytics.SnapshotInterval)
			checker.Register("redis", health.Optional(redisClient.Ping))
		}
	}

	analyticsHandler := analytics.NewHandler(aggregator, snapshots)

	mux := http.NewServeMux()
	analyticsHandler.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-consumerDone
	if snapshotDone != nil {
		<-snapshotDone
	}
	slog.Info("analytics service stopped")
}
