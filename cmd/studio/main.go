// Command studio starts the resume studio HTTP service.
//
// The service extracts text from uploaded resumes, merges it into HTML
// templates through a language model, scores resumes against job
// descriptions, and renders projects to PDF with an external engine. Model
// output is cached in Redis when it is configured, and usage events are
// published to Kafka when brokers are configured.
//
// Usage:
//
//	go run ./cmd/studio [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/document"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/llm"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/render"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio/handler"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio/router"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/tracing"
)

// main wires the extractor, composer, renderer, optional Redis cache and
// Kafka collector into the studio router and serves it until SIGINT or
// SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	tracing.SetEnabled(cfg.Tracing.Enabled)
	slog.Info("starting studio service",
		"port", cfg.Server.Port,
		"llm_provider", cfg.LLM.Provider,
		"default_model", cfg.LLM.DefaultModel,
		"html_engine", cfg.Renderer.HTMLEngine,
		"tex_engine", cfg.Renderer.TeXEngine,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, nil)
		metricsServer.Start()
	}

	// Redis is optional: without it completions are still coalesced but
	// never stored.
	var (
		store       cache.Store
		redisClient *pkgredis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, completion caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			store = redisClient
			slog.Info("completion cache enabled", "addr", redisClient.Addr(), "ttl", cfg.Redis.CacheTTL)
		}
	}
	resultCache := cache.New(store, cfg.Redis.CacheTTL, m)
	var cacheAdmin handler.CacheAdmin
	if store != nil {
		cacheAdmin = resultCache
	}

	// Kafka is optional: a nil collector discards events.
	var (
		collector *analytics.Collector
		producer  *kafka.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.StudioEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, analytics.CollectorConfig{
			BufferSize:    cfg.Analytics.BufferSize,
			BatchSize:     cfg.Analytics.BatchSize,
			FlushInterval: cfg.Analytics.FlushInterval,
		})
		collector.Start(ctx)
		defer collector.Close()
	} else {
		slog.Info("no kafka brokers configured, analytics events disabled")
	}

	completer, err := newCompleter(cfg.LLM)
	if err != nil {
		slog.Error("failed to create llm client", "error", err)
		os.Exit(1)
	}
	composer := llm.NewComposer(completer, llm.Options{
		FallbackModels: cfg.LLM.FallbackModels,
		AttemptTimeout: cfg.LLM.RequestTimeout,
		Retry: resilience.RetryConfig{
			MaxAttempts:  cfg.LLM.Retry.MaxAttempts,
			InitialDelay: cfg.LLM.Retry.InitialDelay,
			MaxDelay:     cfg.LLM.Retry.MaxDelay,
		},
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.LLM.CircuitBreaker.FailureThreshold,
			ResetTimeout:     cfg.LLM.CircuitBreaker.ResetTimeout,
		},
		Cache:    resultCache,
		CacheKey: cache.Key,
		Metrics:  m,
	})
	renderer := render.NewRenderer(cfg.Renderer, m)
	if st := renderer.Status(); !st.Available {
		slog.Warn("no pdf engine installed, exports will fail", "engines", st.Engines)
	}

	h, err := handler.New(handler.Config{
		DefaultModel:           cfg.LLM.DefaultModel,
		FallbackAPIKey:         cfg.LLM.APIKey,
		TopN:                   cfg.Matcher.TopN,
		MaxUploadBytes:         cfg.Upload.MaxBytes,
		MaxJobDescriptionBytes: cfg.Upload.MaxJobDescriptionBytes,
	}, handler.Deps{
		Extractor: document.NewExtractor(m),
		Composer:  composer,
		Renderer:  renderer,
		Tracker:   collector,
		Cache:     cacheAdmin,
		Metrics:   m,
	})
	if err != nil {
		slog.Error("failed to create handler", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker("studio")
	checker.Register("renderer", health.Optional(renderer.Ready))
	checker.Register("llm", health.Optional(composer.Ready))
	if redisClient != nil {
		checker.Register("redis", health.Optional(redisClient.Ping))
	} else {
		checker.Register("redis", health.Optional(nil))
	}
	if producer != nil {
		checker.Register("kafka", health.Optional(producer.Ping))
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.Window)
		defer limiter.Stop()
	}

	chain := router.New(h, router.Options{
		Health:         checker,
		Limiter:        limiter,
		RateLimit:      cfg.RateLimit.RequestsPerWindow,
		AllowOrigins:   cfg.CORS.AllowOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        m,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
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
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("studio service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("studio service stopped",
		"events_published", collector.Published(),
		"events_dropped", collector.Dropped(),
	)
}

func newCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAI(cfg.BaseURL), nil
	case "gemini":
		return llm.NewGemini(cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
