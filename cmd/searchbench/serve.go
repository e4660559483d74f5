package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/store"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/searcher/corpora"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search and comparison HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting search service", "port", cfg.Server.Port, "database", cfg.Database.Driver)
	m := metrics.New()

	st, dbClient, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening corpus store: %w", err)
	}
	defer dbClient.Close()

	var (
		reportCache *cache.ReportCache
		redisClient *pkgredis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, report caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			reportCache = cache.New(redisClient, pkgredis.IsNilError, cfg.Redis.CacheTTL, cache.WithMetrics(m))
			slog.Info("report cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	var publisher analytics.Publisher = aggregator
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.EvaluationTopic)
		defer producer.Close()
		publisher = producer
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.EvaluationTopic, analytics.HandleMessage(aggregator))
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics events routed through kafka", "topic", cfg.Kafka.EvaluationTopic)
	}
	collector := analytics.NewCollector(publisher, analytics.CollectorConfig{}, m)
	collector.Start(ctx)
	defer collector.Close()

	comp, err := comparatorFromConfig(cfg, nil, comparison.WithMetrics(m), comparison.WithObserver(collector))
	if err != nil {
		return err
	}
	snapshots := corpora.NewManager(st, comp.Registry(), cfg.Evaluation.CorpusLimit, m)
	if ds, err := store.ParseDataset(cfg.Evaluation.Dataset); err == nil {
		if _, err := snapshots.Get(ctx, ds); err != nil {
			slog.Warn("default dataset not loaded at startup", "dataset", ds, "error", err)
		}
	}

	checker := health.NewChecker()
	checker.Register("database", health.PingCheck(dbClient.Ping, true))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, false))
	}

	h := handler.New(snapshots, comp, st, reportCache, collector, handler.Config{
		DefaultLimit:   cfg.Evaluation.Limit,
		DefaultDataset: cfg.Evaluation.Dataset,
		Metrics:        m,
	})
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health", checker.LiveHandler())
	mux.HandleFunc("GET /ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Server.ShutdownTimeout)
	}

	log := logger.WithComponent("http")
	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logging(log),
		middleware.Recover(log),
		middleware.Metrics(m),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowOrigins = cfg.Server.CORSOrigins
		mws = append(mws, middleware.CORS(cors))
	}
	if cfg.Server.CompareRateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.CompareRateLimit, time.Minute)
		go limiter.RunCleanup(ctx)
		mws = append(mws, middleware.RateLimit(limiter, "/api/v1/compare"))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))
	chain := middleware.Chain(mux, mws...)

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
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("search service stopped")
	return nil
}
