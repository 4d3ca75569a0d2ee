// Command analytics aggregates search events published by searchers running
// with analytics.mode "remote". It consumes the analytics topic, keeps the
// running stats in memory, snapshots them to Postgres when enabled and
// serves them on GET /api/v1/analytics.
//
// Usage:
//
//	analytics [-config analytics.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled {
		slog.Error("the analytics service consumes from kafka; set kafka.enabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	topic := cfg.Kafka.Topics.AnalyticsEvents
	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(agg))
	defer consumer.Close()

	checker := health.NewChecker()
	checker.Register("kafka_consumer", func(context.Context) health.ComponentHealth {
		handled, rejected := consumer.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("topic %s: %d handled, %d rejected", topic, handled, rejected),
		}
	})

	var snapshots analytics.SnapshotReader
	if cfg.Postgres.Enabled {
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
		}, func(context.Context) error {
			var connErr error
			db, connErr = postgres.New(cfg.Postgres)
			return connErr
		})
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		checker.Register("postgres", health.Ping(db.Ping, health.StatusDegraded))

		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare analytics store", "error", err)
			os.Exit(1)
		}
		store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		snapshots = store
	}

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()
	slog.Info("analytics aggregator consuming", "topic", topic, "group", cfg.Kafka.ConsumerGroup)

	mux := http.NewServeMux()
	analytics.NewHandler(agg, snapshots).Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	<-consumerDone
	slog.Info("analytics service stopped")
}
