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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/dialect"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/field"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/resilience"
)

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search-dialect service", "port", cfg.Server.Port, "fields", len(cfg.Fields))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	registry, err := field.FromConfig(cfg.Fields)
	if err != nil {
		fatal("invalid field configuration", err)
	}
	engine, err := indexer.NewEngine(cfg.Indexer, registry, m)
	if err != nil {
		fatal("failed to open index", err)
	}
	defer engine.Close()
	engine.StartFlushLoop(ctx)
	slog.Info("index engine ready", "data_dir", cfg.Indexer.DataDir, "docs", engine.DocCount())

	compiler, err := dialect.New(registry, cfg.Dialect, m)
	if err != nil {
		fatal("failed to build dialect compiler", err)
	}
	patterns, err := matcher.NewPatternCache(cfg.Dialect.PatternCacheSize)
	if err != nil {
		fatal("failed to build pattern cache", err)
	}

	checker := health.NewChecker()
	checker.Register("index_engine", func(context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d segments, %d docs", len(engine.Readers()), engine.DocCount()),
		}
	})

	opts := executor.Options{Patterns: patterns}
	deps := handler.Deps{
		Parser:   parser.New(cfg.Dialect.DefaultField...),
		Compiler: compiler,
		Indexer:  engine,
		Metrics:  m,
	}

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		err = resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{
			MaxAttempts:    5,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       5 * time.Second,
			JitterFraction: 0.2,
		}, func(context.Context) error {
			var connErr error
			db, connErr = postgres.New(cfg.Postgres)
			return connErr
		})
		if err != nil {
			fatal("failed to connect to postgres", err)
		}
		defer db.Close()
		checker.Register("postgres", health.Ping(db.Ping, health.StatusDown))

		docs, err := docstore.NewPostgres(db, 0)
		if err != nil {
			fatal("failed to build document store", err)
		}
		if err := docs.EnsureSchema(ctx); err != nil {
			fatal("failed to prepare document store", err)
		}
		deps.Sink = docs
		if cfg.Search.DocStore == "postgres" {
			opts.Store = docs
		}
		slog.Info("postgres document store enabled", "host", cfg.Postgres.Host, "scorer_store", cfg.Search.DocStore)
	}

	exec, err := executor.New(engine, registry, opts, m)
	if err != nil {
		fatal("failed to build executor", err)
	}
	deps.Executor = exec

	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis, 3*time.Second)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			checker.Register("redis", health.Static(health.StatusDegraded, "unavailable at startup"))
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
			})
			deps.Cache = cache.New(cache.NewGuarded(redisClient, breaker), cfg.Redis, m).WithComputeTimeout(cfg.Search.Timeout)
			checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	embedded := cfg.Analytics.Mode == "embedded"
	agg := analytics.NewAggregator()
	var publisher analytics.Publisher = agg
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.AnalyticsEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		publisher = producer

		if embedded {
			consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(agg))
			defer consumer.Close()
			go func() {
				if err := consumer.Start(ctx); err != nil {
					slog.Error("analytics consumer stopped", "error", err)
				}
			}()
		}
		slog.Info("analytics events routed through kafka", "topic", topic, "mode", cfg.Analytics.Mode)
	}
	collector := analytics.NewCollector(publisher, cfg.Analytics.BufferSize)
	collector.Start(ctx)
	defer collector.Close()
	deps.Collector = collector

	var snapshots analytics.SnapshotReader
	if db != nil && embedded {
		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			fatal("failed to prepare analytics store", err)
		}
		store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		snapshots = store
	}

	h := handler.New(deps, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	mux := http.NewServeMux()
	h.Routes(mux)
	if embedded {
		analytics.NewHandler(agg, snapshots).Routes(mux)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
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
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// in-flight handlers may still track events; the collector closes after them
	<-shutdownDone

	slog.Info("search service stopped")
}
