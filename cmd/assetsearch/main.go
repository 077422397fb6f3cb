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

	"github.com/velora-exchange/assetsearch/internal/analytics"
	"github.com/velora-exchange/assetsearch/internal/api"
	"github.com/velora-exchange/assetsearch/internal/catalog"
	"github.com/velora-exchange/assetsearch/internal/index"
	"github.com/velora-exchange/assetsearch/internal/search"
	searchcache "github.com/velora-exchange/assetsearch/internal/search/cache"
	"github.com/velora-exchange/assetsearch/pkg/config"
	"github.com/velora-exchange/assetsearch/pkg/health"
	"github.com/velora-exchange/assetsearch/pkg/kafka"
	"github.com/velora-exchange/assetsearch/pkg/logger"
	"github.com/velora-exchange/assetsearch/pkg/metrics"
	"github.com/velora-exchange/assetsearch/pkg/middleware"
	"github.com/velora-exchange/assetsearch/pkg/postgres"
	pkgredis "github.com/velora-exchange/assetsearch/pkg/redis"
	"github.com/velora-exchange/assetsearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting asset search service", "port", cfg.Server.Port)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := index.NewStore(cfg.Search.MinTokenLength)
	engine := search.NewEngine(store, cfg.Search)
	guard := search.NewGuard(engine)

	var catalogStore *catalog.Store
	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, starting with an empty index", "error", err)
	} else {
		defer pgClient.Close()
		catalogStore = catalog.NewStore(pgClient)
		err := resilience.Retry(ctx, "initial-catalog-load", resilience.RetryConfig{MaxAttempts: 5}, func() error {
			assets, err := catalogStore.LoadAssets(ctx)
			if err != nil {
				return err
			}
			return guard.Build(assets)
		})
		if err != nil {
			slog.Error("initial catalog load failed", "error", err)
			os.Exit(1)
		}
		stats := guard.Stats()
		slog.Info("index built from catalog", "assets", stats.Entries)
		if m != nil {
			m.SetIndexGauges(stats.Entries, stats.SymbolKeys, stats.NameKeys,
				stats.CategoryKeys, stats.TagKeys)
		}
	}

	var queryCache *searchcache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = searchcache.New(redisClient, cfg.Redis)
		slog.Info("query cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	var collector *analytics.Collector
	if len(cfg.Kafka.Brokers) > 0 {
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		collector = analytics.NewCollector(analyticsProducer, 10000)
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

		var invalidator catalog.Invalidator
		if queryCache != nil {
			invalidator = queryCache
		}
		assetConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AssetEvents,
			catalog.HandleEvent(guard, invalidator, m))
		go func() {
			if err := assetConsumer.Start(ctx); err != nil {
				slog.Error("asset consumer error", "error", err)
			}
		}()
		slog.Info("asset event consumer started", "topic", cfg.Kafka.Topics.AssetEvents)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats := guard.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d assets indexed", stats.Entries),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := api.New(guard, queryCache, collector, catalogStore, m, cfg.Search)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

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

	slog.Info("asset search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("asset search service stopped")
}
