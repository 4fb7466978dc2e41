package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/entitle/pkg/api"
	"github.com/platinummonkey/entitle/pkg/async"
	"github.com/platinummonkey/entitle/pkg/audit"
	"github.com/platinummonkey/entitle/pkg/config"
	"github.com/platinummonkey/entitle/pkg/httputil"
	"github.com/platinummonkey/entitle/pkg/middleware"
	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
	"github.com/platinummonkey/entitle/pkg/refresher"
	"github.com/platinummonkey/entitle/pkg/storage"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	// Metrics
	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	// Tracing
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}
	if providers != nil {
		shutdown.Register("otel", providers.Shutdown)
	}

	// Storage
	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	shutdown.Register("storage", func(context.Context) error { return store.Close() })

	catalog, err := permission.LoadRegistry(cfg.Permissions.CatalogFile)
	if err != nil {
		return err
	}
	logger.WithField("permissions", catalog.Len()).Info("Permission catalog loaded")

	health := observability.NewHealthChecker(cfg.Observability.OTelServiceVersion, observability.Dependency{
		Name:     "storage",
		Critical: true,
		Ping:     store.Ping,
	})

	var redisClient *redis.Client
	if cfg.Audit.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Audit.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		health.Add(observability.RedisDependency(redisClient))
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	// Audit
	sink, err := auditSink(cfg, store, redisClient, shutdown, logger)
	if err != nil {
		return err
	}
	recorder := audit.NewRecorder(sink,
		audit.WithLogger(logger),
		audit.WithMetrics(metrics),
		audit.WithSinkName("audit"),
	)

	// Permission engine
	opts := []rbac.Option{
		rbac.WithLogger(logger),
		rbac.WithMetrics(metrics),
		rbac.WithCacheTTL(cfg.Permissions.CacheTTL),
		rbac.WithRecorder(recorder),
	}
	checker := rbac.NewPermissionChecker(store, catalog, opts...)
	service := rbac.NewService(store, checker, opts...)
	if err := service.SeedCatalog(ctx); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	// Background jobs
	if cfg.Refresh.Enabled {
		sweeper := refresher.New(store, checker, refresher.Config{
			TTL:   cfg.Permissions.CacheTTL,
			Batch: cfg.Refresh.Batch,
		}, refresher.WithLogger(logger), refresher.WithMetrics(metrics))
		if err := sweeper.Start(cfg.Refresh.Schedule); err != nil {
			return err
		}
		shutdown.Register("refresher", sweeper.Stop)

		// Catch up on anything that went stale while the server was down.
		async.SafeGo(ctx, logger, time.Minute, "startup sweep", func(ctx context.Context) error {
			_, err := sweeper.RunOnce(ctx)
			return err
		})
	}
	if cfg.Audit.S3.Bucket != "" {
		stop, err := scheduleArchive(ctx, cfg, store, logger)
		if err != nil {
			return err
		}
		shutdown.Register("audit-archive", stop)
	}

	// HTTP
	apiServer := api.NewServer(checker, service, logger)
	apiServer.Router().Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(metrics)))
	if limiter := rateLimiter(ctx, cfg, redisClient); limiter != nil {
		apiServer.Router().Use(mux.MiddlewareFunc(middleware.RateLimit(limiter, logger)))
	}

	root := mux.NewRouter()
	root.HandleFunc("/healthz", health.Liveness).Methods("GET")
	root.HandleFunc("/readyz", health.Readiness).Methods("GET")
	if metrics != nil {
		root.Handle("/metrics", observability.MetricsHandler(registry)).Methods("GET")
	}
	root.PathPrefix("/").Handler(otelhttp.NewHandler(apiServer, "entitle-api"))

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		httputil.MaxBytesMiddleware(1<<20),
	)(root)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.Register("http", srv.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":    srv.Addr,
			"storage": cfg.Storage.Type,
		}).Info("Starting entitle server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitCtx, stopWait := context.WithCancel(ctx)
	defer stopWait()
	go func() {
		if err, ok := <-serveErr; ok && err != nil {
			logger.WithError(err).Error("HTTP server failed")
			stopWait()
		}
	}()

	if err := shutdown.Wait(waitCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// auditSink fans entries out to the store and any configured Redis stream or file
func auditSink(cfg *config.Config, store rbac.MutationStore, redisClient *redis.Client,
	shutdown *observability.ShutdownManager, logger *observability.Logger) (audit.Sink, error) {
	sinks := []audit.Sink{store}

	if redisClient != nil {
		stream := audit.NewRedisStreamSink(redisClient, cfg.Audit.Stream)
		if cfg.Audit.StreamMaxLen > 0 {
			stream = stream.WithMaxLen(cfg.Audit.StreamMaxLen)
		}
		sinks = append(sinks, stream)
		logger.WithField("stream", cfg.Audit.Stream).Info("Publishing audit entries to Redis")
	}

	if cfg.Audit.File != "" {
		f, err := os.OpenFile(cfg.Audit.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		shutdown.Register("audit-file", func(context.Context) error { return f.Close() })
		sinks = append(sinks, audit.NewJSONSink(f))
	}

	return audit.NewMultiSink(sinks...), nil
}

// rateLimiter shares counters through Redis when it is configured
func rateLimiter(ctx context.Context, cfg *config.Config, redisClient *redis.Client) middleware.Limiter {
	if cfg.Server.RateLimitPerMinute == 0 {
		return nil
	}
	rl := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Server.RateLimitPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Server.RateLimitBurst,
	}
	if redisClient != nil {
		return middleware.NewRedisLimiter(redisClient, rl, "entitle:ratelimit")
	}
	local := middleware.NewLocalLimiter(rl)
	local.StartCleanup(ctx)
	return local
}

// scheduleArchive copies each finished UTC day of audit entries to S3
func scheduleArchive(ctx context.Context, cfg *config.Config, store audit.Lister, logger *observability.Logger) (observability.ShutdownFunc, error) {
	client, err := audit.NewS3Client(ctx, cfg.Audit.S3)
	if err != nil {
		return nil, err
	}
	archiver := audit.NewArchiver(store, client, cfg.Audit.S3.Bucket, cfg.Audit.S3.Prefix, logger)

	c := cron.New()
	if _, err := c.AddFunc(cfg.Audit.ArchiveSchedule, func() {
		defer observability.RecoverPanic(logger, "audit archive")
		if _, err := archiver.ArchivePreviousDay(ctx); err != nil {
			logger.WithError(err).Error("Audit archive failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid archive schedule: %w", err)
	}
	c.Start()
	logger.WithField("schedule", cfg.Audit.ArchiveSchedule).Info("Audit archive scheduled")

	return func(stopCtx context.Context) error {
		select {
		case <-c.Stop().Done():
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}, nil
}
