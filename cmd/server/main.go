package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	eventapp "github.com/paklog/inventory-service/internal/application/event"
	stockapp "github.com/paklog/inventory-service/internal/application/stock"
	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
	"github.com/paklog/inventory-service/internal/infrastructure/cache"
	"github.com/paklog/inventory-service/internal/infrastructure/config"
	"github.com/paklog/inventory-service/internal/infrastructure/event"
	"github.com/paklog/inventory-service/internal/infrastructure/logger"
	"github.com/paklog/inventory-service/internal/infrastructure/persistence"
	"github.com/paklog/inventory-service/internal/infrastructure/scheduler"
	"github.com/paklog/inventory-service/internal/infrastructure/telemetry"
	"github.com/paklog/inventory-service/internal/interfaces/http/handler"
	"github.com/paklog/inventory-service/internal/interfaces/http/middleware"
	"github.com/paklog/inventory-service/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	ctx := context.Background()

	// OpenTelemetry providers. Each is a no-op when telemetry is disabled,
	// so the wiring below stays unconditional.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = meterProvider.Shutdown(shutdownCtx)
	}()

	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize logs provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = logsProvider.Shutdown(shutdownCtx)
	}()

	// Bridge zap to the OTEL collector alongside the configured output
	if logsProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: logsProvider,
			Level:          zapcore.InfoLevel,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.ProfilingEndpoint,
		ApplicationName:     cfg.Telemetry.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize profiler", zap.Error(err))
	}
	defer func() { _ = profiler.Stop() }()

	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("failed to enable span profiles", zap.Error(err))
		}
	}

	// Database connection with the zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	log.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	meter := meterProvider.Meter("inventory-service")

	// Database query tracing and pool metrics
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracingCfg := telemetry.DefaultDBTracingConfig()
		dbTracingCfg.Enabled = true
		if err := telemetry.NewDBTracingPlugin(dbTracingCfg, log).RegisterOtelGorm(db.DB); err != nil {
			log.Warn("failed to register database tracing", zap.Error(err))
		}
	}
	if meterProvider.IsEnabled() {
		dbMetrics, err := telemetry.NewDBMetrics(meter, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("failed to initialize database metrics", zap.Error(err))
		} else {
			if sqlDB, err := db.DB.DB(); err == nil {
				dbMetrics.SetSQLDB(sqlDB)
				dbMetrics.StartPoolStatsCollection(ctx)
				defer dbMetrics.Stop()
			}
			if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
				log.Warn("failed to register database metrics plugin", zap.Error(err))
			}
		}
	}

	// Repositories
	stockRepo := persistence.NewGormProductStockRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	snapshotRepo := persistence.NewGormSnapshotRepository(db.DB)
	serialRepo := persistence.NewGormSerialNumberRepository(db.DB)
	transferRepo := persistence.NewGormStockTransferRepository(db.DB)
	assemblyRepo := persistence.NewGormAssemblyOrderRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Event serialization and the transactional outbox
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)
	outboxPublisher := event.NewOutboxPublisher(eventSerializer)
	txScope := persistence.NewGormTransactionScope(db.DB, outboxPublisher)

	// Stock level read cache: Redis when enabled, in-process otherwise.
	// A negative TTL disables caching entirely.
	var levelCache stock.StockLevelCache
	if cfg.Redis.StockLevelTTL < 0 {
		levelCache = cache.NewNoopStockLevelCache()
	} else if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisStockLevelCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cache.WithLevelCacheLogger(log))
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-memory stock level cache", zap.Error(err))
			levelCache = cache.NewInMemoryStockLevelCache()
		} else {
			levelCache = redisCache
		}
	} else {
		levelCache = cache.NewInMemoryStockLevelCache()
	}

	// Idempotency store for consumed platform events
	idempotencyFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	var idempotencyStore shared.IdempotencyStore
	if cfg.Redis.Enabled {
		idempotencyStore, err = idempotencyFactory.CreateStore()
		if err != nil {
			log.Fatal("failed to create idempotency store", zap.Error(err))
		}
	} else {
		idempotencyStore = idempotencyFactory.CreateInMemoryStore()
	}
	defer func() { _ = idempotencyStore.Close() }()

	// Application services
	retryPolicy := stockapp.RetryPolicy{
		MaxAttempts: cfg.Command.RetryMaxAttempts,
		BaseDelay:   cfg.Command.RetryBaseDelay,
		MaxDelay:    cfg.Command.RetryMaxDelay,
	}
	commandService := stockapp.NewCommandService(txScope, levelCache, retryPolicy, log)
	queryService := stockapp.NewQueryService(stockRepo, ledgerRepo, levelCache, cfg.Redis.StockLevelTTL, 0, log)
	transferService := stockapp.NewTransferService(commandService, transferRepo, log)
	assemblyService := stockapp.NewAssemblyService(commandService, assemblyRepo, log)
	snapshotRetention := time.Duration(cfg.Snapshot.RetentionDays) * 24 * time.Hour
	snapshotService := stockapp.NewSnapshotService(txScope, stockRepo, snapshotRepo, outboxRepo, snapshotRetention, log)
	bulkAllocator := stockapp.NewBulkAllocator(commandService, cfg.Bulk.AllocationConcurrency, log)
	ledgerRetention := time.Duration(cfg.Ledger.RetentionDays) * 24 * time.Hour
	maintenanceService := stockapp.NewMaintenanceService(commandService, stockRepo, ledgerRepo, ledgerRetention, log)
	ingestService := stockapp.NewIngestService(commandService, idempotencyStore, 0, nil, log)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Business metrics with periodic inventory health collection
	var businessMetrics *telemetry.BusinessMetrics
	if meterProvider.IsEnabled() {
		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:           meter,
			Logger:          log,
			HealthProvider:  telemetry.NewGormInventoryHealthProvider(db.DB),
			DeadStockWindow: time.Duration(cfg.Telemetry.DeadStockWindowDays) * 24 * time.Hour,
		})
		if err != nil {
			log.Fatal("failed to initialize business metrics", zap.Error(err))
		}
		commandService.SetBusinessMetrics(businessMetrics)
		queryService.SetBusinessMetrics(businessMetrics)
		ingestService.SetBusinessMetrics(businessMetrics)
		businessMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
		defer businessMetrics.Stop()
	}

	// Event bus and outbox delivery
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("failed to start event bus", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = eventBus.Stop(stopCtx)
	}()

	// The delivery side decodes through the versioned serializer so that
	// envelopes written by older releases are upgraded before handlers
	// see them.
	versionedSerializer := event.NewVersionedSerializer(log)
	event.RegisterAllEvents(versionedSerializer)

	lowStockMonitor := stockapp.NewLowStockMonitor(
		cfg.Alert.LowStockThreshold,
		stockapp.NewLoggingLowStockNotifier(log),
		log,
	)
	eventBus.Subscribe(event.NewIdempotentHandler(lowStockMonitor, idempotencyStore, log))

	var envelopePublisher event.EnvelopePublisher = event.NewBusEnvelopePublisher(eventBus, versionedSerializer)
	if businessMetrics != nil {
		envelopePublisher = event.NewInstrumentedEnvelopePublisher(envelopePublisher, businessMetrics)
	}

	outboxProcessor := event.NewOutboxProcessor(outboxRepo, envelopePublisher, event.OutboxProcessorConfig{
		BatchSize:        cfg.Outbox.BatchSize,
		PollInterval:     cfg.Outbox.PollingInterval,
		CleanupEnabled:   true,
		CleanupRetention: time.Duration(cfg.Outbox.RetentionDays) * 24 * time.Hour,
		CleanupInterval:  cfg.Outbox.CleanupInterval,
	}, log)
	if err := outboxProcessor.Start(ctx); err != nil {
		log.Fatal("failed to start outbox processor", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = outboxProcessor.Stop(stopCtx)
	}()

	// Background schedules: snapshot cron, hold expiry, retention sweeps
	snapshotTrigger, err := scheduler.NewSnapshotCronTrigger(scheduler.SnapshotTriggerConfig{
		DailySpec:     cfg.Snapshot.Daily,
		MonthlySpec:   cfg.Snapshot.Monthly,
		YearEndSpec:   cfg.Snapshot.YearEnd,
		CheckInterval: cfg.Snapshot.CheckInterval,
	}, snapshotService, log)
	if err != nil {
		log.Fatal("invalid snapshot schedule", zap.Error(err))
	}
	if err := snapshotTrigger.Start(ctx); err != nil {
		log.Fatal("failed to start snapshot trigger", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = snapshotTrigger.Stop(stopCtx)
	}()

	sweepers := []*scheduler.Sweeper{
		scheduler.NewSweeper("hold-expiry", scheduler.SweeperConfig{
			Interval: cfg.Hold.ExpirySweepInterval,
		}, maintenanceService.ReleaseExpiredHolds, log),
		scheduler.NewSweeper("ledger-retention", scheduler.SweeperConfig{
			Interval: 24 * time.Hour,
		}, maintenanceService.PurgeLedger, log),
		scheduler.NewSweeper("snapshot-retention", scheduler.SweeperConfig{
			Interval: 24 * time.Hour,
		}, snapshotService.PurgeExpiredSnapshots, log),
	}
	for _, sw := range sweepers {
		if err := sw.Start(ctx); err != nil {
			log.Fatal("failed to start sweeper", zap.Error(err))
		}
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, sw := range sweepers {
			_ = sw.Stop(stopCtx)
		}
	}()

	// HTTP handlers
	stockHandler := handler.NewStockHandler(commandService, queryService, bulkAllocator)
	transferHandler := handler.NewTransferHandler(transferService)
	assemblyHandler := handler.NewAssemblyHandler(assemblyService)
	serialHandler := handler.NewSerialHandler(commandService, serialRepo)
	snapshotHandler := handler.NewSnapshotHandler(snapshotService)
	outboxHandler := handler.NewOutboxHandler(outboxService)
	eventsHandler := handler.NewEventsHandler(ingestService)
	systemHandler := handler.NewSystemHandler()

	// Gin engine and middleware stack
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("failed to set trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.Tracing())
		engine.Use(middleware.SpanErrorMarker())
	}
	engine.Use(middleware.HTTPMetricsWithMeter(meter, meterProvider.IsEnabled()))
	if profiler.IsEnabled() {
		engine.Use(middleware.Profiling())
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", healthHandler(db, log))

	// API routes
	stocks := router.NewDomainGroup("stocks", "/stocks").
		POST("", stockHandler.Create).
		GET("", stockHandler.List).
		GET("/:sku", stockHandler.Get).
		GET("/:sku/detail", stockHandler.GetDetail).
		GET("/:sku/serials", serialHandler.ListBySku).
		GET("/:sku/snapshots", snapshotHandler.ListBySku).
		GET("/:sku/at", snapshotHandler.ReplayAt).
		POST("/adjustments", stockHandler.Adjust).
		POST("/allocations", stockHandler.Allocate).
		POST("/allocations/bulk", stockHandler.AllocateBulk).
		POST("/deallocations", stockHandler.Deallocate).
		POST("/reservations", stockHandler.Reserve).
		POST("/receipts", stockHandler.Receive).
		POST("/picks", stockHandler.Pick).
		POST("/status-changes", stockHandler.ChangeStatus).
		POST("/holds", stockHandler.PlaceHold).
		POST("/holds/release", stockHandler.ReleaseHold).
		POST("/lots/allocations", stockHandler.AllocateFromLot).
		POST("/lots/status-changes", stockHandler.ChangeLotStatus).
		POST("/valuations", stockHandler.InitializeValuation).
		POST("/valuations/revaluations", stockHandler.Revalue).
		POST("/classifications", stockHandler.Reclassify)

	ledger := router.NewDomainGroup("ledger", "/ledger").
		GET("", stockHandler.GetLedger)

	health := router.NewDomainGroup("inventory-health", "/inventory-health").
		GET("", stockHandler.GetHealthMetrics)

	transfers := router.NewDomainGroup("transfers", "/transfers").
		POST("", transferHandler.Initiate).
		GET("", transferHandler.List).
		GET("/:id", transferHandler.Get).
		POST("/:id/in-transit", transferHandler.MarkInTransit).
		POST("/:id/complete", transferHandler.Complete).
		POST("/:id/cancel", transferHandler.Cancel)

	assemblies := router.NewDomainGroup("assemblies", "/assemblies").
		POST("", assemblyHandler.Create).
		GET("", assemblyHandler.List).
		GET("/:id", assemblyHandler.Get).
		POST("/:id/allocations", assemblyHandler.AllocateComponents).
		POST("/:id/start", assemblyHandler.Start).
		POST("/:id/complete", assemblyHandler.Complete).
		POST("/:id/cancel", assemblyHandler.Cancel)

	serials := router.NewDomainGroup("serials", "/serials").
		POST("", serialHandler.Receive).
		POST("/allocations", serialHandler.Allocate).
		POST("/shipments", serialHandler.Ship).
		GET("/:serial", serialHandler.Get)

	snapshots := router.NewDomainGroup("snapshots", "/snapshots").
		POST("", snapshotHandler.Create).
		GET("/:id", snapshotHandler.Get)

	events := router.NewDomainGroup("events", "/events").
		POST("", eventsHandler.Ingest)

	system := router.NewDomainGroup("system", "/system").
		GET("/info", systemHandler.GetSystemInfo).
		GET("/ping", systemHandler.Ping).
		GET("/outbox/dead", outboxHandler.ListDeadLetters).
		GET("/outbox/stats", outboxHandler.GetStats).
		GET("/outbox/:id", outboxHandler.GetEntry).
		POST("/outbox/:id/retry", outboxHandler.RetryEntry).
		POST("/outbox/dead/retry-all", outboxHandler.RetryAllDead)

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(stocks).
		Register(ledger).
		Register(health).
		Register(transfers).
		Register(assemblies).
		Register(serials).
		Register(snapshots).
		Register(events).
		Register(system).
		Setup()

	// HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Env),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// healthHandler reports liveness of the service and its database connection
func healthHandler(db *persistence.Database, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			log.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "down",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "up",
		})
	}
}
