// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultDeadStockWindow is the no-movement window after which a SKU counts
// as dead stock.
const DefaultDeadStockWindow = 90 * 24 * time.Hour

const defaultHealthCollectionInterval = 5 * time.Minute

// BusinessMetrics provides business metrics for the inventory service.
// It tracks stock command activity, outbox delivery, and inventory health.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	commandsTotal        *Counter
	versionConflicts     *Counter
	eventsIngestedTotal  *Counter
	outboxPublishedTotal *Counter
	outboxFailuresTotal  *Counter
	cacheHitsTotal       *Counter
	cacheMissesTotal     *Counter

	commandDuration *Histogram

	trackedSkus     *Gauge
	outOfStockSkus  *Gauge
	deadStockSkus   *Gauge
	outboxBacklog   *Gauge
	outboxOldestAge *FloatGauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	healthProvider  InventoryHealthProvider
	deadStockWindow time.Duration
}

// InventoryHealthProvider supplies aggregate health figures for periodic
// metrics collection. The interface keeps the telemetry layer off the
// domain packages; implementations query storage directly.
type InventoryHealthProvider interface {
	// TrackedSkuCount returns the number of SKUs under management
	TrackedSkuCount(ctx context.Context) (int64, error)

	// OutOfStockSkuCount returns the number of SKUs with no sellable stock
	OutOfStockSkuCount(ctx context.Context) (int64, error)

	// DeadStockSkuCount returns the number of SKUs without ledger movement
	// since the given time
	DeadStockSkuCount(ctx context.Context, since time.Time) (int64, error)

	// OutboxBacklog returns the outbox row count per status
	OutboxBacklog(ctx context.Context) (map[string]int64, error)

	// OldestUndeliveredAge returns the age of the oldest outbox row still
	// awaiting delivery, zero when the backlog is drained
	OldestUndeliveredAge(ctx context.Context) (time.Duration, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	HealthProvider  InventoryHealthProvider
	DeadStockWindow time.Duration // Default: 90 days
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	deadStockWindow := cfg.DeadStockWindow
	if deadStockWindow <= 0 {
		deadStockWindow = DefaultDeadStockWindow
	}

	b := &instrumentBuilder{meter: cfg.Meter}
	bm := &BusinessMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		healthProvider:  cfg.HealthProvider,
		deadStockWindow: deadStockWindow,

		commandsTotal: b.counter("inventory_commands_total",
			"Total number of stock commands processed", "{commands}"),
		versionConflicts: b.counter("inventory_version_conflicts_total",
			"Total number of optimistic concurrency conflicts hit by commands", "{conflicts}"),
		commandDuration: b.histogram(HistogramOpts{
			Name:        "inventory_command_duration_seconds",
			Description: "Stock command duration including concurrency retries",
			Unit:        "s",
			Boundaries:  DBDurationBuckets,
		}),
		eventsIngestedTotal: b.counter("inventory_events_ingested_total",
			"Total number of consumed platform events", "{events}"),
		outboxPublishedTotal: b.counter("outbox_published_total",
			"Total number of outbox events delivered to the broker", "{events}"),
		outboxFailuresTotal: b.counter("outbox_publish_failures_total",
			"Total number of failed outbox publish attempts", "{events}"),
		cacheHitsTotal: b.counter("stock_cache_hits_total",
			"Total number of stock level reads served from cache", "{lookups}"),
		cacheMissesTotal: b.counter("stock_cache_misses_total",
			"Total number of stock level reads that missed the cache", "{lookups}"),
		trackedSkus: b.gauge("inventory_tracked_skus",
			"Number of SKUs under management", "{skus}"),
		outOfStockSkus: b.gauge("inventory_out_of_stock_skus",
			"Number of SKUs with no sellable stock", "{skus}"),
		deadStockSkus: b.gauge("inventory_dead_stock_skus",
			"Number of SKUs without ledger movement inside the dead stock window", "{skus}"),
		outboxBacklog: b.gauge("outbox_backlog",
			"Number of outbox rows per status", "{events}"),
		outboxOldestAge: b.floatGauge("outbox_oldest_undelivered_age_seconds",
			"Age of the oldest outbox row still awaiting delivery", "s"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return bm, nil
}

// CommandResult labels the outcome of a stock command for metrics.
type CommandResult string

const (
	CommandResultOK       CommandResult = "ok"
	CommandResultRejected CommandResult = "rejected"
	CommandResultError    CommandResult = "error"
)

// RecordCommand records one processed stock command with its outcome and
// duration. This should be called from the application layer.
func (bm *BusinessMetrics) RecordCommand(ctx context.Context, command string, result CommandResult, elapsed time.Duration) {
	bm.commandsTotal.Inc(ctx,
		AttrCommand.String(command),
		AttrResult.String(string(result)),
	)
	bm.commandDuration.RecordDuration(ctx, elapsed,
		AttrCommand.String(command),
	)
}

// RecordVersionConflict records one optimistic concurrency conflict. Each
// conflicted save attempt counts, not just commands that exhaust retries.
func (bm *BusinessMetrics) RecordVersionConflict(ctx context.Context, command string) {
	bm.versionConflicts.Inc(ctx, AttrCommand.String(command))
}

// IngestResult labels the outcome of one consumed event for metrics.
type IngestResult string

const (
	IngestResultProcessed IngestResult = "processed"
	IngestResultDuplicate IngestResult = "duplicate"
	IngestResultRejected  IngestResult = "rejected"
	IngestResultError     IngestResult = "error"
)

// RecordEventIngested records one consumed platform event.
func (bm *BusinessMetrics) RecordEventIngested(ctx context.Context, eventType string, result IngestResult) {
	bm.eventsIngestedTotal.Inc(ctx,
		AttrEventType.String(eventType),
		AttrResult.String(string(result)),
	)
}

// RecordOutboxPublished records one outbox event delivered to the broker.
func (bm *BusinessMetrics) RecordOutboxPublished(ctx context.Context) {
	bm.outboxPublishedTotal.Inc(ctx)
}

// RecordOutboxPublishFailure records one failed outbox publish attempt.
func (bm *BusinessMetrics) RecordOutboxPublishFailure(ctx context.Context) {
	bm.outboxFailuresTotal.Inc(ctx)
}

// RecordCacheHit records a stock level read served from cache.
func (bm *BusinessMetrics) RecordCacheHit(ctx context.Context, tier string) {
	bm.cacheHitsTotal.Inc(ctx, AttrCacheTier.String(tier))
}

// RecordCacheMiss records a stock level read that missed the cache.
func (bm *BusinessMetrics) RecordCacheMiss(ctx context.Context, tier string) {
	bm.cacheMissesTotal.Inc(ctx, AttrCacheTier.String(tier))
}

// RecordTrackedSkus records the number of SKUs under management.
func (bm *BusinessMetrics) RecordTrackedSkus(ctx context.Context, count int64) {
	bm.trackedSkus.Record(ctx, count)
}

// RecordOutOfStockSkus records the number of SKUs with no sellable stock.
func (bm *BusinessMetrics) RecordOutOfStockSkus(ctx context.Context, count int64) {
	bm.outOfStockSkus.Record(ctx, count)
}

// RecordDeadStockSkus records the number of SKUs classified as dead stock.
func (bm *BusinessMetrics) RecordDeadStockSkus(ctx context.Context, count int64) {
	bm.deadStockSkus.Record(ctx, count)
}

// RecordOutboxBacklog records the outbox row count for one status.
func (bm *BusinessMetrics) RecordOutboxBacklog(ctx context.Context, status string, count int64) {
	bm.outboxBacklog.Record(ctx, count, AttrOutboxStatus.String(status))
}

// RecordOutboxOldestAge records the age of the oldest undelivered outbox row.
func (bm *BusinessMetrics) RecordOutboxOldestAge(ctx context.Context, age time.Duration) {
	bm.outboxOldestAge.Record(ctx, age.Seconds())
}

// StartPeriodicCollection starts the inventory health gauge sampler.
// Non-blocking; stops on Stop() or context cancellation. Repeated calls
// are ignored.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = defaultHealthCollectionInterval
		}
		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectHealthMetrics(ctx)
	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectHealthMetrics(ctx)
		}
	}
}

// collectHealthMetrics samples every inventory health gauge once. Each
// provider call fails independently; one failing figure never blocks
// the others.
func (bm *BusinessMetrics) collectHealthMetrics(ctx context.Context) {
	if bm.healthProvider == nil {
		bm.logger.Debug("No health provider configured, skipping health metrics collection")
		return
	}

	if tracked, err := bm.healthProvider.TrackedSkuCount(ctx); err != nil {
		bm.logger.Warn("Failed to count tracked SKUs", zap.Error(err))
	} else {
		bm.RecordTrackedSkus(ctx, tracked)
	}

	if outOfStock, err := bm.healthProvider.OutOfStockSkuCount(ctx); err != nil {
		bm.logger.Warn("Failed to count out-of-stock SKUs", zap.Error(err))
	} else {
		bm.RecordOutOfStockSkus(ctx, outOfStock)
	}

	since := time.Now().Add(-bm.deadStockWindow)
	if deadStock, err := bm.healthProvider.DeadStockSkuCount(ctx, since); err != nil {
		bm.logger.Warn("Failed to count dead stock SKUs", zap.Error(err))
	} else {
		bm.RecordDeadStockSkus(ctx, deadStock)
	}

	if backlog, err := bm.healthProvider.OutboxBacklog(ctx); err != nil {
		bm.logger.Warn("Failed to read outbox backlog", zap.Error(err))
	} else {
		for status, count := range backlog {
			bm.RecordOutboxBacklog(ctx, status, count)
		}
	}

	if age, err := bm.healthProvider.OldestUndeliveredAge(ctx); err != nil {
		bm.logger.Warn("Failed to read oldest undelivered outbox age", zap.Error(err))
	} else {
		bm.RecordOutboxOldestAge(ctx, age)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
