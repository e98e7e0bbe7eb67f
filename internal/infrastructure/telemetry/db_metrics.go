package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultPoolStatsInterval  = 15 * time.Second
)

// DBMetricsConfig controls query and connection pool metric
// collection.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

// DefaultDBMetricsConfig returns the default metric configuration.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: defaultSlowQueryThreshold,
		PoolStatsInterval:  defaultPoolStatsInterval,
	}
}

// DBMetrics owns the database metric instruments plus the pool stats
// sampling goroutine.
type DBMetrics struct {
	poolConnections    *Gauge
	poolConnectionsMax *Gauge
	queryTotal         *Counter
	queryDuration      *Histogram
	slowQueryTotal     *Counter

	config   DBMetricsConfig
	logger   *zap.Logger
	sqlDB    *sql.DB
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopOnce sync.Once
}

// instrumentBuilder accumulates the first creation error so the
// constructor reads as a flat list instead of five error checks.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) counter(name, desc, unit string) *Counter {
	if b.err != nil {
		return nil
	}
	c, err := NewCounter(b.meter, name, desc, unit)
	b.err = err
	return c
}

func (b *instrumentBuilder) gauge(name, desc, unit string) *Gauge {
	if b.err != nil {
		return nil
	}
	g, err := NewGauge(b.meter, name, desc, unit)
	b.err = err
	return g
}

func (b *instrumentBuilder) floatGauge(name, desc, unit string) *FloatGauge {
	if b.err != nil {
		return nil
	}
	g, err := NewFloatGauge(b.meter, name, desc, unit)
	b.err = err
	return g
}

func (b *instrumentBuilder) histogram(opts HistogramOpts) *Histogram {
	if b.err != nil {
		return nil
	}
	h, err := NewHistogram(b.meter, opts)
	b.err = err
	return h
}

// NewDBMetrics creates the instruments on the given meter. Zero-value
// thresholds fall back to the defaults.
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = defaultSlowQueryThreshold
	}
	if cfg.PoolStatsInterval == 0 {
		cfg.PoolStatsInterval = defaultPoolStatsInterval
	}

	b := &instrumentBuilder{meter: meter}
	m := &DBMetrics{
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),

		poolConnections: b.gauge("db_pool_connections",
			"Number of connections in the pool by state", "{connection}"),
		poolConnectionsMax: b.gauge("db_pool_connections_max",
			"Maximum number of connections in the pool", "{connection}"),
		queryTotal: b.counter("db_query_total",
			"Total number of database queries by operation type", "{query}"),
		queryDuration: b.histogram(HistogramOpts{
			Name:        "db_query_duration_seconds",
			Description: "Database query latency distribution in seconds",
			Unit:        "s",
			Boundaries:  DBDurationBuckets,
		}),
		slowQueryTotal: b.counter("db_slow_query_total",
			"Total number of database queries over the slow threshold", "{query}"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// SetSQLDB provides the sql.DB handle sampled for pool stats. Must be
// set before StartPoolStatsCollection.
func (m *DBMetrics) SetSQLDB(sqlDB *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sqlDB = sqlDB
}

func (m *DBMetrics) db() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sqlDB
}

// StartPoolStatsCollection launches the periodic pool stats sampler.
// It stops on Stop() or when ctx is cancelled.
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context) {
	if m.db() == nil {
		m.logger.Warn("pool stats collection skipped, sql.DB not set")
		return
	}

	m.wg.Add(1)
	go m.samplePoolStats(ctx)

	m.logger.Info("pool stats collection started",
		zap.Duration("interval", m.config.PoolStatsInterval),
	)
}

func (m *DBMetrics) samplePoolStats(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PoolStatsInterval)
	defer ticker.Stop()

	m.collectPoolStats(ctx)
	for {
		select {
		case <-ticker.C:
			m.collectPoolStats(ctx)
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// collectPoolStats samples sql.DB.Stats into the pool gauges. Idle
// and in_use sum to open; WaitCount is cumulative so it is left out.
func (m *DBMetrics) collectPoolStats(ctx context.Context) {
	sqlDB := m.db()
	if sqlDB == nil {
		return
	}

	stats := sqlDB.Stats()
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop terminates the pool stats goroutine. Safe to call twice.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
		m.logger.Debug("database metrics stopped")
	})
}

// RecordQuery records one completed query: count, latency, and the
// slow counter when it exceeds the threshold.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation string, table string, duration time.Duration, err error) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}

	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))

	if duration > m.config.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// DBMetricsPlugin feeds gorm operations into DBMetrics.
type DBMetricsPlugin struct {
	metrics *DBMetrics
	logger  *zap.Logger
}

// NewDBMetricsPlugin creates the gorm plugin around existing metrics.
func NewDBMetricsPlugin(metrics *DBMetrics, logger *zap.Logger) *DBMetricsPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBMetricsPlugin{metrics: metrics, logger: logger}
}

// Name implements gorm.Plugin.
func (p *DBMetricsPlugin) Name() string {
	return "db_metrics"
}

// Initialize registers the timing callbacks around every gorm
// operation. Row and Raw statements carry arbitrary SQL, so their
// operation label is sniffed from the statement text.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, dbMetricsStartTimeKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			if operation == "" {
				operation = detectOperationType(db.Statement.SQL.String())
			}
			p.recordMetrics(db, operation)
		}
	}

	type register = func(name string, fn func(*gorm.DB)) error
	hooks := []struct {
		op        string
		operation string
		beforeReg register
		afterReg  register
	}{
		{"create", "INSERT", db.Callback().Create().Before("gorm:create").Register, db.Callback().Create().After("gorm:create").Register},
		{"query", "SELECT", db.Callback().Query().Before("gorm:query").Register, db.Callback().Query().After("gorm:query").Register},
		{"update", "UPDATE", db.Callback().Update().Before("gorm:update").Register, db.Callback().Update().After("gorm:update").Register},
		{"delete", "DELETE", db.Callback().Delete().Before("gorm:delete").Register, db.Callback().Delete().After("gorm:delete").Register},
		{"row", "", db.Callback().Row().Before("gorm:row").Register, db.Callback().Row().After("gorm:row").Register},
		{"raw", "", db.Callback().Raw().Before("gorm:raw").Register, db.Callback().Raw().After("gorm:raw").Register},
	}

	for _, h := range hooks {
		if err := h.beforeReg("db_metrics:before_"+h.op, before); err != nil {
			return err
		}
		if err := h.afterReg("db_metrics:after_"+h.op, after(h.operation)); err != nil {
			return err
		}
	}

	p.logger.Info("database metrics plugin initialized")
	return nil
}

func (p *DBMetricsPlugin) recordMetrics(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var duration time.Duration
	if startTime, ok := ctx.Value(dbMetricsStartTimeKey).(time.Time); ok {
		duration = time.Since(startTime)
	}

	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, duration, db.Error)
}

func detectOperationType(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))

	switch {
	case strings.HasPrefix(sql, "SELECT"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	default:
		return "OTHER"
	}
}

type dbMetricsContextKey string

const dbMetricsStartTimeKey dbMetricsContextKey = "db_metrics_start_time"
