package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/stock"
)

// SnapshotRunner captures snapshots for every tracked SKU. The application
// layer implements it; the trigger only decides when to fire.
type SnapshotRunner interface {
	CreateScheduledSnapshots(ctx context.Context, snapshotType stock.SnapshotType) error
}

// SnapshotTriggerConfig holds the cron specs for each snapshot schedule
type SnapshotTriggerConfig struct {
	DailySpec     string
	MonthlySpec   string
	YearEndSpec   string
	CheckInterval time.Duration
	RunTimeout    time.Duration
}

// DefaultSnapshotTriggerConfig returns the standard schedules: daily at
// midnight, monthly on the 1st, year-end on December 31st.
func DefaultSnapshotTriggerConfig() SnapshotTriggerConfig {
	return SnapshotTriggerConfig{
		DailySpec:     "0 0 * * *",
		MonthlySpec:   "0 0 1 * *",
		YearEndSpec:   "0 0 31 12 *",
		CheckInterval: time.Minute,
		RunTimeout:    30 * time.Minute,
	}
}

// snapshotSchedule pairs a parsed cron spec with the snapshot type it fires
type snapshotSchedule struct {
	name string
	spec *CronSpec
	typ  stock.SnapshotType
}

// SnapshotCronTrigger fires scheduled snapshot runs. It polls the clock at
// CheckInterval and fires each schedule at most once per matching minute,
// so a restart inside that minute cannot double-capture.
type SnapshotCronTrigger struct {
	config    SnapshotTriggerConfig
	runner    SnapshotRunner
	schedules []snapshotSchedule
	logger    *zap.Logger

	now func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastFired map[string]string
}

// NewSnapshotCronTrigger parses the configured cron specs and builds the
// trigger. A malformed spec fails construction rather than silently never
// firing.
func NewSnapshotCronTrigger(
	config SnapshotTriggerConfig,
	runner SnapshotRunner,
	logger *zap.Logger,
) (*SnapshotCronTrigger, error) {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 30 * time.Minute
	}

	entries := []struct {
		name string
		expr string
		typ  stock.SnapshotType
	}{
		{"daily", config.DailySpec, stock.SnapshotTypeDaily},
		{"monthly", config.MonthlySpec, stock.SnapshotTypeMonthly},
		{"year-end", config.YearEndSpec, stock.SnapshotTypeYearEnd},
	}

	schedules := make([]snapshotSchedule, 0, len(entries))
	for _, e := range entries {
		spec, err := ParseCronSpec(e.expr)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, snapshotSchedule{name: e.name, spec: spec, typ: e.typ})
	}

	return &SnapshotCronTrigger{
		config:    config,
		runner:    runner,
		schedules: schedules,
		logger:    logger,
		now:       time.Now,
		lastFired: make(map[string]string),
	}, nil
}

// Start starts the trigger loop
func (c *SnapshotCronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("snapshot trigger started",
		zap.String("daily", c.config.DailySpec),
		zap.String("monthly", c.config.MonthlySpec),
		zap.String("year_end", c.config.YearEndSpec),
		zap.Duration("check_interval", c.config.CheckInterval),
	)

	return nil
}

// Stop gracefully stops the trigger loop
func (c *SnapshotCronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("snapshot trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SnapshotCronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger fires every schedule matching the current minute that has
// not fired for it yet. Year-end takes precedence over monthly and monthly
// over daily when several match the same instant, so one run covers the
// coarsest period.
func (c *SnapshotCronTrigger) checkAndTrigger(ctx context.Context) {
	now := c.now()
	minuteKey := now.Format("2006-01-02 15:04")

	var due []snapshotSchedule
	c.mu.Lock()
	for _, schedule := range c.schedules {
		if !schedule.spec.Matches(now) {
			continue
		}
		if c.lastFired[schedule.name] == minuteKey {
			continue
		}
		c.lastFired[schedule.name] = minuteKey
		due = append(due, schedule)
	}
	c.mu.Unlock()

	if len(due) == 0 {
		return
	}

	// Schedules are ordered daily, monthly, year-end; the last match is the
	// coarsest and wins.
	fire := due[len(due)-1]
	c.runSnapshot(ctx, fire)
}

func (c *SnapshotCronTrigger) runSnapshot(ctx context.Context, schedule snapshotSchedule) {
	c.logger.Info("snapshot schedule fired",
		zap.String("schedule", schedule.name),
		zap.String("snapshot_type", string(schedule.typ)),
	)

	runCtx, cancel := context.WithTimeout(ctx, c.config.RunTimeout)
	defer cancel()

	started := time.Now()
	if err := c.runner.CreateScheduledSnapshots(runCtx, schedule.typ); err != nil {
		c.logger.Error("scheduled snapshot run failed",
			zap.String("schedule", schedule.name),
			zap.Duration("duration", time.Since(started)),
			zap.Error(err),
		)
		return
	}

	c.logger.Info("scheduled snapshot run completed",
		zap.String("schedule", schedule.name),
		zap.Duration("duration", time.Since(started)),
	)
}

// TriggerManual fires one snapshot run of the given type immediately
func (c *SnapshotCronTrigger) TriggerManual(ctx context.Context, snapshotType stock.SnapshotType) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.runSnapshot(ctx, snapshotSchedule{name: "manual", typ: snapshotType})
	}()

	return nil
}
