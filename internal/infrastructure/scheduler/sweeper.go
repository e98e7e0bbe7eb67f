package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SweepFunc performs one maintenance pass and reports how many rows it
// touched. Hold expiry and ledger retention are both sweeps.
type SweepFunc func(ctx context.Context) (int64, error)

// SweeperConfig holds the cadence and per-run timeout of a sweeper
type SweeperConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultSweeperConfig returns the default sweeper cadence
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval: time.Minute,
		Timeout:  5 * time.Minute,
	}
}

// Sweeper runs a named maintenance task on a fixed interval. Failures are
// logged and the loop keeps going; a sweep that misses a beat is retried
// naturally on the next tick.
type Sweeper struct {
	name   string
	config SweeperConfig
	sweep  SweepFunc
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweeper creates a sweeper for the given task
func NewSweeper(name string, config SweeperConfig, sweep SweepFunc, logger *zap.Logger) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &Sweeper{
		name:   name,
		config: config,
		sweep:  sweep,
		logger: logger,
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("sweeper started",
		zap.String("task", s.name),
		zap.Duration("interval", s.config.Interval),
	)

	return nil
}

// Stop gracefully stops the sweep loop
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("sweeper stopped", zap.String("task", s.name))
		return nil
	case <-ctx.Done():
		s.logger.Warn("sweeper stop timed out", zap.String("task", s.name))
		return ctx.Err()
	}
}

// IsRunning returns whether the sweep loop is active
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerNow runs one sweep immediately, outside the regular cadence
func (s *Sweeper) TriggerNow(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.runOnce(ctx)
	}()

	return nil
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	started := time.Now()
	affected, err := s.sweep(runCtx)
	duration := time.Since(started)

	if err != nil {
		s.logger.Error("sweep failed",
			zap.String("task", s.name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	if affected > 0 {
		s.logger.Info("sweep completed",
			zap.String("task", s.name),
			zap.Int64("affected", affected),
			zap.Duration("duration", duration),
		)
	}
}
