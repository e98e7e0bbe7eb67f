package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
)

// staleClaimAge is how long a row may sit in PROCESSING before a tick
// assumes the claiming instance died and returns it to the pool.
const staleClaimAge = time.Minute

// EnvelopePublisher is the outbound transport for wrapped events
type EnvelopePublisher interface {
	PublishEnvelope(ctx context.Context, env *Envelope) error
}

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 30 * 24 * time.Hour,
		CleanupInterval:  1 * time.Hour,
	}
}

// OutboxProcessor drains the outbox in the background. Each tick claims a
// batch of undelivered rows, wraps them in the canonical envelope, and hands
// them to the transport with per-aggregate FIFO: rows sharing an aggregate
// id are delivered in (created_at, id) order, and the first failure in a
// group holds back the rest of that group without stalling other aggregates.
type OutboxProcessor struct {
	repo      shared.OutboxRepository
	publisher EnvelopePublisher
	config    OutboxProcessorConfig
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	publisher EnvelopePublisher,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
}

// Start starts the background processing
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.processLoop(ctx)

	if p.config.CleanupEnabled {
		p.wg.Add(1)
		go p.cleanupLoop(ctx)
	}

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)

	return nil
}

// Stop gracefully stops the processor
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processLoop is the main processing loop
func (p *OutboxProcessor) processLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessTick(ctx)
		}
	}
}

// ProcessTick runs one publishing round: reclaim orphaned claims, select
// due rows, and deliver them grouped per aggregate. Exported so tests and
// an on-demand admin flush can drive the processor without the ticker.
func (p *OutboxProcessor) ProcessTick(ctx context.Context) {
	if reclaimed, err := p.repo.ReclaimStale(ctx, time.Now().Add(-staleClaimAge)); err != nil {
		p.logger.Error("failed to reclaim stale claims", zap.Error(err))
	} else if reclaimed > 0 {
		p.logger.Warn("reclaimed orphaned outbox claims", zap.Int64("count", reclaimed))
	}

	pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find pending events", zap.Error(err))
		return
	}

	retryable, err := p.repo.FindRetryable(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find retryable events", zap.Error(err))
		return
	}

	rows := append(pending, retryable...)
	if len(rows) == 0 {
		return
	}

	for _, group := range groupByAggregate(rows) {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processGroup(ctx, group)
	}
}

// processGroup delivers one aggregate's rows in order, aborting the group on
// the first failure so later rows never overtake an earlier one.
func (p *OutboxProcessor) processGroup(ctx context.Context, group []*shared.OutboxEvent) {
	oldest := group[0]

	// An earlier event for this aggregate may be backing off outside the
	// current selection. Delivering its successors now would break FIFO.
	blocked, err := p.repo.HasOlderUndelivered(ctx, oldest.AggregateID, oldest.CreatedAt, oldest.ID)
	if err != nil {
		p.logger.Error("failed to check aggregate ordering",
			zap.String("aggregate_id", oldest.AggregateID),
			zap.Error(err),
		)
		return
	}
	if blocked {
		p.logger.Debug("aggregate held back behind an earlier undelivered event",
			zap.String("aggregate_id", oldest.AggregateID),
		)
		return
	}

	ids := make([]uuid.UUID, len(group))
	for i, e := range group {
		ids[i] = e.ID
	}

	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("failed to claim events",
			zap.String("aggregate_id", oldest.AggregateID),
			zap.Error(err),
		)
		return
	}

	for i, row := range claimed {
		if err := p.publisher.PublishEnvelope(ctx, NewEnvelopeFromOutbox(row)); err != nil {
			p.handlePublishFailure(ctx, row, err)
			p.requeueRemainder(ctx, claimed[i+1:])
			return
		}

		row.MarkSent()
		if err := p.repo.Update(ctx, row); err != nil {
			p.logger.Error("failed to mark event as sent",
				zap.String("event_id", row.EventID.String()),
				zap.Error(err),
			)
			// The stale-claim reclaim will recover it; delivery stays
			// at-least-once.
			p.requeueRemainder(ctx, claimed[i+1:])
			return
		}

		p.logger.Debug("event published",
			zap.String("event_id", row.EventID.String()),
			zap.String("event_type", row.EventType),
			zap.String("aggregate_id", row.AggregateID),
		)
	}
}

// handlePublishFailure records the failure and schedules the retry
func (p *OutboxProcessor) handlePublishFailure(ctx context.Context, row *shared.OutboxEvent, pubErr error) {
	p.logger.Error("failed to publish event",
		zap.String("event_id", row.EventID.String()),
		zap.String("event_type", row.EventType),
		zap.Error(pubErr),
	)

	row.MarkFailed(pubErr.Error())
	if row.IsDead() {
		p.logger.Warn("event moved to dead letter queue",
			zap.String("event_id", row.EventID.String()),
			zap.String("event_type", row.EventType),
			zap.String("aggregate_type", row.AggregateType),
			zap.String("aggregate_id", row.AggregateID),
			zap.Int("retry_count", row.RetryCount),
			zap.String("last_error", row.LastError),
		)
	}
	if err := p.repo.Update(ctx, row); err != nil {
		p.logger.Error("failed to update event after publish failure", zap.Error(err))
	}
}

// requeueRemainder returns unattempted rows of an aborted group to PENDING
func (p *OutboxProcessor) requeueRemainder(ctx context.Context, rest []*shared.OutboxEvent) {
	for _, row := range rest {
		if err := row.Requeue(); err != nil {
			continue
		}
		if err := p.repo.Update(ctx, row); err != nil {
			p.logger.Error("failed to requeue event",
				zap.String("event_id", row.EventID.String()),
				zap.Error(err),
			)
		}
	}
}

// groupByAggregate splits rows into per-aggregate groups ordered by
// (created_at, id), with the groups themselves ordered by their oldest row.
func groupByAggregate(rows []*shared.OutboxEvent) [][]*shared.OutboxEvent {
	byAggregate := make(map[string][]*shared.OutboxEvent)
	order := make([]string, 0)
	for _, row := range rows {
		if _, seen := byAggregate[row.AggregateID]; !seen {
			order = append(order, row.AggregateID)
		}
		byAggregate[row.AggregateID] = append(byAggregate[row.AggregateID], row)
	}

	groups := make([][]*shared.OutboxEvent, 0, len(order))
	for _, aggregateID := range order {
		group := byAggregate[aggregateID]
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID.String() < group[j].ID.String()
		})
		groups = append(groups, group)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i][0], groups[j][0]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return groups
}

// cleanupLoop periodically purges delivered rows past retention
func (p *OutboxProcessor) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanup(ctx)
		}
	}
}

// cleanup removes published rows older than the retention window
func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to clean up outbox", zap.Error(err))
		return
	}

	if deleted > 0 {
		p.logger.Info("cleaned up published outbox events",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
