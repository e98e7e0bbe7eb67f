package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/paklog/inventory-service/internal/domain/shared"
)

// GormOutboxRepository implements OutboxRepository using GORM
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GORM-based outbox repository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: tx}
}

// Save persists one or more outbox events
func (r *GormOutboxRepository) Save(ctx context.Context, events ...*shared.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Create(events).Error
}

// FindPending retrieves pending events up to the specified limit.
// The (created_at, id) ordering keeps dispatch in insertion order, which is
// what preserves per-aggregate FIFO downstream.
func (r *GormOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEvent, error) {
	var events []*shared.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", shared.OutboxStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// FindRetryable retrieves failed events that are due for retry
func (r *GormOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEvent, error) {
	var events []*shared.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", shared.OutboxStatusFailed, before).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// MarkProcessing atomically claims events for processing and returns them.
// FOR UPDATE SKIP LOCKED lets concurrent publisher instances share the
// backlog without double-claiming rows.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var events []*shared.OutboxEvent

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Options:  "SKIP LOCKED",
			}).
			Where("id IN ? AND status IN ?", ids, []shared.OutboxStatus{
				shared.OutboxStatusPending,
				shared.OutboxStatusFailed,
			}).
			Order("created_at ASC, id ASC").
			Find(&events).Error; err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		eventIDs := make([]uuid.UUID, len(events))
		for i, e := range events {
			eventIDs[i] = e.ID
		}

		now := time.Now()
		if err := tx.Model(&shared.OutboxEvent{}).
			Where("id IN ?", eventIDs).
			Updates(map[string]interface{}{
				"status":     shared.OutboxStatusProcessing,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		for _, e := range events {
			e.Status = shared.OutboxStatusProcessing
			e.UpdatedAt = now
		}

		return nil
	})

	return events, err
}

// ReclaimStale returns events stuck in PROCESSING since before the given
// time to the pending pool
func (r *GormOutboxRepository) ReclaimStale(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&shared.OutboxEvent{}).
		Where("status = ? AND updated_at < ?", shared.OutboxStatusProcessing, before).
		Updates(map[string]interface{}{
			"status":     shared.OutboxStatusPending,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// Update updates an existing outbox event
func (r *GormOutboxRepository) Update(ctx context.Context, event *shared.OutboxEvent) error {
	event.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(event).Error
}

// DeleteOlderThan deletes published events older than the cutoff
func (r *GormOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND published_at < ?", shared.OutboxStatusSent, before).
		Delete(&shared.OutboxEvent{})
	return result.RowsAffected, result.Error
}

// FindDead retrieves dead letter events with pagination
func (r *GormOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEvent, int64, error) {
	var events []*shared.OutboxEvent
	var total int64

	if err := r.db.WithContext(ctx).
		Model(&shared.OutboxEvent{}).
		Where("status = ?", shared.OutboxStatusDead).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := r.db.WithContext(ctx).
		Where("status = ?", shared.OutboxStatusDead).
		Order("updated_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// FindByID retrieves a single outbox event by ID. A missing row yields
// (nil, nil) so callers can distinguish absence from repository failure.
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEvent, error) {
	var event shared.OutboxEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// FindByAggregateID retrieves events for one aggregate whose occurrence time
// lies in (from, to]. The stream feeds point-in-time replay, so the order
// must be deterministic: occurred_at with event_id as tiebreak.
func (r *GormOutboxRepository) FindByAggregateID(ctx context.Context, aggregateID string, from, to time.Time) ([]*shared.OutboxEvent, error) {
	var events []*shared.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ? AND occurred_at > ? AND occurred_at <= ?", aggregateID, from, to).
		Order("occurred_at ASC, event_id ASC").
		Find(&events).Error
	return events, err
}

// HasOlderUndelivered reports whether the aggregate has an undelivered event
// created before the given row. Rows already sent or parked in the dead
// letter queue do not block their successors.
func (r *GormOutboxRepository) HasOlderUndelivered(ctx context.Context, aggregateID string, createdAt time.Time, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&shared.OutboxEvent{}).
		Where("aggregate_id = ? AND status NOT IN ? AND (created_at < ? OR (created_at = ? AND id < ?))",
			aggregateID,
			[]shared.OutboxStatus{shared.OutboxStatusSent, shared.OutboxStatusDead},
			createdAt, createdAt, id).
		Count(&count).Error
	return count > 0, err
}

// CountByStatus returns count of events for each status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	type statusCount struct {
		Status shared.OutboxStatus
		Count  int64
	}

	var results []statusCount
	err := r.db.WithContext(ctx).
		Model(&shared.OutboxEvent{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[shared.OutboxStatus]int64)
	for _, r := range results {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// Ensure GormOutboxRepository implements OutboxRepository
var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
