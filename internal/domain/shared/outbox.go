package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the delivery status of an outbox event
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// Default retry configuration for the publisher
const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
)

// OutboxEvent is a pending external event persisted in the same transaction
// as the aggregate change that produced it. The command path writes it once;
// only the publisher mutates it afterwards.
type OutboxEvent struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   string
	AggregateType string
	Payload       []byte
	OccurredAt    time.Time
	Status        OutboxStatus
	Published     bool
	PublishedAt   *time.Time
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEvent creates a pending outbox event for a domain event
func NewOutboxEvent(event DomainEvent, payload []byte) *OutboxEvent {
	now := time.Now()
	return &OutboxEvent{
		ID:            uuid.New(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		OccurredAt:    event.OccurredAt(),
		Status:        OutboxStatusPending,
		RetryCount:    0,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanRetry returns true if the event can be retried
func (e *OutboxEvent) CanRetry() bool {
	return e.Status == OutboxStatusFailed && e.RetryCount < e.MaxRetries
}

// MarkProcessing marks the event as being processed
func (e *OutboxEvent) MarkProcessing() error {
	if e.Status != OutboxStatusPending && e.Status != OutboxStatusFailed {
		return errors.New("can only mark pending or failed events as processing")
	}
	e.Status = OutboxStatusProcessing
	e.UpdatedAt = time.Now()
	return nil
}

// MarkSent marks the event as successfully published
func (e *OutboxEvent) MarkSent() {
	now := time.Now()
	e.Status = OutboxStatusSent
	e.Published = true
	e.PublishedAt = &now
	e.UpdatedAt = now
}

// MarkFailed records a publish failure and schedules the next attempt.
// After MaxRetries failures the event parks in DEAD until an operator
// requeues it.
func (e *OutboxEvent) MarkFailed(errMsg string) {
	e.RetryCount++
	e.LastError = errMsg
	e.UpdatedAt = time.Now()

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
	} else {
		e.Status = OutboxStatusFailed
		// Exponential backoff: 1s, 2s, 4s, 8s, ...
		backoff := DefaultBaseBackoff * time.Duration(1<<uint(e.RetryCount-1))
		nextRetry := time.Now().Add(backoff)
		e.NextRetryAt = &nextRetry
	}
}

// Requeue returns a claimed but unattempted event to the pending pool.
// The publisher uses it for events behind a failed sibling, so per-aggregate
// order survives the abort.
func (e *OutboxEvent) Requeue() error {
	if e.Status != OutboxStatusProcessing {
		return errors.New("can only requeue processing events")
	}
	e.Status = OutboxStatusPending
	e.UpdatedAt = time.Now()
	return nil
}

// ResetForRetry returns a dead-lettered event to the pending pool
func (e *OutboxEvent) ResetForRetry() error {
	if e.Status != OutboxStatusDead {
		return errors.New("can only retry dead letter events")
	}
	e.Status = OutboxStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	e.UpdatedAt = time.Now()
	return nil
}

// IsDead returns true if the event is in dead letter status
func (e *OutboxEvent) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// OutboxRepository defines the interface for outbox persistence
type OutboxRepository interface {
	// Save persists one or more outbox events
	Save(ctx context.Context, events ...*OutboxEvent) error
	// FindPending retrieves pending events in (created_at, id) order
	FindPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	// FindRetryable retrieves failed events whose next retry is due
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEvent, error)
	// FindDead retrieves dead letter events with pagination
	FindDead(ctx context.Context, page, pageSize int) ([]*OutboxEvent, int64, error)
	// FindByID retrieves a single outbox event by ID
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error)
	// FindByAggregateID retrieves events for one aggregate whose occurrence
	// time lies in (from, to], ordered by (occurred_at, event_id)
	FindByAggregateID(ctx context.Context, aggregateID string, from, to time.Time) ([]*OutboxEvent, error)
	// HasOlderUndelivered reports whether the aggregate has an event older
	// than the given row that is neither sent nor dead. The publisher uses
	// it to hold back successors while an earlier event backs off.
	HasOlderUndelivered(ctx context.Context, aggregateID string, createdAt time.Time, id uuid.UUID) (bool, error)
	// MarkProcessing atomically claims events for processing and returns them
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEvent, error)
	// ReclaimStale returns events stuck in PROCESSING since before the given
	// time to the pending pool. Covers claims orphaned by a crash, so no
	// event is lost between claim and delivery.
	ReclaimStale(ctx context.Context, before time.Time) (int64, error)
	// Update updates an existing outbox event
	Update(ctx context.Context, event *OutboxEvent) error
	// DeleteOlderThan deletes published events older than the cutoff
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	// CountByStatus returns the number of events in each status
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
