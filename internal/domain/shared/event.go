package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an event that occurred in the domain.
// AggregateID is the business identifier of the producing aggregate
// (the SKU for product stock, a UUID string for the others).
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
	AggregateType() string
	SchemaVersion() int
}

// BaseDomainEvent provides the common header for all domain events.
// Header fields are excluded from JSON: the serialized form of an event is
// its variant-specific payload only, and the header travels in the outbox
// row and the published envelope.
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"-"`
	Type      string    `json:"-"`
	Timestamp time.Time `json:"-"`
	AggID     string    `json:"-"`
	AggType   string    `json:"-"`
	Version   int       `json:"-"`
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the identifier of the aggregate that produced this event
func (e *BaseDomainEvent) AggregateID() string {
	return e.AggID
}

// AggregateType returns the type of the aggregate
func (e *BaseDomainEvent) AggregateType() string {
	return e.AggType
}

// SchemaVersion returns the schema version of the event payload.
// Returns 1 when unset so pre-versioning rows deserialize cleanly.
func (e *BaseDomainEvent) SchemaVersion() int {
	if e.Version == 0 {
		return 1
	}
	return e.Version
}

// RestoreHeader rebuilds the event header from persisted outbox columns
// after the payload has been deserialized.
func (e *BaseDomainEvent) RestoreHeader(id uuid.UUID, eventType string, occurredAt time.Time, aggregateID, aggregateType string) {
	e.ID = id
	e.Type = eventType
	e.Timestamp = occurredAt
	e.AggID = aggregateID
	e.AggType = aggregateType
	if e.Version == 0 {
		e.Version = 1
	}
}

// SetSchemaVersion stamps the payload schema version on a deserialized
// event. Versions below 1 are clamped to 1.
func (e *BaseDomainEvent) SetSchemaVersion(version int) {
	if version < 1 {
		version = 1
	}
	e.Version = version
}

// NewBaseDomainEvent creates a new base domain event with schema version 1
func NewBaseDomainEvent(eventType, aggregateType, aggregateID string) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		AggID:     aggregateID,
		AggType:   aggregateType,
		Version:   1,
	}
}

// NewVersionedBaseDomainEvent creates a base domain event with an explicit
// schema version, for event types that have evolved past their first schema
func NewVersionedBaseDomainEvent(eventType, aggregateType, aggregateID string, schemaVersion int) BaseDomainEvent {
	base := NewBaseDomainEvent(eventType, aggregateType, aggregateID)
	base.SetSchemaVersion(schemaVersion)
	return base
}
