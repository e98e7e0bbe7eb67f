package event

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/paklog/inventory-service/internal/domain/shared"
)

// OutboxPublisher persists domain events to the outbox within the caller's
// transaction. The aggregate change and its events commit together, which is
// the property the at-least-once delivery guarantee rests on.
type OutboxPublisher struct {
	serializer EventEncoder
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(serializer EventEncoder) *OutboxPublisher {
	return &OutboxPublisher{
		serializer: serializer,
	}
}

// PublishWithTx writes events as outbox rows within the provided transaction
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]*shared.OutboxEvent, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return err
		}

		rows = append(rows, shared.NewOutboxEvent(event, payload))
	}

	repo := NewGormOutboxRepository(tx)
	return repo.Save(ctx, rows...)
}

// SaveEvents implements the shared.OutboxEventSaver interface
func (p *OutboxPublisher) SaveEvents(ctx context.Context, txProvider interface{}, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, ok := txProvider.(*gorm.DB)
	if !ok {
		return fmt.Errorf("txProvider must be a *gorm.DB, got %T", txProvider)
	}

	return p.PublishWithTx(ctx, tx, events...)
}

// Ensure OutboxPublisher implements OutboxEventSaver
var _ shared.OutboxEventSaver = (*OutboxPublisher)(nil)
