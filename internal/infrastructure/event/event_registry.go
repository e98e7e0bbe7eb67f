package event

import (
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// RegisterAllEvents registers all domain event types with the serializer.
// This is required for the OutboxProcessor to deserialize events from the
// outbox table and for point-in-time replay to rehydrate them.
func RegisterAllEvents(serializer EventRegistrar) {
	// Product stock aggregate events
	serializer.Register(stock.EventTypeStockLevelChanged, &stock.StockLevelChangedEvent{})
	serializer.Register(stock.EventTypeStockStatusChanged, &stock.StockStatusChangedEvent{})
	serializer.Register(stock.EventTypeHoldPlaced, &stock.InventoryHoldPlacedEvent{})
	serializer.Register(stock.EventTypeHoldReleased, &stock.InventoryHoldReleasedEvent{})
	serializer.Register(stock.EventTypeValuationChanged, &stock.InventoryValuationChangedEvent{})
	serializer.Register(stock.EventTypeClassificationChanged, &stock.ABCClassificationChangedEvent{})

	// Stock transfer events
	serializer.Register(stock.EventTypeTransferInitiated, &stock.StockTransferInitiatedEvent{})
	serializer.Register(stock.EventTypeTransferCompleted, &stock.StockTransferCompletedEvent{})

	// Serial number events
	serializer.Register(stock.EventTypeSerialReceived, &stock.SerialNumberReceivedEvent{})
	serializer.Register(stock.EventTypeSerialAllocated, &stock.SerialNumberAllocatedEvent{})
	serializer.Register(stock.EventTypeSerialShipped, &stock.SerialNumberShippedEvent{})

	// Snapshot events
	serializer.Register(stock.EventTypeSnapshotCreated, &stock.InventorySnapshotCreatedEvent{})
}
