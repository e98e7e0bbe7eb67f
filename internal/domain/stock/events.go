package stock

import (
	"time"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type strings as published on the bus. The envelope prefixes them
// with the service's reverse-DNS namespace; these are the
// "<aggregate>.<event>" tails and are part of the wire contract.
const (
	EventTypeStockLevelChanged     = "product-stock.level-changed"
	EventTypeStockStatusChanged    = "product-stock.status-changed"
	EventTypeHoldPlaced            = "inventory-hold.placed"
	EventTypeHoldReleased          = "inventory-hold.released"
	EventTypeValuationChanged      = "inventory-valuation.changed"
	EventTypeClassificationChanged = "abc-classification.changed"
	EventTypeTransferInitiated     = "stock-transfer.initiated"
	EventTypeTransferCompleted     = "stock-transfer.completed"
	EventTypeSerialReceived        = "serial-number.received"
	EventTypeSerialAllocated       = "serial-number.allocated"
	EventTypeSerialShipped         = "serial-number.shipped"
	EventTypeSnapshotCreated       = "inventory-snapshot.created"
)

// Aggregate type names used in outbox rows and envelopes
const (
	AggregateTypeProductStock = "product-stock"
	AggregateTypeTransfer     = "stock-transfer"
	AggregateTypeSerialNumber = "serial-number"
	AggregateTypeSnapshot     = "inventory-snapshot"
	AggregateTypeAssembly     = "assembly-order"
)

// AggregateTypeForEvent maps an event type to the aggregate that produces
// it. Hold, valuation and classification events belong to the product stock
// aggregate even though their type names carry their own prefix.
func AggregateTypeForEvent(eventType string) (string, bool) {
	switch eventType {
	case EventTypeStockLevelChanged, EventTypeStockStatusChanged,
		EventTypeHoldPlaced, EventTypeHoldReleased,
		EventTypeValuationChanged, EventTypeClassificationChanged:
		return AggregateTypeProductStock, true
	case EventTypeTransferInitiated, EventTypeTransferCompleted:
		return AggregateTypeTransfer, true
	case EventTypeSerialReceived, EventTypeSerialAllocated, EventTypeSerialShipped:
		return AggregateTypeSerialNumber, true
	case EventTypeSnapshotCreated:
		return AggregateTypeSnapshot, true
	default:
		return "", false
	}
}

// StockLevelChangedEvent reports a change to on-hand or allocated quantity.
// Payload field names are snake_case on the wire and must be preserved.
type StockLevelChangedEvent struct {
	shared.BaseDomainEvent
	Sku           string     `json:"sku"`
	PreviousLevel StockLevel `json:"previous_stock_level"`
	NewLevel      StockLevel `json:"new_stock_level"`
	ChangeReason  string     `json:"change_reason"`
}

// NewStockLevelChangedEvent creates a stock level changed event
func NewStockLevelChangedEvent(sku string, previous, next StockLevel, reason string) *StockLevelChangedEvent {
	return &StockLevelChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockLevelChanged, AggregateTypeProductStock, sku),
		Sku:             sku,
		PreviousLevel:   previous,
		NewLevel:        next,
		ChangeReason:    reason,
	}
}

// StockStatusChangedEvent reports quantity moving between disposition buckets
type StockStatusChangedEvent struct {
	shared.BaseDomainEvent
	Sku            string      `json:"sku"`
	PreviousStatus StockStatus `json:"previousStatus"`
	NewStatus      StockStatus `json:"newStatus"`
	Quantity       int64       `json:"quantity"`
	Reason         string      `json:"reason"`
	LotNumber      string      `json:"lotNumber,omitempty"`
}

// NewStockStatusChangedEvent creates a stock status changed event
func NewStockStatusChangedEvent(sku string, from, to StockStatus, quantity int64, reason, lotNumber string) *StockStatusChangedEvent {
	return &StockStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockStatusChanged, AggregateTypeProductStock, sku),
		Sku:             sku,
		PreviousStatus:  from,
		NewStatus:       to,
		Quantity:        quantity,
		Reason:          reason,
		LotNumber:       lotNumber,
	}
}

// InventoryHoldPlacedEvent reports a new administrative hold
type InventoryHoldPlacedEvent struct {
	shared.BaseDomainEvent
	Sku            string     `json:"sku"`
	HoldID         string     `json:"holdId"`
	HoldType       HoldType   `json:"holdType"`
	QuantityOnHold int64      `json:"quantityOnHold"`
	Reason         string     `json:"reason"`
	PlacedBy       string     `json:"placedBy"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	LotNumber      string     `json:"lotNumber,omitempty"`
}

// NewInventoryHoldPlacedEvent creates a hold placed event
func NewInventoryHoldPlacedEvent(sku string, hold InventoryHold) *InventoryHoldPlacedEvent {
	return &InventoryHoldPlacedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeHoldPlaced, AggregateTypeProductStock, sku),
		Sku:             sku,
		HoldID:          hold.HoldID,
		HoldType:        hold.HoldType,
		QuantityOnHold:  hold.Quantity,
		Reason:          hold.Reason,
		PlacedBy:        hold.PlacedBy,
		ExpiresAt:       hold.ExpiresAt,
		LotNumber:       hold.LotNumber,
	}
}

// InventoryHoldReleasedEvent reports a hold being lifted
type InventoryHoldReleasedEvent struct {
	shared.BaseDomainEvent
	Sku              string   `json:"sku"`
	HoldID           string   `json:"holdId"`
	HoldType         HoldType `json:"holdType"`
	QuantityReleased int64    `json:"quantityReleased"`
	Reason           string   `json:"reason"`
	ReleasedBy       string   `json:"releasedBy"`
}

// NewInventoryHoldReleasedEvent creates a hold released event
func NewInventoryHoldReleasedEvent(sku string, hold InventoryHold, reason, releasedBy string) *InventoryHoldReleasedEvent {
	return &InventoryHoldReleasedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeHoldReleased, AggregateTypeProductStock, sku),
		Sku:              sku,
		HoldID:           hold.HoldID,
		HoldType:         hold.HoldType,
		QuantityReleased: hold.Quantity,
		Reason:           reason,
		ReleasedBy:       releasedBy,
	}
}

// InventoryValuationChangedEvent reports a cost or value change
type InventoryValuationChangedEvent struct {
	shared.BaseDomainEvent
	Sku                string          `json:"sku"`
	ValuationMethod    ValuationMethod `json:"valuationMethod"`
	PreviousUnitCost   decimal.Decimal `json:"previousUnitCost"`
	NewUnitCost        decimal.Decimal `json:"newUnitCost"`
	PreviousTotalValue decimal.Decimal `json:"previousTotalValue"`
	NewTotalValue      decimal.Decimal `json:"newTotalValue"`
	Quantity           int64           `json:"quantity"`
	Reason             string          `json:"reason"`
}

// NewInventoryValuationChangedEvent creates a valuation changed event
func NewInventoryValuationChangedEvent(sku string, previous, next InventoryValuation, quantity int64, reason string) *InventoryValuationChangedEvent {
	return &InventoryValuationChangedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeValuationChanged, AggregateTypeProductStock, sku),
		Sku:                sku,
		ValuationMethod:    next.Method,
		PreviousUnitCost:   previous.UnitCost.Amount(),
		NewUnitCost:        next.UnitCost.Amount(),
		PreviousTotalValue: previous.TotalValue.Amount(),
		NewTotalValue:      next.TotalValue.Amount(),
		Quantity:           quantity,
		Reason:             reason,
	}
}

// ABCClassificationChangedEvent reports an ABC class assignment
type ABCClassificationChangedEvent struct {
	shared.BaseDomainEvent
	Sku           string                 `json:"sku"`
	PreviousClass *ABCClass              `json:"previousClass,omitempty"`
	NewClass      ABCClass               `json:"newClass"`
	Criteria      ClassificationCriteria `json:"criteria"`
	Reason        string                 `json:"reason"`
}

// NewABCClassificationChangedEvent creates a classification changed event
func NewABCClassificationChangedEvent(sku string, previous *ABCClass, next ABCClassification, reason string) *ABCClassificationChangedEvent {
	return &ABCClassificationChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeClassificationChanged, AggregateTypeProductStock, sku),
		Sku:             sku,
		PreviousClass:   previous,
		NewClass:        next.Class,
		Criteria:        next.Criteria,
		Reason:          reason,
	}
}

// StockTransferInitiatedEvent reports a transfer leaving its source location
type StockTransferInitiatedEvent struct {
	shared.BaseDomainEvent
	TransferID   string `json:"transferId"`
	Sku          string `json:"sku"`
	Quantity     int64  `json:"quantity"`
	FromLocation string `json:"fromLocation"`
	ToLocation   string `json:"toLocation"`
	InitiatedBy  string `json:"initiatedBy"`
}

// NewStockTransferInitiatedEvent creates a transfer initiated event
func NewStockTransferInitiatedEvent(t *StockTransfer) *StockTransferInitiatedEvent {
	return &StockTransferInitiatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransferInitiated, AggregateTypeTransfer, t.TransferID.String()),
		TransferID:      t.TransferID.String(),
		Sku:             t.Sku,
		Quantity:        t.Quantity,
		FromLocation:    t.FromLocation.String(),
		ToLocation:      t.ToLocation.String(),
		InitiatedBy:     t.InitiatedBy,
	}
}

// StockTransferCompletedEvent reports receipt at the destination, including
// any shrinkage between shipped and received quantities
type StockTransferCompletedEvent struct {
	shared.BaseDomainEvent
	TransferID             string `json:"transferId"`
	Sku                    string `json:"sku"`
	Quantity               int64  `json:"quantity"`
	ActualQuantityReceived int64  `json:"actualQuantityReceived"`
	Shrinkage              int64  `json:"shrinkage"`
	CompletedBy            string `json:"completedBy"`
}

// NewStockTransferCompletedEvent creates a transfer completed event
func NewStockTransferCompletedEvent(t *StockTransfer) *StockTransferCompletedEvent {
	return &StockTransferCompletedEvent{
		BaseDomainEvent:        shared.NewBaseDomainEvent(EventTypeTransferCompleted, AggregateTypeTransfer, t.TransferID.String()),
		TransferID:             t.TransferID.String(),
		Sku:                    t.Sku,
		Quantity:               t.Quantity,
		ActualQuantityReceived: t.ActualQuantityReceived,
		Shrinkage:              t.Shrinkage(),
		CompletedBy:            t.CompletedBy,
	}
}

// SerialNumberReceivedEvent reports a serialized unit entering stock
type SerialNumberReceivedEvent struct {
	shared.BaseDomainEvent
	SerialNumber string `json:"serialNumber"`
	Sku          string `json:"sku"`
}

// NewSerialNumberReceivedEvent creates a serial received event
func NewSerialNumberReceivedEvent(serial, sku string) *SerialNumberReceivedEvent {
	return &SerialNumberReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSerialReceived, AggregateTypeSerialNumber, serial),
		SerialNumber:    serial,
		Sku:             sku,
	}
}

// SerialNumberAllocatedEvent reports a serialized unit reserved for an order
type SerialNumberAllocatedEvent struct {
	shared.BaseDomainEvent
	SerialNumber string `json:"serialNumber"`
	Sku          string `json:"sku"`
	OrderID      string `json:"orderId"`
}

// NewSerialNumberAllocatedEvent creates a serial allocated event
func NewSerialNumberAllocatedEvent(serial, sku, orderID string) *SerialNumberAllocatedEvent {
	return &SerialNumberAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSerialAllocated, AggregateTypeSerialNumber, serial),
		SerialNumber:    serial,
		Sku:             sku,
		OrderID:         orderID,
	}
}

// SerialNumberShippedEvent reports a serialized unit leaving the warehouse
type SerialNumberShippedEvent struct {
	shared.BaseDomainEvent
	SerialNumber string `json:"serialNumber"`
	Sku          string `json:"sku"`
	OrderID      string `json:"orderId"`
}

// NewSerialNumberShippedEvent creates a serial shipped event
func NewSerialNumberShippedEvent(serial, sku, orderID string) *SerialNumberShippedEvent {
	return &SerialNumberShippedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSerialShipped, AggregateTypeSerialNumber, serial),
		SerialNumber:    serial,
		Sku:             sku,
		OrderID:         orderID,
	}
}

// InventorySnapshotCreatedEvent reports a point-in-time snapshot capture
type InventorySnapshotCreatedEvent struct {
	shared.BaseDomainEvent
	SnapshotID   string       `json:"snapshotId"`
	Sku          string       `json:"sku"`
	SnapshotType SnapshotType `json:"snapshotType"`
	Reason       string       `json:"reason"`
}

// NewInventorySnapshotCreatedEvent creates a snapshot created event
func NewInventorySnapshotCreatedEvent(s *InventorySnapshot) *InventorySnapshotCreatedEvent {
	return &InventorySnapshotCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSnapshotCreated, AggregateTypeSnapshot, s.SnapshotID.String()),
		SnapshotID:      s.SnapshotID.String(),
		Sku:             s.Sku,
		SnapshotType:    s.Type,
		Reason:          s.Reason,
	}
}
