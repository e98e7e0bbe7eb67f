package stock

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paklog/inventory-service/internal/domain/shared"
)

// TransferStatus is the lifecycle state of a stock transfer
type TransferStatus string

const (
	TransferStatusInitiated TransferStatus = "INITIATED"
	TransferStatusInTransit TransferStatus = "IN_TRANSIT"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusCancelled TransferStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are allowed
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusCancelled
}

// StockTransfer moves a quantity of one SKU between two locations. The
// quantity bookkeeping happens on the ProductStock aggregate; this record
// tracks the movement itself and any shrinkage found at receipt.
type StockTransfer struct {
	shared.BaseAggregateRoot

	TransferID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"transfer_id"`
	Sku                    string         `gorm:"size:64;not null;index" json:"sku"`
	Quantity               int64          `gorm:"not null" json:"quantity"`
	FromLocation           Location       `gorm:"type:jsonb;serializer:json" json:"from_location"`
	ToLocation             Location       `gorm:"type:jsonb;serializer:json" json:"to_location"`
	Status                 TransferStatus `gorm:"size:16;not null;index" json:"status"`
	ContainerLPN           string         `gorm:"size:64" json:"container_lpn,omitempty"`
	InitiatedBy            string         `gorm:"size:64" json:"initiated_by"`
	InitiatedAt            time.Time      `gorm:"not null" json:"initiated_at"`
	InTransitAt            *time.Time     `json:"in_transit_at,omitempty"`
	ActualQuantityReceived int64          `json:"actual_quantity_received"`
	CompletedBy            string         `gorm:"size:64" json:"completed_by,omitempty"`
	CompletedAt            *time.Time     `json:"completed_at,omitempty"`
	CancellationReason     string         `gorm:"size:255" json:"cancellation_reason,omitempty"`
	CancelledAt            *time.Time     `json:"cancelled_at,omitempty"`
}

// TableName overrides the GORM table name
func (StockTransfer) TableName() string {
	return "stock_transfers"
}

// NewStockTransfer starts a transfer of qty units between two locations
func NewStockTransfer(sku string, qty int64, from, to Location, initiatedBy string) (*StockTransfer, error) {
	if sku == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "sku cannot be empty")
	}
	if qty <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidQuantity, "transfer quantity must be positive")
	}
	if from.IsZero() || to.IsZero() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "transfer requires both locations")
	}
	if from.Equals(to) {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "source and destination are the same location")
	}
	t := &StockTransfer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TransferID:        uuid.New(),
		Sku:               sku,
		Quantity:          qty,
		FromLocation:      from,
		ToLocation:        to,
		Status:            TransferStatusInitiated,
		InitiatedBy:       initiatedBy,
		InitiatedAt:       time.Now().UTC(),
	}
	t.AddDomainEvent(NewStockTransferInitiatedEvent(t))
	return t, nil
}

// AttachContainer ties the transfer to the license plate carrying it. Only
// a transfer that has not left the source can pick up a plate.
func (t *StockTransfer) AttachContainer(lpn string) error {
	if t.Status != TransferStatusInitiated {
		return t.transitionError("attach container to")
	}
	if lpn == "" {
		return shared.NewDomainError(shared.CodeInvalidState, "lpn cannot be empty")
	}
	t.ContainerLPN = lpn
	return nil
}

// MarkInTransit records the stock leaving the source location
func (t *StockTransfer) MarkInTransit() error {
	if t.Status != TransferStatusInitiated {
		return t.transitionError("mark in transit")
	}
	now := time.Now().UTC()
	t.Status = TransferStatusInTransit
	t.InTransitAt = &now
	t.IncrementVersion()
	return nil
}

// Complete records receipt at the destination. actualQty may fall short of
// the planned quantity; the difference is kept as shrinkage.
func (t *StockTransfer) Complete(actualQty int64, completedBy string) error {
	if t.Status != TransferStatusInTransit {
		return t.transitionError("complete")
	}
	if actualQty < 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity, "received quantity cannot be negative")
	}
	if actualQty > t.Quantity {
		return shared.NewDomainError(shared.CodeInvalidQuantity,
			fmt.Sprintf("received %d exceeds the %d units transferred", actualQty, t.Quantity))
	}
	now := time.Now().UTC()
	t.Status = TransferStatusCompleted
	t.ActualQuantityReceived = actualQty
	t.CompletedBy = completedBy
	t.CompletedAt = &now

	t.AddDomainEvent(NewStockTransferCompletedEvent(t))
	t.IncrementVersion()
	return nil
}

// Cancel aborts the transfer from any non-terminal state
func (t *StockTransfer) Cancel(reason string) error {
	if t.Status.IsTerminal() {
		return t.transitionError("cancel")
	}
	now := time.Now().UTC()
	t.Status = TransferStatusCancelled
	t.CancellationReason = reason
	t.CancelledAt = &now
	t.IncrementVersion()
	return nil
}

// Shrinkage is the planned-minus-received loss, zero until completion
func (t *StockTransfer) Shrinkage() int64 {
	if t.Status != TransferStatusCompleted {
		return 0
	}
	return t.Quantity - t.ActualQuantityReceived
}

func (t *StockTransfer) transitionError(action string) error {
	return shared.NewDomainError(shared.CodeInvalidState,
		fmt.Sprintf("cannot %s transfer %s in status %s", action, t.TransferID, t.Status))
}
