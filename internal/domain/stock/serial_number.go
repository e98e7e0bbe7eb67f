package stock

import (
	"fmt"
	"time"

	"github.com/paklog/inventory-service/internal/domain/shared"
)

// SerialStatus tracks a serialized unit through the warehouse
type SerialStatus string

const (
	SerialStatusReceived  SerialStatus = "RECEIVED"
	SerialStatusAllocated SerialStatus = "ALLOCATED"
	SerialStatusShipped   SerialStatus = "SHIPPED"
)

// IsValid checks if the serial status is recognized
func (s SerialStatus) IsValid() bool {
	switch s {
	case SerialStatusReceived, SerialStatusAllocated, SerialStatusShipped:
		return true
	}
	return false
}

// SerialNumber is an independent aggregate tracking one serialized unit.
// It references its ProductStock by SKU only; quantity bookkeeping stays on
// the stock aggregate.
type SerialNumber struct {
	shared.BaseAggregateRoot

	Serial      string       `gorm:"primaryKey;size:128" json:"serial_number"`
	Sku         string       `gorm:"size:64;not null;index" json:"sku"`
	Status      SerialStatus `gorm:"size:16;not null" json:"status"`
	OrderID     string       `gorm:"size:64" json:"order_id,omitempty"`
	ReceivedAt  time.Time    `gorm:"not null" json:"received_at"`
	AllocatedAt *time.Time   `json:"allocated_at,omitempty"`
	ShippedAt   *time.Time   `json:"shipped_at,omitempty"`
}

// TableName overrides the GORM table name
func (SerialNumber) TableName() string {
	return "serial_numbers"
}

// NewSerialNumber registers a serialized unit entering stock
func NewSerialNumber(serial, sku string) (*SerialNumber, error) {
	if serial == "" || sku == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "serial number and sku are required")
	}
	sn := &SerialNumber{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Serial:            serial,
		Sku:               sku,
		Status:            SerialStatusReceived,
		ReceivedAt:        time.Now().UTC(),
	}
	sn.AddDomainEvent(NewSerialNumberReceivedEvent(serial, sku))
	return sn, nil
}

// Allocate reserves the unit for an order
func (sn *SerialNumber) Allocate(orderID string) error {
	if orderID == "" {
		return shared.NewDomainError(shared.CodeInvalidState, "order id is required")
	}
	if sn.Status != SerialStatusReceived {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("serial %s is %s, cannot allocate", sn.Serial, sn.Status))
	}
	now := time.Now().UTC()
	sn.Status = SerialStatusAllocated
	sn.OrderID = orderID
	sn.AllocatedAt = &now

	sn.AddDomainEvent(NewSerialNumberAllocatedEvent(sn.Serial, sn.Sku, orderID))
	sn.IncrementVersion()
	return nil
}

// Ship records the unit leaving the warehouse
func (sn *SerialNumber) Ship() error {
	if sn.Status != SerialStatusAllocated {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("serial %s is %s, cannot ship", sn.Serial, sn.Status))
	}
	now := time.Now().UTC()
	sn.Status = SerialStatusShipped
	sn.ShippedAt = &now

	sn.AddDomainEvent(NewSerialNumberShippedEvent(sn.Serial, sn.Sku, sn.OrderID))
	sn.IncrementVersion()
	return nil
}
