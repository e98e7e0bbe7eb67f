package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/paklog/inventory-service/internal/domain/shared"
)

// ChangeType classifies a ledger entry
type ChangeType string

const (
	ChangeTypeAllocation         ChangeType = "ALLOCATION"
	ChangeTypeDeallocation       ChangeType = "DEALLOCATION"
	ChangeTypePick               ChangeType = "PICK"
	ChangeTypeReceipt            ChangeType = "RECEIPT"
	ChangeTypeAdjustmentPositive ChangeType = "ADJUSTMENT_POSITIVE"
	ChangeTypeAdjustmentNegative ChangeType = "ADJUSTMENT_NEGATIVE"
	ChangeTypeCycleCount         ChangeType = "CYCLE_COUNT"
)

// IsValid checks if the change type is recognized
func (t ChangeType) IsValid() bool {
	switch t {
	case ChangeTypeAllocation, ChangeTypeDeallocation, ChangeTypePick,
		ChangeTypeReceipt, ChangeTypeAdjustmentPositive, ChangeTypeAdjustmentNegative,
		ChangeTypeCycleCount:
		return true
	}
	return false
}

// InventoryLedgerEntry is the immutable audit record for one stock-changing
// operation. Entries are written in the same transaction as the aggregate
// and never updated afterwards.
type InventoryLedgerEntry struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Sku             string     `gorm:"size:64;not null;index:idx_ledger_sku_time,priority:1" json:"sku"`
	Timestamp       time.Time  `gorm:"not null;index:idx_ledger_sku_time,priority:2;index:idx_ledger_type_time,priority:2;index:idx_ledger_operator_time,priority:2" json:"timestamp"`
	QuantityChange  int64      `gorm:"not null" json:"quantity_change"`
	ChangeType      ChangeType `gorm:"size:32;not null;index:idx_ledger_type_time,priority:1" json:"change_type"`
	SourceReference string     `gorm:"size:128" json:"source_reference,omitempty"`
	Reason          string     `gorm:"size:255;not null" json:"reason"`
	OperatorID      string     `gorm:"size:64;index:idx_ledger_operator_time,priority:1" json:"operator_id"`
}

// TableName overrides the GORM table name
func (InventoryLedgerEntry) TableName() string {
	return "inventory_ledger"
}

// NewLedgerEntry creates an audit record for a signed stock change
func NewLedgerEntry(sku string, quantityChange int64, changeType ChangeType, sourceReference, reason, operatorID string) (*InventoryLedgerEntry, error) {
	if sku == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "ledger entry requires a sku")
	}
	if !changeType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "unknown ledger change type: "+string(changeType))
	}
	return &InventoryLedgerEntry{
		ID:              uuid.New(),
		Sku:             sku,
		Timestamp:       time.Now().UTC(),
		QuantityChange:  quantityChange,
		ChangeType:      changeType,
		SourceReference: sourceReference,
		Reason:          reason,
		OperatorID:      operatorID,
	}, nil
}

// ChangeTypeForAdjustment maps a manual adjustment onto its ledger change
// type. Count reasons are booked as cycle counts; everything else splits by
// sign.
func ChangeTypeForAdjustment(delta int64, reason ReasonCode) ChangeType {
	if reason == ReasonPhysicalCount || reason == ReasonCycleCount {
		return ChangeTypeCycleCount
	}
	if delta >= 0 {
		return ChangeTypeAdjustmentPositive
	}
	return ChangeTypeAdjustmentNegative
}
