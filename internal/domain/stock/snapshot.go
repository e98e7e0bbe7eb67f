package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/paklog/inventory-service/internal/domain/shared"
)

// SnapshotType says what schedule (or request) produced a snapshot
type SnapshotType string

const (
	SnapshotTypeDaily    SnapshotType = "DAILY"
	SnapshotTypeMonthly  SnapshotType = "MONTHLY"
	SnapshotTypeYearEnd  SnapshotType = "YEAR_END"
	SnapshotTypeOnDemand SnapshotType = "ON_DEMAND"
)

// IsValid checks if the snapshot type is recognized
func (t SnapshotType) IsValid() bool {
	switch t {
	case SnapshotTypeDaily, SnapshotTypeMonthly, SnapshotTypeYearEnd, SnapshotTypeOnDemand:
		return true
	}
	return false
}

// SnapshotState is the denormalized copy of a ProductStock's observable
// state at the instant of capture. It is a plain value: replay folds events
// onto it without touching the live aggregate.
type SnapshotState struct {
	QuantityOnHand     int64               `json:"quantity_on_hand"`
	QuantityAllocated  int64               `json:"quantity_allocated"`
	AvailableToPromise int64               `json:"available_to_promise"`
	StatusQuantities   StatusQuantities    `json:"status_quantities"`
	Holds              []InventoryHold     `json:"holds,omitempty"`
	LotBatches         []LotBatch          `json:"lot_batches,omitempty"`
	Classification     *ABCClassification  `json:"abc_classification,omitempty"`
	Valuation          *InventoryValuation `json:"valuation,omitempty"`
	Version            int                 `json:"version"`
}

// CaptureState denormalizes the aggregate's state as of the given instant
func CaptureState(ps *ProductStock, asOf time.Time) SnapshotState {
	state := SnapshotState{
		QuantityOnHand:     ps.QuantityOnHand,
		QuantityAllocated:  ps.QuantityAllocated,
		AvailableToPromise: ps.AvailableToPromiseAt(asOf),
		StatusQuantities:   ps.StatusQuantities.Clone(),
		Version:            ps.GetVersion(),
	}
	if len(ps.Holds) > 0 {
		state.Holds = make([]InventoryHold, len(ps.Holds))
		copy(state.Holds, ps.Holds)
	}
	if len(ps.LotBatches) > 0 {
		state.LotBatches = make([]LotBatch, len(ps.LotBatches))
		copy(state.LotBatches, ps.LotBatches)
	}
	if ps.Classification != nil {
		c := *ps.Classification
		state.Classification = &c
	}
	if ps.Valuation != nil {
		v := ps.Valuation.Clone()
		state.Valuation = &v
	}
	return state
}

// ActiveHoldQuantityAt sums hold quantities still active at the instant
func (s SnapshotState) ActiveHoldQuantityAt(now time.Time) int64 {
	var total int64
	for _, h := range s.Holds {
		if h.IsActiveAt(now) {
			total += h.Quantity
		}
	}
	return total
}

// InventorySnapshot is an immutable point-in-time record of one SKU's
// stock state, used for reporting and as the baseline for event replay.
type InventorySnapshot struct {
	SnapshotID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"snapshot_id"`
	Sku               string        `gorm:"size:64;not null;index:idx_snapshots_sku_time,priority:1" json:"sku"`
	SnapshotTimestamp time.Time     `gorm:"not null;index:idx_snapshots_sku_time,priority:2" json:"snapshot_timestamp"`
	Type              SnapshotType  `gorm:"column:snapshot_type;size:16;not null;index" json:"snapshot_type"`
	Reason            string        `gorm:"size:255" json:"reason"`
	State             SnapshotState `gorm:"type:jsonb;serializer:json" json:"state"`
	CreatedBy         string        `gorm:"size:64" json:"created_by"`
	CreatedAt         time.Time     `gorm:"not null" json:"created_at"`
}

// TableName overrides the GORM table name
func (InventorySnapshot) TableName() string {
	return "inventory_snapshots"
}

// NewInventorySnapshot captures the aggregate's state right now
func NewInventorySnapshot(ps *ProductStock, snapshotType SnapshotType, reason, createdBy string) (*InventorySnapshot, error) {
	if !snapshotType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "unknown snapshot type: "+string(snapshotType))
	}
	now := time.Now().UTC()
	return &InventorySnapshot{
		SnapshotID:        uuid.New(),
		Sku:               ps.Sku,
		SnapshotTimestamp: now,
		Type:              snapshotType,
		Reason:            reason,
		State:             CaptureState(ps, now),
		CreatedBy:         createdBy,
		CreatedAt:         now,
	}, nil
}

// EmptyBaseline is the zero-state baseline for replaying a SKU with no
// stored snapshot: its timestamp is the zero time, so every recorded event
// folds onto an empty projection. It is never persisted.
func EmptyBaseline(sku string) *InventorySnapshot {
	return &InventorySnapshot{
		Sku:   sku,
		Type:  SnapshotTypeOnDemand,
		State: SnapshotState{StatusQuantities: StatusQuantities{}},
	}
}
