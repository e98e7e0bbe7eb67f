package stock

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paklog/inventory-service/internal/domain/shared"
)

// AssemblyStatus is the lifecycle state of an assembly order
type AssemblyStatus string

const (
	AssemblyStatusCreated    AssemblyStatus = "CREATED"
	AssemblyStatusInProgress AssemblyStatus = "IN_PROGRESS"
	AssemblyStatusCompleted  AssemblyStatus = "COMPLETED"
	AssemblyStatusCancelled  AssemblyStatus = "CANCELLED"
)

// AssemblyComponent is one input SKU of a kit build
type AssemblyComponent struct {
	Sku               string `json:"sku"`
	RequiredQuantity  int64  `json:"required_quantity"`
	AllocatedQuantity int64  `json:"allocated_quantity"`
}

// IsFullyAllocated reports whether the component can be consumed
func (c AssemblyComponent) IsFullyAllocated() bool {
	return c.AllocatedQuantity >= c.RequiredQuantity
}

// AssemblyOrder builds a kit SKU out of component SKUs. Component stock is
// allocated through the command service; the order tracks build progress.
type AssemblyOrder struct {
	shared.BaseAggregateRoot

	OrderID         uuid.UUID           `gorm:"type:uuid;primaryKey" json:"order_id"`
	KitSku          string              `gorm:"size:64;not null;index" json:"kit_sku"`
	PlannedQuantity int64               `gorm:"not null" json:"planned_quantity"`
	ActualQuantity  int64               `json:"actual_quantity"`
	Components      []AssemblyComponent `gorm:"type:jsonb;serializer:json" json:"components"`
	Status          AssemblyStatus      `gorm:"size:16;not null;index" json:"status"`
	CreatedBy       string              `gorm:"size:64" json:"created_by"`
	CreatedAt       time.Time           `gorm:"not null" json:"created_at"`
	StartedAt       *time.Time          `json:"started_at,omitempty"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
}

// TableName overrides the GORM table name
func (AssemblyOrder) TableName() string {
	return "assembly_orders"
}

// NewAssemblyOrder plans a kit build
func NewAssemblyOrder(kitSku string, plannedQty int64, components []AssemblyComponent, createdBy string) (*AssemblyOrder, error) {
	if kitSku == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "kit sku cannot be empty")
	}
	if plannedQty <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidQuantity, "planned quantity must be positive")
	}
	if len(components) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "assembly order requires at least one component")
	}
	seen := make(map[string]struct{}, len(components))
	for _, c := range components {
		if c.Sku == "" || c.RequiredQuantity <= 0 {
			return nil, shared.NewDomainError(shared.CodeInvalidState,
				fmt.Sprintf("component %q requires a sku and a positive quantity", c.Sku))
		}
		if _, dup := seen[c.Sku]; dup {
			return nil, shared.NewDomainError(shared.CodeInvalidState,
				fmt.Sprintf("component %s is listed more than once", c.Sku))
		}
		seen[c.Sku] = struct{}{}
	}
	return &AssemblyOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           uuid.New(),
		KitSku:            kitSku,
		PlannedQuantity:   plannedQty,
		Components:        components,
		Status:            AssemblyStatusCreated,
		CreatedBy:         createdBy,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// ComponentAllocation pairs a component SKU with a quantity booked against it
type ComponentAllocation struct {
	Sku      string
	Quantity int64
}

// RecordAllocations books allocated component stock against the order. The
// whole batch lands under a single version bump; an unknown SKU or a
// non-positive quantity rejects the batch before anything is applied.
func (ao *AssemblyOrder) RecordAllocations(allocations []ComponentAllocation) error {
	if ao.Status != AssemblyStatusCreated {
		return ao.transitionError("allocate components for")
	}
	index := make(map[string]int, len(ao.Components))
	for i := range ao.Components {
		index[ao.Components[i].Sku] = i
	}
	for _, a := range allocations {
		if a.Quantity <= 0 {
			return shared.NewDomainError(shared.CodeInvalidQuantity, "allocation quantity must be positive")
		}
		if _, ok := index[a.Sku]; !ok {
			return shared.NewDomainError(shared.CodeNotFound,
				fmt.Sprintf("sku %s is not a component of assembly order %s", a.Sku, ao.OrderID))
		}
	}
	if len(allocations) == 0 {
		return nil
	}
	for _, a := range allocations {
		ao.Components[index[a.Sku]].AllocatedQuantity += a.Quantity
	}
	ao.IncrementVersion()
	return nil
}

// Start moves the build onto the floor. Every component must be allocated.
func (ao *AssemblyOrder) Start() error {
	if ao.Status != AssemblyStatusCreated {
		return ao.transitionError("start")
	}
	for _, c := range ao.Components {
		if !c.IsFullyAllocated() {
			return shared.NewDomainError(shared.CodeInsufficientStock,
				fmt.Sprintf("component %s has %d of %d required units allocated", c.Sku, c.AllocatedQuantity, c.RequiredQuantity))
		}
	}
	now := time.Now().UTC()
	ao.Status = AssemblyStatusInProgress
	ao.StartedAt = &now
	ao.IncrementVersion()
	return nil
}

// Complete records the finished build quantity
func (ao *AssemblyOrder) Complete(actualQty int64) error {
	if ao.Status != AssemblyStatusInProgress {
		return ao.transitionError("complete")
	}
	if actualQty < 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity, "actual quantity cannot be negative")
	}
	if actualQty > ao.PlannedQuantity {
		return shared.NewDomainError(shared.CodeInvalidQuantity,
			fmt.Sprintf("actual quantity %d exceeds planned %d", actualQty, ao.PlannedQuantity))
	}
	now := time.Now().UTC()
	ao.Status = AssemblyStatusCompleted
	ao.ActualQuantity = actualQty
	ao.CompletedAt = &now
	ao.IncrementVersion()
	return nil
}

// Cancel aborts the build from CREATED or IN_PROGRESS
func (ao *AssemblyOrder) Cancel() error {
	if ao.Status != AssemblyStatusCreated && ao.Status != AssemblyStatusInProgress {
		return ao.transitionError("cancel")
	}
	now := time.Now().UTC()
	ao.Status = AssemblyStatusCancelled
	ao.CancelledAt = &now
	ao.IncrementVersion()
	return nil
}

func (ao *AssemblyOrder) transitionError(action string) error {
	return shared.NewDomainError(shared.CodeInvalidState,
		fmt.Sprintf("cannot %s assembly order %s in status %s", action, ao.OrderID, ao.Status))
}
