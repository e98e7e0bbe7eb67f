package stock

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paklog/inventory-service/internal/domain/shared"
)

// ContainerStatus is the lifecycle state of a license plate
type ContainerStatus string

const (
	ContainerStatusOpen    ContainerStatus = "OPEN"
	ContainerStatusClosed  ContainerStatus = "CLOSED"
	ContainerStatusShipped ContainerStatus = "SHIPPED"
)

// Container is a license-plate-number movement record. It is plain CRUD
// state; it does not participate in the stock invariants.
type Container struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LPN       string          `gorm:"size:64;not null;uniqueIndex" json:"lpn"`
	Sku       string          `gorm:"size:64;index" json:"sku,omitempty"`
	Quantity  int64           `json:"quantity"`
	Location  Location        `gorm:"type:jsonb;serializer:json" json:"location"`
	Status    ContainerStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName overrides the GORM table name
func (Container) TableName() string {
	return "containers"
}

// NewContainer opens a license plate at a location
func NewContainer(lpn string, location Location) (*Container, error) {
	if lpn == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "lpn cannot be empty")
	}
	now := time.Now().UTC()
	return &Container{
		ID:        uuid.New(),
		LPN:       lpn,
		Location:  location,
		Status:    ContainerStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Pack loads a quantity of one SKU onto an open license plate
func (c *Container) Pack(sku string, qty int64) error {
	if c.Status != ContainerStatusOpen {
		return c.transitionError("pack")
	}
	if sku == "" {
		return shared.NewDomainError(shared.CodeInvalidState, "sku cannot be empty")
	}
	if qty <= 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity, "packed quantity must be positive")
	}
	c.Sku = sku
	c.Quantity = qty
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Ship marks a packed license plate as in movement
func (c *Container) Ship() error {
	if c.Status != ContainerStatusOpen {
		return c.transitionError("ship")
	}
	if c.Quantity == 0 {
		return shared.NewDomainError(shared.CodeInvalidState, "cannot ship an empty container")
	}
	c.Status = ContainerStatusShipped
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Close settles the license plate at a location. An open plate closes in
// place; a shipped one closes where it arrived.
func (c *Container) Close(at Location) error {
	if c.Status == ContainerStatusClosed {
		return c.transitionError("close")
	}
	if !at.IsZero() {
		c.Location = at
	}
	c.Status = ContainerStatusClosed
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (c *Container) transitionError(action string) error {
	return shared.NewDomainError(shared.CodeInvalidState,
		fmt.Sprintf("cannot %s container %s in status %s", action, c.LPN, c.Status))
}
