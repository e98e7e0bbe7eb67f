package stock

import "time"

// LotStatus tracks the lifecycle of a production lot
type LotStatus string

const (
	LotStatusActive     LotStatus = "ACTIVE"
	LotStatusQuarantine LotStatus = "QUARANTINE"
	LotStatusExpired    LotStatus = "EXPIRED"
	LotStatusRecalled   LotStatus = "RECALLED"
	LotStatusConsumed   LotStatus = "CONSUMED"
)

// IsValid checks if the lot status is known
func (s LotStatus) IsValid() bool {
	switch s {
	case LotStatusActive, LotStatusQuarantine, LotStatusExpired, LotStatusRecalled, LotStatusConsumed:
		return true
	}
	return false
}

// LotBatch is one production run's worth of a SKU, tracked for expiry and
// recall. Lot numbers are unique within an aggregate; lot quantities never
// exceed the aggregate's on-hand total.
type LotBatch struct {
	LotNumber         string     `json:"lot_number"`
	ManufactureDate   time.Time  `json:"manufacture_date"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
	Status            LotStatus  `json:"status"`
	Quantity          int64      `json:"quantity"`
	AllocatedQuantity int64      `json:"allocated_quantity"`
}

// NewLotBatch creates an active lot with the received quantity
func NewLotBatch(lotNumber string, manufactureDate time.Time, expiryDate *time.Time, quantity int64) LotBatch {
	return LotBatch{
		LotNumber:       lotNumber,
		ManufactureDate: manufactureDate,
		ExpiryDate:      expiryDate,
		Status:          LotStatusActive,
		Quantity:        quantity,
	}
}

// AvailableQuantity returns the unallocated portion of the lot
func (l LotBatch) AvailableQuantity() int64 {
	return l.Quantity - l.AllocatedQuantity
}

// IsExpiredAt reports whether the lot has passed its expiry date
func (l LotBatch) IsExpiredAt(now time.Time) bool {
	return l.ExpiryDate != nil && !l.ExpiryDate.After(now)
}

// CanAllocate reports whether the lot can supply the requested quantity
func (l LotBatch) CanAllocate(quantity int64) bool {
	return l.Status == LotStatusActive && l.AvailableQuantity() >= quantity
}
