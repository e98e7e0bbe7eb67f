package stock

import (
	"time"

	"github.com/google/uuid"
)

// HoldType categorizes why a quantity of AVAILABLE stock is blocked
type HoldType string

const (
	HoldTypeQuality        HoldType = "QUALITY"
	HoldTypeLegal          HoldType = "LEGAL"
	HoldTypeAdministrative HoldType = "ADMINISTRATIVE"
	HoldTypeRecall         HoldType = "RECALL"
	HoldTypeCredit         HoldType = "CREDIT"
)

// IsValid checks if the hold type is known
func (t HoldType) IsValid() bool {
	switch t {
	case HoldTypeQuality, HoldTypeLegal, HoldTypeAdministrative, HoldTypeRecall, HoldTypeCredit:
		return true
	}
	return false
}

// InventoryHold blocks a quantity of AVAILABLE stock from allocation.
// Holds are owned by the ProductStock aggregate and have no identity
// outside it. A hold with a past ExpiresAt is inactive even before the
// expiry sweeper persists the flag.
type InventoryHold struct {
	HoldID    string     `json:"hold_id"`
	HoldType  HoldType   `json:"hold_type"`
	Quantity  int64      `json:"quantity"`
	Reason    string     `json:"reason"`
	PlacedBy  string     `json:"placed_by"`
	PlacedAt  time.Time  `json:"placed_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	LotNumber string     `json:"lot_number,omitempty"`
	Active    bool       `json:"active"`
}

// NewInventoryHold creates an active hold with a generated identifier
func NewInventoryHold(holdType HoldType, quantity int64, reason, placedBy string, expiresAt *time.Time) InventoryHold {
	return InventoryHold{
		HoldID:    uuid.New().String(),
		HoldType:  holdType,
		Quantity:  quantity,
		Reason:    reason,
		PlacedBy:  placedBy,
		PlacedAt:  time.Now().UTC(),
		ExpiresAt: expiresAt,
		Active:    true,
	}
}

// IsActiveAt reports whether the hold blocks stock at the given instant
func (h InventoryHold) IsActiveAt(now time.Time) bool {
	if !h.Active {
		return false
	}
	if h.ExpiresAt != nil && !h.ExpiresAt.After(now) {
		return false
	}
	return true
}

// IsExpiredAt reports whether an active hold has lapsed
func (h InventoryHold) IsExpiredAt(now time.Time) bool {
	return h.Active && h.ExpiresAt != nil && !h.ExpiresAt.After(now)
}
