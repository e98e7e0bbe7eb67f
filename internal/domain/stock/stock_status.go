package stock

// StockStatus segregates on-hand quantity into disposition buckets.
// The bucket values always sum to the quantity on hand.
type StockStatus string

const (
	StockStatusAvailable  StockStatus = "AVAILABLE"
	StockStatusQuarantine StockStatus = "QUARANTINE"
	StockStatusDamaged    StockStatus = "DAMAGED"
	StockStatusOnHold     StockStatus = "ON_HOLD"
	StockStatusExpired    StockStatus = "EXPIRED"
	StockStatusReturned   StockStatus = "RETURNED"
	StockStatusReserved   StockStatus = "RESERVED"
	StockStatusAllocated  StockStatus = "ALLOCATED"
	StockStatusInTransit  StockStatus = "IN_TRANSIT"
)

// IsValid checks if the stock status is a known bucket
func (s StockStatus) IsValid() bool {
	switch s {
	case StockStatusAvailable, StockStatusQuarantine, StockStatusDamaged,
		StockStatusOnHold, StockStatusExpired, StockStatusReturned,
		StockStatusReserved, StockStatusAllocated, StockStatusInTransit:
		return true
	}
	return false
}

// String returns the string representation of the status
func (s StockStatus) String() string {
	return string(s)
}

// AllStockStatuses returns every known status bucket
func AllStockStatuses() []StockStatus {
	return []StockStatus{
		StockStatusAvailable,
		StockStatusQuarantine,
		StockStatusDamaged,
		StockStatusOnHold,
		StockStatusExpired,
		StockStatusReturned,
		StockStatusReserved,
		StockStatusAllocated,
		StockStatusInTransit,
	}
}

// StatusQuantities maps each disposition bucket to its quantity.
// Stored on the aggregate as a JSON document.
type StatusQuantities map[StockStatus]int64

// Total returns the sum across all buckets
func (q StatusQuantities) Total() int64 {
	var total int64
	for _, qty := range q {
		total += qty
	}
	return total
}

// Get returns the quantity in a bucket (zero when absent)
func (q StatusQuantities) Get(status StockStatus) int64 {
	return q[status]
}

// Clone returns a deep copy of the bucket map
func (q StatusQuantities) Clone() StatusQuantities {
	out := make(StatusQuantities, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}
