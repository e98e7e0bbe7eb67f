package stock

// StockLevel is the sellable-quantity triple carried on the aggregate and in
// level-changed event payloads. JSON field names are part of the wire
// contract and must stay snake_case.
type StockLevel struct {
	QuantityOnHand     int64 `json:"quantity_on_hand"`
	QuantityAllocated  int64 `json:"quantity_allocated"`
	AvailableToPromise int64 `json:"available_to_promise"`
}

// NewStockLevel builds a level with ATP equal to the unallocated quantity.
// The aggregate recomputes ATP whenever status buckets or holds change.
func NewStockLevel(onHand, allocated int64) StockLevel {
	return StockLevel{
		QuantityOnHand:     onHand,
		QuantityAllocated:  allocated,
		AvailableToPromise: maxInt64(0, onHand-allocated),
	}
}

// IsZero returns true when nothing is on hand or allocated
func (l StockLevel) IsZero() bool {
	return l.QuantityOnHand == 0 && l.QuantityAllocated == 0
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
