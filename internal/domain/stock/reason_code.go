package stock

// ReasonCode is an accepted business justification for a stock adjustment.
// The code travels unchanged into the ledger entry and the level-changed
// event's change_reason field.
type ReasonCode string

const (
	// Inbound reasons
	ReasonPurchaseReceipt    ReasonCode = "PURCHASE_RECEIPT"
	ReasonReturnToStock      ReasonCode = "RETURN_TO_STOCK"
	ReasonTransferIn         ReasonCode = "TRANSFER_IN"
	ReasonProductionComplete ReasonCode = "PRODUCTION_COMPLETE"

	// Outbound reasons
	ReasonSale        ReasonCode = "SALE"
	ReasonDamage      ReasonCode = "DAMAGE"
	ReasonTheftLoss   ReasonCode = "THEFT_LOSS"
	ReasonTransferOut ReasonCode = "TRANSFER_OUT"
	ReasonDisposal    ReasonCode = "DISPOSAL"

	// Count and system reasons
	ReasonPhysicalCount    ReasonCode = "PHYSICAL_COUNT"
	ReasonCycleCount       ReasonCode = "CYCLE_COUNT"
	ReasonSystemCorrection ReasonCode = "SYSTEM_CORRECTION"

	// Operation-originated reasons
	ReasonItemPicked   ReasonCode = "ITEM_PICKED"
	ReasonAllocation   ReasonCode = "ALLOCATION"
	ReasonDeallocation ReasonCode = "DEALLOCATION"
)

// IsValid checks if the reason code is accepted for adjustments
func (r ReasonCode) IsValid() bool {
	switch r {
	case ReasonPurchaseReceipt, ReasonReturnToStock, ReasonTransferIn,
		ReasonProductionComplete, ReasonSale, ReasonDamage, ReasonTheftLoss,
		ReasonTransferOut, ReasonDisposal, ReasonPhysicalCount,
		ReasonCycleCount, ReasonSystemCorrection, ReasonItemPicked,
		ReasonAllocation, ReasonDeallocation:
		return true
	}
	return false
}

// String returns the string representation of the reason code
func (r ReasonCode) String() string {
	return string(r)
}

// Change reasons emitted by aggregate operations that are not free-form
// adjustments. These values are part of the wire contract; do not rename.
const (
	ChangeReasonStockReceipt = "STOCK_RECEIPT"
	ChangeReasonAllocation   = "ALLOCATION"
	ChangeReasonDeallocation = "DEALLOCATION"
	ChangeReasonPick         = "PICK"
)
