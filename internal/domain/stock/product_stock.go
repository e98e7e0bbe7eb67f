package stock

import (
	"fmt"
	"time"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/shared/valueobject"
)

// ProductStock is the aggregate root for one SKU's inventory position. It
// owns the on-hand/allocated pair, the per-status breakdown, holds, lots,
// valuation and classification. All mutations go through its methods, which
// validate preconditions before touching state and append domain events for
// every observable change. Persistence is versioned; see the repository.
type ProductStock struct {
	shared.BaseAggregateRoot

	Sku               string             `gorm:"primaryKey;size:64" json:"sku"`
	QuantityOnHand    int64              `gorm:"not null;default:0" json:"quantity_on_hand"`
	QuantityAllocated int64              `gorm:"not null;default:0" json:"quantity_allocated"`
	StatusQuantities  StatusQuantities   `gorm:"type:jsonb;serializer:json" json:"status_quantities"`
	Holds             []InventoryHold    `gorm:"type:jsonb;serializer:json" json:"holds,omitempty"`
	LotBatches        []LotBatch         `gorm:"type:jsonb;serializer:json" json:"lot_batches,omitempty"`
	Classification    *ABCClassification `gorm:"type:jsonb;serializer:json" json:"abc_classification,omitempty"`
	Valuation         *InventoryValuation `gorm:"type:jsonb;serializer:json" json:"valuation,omitempty"`

	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`
}

// TableName overrides the GORM table name
func (ProductStock) TableName() string {
	return "product_stocks"
}

// NewProductStock creates an empty stock record for a SKU. Zero stock is a
// valid state; the first receipt or adjustment emits the level change.
func NewProductStock(sku string) (*ProductStock, error) {
	if sku == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "sku cannot be empty")
	}
	now := time.Now().UTC()
	return &ProductStock{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Sku:               sku,
		StatusQuantities:  StatusQuantities{},
		CreatedAt:         now,
		LastUpdated:       now,
	}, nil
}

// CreateProductStock creates a record with an initial on-hand quantity and
// emits the level change from the zero state.
func CreateProductStock(sku string, initialQuantity int64) (*ProductStock, error) {
	ps, err := NewProductStock(sku)
	if err != nil {
		return nil, err
	}
	if initialQuantity < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidQuantity, "initial quantity cannot be negative")
	}
	if initialQuantity > 0 {
		if err := ps.ReceiveStock(initialQuantity); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

// AvailableToPromise is the sellable quantity right now: the AVAILABLE
// bucket minus allocations minus active holds, floored at zero.
func (ps *ProductStock) AvailableToPromise() int64 {
	return ps.AvailableToPromiseAt(time.Now().UTC())
}

// AvailableToPromiseAt evaluates ATP at a given instant. Holds expire
// lazily, so the instant decides which holds still count.
func (ps *ProductStock) AvailableToPromiseAt(now time.Time) int64 {
	atp := ps.uncommittedAvailable(now)
	if atp < 0 {
		return 0
	}
	return atp
}

// uncommittedAvailable is the unfloored ATP. Mutations that shrink it must
// not let it go negative; views clamp it at zero.
func (ps *ProductStock) uncommittedAvailable(now time.Time) int64 {
	return ps.StatusQuantities.Get(StockStatusAvailable) - ps.QuantityAllocated - ps.ActiveHoldQuantity(now)
}

// ActiveHoldQuantity sums the quantities of holds still active at now
func (ps *ProductStock) ActiveHoldQuantity(now time.Time) int64 {
	var total int64
	for _, h := range ps.Holds {
		if h.IsActiveAt(now) {
			total += h.Quantity
		}
	}
	return total
}

// Level reports the current stock level triple
func (ps *ProductStock) Level() StockLevel {
	return ps.levelAt(time.Now().UTC())
}

func (ps *ProductStock) levelAt(now time.Time) StockLevel {
	return StockLevel{
		QuantityOnHand:     ps.QuantityOnHand,
		QuantityAllocated:  ps.QuantityAllocated,
		AvailableToPromise: ps.AvailableToPromiseAt(now),
	}
}

// Allocate reserves qty units for an order. The reservation is logical:
// on-hand does not move until the pick.
func (ps *ProductStock) Allocate(qty int64) error {
	if qty <= 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity, "allocation quantity must be positive")
	}
	now := time.Now().UTC()
	available := ps.uncommittedAvailable(now)
	if qty > available {
		if available < 0 {
			available = 0
		}
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock: available=%d, requested=%d", available, qty))
	}

	previous := ps.levelAt(now)
	ps.QuantityAllocated += qty
	ps.touch(now)

	ps.AddDomainEvent(NewStockLevelChangedEvent(ps.Sku, previous, ps.levelAt(now), ChangeReasonAllocation))
	ps.IncrementVersion()
	return nil
}

// Deallocate releases a previous reservation
func (ps *ProductStock) Deallocate(qty int64) error {
	if qty <= 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity, "deallocation quantity must be positive")
	}
	if qty > ps.QuantityAllocated {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("cannot deallocate %d units, only %d allocated", qty, ps.QuantityAllocated))
	}
	now := time.Now().UTC()

	previous := ps.levelAt(now)
	ps.QuantityAllocated -= qty
	ps.touch(now)

	ps.AddDomainEvent(NewStockLevelChangedEvent(ps.Sku, previous, ps.levelAt(now), ChangeReasonDeallocation))
	ps.IncrementVersion()
	return nil
}

// AdjustQuantityOnHand applies a signed correction to on-hand stock. The
// delta lands in the AVAILABLE bucket; segregated stock is adjusted through
// ChangeStockStatus first. The reason is the caller's reason code and is
// carried verbatim on the event and the ledger.
func (ps *ProductStock) AdjustQuantityOnHand(delta int64, reason string) error {
	if delta == 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity, "adjustment quantity cannot be zero")
	}
	if ps.QuantityOnHand+delta < 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity,
			fmt.Sprintf("adjustment of %d would drive on-hand below zero (current %d)", delta, ps.QuantityOnHand))
	}
	if ps.QuantityAllocated > ps.QuantityOnHand+delta {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("adjustment of %d would leave on-hand below the %d allocated", delta, ps.QuantityAllocated))
	}
	now := time.Now().UTC()
	if delta < 0 {
		if ps.StatusQuantities.Get(StockStatusAvailable)+delta < 0 {
			return shared.NewDomainError(shared.CodeInsufficientStock,
				fmt.Sprintf("adjustment of %d exceeds the %d units in AVAILABLE", delta, ps.StatusQuantities.Get(StockStatusAvailable)))
		}
		if ps.uncommittedAvailable(now)+delta < 0 {
			return shared.NewDomainError(shared.CodeInsufficientStock,
				fmt.Sprintf("adjustment of %d would break active allocations or holds", delta))
		}
	}

	previous := ps.levelAt(now)
	ps.QuantityOnHand += delta
	ps.addToBucket(StockStatusAvailable, delta)
	if err := ps.revalueAfterQuantityChange(delta, reason, now); err != nil {
		ps.QuantityOnHand -= delta
		ps.addToBucket(StockStatusAvailable, -delta)
		return err
	}
	ps.touch(now)

	ps.AddDomainEvent(NewStockLevelChangedEvent(ps.Sku, previous, ps.levelAt(now), reason))
	ps.IncrementVersion()
	return nil
}

// ReceiveStock books qty units into the AVAILABLE bucket
func (ps *ProductStock) ReceiveStock(qty int64) error {
	return ps.receive(qty, StockStatusAvailable, valueobject.Money{}, "")
}

// ReceiveStockAtCost books qty units into AVAILABLE and absorbs the landed
// unit cost into the valuation.
func (ps *ProductStock) ReceiveStockAtCost(qty int64, unitCost valueobject.Money) error {
	return ps.receive(qty, StockStatusAvailable, unitCost, "")
}

// ReceiveStockInStatus books qty units directly into a segregated bucket,
// for goods that arrive damaged or pending inspection.
func (ps *ProductStock) ReceiveStockInStatus(qty int64, status StockStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("unknown stock status: %s", status))
	}
	return ps.receive(qty, status, valueobject.Money{}, "")
}

// ReceiveLot books qty units of a tracked lot into AVAILABLE, creating the
// lot batch on first sight or topping up an existing one.
func (ps *ProductStock) ReceiveLot(qty int64, lotNumber string, manufactureDate time.Time, expiryDate *time.Time) error {
	if lotNumber == "" {
		return shared.NewDomainError(shared.CodeInvalidState, "lot number cannot be empty")
	}
	if err := ps.receive(qty, StockStatusAvailable, valueobject.Money{}, lotNumber); err != nil {
		return err
	}
	if lot := ps.findLot(lotNumber); lot != nil {
		lot.Quantity += qty
	} else {
		ps.LotBatches = append(ps.LotBatches, NewLotBatch(lotNumber, manufactureDate, expiryDate, qty))
	}
	return nil
}

func (ps *ProductStock) receive(qty int64, status StockStatus, unitCost valueobject.Money, lotNumber string) error {
	if qty <= 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity, "receipt quantity must be positive")
	}
	now := time.Now().UTC()

	previous := ps.levelAt(now)
	ps.QuantityOnHand += qty
	ps.addToBucket(status, qty)

	if ps.Valuation != nil {
		cost := unitCost
		if cost.IsZero() {
			cost = ps.Valuation.UnitCost
		}
		before := *ps.Valuation
		next, err := before.ApplyReceipt(ps.QuantityOnHand-qty, qty, cost, now)
		if err != nil {
			ps.QuantityOnHand -= qty
			ps.addToBucket(status, -qty)
			return err
		}
		ps.Valuation = &next
		ps.AddDomainEvent(NewInventoryValuationChangedEvent(ps.Sku, before, next, ps.QuantityOnHand, ChangeReasonStockReceipt))
	}
	ps.touch(now)

	ps.AddDomainEvent(NewStockLevelChangedEvent(ps.Sku, previous, ps.levelAt(now), ChangeReasonStockReceipt))
	if status != StockStatusAvailable {
		ps.AddDomainEvent(NewStockStatusChangedEvent(ps.Sku, "", status, qty, ChangeReasonStockReceipt, lotNumber))
	}
	ps.IncrementVersion()
	return nil
}

// ProcessPick confirms a physical pick against a prior allocation: both
// allocated and on-hand shrink together, producing a single level change.
func (ps *ProductStock) ProcessPick(qty int64) error {
	if qty <= 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity, "pick quantity must be positive")
	}
	if qty > ps.QuantityAllocated {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("cannot pick %d units, only %d allocated", qty, ps.QuantityAllocated))
	}
	if ps.StatusQuantities.Get(StockStatusAvailable) < qty {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("cannot pick %d units, only %d in AVAILABLE", qty, ps.StatusQuantities.Get(StockStatusAvailable)))
	}
	now := time.Now().UTC()

	previous := ps.levelAt(now)
	ps.QuantityOnHand -= qty
	ps.QuantityAllocated -= qty
	ps.addToBucket(StockStatusAvailable, -qty)
	if err := ps.revalueAfterQuantityChange(-qty, ChangeReasonPick, now); err != nil {
		ps.QuantityOnHand += qty
		ps.QuantityAllocated += qty
		ps.addToBucket(StockStatusAvailable, qty)
		return err
	}
	ps.touch(now)

	ps.AddDomainEvent(NewStockLevelChangedEvent(ps.Sku, previous, ps.levelAt(now), ChangeReasonPick))
	ps.IncrementVersion()
	return nil
}

// ChangeStockStatus moves qty units between disposition buckets
func (ps *ProductStock) ChangeStockStatus(from, to StockStatus, qty int64, reason, lotNumber string) error {
	if qty <= 0 {
		return shared.NewDomainError(shared.CodeInvalidQuantity, "status change quantity must be positive")
	}
	if !from.IsValid() || !to.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("unknown stock status: %s -> %s", from, to))
	}
	if from == to {
		return shared.NewDomainError(shared.CodeInvalidState, "source and target status are the same")
	}
	if ps.StatusQuantities.Get(from) < qty {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("only %d units in %s, cannot move %d", ps.StatusQuantities.Get(from), from, qty))
	}
	now := time.Now().UTC()
	if from == StockStatusAvailable && ps.uncommittedAvailable(now)-qty < 0 {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("moving %d units out of AVAILABLE would break active allocations or holds", qty))
	}

	ps.addToBucket(from, -qty)
	ps.addToBucket(to, qty)
	ps.touch(now)

	ps.AddDomainEvent(NewStockStatusChangedEvent(ps.Sku, from, to, qty, reason, lotNumber))
	ps.IncrementVersion()
	return nil
}

// PlaceHold blocks qty units of AVAILABLE stock from allocation until the
// hold is released or expires. Returns the hold with its generated id.
func (ps *ProductStock) PlaceHold(holdType HoldType, qty int64, reason, placedBy string, expiresAt *time.Time) (InventoryHold, error) {
	if qty <= 0 {
		return InventoryHold{}, shared.NewDomainError(shared.CodeInvalidQuantity, "hold quantity must be positive")
	}
	if !holdType.IsValid() {
		return InventoryHold{}, shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("unknown hold type: %s", holdType))
	}
	now := time.Now().UTC()
	available := ps.uncommittedAvailable(now)
	if qty > available {
		if available < 0 {
			available = 0
		}
		return InventoryHold{}, shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock: available=%d, requested=%d", available, qty))
	}

	hold := NewInventoryHold(holdType, qty, reason, placedBy, expiresAt)
	ps.Holds = append(ps.Holds, hold)
	ps.touch(now)

	ps.AddDomainEvent(NewInventoryHoldPlacedEvent(ps.Sku, hold))
	ps.IncrementVersion()
	return hold, nil
}

// ReleaseHold lifts an active hold, returning its quantity to ATP
func (ps *ProductStock) ReleaseHold(holdID, releasedBy string) error {
	now := time.Now().UTC()
	for i := range ps.Holds {
		if ps.Holds[i].HoldID != holdID {
			continue
		}
		if !ps.Holds[i].Active {
			return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("hold %s is already released", holdID))
		}
		ps.Holds[i].Active = false
		ps.touch(now)

		ps.AddDomainEvent(NewInventoryHoldReleasedEvent(ps.Sku, ps.Holds[i], ps.Holds[i].Reason, releasedBy))
		ps.IncrementVersion()
		return nil
	}
	return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("hold %s not found on sku %s", holdID, ps.Sku))
}

// ReleaseExpiredHolds marks every expired-but-still-active hold inactive.
// Expiry is already lazy for ATP; this records the release for consumers.
// Returns the released holds; the version moves once if any were released.
func (ps *ProductStock) ReleaseExpiredHolds(releasedBy string) []InventoryHold {
	now := time.Now().UTC()
	var released []InventoryHold
	for i := range ps.Holds {
		if !ps.Holds[i].Active || !ps.Holds[i].IsExpiredAt(now) {
			continue
		}
		ps.Holds[i].Active = false
		released = append(released, ps.Holds[i])
		ps.AddDomainEvent(NewInventoryHoldReleasedEvent(ps.Sku, ps.Holds[i], "EXPIRED", releasedBy))
	}
	if len(released) > 0 {
		ps.touch(now)
		ps.IncrementVersion()
	}
	return released
}

// AllocateFromLot reserves qty units against a specific lot batch
func (ps *ProductStock) AllocateFromLot(lotNumber string, qty int64) error {
	lot := ps.findLot(lotNumber)
	if lot == nil {
		return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("lot %s not found on sku %s", lotNumber, ps.Sku))
	}
	if !lot.CanAllocate(qty) {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("lot %s has %d units available, requested %d", lotNumber, lot.AvailableQuantity(), qty))
	}
	if err := ps.Allocate(qty); err != nil {
		return err
	}
	lot.AllocatedQuantity += qty
	return nil
}

// ChangeLotStatus moves a whole lot's unallocated stock into a new
// disposition, quarantining or expiring it in one step.
func (ps *ProductStock) ChangeLotStatus(lotNumber string, status LotStatus, reason string) error {
	lot := ps.findLot(lotNumber)
	if lot == nil {
		return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("lot %s not found on sku %s", lotNumber, ps.Sku))
	}
	if !status.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("unknown lot status: %s", status))
	}
	if lot.Status == status {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("lot %s is already %s", lotNumber, status))
	}
	now := time.Now().UTC()

	fromBucket, toBucket := bucketForLotStatus(lot.Status), bucketForLotStatus(status)
	moved := lot.AvailableQuantity()
	if fromBucket != toBucket && moved > 0 {
		if ps.StatusQuantities.Get(fromBucket) < moved {
			return shared.NewDomainError(shared.CodeInsufficientStock,
				fmt.Sprintf("only %d units in %s, lot %s holds %d", ps.StatusQuantities.Get(fromBucket), fromBucket, lotNumber, moved))
		}
		if fromBucket == StockStatusAvailable && ps.uncommittedAvailable(now)-moved < 0 {
			return shared.NewDomainError(shared.CodeInsufficientStock,
				fmt.Sprintf("moving lot %s out of AVAILABLE would break active allocations or holds", lotNumber))
		}
		ps.addToBucket(fromBucket, -moved)
		ps.addToBucket(toBucket, moved)
		ps.AddDomainEvent(NewStockStatusChangedEvent(ps.Sku, fromBucket, toBucket, moved, reason, lotNumber))
	}
	lot.Status = status
	ps.touch(now)
	ps.IncrementVersion()
	return nil
}

// bucketForLotStatus maps a lot disposition onto the status bucket its
// unallocated stock sits in.
func bucketForLotStatus(s LotStatus) StockStatus {
	switch s {
	case LotStatusQuarantine:
		return StockStatusQuarantine
	case LotStatusExpired:
		return StockStatusExpired
	case LotStatusRecalled:
		return StockStatusOnHold
	default:
		return StockStatusAvailable
	}
}

// InitializeValuation attaches a valuation to the stock. Existing on-hand
// stock is valued at the given unit cost as a single opening layer.
func (ps *ProductStock) InitializeValuation(method ValuationMethod, unitCost valueobject.Money) error {
	if ps.Valuation != nil {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("sku %s already has a valuation", ps.Sku))
	}
	now := time.Now().UTC()
	valuation, err := NewInventoryValuation(method, unitCost)
	if err != nil {
		return err
	}
	if ps.QuantityOnHand > 0 {
		valuation, err = valuation.ApplyReceipt(0, ps.QuantityOnHand, unitCost, now)
		if err != nil {
			return err
		}
	}
	previous := InventoryValuation{Method: method, UnitCost: valueobject.Zero(unitCost.Currency()), TotalValue: valueobject.Zero(unitCost.Currency()), Currency: unitCost.Currency()}
	ps.Valuation = &valuation
	ps.touch(now)

	ps.AddDomainEvent(NewInventoryValuationChangedEvent(ps.Sku, previous, valuation, ps.QuantityOnHand, "VALUATION_INITIALIZED"))
	ps.IncrementVersion()
	return nil
}

// RevalueStock rewrites the carrying unit cost, typically after a standard
// cost update or an impairment.
func (ps *ProductStock) RevalueStock(newUnitCost valueobject.Money, reason string) error {
	if ps.Valuation == nil {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("sku %s has no valuation", ps.Sku))
	}
	now := time.Now().UTC()
	before := *ps.Valuation
	next, err := before.Revalue(newUnitCost, ps.QuantityOnHand)
	if err != nil {
		return err
	}
	ps.Valuation = &next
	ps.touch(now)

	ps.AddDomainEvent(NewInventoryValuationChangedEvent(ps.Sku, before, next, ps.QuantityOnHand, reason))
	ps.IncrementVersion()
	return nil
}

// Reclassify assigns a new ABC class to the SKU
func (ps *ProductStock) Reclassify(classification ABCClassification, reason string) error {
	if !classification.Class.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("unknown abc class: %s", classification.Class))
	}
	if !classification.Criteria.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("unknown classification criteria: %s", classification.Criteria))
	}
	now := time.Now().UTC()
	var previous *ABCClass
	if ps.Classification != nil {
		c := ps.Classification.Class
		previous = &c
	}
	ps.Classification = &classification
	ps.touch(now)

	ps.AddDomainEvent(NewABCClassificationChangedEvent(ps.Sku, previous, classification, reason))
	ps.IncrementVersion()
	return nil
}

// FindHold looks up a hold by id
func (ps *ProductStock) FindHold(holdID string) (InventoryHold, bool) {
	for _, h := range ps.Holds {
		if h.HoldID == holdID {
			return h, true
		}
	}
	return InventoryHold{}, false
}

// CheckInvariants verifies the aggregate's structural invariants. The
// repository runs it on load; a violation marks the persisted document as
// corrupt and the aggregate unusable until repaired.
func (ps *ProductStock) CheckInvariants() error {
	if ps.QuantityOnHand < 0 || ps.QuantityAllocated < 0 {
		return shared.NewDomainError(shared.CodeInvariantViolation,
			fmt.Sprintf("sku %s: negative quantities (on-hand=%d, allocated=%d)", ps.Sku, ps.QuantityOnHand, ps.QuantityAllocated))
	}
	if ps.QuantityAllocated > ps.QuantityOnHand {
		return shared.NewDomainError(shared.CodeInvariantViolation,
			fmt.Sprintf("sku %s: allocated %d exceeds on-hand %d", ps.Sku, ps.QuantityAllocated, ps.QuantityOnHand))
	}
	var bucketTotal int64
	for status, qty := range ps.StatusQuantities {
		if qty < 0 {
			return shared.NewDomainError(shared.CodeInvariantViolation,
				fmt.Sprintf("sku %s: negative quantity %d in status %s", ps.Sku, qty, status))
		}
		bucketTotal += qty
	}
	if bucketTotal != ps.QuantityOnHand {
		return shared.NewDomainError(shared.CodeInvariantViolation,
			fmt.Sprintf("sku %s: status buckets sum to %d, on-hand is %d", ps.Sku, bucketTotal, ps.QuantityOnHand))
	}
	var lotTotal int64
	for _, lot := range ps.LotBatches {
		if lot.AllocatedQuantity > lot.Quantity {
			return shared.NewDomainError(shared.CodeInvariantViolation,
				fmt.Sprintf("sku %s: lot %s allocation %d exceeds lot quantity %d", ps.Sku, lot.LotNumber, lot.AllocatedQuantity, lot.Quantity))
		}
		lotTotal += lot.Quantity
	}
	if len(ps.LotBatches) > 0 && lotTotal > ps.QuantityOnHand {
		return shared.NewDomainError(shared.CodeInvariantViolation,
			fmt.Sprintf("sku %s: lot quantities sum to %d, on-hand is %d", ps.Sku, lotTotal, ps.QuantityOnHand))
	}
	return nil
}

// revalueAfterQuantityChange keeps the valuation in step with quantity
// moves. Positive deltas absorb stock at the carrying unit cost; negative
// deltas issue it under the valuation method. No-op without a valuation.
func (ps *ProductStock) revalueAfterQuantityChange(delta int64, reason string, now time.Time) error {
	if ps.Valuation == nil || delta == 0 {
		return nil
	}
	before := *ps.Valuation
	var next InventoryValuation
	var err error
	if delta > 0 {
		next, err = before.ApplyReceipt(ps.QuantityOnHand-delta, delta, before.UnitCost, now)
	} else {
		next, _, err = before.ApplyIssue(ps.QuantityOnHand-delta, -delta)
	}
	if err != nil {
		return err
	}
	ps.Valuation = &next
	ps.AddDomainEvent(NewInventoryValuationChangedEvent(ps.Sku, before, next, ps.QuantityOnHand, reason))
	return nil
}

func (ps *ProductStock) findLot(lotNumber string) *LotBatch {
	for i := range ps.LotBatches {
		if ps.LotBatches[i].LotNumber == lotNumber {
			return &ps.LotBatches[i]
		}
	}
	return nil
}

func (ps *ProductStock) addToBucket(status StockStatus, delta int64) {
	next := ps.StatusQuantities.Get(status) + delta
	if next == 0 {
		delete(ps.StatusQuantities, status)
		return
	}
	ps.StatusQuantities[status] = next
}

func (ps *ProductStock) touch(now time.Time) {
	ps.LastUpdated = now
}
