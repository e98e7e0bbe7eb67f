package stock

import (
	"fmt"
	"sort"
	"time"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ValuationMethod determines how issue costs are computed
type ValuationMethod string

const (
	ValuationFIFO            ValuationMethod = "FIFO"
	ValuationLIFO            ValuationMethod = "LIFO"
	ValuationWeightedAverage ValuationMethod = "WEIGHTED_AVERAGE"
	ValuationStandardCost    ValuationMethod = "STANDARD_COST"
)

// IsValid checks if the valuation method is known
func (m ValuationMethod) IsValid() bool {
	switch m {
	case ValuationFIFO, ValuationLIFO, ValuationWeightedAverage, ValuationStandardCost:
		return true
	}
	return false
}

// CostLayer is one receipt's worth of stock at its landed unit cost.
// Layers exist only for FIFO and LIFO valuations.
type CostLayer struct {
	Quantity   int64             `json:"quantity"`
	UnitCost   valueobject.Money `json:"unit_cost"`
	ReceivedAt time.Time         `json:"received_at"`
}

// InventoryValuation carries the monetary view of the stock. It is an
// immutable value: mutation methods return a new valuation.
type InventoryValuation struct {
	Method     ValuationMethod      `json:"method"`
	UnitCost   valueobject.Money    `json:"unit_cost"`
	TotalValue valueobject.Money    `json:"total_value"`
	Currency   valueobject.Currency `json:"currency"`
	CostLayers []CostLayer          `json:"cost_layers,omitempty"`
}

// NewInventoryValuation creates a valuation with zero total value
func NewInventoryValuation(method ValuationMethod, unitCost valueobject.Money) (InventoryValuation, error) {
	if !method.IsValid() {
		return InventoryValuation{}, shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("unknown valuation method: %s", method))
	}
	if unitCost.IsNegative() {
		return InventoryValuation{}, shared.NewDomainError(shared.CodeInvalidQuantity, "unit cost cannot be negative")
	}
	return InventoryValuation{
		Method:     method,
		UnitCost:   unitCost,
		TotalValue: valueobject.Zero(unitCost.Currency()),
		Currency:   unitCost.Currency(),
	}, nil
}

// ApplyReceipt absorbs a receipt of qty units at the given unit cost.
// onHandBefore is the aggregate quantity before the receipt; receivedAt
// orders cost layers deterministically for FIFO/LIFO consumption.
func (v InventoryValuation) ApplyReceipt(onHandBefore, qty int64, unitCost valueobject.Money, receivedAt time.Time) (InventoryValuation, error) {
	if qty <= 0 {
		return InventoryValuation{}, shared.NewDomainError(shared.CodeInvalidQuantity, "receipt quantity must be positive")
	}
	if unitCost.Currency() != v.Currency {
		return InventoryValuation{}, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("receipt currency %s does not match valuation currency %s", unitCost.Currency(), v.Currency))
	}

	next := v.Clone()
	receiptValue := unitCost.MultiplyByInt(qty)

	switch v.Method {
	case ValuationFIFO, ValuationLIFO:
		next.CostLayers = append(next.CostLayers, CostLayer{
			Quantity:   qty,
			UnitCost:   unitCost,
			ReceivedAt: receivedAt,
		})
		total, err := next.TotalValue.Add(receiptValue)
		if err != nil {
			return InventoryValuation{}, err
		}
		next.TotalValue = total
		next.UnitCost = next.blendedUnitCost()

	case ValuationWeightedAverage:
		existingValue := v.UnitCost.MultiplyByInt(onHandBefore)
		total, err := existingValue.Add(receiptValue)
		if err != nil {
			return InventoryValuation{}, err
		}
		newQty := onHandBefore + qty
		avg, err := total.Divide(decimal.NewFromInt(newQty))
		if err != nil {
			return InventoryValuation{}, err
		}
		next.UnitCost = avg.Round(4)
		next.TotalValue = total

	case ValuationStandardCost:
		next.TotalValue = v.UnitCost.MultiplyByInt(onHandBefore + qty)
	}

	return next, nil
}

// ApplyIssue removes qty units and returns the new valuation together with
// the cost of goods issued under the valuation method.
func (v InventoryValuation) ApplyIssue(onHandBefore, qty int64) (InventoryValuation, valueobject.Money, error) {
	if qty <= 0 {
		return InventoryValuation{}, valueobject.Money{}, shared.NewDomainError(shared.CodeInvalidQuantity, "issue quantity must be positive")
	}
	if qty > onHandBefore {
		return InventoryValuation{}, valueobject.Money{}, shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("cannot issue %d units, only %d on hand", qty, onHandBefore))
	}

	next := v.Clone()

	switch v.Method {
	case ValuationFIFO:
		cogs, layers, err := consumeLayers(next.CostLayers, qty, false)
		if err != nil {
			return InventoryValuation{}, valueobject.Money{}, err
		}
		next.CostLayers = layers
		total, err := next.TotalValue.Subtract(cogs)
		if err != nil {
			return InventoryValuation{}, valueobject.Money{}, err
		}
		next.TotalValue = total
		next.UnitCost = next.blendedUnitCost()
		return next, cogs, nil

	case ValuationLIFO:
		cogs, layers, err := consumeLayers(next.CostLayers, qty, true)
		if err != nil {
			return InventoryValuation{}, valueobject.Money{}, err
		}
		next.CostLayers = layers
		total, err := next.TotalValue.Subtract(cogs)
		if err != nil {
			return InventoryValuation{}, valueobject.Money{}, err
		}
		next.TotalValue = total
		next.UnitCost = next.blendedUnitCost()
		return next, cogs, nil

	default: // WEIGHTED_AVERAGE and STANDARD_COST issue at the carrying cost
		cogs := v.UnitCost.MultiplyByInt(qty)
		next.TotalValue = v.UnitCost.MultiplyByInt(onHandBefore - qty)
		return next, cogs, nil
	}
}

// Revalue sets a new unit cost and recomputes total value at the given
// on-hand quantity. Used for standard-cost updates and corrections.
func (v InventoryValuation) Revalue(newUnitCost valueobject.Money, onHand int64) (InventoryValuation, error) {
	if newUnitCost.IsNegative() {
		return InventoryValuation{}, shared.NewDomainError(shared.CodeInvalidQuantity, "unit cost cannot be negative")
	}
	if newUnitCost.Currency() != v.Currency {
		return InventoryValuation{}, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("unit cost currency %s does not match valuation currency %s", newUnitCost.Currency(), v.Currency))
	}
	next := v.Clone()
	next.UnitCost = newUnitCost
	next.TotalValue = newUnitCost.MultiplyByInt(onHand)
	return next, nil
}

// LayeredQuantity returns the total quantity held across cost layers
func (v InventoryValuation) LayeredQuantity() int64 {
	var total int64
	for _, l := range v.CostLayers {
		total += l.Quantity
	}
	return total
}

// Clone copies the valuation including its cost layers
func (v InventoryValuation) Clone() InventoryValuation {
	next := v
	if len(v.CostLayers) > 0 {
		next.CostLayers = make([]CostLayer, len(v.CostLayers))
		copy(next.CostLayers, v.CostLayers)
	}
	return next
}

// blendedUnitCost is total layered value divided by layered quantity,
// used as the reporting unit cost for FIFO/LIFO valuations.
func (v InventoryValuation) blendedUnitCost() valueobject.Money {
	qty := v.LayeredQuantity()
	if qty == 0 {
		return valueobject.Zero(v.Currency)
	}
	total := valueobject.Zero(v.Currency)
	for _, l := range v.CostLayers {
		sum, err := total.Add(l.UnitCost.MultiplyByInt(l.Quantity))
		if err != nil {
			return v.UnitCost
		}
		total = sum
	}
	avg, err := total.Divide(decimal.NewFromInt(qty))
	if err != nil {
		return v.UnitCost
	}
	return avg.Round(4)
}

// consumeLayers drains qty units from cost layers ordered by receipt time,
// oldest first for FIFO and newest first for LIFO. Returns the cost of the
// consumed units and the surviving layers.
func consumeLayers(layers []CostLayer, qty int64, newestFirst bool) (valueobject.Money, []CostLayer, error) {
	if len(layers) == 0 {
		return valueobject.Money{}, nil, shared.NewDomainError(shared.CodeInvalidState, "no cost layers to consume")
	}

	sorted := make([]CostLayer, len(layers))
	copy(sorted, layers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if newestFirst {
			return sorted[i].ReceivedAt.After(sorted[j].ReceivedAt)
		}
		return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt)
	})

	remaining := qty
	cogs := valueobject.Zero(sorted[0].UnitCost.Currency())
	survivors := make([]CostLayer, 0, len(sorted))

	for _, layer := range sorted {
		if remaining == 0 {
			survivors = append(survivors, layer)
			continue
		}
		used := layer.Quantity
		if used > remaining {
			used = remaining
		}
		sum, err := cogs.Add(layer.UnitCost.MultiplyByInt(used))
		if err != nil {
			return valueobject.Money{}, nil, err
		}
		cogs = sum
		remaining -= used
		if leftover := layer.Quantity - used; leftover > 0 {
			layer.Quantity = leftover
			survivors = append(survivors, layer)
		}
	}

	if remaining > 0 {
		return valueobject.Money{}, nil, shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("cost layers cover %d fewer units than issued", remaining))
	}

	// Restore receipt order so the stored document stays deterministic.
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].ReceivedAt.Before(survivors[j].ReceivedAt)
	})
	return cogs, survivors, nil
}
