package stock

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RecordedEvent is one historical event as persisted in the outbox: the
// header columns plus the raw serialized payload.
type RecordedEvent struct {
	EventID     uuid.UUID
	EventType   string
	AggregateID string
	OccurredAt  time.Time
	Payload     []byte
}

// SkippedEvent is a replay diagnostic for an event that could not be folded
type SkippedEvent struct {
	EventID   uuid.UUID
	EventType string
	Reason    string
}

// ReplayResult is the reconstructed state plus fold diagnostics
type ReplayResult struct {
	Sku           string
	AsOf          time.Time
	State         SnapshotState
	EventsApplied int
	Skipped       []SkippedEvent
}

// Replay reconstructs a SKU's stock state at a past instant by folding the
// event stream onto a baseline snapshot. The fold is pure: no clock, no
// I/O, and the same inputs always produce the same result. Events outside
// (snapshotTimestamp, until] or belonging to other aggregates are ignored;
// events that cannot be folded are reported in Skipped, not fatal.
func Replay(baseline *InventorySnapshot, events []RecordedEvent, until time.Time) (*ReplayResult, error) {
	if baseline == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "replay requires a baseline snapshot")
	}
	if !until.After(baseline.SnapshotTimestamp) {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("target time %s is not after the baseline snapshot %s", until.Format(time.RFC3339), baseline.SnapshotTimestamp.Format(time.RFC3339)))
	}

	selected := make([]RecordedEvent, 0, len(events))
	for _, ev := range events {
		if ev.AggregateID != baseline.Sku {
			continue
		}
		if !ev.OccurredAt.After(baseline.SnapshotTimestamp) || ev.OccurredAt.After(until) {
			continue
		}
		selected = append(selected, ev)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if !selected[i].OccurredAt.Equal(selected[j].OccurredAt) {
			return selected[i].OccurredAt.Before(selected[j].OccurredAt)
		}
		return selected[i].EventID.String() < selected[j].EventID.String()
	})

	result := &ReplayResult{
		Sku:   baseline.Sku,
		AsOf:  until,
		State: cloneState(baseline.State),
	}
	for _, ev := range selected {
		if skip := foldEvent(&result.State, ev); skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}
		result.EventsApplied++
	}

	atp := result.State.StatusQuantities.Get(StockStatusAvailable) -
		result.State.QuantityAllocated -
		result.State.ActiveHoldQuantityAt(until)
	if atp < 0 {
		atp = 0
	}
	result.State.AvailableToPromise = atp
	return result, nil
}

// foldEvent applies one event's per-type semantics to the projection.
// A nil return means the event was applied.
func foldEvent(state *SnapshotState, ev RecordedEvent) *SkippedEvent {
	switch ev.EventType {
	case EventTypeStockLevelChanged:
		var payload StockLevelChangedEvent
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return skipped(ev, "malformed payload: "+err.Error())
		}
		// Level deltas land in AVAILABLE; paired status-changed events
		// relocate stock that arrived in another bucket.
		delta := payload.NewLevel.QuantityOnHand - payload.PreviousLevel.QuantityOnHand
		state.QuantityOnHand = payload.NewLevel.QuantityOnHand
		state.QuantityAllocated = payload.NewLevel.QuantityAllocated
		state.AvailableToPromise = payload.NewLevel.AvailableToPromise
		stateAddBucket(state, StockStatusAvailable, delta)

	case EventTypeStockStatusChanged:
		var payload StockStatusChangedEvent
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return skipped(ev, "malformed payload: "+err.Error())
		}
		from := payload.PreviousStatus
		if from == "" {
			from = StockStatusAvailable
		}
		stateAddBucket(state, from, -payload.Quantity)
		stateAddBucket(state, payload.NewStatus, payload.Quantity)

	case EventTypeHoldPlaced:
		var payload InventoryHoldPlacedEvent
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return skipped(ev, "malformed payload: "+err.Error())
		}
		state.Holds = append(state.Holds, InventoryHold{
			HoldID:    payload.HoldID,
			HoldType:  payload.HoldType,
			Quantity:  payload.QuantityOnHold,
			Reason:    payload.Reason,
			PlacedBy:  payload.PlacedBy,
			PlacedAt:  ev.OccurredAt,
			ExpiresAt: payload.ExpiresAt,
			LotNumber: payload.LotNumber,
			Active:    true,
		})

	case EventTypeHoldReleased:
		var payload InventoryHoldReleasedEvent
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return skipped(ev, "malformed payload: "+err.Error())
		}
		found := false
		for i := range state.Holds {
			if state.Holds[i].HoldID == payload.HoldID {
				state.Holds[i].Active = false
				found = true
				break
			}
		}
		if !found {
			return skipped(ev, "hold "+payload.HoldID+" not present in projection")
		}

	case EventTypeValuationChanged:
		var payload InventoryValuationChangedEvent
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return skipped(ev, "malformed payload: "+err.Error())
		}
		currency := valueobject.DefaultCurrency
		if state.Valuation != nil {
			currency = state.Valuation.Currency
		}
		unitCost, err := valueobject.NewMoney(payload.NewUnitCost, currency)
		if err != nil {
			return skipped(ev, "invalid unit cost: "+err.Error())
		}
		totalValue, err := valueobject.NewMoney(payload.NewTotalValue, currency)
		if err != nil {
			return skipped(ev, "invalid total value: "+err.Error())
		}
		state.Valuation = &InventoryValuation{
			Method:     payload.ValuationMethod,
			UnitCost:   unitCost,
			TotalValue: totalValue,
			Currency:   currency,
		}

	case EventTypeClassificationChanged:
		var payload ABCClassificationChangedEvent
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return skipped(ev, "malformed payload: "+err.Error())
		}
		state.Classification = &ABCClassification{
			Class:            payload.NewClass,
			Criteria:         payload.Criteria,
			AnnualUsageValue: decimal.Zero,
			ClassifiedAt:     ev.OccurredAt,
		}

	default:
		return skipped(ev, "unrecognized event type")
	}
	return nil
}

func skipped(ev RecordedEvent, reason string) *SkippedEvent {
	return &SkippedEvent{EventID: ev.EventID, EventType: ev.EventType, Reason: reason}
}

func stateAddBucket(state *SnapshotState, status StockStatus, delta int64) {
	if delta == 0 {
		return
	}
	if state.StatusQuantities == nil {
		state.StatusQuantities = StatusQuantities{}
	}
	next := state.StatusQuantities.Get(status) + delta
	if next == 0 {
		delete(state.StatusQuantities, status)
		return
	}
	state.StatusQuantities[status] = next
}

func cloneState(s SnapshotState) SnapshotState {
	out := s
	out.StatusQuantities = s.StatusQuantities.Clone()
	if len(s.Holds) > 0 {
		out.Holds = make([]InventoryHold, len(s.Holds))
		copy(out.Holds, s.Holds)
	} else {
		out.Holds = nil
	}
	if len(s.LotBatches) > 0 {
		out.LotBatches = make([]LotBatch, len(s.LotBatches))
		copy(out.LotBatches, s.LotBatches)
	} else {
		out.LotBatches = nil
	}
	if s.Classification != nil {
		c := *s.Classification
		out.Classification = &c
	}
	if s.Valuation != nil {
		v := s.Valuation.Clone()
		out.Valuation = &v
	}
	return out
}
