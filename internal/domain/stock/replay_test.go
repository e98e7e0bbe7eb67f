package stock

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorded(t *testing.T, ev shared.DomainEvent) RecordedEvent {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return RecordedEvent{
		EventID:     ev.EventID(),
		EventType:   ev.EventType(),
		AggregateID: ev.AggregateID(),
		OccurredAt:  ev.OccurredAt(),
		Payload:     payload,
	}
}

// recordedAt pins the recorded occurrence to a fixed instant so tests can
// work against deterministic baselines.
func recordedAt(t *testing.T, ev shared.DomainEvent, at time.Time) RecordedEvent {
	t.Helper()
	rec := recorded(t, ev)
	rec.OccurredAt = at
	return rec
}

func testBaseline(sku string, at time.Time, state SnapshotState) *InventorySnapshot {
	return &InventorySnapshot{
		SnapshotID:        uuid.New(),
		Sku:               sku,
		SnapshotTimestamp: at,
		Type:              SnapshotTypeOnDemand,
		State:             state,
		CreatedAt:         at,
	}
}

func TestReplay_FoldsLevelAndStatusChanges(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	baseline := testBaseline("SKU-1", t0, SnapshotState{
		QuantityOnHand:     100,
		AvailableToPromise: 100,
		StatusQuantities:   StatusQuantities{StockStatusAvailable: 100},
	})

	events := []RecordedEvent{
		recordedAt(t, NewStockLevelChangedEvent("SKU-1",
			StockLevel{QuantityOnHand: 100, AvailableToPromise: 100},
			StockLevel{QuantityOnHand: 150, AvailableToPromise: 150},
			"PURCHASE_RECEIPT"), t0.Add(time.Minute)),
		recordedAt(t, NewStockStatusChangedEvent("SKU-1", StockStatusAvailable, StockStatusQuarantine, 30, "inspection", ""), t0.Add(2*time.Minute)),
	}

	result, err := Replay(baseline, events, t0.Add(24*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 2, result.EventsApplied)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, int64(150), result.State.QuantityOnHand)
	assert.Equal(t, int64(120), result.State.StatusQuantities.Get(StockStatusAvailable))
	assert.Equal(t, int64(30), result.State.StatusQuantities.Get(StockStatusQuarantine))
	assert.Equal(t, int64(120), result.State.AvailableToPromise)
}

func TestReplay_SelectsWindowAndAggregate(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	until := t0.Add(time.Hour)
	baseline := testBaseline("SKU-1", t0, SnapshotState{
		QuantityOnHand:     10,
		AvailableToPromise: 10,
		StatusQuantities:   StatusQuantities{StockStatusAvailable: 10},
	})

	inWindow := recordedAt(t, NewStockLevelChangedEvent("SKU-1",
		StockLevel{QuantityOnHand: 10, AvailableToPromise: 10},
		StockLevel{QuantityOnHand: 20, AvailableToPromise: 20}, "STOCK_RECEIPT"), t0.Add(30*time.Minute))

	atBaseline := recordedAt(t, NewStockLevelChangedEvent("SKU-1",
		StockLevel{}, StockLevel{QuantityOnHand: 999, AvailableToPromise: 999}, "STOCK_RECEIPT"), t0)

	afterTarget := recordedAt(t, NewStockLevelChangedEvent("SKU-1",
		StockLevel{}, StockLevel{QuantityOnHand: 888, AvailableToPromise: 888}, "STOCK_RECEIPT"), until.Add(time.Second))

	otherSku := recordedAt(t, NewStockLevelChangedEvent("SKU-2",
		StockLevel{}, StockLevel{QuantityOnHand: 777, AvailableToPromise: 777}, "STOCK_RECEIPT"), t0.Add(10*time.Minute))

	result, err := Replay(baseline, []RecordedEvent{afterTarget, otherSku, inWindow, atBaseline}, until)

	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsApplied)
	assert.Equal(t, int64(20), result.State.QuantityOnHand)
}

func TestReplay_OrdersByOccurrenceThenEventID(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	baseline := testBaseline("SKU-1", t0, SnapshotState{StatusQuantities: StatusQuantities{}})

	ts := t0.Add(time.Minute)
	first := recordedAt(t, NewStockLevelChangedEvent("SKU-1",
		StockLevel{}, StockLevel{QuantityOnHand: 10, AvailableToPromise: 10}, "STOCK_RECEIPT"), ts)
	second := recordedAt(t, NewStockLevelChangedEvent("SKU-1",
		StockLevel{QuantityOnHand: 10, AvailableToPromise: 10},
		StockLevel{QuantityOnHand: 30, AvailableToPromise: 30}, "STOCK_RECEIPT"), ts)
	first.EventID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	second.EventID = uuid.MustParse("00000000-0000-0000-0000-000000000002")

	// Shuffled input; tie on occurredAt resolves by event id.
	result, err := Replay(baseline, []RecordedEvent{second, first}, t0.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, int64(30), result.State.QuantityOnHand)
	assert.Equal(t, int64(30), result.State.StatusQuantities.Get(StockStatusAvailable))
}

func TestReplay_HoldLifecycle(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	baseline := testBaseline("SKU-1", t0, SnapshotState{
		QuantityOnHand:     100,
		AvailableToPromise: 100,
		StatusQuantities:   StatusQuantities{StockStatusAvailable: 100},
	})

	hold := NewInventoryHold(HoldTypeQuality, 20, "QA", "inspector", nil)
	placed := recordedAt(t, NewInventoryHoldPlacedEvent("SKU-1", hold), t0.Add(time.Minute))
	released := recordedAt(t, NewInventoryHoldReleasedEvent("SKU-1", hold, "QA", "inspector"), t0.Add(2*time.Minute))

	t.Run("placed hold reduces ATP", func(t *testing.T) {
		result, err := Replay(baseline, []RecordedEvent{placed}, t0.Add(time.Hour))

		require.NoError(t, err)
		require.Len(t, result.State.Holds, 1)
		assert.True(t, result.State.Holds[0].Active)
		assert.Equal(t, int64(80), result.State.AvailableToPromise)
	})

	t.Run("release restores ATP", func(t *testing.T) {
		result, err := Replay(baseline, []RecordedEvent{placed, released}, t0.Add(time.Hour))

		require.NoError(t, err)
		require.Len(t, result.State.Holds, 1)
		assert.False(t, result.State.Holds[0].Active)
		assert.Equal(t, int64(100), result.State.AvailableToPromise)
	})

	t.Run("release without a matching hold is skipped", func(t *testing.T) {
		result, err := Replay(baseline, []RecordedEvent{released}, t0.Add(time.Hour))

		require.NoError(t, err)
		assert.Zero(t, result.EventsApplied)
		require.Len(t, result.Skipped, 1)
		assert.Contains(t, result.Skipped[0].Reason, "not present")
	})
}

func TestReplay_ValuationAndClassification(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	baseline := testBaseline("SKU-1", t0, SnapshotState{
		QuantityOnHand:     50,
		AvailableToPromise: 50,
		StatusQuantities:   StatusQuantities{StockStatusAvailable: 50},
	})

	before, err := NewInventoryValuation(ValuationWeightedAverage, valueobject.NewMoneyUSD(decimal.NewFromInt(10)))
	require.NoError(t, err)
	after, err := before.ApplyReceipt(0, 50, valueobject.NewMoneyUSD(decimal.NewFromInt(10)), t0)
	require.NoError(t, err)

	events := []RecordedEvent{
		recordedAt(t, NewInventoryValuationChangedEvent("SKU-1", before, after, 50, "VALUATION_INITIALIZED"), t0.Add(time.Minute)),
		recordedAt(t, NewABCClassificationChangedEvent("SKU-1", nil,
			NewABCClassification(ClassB, CriteriaCombined, decimal.NewFromInt(40000), nil), "annual review"), t0.Add(2*time.Minute)),
	}

	result, err := Replay(baseline, events, t0.Add(time.Hour))

	require.NoError(t, err)
	require.NotNil(t, result.State.Valuation)
	assert.Equal(t, ValuationWeightedAverage, result.State.Valuation.Method)
	assert.Equal(t, "10", result.State.Valuation.UnitCost.Amount().String())
	assert.Equal(t, "500", result.State.Valuation.TotalValue.Amount().String())
	require.NotNil(t, result.State.Classification)
	assert.Equal(t, ClassB, result.State.Classification.Class)
}

func TestReplay_SkipsUnknownAndMalformed(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	baseline := testBaseline("SKU-1", t0, SnapshotState{StatusQuantities: StatusQuantities{}})

	unknown := RecordedEvent{
		EventID:     uuid.New(),
		EventType:   "product-stock.teleported",
		AggregateID: "SKU-1",
		OccurredAt:  t0.Add(time.Minute),
		Payload:     []byte(`{}`),
	}
	malformed := RecordedEvent{
		EventID:     uuid.New(),
		EventType:   EventTypeStockLevelChanged,
		AggregateID: "SKU-1",
		OccurredAt:  t0.Add(2 * time.Minute),
		Payload:     []byte(`{not json`),
	}

	result, err := Replay(baseline, []RecordedEvent{unknown, malformed}, t0.Add(time.Hour))

	require.NoError(t, err)
	assert.Zero(t, result.EventsApplied)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "unrecognized event type", result.Skipped[0].Reason)
	assert.Contains(t, result.Skipped[1].Reason, "malformed payload")
}

func TestReplay_IsPure(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	baseline := testBaseline("SKU-1", t0, SnapshotState{
		QuantityOnHand:     100,
		AvailableToPromise: 100,
		StatusQuantities:   StatusQuantities{StockStatusAvailable: 100},
	})
	hold := NewInventoryHold(HoldTypeQuality, 10, "QA", "inspector", nil)
	events := []RecordedEvent{
		recordedAt(t, NewStockLevelChangedEvent("SKU-1",
			StockLevel{QuantityOnHand: 100, AvailableToPromise: 100},
			StockLevel{QuantityOnHand: 130, AvailableToPromise: 130}, "STOCK_RECEIPT"), t0.Add(time.Minute)),
		recordedAt(t, NewInventoryHoldPlacedEvent("SKU-1", hold), t0.Add(2*time.Minute)),
		recordedAt(t, NewStockStatusChangedEvent("SKU-1", StockStatusAvailable, StockStatusDamaged, 5, "dropped", ""), t0.Add(3*time.Minute)),
	}
	until := t0.Add(time.Hour)

	first, err := Replay(baseline, events, until)
	require.NoError(t, err)
	second, err := Replay(baseline, events, until)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)

	// The baseline must not be touched by the fold.
	assert.Equal(t, int64(100), baseline.State.QuantityOnHand)
	assert.Empty(t, baseline.State.Holds)
}

func TestReplay_MatchesLiveAggregate(t *testing.T) {
	ps := createTestStock(t, 100)
	baselineAt := time.Now().UTC().Add(-time.Hour)
	baseline := testBaseline(ps.Sku, baselineAt, CaptureState(ps, baselineAt))

	require.NoError(t, ps.Allocate(30))
	require.NoError(t, ps.ChangeStockStatus(StockStatusAvailable, StockStatusQuarantine, 20, "inspection", ""))
	hold, err := ps.PlaceHold(HoldTypeQuality, 10, "QA", "inspector", nil)
	require.NoError(t, err)
	require.NoError(t, ps.ProcessPick(15))

	var events []RecordedEvent
	for _, ev := range ps.GetDomainEvents() {
		events = append(events, recorded(t, ev))
	}
	until := time.Now().UTC().Add(time.Second)

	result, err := Replay(baseline, events, until)
	require.NoError(t, err)

	live := CaptureState(ps, until)
	assert.Equal(t, live.QuantityOnHand, result.State.QuantityOnHand)
	assert.Equal(t, live.QuantityAllocated, result.State.QuantityAllocated)
	assert.Equal(t, live.AvailableToPromise, result.State.AvailableToPromise)
	assert.Equal(t, live.StatusQuantities, result.State.StatusQuantities)

	require.Len(t, result.State.Holds, 1)
	assert.Equal(t, hold.HoldID, result.State.Holds[0].HoldID)
	assert.Equal(t, hold.Quantity, result.State.Holds[0].Quantity)
	assert.True(t, result.State.Holds[0].Active)
	assert.WithinDuration(t, hold.PlacedAt, result.State.Holds[0].PlacedAt, time.Second)
}
