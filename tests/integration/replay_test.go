package integration

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stockapp "github.com/paklog/inventory-service/internal/application/stock"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

func replayPath(sku string, at time.Time) string {
	return "/api/v1/stocks/" + sku + "/at?at=" + url.QueryEscape(at.Format(time.RFC3339Nano))
}

func TestReplayAt_ReconstructsPastState(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)

	// Receipt of 100, then a snapshot, then 20 written off as damage.
	// The pauses keep the instants distinguishable on the wall clock.
	w := env.postJSON(t, "/api/v1/stocks/adjustments", stockapp.AdjustStockRequest{
		Sku:            "RPL-1",
		QuantityChange: 100,
		ReasonCode:     "PURCHASE_RECEIPT",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	time.Sleep(50 * time.Millisecond)
	beforeSnapshot := time.Now().UTC()
	time.Sleep(50 * time.Millisecond)

	w = env.postJSON(t, "/api/v1/snapshots", stockapp.CreateSnapshotRequest{
		Sku:       "RPL-1",
		Reason:    "pre-writeoff capture",
		CreatedBy: "auditor-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	snapshot := decodeData[stockapp.SnapshotResponse](t, w)
	assert.Equal(t, string(stock.SnapshotTypeOnDemand), snapshot.Type)
	assert.Equal(t, int64(100), snapshot.State.QuantityOnHand)

	time.Sleep(50 * time.Millisecond)

	w = env.postJSON(t, "/api/v1/stocks/adjustments", stockapp.AdjustStockRequest{
		Sku:            "RPL-1",
		QuantityChange: -20,
		ReasonCode:     "DAMAGE",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	time.Sleep(50 * time.Millisecond)
	afterWriteoff := time.Now().UTC()

	// Before the snapshot existed: the whole history replays onto the
	// empty baseline and yields the state right after the receipt.
	w = env.getJSON(t, replayPath("RPL-1", beforeSnapshot))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	past := decodeData[stockapp.PointInTimeResponse](t, w)
	assert.Equal(t, "RPL-1", past.Sku)
	assert.Equal(t, int64(100), past.State.QuantityOnHand)
	assert.Equal(t, int64(100), past.State.AvailableToPromise)
	assert.Equal(t, 1, past.EventsApplied)
	assert.Empty(t, past.SkippedEvents)

	// After the write-off: the snapshot is the baseline and only the
	// write-off event folds on top of it.
	w = env.getJSON(t, replayPath("RPL-1", afterWriteoff))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	present := decodeData[stockapp.PointInTimeResponse](t, w)
	assert.Equal(t, int64(80), present.State.QuantityOnHand)
	assert.Equal(t, int64(80), present.State.AvailableToPromise)
	assert.Equal(t, 1, present.EventsApplied)
	assert.Empty(t, present.SkippedEvents)
}

func TestReplayAt_AgreesWithLiveState(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	env.createStock(t, "RPL-2", 120)

	w := env.postJSON(t, "/api/v1/stocks/allocations", stockapp.AllocateStockRequest{
		Sku: "RPL-2", Quantity: 50, OrderID: "ORD-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.postJSON(t, "/api/v1/stocks/picks", stockapp.PickStockRequest{
		Sku: "RPL-2", Quantity: 50, OrderID: "ORD-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	time.Sleep(50 * time.Millisecond)

	w = env.getJSON(t, replayPath("RPL-2", time.Now().UTC()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	replayed := decodeData[stockapp.PointInTimeResponse](t, w)

	live := env.stockLevel(t, "RPL-2")
	assert.Equal(t, live.QuantityOnHand, replayed.State.QuantityOnHand)
	assert.Equal(t, live.QuantityAllocated, replayed.State.QuantityAllocated)
	assert.Equal(t, live.AvailableToPromise, replayed.State.AvailableToPromise)
}

func TestReplayAt_UnknownSkuIsNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)

	w := env.getJSON(t, replayPath("GHOST-9", time.Now().UTC()))
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Equal(t, "ERR_NOT_FOUND", decodeError(t, w).Code)
}

func TestSnapshotListAndGet_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	env.createStock(t, "SNAP-1", 60)

	w := env.postJSON(t, "/api/v1/snapshots", stockapp.CreateSnapshotRequest{
		Sku:    "SNAP-1",
		Reason: "cycle count baseline",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeData[stockapp.SnapshotResponse](t, w)

	w = env.getJSON(t, "/api/v1/snapshots/"+created.SnapshotID.String())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fetched := decodeData[stockapp.SnapshotResponse](t, w)
	assert.Equal(t, created.SnapshotID, fetched.SnapshotID)
	assert.Equal(t, int64(60), fetched.State.QuantityOnHand)

	w = env.getJSON(t, "/api/v1/stocks/SNAP-1/snapshots")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	listed := decodeData[[]stockapp.SnapshotResponse](t, w)
	require.Len(t, listed, 1)
	assert.Equal(t, created.SnapshotID, listed[0].SnapshotID)
}
