package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

func newTransferService(env *testEnv) *TransferService {
	return NewTransferService(env.commands, env.transfers, zap.NewNop())
}

func initiateTestTransfer(t *testing.T, env *testEnv, transfers *TransferService, qty int64) *TransferResponse {
	t.Helper()
	response, err := transfers.InitiateTransfer(context.Background(), InitiateTransferRequest{
		Sku:          "WIDGET-1",
		Quantity:     qty,
		FromLocation: LocationRequest{Warehouse: "WH-EAST", Zone: "A"},
		ToLocation:   LocationRequest{Warehouse: "WH-WEST", Zone: "B"},
		InitiatedBy:  "mover-1",
	})
	require.NoError(t, err)
	return response
}

func TestInitiateTransfer_LeavesStockUntouched(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)

	response := initiateTestTransfer(t, env, transfers, 40)

	assert.Equal(t, string(stock.TransferStatusInitiated), response.Status)
	assert.Equal(t, "WH-EAST", response.FromLocation.Warehouse)
	assert.Equal(t, "mover-1", response.InitiatedBy)

	// The stock only moves once the goods leave the dock.
	stored, err := env.stocks.FindBySku(context.Background(), "WIDGET-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.QuantityOnHand)
	assert.Empty(t, env.ledger.bySku("WIDGET-1"))
	assert.Len(t, env.events.ofType(stock.EventTypeTransferInitiated), 1)
}

func TestInitiateTransfer_UnknownSku(t *testing.T) {
	env := newTestEnv()
	transfers := newTransferService(env)

	_, err := transfers.InitiateTransfer(context.Background(), InitiateTransferRequest{
		Sku:          "GHOST-1",
		Quantity:     10,
		FromLocation: LocationRequest{Warehouse: "WH-EAST"},
		ToLocation:   LocationRequest{Warehouse: "WH-WEST"},
		InitiatedBy:  "mover-1",
	})
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))
}

func TestMarkInTransit_RemovesStockFromSource(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	initiated := initiateTestTransfer(t, env, transfers, 40)

	response, err := transfers.MarkInTransit(context.Background(), initiated.TransferID)
	require.NoError(t, err)
	assert.Equal(t, string(stock.TransferStatusInTransit), response.Status)
	require.NotNil(t, response.InTransitAt)

	stored, err := env.stocks.FindBySku(context.Background(), "WIDGET-1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), stored.QuantityOnHand)

	entries := env.ledger.bySku("WIDGET-1")
	require.Len(t, entries, 1)
	assert.Equal(t, stock.ChangeTypeAdjustmentNegative, entries[0].ChangeType)
	assert.Equal(t, int64(-40), entries[0].QuantityChange)
	assert.Equal(t, initiated.TransferID.String(), entries[0].SourceReference)
	assert.Equal(t, stock.ReasonTransferOut.String(), entries[0].Reason)
}

func TestMarkInTransit_InsufficientStock(t *testing.T) {
	env := newTestEnv()
	env.seedAllocated("WIDGET-1", 100, 90)
	transfers := newTransferService(env)
	initiated := initiateTestTransfer(t, env, transfers, 40)

	_, err := transfers.MarkInTransit(context.Background(), initiated.TransferID)
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock))

	// The transfer state must not advance when the stock move fails.
	current, err := transfers.GetTransfer(context.Background(), initiated.TransferID)
	require.NoError(t, err)
	assert.Equal(t, string(stock.TransferStatusInitiated), current.Status)
}

func TestCompleteTransfer_BooksActualQuantity(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	ctx := context.Background()
	initiated := initiateTestTransfer(t, env, transfers, 40)

	_, err := transfers.MarkInTransit(ctx, initiated.TransferID)
	require.NoError(t, err)

	response, err := transfers.CompleteTransfer(ctx, initiated.TransferID, CompleteTransferRequest{
		ActualQuantity: 37,
		CompletedBy:    "receiver-1",
	})
	require.NoError(t, err)
	assert.Equal(t, string(stock.TransferStatusCompleted), response.Status)
	assert.Equal(t, int64(37), response.ActualQuantityReceived)
	assert.Equal(t, int64(3), response.Shrinkage)

	stored, err := env.stocks.FindBySku(ctx, "WIDGET-1")
	require.NoError(t, err)
	assert.Equal(t, int64(97), stored.QuantityOnHand)

	entries := env.ledger.bySku("WIDGET-1")
	require.Len(t, entries, 2)
	var arrival *stock.InventoryLedgerEntry
	for _, e := range entries {
		if e.QuantityChange > 0 {
			arrival = e
		}
	}
	require.NotNil(t, arrival)
	assert.Equal(t, stock.ChangeTypeAdjustmentPositive, arrival.ChangeType)
	assert.Equal(t, int64(37), arrival.QuantityChange)
	assert.Equal(t, stock.ReasonTransferIn.String(), arrival.Reason)
	assert.Equal(t, "receiver-1", arrival.OperatorID)

	assert.Len(t, env.events.ofType(stock.EventTypeTransferCompleted), 1)
}

func TestCompleteTransfer_TotalLoss(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	ctx := context.Background()
	initiated := initiateTestTransfer(t, env, transfers, 40)

	_, err := transfers.MarkInTransit(ctx, initiated.TransferID)
	require.NoError(t, err)

	response, err := transfers.CompleteTransfer(ctx, initiated.TransferID, CompleteTransferRequest{
		ActualQuantity: 0,
		CompletedBy:    "receiver-1",
	})
	require.NoError(t, err)
	assert.Equal(t, string(stock.TransferStatusCompleted), response.Status)
	assert.Equal(t, int64(40), response.Shrinkage)

	// Nothing arrived, so nothing is booked back in.
	stored, err := env.stocks.FindBySku(ctx, "WIDGET-1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), stored.QuantityOnHand)
	assert.Len(t, env.ledger.bySku("WIDGET-1"), 1)
}

func TestCompleteTransfer_BeforeTransit(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	initiated := initiateTestTransfer(t, env, transfers, 40)

	_, err := transfers.CompleteTransfer(context.Background(), initiated.TransferID, CompleteTransferRequest{
		ActualQuantity: 40,
		CompletedBy:    "receiver-1",
	})
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
}

func TestCancelTransfer_InTransitRestoresStock(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	ctx := context.Background()
	initiated := initiateTestTransfer(t, env, transfers, 40)

	_, err := transfers.MarkInTransit(ctx, initiated.TransferID)
	require.NoError(t, err)

	response, err := transfers.CancelTransfer(ctx, initiated.TransferID, CancelTransferRequest{Reason: "truck recalled"})
	require.NoError(t, err)
	assert.Equal(t, string(stock.TransferStatusCancelled), response.Status)
	assert.Equal(t, "truck recalled", response.CancellationReason)

	stored, err := env.stocks.FindBySku(ctx, "WIDGET-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.QuantityOnHand)

	entries := env.ledger.bySku("WIDGET-1")
	require.Len(t, entries, 2)
	var restore *stock.InventoryLedgerEntry
	for _, e := range entries {
		if e.QuantityChange > 0 {
			restore = e
		}
	}
	require.NotNil(t, restore)
	assert.Equal(t, stock.ReasonReturnToStock.String(), restore.Reason)
	assert.Equal(t, int64(40), restore.QuantityChange)
}

func TestCancelTransfer_BeforeTransitLeavesStockAlone(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	initiated := initiateTestTransfer(t, env, transfers, 40)

	response, err := transfers.CancelTransfer(context.Background(), initiated.TransferID, CancelTransferRequest{Reason: "duplicate request"})
	require.NoError(t, err)
	assert.Equal(t, string(stock.TransferStatusCancelled), response.Status)

	stored, err := env.stocks.FindBySku(context.Background(), "WIDGET-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.QuantityOnHand)
	assert.Empty(t, env.ledger.bySku("WIDGET-1"))
}

func TestCancelTransfer_AlreadyCompleted(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	ctx := context.Background()
	initiated := initiateTestTransfer(t, env, transfers, 40)

	_, err := transfers.MarkInTransit(ctx, initiated.TransferID)
	require.NoError(t, err)
	_, err = transfers.CompleteTransfer(ctx, initiated.TransferID, CompleteTransferRequest{ActualQuantity: 40, CompletedBy: "receiver-1"})
	require.NoError(t, err)

	_, err = transfers.CancelTransfer(ctx, initiated.TransferID, CancelTransferRequest{Reason: "too late"})
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
}

func TestTransferCommands_InvalidateCachedLevel(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	ctx := context.Background()
	initiated := initiateTestTransfer(t, env, transfers, 40)

	stale := &stock.StockLevelView{Sku: "WIDGET-1", QuantityOnHand: 100}
	require.NoError(t, env.cache.Set(ctx, stale, 0))

	_, err := transfers.MarkInTransit(ctx, initiated.TransferID)
	require.NoError(t, err)
	assert.Contains(t, env.cache.deletions(), "WIDGET-1")
}

func TestGetTransfer_UnknownID(t *testing.T) {
	env := newTestEnv()
	transfers := newTransferService(env)

	_, err := transfers.GetTransfer(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))
}

func TestTransferWithContainer_PlateFollowsTheMove(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	ctx := context.Background()

	initiated, err := transfers.InitiateTransfer(ctx, InitiateTransferRequest{
		Sku:          "WIDGET-1",
		Quantity:     40,
		FromLocation: LocationRequest{Warehouse: "WH-EAST", Zone: "A"},
		ToLocation:   LocationRequest{Warehouse: "WH-WEST", Zone: "B"},
		ContainerLPN: "LPN-0001",
		InitiatedBy:  "mover-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "LPN-0001", initiated.ContainerLPN)

	// Packed at the source, still open until the goods leave
	plate, err := env.containers.FindByLPN(ctx, "LPN-0001")
	require.NoError(t, err)
	assert.Equal(t, stock.ContainerStatusOpen, plate.Status)
	assert.Equal(t, "WIDGET-1", plate.Sku)
	assert.Equal(t, int64(40), plate.Quantity)
	assert.Equal(t, "WH-EAST", plate.Location.Warehouse)

	_, err = transfers.MarkInTransit(ctx, initiated.TransferID)
	require.NoError(t, err)
	plate, err = env.containers.FindByLPN(ctx, "LPN-0001")
	require.NoError(t, err)
	assert.Equal(t, stock.ContainerStatusShipped, plate.Status)

	_, err = transfers.CompleteTransfer(ctx, initiated.TransferID, CompleteTransferRequest{
		ActualQuantity: 40,
		CompletedBy:    "receiver-1",
	})
	require.NoError(t, err)
	plate, err = env.containers.FindByLPN(ctx, "LPN-0001")
	require.NoError(t, err)
	assert.Equal(t, stock.ContainerStatusClosed, plate.Status)
	assert.Equal(t, "WH-WEST", plate.Location.Warehouse)
}

func TestCancelTransferWithContainer_PlateSettlesAtSource(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	ctx := context.Background()

	initiated, err := transfers.InitiateTransfer(ctx, InitiateTransferRequest{
		Sku:          "WIDGET-1",
		Quantity:     25,
		FromLocation: LocationRequest{Warehouse: "WH-EAST", Zone: "A"},
		ToLocation:   LocationRequest{Warehouse: "WH-WEST", Zone: "B"},
		ContainerLPN: "LPN-0002",
		InitiatedBy:  "mover-1",
	})
	require.NoError(t, err)

	_, err = transfers.MarkInTransit(ctx, initiated.TransferID)
	require.NoError(t, err)

	_, err = transfers.CancelTransfer(ctx, initiated.TransferID, CancelTransferRequest{Reason: "truck recalled"})
	require.NoError(t, err)

	plate, err := env.containers.FindByLPN(ctx, "LPN-0002")
	require.NoError(t, err)
	assert.Equal(t, stock.ContainerStatusClosed, plate.Status)
	assert.Equal(t, "WH-EAST", plate.Location.Warehouse)
}

func TestListTransfers_FiltersByStatus(t *testing.T) {
	env := newTestEnv()
	env.seed("WIDGET-1", 100)
	transfers := newTransferService(env)
	ctx := context.Background()

	first := initiateTestTransfer(t, env, transfers, 10)
	initiateTestTransfer(t, env, transfers, 20)
	_, err := transfers.MarkInTransit(ctx, first.TransferID)
	require.NoError(t, err)

	page, err := transfers.ListTransfers(ctx, TransferListFilter{Status: "IN_TRANSIT"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, first.TransferID, page.Items[0].TransferID)
}
