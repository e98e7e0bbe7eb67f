package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/stock"
)

func newMaintenanceService(env *testEnv, ledgerRetention time.Duration) *MaintenanceService {
	return NewMaintenanceService(env.commands, env.stocks, env.ledger, ledgerRetention, zap.NewNop())
}

func hoursFrom(now time.Time, h int) *time.Time {
	t := now.Add(time.Duration(h) * time.Hour)
	return &t
}

func TestReleaseExpiredHolds_SweepsLapsedHolds(t *testing.T) {
	env := newTestEnv()
	now := time.Now().UTC()

	alpha, err := stock.CreateProductStock("ALPHA-1", 100)
	require.NoError(t, err)
	_, err = alpha.PlaceHold(stock.HoldTypeQuality, 10, "damaged pallet", "qc-1", hoursFrom(now, -2))
	require.NoError(t, err)
	_, err = alpha.PlaceHold(stock.HoldTypeLegal, 5, "customs paperwork", "legal-1", hoursFrom(now, -1))
	require.NoError(t, err)
	live, err := alpha.PlaceHold(stock.HoldTypeRecall, 20, "batch recall", "qc-1", hoursFrom(now, 24))
	require.NoError(t, err)
	alpha.ClearDomainEvents()
	env.stocks.put(alpha)

	bravo, err := stock.CreateProductStock("BRAVO-1", 50)
	require.NoError(t, err)
	_, err = bravo.PlaceHold(stock.HoldTypeAdministrative, 5, "count audit", "ops-1", hoursFrom(now, -3))
	require.NoError(t, err)
	bravo.ClearDomainEvents()
	env.stocks.put(bravo)

	env.seed("CHARLIE-1", 30)

	maintenance := newMaintenanceService(env, 0)
	released, err := maintenance.ReleaseExpiredHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), released)

	// One persist per swept SKU, none for the clean one.
	assert.Equal(t, 2, env.stocks.saves())
	assert.Len(t, env.events.ofType(stock.EventTypeHoldReleased), 3)

	stored, err := env.stocks.FindBySku(context.Background(), "ALPHA-1")
	require.NoError(t, err)
	var activeHolds int
	for _, h := range stored.Holds {
		if h.Active {
			activeHolds++
			assert.Equal(t, live.HoldID, h.HoldID)
		}
	}
	assert.Equal(t, 1, activeHolds)

	// Expiry was already lazy for availability, so the sweep does not move ATP.
	assert.Equal(t, int64(80), stored.AvailableToPromise())
}

func TestReleaseExpiredHolds_NothingToSweep(t *testing.T) {
	env := newTestEnv()
	now := time.Now().UTC()

	ps, err := stock.CreateProductStock("ALPHA-1", 100)
	require.NoError(t, err)
	_, err = ps.PlaceHold(stock.HoldTypeQuality, 10, "inspection", "qc-1", hoursFrom(now, 6))
	require.NoError(t, err)
	ps.ClearDomainEvents()
	env.stocks.put(ps)

	maintenance := newMaintenanceService(env, 0)
	released, err := maintenance.ReleaseExpiredHolds(context.Background())
	require.NoError(t, err)

	assert.Zero(t, released)
	assert.Zero(t, env.stocks.saves())
	assert.Zero(t, env.events.count())
}

func TestPurgeLedger_RemovesEntriesPastRetention(t *testing.T) {
	env := newTestEnv()
	now := time.Now().UTC()
	appendLedgerAt(t, env, "ALPHA-1", -5, stock.ChangeTypePick, now.Add(-40*24*time.Hour))
	appendLedgerAt(t, env, "ALPHA-1", 5, stock.ChangeTypeReceipt, now.Add(-24*time.Hour))

	maintenance := newMaintenanceService(env, 30*24*time.Hour)
	removed, err := maintenance.PurgeLedger(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), removed)
	require.Len(t, env.ledger.bySku("ALPHA-1"), 1)
	assert.Equal(t, stock.ChangeTypeReceipt, env.ledger.bySku("ALPHA-1")[0].ChangeType)
}

func TestPurgeLedger_DisabledWithoutRetention(t *testing.T) {
	env := newTestEnv()
	appendLedgerAt(t, env, "ALPHA-1", -5, stock.ChangeTypePick, time.Now().UTC().Add(-400*24*time.Hour))

	maintenance := newMaintenanceService(env, 0)
	removed, err := maintenance.PurgeLedger(context.Background())
	require.NoError(t, err)

	assert.Zero(t, removed)
	assert.Len(t, env.ledger.bySku("ALPHA-1"), 1)
}
