package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/stock"
)

type captureNotifier struct {
	alerts []LowStockAlert
	err    error
}

func (n *captureNotifier) Notify(_ context.Context, alert LowStockAlert) error {
	n.alerts = append(n.alerts, alert)
	return n.err
}

func levelChange(t *testing.T, sku string, prevOnHand, prevAlloc, newOnHand, newAlloc int64, reason string) *stock.StockLevelChangedEvent {
	t.Helper()
	return stock.NewStockLevelChangedEvent(sku,
		stock.NewStockLevel(prevOnHand, prevAlloc),
		stock.NewStockLevel(newOnHand, newAlloc),
		reason,
	)
}

func TestLowStockMonitor_AlertsOnDownwardCrossing(t *testing.T) {
	notifier := &captureNotifier{}
	monitor := NewLowStockMonitor(10, notifier, zap.NewNop())

	// 50 ATP -> 8 ATP crosses the floor
	err := monitor.Handle(context.Background(), levelChange(t, "WIDGET-1", 50, 0, 8, 0, "stock_allocated"))
	require.NoError(t, err)

	require.Len(t, notifier.alerts, 1)
	alert := notifier.alerts[0]
	assert.Equal(t, "WIDGET-1", alert.Sku)
	assert.Equal(t, "LOW_STOCK", alert.AlertType)
	assert.Equal(t, int64(8), alert.AvailableToPromise)
	assert.Equal(t, int64(10), alert.Threshold)
	assert.Equal(t, "stock_allocated", alert.ChangeReason)
}

func TestLowStockMonitor_OutOfStock(t *testing.T) {
	notifier := &captureNotifier{}
	monitor := NewLowStockMonitor(10, notifier, zap.NewNop())

	err := monitor.Handle(context.Background(), levelChange(t, "WIDGET-1", 30, 0, 0, 0, "stock_picked"))
	require.NoError(t, err)

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "OUT_OF_STOCK", notifier.alerts[0].AlertType)
}

func TestLowStockMonitor_QuietCases(t *testing.T) {
	tests := []struct {
		name                  string
		prevOnHand, prevAlloc int64
		newOnHand, newAlloc   int64
	}{
		{"stays above floor", 50, 0, 40, 0},
		{"already below floor", 8, 0, 5, 0},
		{"recovers above floor", 5, 0, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &captureNotifier{}
			monitor := NewLowStockMonitor(10, notifier, zap.NewNop())

			err := monitor.Handle(context.Background(),
				levelChange(t, "WIDGET-1", tt.prevOnHand, tt.prevAlloc, tt.newOnHand, tt.newAlloc, "stock_received"))
			require.NoError(t, err)
			assert.Empty(t, notifier.alerts)
		})
	}
}

func TestLowStockMonitor_NotifierFailureDoesNotFailDelivery(t *testing.T) {
	notifier := &captureNotifier{err: errors.New("pager down")}
	monitor := NewLowStockMonitor(10, notifier, zap.NewNop())

	err := monitor.Handle(context.Background(), levelChange(t, "WIDGET-1", 50, 0, 3, 0, "stock_picked"))

	require.NoError(t, err)
	require.Len(t, notifier.alerts, 1)
}

func TestLowStockMonitor_RejectsWrongEventType(t *testing.T) {
	monitor := NewLowStockMonitor(10, &captureNotifier{}, zap.NewNop())

	err := monitor.Handle(context.Background(),
		stock.NewStockStatusChangedEvent("WIDGET-1", stock.StockStatusAvailable, stock.StockStatusQuarantine, 5, "damage", ""))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected event type")
}

func TestLowStockMonitor_ZeroThresholdAlertsOnlyWhenEmpty(t *testing.T) {
	notifier := &captureNotifier{}
	monitor := NewLowStockMonitor(0, notifier, zap.NewNop())

	require.NoError(t, monitor.Handle(context.Background(), levelChange(t, "WIDGET-1", 10, 0, 1, 0, "stock_picked")))
	assert.Empty(t, notifier.alerts)

	require.NoError(t, monitor.Handle(context.Background(), levelChange(t, "WIDGET-1", 1, 0, 0, 0, "stock_picked")))
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "OUT_OF_STOCK", notifier.alerts[0].AlertType)
}
