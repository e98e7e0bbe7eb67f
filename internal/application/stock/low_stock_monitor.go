package stock

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// LowStockAlert describes a SKU whose available stock fell under the
// configured floor.
type LowStockAlert struct {
	Sku                string `json:"sku"`
	QuantityOnHand     int64  `json:"quantity_on_hand"`
	AvailableToPromise int64  `json:"available_to_promise"`
	Threshold          int64  `json:"threshold"`
	AlertType          string `json:"alert_type"` // LOW_STOCK or OUT_OF_STOCK
	ChangeReason       string `json:"change_reason"`
}

// LowStockNotifier delivers low-stock alerts to a channel (ops chat,
// email bridge, ticketing).
type LowStockNotifier interface {
	Notify(ctx context.Context, alert LowStockAlert) error
}

// LowStockMonitor watches delivered stock-level changes and raises an
// alert when a SKU's available-to-promise crosses the floor. It sits on
// the subscriber side of the outbox, so it only ever sees committed
// changes, and it fires on the downward crossing rather than on every
// event below the floor.
type LowStockMonitor struct {
	threshold int64
	notifier  LowStockNotifier
	logger    *zap.Logger
}

// NewLowStockMonitor creates a monitor with the given ATP floor. A zero
// threshold alerts only when a SKU runs out entirely.
func NewLowStockMonitor(threshold int64, notifier LowStockNotifier, logger *zap.Logger) *LowStockMonitor {
	if threshold < 0 {
		threshold = 0
	}
	return &LowStockMonitor{
		threshold: threshold,
		notifier:  notifier,
		logger:    logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (m *LowStockMonitor) EventTypes() []string {
	return []string{stock.EventTypeStockLevelChanged}
}

// Handle inspects one committed level change
func (m *LowStockMonitor) Handle(ctx context.Context, event shared.DomainEvent) error {
	levelEvent, ok := event.(*stock.StockLevelChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			stock.EventTypeStockLevelChanged, event.EventType())
	}

	if levelEvent.NewLevel.AvailableToPromise > m.threshold {
		return nil
	}
	if levelEvent.PreviousLevel.AvailableToPromise <= m.threshold {
		// Already under the floor before this change; the crossing was
		// reported when it happened.
		return nil
	}

	alertType := "LOW_STOCK"
	if levelEvent.NewLevel.QuantityOnHand == 0 {
		alertType = "OUT_OF_STOCK"
	}

	alert := LowStockAlert{
		Sku:                levelEvent.Sku,
		QuantityOnHand:     levelEvent.NewLevel.QuantityOnHand,
		AvailableToPromise: levelEvent.NewLevel.AvailableToPromise,
		Threshold:          m.threshold,
		AlertType:          alertType,
		ChangeReason:       levelEvent.ChangeReason,
	}

	m.logger.Warn("stock fell below threshold",
		zap.String("sku", alert.Sku),
		zap.String("alert_type", alert.AlertType),
		zap.Int64("quantity_on_hand", alert.QuantityOnHand),
		zap.Int64("available_to_promise", alert.AvailableToPromise),
		zap.Int64("threshold", alert.Threshold),
		zap.String("change_reason", alert.ChangeReason),
	)

	if m.notifier != nil {
		if err := m.notifier.Notify(ctx, alert); err != nil {
			// Notification failure must not poison event delivery
			m.logger.Error("failed to send low stock alert",
				zap.String("sku", alert.Sku),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Ensure LowStockMonitor implements shared.EventHandler
var _ shared.EventHandler = (*LowStockMonitor)(nil)

// LoggingLowStockNotifier writes alerts to the service log. It stands in
// until an outward channel is configured.
type LoggingLowStockNotifier struct {
	logger *zap.Logger
}

// NewLoggingLowStockNotifier creates a log-only notifier
func NewLoggingLowStockNotifier(logger *zap.Logger) *LoggingLowStockNotifier {
	return &LoggingLowStockNotifier{logger: logger}
}

// Notify logs the alert
func (n *LoggingLowStockNotifier) Notify(_ context.Context, alert LowStockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("sku", alert.Sku),
		zap.Int64("available_to_promise", alert.AvailableToPromise),
		zap.Int64("threshold", alert.Threshold),
	)
	return nil
}

// Ensure LoggingLowStockNotifier implements LowStockNotifier
var _ LowStockNotifier = (*LoggingLowStockNotifier)(nil)
