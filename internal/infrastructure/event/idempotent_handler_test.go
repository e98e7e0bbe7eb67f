package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/infrastructure/cache"
)

// countingHandler records deliveries and fails on demand.
type countingHandler struct {
	mu      sync.Mutex
	calls   int
	failErr error
}

func (h *countingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return h.failErr
}

func (h *countingHandler) EventTypes() []string { return []string{"StockAdjusted"} }

func (h *countingHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// failingStore simulates an idempotency backend outage.
type failingStore struct{}

func (failingStore) MarkProcessed(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}
func (failingStore) IsProcessed(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}
func (failingStore) Close() error { return nil }

func adjustedEvent() shared.DomainEvent {
	e := &struct {
		shared.BaseDomainEvent
		Sku string
	}{
		BaseDomainEvent: shared.NewBaseDomainEvent("StockAdjusted", "product_stock", "WIDGET-1"),
		Sku:             "WIDGET-1",
	}
	return e
}

func newGuardedHandler(t *testing.T, inner shared.EventHandler, opts ...IdempotentHandlerOption) *IdempotentHandler {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewIdempotentHandler(inner, store, zap.NewNop(), opts...)
}

func TestIdempotentHandler_FirstDeliveryProcessed(t *testing.T) {
	inner := &countingHandler{}
	handler := newGuardedHandler(t, inner)

	require.NoError(t, handler.Handle(context.Background(), adjustedEvent()))

	assert.Equal(t, 1, inner.callCount())
	stats := handler.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Zero(t, stats.EventsDuplicate)
}

func TestIdempotentHandler_RedeliverySkipped(t *testing.T) {
	inner := &countingHandler{}
	handler := newGuardedHandler(t, inner)
	event := adjustedEvent()

	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))

	assert.Equal(t, 1, inner.callCount(), "wrapped handler sees the event once")
	stats := handler.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(2), stats.EventsDuplicate)
}

func TestIdempotentHandler_DistinctEventsAllProcessed(t *testing.T) {
	inner := &countingHandler{}
	handler := newGuardedHandler(t, inner)

	for i := 0; i < 3; i++ {
		require.NoError(t, handler.Handle(context.Background(), adjustedEvent()))
	}

	assert.Equal(t, 3, inner.callCount())
	assert.Equal(t, int64(3), handler.GetMetrics().Stats().EventsProcessed)
}

func TestIdempotentHandler_HandlerFailureKeepsMark(t *testing.T) {
	inner := &countingHandler{failErr: errors.New("projection write failed")}
	handler := newGuardedHandler(t, inner)
	event := adjustedEvent()

	err := handler.Handle(context.Background(), event)
	require.Error(t, err)
	assert.Equal(t, int64(1), handler.GetMetrics().Stats().EventsFailed)

	// the mark stays, so an immediate retry is treated as a duplicate
	require.NoError(t, handler.Handle(context.Background(), event))
	assert.Equal(t, 1, inner.callCount())
	assert.Equal(t, int64(1), handler.GetMetrics().Stats().EventsDuplicate)
}

func TestIdempotentHandler_StoreOutageProcessesAnyway(t *testing.T) {
	inner := &countingHandler{}
	handler := NewIdempotentHandler(inner, failingStore{}, zap.NewNop())
	event := adjustedEvent()

	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))

	// without a working store every delivery goes through; a possible
	// duplicate beats a dropped stock movement
	assert.Equal(t, 2, inner.callCount())
}

func TestIdempotentHandler_DisabledBypassesStore(t *testing.T) {
	inner := &countingHandler{}
	handler := newGuardedHandler(t, inner, WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))
	event := adjustedEvent()

	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))

	assert.Equal(t, 2, inner.callCount())
	assert.Zero(t, handler.GetMetrics().Stats().EventsDuplicate)
}

func TestIdempotentHandler_SharedMetricsAggregate(t *testing.T) {
	metrics := &IdempotencyMetrics{}
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	handlers := WrapHandlersWithIdempotency(
		[]shared.EventHandler{&countingHandler{}, &countingHandler{}},
		store, zap.NewNop(), WithIdempotencyMetrics(metrics),
	)
	require.Len(t, handlers, 2)

	// same event ID hits both handlers; the store is shared, so the
	// second handler sees it as a duplicate
	event := adjustedEvent()
	require.NoError(t, handlers[0].Handle(context.Background(), event))
	require.NoError(t, handlers[1].Handle(context.Background(), event))

	stats := metrics.Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(1), stats.EventsDuplicate)
}

func TestIdempotentHandler_DelegatesEventTypes(t *testing.T) {
	inner := &countingHandler{}
	handler := newGuardedHandler(t, inner)

	assert.Equal(t, []string{"StockAdjusted"}, handler.EventTypes())
	assert.Same(t, inner, handler.GetWrappedHandler().(*countingHandler))
}
