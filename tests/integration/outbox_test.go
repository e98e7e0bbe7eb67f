package integration

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	stockapp "github.com/paklog/inventory-service/internal/application/stock"
	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
	"github.com/paklog/inventory-service/internal/infrastructure/event"
	"github.com/paklog/inventory-service/tests/testutil"
)

// recordingPublisher captures delivered envelopes in order
type recordingPublisher struct {
	mu        sync.Mutex
	delivered []*event.Envelope
	failWith  error
	failCount int
}

func (p *recordingPublisher) PublishEnvelope(_ context.Context, env *event.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil && p.failCount != 0 {
		if p.failCount > 0 {
			p.failCount--
		}
		return p.failWith
	}
	p.delivered = append(p.delivered, env)
	return nil
}

func (p *recordingPublisher) envelopes() []*event.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*event.Envelope(nil), p.delivered...)
}

func TestOutbox_ProcessTickDeliversToSubscribers(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	env.createStock(t, "OUT-1", 100)
	w := env.postJSON(t, "/api/v1/stocks/allocations", stockapp.AllocateStockRequest{
		Sku: "OUT-1", Quantity: 40, OrderID: "ORD-1",
	})
	require.Equal(t, 200, w.Code, w.Body.String())

	bus := event.NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(ctx))
	handler := testutil.NewMockEventHandler(stock.EventTypeStockLevelChanged)
	bus.Subscribe(handler)

	processor := env.newProcessor(event.NewBusEnvelopePublisher(bus, env.serializer))
	processor.ProcessTick(ctx)

	// Seeding receipt plus allocation, decoded back into typed events
	handled := handler.Handled()
	require.Len(t, handled, 2)

	first, ok := handled[0].(*stock.StockLevelChangedEvent)
	require.True(t, ok, "expected a typed level-changed event, got %T", handled[0])
	assert.Equal(t, "OUT-1", first.AggregateID())
	assert.Equal(t, stock.ChangeReasonStockReceipt, first.ChangeReason)

	second := handled[1].(*stock.StockLevelChangedEvent)
	assert.Equal(t, stock.ChangeReasonAllocation, second.ChangeReason)
	assert.Equal(t, int64(40), second.NewLevel.QuantityAllocated)

	for _, row := range env.outboxRows(t, "OUT-1") {
		assert.Equal(t, shared.OutboxStatusSent, row.Status)
		assert.True(t, row.Published)
		require.NotNil(t, row.PublishedAt)
	}

	// A second tick finds nothing left to deliver
	processor.ProcessTick(ctx)
	assert.Equal(t, 2, handler.HandledCount())
}

func TestOutbox_PerAggregateFIFO(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	env.createStock(t, "FIFO-1", 10)
	for _, delta := range []int64{20, 30, 40} {
		w := env.postJSON(t, "/api/v1/stocks/adjustments", stockapp.AdjustStockRequest{
			Sku:            "FIFO-1",
			QuantityChange: delta,
			ReasonCode:     "PURCHASE_RECEIPT",
		})
		require.Equal(t, 200, w.Code, w.Body.String())
	}

	publisher := &recordingPublisher{}
	env.newProcessor(publisher).ProcessTick(ctx)

	delivered := publisher.envelopes()
	require.Len(t, delivered, 4)

	// On-hand strictly grows along the delivery order: 10, 30, 60, 100
	var lastOnHand int64 = -1
	for _, envlp := range delivered {
		assert.Equal(t, "FIFO-1", envlp.Subject)
		var payload stock.StockLevelChangedEvent
		require.NoError(t, json.Unmarshal(envlp.Data, &payload))
		assert.Greater(t, payload.NewLevel.QuantityOnHand, lastOnHand,
			"events delivered out of order")
		lastOnHand = payload.NewLevel.QuantityOnHand
	}
	assert.Equal(t, int64(100), lastOnHand)
}

func TestOutbox_FailureHoldsBackLaterEventsOfTheAggregate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	env.createStock(t, "HOLD-1", 10)
	w := env.postJSON(t, "/api/v1/stocks/adjustments", stockapp.AdjustStockRequest{
		Sku:            "HOLD-1",
		QuantityChange: 20,
		ReasonCode:     "PURCHASE_RECEIPT",
	})
	require.Equal(t, 200, w.Code, w.Body.String())

	// The first delivery attempt fails, everything afterwards would succeed
	publisher := &recordingPublisher{failWith: errors.New("broker unavailable"), failCount: 1}
	processor := env.newProcessor(publisher)

	processor.ProcessTick(ctx)
	assert.Empty(t, publisher.envelopes(), "a failed head must abort its group")

	rows := env.outboxRows(t, "HOLD-1")
	require.Len(t, rows, 2)
	assert.Equal(t, shared.OutboxStatusFailed, rows[0].Status)
	assert.Equal(t, 1, rows[0].RetryCount)
	assert.Contains(t, rows[0].LastError, "broker unavailable")
	require.NotNil(t, rows[0].NextRetryAt)
	assert.Equal(t, shared.OutboxStatusPending, rows[1].Status)

	// Until the head's backoff elapses the successor must not overtake it
	processor.ProcessTick(ctx)
	assert.Empty(t, publisher.envelopes())

	// Once the retry is due both deliver, oldest first
	forceRetryDue(t, env)
	processor.ProcessTick(ctx)

	delivered := publisher.envelopes()
	require.Len(t, delivered, 2)
	var payload stock.StockLevelChangedEvent
	require.NoError(t, json.Unmarshal(delivered[0].Data, &payload))
	assert.Equal(t, int64(10), payload.NewLevel.QuantityOnHand)
	require.NoError(t, json.Unmarshal(delivered[1].Data, &payload))
	assert.Equal(t, int64(30), payload.NewLevel.QuantityOnHand)
}

func TestOutbox_ExhaustedRetriesParkTheEventDead(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	env.createStock(t, "DEAD-1", 10)

	publisher := &recordingPublisher{failWith: errors.New("broker unavailable"), failCount: -1}
	processor := env.newProcessor(publisher)

	for i := 0; i < shared.DefaultMaxRetries; i++ {
		processor.ProcessTick(ctx)
		forceRetryDue(t, env)
	}

	rows := env.outboxRows(t, "DEAD-1")
	require.Len(t, rows, 1)
	assert.Equal(t, shared.OutboxStatusDead, rows[0].Status)
	assert.Equal(t, shared.DefaultMaxRetries, rows[0].RetryCount)

	// Dead rows are off the delivery path until an operator resets them
	publisher.failWith = nil
	processor.ProcessTick(ctx)
	assert.Empty(t, publisher.envelopes())

	require.NoError(t, rows[0].ResetForRetry())
	require.NoError(t, env.outboxRepo.Update(ctx, &rows[0]))
	processor.ProcessTick(ctx)
	assert.Len(t, publisher.envelopes(), 1)
}

// forceRetryDue rewinds every scheduled retry so the next tick picks it up
func forceRetryDue(t *testing.T, env *testEnv) {
	t.Helper()
	err := env.db.DB.Exec(
		"UPDATE outbox_events SET next_retry_at = now() - interval '1 second' WHERE next_retry_at IS NOT NULL",
	).Error
	require.NoError(t, err)
}
