package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	stockapp "github.com/paklog/inventory-service/internal/application/stock"
	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
	"github.com/paklog/inventory-service/internal/infrastructure/cache"
	"github.com/paklog/inventory-service/internal/infrastructure/event"
	"github.com/paklog/inventory-service/internal/infrastructure/persistence"
	"github.com/paklog/inventory-service/internal/interfaces/http/handler"
	"github.com/paklog/inventory-service/internal/interfaces/http/middleware"
	"github.com/paklog/inventory-service/internal/interfaces/http/router"
)

// testEnv wires the full service against a containerized database, mirroring
// the production assembly minus telemetry and background loops. Outbox
// delivery is driven explicitly from the tests via ProcessTick.
type testEnv struct {
	db *TestDB

	engine     *gin.Engine
	serializer *event.EventSerializer
	outboxRepo *event.GormOutboxRepository

	commands  *stockapp.CommandService
	queries   *stockapp.QueryService
	snapshots *stockapp.SnapshotService
	ingest    *stockapp.IngestService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	db := NewTestDB(t)
	log := zap.NewNop()

	stockRepo := persistence.NewGormProductStockRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	snapshotRepo := persistence.NewGormSnapshotRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	outboxPublisher := event.NewOutboxPublisher(serializer)
	txScope := persistence.NewGormTransactionScope(db.DB, outboxPublisher)

	levelCache := cache.NewInMemoryStockLevelCache()
	idempotency := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idempotency.Close() })

	// Contended tests run many writers against one row, so the optimistic
	// retry budget is generous and the backoff short.
	retry := stockapp.RetryPolicy{
		MaxAttempts: 20,
		BaseDelay:   2 * time.Millisecond,
		MaxDelay:    20 * time.Millisecond,
	}
	commands := stockapp.NewCommandService(txScope, levelCache, retry, log)
	queries := stockapp.NewQueryService(stockRepo, ledgerRepo, levelCache, time.Minute, 0, log)
	snapshots := stockapp.NewSnapshotService(txScope, stockRepo, snapshotRepo, outboxRepo, 30*24*time.Hour, log)
	bulk := stockapp.NewBulkAllocator(commands, 4, log)
	ingest := stockapp.NewIngestService(commands, idempotency, 0, nil, log)

	stockHandler := handler.NewStockHandler(commands, queries, bulk)
	snapshotHandler := handler.NewSnapshotHandler(snapshots)
	eventsHandler := handler.NewEventsHandler(ingest)

	engine := gin.New()

	stocks := router.NewDomainGroup("stocks", "/stocks").
		POST("", stockHandler.Create).
		GET("/:sku", stockHandler.Get).
		GET("/:sku/detail", stockHandler.GetDetail).
		GET("/:sku/snapshots", snapshotHandler.ListBySku).
		GET("/:sku/at", snapshotHandler.ReplayAt).
		POST("/adjustments", stockHandler.Adjust).
		POST("/allocations", stockHandler.Allocate).
		POST("/allocations/bulk", stockHandler.AllocateBulk).
		POST("/deallocations", stockHandler.Deallocate).
		POST("/reservations", stockHandler.Reserve).
		POST("/receipts", stockHandler.Receive).
		POST("/picks", stockHandler.Pick).
		POST("/status-changes", stockHandler.ChangeStatus).
		POST("/holds", stockHandler.PlaceHold).
		POST("/holds/release", stockHandler.ReleaseHold)

	ledger := router.NewDomainGroup("ledger", "/ledger").
		GET("", stockHandler.GetLedger)

	snapshotGroup := router.NewDomainGroup("snapshots", "/snapshots").
		POST("", snapshotHandler.Create).
		GET("/:id", snapshotHandler.Get)

	events := router.NewDomainGroup("events", "/events").
		POST("", eventsHandler.Ingest)

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(stocks).
		Register(ledger).
		Register(snapshotGroup).
		Register(events).
		Setup()

	return &testEnv{
		db:         db,
		engine:     engine,
		serializer: serializer,
		outboxRepo: outboxRepo,
		commands:   commands,
		queries:    queries,
		snapshots:  snapshots,
		ingest:     ingest,
	}
}

// newProcessor builds an outbox processor over the test database with the
// given transport. Tests drive it through ProcessTick instead of Start.
func (env *testEnv) newProcessor(publisher event.EnvelopePublisher) *event.OutboxProcessor {
	return event.NewOutboxProcessor(env.outboxRepo, publisher, event.OutboxProcessorConfig{
		BatchSize:    100,
		PollInterval: time.Hour,
	}, zap.NewNop())
}

// apiResponse is the service's uniform response envelope
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (env *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err, "Failed to marshal request body")
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

func (env *testEnv) postJSON(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return env.request(t, http.MethodPost, path, body)
}

func (env *testEnv) getJSON(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return env.request(t, http.MethodGet, path, nil)
}

// postRaw sends a pre-encoded body, used by the event ingestion tests where
// the envelope bytes matter.
func (env *testEnv) postRaw(t *testing.T, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the data attribute of a successful response
func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to parse response envelope")
	require.True(t, resp.Success, "Expected a success response, got: %s", w.Body.String())

	var data T
	require.NoError(t, json.Unmarshal(resp.Data, &data), "Failed to parse response data")
	return data
}

// decodeError returns the error attribute of a failed response
func decodeError(t *testing.T, w *httptest.ResponseRecorder) apiError {
	t.Helper()

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to parse response envelope")
	require.False(t, resp.Success, "Expected an error response, got: %s", w.Body.String())
	require.NotNil(t, resp.Error, "Expected an error object in the response")
	return *resp.Error
}

// createStock seeds a tracked SKU with opening quantity through the API
func (env *testEnv) createStock(t *testing.T, sku string, quantity int64) {
	t.Helper()

	w := env.postJSON(t, "/api/v1/stocks", stockapp.CreateStockRequest{
		Sku:             sku,
		InitialQuantity: quantity,
	})
	require.Equal(t, http.StatusCreated, w.Code, "Failed to seed stock for %s: %s", sku, w.Body.String())
}

// stockLevel fetches the current level view of a SKU through the API
func (env *testEnv) stockLevel(t *testing.T, sku string) stock.StockLevelView {
	t.Helper()

	w := env.getJSON(t, "/api/v1/stocks/"+sku)
	require.Equal(t, http.StatusOK, w.Code, "Failed to fetch stock level for %s: %s", sku, w.Body.String())
	return decodeData[stock.StockLevelView](t, w)
}

// ledgerEntries fetches a SKU's audit trail through the API, oldest first
func (env *testEnv) ledgerEntries(t *testing.T, sku string) []stockapp.LedgerEntryResponse {
	t.Helper()

	w := env.getJSON(t, "/api/v1/ledger?sku="+sku+"&order_by=timestamp&order_dir=asc")
	require.Equal(t, http.StatusOK, w.Code, "Failed to fetch ledger for %s: %s", sku, w.Body.String())
	return decodeData[[]stockapp.LedgerEntryResponse](t, w)
}

// outboxRows reads one aggregate's outbox rows in write order
func (env *testEnv) outboxRows(t *testing.T, aggregateID string) []shared.OutboxEvent {
	t.Helper()

	var rows []shared.OutboxEvent
	err := env.db.DB.
		Where("aggregate_id = ?", aggregateID).
		Order("created_at, id").
		Find(&rows).Error
	require.NoError(t, err, "Failed to read outbox rows")
	return rows
}

// outboxCount counts every outbox row regardless of status
func (env *testEnv) outboxCount(t *testing.T) int64 {
	t.Helper()

	var count int64
	err := env.db.DB.Model(&shared.OutboxEvent{}).Count(&count).Error
	require.NoError(t, err, "Failed to count outbox rows")
	return count
}

// newEnvelope wraps a payload in a CloudEvents envelope the ingest endpoint
// accepts. The type is qualified the way an upstream producer would.
func newEnvelope(t *testing.T, eventType string, payload interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err, "Failed to marshal event payload")

	env := event.Envelope{
		SpecVersion:     event.EnvelopeSpecVersion,
		ID:              uuid.NewString(),
		Type:            "com.paklog.warehouse.fulfillment.v1." + eventType,
		Source:          "/fulfillment/warehouse-service",
		Time:            time.Now().UTC(),
		DataContentType: event.EnvelopeContentType,
		Data:            data,
	}
	raw, err := env.Encode()
	require.NoError(t, err, "Failed to encode event envelope")
	return raw
}
