package handler

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	stockapp "github.com/paklog/inventory-service/internal/application/stock"
	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// roundTrip copies a row through JSON so stored state never shares memory
// with the caller's aggregate.
func roundTrip[T any](src *T) *T {
	data, err := json.Marshal(src)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

// memStockRepo is an in-memory ProductStockRepository with the same version
// checking as the database one.
type memStockRepo struct {
	mu   sync.Mutex
	rows map[string]*stock.ProductStock
}

func newMemStockRepo() *memStockRepo {
	return &memStockRepo{rows: make(map[string]*stock.ProductStock)}
}

func (r *memStockRepo) FindBySku(_ context.Context, sku string) (*stock.ProductStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.rows[sku]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Product stock not found for SKU: "+sku)
	}
	return roundTrip(ps), nil
}

func (r *memStockRepo) FindBySkus(_ context.Context, skus []string) ([]*stock.ProductStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*stock.ProductStock
	for _, sku := range skus {
		if ps, ok := r.rows[sku]; ok {
			out = append(out, roundTrip(ps))
		}
	}
	return out, nil
}

func (r *memStockRepo) List(_ context.Context, filter shared.Filter) (*shared.Paginated[stock.ProductStock], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*stock.ProductStock
	for _, ps := range r.rows {
		if prefix, ok := filter.Filters["sku_prefix"].(string); ok && prefix != "" && !strings.HasPrefix(ps.Sku, prefix) {
			continue
		}
		matched = append(matched, ps)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Sku < matched[j].Sku })

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	items := make([]stock.ProductStock, 0, end-start)
	for _, ps := range matched[start:end] {
		items = append(items, *roundTrip(ps))
	}
	result := shared.NewPaginated(items, int64(len(matched)), page, pageSize)
	return &result, nil
}

func (r *memStockRepo) Create(_ context.Context, ps *stock.ProductStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[ps.Sku]; ok {
		return shared.NewDomainError(shared.CodeAlreadyExists, "Product stock already exists for SKU: "+ps.Sku)
	}
	r.rows[ps.Sku] = roundTrip(ps)
	return nil
}

func (r *memStockRepo) SaveWithLock(_ context.Context, ps *stock.ProductStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[ps.Sku]
	if !ok || stored.Version != ps.Version-1 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Product stock was modified by another transaction")
	}
	r.rows[ps.Sku] = roundTrip(ps)
	return nil
}

func (r *memStockRepo) CountSkus(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func (r *memStockRepo) SumOnHand(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, ps := range r.rows {
		total += ps.QuantityOnHand
	}
	return total, nil
}

func (r *memStockRepo) FindOutOfStockSkus(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var skus []string
	for _, ps := range r.rows {
		if ps.QuantityOnHand-ps.QuantityAllocated <= 0 {
			skus = append(skus, ps.Sku)
		}
	}
	sort.Strings(skus)
	return skus, nil
}

// memLedgerRepo is an in-memory LedgerRepository
type memLedgerRepo struct {
	mu      sync.Mutex
	entries []*stock.InventoryLedgerEntry
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{}
}

func (r *memLedgerRepo) Append(_ context.Context, entry *stock.InventoryLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, roundTrip(entry))
	return nil
}

func (r *memLedgerRepo) Find(_ context.Context, query stock.LedgerQuery, filter shared.Filter) (*shared.Paginated[stock.InventoryLedgerEntry], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []stock.InventoryLedgerEntry
	for _, e := range r.entries {
		if query.Sku != "" && e.Sku != query.Sku {
			continue
		}
		matched = append(matched, *roundTrip(e))
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	result := shared.NewPaginated(matched, int64(len(matched)), page, pageSize)
	return &result, nil
}

func (r *memLedgerRepo) SumQuantityByType(_ context.Context, _ stock.ChangeType, _, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *memLedgerRepo) DistinctSkusSince(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

func (r *memLedgerRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// memIdempotencyStore is an in-memory IdempotencyStore
type memIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{seen: make(map[string]bool)}
}

func (s *memIdempotencyStore) MarkProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *memIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[eventID], nil
}

func (s *memIdempotencyStore) Close() error { return nil }

// stockTestEnv bundles a wired command/query stack over in-memory repos for
// handler tests.
type stockTestEnv struct {
	stocks   *memStockRepo
	ledger   *memLedgerRepo
	commands *stockapp.CommandService
	queries  *stockapp.QueryService
}

func newStockTestEnv() *stockTestEnv {
	stocks := newMemStockRepo()
	ledger := newMemLedgerRepo()
	scope := stockapp.NewNoOpTransactionScope(stocks, ledger, nil, nil, nil, nil, nil, nil)
	logger := zap.NewNop()
	return &stockTestEnv{
		stocks:   stocks,
		ledger:   ledger,
		commands: stockapp.NewCommandService(scope, nil, stockapp.DefaultRetryPolicy(), logger),
		queries:  stockapp.NewQueryService(stocks, ledger, nil, 0, 0, logger),
	}
}

// newStockRouter registers the stock routes the way the server does
func newStockRouter(env *stockTestEnv) *gin.Engine {
	h := NewStockHandler(env.commands, env.queries, stockapp.NewBulkAllocator(env.commands, 0, zap.NewNop()))

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/stocks", h.Create)
	api.GET("/stocks", h.List)
	api.GET("/stocks/:sku", h.Get)
	api.GET("/stocks/:sku/detail", h.GetDetail)
	api.POST("/stocks/adjustments", h.Adjust)
	api.POST("/stocks/allocations", h.Allocate)
	api.POST("/stocks/allocations/bulk", h.AllocateBulk)
	api.POST("/stocks/deallocations", h.Deallocate)
	api.POST("/stocks/reservations", h.Reserve)
	api.POST("/stocks/receipts", h.Receive)
	api.POST("/stocks/picks", h.Pick)
	api.GET("/ledger", h.GetLedger)
	return r
}
