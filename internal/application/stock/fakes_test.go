package stock

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// deepCopy round-trips a row through JSON so stored state never shares
// memory with the caller's aggregate, the way a real row scan would not.
func deepCopy[T any](src *T) *T {
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

func clampPage(filter shared.Filter) (int, int) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}

// eventRecorder captures the domain events a command flushed as outbox rows
type eventRecorder struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (r *eventRecorder) sink(_ context.Context, events ...shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *eventRecorder) ofType(eventType string) []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// memStockRepo is an in-memory ProductStockRepository with the same version
// checking as the database one. conflictsLeft injects lock failures for
// retry tests.
type memStockRepo struct {
	mu            sync.Mutex
	rows          map[string]*stock.ProductStock
	conflictsLeft int
	saveCalls     int
	racingRow     *stock.ProductStock
}

func newMemStockRepo() *memStockRepo {
	return &memStockRepo{rows: make(map[string]*stock.ProductStock)}
}

func (r *memStockRepo) put(ps *stock.ProductStock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[ps.Sku] = deepCopy(ps)
}

func (r *memStockRepo) injectConflicts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflictsLeft = n
}

// loseCreateRaceTo makes the next Create lose to a concurrent writer:
// the given row lands in the store first and the create fails with the
// duplicate-key error the database repository would report.
func (r *memStockRepo) loseCreateRaceTo(ps *stock.ProductStock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.racingRow = deepCopy(ps)
}

func (r *memStockRepo) saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveCalls
}

func (r *memStockRepo) FindBySku(_ context.Context, sku string) (*stock.ProductStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.rows[sku]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Product stock not found for SKU: "+sku)
	}
	return deepCopy(ps), nil
}

func (r *memStockRepo) FindBySkus(ctx context.Context, skus []string) ([]*stock.ProductStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*stock.ProductStock
	for _, sku := range skus {
		if ps, ok := r.rows[sku]; ok {
			out = append(out, deepCopy(ps))
		}
	}
	return out, nil
}

func (r *memStockRepo) List(_ context.Context, filter shared.Filter) (*shared.Paginated[stock.ProductStock], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*stock.ProductStock
	for _, ps := range r.rows {
		if matchesStockFilter(ps, filter.Filters) {
			matched = append(matched, ps)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Sku < matched[j].Sku })

	page, pageSize := clampPage(filter)
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
		items = append(items, *deepCopy(ps))
	}
	result := shared.NewPaginated(items, int64(len(matched)), page, pageSize)
	return &result, nil
}

func matchesStockFilter(ps *stock.ProductStock, filters map[string]interface{}) bool {
	for key, value := range filters {
		switch key {
		case "sku_prefix":
			if prefix, ok := value.(string); ok && prefix != "" && !strings.HasPrefix(ps.Sku, prefix) {
				return false
			}
		case "has_stock":
			if value == true && ps.QuantityOnHand <= 0 {
				return false
			}
		case "out_of_stock":
			if value == true && ps.QuantityOnHand-ps.QuantityAllocated > 0 {
				return false
			}
		case "allocated":
			if value == true && ps.QuantityAllocated <= 0 {
				return false
			}
		}
	}
	return true
}

func (r *memStockRepo) Create(_ context.Context, ps *stock.ProductStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.racingRow != nil {
		r.rows[r.racingRow.Sku] = r.racingRow
		r.racingRow = nil
		return shared.NewDomainError(shared.CodeAlreadyExists, "Product stock already exists for SKU: "+ps.Sku)
	}
	if _, ok := r.rows[ps.Sku]; ok {
		return shared.NewDomainError(shared.CodeAlreadyExists, "Product stock already exists for SKU: "+ps.Sku)
	}
	r.rows[ps.Sku] = deepCopy(ps)
	return nil
}

func (r *memStockRepo) SaveWithLock(_ context.Context, ps *stock.ProductStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Product stock was modified by another transaction")
	}
	stored, ok := r.rows[ps.Sku]
	if !ok || stored.Version != ps.Version-1 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Product stock was modified by another transaction")
	}
	r.rows[ps.Sku] = deepCopy(ps)
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
	r.entries = append(r.entries, deepCopy(entry))
	return nil
}

func (r *memLedgerRepo) bySku(sku string) []*stock.InventoryLedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*stock.InventoryLedgerEntry
	for _, e := range r.entries {
		if e.Sku == sku {
			out = append(out, deepCopy(e))
		}
	}
	return out
}

func (r *memLedgerRepo) Find(_ context.Context, query stock.LedgerQuery, filter shared.Filter) (*shared.Paginated[stock.InventoryLedgerEntry], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*stock.InventoryLedgerEntry
	for _, e := range r.entries {
		if query.Sku != "" && e.Sku != query.Sku {
			continue
		}
		if query.ChangeType != "" && e.ChangeType != query.ChangeType {
			continue
		}
		if query.OperatorID != "" && e.OperatorID != query.OperatorID {
			continue
		}
		if !query.From.IsZero() && e.Timestamp.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && !e.Timestamp.Before(query.To) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })

	page, pageSize := clampPage(filter)
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	items := make([]stock.InventoryLedgerEntry, 0, end-start)
	for _, e := range matched[start:end] {
		items = append(items, *deepCopy(e))
	}
	result := shared.NewPaginated(items, int64(len(matched)), page, pageSize)
	return &result, nil
}

func (r *memLedgerRepo) SumQuantityByType(_ context.Context, changeType stock.ChangeType, from, to time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, e := range r.entries {
		if e.ChangeType != changeType {
			continue
		}
		if !from.IsZero() && e.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !e.Timestamp.Before(to) {
			continue
		}
		total += e.QuantityChange
	}
	return total, nil
}

func (r *memLedgerRepo) DistinctSkusSince(_ context.Context, since time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	for _, e := range r.entries {
		if e.Timestamp.Before(since) {
			continue
		}
		seen[e.Sku] = struct{}{}
	}
	skus := make([]string, 0, len(seen))
	for sku := range seen {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus, nil
}

func (r *memLedgerRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*stock.InventoryLedgerEntry
	var removed int64
	for _, e := range r.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

// memSnapshotRepo is an in-memory SnapshotRepository
type memSnapshotRepo struct {
	mu   sync.Mutex
	rows []*stock.InventorySnapshot
}

func newMemSnapshotRepo() *memSnapshotRepo {
	return &memSnapshotRepo{}
}

func (r *memSnapshotRepo) Save(_ context.Context, snapshot *stock.InventorySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, deepCopy(snapshot))
	return nil
}

func (r *memSnapshotRepo) FindByID(_ context.Context, id uuid.UUID) (*stock.InventorySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.SnapshotID == id {
			return deepCopy(s), nil
		}
	}
	return nil, shared.NewDomainError(shared.CodeNotFound, "Snapshot not found: "+id.String())
}

func (r *memSnapshotRepo) FindLatestBefore(_ context.Context, sku string, t time.Time) (*stock.InventorySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *stock.InventorySnapshot
	for _, s := range r.rows {
		if s.Sku != sku || s.SnapshotTimestamp.After(t) {
			continue
		}
		if latest == nil || s.SnapshotTimestamp.After(latest.SnapshotTimestamp) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	return deepCopy(latest), nil
}

func (r *memSnapshotRepo) FindBySku(_ context.Context, sku string, filter shared.Filter) (*shared.Paginated[stock.InventorySnapshot], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*stock.InventorySnapshot
	for _, s := range r.rows {
		if s.Sku == sku {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].SnapshotTimestamp.After(matched[j].SnapshotTimestamp) })

	page, pageSize := clampPage(filter)
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	items := make([]stock.InventorySnapshot, 0, end-start)
	for _, s := range matched[start:end] {
		items = append(items, *deepCopy(s))
	}
	result := shared.NewPaginated(items, int64(len(matched)), page, pageSize)
	return &result, nil
}

func (r *memSnapshotRepo) DeleteOlderThan(_ context.Context, cutoff time.Time, keepTypes []stock.SnapshotType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keep := make(map[stock.SnapshotType]struct{}, len(keepTypes))
	for _, t := range keepTypes {
		keep[t] = struct{}{}
	}
	var kept []*stock.InventorySnapshot
	var removed int64
	for _, s := range r.rows {
		_, protected := keep[s.Type]
		if s.SnapshotTimestamp.Before(cutoff) && !protected {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	r.rows = kept
	return removed, nil
}

// memSerialRepo is an in-memory SerialNumberRepository
type memSerialRepo struct {
	mu   sync.Mutex
	rows map[string]*stock.SerialNumber
}

func newMemSerialRepo() *memSerialRepo {
	return &memSerialRepo{rows: make(map[string]*stock.SerialNumber)}
}

func (r *memSerialRepo) Create(_ context.Context, sn *stock.SerialNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[sn.Serial]; ok {
		return shared.NewDomainError(shared.CodeAlreadyExists, "Serial number already registered: "+sn.Serial)
	}
	r.rows[sn.Serial] = deepCopy(sn)
	return nil
}

func (r *memSerialRepo) SaveWithLock(_ context.Context, sn *stock.SerialNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[sn.Serial]
	if !ok || stored.Version != sn.Version-1 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Serial number was modified by another transaction")
	}
	r.rows[sn.Serial] = deepCopy(sn)
	return nil
}

func (r *memSerialRepo) FindBySerial(_ context.Context, serial string) (*stock.SerialNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sn, ok := r.rows[serial]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Serial number not found: "+serial)
	}
	return deepCopy(sn), nil
}

func (r *memSerialRepo) FindBySku(_ context.Context, sku string, status stock.SerialStatus, filter shared.Filter) (*shared.Paginated[stock.SerialNumber], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*stock.SerialNumber
	for _, sn := range r.rows {
		if sn.Sku != sku {
			continue
		}
		if status != "" && sn.Status != status {
			continue
		}
		matched = append(matched, sn)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Serial < matched[j].Serial })

	page, pageSize := clampPage(filter)
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	items := make([]stock.SerialNumber, 0, end-start)
	for _, sn := range matched[start:end] {
		items = append(items, *deepCopy(sn))
	}
	result := shared.NewPaginated(items, int64(len(matched)), page, pageSize)
	return &result, nil
}

// memTransferRepo is an in-memory StockTransferRepository
type memTransferRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*stock.StockTransfer
}

func newMemTransferRepo() *memTransferRepo {
	return &memTransferRepo{rows: make(map[uuid.UUID]*stock.StockTransfer)}
}

func (r *memTransferRepo) Create(_ context.Context, t *stock.StockTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[t.TransferID] = deepCopy(t)
	return nil
}

func (r *memTransferRepo) SaveWithLock(_ context.Context, t *stock.StockTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[t.TransferID]
	if !ok || stored.Version != t.Version-1 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Stock transfer was modified by another transaction")
	}
	r.rows[t.TransferID] = deepCopy(t)
	return nil
}

func (r *memTransferRepo) FindByID(_ context.Context, id uuid.UUID) (*stock.StockTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Stock transfer not found: "+id.String())
	}
	return deepCopy(t), nil
}

func (r *memTransferRepo) List(_ context.Context, status stock.TransferStatus, filter shared.Filter) (*shared.Paginated[stock.StockTransfer], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*stock.StockTransfer
	for _, t := range r.rows {
		if status != "" && t.Status != status {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].InitiatedAt.Before(matched[j].InitiatedAt) })

	page, pageSize := clampPage(filter)
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	items := make([]stock.StockTransfer, 0, end-start)
	for _, t := range matched[start:end] {
		items = append(items, *deepCopy(t))
	}
	result := shared.NewPaginated(items, int64(len(matched)), page, pageSize)
	return &result, nil
}

// memContainerRepo is an in-memory ContainerRepository
type memContainerRepo struct {
	mu   sync.Mutex
	rows map[string]*stock.Container
}

func newMemContainerRepo() *memContainerRepo {
	return &memContainerRepo{rows: make(map[string]*stock.Container)}
}

func (r *memContainerRepo) Save(_ context.Context, c *stock.Container) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[c.LPN] = deepCopy(c)
	return nil
}

func (r *memContainerRepo) FindByLPN(_ context.Context, lpn string) (*stock.Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[lpn]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Container not found: "+lpn)
	}
	return deepCopy(c), nil
}

func (r *memContainerRepo) List(_ context.Context, filter shared.Filter) (*shared.Paginated[stock.Container], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*stock.Container
	for _, c := range r.rows {
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	page, pageSize := clampPage(filter)
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	items := make([]stock.Container, 0, end-start)
	for _, c := range matched[start:end] {
		items = append(items, *deepCopy(c))
	}
	result := shared.NewPaginated(items, int64(len(matched)), page, pageSize)
	return &result, nil
}

// memAssemblyRepo is an in-memory AssemblyOrderRepository
type memAssemblyRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*stock.AssemblyOrder
}

func newMemAssemblyRepo() *memAssemblyRepo {
	return &memAssemblyRepo{rows: make(map[uuid.UUID]*stock.AssemblyOrder)}
}

func (r *memAssemblyRepo) Create(_ context.Context, ao *stock.AssemblyOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[ao.OrderID] = deepCopy(ao)
	return nil
}

func (r *memAssemblyRepo) SaveWithLock(_ context.Context, ao *stock.AssemblyOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[ao.OrderID]
	if !ok || stored.Version != ao.Version-1 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Assembly order was modified by another transaction")
	}
	r.rows[ao.OrderID] = deepCopy(ao)
	return nil
}

func (r *memAssemblyRepo) FindByID(_ context.Context, id uuid.UUID) (*stock.AssemblyOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ao, ok := r.rows[id]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Assembly order not found: "+id.String())
	}
	return deepCopy(ao), nil
}

func (r *memAssemblyRepo) List(_ context.Context, status stock.AssemblyStatus, filter shared.Filter) (*shared.Paginated[stock.AssemblyOrder], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*stock.AssemblyOrder
	for _, ao := range r.rows {
		if status != "" && ao.Status != status {
			continue
		}
		matched = append(matched, ao)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	page, pageSize := clampPage(filter)
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	items := make([]stock.AssemblyOrder, 0, end-start)
	for _, ao := range matched[start:end] {
		items = append(items, *deepCopy(ao))
	}
	result := shared.NewPaginated(items, int64(len(matched)), page, pageSize)
	return &result, nil
}

// memOutboxRepo is a minimal in-memory shared.OutboxRepository; replay tests
// only exercise Save and FindByAggregateID.
type memOutboxRepo struct {
	mu   sync.Mutex
	rows []*shared.OutboxEvent
}

func newMemOutboxRepo() *memOutboxRepo {
	return &memOutboxRepo{}
}

func (r *memOutboxRepo) Save(_ context.Context, events ...*shared.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		copied := *e
		r.rows = append(r.rows, &copied)
	}
	return nil
}

func (r *memOutboxRepo) FindPending(_ context.Context, limit int) ([]*shared.OutboxEvent, error) {
	return nil, nil
}

func (r *memOutboxRepo) FindRetryable(_ context.Context, before time.Time, limit int) ([]*shared.OutboxEvent, error) {
	return nil, nil
}

func (r *memOutboxRepo) FindDead(_ context.Context, page, pageSize int) ([]*shared.OutboxEvent, int64, error) {
	return nil, 0, nil
}

func (r *memOutboxRepo) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxEvent, error) {
	return nil, shared.NewDomainError(shared.CodeNotFound, "Outbox event not found: "+id.String())
}

func (r *memOutboxRepo) FindByAggregateID(_ context.Context, aggregateID string, from, to time.Time) ([]*shared.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEvent
	for _, e := range r.rows {
		if e.AggregateID != aggregateID {
			continue
		}
		if !e.OccurredAt.After(from) || e.OccurredAt.After(to) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].EventID.String() < out[j].EventID.String()
	})
	return out, nil
}

func (r *memOutboxRepo) HasOlderUndelivered(_ context.Context, aggregateID string, createdAt time.Time, id uuid.UUID) (bool, error) {
	return false, nil
}

func (r *memOutboxRepo) MarkProcessing(_ context.Context, ids []uuid.UUID) ([]*shared.OutboxEvent, error) {
	return nil, nil
}

func (r *memOutboxRepo) ReclaimStale(_ context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *memOutboxRepo) Update(_ context.Context, event *shared.OutboxEvent) error {
	return nil
}

func (r *memOutboxRepo) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *memOutboxRepo) CountByStatus(_ context.Context) (map[shared.OutboxStatus]int64, error) {
	return map[shared.OutboxStatus]int64{}, nil
}

// memLevelCache is an in-memory StockLevelCache recording invalidations
type memLevelCache struct {
	mu      sync.Mutex
	views   map[string]*stock.StockLevelView
	deleted []string
	getErr  error
}

func newMemLevelCache() *memLevelCache {
	return &memLevelCache{views: make(map[string]*stock.StockLevelView)}
}

func (c *memLevelCache) Get(_ context.Context, sku string) (*stock.StockLevelView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	view, ok := c.views[sku]
	if !ok {
		return nil, nil
	}
	copied := *view
	return &copied, nil
}

func (c *memLevelCache) Set(_ context.Context, view *stock.StockLevelView, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *view
	c.views[view.Sku] = &copied
	return nil
}

func (c *memLevelCache) Delete(_ context.Context, skus ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sku := range skus {
		delete(c.views, sku)
		c.deleted = append(c.deleted, sku)
	}
	return nil
}

func (c *memLevelCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = make(map[string]*stock.StockLevelView)
	return nil
}

func (c *memLevelCache) Close() error { return nil }

func (c *memLevelCache) deletions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.deleted))
	copy(out, c.deleted)
	return out
}

// memIdempotencyStore is an in-memory shared.IdempotencyStore
type memIdempotencyStore struct {
	mu     sync.Mutex
	marked map[string]struct{}
	err    error
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{marked: make(map[string]struct{})}
}

func (s *memIdempotencyStore) MarkProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.marked[eventID]; ok {
		return false, nil
	}
	s.marked[eventID] = struct{}{}
	return true, nil
}

func (s *memIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.marked[eventID]
	return ok, nil
}

func (s *memIdempotencyStore) Close() error { return nil }

// captureDeadLetters collects dead-lettered envelopes for assertions
type captureDeadLetters struct {
	mu      sync.Mutex
	entries []string
}

func (d *captureDeadLetters) Send(_ context.Context, envelope []byte, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, reason)
	return nil
}

func (d *captureDeadLetters) reasons() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.entries))
	copy(out, d.entries)
	return out
}

// testEnv bundles the in-memory world one service test runs against
type testEnv struct {
	stocks     *memStockRepo
	ledger     *memLedgerRepo
	snapshots  *memSnapshotRepo
	serials    *memSerialRepo
	transfers  *memTransferRepo
	orders     *memAssemblyRepo
	containers *memContainerRepo
	outbox     *memOutboxRepo
	events     *eventRecorder
	cache      *memLevelCache
	scope      *NoOpTransactionScope
	commands   *CommandService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		stocks:     newMemStockRepo(),
		ledger:     newMemLedgerRepo(),
		snapshots:  newMemSnapshotRepo(),
		serials:    newMemSerialRepo(),
		transfers:  newMemTransferRepo(),
		orders:     newMemAssemblyRepo(),
		containers: newMemContainerRepo(),
		outbox:     newMemOutboxRepo(),
		events:     &eventRecorder{},
		cache:      newMemLevelCache(),
	}
	env.scope = NewNoOpTransactionScope(
		env.stocks, env.ledger, env.snapshots, env.serials,
		env.transfers, env.orders, env.containers, env.events.sink,
	)
	retry := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
	env.commands = NewCommandService(env.scope, env.cache, retry, zap.NewNop())
	return env
}

// seed stores a stock record with qty on hand, discarding creation events
func (e *testEnv) seed(sku string, qty int64) *stock.ProductStock {
	ps, err := stock.CreateProductStock(sku, qty)
	if err != nil {
		panic(err)
	}
	ps.ClearDomainEvents()
	e.stocks.put(ps)
	return ps
}

// seedAllocated stores a stock record with part of it reserved
func (e *testEnv) seedAllocated(sku string, qty, allocated int64) *stock.ProductStock {
	ps, err := stock.CreateProductStock(sku, qty)
	if err != nil {
		panic(err)
	}
	if allocated > 0 {
		if err := ps.Allocate(allocated); err != nil {
			panic(err)
		}
	}
	ps.ClearDomainEvents()
	e.stocks.put(ps)
	return ps
}
