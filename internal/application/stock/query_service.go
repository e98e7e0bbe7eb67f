package stock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
	"github.com/paklog/inventory-service/internal/infrastructure/telemetry"
)

// DefaultHealthWindow is the reporting window when the caller gives none
const DefaultHealthWindow = 90 * 24 * time.Hour

// listProbeSize is the page size used when only the total is needed
const listProbeSize = 1

// healthScanPageSize is the page size for full SKU scans
const healthScanPageSize = 500

// QueryService serves the read side: cached level lookups, the audit trail,
// and the inventory health report. It never mutates stock.
type QueryService struct {
	stocks          stock.ProductStockRepository
	ledger          stock.LedgerRepository
	cache           stock.StockLevelCache
	cacheTTL        time.Duration
	healthWindow    time.Duration
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewQueryService creates a new QueryService. cache may be nil when levels
// are not cached; healthWindow falls back to 90 days when unset.
func NewQueryService(
	stocks stock.ProductStockRepository,
	ledger stock.LedgerRepository,
	cache stock.StockLevelCache,
	cacheTTL time.Duration,
	healthWindow time.Duration,
	logger *zap.Logger,
) *QueryService {
	if healthWindow <= 0 {
		healthWindow = DefaultHealthWindow
	}
	return &QueryService{
		stocks:       stocks,
		ledger:       ledger,
		cache:        cache,
		cacheTTL:     cacheTTL,
		healthWindow: healthWindow,
		logger:       logger,
	}
}

// SetBusinessMetrics wires the domain metrics collector
func (s *QueryService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// GetStockLevel returns the level view for one SKU, cache-aside: a hit is
// served straight from the cache, a miss reads the aggregate and backfills.
func (s *QueryService) GetStockLevel(ctx context.Context, sku string) (*stock.StockLevelView, error) {
	if s.cache != nil {
		view, err := s.cache.Get(ctx, sku)
		if err != nil {
			s.logger.Warn("stock level cache read failed", zap.String("sku", sku), zap.Error(err))
		} else if view != nil {
			s.recordCache(ctx, true)
			return view, nil
		}
		s.recordCache(ctx, false)
	}

	ps, err := s.stocks.FindBySku(ctx, sku)
	if err != nil {
		return nil, err
	}
	view := stock.BuildStockLevelView(ps, time.Now().UTC())

	if s.cache != nil {
		if err := s.cache.Set(ctx, view, s.cacheTTL); err != nil {
			s.logger.Warn("stock level cache write failed", zap.String("sku", sku), zap.Error(err))
		}
	}
	return view, nil
}

// GetStockDetail returns the full denormalized state of one SKU: buckets,
// holds, lots, valuation and classification. Always reads the aggregate.
func (s *QueryService) GetStockDetail(ctx context.Context, sku string) (*StockDetailResponse, error) {
	ps, err := s.stocks.FindBySku(ctx, sku)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &StockDetailResponse{
		Sku:         ps.Sku,
		State:       stock.CaptureState(ps, now),
		LastUpdated: ps.LastUpdated,
		AsOf:        now,
	}, nil
}

// ListStockLevels returns a page of level views
func (s *QueryService) ListStockLevels(ctx context.Context, filter StockListFilter) (*shared.Paginated[stock.StockLevelView], error) {
	page, err := s.stocks.List(ctx, filter.toFilter())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	views := make([]stock.StockLevelView, len(page.Items))
	for i := range page.Items {
		views[i] = *stock.BuildStockLevelView(&page.Items[i], now)
	}
	result := shared.NewPaginated(views, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// GetLedgerHistory returns a page of the audit trail
func (s *QueryService) GetLedgerHistory(ctx context.Context, filter LedgerHistoryFilter) (*shared.Paginated[LedgerEntryResponse], error) {
	page, err := s.ledger.Find(ctx, filter.toLedgerQuery(), shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
	})
	if err != nil {
		return nil, err
	}
	result := shared.NewPaginated(ToLedgerEntryResponses(page.Items), page.Total, page.Page, page.PageSize)
	return &result, nil
}

// GetHealthMetrics reports inventory health over a window: the turnover
// ratio, SKUs without any movement (dead stock), the tracked SKU count and
// how many of them are out of stock. A SKU prefix scopes the counts and the
// dead stock list; the turnover stays service-wide because the ledger sums
// are not prefix-indexed.
func (s *QueryService) GetHealthMetrics(ctx context.Context, query HealthMetricsQuery) (*HealthMetricsResponse, error) {
	windowTo := time.Now().UTC()
	if query.To != nil {
		windowTo = *query.To
	}
	windowFrom := windowTo.Add(-s.healthWindow)
	if query.From != nil {
		windowFrom = *query.From
	}

	totalSkus, err := s.countSkus(ctx, query.SkuPrefix)
	if err != nil {
		return nil, err
	}
	outOfStock, err := s.countOutOfStock(ctx, query.SkuPrefix)
	if err != nil {
		return nil, err
	}
	deadStock, err := s.findDeadStock(ctx, query.SkuPrefix, windowFrom)
	if err != nil {
		return nil, err
	}
	turnover, err := s.turnover(ctx, windowFrom, windowTo)
	if err != nil {
		return nil, err
	}

	return &HealthMetricsResponse{
		Turnover:       turnover,
		DeadStockSkus:  deadStock,
		TotalSkus:      totalSkus,
		OutOfStockSkus: outOfStock,
		WindowFrom:     windowFrom,
		WindowTo:       windowTo,
	}, nil
}

func (s *QueryService) countSkus(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return s.stocks.CountSkus(ctx)
	}
	page, err := s.stocks.List(ctx, shared.Filter{
		Page:     1,
		PageSize: listProbeSize,
		Filters:  map[string]interface{}{"sku_prefix": prefix},
	})
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

func (s *QueryService) countOutOfStock(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		skus, err := s.stocks.FindOutOfStockSkus(ctx)
		if err != nil {
			return 0, err
		}
		return int64(len(skus)), nil
	}
	page, err := s.stocks.List(ctx, shared.Filter{
		Page:     1,
		PageSize: listProbeSize,
		Filters:  map[string]interface{}{"sku_prefix": prefix, "out_of_stock": true},
	})
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// findDeadStock scans the tracked SKUs and keeps those without any ledger
// activity since the window start.
func (s *QueryService) findDeadStock(ctx context.Context, prefix string, since time.Time) ([]string, error) {
	activeSkus, err := s.ledger.DistinctSkusSince(ctx, since)
	if err != nil {
		return nil, err
	}
	active := make(map[string]struct{}, len(activeSkus))
	for _, sku := range activeSkus {
		active[sku] = struct{}{}
	}

	dead := []string{}
	filters := map[string]interface{}{}
	if prefix != "" {
		filters["sku_prefix"] = prefix
	}
	for page := 1; ; page++ {
		batch, err := s.stocks.List(ctx, shared.Filter{
			Page:     page,
			PageSize: healthScanPageSize,
			OrderBy:  "sku",
			OrderDir: "asc",
			Filters:  filters,
		})
		if err != nil {
			return nil, err
		}
		for i := range batch.Items {
			if _, ok := active[batch.Items[i].Sku]; !ok {
				dead = append(dead, batch.Items[i].Sku)
			}
		}
		if int64(page*healthScanPageSize) >= batch.Total || len(batch.Items) == 0 {
			break
		}
	}
	return dead, nil
}

// turnover is the units picked in the window over the units currently on
// hand. Pick entries carry negative deltas, hence the sign flip.
func (s *QueryService) turnover(ctx context.Context, from, to time.Time) (float64, error) {
	picked, err := s.ledger.SumQuantityByType(ctx, stock.ChangeTypePick, from, to)
	if err != nil {
		return 0, err
	}
	onHand, err := s.stocks.SumOnHand(ctx)
	if err != nil {
		return 0, err
	}
	if onHand <= 0 {
		return 0, nil
	}
	return float64(-picked) / float64(onHand), nil
}

func (s *QueryService) recordCache(ctx context.Context, hit bool) {
	if s.businessMetrics == nil {
		return
	}
	if hit {
		s.businessMetrics.RecordCacheHit(ctx, "stock_level")
	} else {
		s.businessMetrics.RecordCacheMiss(ctx, "stock_level")
	}
}

// toFilter converts the list filter into the repository filter
func (f StockListFilter) toFilter() shared.Filter {
	filters := map[string]interface{}{}
	if f.SkuPrefix != "" {
		filters["sku_prefix"] = f.SkuPrefix
	}
	if f.HasStock != nil && *f.HasStock {
		filters["has_stock"] = true
	}
	if f.OutOfStock != nil && *f.OutOfStock {
		filters["out_of_stock"] = true
	}
	if f.Allocated != nil && *f.Allocated {
		filters["allocated"] = true
	}
	return shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Filters:  filters,
	}
}
