package stock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// systemOperator names the service itself as the actor on sweep-released holds
const systemOperator = "SYSTEM"

// MaintenanceService bundles the background housekeeping passes. Hold expiry
// is already lazy for availability math; the sweep makes the releases
// explicit so downstream consumers hear about them. Ledger purges enforce
// the audit retention window.
type MaintenanceService struct {
	commands        *CommandService
	stocks          stock.ProductStockRepository
	ledger          stock.LedgerRepository
	ledgerRetention time.Duration
	logger          *zap.Logger
}

// NewMaintenanceService creates a new MaintenanceService. ledgerRetention
// bounds how far back ledger entries are kept; zero disables the purge.
func NewMaintenanceService(
	commands *CommandService,
	stocks stock.ProductStockRepository,
	ledger stock.LedgerRepository,
	ledgerRetention time.Duration,
	logger *zap.Logger,
) *MaintenanceService {
	return &MaintenanceService{
		commands:        commands,
		stocks:          stocks,
		ledger:          ledger,
		ledgerRetention: ledgerRetention,
		logger:          logger,
	}
}

// ReleaseExpiredHolds scans for stocks carrying active holds past their
// expiry and releases them, one SKU per transaction so a conflicted or
// broken record never stalls the rest. Returns how many holds it released.
func (m *MaintenanceService) ReleaseExpiredHolds(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	var released int64

	for page := 1; ; page++ {
		batch, err := m.stocks.List(ctx, shared.Filter{
			Page:     page,
			PageSize: healthScanPageSize,
			OrderBy:  "sku",
			OrderDir: "asc",
		})
		if err != nil {
			return released, err
		}
		for i := range batch.Items {
			if !hasExpiredHold(&batch.Items[i], now) {
				continue
			}
			sku := batch.Items[i].Sku
			n, err := m.releaseForSku(ctx, sku)
			if err != nil {
				m.logger.Warn("expired hold release failed",
					zap.String("sku", sku),
					zap.Error(err))
				continue
			}
			released += n
		}
		if int64(page*healthScanPageSize) >= batch.Total || len(batch.Items) == 0 {
			break
		}
	}

	if released > 0 {
		m.logger.Info("expired holds released", zap.Int64("count", released))
	}
	return released, nil
}

// releaseForSku re-reads the aggregate inside its own transaction; the scan
// row may be stale by the time the release runs.
func (m *MaintenanceService) releaseForSku(ctx context.Context, sku string) (int64, error) {
	var count int64
	err := m.commands.run(ctx, "hold.release_expired", sku, func(repos TransactionalRepositories) error {
		ps, err := repos.StockRepo().FindBySku(ctx, sku)
		if err != nil {
			return err
		}
		holds := ps.ReleaseExpiredHolds(systemOperator)
		if len(holds) == 0 {
			return nil
		}
		if _, err := persist(ctx, repos, ps, false); err != nil {
			return err
		}
		count = int64(len(holds))
		return nil
	})
	return count, err
}

// PurgeLedger removes ledger entries past the retention cutoff
func (m *MaintenanceService) PurgeLedger(ctx context.Context) (int64, error) {
	if m.ledgerRetention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-m.ledgerRetention)
	return m.ledger.DeleteOlderThan(ctx, cutoff)
}

// hasExpiredHold reports whether any active hold on the row is past expiry
func hasExpiredHold(ps *stock.ProductStock, now time.Time) bool {
	for i := range ps.Holds {
		if ps.Holds[i].Active && ps.Holds[i].IsExpiredAt(now) {
			return true
		}
	}
	return false
}
