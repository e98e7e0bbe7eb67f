package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// scheduledSnapshotCreator names the author of cron-created snapshots
const scheduledSnapshotCreator = "scheduler"

// SnapshotService captures point-in-time inventory states and reconstructs
// past states by replaying the event stream onto the nearest earlier
// snapshot. Snapshot rows and their created events commit together.
type SnapshotService struct {
	scope     TransactionScope
	stocks    stock.ProductStockRepository
	snapshots stock.SnapshotRepository
	outbox    shared.OutboxRepository
	retention time.Duration
	logger    *zap.Logger
}

// NewSnapshotService creates a new SnapshotService. retention bounds how far
// back non-year-end snapshots are kept; zero disables the purge.
func NewSnapshotService(
	scope TransactionScope,
	stocks stock.ProductStockRepository,
	snapshots stock.SnapshotRepository,
	outbox shared.OutboxRepository,
	retention time.Duration,
	logger *zap.Logger,
) *SnapshotService {
	return &SnapshotService{
		scope:     scope,
		stocks:    stocks,
		snapshots: snapshots,
		outbox:    outbox,
		retention: retention,
		logger:    logger,
	}
}

// CreateSnapshot captures one SKU's state on demand
func (s *SnapshotService) CreateSnapshot(ctx context.Context, req CreateSnapshotRequest) (*SnapshotResponse, error) {
	return s.capture(ctx, req.Sku, stock.SnapshotTypeOnDemand, req.Reason, req.CreatedBy)
}

// CreateScheduledSnapshots captures every tracked SKU for a cron run.
// Per-SKU failures are logged and the run continues; only a failed page
// fetch aborts it.
func (s *SnapshotService) CreateScheduledSnapshots(ctx context.Context, snapshotType stock.SnapshotType) error {
	reason := fmt.Sprintf("scheduled %s capture", snapshotType)
	var captured, failed int

	for page := 1; ; page++ {
		batch, err := s.stocks.List(ctx, shared.Filter{
			Page:     page,
			PageSize: healthScanPageSize,
			OrderBy:  "sku",
			OrderDir: "asc",
		})
		if err != nil {
			return err
		}
		for i := range batch.Items {
			sku := batch.Items[i].Sku
			if _, err := s.capture(ctx, sku, snapshotType, reason, scheduledSnapshotCreator); err != nil {
				failed++
				s.logger.Warn("scheduled snapshot failed",
					zap.String("sku", sku),
					zap.String("snapshot_type", string(snapshotType)),
					zap.Error(err))
				continue
			}
			captured++
		}
		if int64(page*healthScanPageSize) >= batch.Total || len(batch.Items) == 0 {
			break
		}
	}

	s.logger.Info("scheduled snapshots finished",
		zap.String("snapshot_type", string(snapshotType)),
		zap.Int("captured", captured),
		zap.Int("failed", failed))
	return nil
}

// capture snapshots one SKU inside a transaction, writing the snapshot row
// and its created event together.
func (s *SnapshotService) capture(ctx context.Context, sku string, snapshotType stock.SnapshotType, reason, createdBy string) (*SnapshotResponse, error) {
	var response SnapshotResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		ps, err := repos.StockRepo().FindBySku(ctx, sku)
		if err != nil {
			return err
		}
		snapshot, err := stock.NewInventorySnapshot(ps, snapshotType, reason, createdBy)
		if err != nil {
			return err
		}
		if err := repos.SnapshotRepo().Save(ctx, snapshot); err != nil {
			return err
		}
		if err := repos.SaveEvents(ctx, stock.NewInventorySnapshotCreatedEvent(snapshot)); err != nil {
			return err
		}
		response = ToSnapshotResponse(snapshot)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// GetSnapshot returns one snapshot by its identifier
func (s *SnapshotService) GetSnapshot(ctx context.Context, id uuid.UUID) (*SnapshotResponse, error) {
	snapshot, err := s.snapshots.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToSnapshotResponse(snapshot)
	return &response, nil
}

// ListSnapshots pages through one SKU's snapshots
func (s *SnapshotService) ListSnapshots(ctx context.Context, sku string, filter SnapshotListFilter) (*shared.Paginated[SnapshotResponse], error) {
	page, err := s.snapshots.FindBySku(ctx, sku, shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
	})
	if err != nil {
		return nil, err
	}
	result := shared.NewPaginated(ToSnapshotResponses(page.Items), page.Total, page.Page, page.PageSize)
	return &result, nil
}

// ReplayAt reconstructs a SKU's state at a past instant: the nearest earlier
// snapshot is the baseline, and the outbox rows recorded since then replay
// on top of it. The outbox keeps every event row, delivered or not, so the
// stream is complete. A SKU never snapshotted replays its whole history
// onto the empty baseline; a SKU with no history at all is not found.
func (s *SnapshotService) ReplayAt(ctx context.Context, sku string, at time.Time) (*PointInTimeResponse, error) {
	baseline, err := s.snapshots.FindLatestBefore(ctx, sku, at)
	if err != nil {
		return nil, err
	}

	var from time.Time
	if baseline != nil {
		from = baseline.SnapshotTimestamp
	}
	rows, err := s.outbox.FindByAggregateID(ctx, sku, from, at)
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		if len(rows) == 0 {
			return nil, shared.NewDomainError(shared.CodeNotFound,
				fmt.Sprintf("no recorded history for %s at or before %s", sku, at.Format(time.RFC3339)))
		}
		baseline = stock.EmptyBaseline(sku)
	}
	events := make([]stock.RecordedEvent, len(rows))
	for i, row := range rows {
		events[i] = stock.RecordedEvent{
			EventID:     row.EventID,
			EventType:   row.EventType,
			AggregateID: row.AggregateID,
			OccurredAt:  row.OccurredAt,
			Payload:     row.Payload,
		}
	}

	result, err := stock.Replay(baseline, events, at)
	if err != nil {
		return nil, err
	}
	response := ToPointInTimeResponse(result)
	return &response, nil
}

// PurgeExpiredSnapshots removes snapshots past the retention cutoff,
// keeping year-end captures for financial audits. Wired as a sweep.
func (s *SnapshotService) PurgeExpiredSnapshots(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-s.retention)
	return s.snapshots.DeleteOlderThan(ctx, cutoff, []stock.SnapshotType{stock.SnapshotTypeYearEnd})
}
