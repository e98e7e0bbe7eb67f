package event

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
)

// memoryOutboxRepo is an in-memory shared.OutboxRepository covering the
// slice of the interface OutboxService touches. FindDead returns entries
// in a stable order so pagination tests are deterministic.
type memoryOutboxRepo struct {
	entries  map[uuid.UUID]*shared.OutboxEvent
	findErr  error
	countErr error
}

func newMemoryOutboxRepo() *memoryOutboxRepo {
	return &memoryOutboxRepo{entries: make(map[uuid.UUID]*shared.OutboxEvent)}
}

func (r *memoryOutboxRepo) add(status shared.OutboxStatus) *shared.OutboxEvent {
	entry := &shared.OutboxEvent{
		ID:            uuid.New(),
		EventID:       uuid.New(),
		EventType:     "StockAdjusted",
		AggregateID:   "WIDGET-1",
		AggregateType: "product_stock",
		Status:        status,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if status == shared.OutboxStatusDead {
		entry.RetryCount = 5
		entry.MaxRetries = 5
		entry.LastError = "broker unreachable"
	}
	r.entries[entry.ID] = entry
	return entry
}

func (r *memoryOutboxRepo) Save(ctx context.Context, events ...*shared.OutboxEvent) error {
	for _, e := range events {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *memoryOutboxRepo) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEvent, error) {
	return nil, nil
}

func (r *memoryOutboxRepo) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEvent, error) {
	return nil, nil
}

func (r *memoryOutboxRepo) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEvent, int64, error) {
	if r.findErr != nil {
		return nil, 0, r.findErr
	}
	var dead []*shared.OutboxEvent
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusDead {
			dead = append(dead, e)
		}
	}
	sort.Slice(dead, func(i, j int) bool { return dead[i].ID.String() < dead[j].ID.String() })

	total := int64(len(dead))
	start := (page - 1) * pageSize
	if start >= len(dead) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(dead) {
		end = len(dead)
	}
	return dead[start:end], total, nil
}

func (r *memoryOutboxRepo) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEvent, error) {
	return r.entries[id], nil
}

func (r *memoryOutboxRepo) FindByAggregateID(ctx context.Context, aggregateID string, from, to time.Time) ([]*shared.OutboxEvent, error) {
	return nil, nil
}

func (r *memoryOutboxRepo) HasOlderUndelivered(ctx context.Context, aggregateID string, createdAt time.Time, id uuid.UUID) (bool, error) {
	return false, nil
}

func (r *memoryOutboxRepo) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEvent, error) {
	return nil, nil
}

func (r *memoryOutboxRepo) ReclaimStale(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *memoryOutboxRepo) Update(ctx context.Context, event *shared.OutboxEvent) error {
	r.entries[event.ID] = event
	return nil
}

func (r *memoryOutboxRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *memoryOutboxRepo) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	if r.countErr != nil {
		return nil, r.countErr
	}
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func newOutboxService(repo *memoryOutboxRepo) *OutboxService {
	return NewOutboxService(repo, zap.NewNop())
}

func TestOutboxFilter_Normalized(t *testing.T) {
	tests := []struct {
		name         string
		filter       OutboxFilter
		wantPage     int
		wantPageSize int
	}{
		{"zero value gets defaults", OutboxFilter{}, 1, 20},
		{"negative page clamps to first", OutboxFilter{Page: -3, PageSize: 10}, 1, 10},
		{"oversized page size clamps to cap", OutboxFilter{Page: 2, PageSize: 500}, 2, 100},
		{"in-range values pass through", OutboxFilter{Page: 3, PageSize: 25}, 3, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, pageSize := tt.filter.normalized()
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPageSize, pageSize)
		})
	}
}

func TestOutboxService_GetDeadLetterEntries(t *testing.T) {
	repo := newMemoryOutboxRepo()
	svc := newOutboxService(repo)

	for i := 0; i < 5; i++ {
		repo.add(shared.OutboxStatusDead)
	}
	repo.add(shared.OutboxStatusPending)
	repo.add(shared.OutboxStatusSent)

	t.Run("returns only dead entries", func(t *testing.T) {
		result, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{Page: 1, PageSize: 10})
		require.NoError(t, err)

		assert.Equal(t, int64(5), result.Total)
		assert.Equal(t, 1, result.TotalPages)
		require.Len(t, result.Entries, 5)
		for _, entry := range result.Entries {
			assert.Equal(t, string(shared.OutboxStatusDead), entry.Status)
			assert.Equal(t, "broker unreachable", entry.LastError)
		}
	})

	t.Run("paginates with a partial last page", func(t *testing.T) {
		result, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{Page: 3, PageSize: 2})
		require.NoError(t, err)

		assert.Equal(t, int64(5), result.Total)
		assert.Equal(t, 3, result.TotalPages)
		assert.Len(t, result.Entries, 1)
	})

	t.Run("repository failure surfaces as internal error", func(t *testing.T) {
		repo.findErr = assert.AnError
		defer func() { repo.findErr = nil }()

		_, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{})
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "INTERNAL_ERROR", derr.Code)
	})
}

func TestOutboxService_GetEntry(t *testing.T) {
	repo := newMemoryOutboxRepo()
	svc := newOutboxService(repo)
	entry := repo.add(shared.OutboxStatusFailed)

	t.Run("found", func(t *testing.T) {
		dto, err := svc.GetEntry(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, dto.ID)
		assert.Equal(t, "StockAdjusted", dto.EventType)
		assert.Equal(t, "WIDGET-1", dto.AggregateID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := svc.GetEntry(context.Background(), uuid.New())
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "ENTRY_NOT_FOUND", derr.Code)
	})
}

func TestOutboxService_RetryDeadEntry(t *testing.T) {
	t.Run("resets a dead entry to pending", func(t *testing.T) {
		repo := newMemoryOutboxRepo()
		svc := newOutboxService(repo)
		dead := repo.add(shared.OutboxStatusDead)

		dto, err := svc.RetryDeadEntry(context.Background(), dead.ID)
		require.NoError(t, err)

		assert.Equal(t, string(shared.OutboxStatusPending), dto.Status)
		assert.Equal(t, 0, dto.RetryCount)
		assert.Empty(t, dto.LastError)
		assert.Equal(t, shared.OutboxStatusPending, repo.entries[dead.ID].Status)
	})

	t.Run("rejects entries that are not dead", func(t *testing.T) {
		repo := newMemoryOutboxRepo()
		svc := newOutboxService(repo)
		pending := repo.add(shared.OutboxStatusPending)

		_, err := svc.RetryDeadEntry(context.Background(), pending.ID)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "INVALID_STATUS", derr.Code)
	})

	t.Run("missing entry", func(t *testing.T) {
		svc := newOutboxService(newMemoryOutboxRepo())

		_, err := svc.RetryDeadEntry(context.Background(), uuid.New())
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "ENTRY_NOT_FOUND", derr.Code)
	})
}

func TestOutboxService_RetryAllDeadEntries(t *testing.T) {
	repo := newMemoryOutboxRepo()
	svc := newOutboxService(repo)

	for i := 0; i < 3; i++ {
		repo.add(shared.OutboxStatusDead)
	}
	untouched := repo.add(shared.OutboxStatusSent)

	count, err := svc.RetryAllDeadEntries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	for id, entry := range repo.entries {
		if id == untouched.ID {
			assert.Equal(t, shared.OutboxStatusSent, entry.Status)
			continue
		}
		assert.Equal(t, shared.OutboxStatusPending, entry.Status)
		assert.Equal(t, 0, entry.RetryCount)
	}
}

func TestOutboxService_GetStats(t *testing.T) {
	repo := newMemoryOutboxRepo()
	svc := newOutboxService(repo)

	for _, status := range []shared.OutboxStatus{
		shared.OutboxStatusPending, shared.OutboxStatusPending,
		shared.OutboxStatusProcessing,
		shared.OutboxStatusSent, shared.OutboxStatusSent, shared.OutboxStatusSent,
		shared.OutboxStatusFailed,
		shared.OutboxStatusDead,
	} {
		repo.add(status)
	}

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &OutboxStatsDTO{
		Pending:    2,
		Processing: 1,
		Sent:       3,
		Failed:     1,
		Dead:       1,
		Total:      8,
	}, stats)
}
