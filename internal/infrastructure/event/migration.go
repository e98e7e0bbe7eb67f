package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MigrationResult summarizes one batch upgrade run. FromVersion is the
// oldest schema version seen in the batch.
type MigrationResult struct {
	EventType      string
	TotalProcessed int
	Upgraded       int
	AlreadyCurrent int
	Failed         int
	FailedPayloads []FailedMigration
	StartedAt      time.Time
	CompletedAt    time.Time
	FromVersion    int
	ToVersion      int
}

// FailedMigration records a payload the upgrade chain rejected.
type FailedMigration struct {
	Payload []byte
	Error   string
	Version int
}

// Duration returns the wall time of the batch run.
func (r *MigrationResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r *MigrationResult) observe(version int) {
	r.TotalProcessed++
	if r.FromVersion == 0 || version < r.FromVersion {
		r.FromVersion = version
	}
}

func (r *MigrationResult) reject(payload []byte, version int, err error) {
	r.Failed++
	r.FailedPayloads = append(r.FailedPayloads, FailedMigration{
		Payload: payload,
		Error:   err.Error(),
		Version: version,
	})
}

// EventMigrator upgrades stored event payloads to the current schema
// version, for batch rewrites of the outbox or an event archive.
type EventMigrator struct {
	serializer *VersionedSerializer
	logger     *zap.Logger
}

// NewEventMigrator creates a migrator over the given serializer.
func NewEventMigrator(serializer *VersionedSerializer, logger *zap.Logger) *EventMigrator {
	return &EventMigrator{serializer: serializer, logger: logger}
}

// MigratePayloads runs every payload in the batch through the upgrade
// chain. Failures are collected per payload rather than aborting the
// batch; cancellation stops early and returns the partial result.
func (m *EventMigrator) MigratePayloads(ctx context.Context, eventType string, payloads [][]byte) (*MigrationResult, error) {
	currentVersion, ok := m.serializer.GetCurrentVersion(eventType)
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	result := &MigrationResult{
		EventType:      eventType,
		ToVersion:      currentVersion,
		StartedAt:      time.Now(),
		FailedPayloads: []FailedMigration{},
	}
	defer func() { result.CompletedAt = time.Now() }()

	for _, payload := range payloads {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		version := ExtractVersion(payload)
		result.observe(version)

		switch {
		case version >= currentVersion:
			result.AlreadyCurrent++
		default:
			if _, _, err := m.serializer.UpgradePayloadOnly(eventType, payload); err != nil {
				result.reject(payload, version, err)
			} else {
				result.Upgraded++
			}
		}
	}
	return result, nil
}

// ValidateUpgradeChain checks that an upgrader exists for every step
// from version 1 to the current version.
func (m *EventMigrator) ValidateUpgradeChain(eventType string) error {
	config, ok := m.serializer.GetVersionRegistry().GetConfig(eventType)
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}
	for v := 1; v < config.CurrentVersion; v++ {
		if _, ok := config.Upgraders[v]; !ok {
			return fmt.Errorf("missing upgrader for version %d -> %d", v, v+1)
		}
	}
	return nil
}

// EventVersionAnalysis is the version histogram of a payload batch.
type EventVersionAnalysis struct {
	EventType      string
	CurrentVersion int
	VersionCounts  map[int]int
	OldestVersion  int
	NewestVersion  int
	TotalEvents    int
	NeedsMigration int
	UpToDate       int
}

// AnalyzePayloads counts payloads per schema version without touching
// them, to size a migration before running it.
func (m *EventMigrator) AnalyzePayloads(eventType string, payloads [][]byte) (*EventVersionAnalysis, error) {
	currentVersion, ok := m.serializer.GetCurrentVersion(eventType)
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	analysis := &EventVersionAnalysis{
		EventType:      eventType,
		CurrentVersion: currentVersion,
		VersionCounts:  map[int]int{},
		OldestVersion:  -1,
		NewestVersion:  -1,
		TotalEvents:    len(payloads),
	}

	for _, payload := range payloads {
		v := ExtractVersion(payload)
		analysis.VersionCounts[v]++
		if analysis.OldestVersion == -1 || v < analysis.OldestVersion {
			analysis.OldestVersion = v
		}
		if v > analysis.NewestVersion {
			analysis.NewestVersion = v
		}
		if v < currentVersion {
			analysis.NeedsMigration++
		} else {
			analysis.UpToDate++
		}
	}
	return analysis, nil
}

// MigrationPlan lists the upgrade steps needed to bring payloads from
// one version to the current one.
type MigrationPlan struct {
	EventType        string
	FromVersion      int
	ToVersion        int
	UpgradeSteps     []UpgradeStep
	EstimatedPayload int
}

// UpgradeStep is one hop of a migration plan.
type UpgradeStep struct {
	FromVersion int
	ToVersion   int
	HasUpgrader bool
}

// CreateMigrationPlan builds the step list from fromVersion to the
// current version. A fromVersion at or past current yields an empty
// plan.
func (m *EventMigrator) CreateMigrationPlan(eventType string, fromVersion int) (*MigrationPlan, error) {
	config, ok := m.serializer.GetVersionRegistry().GetConfig(eventType)
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	plan := &MigrationPlan{
		EventType:    eventType,
		FromVersion:  fromVersion,
		ToVersion:    config.CurrentVersion,
		UpgradeSteps: []UpgradeStep{},
	}
	for v := fromVersion; v < config.CurrentVersion; v++ {
		_, hasUpgrader := config.Upgraders[v]
		plan.UpgradeSteps = append(plan.UpgradeSteps, UpgradeStep{
			FromVersion: v,
			ToVersion:   v + 1,
			HasUpgrader: hasUpgrader,
		})
	}
	return plan, nil
}

// IsValid reports whether every step of the plan has an upgrader.
func (p *MigrationPlan) IsValid() bool {
	for _, step := range p.UpgradeSteps {
		if !step.HasUpgrader {
			return false
		}
	}
	return true
}

// CommonUpgraders builds single-step upgraders for the usual schema
// edits, so most event evolutions need no hand-written upgrade func.
type CommonUpgraders struct{}

func (CommonUpgraders) step(from int, edit func(map[string]any)) *BaseEventUpgrader {
	return NewBaseEventUpgrader(from, from+1, func(data map[string]any) (map[string]any, error) {
		edit(data)
		return data, nil
	})
}

// AddField adds a field with a default value.
func (u CommonUpgraders) AddField(sourceVersion int, fieldName string, defaultValue any) *BaseEventUpgrader {
	return u.step(sourceVersion, func(data map[string]any) {
		data[fieldName] = defaultValue
	})
}

// RemoveField drops a field.
func (u CommonUpgraders) RemoveField(sourceVersion int, fieldName string) *BaseEventUpgrader {
	return u.step(sourceVersion, func(data map[string]any) {
		delete(data, fieldName)
	})
}

// RenameField moves a value to a new key.
func (u CommonUpgraders) RenameField(sourceVersion int, oldName, newName string) *BaseEventUpgrader {
	return u.step(sourceVersion, func(data map[string]any) {
		if val, ok := data[oldName]; ok {
			data[newName] = val
			delete(data, oldName)
		}
	})
}

// TransformField rewrites a field value in place.
func (u CommonUpgraders) TransformField(sourceVersion int, fieldName string, transform func(any) any) *BaseEventUpgrader {
	return u.step(sourceVersion, func(data map[string]any) {
		if val, ok := data[fieldName]; ok {
			data[fieldName] = transform(val)
		}
	})
}

// WrapInObject nests a field value under wrapperKey.
func (u CommonUpgraders) WrapInObject(sourceVersion int, fieldName, wrapperKey string) *BaseEventUpgrader {
	return u.step(sourceVersion, func(data map[string]any) {
		if val, ok := data[fieldName]; ok {
			data[fieldName] = map[string]any{wrapperKey: val}
		}
	})
}

// UnwrapFromObject hoists a nested value back to the field itself.
func (u CommonUpgraders) UnwrapFromObject(sourceVersion int, fieldName, wrapperKey string) *BaseEventUpgrader {
	return u.step(sourceVersion, func(data map[string]any) {
		if obj, ok := data[fieldName].(map[string]any); ok {
			if unwrapped, ok := obj[wrapperKey]; ok {
				data[fieldName] = unwrapped
			}
		}
	})
}

// CopyPayload deep-copies a payload through a decode/encode round trip.
func CopyPayload(payload []byte) ([]byte, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, err
	}
	return json.Marshal(data)
}

// MigrationStats aggregates migration outcomes per event type.
type MigrationStats struct {
	mu    sync.RWMutex
	stats map[string]*EventMigrationStats
}

// EventMigrationStats holds the running totals for one event type.
// MigrationsByVersion keys look like "v1->v2".
type EventMigrationStats struct {
	EventType           string
	TotalMigrated       int64
	TotalFailed         int64
	LastMigratedAt      time.Time
	AverageDurationMs   float64
	MigrationsByVersion map[string]int64
}

// NewMigrationStats creates an empty tracker.
func NewMigrationStats() *MigrationStats {
	return &MigrationStats{stats: map[string]*EventMigrationStats{}}
}

// RecordMigration folds one migration outcome into the totals. The
// average duration only counts successful migrations.
func (s *MigrationStats) RecordMigration(eventType string, fromVersion, toVersion int, durationMs float64, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats[eventType]
	if stats == nil {
		stats = &EventMigrationStats{
			EventType:           eventType,
			MigrationsByVersion: map[string]int64{},
		}
		s.stats[eventType] = stats
	}

	switch {
	case success:
		stats.TotalMigrated++
		stats.LastMigratedAt = time.Now()
		n := float64(stats.TotalMigrated)
		stats.AverageDurationMs = stats.AverageDurationMs*(n-1)/n + durationMs/n
	default:
		stats.TotalFailed++
	}
	stats.MigrationsByVersion[fmt.Sprintf("v%d->v%d", fromVersion, toVersion)]++
}

// GetStats returns a copy of the totals for an event type.
func (s *MigrationStats) GetStats(eventType string) (*EventMigrationStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.stats[eventType]
	if !ok {
		return nil, false
	}

	out := *stats
	out.MigrationsByVersion = make(map[string]int64, len(stats.MigrationsByVersion))
	for k, v := range stats.MigrationsByVersion {
		out.MigrationsByVersion[k] = v
	}
	return &out, true
}
