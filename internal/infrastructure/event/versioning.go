package event

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/paklog/inventory-service/internal/domain/shared"
)

// EventUpgrader rewrites a payload from one schema version to the next.
// Upgraders are single-step; the registry chains them when a stored
// event is several versions behind.
type EventUpgrader interface {
	// SourceVersion is the version the upgrader reads
	SourceVersion() int
	// TargetVersion is the version the upgrader writes
	TargetVersion() int
	// Upgrade rewrites the raw JSON payload
	Upgrade(payload []byte) ([]byte, error)
}

// VersionedEventConfig describes one event type's schema history
type VersionedEventConfig struct {
	EventType      string
	CurrentVersion int
	Upgraders      map[int]EventUpgrader      // keyed by source version
	Versions       map[int]shared.DomainEvent // prototype per version
}

// VersionRegistry tracks the schema version and upgrade chain of every
// event type the service stores or consumes.
type VersionRegistry struct {
	mu      sync.RWMutex
	configs map[string]*VersionedEventConfig
}

// NewVersionRegistry creates an empty registry
func NewVersionRegistry() *VersionRegistry {
	return &VersionRegistry{
		configs: make(map[string]*VersionedEventConfig),
	}
}

// RegisterVersionedEvent registers an event type with its full schema
// history. The upgrade chain must be sequential and gapless from v1 to
// the current version, and the versions map must carry a prototype for
// the current version.
func (r *VersionRegistry) RegisterVersionedEvent(
	eventType string,
	currentVersion int,
	versions map[int]shared.DomainEvent,
	upgraders ...EventUpgrader,
) error {
	bySource := make(map[int]EventUpgrader, len(upgraders))
	for _, u := range upgraders {
		if u.TargetVersion() != u.SourceVersion()+1 {
			return fmt.Errorf("upgrader must be sequential: got %d -> %d", u.SourceVersion(), u.TargetVersion())
		}
		bySource[u.SourceVersion()] = u
	}
	for v := 1; v < currentVersion; v++ {
		if _, ok := bySource[v]; !ok {
			return fmt.Errorf("missing upgrader for version %d -> %d for event type %s", v, v+1, eventType)
		}
	}
	if _, ok := versions[currentVersion]; !ok {
		return fmt.Errorf("versions map must include current version %d for event type %s", currentVersion, eventType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[eventType] = &VersionedEventConfig{
		EventType:      eventType,
		CurrentVersion: currentVersion,
		Upgraders:      bySource,
		Versions:       versions,
	}
	return nil
}

// RegisterSimpleEvent registers an event type that is still on its first
// schema version and has no upgrade history.
func (r *VersionRegistry) RegisterSimpleEvent(eventType string, prototype shared.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[eventType] = &VersionedEventConfig{
		EventType:      eventType,
		CurrentVersion: 1,
		Upgraders:      make(map[int]EventUpgrader),
		Versions:       map[int]shared.DomainEvent{1: prototype},
	}
}

// GetConfig looks up an event type's schema history
func (r *VersionRegistry) GetConfig(eventType string) (*VersionedEventConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.configs[eventType]
	return config, ok
}

// GetCurrentVersion reports the latest schema version of an event type
func (r *VersionRegistry) GetCurrentVersion(eventType string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if config, ok := r.configs[eventType]; ok {
		return config.CurrentVersion, true
	}
	return 0, false
}

// IsRegistered reports whether the event type is known
func (r *VersionRegistry) IsRegistered(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.configs[eventType]
	return ok
}

// RegisteredTypes lists every known event type
func (r *VersionRegistry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.configs))
	for t := range r.configs {
		types = append(types, t)
	}
	return types
}

// UpgradePayload walks the upgrade chain from the payload's version to
// the current one and returns the rewritten payload with the version it
// landed on. Payloads already at or past current pass through untouched.
func (r *VersionRegistry) UpgradePayload(eventType string, payload []byte, fromVersion int) ([]byte, int, error) {
	config, ok := r.GetConfig(eventType)
	if !ok {
		return nil, 0, fmt.Errorf("unknown event type: %s", eventType)
	}
	if fromVersion >= config.CurrentVersion {
		return payload, config.CurrentVersion, nil
	}

	upgraded := payload
	for v := fromVersion; v < config.CurrentVersion; v++ {
		upgrader, ok := config.Upgraders[v]
		if !ok {
			return nil, 0, fmt.Errorf("missing upgrader for version %d -> %d for event type %s", v, v+1, eventType)
		}
		var err error
		if upgraded, err = upgrader.Upgrade(upgraded); err != nil {
			return nil, 0, fmt.Errorf("failed to upgrade from v%d to v%d: %w", v, v+1, err)
		}
	}
	return upgraded, config.CurrentVersion, nil
}

// ExtractVersion reads the schema_version field from a raw payload.
// Payloads without one predate versioning and count as version 1.
func ExtractVersion(payload []byte) int {
	var header struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(payload, &header); err != nil || header.SchemaVersion == 0 {
		return 1
	}
	return header.SchemaVersion
}

// BaseEventUpgrader implements EventUpgrader over a map transform: the
// payload is decoded to a map, rewritten, stamped with the target
// version, and encoded again.
type BaseEventUpgrader struct {
	sourceVersion int
	targetVersion int
	transform     func(data map[string]any) (map[string]any, error)
}

var _ EventUpgrader = (*BaseEventUpgrader)(nil)

// NewBaseEventUpgrader creates an upgrader from a map transform
func NewBaseEventUpgrader(source, target int, transform func(data map[string]any) (map[string]any, error)) *BaseEventUpgrader {
	return &BaseEventUpgrader{
		sourceVersion: source,
		targetVersion: target,
		transform:     transform,
	}
}

// SourceVersion is the version the upgrader reads
func (u *BaseEventUpgrader) SourceVersion() int { return u.sourceVersion }

// TargetVersion is the version the upgrader writes
func (u *BaseEventUpgrader) TargetVersion() int { return u.targetVersion }

// Upgrade applies the transform and stamps the new schema version
func (u *BaseEventUpgrader) Upgrade(payload []byte) ([]byte, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	transformed, err := u.transform(data)
	if err != nil {
		return nil, fmt.Errorf("transform failed: %w", err)
	}
	transformed["schema_version"] = u.targetVersion

	return json.Marshal(transformed)
}
