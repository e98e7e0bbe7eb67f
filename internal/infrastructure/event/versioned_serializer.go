package event

import (
	"encoding/json"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
)

// VersionedSerializer is an event serializer that understands schema
// history: payloads written under an older schema are run through the
// upgrade chain on read, so consumers only ever see current shapes.
type VersionedSerializer struct {
	versionRegistry *VersionRegistry
	logger          *zap.Logger
}

// NewVersionedSerializer creates a serializer with an empty registry
func NewVersionedSerializer(logger *zap.Logger) *VersionedSerializer {
	return &VersionedSerializer{
		versionRegistry: NewVersionRegistry(),
		logger:          logger,
	}
}

// Register registers a first-version event type. Drop-in for callers
// that used the plain EventSerializer.
func (s *VersionedSerializer) Register(eventType string, prototype shared.DomainEvent) {
	s.versionRegistry.RegisterSimpleEvent(eventType, prototype)
}

// RegisterVersioned registers an event type together with its schema
// history and upgrade chain
func (s *VersionedSerializer) RegisterVersioned(
	eventType string,
	currentVersion int,
	versions map[int]shared.DomainEvent,
	upgraders ...EventUpgrader,
) error {
	return s.versionRegistry.RegisterVersionedEvent(eventType, currentVersion, versions, upgraders...)
}

// Serialize encodes an event to JSON. Events past their first schema
// get a schema_version field stamped into the payload so stored rows
// can be upgraded on read; v1 payloads omit it and read back as v1.
func (s *VersionedSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	v := event.SchemaVersion()
	if v <= 1 {
		return data, nil
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to stamp schema version: %w", err)
	}
	m["schema_version"] = v
	return json.Marshal(m)
}

// Deserialize decodes a payload, upgrading it to the current schema
// version first when it was written under an older one
func (s *VersionedSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	config, ok := s.versionRegistry.GetConfig(eventType)
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	return s.decodeAs(config, data, config.CurrentVersion)
}

// DeserializeToVersion decodes a payload as a specific schema version,
// upgrading as far as needed but no further. Downgrades are refused.
func (s *VersionedSerializer) DeserializeToVersion(eventType string, data []byte, targetVersion int) (shared.DomainEvent, error) {
	config, ok := s.versionRegistry.GetConfig(eventType)
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	if from := ExtractVersion(data); from > targetVersion {
		return nil, fmt.Errorf("cannot downgrade event from version %d to %d", from, targetVersion)
	}
	return s.decodeAs(config, data, targetVersion)
}

// decodeAs upgrades the payload to targetVersion and unmarshals it into
// a fresh instance of the prototype registered for that version.
// Payloads already at or past targetVersion decode as-is.
func (s *VersionedSerializer) decodeAs(config *VersionedEventConfig, data []byte, targetVersion int) (shared.DomainEvent, error) {
	from := ExtractVersion(data)
	payload := data
	if from < targetVersion {
		if s.logger != nil {
			s.logger.Debug("upgrading event version",
				zap.String("event_type", config.EventType),
				zap.Int("from_version", from),
				zap.Int("to_version", targetVersion),
			)
		}
		for v := from; v < targetVersion; v++ {
			upgrader, ok := config.Upgraders[v]
			if !ok {
				return nil, fmt.Errorf("missing upgrader for version %d -> %d", v, v+1)
			}
			var err error
			if payload, err = upgrader.Upgrade(payload); err != nil {
				return nil, fmt.Errorf("failed to upgrade event: %w", err)
			}
		}
	}

	prototype, ok := config.Versions[targetVersion]
	if !ok {
		return nil, fmt.Errorf("no event type registered for version %d of %s", targetVersion, config.EventType)
	}

	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	decoded := reflect.New(t).Interface()
	if err := json.Unmarshal(payload, decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	event, ok := decoded.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("deserialized object does not implement DomainEvent")
	}

	// keep the effective version on the event so a re-serialize does
	// not masquerade as an older schema
	if vs, ok := event.(interface{ SetSchemaVersion(int) }); ok {
		vs.SetSchemaVersion(targetVersion)
	}
	return event, nil
}

// UpgradePayloadOnly upgrades a raw payload to the current schema
// without decoding it into a struct, for batch rewrites
func (s *VersionedSerializer) UpgradePayloadOnly(eventType string, data []byte) ([]byte, int, error) {
	return s.versionRegistry.UpgradePayload(eventType, data, ExtractVersion(data))
}

// GetEventVersion reads the schema version of a raw payload
func (s *VersionedSerializer) GetEventVersion(data []byte) int {
	return ExtractVersion(data)
}

// IsRegistered reports whether the event type is known
func (s *VersionedSerializer) IsRegistered(eventType string) bool {
	return s.versionRegistry.IsRegistered(eventType)
}

// RegisteredTypes lists every known event type
func (s *VersionedSerializer) RegisteredTypes() []string {
	return s.versionRegistry.RegisteredTypes()
}

// GetCurrentVersion reports the latest schema version of an event type
func (s *VersionedSerializer) GetCurrentVersion(eventType string) (int, bool) {
	return s.versionRegistry.GetCurrentVersion(eventType)
}

// GetVersionRegistry exposes the underlying registry
func (s *VersionedSerializer) GetVersionRegistry() *VersionRegistry {
	return s.versionRegistry
}
