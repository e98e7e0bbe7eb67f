package event

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/paklog/inventory-service/internal/domain/shared"
)

// CloudEvents 1.0 envelope constants. Every event leaving or entering the
// service is wrapped in this envelope; the type attribute carries the
// service's reverse-DNS namespace with the short event type as its tail.
const (
	EnvelopeSpecVersion = "1.0"
	EnvelopeSource      = "/fulfillment/inventory-service"
	EnvelopeTypePrefix  = "com.paklog.inventory.fulfillment.v1."
	EnvelopeContentType = "application/json"
)

// Envelope is the wire format for published and ingested events
// (CloudEvents 1.0, JSON encoding).
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Time            time.Time       `json:"time"`
	Subject         string          `json:"subject"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// QualifiedType returns the fully qualified envelope type for a short
// event type such as "product-stock.level-changed".
func QualifiedType(eventType string) string {
	return EnvelopeTypePrefix + eventType
}

// NewEnvelopeFromOutbox builds the canonical envelope for an outbox row.
// The stored payload becomes the data attribute untouched, so the wire
// field names are exactly what the domain event serialized.
func NewEnvelopeFromOutbox(row *shared.OutboxEvent) *Envelope {
	return &Envelope{
		SpecVersion:     EnvelopeSpecVersion,
		ID:              row.EventID.String(),
		Type:            QualifiedType(row.EventType),
		Source:          EnvelopeSource,
		Time:            row.OccurredAt.UTC(),
		Subject:         row.AggregateID,
		DataContentType: EnvelopeContentType,
		Data:            json.RawMessage(row.Payload),
	}
}

// ParseEnvelope decodes an incoming envelope and checks the attributes the
// ingest path depends on. Violations are schema validation failures, which
// the caller dead-letters rather than retries.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, shared.NewDomainError(shared.CodeSchemaValidation, "malformed event envelope: "+err.Error())
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate checks the required CloudEvents attributes
func (e *Envelope) Validate() error {
	switch {
	case e.SpecVersion != EnvelopeSpecVersion:
		return shared.NewDomainError(shared.CodeSchemaValidation, "unsupported specversion: "+e.SpecVersion)
	case e.ID == "":
		return shared.NewDomainError(shared.CodeSchemaValidation, "envelope id is required")
	case e.Type == "":
		return shared.NewDomainError(shared.CodeSchemaValidation, "envelope type is required")
	case len(e.Data) == 0, bytes.Equal(e.Data, []byte("null")):
		// a JSON "data": null round-trips as a non-empty RawMessage
		return shared.NewDomainError(shared.CodeSchemaValidation, "envelope data is required")
	}
	return nil
}

// ShortType strips the service namespace from the type attribute. Types from
// other producers are returned whole; the ingest dispatcher matches their
// well-known suffixes instead.
func (e *Envelope) ShortType() string {
	return strings.TrimPrefix(e.Type, EnvelopeTypePrefix)
}

// DecodeData unmarshals the data attribute into v
func (e *Envelope) DecodeData(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return shared.NewDomainError(shared.CodeSchemaValidation, "malformed event payload: "+err.Error())
	}
	return nil
}

// Encode renders the envelope as JSON
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
