package stock

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
	"github.com/paklog/inventory-service/internal/infrastructure/event"
	"github.com/paklog/inventory-service/internal/infrastructure/telemetry"
)

// Short types of the platform events this service consumes. Producers wrap
// them in their own reverse-DNS namespaces, so matching runs on the suffix.
const (
	ingestTypeItemPicked          = "item.picked"
	ingestTypeStockAdded          = "stock-added-to-location"
	ingestTypeAllocationRequested = "inventory.allocation.requested"
	ingestTypeQualityInspection   = "quality-inspection.completed"
	ingestTypeDamageReported      = "damage.reported"
)

// DefaultIngestTTL is how long a processed event id stays marked. It doubles
// as the retry cooldown: a failed event's mark must lapse before a
// redelivery gets through.
const DefaultIngestTTL = 24 * time.Hour

var ingestTypes = []string{
	ingestTypeItemPicked,
	ingestTypeStockAdded,
	ingestTypeAllocationRequested,
	ingestTypeQualityInspection,
	ingestTypeDamageReported,
}

// DeadLetterSink receives events the ingest path permanently gives up on:
// malformed envelopes, invalid payloads and business rejections that no
// redelivery can fix.
type DeadLetterSink interface {
	Send(ctx context.Context, envelope []byte, reason string) error
}

// LoggingDeadLetterSink records dead-lettered events in the service log. A
// broker-backed queue can replace it without touching the ingest flow.
type LoggingDeadLetterSink struct {
	logger *zap.Logger
}

// NewLoggingDeadLetterSink creates a new LoggingDeadLetterSink
func NewLoggingDeadLetterSink(logger *zap.Logger) *LoggingDeadLetterSink {
	return &LoggingDeadLetterSink{logger: logger}
}

// Send logs the envelope together with the reason it was given up on
func (s *LoggingDeadLetterSink) Send(ctx context.Context, envelope []byte, reason string) error {
	s.logger.Error("event dead-lettered",
		zap.String("reason", reason),
		zap.ByteString("envelope", envelope))
	return nil
}

// IngestService consumes platform events and turns them into commands.
// Delivery is at-least-once, so every event is deduplicated by its envelope
// id before it runs. Rejections are dead-lettered and acked; infrastructure
// failures are returned so the broker redelivers.
type IngestService struct {
	commands        *CommandService
	idempotency     shared.IdempotencyStore
	idempotencyTTL  time.Duration
	deadLetters     DeadLetterSink
	validate        *validator.Validate
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewIngestService creates a new IngestService. A nil deadLetters falls back
// to the logging sink.
func NewIngestService(
	commands *CommandService,
	idempotency shared.IdempotencyStore,
	idempotencyTTL time.Duration,
	deadLetters DeadLetterSink,
	logger *zap.Logger,
) *IngestService {
	if idempotencyTTL <= 0 {
		idempotencyTTL = DefaultIngestTTL
	}
	if deadLetters == nil {
		deadLetters = NewLoggingDeadLetterSink(logger)
	}
	return &IngestService{
		commands:       commands,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		deadLetters:    deadLetters,
		validate:       validator.New(),
		logger:         logger,
	}
}

// SetBusinessMetrics attaches the ingest outcome metrics
func (s *IngestService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// HandleEnvelope processes one raw consumed event. A nil return acks the
// delivery; an error asks the broker to redeliver.
func (s *IngestService) HandleEnvelope(ctx context.Context, raw []byte) error {
	env, err := event.ParseEnvelope(raw)
	if err != nil {
		s.record(ctx, "malformed", telemetry.IngestResultRejected)
		return s.deadLetter(ctx, raw, err.Error())
	}

	shortType := matchIngestType(env.Type)
	if shortType == "" {
		s.logger.Debug("ignoring unrecognized event type",
			zap.String("type", env.Type),
			zap.String("event_id", env.ID))
		return nil
	}

	isNew, err := s.idempotency.MarkProcessed(ctx, env.ID, s.idempotencyTTL)
	if err != nil {
		// Better to risk a duplicate command than to drop the event.
		s.logger.Warn("idempotency check failed, processing anyway",
			zap.String("event_id", env.ID),
			zap.Error(err))
	} else if !isNew {
		s.record(ctx, shortType, telemetry.IngestResultDuplicate)
		s.logger.Debug("duplicate event dropped",
			zap.String("event_id", env.ID),
			zap.String("type", env.Type))
		return nil
	}

	err = s.dispatch(ctx, shortType, env)
	switch {
	case err == nil:
		s.record(ctx, shortType, telemetry.IngestResultProcessed)
		return nil
	case commandResult(err) == telemetry.CommandResultRejected:
		s.record(ctx, shortType, telemetry.IngestResultRejected)
		s.logger.Warn("consumed event rejected",
			zap.String("event_id", env.ID),
			zap.String("type", env.Type),
			zap.Error(err))
		return s.deadLetter(ctx, raw, err.Error())
	default:
		s.record(ctx, shortType, telemetry.IngestResultError)
		return err
	}
}

// dispatch decodes the payload for the matched type and runs its command
func (s *IngestService) dispatch(ctx context.Context, shortType string, env *event.Envelope) error {
	switch shortType {
	case ingestTypeItemPicked:
		var p itemPickedPayload
		if err := s.decode(env, &p); err != nil {
			return err
		}
		_, err := s.commands.ProcessItemPicked(ctx, PickStockRequest{
			Sku:      p.Sku,
			Quantity: p.Quantity,
			OrderID:  p.OrderID,
		})
		return err

	case ingestTypeStockAdded:
		var p stockAddedPayload
		if err := s.decode(env, &p); err != nil {
			return err
		}
		_, err := s.commands.ReceiveStock(ctx, ReceiveStockRequest{
			Sku:             p.Sku,
			Quantity:        p.Quantity,
			ReceiptID:       p.ReceiptID,
			LotNumber:       p.LotNumber,
			ManufactureDate: p.ManufactureDate,
			ExpiryDate:      p.ExpiryDate,
		})
		return err

	case ingestTypeAllocationRequested:
		var p allocationRequestedPayload
		if err := s.decode(env, &p); err != nil {
			return err
		}
		_, err := s.commands.Allocate(ctx, AllocateStockRequest{
			Sku:      p.Sku,
			Quantity: p.Quantity,
			OrderID:  p.OrderID,
		})
		return err

	case ingestTypeQualityInspection:
		var p qualityInspectionPayload
		if err := s.decode(env, &p); err != nil {
			return err
		}
		toStatus := stock.StockStatusAvailable
		reason := "quality inspection passed"
		if !*p.Passed {
			toStatus = stock.StockStatusDamaged
			reason = "quality inspection failed"
		}
		if p.InspectionID != "" {
			reason += ": " + p.InspectionID
		}
		_, err := s.commands.ChangeStockStatus(ctx, ChangeStockStatusRequest{
			Sku:        p.Sku,
			FromStatus: string(stock.StockStatusQuarantine),
			ToStatus:   string(toStatus),
			Quantity:   p.Quantity,
			Reason:     reason,
			LotNumber:  p.LotNumber,
		})
		return err

	case ingestTypeDamageReported:
		var p damageReportedPayload
		if err := s.decode(env, &p); err != nil {
			return err
		}
		reason := p.Reason
		if reason == "" {
			reason = "damage reported"
		}
		_, err := s.commands.ChangeStockStatus(ctx, ChangeStockStatusRequest{
			Sku:        p.Sku,
			FromStatus: string(stock.StockStatusAvailable),
			ToStatus:   string(stock.StockStatusDamaged),
			Quantity:   p.Quantity,
			Reason:     reason,
		})
		return err
	}
	return shared.NewDomainError(shared.CodeSchemaValidation, "no handler for event type: "+shortType)
}

// decode unmarshals and validates the payload; both failure modes are
// schema violations the caller dead-letters.
func (s *IngestService) decode(env *event.Envelope, v interface{}) error {
	if err := env.DecodeData(v); err != nil {
		return err
	}
	if err := s.validate.Struct(v); err != nil {
		return shared.NewDomainError(shared.CodeSchemaValidation, "invalid event payload: "+err.Error())
	}
	return nil
}

func (s *IngestService) deadLetter(ctx context.Context, raw []byte, reason string) error {
	if err := s.deadLetters.Send(ctx, raw, reason); err != nil {
		s.logger.Error("dead letter write failed",
			zap.String("reason", reason),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *IngestService) record(ctx context.Context, eventType string, result telemetry.IngestResult) {
	if s.businessMetrics != nil {
		s.businessMetrics.RecordEventIngested(ctx, eventType, result)
	}
}

// matchIngestType maps a fully qualified type attribute onto the short type
// it ends with, empty when the event is not ours to handle.
func matchIngestType(fullType string) string {
	for _, t := range ingestTypes {
		if fullType == t || strings.HasSuffix(fullType, "."+t) {
			return t
		}
	}
	return ""
}

// Payloads of the consumed platform events. Field names follow the
// camelCase convention of the cross-service catalog; unknown fields are
// ignored on decode.

type itemPickedPayload struct {
	Sku      string `json:"sku" validate:"required,max=64"`
	Quantity int64  `json:"quantity" validate:"required,min=1"`
	OrderID  string `json:"orderId" validate:"required,max=64"`
}

type stockAddedPayload struct {
	Sku             string     `json:"sku" validate:"required,max=64"`
	Quantity        int64      `json:"quantity" validate:"required,min=1"`
	ReceiptID       string     `json:"receiptId" validate:"omitempty,max=64"`
	LotNumber       string     `json:"lotNumber" validate:"omitempty,max=64"`
	ManufactureDate *time.Time `json:"manufactureDate"`
	ExpiryDate      *time.Time `json:"expiryDate"`
}

type allocationRequestedPayload struct {
	Sku      string `json:"sku" validate:"required,max=64"`
	Quantity int64  `json:"quantity" validate:"required,min=1"`
	OrderID  string `json:"orderId" validate:"required,max=64"`
}

// Passed is a pointer so the validator can tell a missing field from an
// explicit false.
type qualityInspectionPayload struct {
	Sku          string `json:"sku" validate:"required,max=64"`
	Quantity     int64  `json:"quantity" validate:"required,min=1"`
	Passed       *bool  `json:"passed" validate:"required"`
	InspectionID string `json:"inspectionId" validate:"omitempty,max=64"`
	LotNumber    string `json:"lotNumber" validate:"omitempty,max=64"`
}

type damageReportedPayload struct {
	Sku        string `json:"sku" validate:"required,max=64"`
	Quantity   int64  `json:"quantity" validate:"required,min=1"`
	Reason     string `json:"reason" validate:"omitempty,max=255"`
	ReportedBy string `json:"reportedBy" validate:"omitempty,max=64"`
}
