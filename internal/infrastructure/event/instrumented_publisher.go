package event

import "context"

// PublishRecorder receives publish outcomes for instrumentation. The
// telemetry business metrics satisfy this interface.
type PublishRecorder interface {
	RecordOutboxPublished(ctx context.Context)
	RecordOutboxPublishFailure(ctx context.Context)
}

// InstrumentedEnvelopePublisher wraps an EnvelopePublisher and counts
// delivered and failed envelopes.
type InstrumentedEnvelopePublisher struct {
	next     EnvelopePublisher
	recorder PublishRecorder
}

// NewInstrumentedEnvelopePublisher decorates the given transport with
// publish counters.
func NewInstrumentedEnvelopePublisher(next EnvelopePublisher, recorder PublishRecorder) *InstrumentedEnvelopePublisher {
	return &InstrumentedEnvelopePublisher{next: next, recorder: recorder}
}

// PublishEnvelope forwards to the wrapped transport and records the outcome
func (p *InstrumentedEnvelopePublisher) PublishEnvelope(ctx context.Context, env *Envelope) error {
	if err := p.next.PublishEnvelope(ctx, env); err != nil {
		p.recorder.RecordOutboxPublishFailure(ctx)
		return err
	}
	p.recorder.RecordOutboxPublished(ctx)
	return nil
}

// Ensure InstrumentedEnvelopePublisher implements EnvelopePublisher
var _ EnvelopePublisher = (*InstrumentedEnvelopePublisher)(nil)
