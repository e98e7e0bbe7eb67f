package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	stockapp "github.com/paklog/inventory-service/internal/application/stock"
)

// EventsHandler accepts platform event envelopes over HTTP. The ingest
// service deduplicates by envelope id and dead-letters rejections, so a 202
// only means the envelope was durably handled, not that a command ran.
type EventsHandler struct {
	BaseHandler
	ingest *stockapp.IngestService
}

// NewEventsHandler creates a new EventsHandler
func NewEventsHandler(ingest *stockapp.IngestService) *EventsHandler {
	return &EventsHandler{ingest: ingest}
}

// Ingest consumes one event envelope.
// POST /events
func (h *EventsHandler) Ingest(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if len(raw) == 0 {
		h.BadRequest(c, "Request body is required")
		return
	}

	if err := h.ingest.HandleEnvelope(c.Request.Context(), raw); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, gin.H{
		"status":      "accepted",
		"received_at": time.Now().UTC(),
	})
}
