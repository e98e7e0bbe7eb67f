package handler

import (
	"github.com/gin-gonic/gin"

	stockapp "github.com/paklog/inventory-service/internal/application/stock"
	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// SerialHandler handles serialized unit API endpoints. Writes go through the
// command service; reads go straight to the repository since serial lookups
// have no caching or projection layer.
type SerialHandler struct {
	BaseHandler
	commands *stockapp.CommandService
	serials  stock.SerialNumberRepository
}

// NewSerialHandler creates a new SerialHandler
func NewSerialHandler(commands *stockapp.CommandService, serials stock.SerialNumberRepository) *SerialHandler {
	return &SerialHandler{commands: commands, serials: serials}
}

// Receive registers a serialized unit entering stock.
// POST /serials
func (h *SerialHandler) Receive(c *gin.Context) {
	var req stockapp.ReceiveSerialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	serial, err := h.commands.ReceiveSerial(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, serial)
}

// Allocate reserves a serialized unit for an order.
// POST /serials/allocations
func (h *SerialHandler) Allocate(c *gin.Context) {
	var req stockapp.AllocateSerialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	serial, err := h.commands.AllocateSerial(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, serial)
}

// Ship records a serialized unit leaving the warehouse.
// POST /serials/shipments
func (h *SerialHandler) Ship(c *gin.Context) {
	var req stockapp.ShipSerialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	serial, err := h.commands.ShipSerial(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, serial)
}

// Get returns one serialized unit by its serial number.
// GET /serials/:serial
func (h *SerialHandler) Get(c *gin.Context) {
	serial := c.Param("serial")
	if serial == "" {
		h.BadRequest(c, "Serial number is required")
		return
	}

	sn, err := h.serials.FindBySerial(c.Request.Context(), serial)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stockapp.ToSerialNumberResponse(sn))
}

// ListBySku returns the serialized units of one SKU, optionally narrowed to
// a lifecycle status.
// GET /stocks/:sku/serials
func (h *SerialHandler) ListBySku(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		h.BadRequest(c, "SKU is required")
		return
	}

	var filter stockapp.SerialListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.serials.FindBySku(
		c.Request.Context(),
		sku,
		stock.SerialStatus(filter.Status),
		shared.Filter{Page: filter.Page, PageSize: filter.PageSize},
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, stockapp.ToSerialNumberResponses(result.Items), result.Total, result.Page, result.PageSize)
}
