package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	stockapp "github.com/paklog/inventory-service/internal/application/stock"
)

// TransferHandler handles stock transfer API endpoints
type TransferHandler struct {
	BaseHandler
	transfers *stockapp.TransferService
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(transfers *stockapp.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// Initiate starts a transfer: the quantity leaves the source location and
// goes in transit.
// POST /transfers
func (h *TransferHandler) Initiate(c *gin.Context) {
	var req stockapp.InitiateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	transfer, err := h.transfers.InitiateTransfer(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, transfer)
}

// MarkInTransit records that the goods physically left the source.
// POST /transfers/:id/in-transit
func (h *TransferHandler) MarkInTransit(c *gin.Context) {
	transferID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transfer ID format")
		return
	}

	transfer, err := h.transfers.MarkInTransit(c.Request.Context(), transferID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, transfer)
}

// Complete records receipt at the destination. A received quantity below the
// shipped one books the difference as shrinkage.
// POST /transfers/:id/complete
func (h *TransferHandler) Complete(c *gin.Context) {
	transferID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transfer ID format")
		return
	}

	var req stockapp.CompleteTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	transfer, err := h.transfers.CompleteTransfer(c.Request.Context(), transferID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, transfer)
}

// Cancel aborts a transfer and returns the quantity to the source.
// POST /transfers/:id/cancel
func (h *TransferHandler) Cancel(c *gin.Context) {
	transferID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transfer ID format")
		return
	}

	var req stockapp.CancelTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	transfer, err := h.transfers.CancelTransfer(c.Request.Context(), transferID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, transfer)
}

// Get returns one transfer by ID.
// GET /transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	transferID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transfer ID format")
		return
	}

	transfer, err := h.transfers.GetTransfer(c.Request.Context(), transferID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, transfer)
}

// List returns a paginated list of transfers.
// GET /transfers
func (h *TransferHandler) List(c *gin.Context) {
	var filter stockapp.TransferListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.transfers.ListTransfers(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}
