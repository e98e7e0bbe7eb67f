package handler

import (
	"github.com/gin-gonic/gin"

	stockapp "github.com/paklog/inventory-service/internal/application/stock"
)

// StockHandler handles product stock API endpoints: the command surface that
// mutates a SKU's quantities and the read surface behind the level cache.
type StockHandler struct {
	BaseHandler
	commands *stockapp.CommandService
	queries  *stockapp.QueryService
	bulk     *stockapp.BulkAllocator
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(commands *stockapp.CommandService, queries *stockapp.QueryService, bulk *stockapp.BulkAllocator) *StockHandler {
	return &StockHandler{
		commands: commands,
		queries:  queries,
		bulk:     bulk,
	}
}

// Create starts tracking a SKU, optionally with an opening quantity.
// POST /stocks
func (h *StockHandler) Create(c *gin.Context) {
	var req stockapp.CreateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.CreateProductStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, view)
}

// Get returns the cached stock level for one SKU.
// GET /stocks/:sku
func (h *StockHandler) Get(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		h.BadRequest(c, "SKU is required")
		return
	}

	view, err := h.queries.GetStockLevel(c.Request.Context(), sku)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// GetDetail returns the full denormalized state of one SKU, holds and lot
// batches included.
// GET /stocks/:sku/detail
func (h *StockHandler) GetDetail(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		h.BadRequest(c, "SKU is required")
		return
	}

	detail, err := h.queries.GetStockDetail(c.Request.Context(), sku)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, detail)
}

// List returns a paginated list of stock levels.
// GET /stocks
func (h *StockHandler) List(c *gin.Context) {
	var filter stockapp.StockListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.queries.ListStockLevels(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Adjust applies a signed manual adjustment.
// POST /stocks/adjustments
func (h *StockHandler) Adjust(c *gin.Context) {
	var req stockapp.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.AdjustStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// Allocate reserves stock for an order.
// POST /stocks/allocations
func (h *StockHandler) Allocate(c *gin.Context) {
	var req stockapp.AllocateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.Allocate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// AllocateBulk runs a batch of allocations and reports per-request outcomes.
// Partial failure is normal, so the batch always answers 200.
// POST /stocks/allocations/bulk
func (h *StockHandler) AllocateBulk(c *gin.Context) {
	var req stockapp.BulkAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result := h.bulk.AllocateBulk(c.Request.Context(), req)
	h.Success(c, result)
}

// Deallocate releases a reservation back to available.
// POST /stocks/deallocations
func (h *StockHandler) Deallocate(c *gin.Context) {
	var req stockapp.DeallocateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.Deallocate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// Reserve accepts a reservation for asynchronous processing and answers 202
// before the allocation has run.
// POST /stocks/reservations
func (h *StockHandler) Reserve(c *gin.Context) {
	var req stockapp.AllocateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ack := h.commands.CreateReservation(c.Request.Context(), req)
	h.Accepted(c, ack)
}

// Receive books inbound stock, optionally into a lot batch or a non-sellable
// status bucket.
// POST /stocks/receipts
func (h *StockHandler) Receive(c *gin.Context) {
	var req stockapp.ReceiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.ReceiveStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// Pick records a confirmed warehouse pick: the allocation and the on-hand
// quantity shrink together.
// POST /stocks/picks
func (h *StockHandler) Pick(c *gin.Context) {
	var req stockapp.PickStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.ProcessItemPicked(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// ChangeStatus moves quantity between disposition buckets.
// POST /stocks/status-changes
func (h *StockHandler) ChangeStatus(c *gin.Context) {
	var req stockapp.ChangeStockStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.ChangeStockStatus(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// PlaceHold places an inventory hold on a SKU.
// POST /stocks/holds
func (h *StockHandler) PlaceHold(c *gin.Context) {
	var req stockapp.PlaceHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	hold, err := h.commands.PlaceHold(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, hold)
}

// ReleaseHold releases an inventory hold.
// POST /stocks/holds/release
func (h *StockHandler) ReleaseHold(c *gin.Context) {
	var req stockapp.ReleaseHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.ReleaseHold(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// AllocateFromLot reserves stock out of a specific lot batch.
// POST /stocks/lots/allocations
func (h *StockHandler) AllocateFromLot(c *gin.Context) {
	var req stockapp.AllocateFromLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.AllocateFromLot(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// ChangeLotStatus changes a lot batch's disposition.
// POST /stocks/lots/status-changes
func (h *StockHandler) ChangeLotStatus(c *gin.Context) {
	var req stockapp.ChangeLotStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.ChangeLotStatus(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// InitializeValuation starts monetary tracking for a SKU.
// POST /stocks/valuations
func (h *StockHandler) InitializeValuation(c *gin.Context) {
	var req stockapp.InitializeValuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.InitializeValuation(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, view)
}

// Revalue applies a standard-cost update or correction.
// POST /stocks/valuations/revaluations
func (h *StockHandler) Revalue(c *gin.Context) {
	var req stockapp.RevalueStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.RevalueStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// Reclassify assigns an ABC class to a SKU.
// POST /stocks/classifications
func (h *StockHandler) Reclassify(c *gin.Context) {
	var req stockapp.ReclassifyStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	view, err := h.commands.ReclassifyStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, view)
}

// GetLedger returns the paginated audit trail.
// GET /ledger
func (h *StockHandler) GetLedger(c *gin.Context) {
	var filter stockapp.LedgerHistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.queries.GetLedgerHistory(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetHealthMetrics returns the inventory health report: turnover, dead stock
// and out-of-stock counts over the requested window.
// GET /inventory-health
func (h *StockHandler) GetHealthMetrics(c *gin.Context) {
	var query stockapp.HealthMetricsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	metrics, err := h.queries.GetHealthMetrics(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, metrics)
}
