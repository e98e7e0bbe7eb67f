package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	stockapp "github.com/paklog/inventory-service/internal/application/stock"
)

// AssemblyHandler handles kit build API endpoints
type AssemblyHandler struct {
	BaseHandler
	assemblies *stockapp.AssemblyService
}

// NewAssemblyHandler creates a new AssemblyHandler
func NewAssemblyHandler(assemblies *stockapp.AssemblyService) *AssemblyHandler {
	return &AssemblyHandler{assemblies: assemblies}
}

// Create plans a kit build from its component list.
// POST /assemblies
func (h *AssemblyHandler) Create(c *gin.Context) {
	var req stockapp.CreateAssemblyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.assemblies.CreateAssemblyOrder(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, order)
}

// AllocateComponents reserves component stock for the build.
// POST /assemblies/:id/allocations
func (h *AssemblyHandler) AllocateComponents(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid assembly order ID format")
		return
	}

	order, err := h.assemblies.AllocateComponents(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// Start moves the build to in-progress.
// POST /assemblies/:id/start
func (h *AssemblyHandler) Start(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid assembly order ID format")
		return
	}

	order, err := h.assemblies.StartAssembly(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// Complete consumes the components and receives the finished kits.
// POST /assemblies/:id/complete
func (h *AssemblyHandler) Complete(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid assembly order ID format")
		return
	}

	var req stockapp.CompleteAssemblyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.assemblies.CompleteAssembly(c.Request.Context(), orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// Cancel aborts the build and releases any component reservations.
// POST /assemblies/:id/cancel
func (h *AssemblyHandler) Cancel(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid assembly order ID format")
		return
	}

	order, err := h.assemblies.CancelAssembly(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// Get returns one assembly order by ID.
// GET /assemblies/:id
func (h *AssemblyHandler) Get(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid assembly order ID format")
		return
	}

	order, err := h.assemblies.GetAssemblyOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// List returns a paginated list of assembly orders.
// GET /assemblies
func (h *AssemblyHandler) List(c *gin.Context) {
	var filter stockapp.AssemblyListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.assemblies.ListAssemblyOrders(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}
