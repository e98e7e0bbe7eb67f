package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	stockapp "github.com/paklog/inventory-service/internal/application/stock"
)

// SnapshotHandler handles snapshot and time-travel API endpoints
type SnapshotHandler struct {
	BaseHandler
	snapshots *stockapp.SnapshotService
}

// NewSnapshotHandler creates a new SnapshotHandler
func NewSnapshotHandler(snapshots *stockapp.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

// Create captures a SKU's state on demand.
// POST /snapshots
func (h *SnapshotHandler) Create(c *gin.Context) {
	var req stockapp.CreateSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	snapshot, err := h.snapshots.CreateSnapshot(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, snapshot)
}

// Get returns one snapshot by ID.
// GET /snapshots/:id
func (h *SnapshotHandler) Get(c *gin.Context) {
	snapshotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid snapshot ID format")
		return
	}

	snapshot, err := h.snapshots.GetSnapshot(c.Request.Context(), snapshotID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snapshot)
}

// ListBySku pages through one SKU's snapshots, newest first.
// GET /stocks/:sku/snapshots
func (h *SnapshotHandler) ListBySku(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		h.BadRequest(c, "SKU is required")
		return
	}

	var filter stockapp.SnapshotListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.snapshots.ListSnapshots(c.Request.Context(), sku, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// ReplayAt reconstructs a SKU's state at a past instant by replaying the
// event stream on top of the nearest earlier snapshot.
// GET /stocks/:sku/at
func (h *SnapshotHandler) ReplayAt(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		h.BadRequest(c, "SKU is required")
		return
	}

	var query stockapp.PointInTimeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.snapshots.ReplayAt(c.Request.Context(), sku, query.At)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
