package stock

import (
	"time"

	"github.com/google/uuid"

	"github.com/paklog/inventory-service/internal/domain/stock"
)

// CreateStockRequest represents a request to start tracking a SKU
type CreateStockRequest struct {
	Sku             string `json:"sku" binding:"required,max=64"`
	InitialQuantity int64  `json:"initial_quantity" binding:"min=0"`
}

// AdjustStockRequest represents a manual quantity adjustment
type AdjustStockRequest struct {
	Sku            string `json:"sku" binding:"required,max=64"`
	QuantityChange int64  `json:"quantity_change" binding:"required"`
	ReasonCode     string `json:"reason_code" binding:"required,max=32"`
	Comment        string `json:"comment" binding:"omitempty,max=128"`
	OperatorID     string `json:"operator_id" binding:"omitempty,max=64"`
}

// AllocateStockRequest represents a request to reserve stock for an order
type AllocateStockRequest struct {
	Sku      string `json:"sku" binding:"required,max=64"`
	Quantity int64  `json:"quantity" binding:"required,min=1"`
	OrderID  string `json:"order_id" binding:"required,max=64"`
}

// DeallocateStockRequest represents a request to release a reservation
type DeallocateStockRequest struct {
	Sku      string `json:"sku" binding:"required,max=64"`
	Quantity int64  `json:"quantity" binding:"required,min=1"`
	OrderID  string `json:"order_id" binding:"required,max=64"`
}

// PickStockRequest represents a confirmed warehouse pick
type PickStockRequest struct {
	Sku      string `json:"sku" binding:"required,max=64"`
	Quantity int64  `json:"quantity" binding:"required,min=1"`
	OrderID  string `json:"order_id" binding:"required,max=64"`
}

// ReceiveStockRequest represents inbound stock. Optional fields select the
// receipt flavor: a lot number books the quantity into a lot batch, a unit
// cost feeds the valuation, and a status receives into a non-sellable bucket.
type ReceiveStockRequest struct {
	Sku             string     `json:"sku" binding:"required,max=64"`
	Quantity        int64      `json:"quantity" binding:"required,min=1"`
	ReceiptID       string     `json:"receipt_id" binding:"omitempty,max=64"`
	Status          string     `json:"status" binding:"omitempty,max=16"`
	LotNumber       string     `json:"lot_number" binding:"omitempty,max=64"`
	ManufactureDate *time.Time `json:"manufacture_date"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	UnitCost        string     `json:"unit_cost" binding:"omitempty"`
	Currency        string     `json:"currency" binding:"omitempty,len=3"`
}

// ChangeStockStatusRequest moves quantity between disposition buckets
type ChangeStockStatusRequest struct {
	Sku        string `json:"sku" binding:"required,max=64"`
	FromStatus string `json:"from_status" binding:"required,max=16"`
	ToStatus   string `json:"to_status" binding:"required,max=16"`
	Quantity   int64  `json:"quantity" binding:"required,min=1"`
	Reason     string `json:"reason" binding:"required,max=255"`
	LotNumber  string `json:"lot_number" binding:"omitempty,max=64"`
}

// PlaceHoldRequest represents a request to place an inventory hold
type PlaceHoldRequest struct {
	Sku       string     `json:"sku" binding:"required,max=64"`
	HoldType  string     `json:"hold_type" binding:"required,oneof=QUALITY LEGAL ADMINISTRATIVE RECALL CREDIT"`
	Quantity  int64      `json:"quantity" binding:"required,min=1"`
	Reason    string     `json:"reason" binding:"required,max=255"`
	PlacedBy  string     `json:"placed_by" binding:"required,max=64"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// ReleaseHoldRequest represents a request to release an inventory hold
type ReleaseHoldRequest struct {
	Sku        string `json:"sku" binding:"required,max=64"`
	HoldID     string `json:"hold_id" binding:"required,max=64"`
	ReleasedBy string `json:"released_by" binding:"required,max=64"`
}

// AllocateFromLotRequest reserves stock out of a specific lot batch
type AllocateFromLotRequest struct {
	Sku       string `json:"sku" binding:"required,max=64"`
	LotNumber string `json:"lot_number" binding:"required,max=64"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
	OrderID   string `json:"order_id" binding:"required,max=64"`
}

// ChangeLotStatusRequest represents a lot disposition change
type ChangeLotStatusRequest struct {
	Sku       string `json:"sku" binding:"required,max=64"`
	LotNumber string `json:"lot_number" binding:"required,max=64"`
	Status    string `json:"status" binding:"required,oneof=ACTIVE QUARANTINE EXPIRED RECALLED CONSUMED"`
	Reason    string `json:"reason" binding:"required,max=255"`
}

// InitializeValuationRequest starts monetary tracking for a SKU
type InitializeValuationRequest struct {
	Sku      string `json:"sku" binding:"required,max=64"`
	Method   string `json:"method" binding:"required,oneof=FIFO LIFO WEIGHTED_AVERAGE STANDARD_COST"`
	UnitCost string `json:"unit_cost" binding:"required"`
	Currency string `json:"currency" binding:"required,len=3"`
}

// RevalueStockRequest represents a standard-cost update or correction
type RevalueStockRequest struct {
	Sku      string `json:"sku" binding:"required,max=64"`
	UnitCost string `json:"unit_cost" binding:"required"`
	Currency string `json:"currency" binding:"required,len=3"`
	Reason   string `json:"reason" binding:"required,max=255"`
}

// ReclassifyStockRequest assigns an ABC class to a SKU
type ReclassifyStockRequest struct {
	Sku              string     `json:"sku" binding:"required,max=64"`
	Class            string     `json:"class" binding:"required,oneof=A B C"`
	Criteria         string     `json:"criteria" binding:"required,oneof=VALUE_BASED VELOCITY_BASED COMBINED"`
	AnnualUsageValue string     `json:"annual_usage_value" binding:"omitempty"`
	ValidUntil       *time.Time `json:"valid_until"`
	Reason           string     `json:"reason" binding:"required,max=255"`
}

// ReceiveSerialRequest registers a serialized unit entering stock
type ReceiveSerialRequest struct {
	SerialNumber string `json:"serial_number" binding:"required,max=128"`
	Sku          string `json:"sku" binding:"required,max=64"`
}

// AllocateSerialRequest reserves a serialized unit for an order
type AllocateSerialRequest struct {
	SerialNumber string `json:"serial_number" binding:"required,max=128"`
	OrderID      string `json:"order_id" binding:"required,max=64"`
}

// ShipSerialRequest records a serialized unit leaving the warehouse
type ShipSerialRequest struct {
	SerialNumber string `json:"serial_number" binding:"required,max=128"`
}

// AllocationRequest is one allocation within a bulk call
type AllocationRequest struct {
	Sku      string `json:"sku" binding:"required,max=64"`
	Quantity int64  `json:"quantity" binding:"required,min=1"`
	OrderID  string `json:"order_id" binding:"required,max=64"`
}

// BulkAllocationRequest represents a batch of allocations
type BulkAllocationRequest struct {
	Allocations []AllocationRequest `json:"allocations" binding:"required,min=1,max=500,dive"`
}

// AllocationOutcome is the per-request result of a bulk allocation.
// Outcomes keep the order of the incoming requests.
type AllocationOutcome struct {
	Sku               string `json:"sku"`
	OrderID           string `json:"order_id"`
	Success           bool   `json:"success"`
	AllocatedQuantity int64  `json:"allocated_quantity,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// BulkAllocationResult summarizes a bulk allocation run
type BulkAllocationResult struct {
	SuccessCount int                 `json:"success_count"`
	FailureCount int                 `json:"failure_count"`
	ProcessingMs int64               `json:"processing_ms"`
	Results      []AllocationOutcome `json:"results"`
}

// ReservationAcceptedResponse acknowledges an async reservation request
type ReservationAcceptedResponse struct {
	Sku        string    `json:"sku"`
	OrderID    string    `json:"order_id"`
	Quantity   int64     `json:"quantity"`
	Status     string    `json:"status"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// LocationRequest names a storage position
type LocationRequest struct {
	Warehouse string `json:"warehouse" binding:"required,max=64"`
	Zone      string `json:"zone" binding:"omitempty,max=64"`
	Aisle     string `json:"aisle" binding:"omitempty,max=64"`
	Shelf     string `json:"shelf" binding:"omitempty,max=64"`
	Bin       string `json:"bin" binding:"omitempty,max=64"`
}

// ToLocation converts the request into the domain value
func (r LocationRequest) ToLocation() (stock.Location, error) {
	return stock.NewLocation(r.Warehouse, r.Zone, r.Aisle, r.Shelf, r.Bin)
}

// InitiateTransferRequest starts a stock transfer between locations
type InitiateTransferRequest struct {
	Sku          string          `json:"sku" binding:"required,max=64"`
	Quantity     int64           `json:"quantity" binding:"required,min=1"`
	FromLocation LocationRequest `json:"from_location" binding:"required"`
	ToLocation   LocationRequest `json:"to_location" binding:"required"`
	ContainerLPN string          `json:"container_lpn" binding:"omitempty,max=64"`
	InitiatedBy  string          `json:"initiated_by" binding:"required,max=64"`
}

// CompleteTransferRequest records receipt at the destination
type CompleteTransferRequest struct {
	ActualQuantity int64  `json:"actual_quantity" binding:"min=0"`
	CompletedBy    string `json:"completed_by" binding:"required,max=64"`
}

// CancelTransferRequest aborts a transfer
type CancelTransferRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// AssemblyComponentRequest is one input SKU of a planned kit build
type AssemblyComponentRequest struct {
	Sku              string `json:"sku" binding:"required,max=64"`
	RequiredQuantity int64  `json:"required_quantity" binding:"required,min=1"`
}

// CreateAssemblyOrderRequest plans a kit build
type CreateAssemblyOrderRequest struct {
	KitSku          string                     `json:"kit_sku" binding:"required,max=64"`
	PlannedQuantity int64                      `json:"planned_quantity" binding:"required,min=1"`
	Components      []AssemblyComponentRequest `json:"components" binding:"required,min=1,dive"`
	CreatedBy       string                     `json:"created_by" binding:"omitempty,max=64"`
}

// CompleteAssemblyRequest records the finished build quantity
type CompleteAssemblyRequest struct {
	ActualQuantity int64 `json:"actual_quantity" binding:"min=0"`
}

// CreateSnapshotRequest captures a SKU's state on demand
type CreateSnapshotRequest struct {
	Sku       string `json:"sku" binding:"required,max=64"`
	Reason    string `json:"reason" binding:"omitempty,max=255"`
	CreatedBy string `json:"created_by" binding:"omitempty,max=64"`
}

// StockListFilter represents filter options for the stock list
type StockListFilter struct {
	SkuPrefix  string `form:"sku_prefix"`
	HasStock   *bool  `form:"has_stock"`
	OutOfStock *bool  `form:"out_of_stock"`
	Allocated  *bool  `form:"allocated"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// LedgerHistoryFilter represents filter options for the audit trail
type LedgerHistoryFilter struct {
	Sku        string     `form:"sku"`
	ChangeType string     `form:"change_type"`
	OperatorID string     `form:"operator_id"`
	From       *time.Time `form:"from"`
	To         *time.Time `form:"to"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// HealthMetricsQuery scopes the inventory health report. The SKU prefix acts
// as the category filter; the window defaults to the last 90 days.
type HealthMetricsQuery struct {
	SkuPrefix string     `form:"sku_prefix"`
	From      *time.Time `form:"from"`
	To        *time.Time `form:"to"`
}

// SnapshotListFilter pages through a SKU's snapshots
type SnapshotListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// PointInTimeQuery asks for a SKU's reconstructed state at a past instant
type PointInTimeQuery struct {
	At time.Time `form:"at" binding:"required"`
}

// TransferListFilter represents filter options for the transfer list
type TransferListFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=INITIATED IN_TRANSIT COMPLETED CANCELLED"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// AssemblyListFilter represents filter options for the assembly order list
type AssemblyListFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=CREATED IN_PROGRESS COMPLETED CANCELLED"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// SerialListFilter represents filter options for serialized units of a SKU
type SerialListFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=RECEIVED ALLOCATED SHIPPED"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// HoldResponse represents an inventory hold in API responses
type HoldResponse struct {
	HoldID    string     `json:"hold_id"`
	Sku       string     `json:"sku"`
	HoldType  string     `json:"hold_type"`
	Quantity  int64      `json:"quantity"`
	Reason    string     `json:"reason"`
	PlacedBy  string     `json:"placed_by"`
	PlacedAt  time.Time  `json:"placed_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"active"`
}

// LedgerEntryResponse represents one audit trail entry
type LedgerEntryResponse struct {
	ID              uuid.UUID `json:"id"`
	Sku             string    `json:"sku"`
	Timestamp       time.Time `json:"timestamp"`
	QuantityChange  int64     `json:"quantity_change"`
	ChangeType      string    `json:"change_type"`
	SourceReference string    `json:"source_reference,omitempty"`
	Reason          string    `json:"reason"`
	OperatorID      string    `json:"operator_id,omitempty"`
}

// TransferResponse represents a stock transfer in API responses
type TransferResponse struct {
	TransferID             uuid.UUID      `json:"transfer_id"`
	Sku                    string         `json:"sku"`
	Quantity               int64          `json:"quantity"`
	FromLocation           stock.Location `json:"from_location"`
	ToLocation             stock.Location `json:"to_location"`
	Status                 string         `json:"status"`
	ContainerLPN           string         `json:"container_lpn,omitempty"`
	InitiatedBy            string         `json:"initiated_by"`
	InitiatedAt            time.Time      `json:"initiated_at"`
	InTransitAt            *time.Time     `json:"in_transit_at,omitempty"`
	ActualQuantityReceived int64          `json:"actual_quantity_received"`
	Shrinkage              int64          `json:"shrinkage"`
	CompletedBy            string         `json:"completed_by,omitempty"`
	CompletedAt            *time.Time     `json:"completed_at,omitempty"`
	CancellationReason     string         `json:"cancellation_reason,omitempty"`
	CancelledAt            *time.Time     `json:"cancelled_at,omitempty"`
}

// AssemblyOrderResponse represents a kit build in API responses
type AssemblyOrderResponse struct {
	OrderID         uuid.UUID                 `json:"order_id"`
	KitSku          string                    `json:"kit_sku"`
	PlannedQuantity int64                     `json:"planned_quantity"`
	ActualQuantity  int64                     `json:"actual_quantity"`
	Components      []stock.AssemblyComponent `json:"components"`
	Status          string                    `json:"status"`
	CreatedBy       string                    `json:"created_by,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	StartedAt       *time.Time                `json:"started_at,omitempty"`
	CompletedAt     *time.Time                `json:"completed_at,omitempty"`
	CancelledAt     *time.Time                `json:"cancelled_at,omitempty"`
}

// SerialNumberResponse represents a serialized unit in API responses
type SerialNumberResponse struct {
	SerialNumber string     `json:"serial_number"`
	Sku          string     `json:"sku"`
	Status       string     `json:"status"`
	OrderID      string     `json:"order_id,omitempty"`
	ReceivedAt   time.Time  `json:"received_at"`
	AllocatedAt  *time.Time `json:"allocated_at,omitempty"`
	ShippedAt    *time.Time `json:"shipped_at,omitempty"`
}

// SnapshotResponse represents a point-in-time capture in API responses
type SnapshotResponse struct {
	SnapshotID        uuid.UUID           `json:"snapshot_id"`
	Sku               string              `json:"sku"`
	SnapshotTimestamp time.Time           `json:"snapshot_timestamp"`
	Type              string              `json:"snapshot_type"`
	Reason            string              `json:"reason,omitempty"`
	State             stock.SnapshotState `json:"state"`
	CreatedBy         string              `json:"created_by,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

// SkippedEventResponse describes an event the replay could not apply
type SkippedEventResponse struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType string    `json:"event_type"`
	Reason    string    `json:"reason"`
}

// PointInTimeResponse is a SKU's reconstructed state at a past instant
type PointInTimeResponse struct {
	Sku           string                 `json:"sku"`
	AsOf          time.Time              `json:"as_of"`
	State         stock.SnapshotState    `json:"state"`
	EventsApplied int                    `json:"events_applied"`
	SkippedEvents []SkippedEventResponse `json:"skipped_events,omitempty"`
}

// StockDetailResponse is the full denormalized state of one SKU
type StockDetailResponse struct {
	Sku         string              `json:"sku"`
	State       stock.SnapshotState `json:"state"`
	LastUpdated time.Time           `json:"last_updated"`
	AsOf        time.Time           `json:"as_of"`
}

// HealthMetricsResponse represents inventory health statistics
type HealthMetricsResponse struct {
	Turnover       float64   `json:"turnover"`
	DeadStockSkus  []string  `json:"dead_stock_skus"`
	TotalSkus      int64     `json:"total_skus"`
	OutOfStockSkus int64     `json:"out_of_stock_skus"`
	WindowFrom     time.Time `json:"window_from"`
	WindowTo       time.Time `json:"window_to"`
}

// ToHoldResponse converts a domain hold to a response DTO
func ToHoldResponse(sku string, h stock.InventoryHold) HoldResponse {
	return HoldResponse{
		HoldID:    h.HoldID,
		Sku:       sku,
		HoldType:  string(h.HoldType),
		Quantity:  h.Quantity,
		Reason:    h.Reason,
		PlacedBy:  h.PlacedBy,
		PlacedAt:  h.PlacedAt,
		ExpiresAt: h.ExpiresAt,
		Active:    h.Active,
	}
}

// ToLedgerEntryResponse converts a domain ledger entry to a response DTO
func ToLedgerEntryResponse(e *stock.InventoryLedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:              e.ID,
		Sku:             e.Sku,
		Timestamp:       e.Timestamp,
		QuantityChange:  e.QuantityChange,
		ChangeType:      string(e.ChangeType),
		SourceReference: e.SourceReference,
		Reason:          e.Reason,
		OperatorID:      e.OperatorID,
	}
}

// ToLedgerEntryResponses converts a slice of ledger entries to response DTOs
func ToLedgerEntryResponses(entries []stock.InventoryLedgerEntry) []LedgerEntryResponse {
	responses := make([]LedgerEntryResponse, len(entries))
	for i := range entries {
		responses[i] = ToLedgerEntryResponse(&entries[i])
	}
	return responses
}

// ToTransferResponse converts a domain transfer to a response DTO
func ToTransferResponse(t *stock.StockTransfer) TransferResponse {
	return TransferResponse{
		TransferID:             t.TransferID,
		Sku:                    t.Sku,
		Quantity:               t.Quantity,
		FromLocation:           t.FromLocation,
		ToLocation:             t.ToLocation,
		Status:                 string(t.Status),
		ContainerLPN:           t.ContainerLPN,
		InitiatedBy:            t.InitiatedBy,
		InitiatedAt:            t.InitiatedAt,
		InTransitAt:            t.InTransitAt,
		ActualQuantityReceived: t.ActualQuantityReceived,
		Shrinkage:              t.Shrinkage(),
		CompletedBy:            t.CompletedBy,
		CompletedAt:            t.CompletedAt,
		CancellationReason:     t.CancellationReason,
		CancelledAt:            t.CancelledAt,
	}
}

// ToTransferResponses converts a slice of domain transfers to response DTOs
func ToTransferResponses(transfers []stock.StockTransfer) []TransferResponse {
	responses := make([]TransferResponse, len(transfers))
	for i := range transfers {
		responses[i] = ToTransferResponse(&transfers[i])
	}
	return responses
}

// ToAssemblyOrderResponse converts a domain assembly order to a response DTO
func ToAssemblyOrderResponse(ao *stock.AssemblyOrder) AssemblyOrderResponse {
	return AssemblyOrderResponse{
		OrderID:         ao.OrderID,
		KitSku:          ao.KitSku,
		PlannedQuantity: ao.PlannedQuantity,
		ActualQuantity:  ao.ActualQuantity,
		Components:      ao.Components,
		Status:          string(ao.Status),
		CreatedBy:       ao.CreatedBy,
		CreatedAt:       ao.CreatedAt,
		StartedAt:       ao.StartedAt,
		CompletedAt:     ao.CompletedAt,
		CancelledAt:     ao.CancelledAt,
	}
}

// ToAssemblyOrderResponses converts a slice of assembly orders to response DTOs
func ToAssemblyOrderResponses(orders []stock.AssemblyOrder) []AssemblyOrderResponse {
	responses := make([]AssemblyOrderResponse, len(orders))
	for i := range orders {
		responses[i] = ToAssemblyOrderResponse(&orders[i])
	}
	return responses
}

// ToSerialNumberResponse converts a domain serial number to a response DTO
func ToSerialNumberResponse(sn *stock.SerialNumber) SerialNumberResponse {
	return SerialNumberResponse{
		SerialNumber: sn.Serial,
		Sku:          sn.Sku,
		Status:       string(sn.Status),
		OrderID:      sn.OrderID,
		ReceivedAt:   sn.ReceivedAt,
		AllocatedAt:  sn.AllocatedAt,
		ShippedAt:    sn.ShippedAt,
	}
}

// ToSerialNumberResponses converts a slice of serial numbers to response DTOs
func ToSerialNumberResponses(serials []stock.SerialNumber) []SerialNumberResponse {
	responses := make([]SerialNumberResponse, len(serials))
	for i := range serials {
		responses[i] = ToSerialNumberResponse(&serials[i])
	}
	return responses
}

// ToSnapshotResponse converts a domain snapshot to a response DTO
func ToSnapshotResponse(s *stock.InventorySnapshot) SnapshotResponse {
	return SnapshotResponse{
		SnapshotID:        s.SnapshotID,
		Sku:               s.Sku,
		SnapshotTimestamp: s.SnapshotTimestamp,
		Type:              string(s.Type),
		Reason:            s.Reason,
		State:             s.State,
		CreatedBy:         s.CreatedBy,
		CreatedAt:         s.CreatedAt,
	}
}

// ToSnapshotResponses converts a slice of snapshots to response DTOs
func ToSnapshotResponses(snapshots []stock.InventorySnapshot) []SnapshotResponse {
	responses := make([]SnapshotResponse, len(snapshots))
	for i := range snapshots {
		responses[i] = ToSnapshotResponse(&snapshots[i])
	}
	return responses
}

// ToPointInTimeResponse converts a replay result to a response DTO
func ToPointInTimeResponse(r *stock.ReplayResult) PointInTimeResponse {
	skipped := make([]SkippedEventResponse, len(r.Skipped))
	for i, s := range r.Skipped {
		skipped[i] = SkippedEventResponse{
			EventID:   s.EventID,
			EventType: s.EventType,
			Reason:    s.Reason,
		}
	}
	if len(skipped) == 0 {
		skipped = nil
	}
	return PointInTimeResponse{
		Sku:           r.Sku,
		AsOf:          r.AsOf,
		State:         r.State,
		EventsApplied: r.EventsApplied,
		SkippedEvents: skipped,
	}
}

// toLedgerQuery converts the filter into the repository query
func (f LedgerHistoryFilter) toLedgerQuery() stock.LedgerQuery {
	q := stock.LedgerQuery{
		Sku:        f.Sku,
		ChangeType: stock.ChangeType(f.ChangeType),
		OperatorID: f.OperatorID,
	}
	if f.From != nil {
		q.From = *f.From
	}
	if f.To != nil {
		q.To = *f.To
	}
	return q
}
