package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ProductStockSortFields contains allowed sort fields for product stocks
var ProductStockSortFields = map[string]bool{
	"sku":                true,
	"quantity_on_hand":   true,
	"quantity_allocated": true,
	"created_at":         true,
	"last_updated":       true,
}

// LedgerSortFields contains allowed sort fields for ledger entries
var LedgerSortFields = map[string]bool{
	"timestamp":       true,
	"sku":             true,
	"change_type":     true,
	"quantity_change": true,
	"operator_id":     true,
}

// SnapshotSortFields contains allowed sort fields for snapshots
var SnapshotSortFields = map[string]bool{
	"snapshot_timestamp": true,
	"sku":                true,
	"snapshot_type":      true,
	"created_at":         true,
}

// SerialNumberSortFields contains allowed sort fields for serial numbers
var SerialNumberSortFields = map[string]bool{
	"serial":       true,
	"sku":          true,
	"status":       true,
	"received_at":  true,
	"allocated_at": true,
	"shipped_at":   true,
}

// TransferSortFields contains allowed sort fields for stock transfers
var TransferSortFields = map[string]bool{
	"initiated_at": true,
	"completed_at": true,
	"sku":          true,
	"status":       true,
	"quantity":     true,
}

// AssemblySortFields contains allowed sort fields for assembly orders
var AssemblySortFields = map[string]bool{
	"created_at":       true,
	"completed_at":     true,
	"kit_sku":          true,
	"status":           true,
	"planned_quantity": true,
}

// ContainerSortFields contains allowed sort fields for containers
var ContainerSortFields = map[string]bool{
	"lpn":        true,
	"sku":        true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
}

// OutboxSortFields contains allowed sort fields for outbox events
var OutboxSortFields = map[string]bool{
	"created_at":   true,
	"published_at": true,
	"event_type":   true,
	"status":       true,
	"retry_count":  true,
}
