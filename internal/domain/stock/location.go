package stock

import (
	"fmt"
	"strings"
)

// Location identifies a physical storage position. Transfers and containers
// reference locations; the stock ledger itself is location-agnostic.
type Location struct {
	Warehouse string `json:"warehouse"`
	Zone      string `json:"zone,omitempty"`
	Aisle     string `json:"aisle,omitempty"`
	Shelf     string `json:"shelf,omitempty"`
	Bin       string `json:"bin,omitempty"`
}

// NewLocation creates a location rooted at a warehouse
func NewLocation(warehouse, zone, aisle, shelf, bin string) (Location, error) {
	if strings.TrimSpace(warehouse) == "" {
		return Location{}, fmt.Errorf("warehouse cannot be empty")
	}
	return Location{
		Warehouse: warehouse,
		Zone:      zone,
		Aisle:     aisle,
		Shelf:     shelf,
		Bin:       bin,
	}, nil
}

// IsZero reports whether the location is unset
func (l Location) IsZero() bool {
	return l.Warehouse == ""
}

// String renders the location as a hyphenated path, omitting empty segments
func (l Location) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{l.Warehouse, l.Zone, l.Aisle, l.Shelf, l.Bin} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

// Equals compares all location segments
func (l Location) Equals(other Location) bool {
	return l == other
}
