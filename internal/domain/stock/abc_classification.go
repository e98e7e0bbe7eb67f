package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// ABCClass ranks a SKU by its share of annual usage value
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

// IsValid checks if the class is known
func (c ABCClass) IsValid() bool {
	switch c {
	case ClassA, ClassB, ClassC:
		return true
	}
	return false
}

// ClassificationCriteria names the basis of an ABC classification
type ClassificationCriteria string

const (
	CriteriaValueBased    ClassificationCriteria = "VALUE_BASED"
	CriteriaVelocityBased ClassificationCriteria = "VELOCITY_BASED"
	CriteriaCombined      ClassificationCriteria = "COMBINED"
)

// IsValid checks if the criteria is known
func (c ClassificationCriteria) IsValid() bool {
	switch c {
	case CriteriaValueBased, CriteriaVelocityBased, CriteriaCombined:
		return true
	}
	return false
}

// ABCClassification records the SKU's current class and why it was assigned
type ABCClassification struct {
	Class            ABCClass               `json:"class"`
	Criteria         ClassificationCriteria `json:"criteria"`
	AnnualUsageValue decimal.Decimal        `json:"annual_usage_value"`
	ClassifiedAt     time.Time              `json:"classified_at"`
	ValidUntil       *time.Time             `json:"valid_until,omitempty"`
}

// NewABCClassification creates a classification effective now
func NewABCClassification(class ABCClass, criteria ClassificationCriteria, annualUsageValue decimal.Decimal, validUntil *time.Time) ABCClassification {
	return ABCClassification{
		Class:            class,
		Criteria:         criteria,
		AnnualUsageValue: annualUsageValue,
		ClassifiedAt:     time.Now().UTC(),
		ValidUntil:       validUntil,
	}
}

// IsValidAt reports whether the classification is still in effect
func (c ABCClassification) IsValidAt(now time.Time) bool {
	return c.ValidUntil == nil || c.ValidUntil.After(now)
}
