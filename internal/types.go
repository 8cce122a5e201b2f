package internal

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawSheet is one worksheet as a ragged grid of cell text.
type RawSheet struct {
	Name string
	Rows [][]string
}

// Width returns the length of the longest row.
func (s RawSheet) Width() int {
	width := 0
	for _, row := range s.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

type MissingProcessPolicy string

const (
	MissingProcessFail MissingProcessPolicy = "fail"
	MissingProcessSkip MissingProcessPolicy = "skip"
)

type SelectionRecord struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Process  string `json:"process"`
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

type ImpactTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

type IgnoredReason string

const (
	IgnoredNotInTable IgnoredReason = "NOT_IN_TABLE"
	IgnoredReserved   IgnoredReason = "RESERVED"
)

type IgnoredCategory struct {
	Name       string        `json:"name"`
	Reason     IgnoredReason `json:"reason"`
	Suggestion *string       `json:"suggestion,omitempty"`
}

type QuantityIssue struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Process  string `json:"process"`
	Quantity string `json:"quantity"`
}

type SkippedRecord struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Process  string `json:"process"`
	Reason   string `json:"reason"`
}

type CalculationResult struct {
	Sheet             string            `json:"sheet"`
	Totals            []ImpactTotal     `json:"totals"`
	Ignored           []IgnoredCategory `json:"ignored,omitempty"`
	InvalidQuantities []QuantityIssue   `json:"invalidQuantities,omitempty"`
	Skipped           []SkippedRecord   `json:"skipped,omitempty"`
}

// Total returns the total for category and whether the category was computed.
func (r CalculationResult) Total(category string) (decimal.Decimal, bool) {
	for _, t := range r.Totals {
		if t.Category == category {
			return t.Total, true
		}
	}
	return decimal.Zero, false
}

// Map returns totals keyed by category. Order is lost; use Totals for display.
func (r CalculationResult) Map() map[string]float64 {
	out := make(map[string]float64, len(r.Totals))
	for _, t := range r.Totals {
		out[t.Category] = t.Total.InexactFloat64()
	}
	return out
}

// RunRecord is one logged calculation.
type RunRecord struct {
	ID         int            `json:"id"`
	TraceID    string         `json:"traceId"`
	Sheet      string         `json:"sheet"`
	Categories []string       `json:"categories"`
	Totals     []ImpactTotal  `json:"totals"`
	Counts     map[string]int `json:"counts"`
	CreatedAt  time.Time      `json:"createdAt"`
}
