// Package api defines the core data model and error taxonomy for cardscope.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// CityTier classifies a city by economic/population significance.
type CityTier string

// City tiers, assigned from the configured reference lists.
const (
	Tier1 CityTier = "Tier-1"
	Tier2 CityTier = "Tier-2"
	Tier3 CityTier = "Tier-3"
)

// SpendingTier buckets a transaction amount into a fixed band.
type SpendingTier string

// Spending tiers, assigned from the configured amount bands.
const (
	SpendLow     SpendingTier = "Low"
	SpendMedium  SpendingTier = "Medium"
	SpendHigh    SpendingTier = "High"
	SpendPremium SpendingTier = "Premium"
)

// Transaction is a single normalized row of the canonical table.
type Transaction struct {
	ID         string          `json:"transaction_id"`
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	City       string          `json:"city"`
	CityTier   CityTier        `json:"city_tier"`
	CardType   string          `json:"card_type"`
	Category   string          `json:"category"`
	CustomerID string          `json:"customer_id"`
	Gender     string          `json:"gender"`

	// Derived fields, populated by the loader.
	Year         int          `json:"year"`
	Month        time.Month   `json:"month"`
	Quarter      int          `json:"quarter"`
	DayOfWeek    time.Weekday `json:"day_of_week"`
	Weekend      bool         `json:"is_weekend"`
	SpendingTier SpendingTier `json:"spending_tier"`
}

// MonthKey returns the transaction's month as a sortable "2006-01" key.
func (t Transaction) MonthKey() string {
	return t.Date.Format("2006-01")
}

// Table is the canonical in-memory transaction dataset.
// Rows keep their source insertion order. A Table derived by the filter
// engine is read-only by contract: downstream components never mutate it.
type Table struct {
	Rows []Transaction

	// MinDate and MaxDate bound the dataset's time window. Zero when the
	// table is empty.
	MinDate time.Time
	MaxDate time.Time
}

// NewTable builds a Table from rows, computing the date window.
func NewTable(rows []Transaction) *Table {
	t := &Table{Rows: rows}
	for _, r := range rows {
		if t.MinDate.IsZero() || r.Date.Before(t.MinDate) {
			t.MinDate = r.Date
		}
		if r.Date.After(t.MaxDate) {
			t.MaxDate = r.Date
		}
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no rows. Downstream views must
// treat an empty table as "no data", never as an error.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// TotalAmount sums the amount column.
func (t *Table) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, r := range t.Rows {
		total = total.Add(r.Amount)
	}
	return total
}

// Cities returns the distinct city names in insertion order.
func (t *Table) Cities() []string {
	seen := make(map[string]bool, len(t.Rows))
	var out []string
	for _, r := range t.Rows {
		if !seen[r.City] {
			seen[r.City] = true
			out = append(out, r.City)
		}
	}
	return out
}

// QualityIssue records one malformed source row. Issues are collected
// during loading, not thrown: the load succeeds with a report unless the
// bad-row fraction crosses the configured threshold.
type QualityIssue struct {
	Row    int    `json:"row"` // 1-based data row number, excluding the header
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// QualityReport summarizes data quality for one load attempt.
type QualityReport struct {
	TotalRows int            `json:"total_rows"`
	BadRows   int            `json:"bad_rows"`
	Issues    []QualityIssue `json:"issues,omitempty"`
}

// BadFraction returns the share of rows rejected during loading.
func (r QualityReport) BadFraction() float64 {
	if r.TotalRows == 0 {
		return 0
	}
	return float64(r.BadRows) / float64(r.TotalRows)
}
