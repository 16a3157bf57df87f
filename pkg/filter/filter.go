// Package filter narrows the canonical table to the rows matching a
// user-selected predicate.
//
// Apply is a pure function: it never mutates its input and returns a new
// table whose rows keep the canonical insertion order. An empty result is
// a valid outcome, not an error.
package filter

import (
	"strings"
	"time"

	"github.com/cardscope/cardscope/pkg/api"
)

// DateRange is an inclusive calendar-date window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Predicate describes the active filter selection. A nil DateRange or an
// empty value set means "no constraint on that dimension". Set matching
// is case-insensitive.
type Predicate struct {
	DateRange *DateRange
	Cities    []string
	Genders   []string
	CardTypes []string
}

// IsEmpty reports whether the predicate constrains nothing.
func (p Predicate) IsEmpty() bool {
	return p.DateRange == nil && len(p.Cities) == 0 && len(p.Genders) == 0 && len(p.CardTypes) == 0
}

// Validate rejects malformed predicates.
func (p Predicate) Validate() error {
	if p.DateRange != nil && p.DateRange.Start.After(p.DateRange.End) {
		return &api.InvalidFilterError{Reason: "date range start after end"}
	}
	return nil
}

// Apply returns the subset of table matching the predicate.
func Apply(table *api.Table, p Predicate) (*api.Table, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.IsEmpty() {
		// No constraints: same content and order.
		return api.NewTable(table.Rows), nil
	}

	cities := toLowerSet(p.Cities)
	genders := toLowerSet(p.Genders)
	cardTypes := toLowerSet(p.CardTypes)

	matched := make([]api.Transaction, 0, len(table.Rows))
	for _, row := range table.Rows {
		if p.DateRange != nil && !withinRange(row.Date, *p.DateRange) {
			continue
		}
		if len(cities) > 0 && !cities[strings.ToLower(row.City)] {
			continue
		}
		if len(genders) > 0 && !genders[strings.ToLower(row.Gender)] {
			continue
		}
		if len(cardTypes) > 0 && !cardTypes[strings.ToLower(row.CardType)] {
			continue
		}
		matched = append(matched, row)
	}
	return api.NewTable(matched), nil
}

// withinRange checks the inclusive window at calendar-date granularity,
// so a timestamped transaction on the end date still matches.
func withinRange(t time.Time, r DateRange) bool {
	day := t.Truncate(24 * time.Hour)
	start := r.Start.Truncate(24 * time.Hour)
	end := r.End.Truncate(24 * time.Hour)
	return !day.Before(start) && !day.After(end)
}

func toLowerSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[strings.ToLower(strings.TrimSpace(it))] = true
	}
	return set
}
