// Package analytics computes grouped summaries and customer segmentation
// over a (possibly filtered) transaction table.
//
// Every function here is pure: given the same table it returns the same
// result, and an empty table degrades to empty output rather than an
// error.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardscope/cardscope/pkg/api"
)

// GroupKey selects the grouping dimension for SummarizeBy.
type GroupKey string

// Supported grouping dimensions.
const (
	ByCity         GroupKey = "city"
	ByCityTier     GroupKey = "city_tier"
	ByMonth        GroupKey = "month"
	ByCategory     GroupKey = "category"
	ByGender       GroupKey = "gender"
	ByCardType     GroupKey = "card_type"
	ByWeekday      GroupKey = "weekday"
	BySpendingTier GroupKey = "spending_tier"
	ByCustomer     GroupKey = "customer"
)

// Summary holds the measures for one group. Mean is Sum/Count.
type Summary struct {
	Key   string          `json:"key"`
	Sum   decimal.Decimal `json:"sum"`
	Count int             `json:"count"`
	Mean  decimal.Decimal `json:"mean"`
}

// Overview are the headline metrics for a table.
type Overview struct {
	Transactions int             `json:"transactions"`
	TotalSpend   decimal.Decimal `json:"total_spend"`
	MeanTicket   decimal.Decimal `json:"mean_ticket"`
	Cities       int             `json:"cities"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
}

// Summarize computes the headline metrics. An empty table yields a zero
// Overview.
func Summarize(t *api.Table) Overview {
	o := Overview{
		Transactions: t.Len(),
		TotalSpend:   t.TotalAmount(),
		MeanTicket:   decimal.Zero,
		Cities:       len(t.Cities()),
		From:         t.MinDate,
		To:           t.MaxDate,
	}
	if o.Transactions > 0 {
		o.MeanTicket = o.TotalSpend.Div(decimal.NewFromInt(int64(o.Transactions)))
	}
	return o
}

// SummarizeBy groups the table on key and returns one Summary per
// non-empty group, ordered by the key's natural ordering. Groups with
// zero rows are never emitted.
func SummarizeBy(t *api.Table, key GroupKey) []Summary {
	groups := make(map[string]*Summary)
	var order []string

	for _, row := range t.Rows {
		k := keyOf(row, key)
		g, ok := groups[k]
		if !ok {
			g = &Summary{Key: k, Sum: decimal.Zero}
			groups[k] = g
			order = append(order, k)
		}
		g.Sum = g.Sum.Add(row.Amount)
		g.Count++
	}

	sortKeys(order, key)

	out := make([]Summary, 0, len(order))
	for _, k := range order {
		g := groups[k]
		g.Mean = g.Sum.Div(decimal.NewFromInt(int64(g.Count)))
		out = append(out, *g)
	}
	return out
}

// MonthlyTrend is SummarizeBy month, chronologically ordered.
func MonthlyTrend(t *api.Table) []Summary {
	return SummarizeBy(t, ByMonth)
}

// WeekendSplit compares weekend against weekday activity.
func WeekendSplit(t *api.Table) []Summary {
	weekend := api.NewTable(nil)
	weekday := api.NewTable(nil)
	for _, row := range t.Rows {
		if row.Weekend {
			weekend.Rows = append(weekend.Rows, row)
		} else {
			weekday.Rows = append(weekday.Rows, row)
		}
	}

	var out []Summary
	for _, part := range []struct {
		label string
		table *api.Table
	}{{"Weekday", weekday}, {"Weekend", weekend}} {
		if part.table.Empty() {
			continue
		}
		o := Summarize(part.table)
		out = append(out, Summary{Key: part.label, Sum: o.TotalSpend, Count: o.Transactions, Mean: o.MeanTicket})
	}
	return out
}

func keyOf(row api.Transaction, key GroupKey) string {
	switch key {
	case ByCity:
		return row.City
	case ByCityTier:
		return string(row.CityTier)
	case ByMonth:
		return row.MonthKey()
	case ByCategory:
		return row.Category
	case ByGender:
		return row.Gender
	case ByCardType:
		return row.CardType
	case ByWeekday:
		return row.DayOfWeek.String()
	case BySpendingTier:
		return string(row.SpendingTier)
	case ByCustomer:
		return row.CustomerID
	default:
		return row.City
	}
}

// sortKeys orders group keys naturally. Weekdays sort Monday-first;
// everything else sorts lexically, which is chronological for the
// "2006-01" month keys.
func sortKeys(keys []string, key GroupKey) {
	if key == ByWeekday {
		sort.Slice(keys, func(i, j int) bool {
			return weekdayRank[keys[i]] < weekdayRank[keys[j]]
		})
		return
	}
	sort.Strings(keys)
}

var weekdayRank = map[string]int{
	time.Monday.String():    0,
	time.Tuesday.String():   1,
	time.Wednesday.String(): 2,
	time.Thursday.String():  3,
	time.Friday.String():    4,
	time.Saturday.String():  5,
	time.Sunday.String():    6,
}
