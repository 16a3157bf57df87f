package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardscope/cardscope/pkg/api"
	"github.com/cardscope/cardscope/pkg/config"
)

// Score is the RFM result for one customer. R, F, and M are quantile
// bucket scores in [1, effective bucket count]; higher is better on all
// three axes (low recency days score high).
type Score struct {
	CustomerID  string          `json:"customer_id"`
	RecencyDays int             `json:"recency_days"`
	Frequency   int             `json:"frequency"`
	Monetary    decimal.Decimal `json:"monetary"`
	R           int             `json:"r"`
	F           int             `json:"f"`
	M           int             `json:"m"`
	Segment     string          `json:"segment"`
}

// ComputeRFM scores every customer in the table.
//
// Recency is measured against the table's max date. Each measure is
// bucketed independently by rank: customers are sorted by the measure
// (customer id breaks ties), and rank i of n falls into bucket
// i*b/n + 1. When the table has fewer distinct customers than requested
// buckets, the effective bucket count drops to the customer count, so
// the computation never fails. An empty table yields no scores.
func ComputeRFM(t *api.Table, cfg config.RFMConfig) []Score {
	if t.Empty() {
		return nil
	}

	byCustomer := make(map[string]*Score)
	lastSeen := make(map[string]time.Time)
	var ids []string

	for _, row := range t.Rows {
		s, ok := byCustomer[row.CustomerID]
		if !ok {
			s = &Score{CustomerID: row.CustomerID, Monetary: decimal.Zero}
			byCustomer[row.CustomerID] = s
			ids = append(ids, row.CustomerID)
		}
		s.Frequency++
		s.Monetary = s.Monetary.Add(row.Amount)
		if row.Date.After(lastSeen[row.CustomerID]) {
			lastSeen[row.CustomerID] = row.Date
		}
	}

	for id, s := range byCustomer {
		s.RecencyDays = int(t.MaxDate.Sub(lastSeen[id]).Hours() / 24)
	}

	sort.Strings(ids)
	scores := make([]*Score, len(ids))
	for i, id := range ids {
		scores[i] = byCustomer[id]
	}

	buckets := cfg.Buckets
	if buckets > len(scores) {
		buckets = len(scores)
	}
	if buckets < 1 {
		buckets = 1
	}

	// Higher frequency and monetary are better; fewer recency days are
	// better, so recency ranks descending to give recent customers the
	// top bucket.
	assignBuckets(scores, buckets, func(a, b *Score) bool {
		if a.RecencyDays != b.RecencyDays {
			return a.RecencyDays > b.RecencyDays
		}
		return a.CustomerID < b.CustomerID
	}, func(s *Score, score int) { s.R = score })

	assignBuckets(scores, buckets, func(a, b *Score) bool {
		if a.Frequency != b.Frequency {
			return a.Frequency < b.Frequency
		}
		return a.CustomerID < b.CustomerID
	}, func(s *Score, score int) { s.F = score })

	assignBuckets(scores, buckets, func(a, b *Score) bool {
		if c := a.Monetary.Cmp(b.Monetary); c != 0 {
			return c < 0
		}
		return a.CustomerID < b.CustomerID
	}, func(s *Score, score int) { s.M = score })

	out := make([]Score, len(scores))
	for i, s := range scores {
		s.Segment = segmentFor(*s, cfg)
		out[i] = *s
	}
	return out
}

// assignBuckets sorts a copy of scores by less (worst first) and writes
// bucket numbers 1..buckets through set. Rank-based bucketing keeps every
// bucket non-empty whenever buckets <= len(scores).
func assignBuckets(scores []*Score, buckets int, less func(a, b *Score) bool, set func(*Score, int)) {
	ranked := make([]*Score, len(scores))
	copy(ranked, scores)
	sort.Slice(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })

	n := len(ranked)
	for i, s := range ranked {
		set(s, i*buckets/n+1)
	}
}

// segmentFor labels a score through the ordered rule table. First match
// wins; the fallback covers scores no rule claims.
func segmentFor(s Score, cfg config.RFMConfig) string {
	for _, rule := range cfg.Segments {
		if ruleMatches(rule, s) {
			return rule.Label
		}
	}
	return cfg.FallbackSegment
}

func ruleMatches(r config.SegmentRule, s Score) bool {
	check := func(min, max, v int) bool {
		if min > 0 && v < min {
			return false
		}
		if max > 0 && v > max {
			return false
		}
		return true
	}
	return check(r.MinR, r.MaxR, s.R) && check(r.MinF, r.MaxF, s.F) && check(r.MinM, r.MaxM, s.M)
}

// SegmentCounts tallies customers per segment label, ordered by label.
func SegmentCounts(scores []Score) []Summary {
	counts := make(map[string]*Summary)
	var order []string
	for _, s := range scores {
		g, ok := counts[s.Segment]
		if !ok {
			g = &Summary{Key: s.Segment, Sum: decimal.Zero}
			counts[s.Segment] = g
			order = append(order, s.Segment)
		}
		g.Count++
		g.Sum = g.Sum.Add(s.Monetary)
	}
	sort.Strings(order)

	out := make([]Summary, 0, len(order))
	for _, k := range order {
		g := counts[k]
		g.Mean = g.Sum.Div(decimal.NewFromInt(int64(g.Count)))
		out = append(out, *g)
	}
	return out
}
