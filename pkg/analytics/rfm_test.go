package analytics

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cardscope/cardscope/pkg/api"
	"github.com/cardscope/cardscope/pkg/config"
)

func defaultRFM(t *testing.T) config.RFMConfig {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading default config: %v", err)
	}
	return cfg.RFM
}

// ladderTable builds 8 customers where customer Cn has n transactions of
// 100 each, the last on day n. All three measures rank the customers the
// same way: C1 worst, C8 best.
func ladderTable() *api.Table {
	var rows []api.Transaction
	id := 0
	for n := 1; n <= 8; n++ {
		for j := 0; j < n; j++ {
			id++
			rows = append(rows, txn(strconv.Itoa(id), day(2024, 1, n), 100, "Delhi", custName(n)))
		}
	}
	return api.NewTable(rows)
}

func custName(n int) string {
	return "C" + string(rune('0'+n))
}

func TestComputeRFMBucketPartition(t *testing.T) {
	scores := ComputeRFM(ladderTable(), defaultRFM(t))
	if len(scores) != 8 {
		t.Fatalf("got %d scores, want 8", len(scores))
	}

	rCounts := map[int]int{}
	fCounts := map[int]int{}
	mCounts := map[int]int{}
	for _, s := range scores {
		rCounts[s.R]++
		fCounts[s.F]++
		mCounts[s.M]++
	}
	for b := 1; b <= 4; b++ {
		if rCounts[b] != 2 || fCounts[b] != 2 || mCounts[b] != 2 {
			t.Errorf("bucket %d counts R/F/M = %d/%d/%d, want 2 each", b, rCounts[b], fCounts[b], mCounts[b])
		}
	}
}

func TestComputeRFMMeasures(t *testing.T) {
	scores := ComputeRFM(ladderTable(), defaultRFM(t))

	byID := map[string]Score{}
	for _, s := range scores {
		byID[s.CustomerID] = s
	}

	best := byID[custName(8)]
	if best.Frequency != 8 || !best.Monetary.Equal(decimal.NewFromInt(800)) || best.RecencyDays != 0 {
		t.Errorf("C8 measures = %+v", best)
	}
	if best.R != 4 || best.F != 4 || best.M != 4 {
		t.Errorf("C8 scores = R%d F%d M%d, want 4/4/4", best.R, best.F, best.M)
	}

	worst := byID[custName(1)]
	if worst.Frequency != 1 || worst.RecencyDays != 7 {
		t.Errorf("C1 measures = %+v", worst)
	}
	if worst.R != 1 || worst.F != 1 || worst.M != 1 {
		t.Errorf("C1 scores = R%d F%d M%d, want 1/1/1", worst.R, worst.F, worst.M)
	}
}

func TestComputeRFMSegments(t *testing.T) {
	scores := ComputeRFM(ladderTable(), defaultRFM(t))

	segments := map[string]string{}
	for _, s := range scores {
		segments[s.CustomerID] = s.Segment
	}
	want := map[string]string{
		custName(8): "Champions",
		custName(7): "Champions",
		custName(6): "Loyal",
		custName(5): "Loyal",
		custName(4): "Lost",
		custName(3): "Lost",
		custName(2): "Lost",
		custName(1): "Lost",
	}
	for id, seg := range want {
		if segments[id] != seg {
			t.Errorf("%s segment = %q, want %q", id, segments[id], seg)
		}
	}
}

func TestComputeRFMFewerCustomersThanBuckets(t *testing.T) {
	table := api.NewTable([]api.Transaction{
		txn("1", day(2024, 1, 1), 100, "Delhi", "A"),
		txn("2", day(2024, 1, 5), 500, "Delhi", "B"),
	})
	scores := ComputeRFM(table, defaultRFM(t))
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	for _, s := range scores {
		if s.R < 1 || s.R > 2 || s.F < 1 || s.F > 2 || s.M < 1 || s.M > 2 {
			t.Errorf("score outside effective bucket range: %+v", s)
		}
	}
}

func TestComputeRFMSingleCustomer(t *testing.T) {
	table := api.NewTable([]api.Transaction{
		txn("1", day(2024, 1, 1), 100, "Delhi", "A"),
	})
	scores := ComputeRFM(table, defaultRFM(t))
	if len(scores) != 1 {
		t.Fatalf("got %d scores, want 1", len(scores))
	}
	s := scores[0]
	if s.R != 1 || s.F != 1 || s.M != 1 {
		t.Errorf("single customer scores = R%d F%d M%d, want 1/1/1", s.R, s.F, s.M)
	}
	if s.RecencyDays != 0 {
		t.Errorf("RecencyDays = %d, want 0", s.RecencyDays)
	}
}

func TestComputeRFMEmptyTable(t *testing.T) {
	if got := ComputeRFM(api.NewTable(nil), defaultRFM(t)); got != nil {
		t.Errorf("ComputeRFM(empty) = %v, want nil", got)
	}
}

func TestComputeRFMDeterministicTieBreak(t *testing.T) {
	// Identical measures everywhere: bucket assignment falls back to
	// customer id order, so repeated runs agree.
	table := api.NewTable([]api.Transaction{
		txn("1", day(2024, 1, 1), 100, "Delhi", "A"),
		txn("2", day(2024, 1, 1), 100, "Delhi", "B"),
		txn("3", day(2024, 1, 1), 100, "Delhi", "C"),
		txn("4", day(2024, 1, 1), 100, "Delhi", "D"),
	})
	cfg := defaultRFM(t)
	first := ComputeRFM(table, cfg)
	second := ComputeRFM(table, cfg)
	for i := range first {
		a, b := first[i], second[i]
		if a.CustomerID != b.CustomerID || a.R != b.R || a.F != b.F || a.M != b.M || a.Segment != b.Segment {
			t.Errorf("score[%d] differs between runs: %+v vs %+v", i, a, b)
		}
	}
}

func TestSegmentCounts(t *testing.T) {
	scores := ComputeRFM(ladderTable(), defaultRFM(t))
	counts := SegmentCounts(scores)

	got := map[string]int{}
	for _, c := range counts {
		got[c.Key] = c.Count
	}
	if got["Champions"] != 2 || got["Loyal"] != 2 || got["Lost"] != 4 {
		t.Errorf("segment counts = %v", got)
	}
}
