package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/cardscope/cardscope/pkg/api"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want func(*Spec) bool
	}{
		{
			"plain projection",
			"select city, amount",
			func(s *Spec) bool {
				return len(s.Select) == 2 && s.Select[0].Field == "city" && s.Select[1].Field == "amount"
			},
		},
		{
			"aggregate with group by",
			"select city, sum(amount), count(*) from transactions group by city",
			func(s *Spec) bool {
				return s.Select[1].Agg == AggSum && s.Select[2].Agg == AggCount &&
					len(s.GroupBy) == 1 && s.GroupBy[0] == "city"
			},
		},
		{
			"where comparisons",
			"select amount where amount > 1000 and city = 'Delhi'",
			func(s *Spec) bool {
				return len(s.Where) == 2 && s.Where[0].Op == ">" && s.Where[1].Op == "="
			},
		},
		{
			"in list",
			"select city where city in ('Delhi', 'Mumbai')",
			func(s *Spec) bool {
				return s.Where[0].Op == "in" && len(s.Where[0].Values) == 2
			},
		},
		{
			"like",
			"select customer_id where customer_id like 'C%'",
			func(s *Spec) bool { return s.Where[0].Op == "like" },
		},
		{
			"order by aggregate label and limit",
			"select city, sum(amount) group by city order by sum_amount desc limit 5",
			func(s *Spec) bool {
				return s.OrderBy != nil && s.OrderBy.Column == "sum_amount" && s.OrderBy.Desc && s.Limit == 5
			},
		},
		{
			"case insensitive keywords",
			"SELECT City WHERE Gender = 'F'",
			func(s *Spec) bool { return s.Select[0].Field == "city" && s.Where[0].Field == "gender" },
		},
		{
			"not-equals spellings",
			"select city where city != 'Delhi' and gender <> 'M'",
			func(s *Spec) bool { return s.Where[0].Op == "!=" && s.Where[1].Op == "!=" },
		},
		{
			"trailing semicolon",
			"select city;",
			func(s *Spec) bool { return len(s.Select) == 1 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.expr, err)
			}
			if !tt.want(got) {
				t.Errorf("Parse(%q) = %+v", tt.expr, got)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		reason string
	}{
		{"not a query at all", "foo", "only SELECT"},
		{"unknown field", "select foo", "unknown field"},
		{"unknown field in where", "select city where foo = 1", "unknown field"},
		{"unknown field in group by", "select city group by foo", "unknown field"},
		{"write verb", "update transactions set amount = 0", "only SELECT"},
		{"delete verb", "delete from transactions", "only SELECT"},
		{"ddl verb", "drop table transactions", "only SELECT"},
		{"insert verb", "insert into transactions values (1)", "only SELECT"},
		{"select star", "select *", "not permitted"},
		{"sum star", "select sum(*)", "not permitted"},
		{"unknown table", "select city from customers", "unknown table"},
		{"unknown aggregate arg", "select sum(foo)", "unknown field"},
		{"dangling operator", "select city where amount >", "literal"},
		{"trailing garbage", "select city limit 5 whatever", "unexpected"},
		{"order by unknown column", "select city order by frobnicate", "not a selected column"},
		{"unterminated string", "select city where city = 'Del", "unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			var qerr *api.InvalidQueryError
			if !errors.As(err, &qerr) {
				t.Fatalf("Parse(%q) error = %v, want *api.InvalidQueryError", tt.expr, err)
			}
			if qerr.Expression != tt.expr {
				t.Errorf("Expression = %q, want %q", qerr.Expression, tt.expr)
			}
			if !strings.Contains(qerr.Reason, tt.reason) {
				t.Errorf("Reason = %q, want it to mention %q", qerr.Reason, tt.reason)
			}
		})
	}
}

func TestCompile(t *testing.T) {
	tests := []struct {
		expr     string
		wantSQL  string
		wantArgs int
	}{
		{
			"select city, sum(amount) where gender = 'F' group by city order by sum_amount desc limit 3",
			"SELECT city, SUM(amount) FROM transactions WHERE gender = ? GROUP BY city ORDER BY 2 DESC LIMIT 3",
			1,
		},
		{
			"select count(*) where city in ('Delhi', 'Mumbai') and amount >= 100",
			"SELECT COUNT(*) FROM transactions WHERE city IN (?, ?) AND amount >= ?",
			3,
		},
		{
			"select customer_id where customer_id like 'C%'",
			"SELECT customer_id FROM transactions WHERE customer_id LIKE ?",
			1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			spec, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			sqlText, args := compile(spec)
			if sqlText != tt.wantSQL {
				t.Errorf("compile() sql = %q, want %q", sqlText, tt.wantSQL)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("compile() args = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestSelectItemLabel(t *testing.T) {
	tests := []struct {
		item SelectItem
		want string
	}{
		{SelectItem{Field: "city"}, "city"},
		{SelectItem{Field: "amount", Agg: AggSum}, "sum_amount"},
		{SelectItem{Field: "*", Agg: AggCount}, "count"},
	}
	for _, tt := range tests {
		if got := tt.item.Label(); got != tt.want {
			t.Errorf("Label(%+v) = %q, want %q", tt.item, got, tt.want)
		}
	}
}
