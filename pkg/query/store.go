package query

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/cardscope/cardscope/pkg/api"
)

// Result is a render-ready query result: column labels plus stringified
// row values.
type Result struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Store runs validated query specs against a snapshot of a transaction
// table. The snapshot lives in an in-memory SQLite database, so the table
// the store was built from is never touched: every query reads the copy.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

const createTable = `CREATE TABLE transactions (
	transaction_id TEXT NOT NULL,
	date           TEXT NOT NULL,
	amount         REAL NOT NULL,
	city           TEXT NOT NULL,
	city_tier      TEXT NOT NULL,
	card_type      TEXT NOT NULL,
	category       TEXT NOT NULL,
	customer_id    TEXT NOT NULL,
	gender         TEXT NOT NULL,
	year           INTEGER NOT NULL,
	month          INTEGER NOT NULL,
	quarter        INTEGER NOT NULL,
	day_of_week    TEXT NOT NULL,
	is_weekend     INTEGER NOT NULL,
	spending_tier  TEXT NOT NULL
)`

// NewStore snapshots the table into a fresh in-memory database.
func NewStore(t *api.Table, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening query store: %w", err)
	}
	// A second connection would see its own empty :memory: database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating transactions table: %w", err)
	}

	if err := loadRows(db, t); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("query store ready", "rows", t.Len())
	return &Store{db: db, logger: logger}, nil
}

func loadRows(db *sql.DB, t *api.Table) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("loading query store: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO transactions VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("loading query store: %w", err)
	}
	defer stmt.Close()

	for _, row := range t.Rows {
		weekend := 0
		if row.Weekend {
			weekend = 1
		}
		amount, _ := row.Amount.Float64()
		_, err := stmt.Exec(
			row.ID,
			row.Date.Format("2006-01-02"),
			amount,
			row.City,
			string(row.CityTier),
			row.CardType,
			row.Category,
			row.CustomerID,
			row.Gender,
			row.Year,
			int(row.Month),
			row.Quarter,
			row.DayOfWeek.String(),
			weekend,
			string(row.SpendingTier),
		)
		if err != nil {
			return fmt.Errorf("loading query store: %w", err)
		}
	}
	return tx.Commit()
}

// Run parses expr, compiles the validated spec, and executes it against
// the snapshot. Invalid expressions fail with *api.InvalidQueryError and
// leave the snapshot untouched.
func (s *Store) Run(expr string) (*Result, error) {
	spec, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return s.RunSpec(spec)
}

// RunSpec executes an already-validated spec.
func (s *Store) RunSpec(spec *Spec) (*Result, error) {
	sqlText, args := compile(spec)
	s.logger.Debug("running query", "sql", sqlText)

	rows, err := s.db.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()

	cols := make([]string, len(spec.Select))
	for i, it := range spec.Select {
		cols[i] = it.Label()
	}

	result := &Result{Columns: cols}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("reading query result: %w", err)
		}
		out := make([]string, len(values))
		for i, v := range values {
			out[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading query result: %w", err)
	}
	return result, nil
}

// Close releases the in-memory database.
func (s *Store) Close() error {
	return s.db.Close()
}

// compile renders a validated spec as parameterized SQL. Every identifier
// comes from the whitelist the parser enforced, so only literals travel
// as arguments.
func compile(spec *Spec) (string, []any) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT ")
	for i, it := range spec.Select {
		if i > 0 {
			b.WriteString(", ")
		}
		switch {
		case it.Agg == AggNone:
			b.WriteString(it.Field)
		case it.Field == "*":
			b.WriteString("COUNT(*)")
		default:
			b.WriteString(strings.ToUpper(string(it.Agg)))
			b.WriteString("(")
			b.WriteString(it.Field)
			b.WriteString(")")
		}
	}
	b.WriteString(" FROM transactions")

	for i, cond := range spec.Where {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(cond.Field)
		switch cond.Op {
		case "in":
			b.WriteString(" IN (")
			for j, v := range cond.Values {
				if j > 0 {
					b.WriteString(", ")
				}
				b.WriteString("?")
				args = append(args, v)
			}
			b.WriteString(")")
		case "like":
			b.WriteString(" LIKE ?")
			args = append(args, cond.Values[0])
		default:
			b.WriteString(" ")
			b.WriteString(cond.Op)
			b.WriteString(" ?")
			args = append(args, cond.Values[0])
		}
	}

	if len(spec.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(spec.GroupBy, ", "))
	}

	if spec.OrderBy != nil {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderExpr(spec))
		if spec.OrderBy.Desc {
			b.WriteString(" DESC")
		}
	}

	if spec.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(spec.Limit))
	}

	return b.String(), args
}

// orderExpr maps an ORDER BY column back to its select expression, so
// ordering by an aggregate label like sum_amount works.
func orderExpr(spec *Spec) string {
	col := spec.OrderBy.Column
	for i, it := range spec.Select {
		if it.Label() == col {
			if it.Agg == AggNone {
				return it.Field
			}
			return strconv.Itoa(i + 1)
		}
	}
	return col
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
