// Package loader reads a delimited transaction dataset and produces the
// canonical table.
//
// The loader is tolerant by design: malformed rows are collected into a
// quality report instead of aborting the load, unless their fraction
// crosses the configured threshold. Only a missing required column is
// immediately fatal for the load attempt.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardscope/cardscope/pkg/api"
	"github.com/cardscope/cardscope/pkg/config"
)

// Loader normalizes row-oriented input into an api.Table.
type Loader struct {
	cfg    *config.Config
	logger *slog.Logger

	tier1    map[string]bool
	tier2    map[string]bool
	catNames map[string]string // lowered category -> canonical spelling
}

// New creates a Loader. The config's city lists and category names are
// pre-lowered once so per-row lookups stay cheap.
func New(cfg *config.Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Loader{
		cfg:      cfg,
		logger:   logger,
		tier1:    citySet(cfg.Tier1Cities),
		tier2:    citySet(cfg.Tier2Cities),
		catNames: make(map[string]string, len(cfg.Categories)),
	}
	for _, c := range cfg.Categories {
		l.catNames[strings.ToLower(c)] = c
	}
	return l
}

// columnIndex maps canonical fields to source column positions.
// A field absent from the source maps to -1.
type columnIndex map[string]int

// Load reads CSV data and returns the canonical table plus a quality
// report. The error is a *api.SchemaError when a required column is
// missing, or a *api.DataQualityError when too many rows are malformed.
func (l *Loader) Load(r io.Reader) (*api.Table, *api.QualityReport, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header row: %w", err)
	}

	cols, err := l.mapColumns(headers)
	if err != nil {
		return nil, nil, err
	}

	report := &api.QualityReport{}
	var rows []api.Transaction

	for rowNum := 1; ; rowNum++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.TotalRows++
			report.BadRows++
			report.Issues = append(report.Issues, api.QualityIssue{
				Row: rowNum, Field: "-", Reason: fmt.Sprintf("unparseable row: %v", err),
			})
			continue
		}

		report.TotalRows++
		txn, issues := l.parseRow(rowNum, record, cols)
		if len(issues) > 0 {
			report.BadRows++
			report.Issues = append(report.Issues, issues...)
			continue
		}
		rows = append(rows, txn)
	}

	if report.BadFraction() > l.cfg.MaxBadRowFraction {
		return nil, report, &api.DataQualityError{
			BadRows:   report.BadRows,
			TotalRows: report.TotalRows,
			Threshold: l.cfg.MaxBadRowFraction,
		}
	}

	table := api.NewTable(rows)
	l.logger.Info("dataset loaded",
		"rows", table.Len(),
		"bad_rows", report.BadRows,
		"cities", len(table.Cities()),
	)
	return table, report, nil
}

// mapColumns resolves source headers against the configured aliases.
func (l *Loader) mapColumns(headers []string) (columnIndex, error) {
	byAlias := make(map[string]string) // normalized alias -> canonical field
	for field, aliases := range l.cfg.Columns {
		for _, a := range aliases {
			byAlias[normalizeHeader(a)] = field
		}
	}

	cols := columnIndex{}
	for field := range l.cfg.Columns {
		cols[field] = -1
	}
	for i, h := range headers {
		if field, ok := byAlias[normalizeHeader(h)]; ok && cols[field] == -1 {
			cols[field] = i
		}
		// Extra columns are ignored.
	}

	for _, field := range config.RequiredFields {
		if cols[field] == -1 {
			return nil, &api.SchemaError{Field: field}
		}
	}
	return cols, nil
}

// parseRow converts one source record into a Transaction. All issues for
// the row are returned together so the quality report names every
// offending field, not just the first.
func (l *Loader) parseRow(rowNum int, record []string, cols columnIndex) (api.Transaction, []api.QualityIssue) {
	get := func(field string) string {
		i := cols[field]
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var issues []api.QualityIssue
	bad := func(field, value, reason string) {
		issues = append(issues, api.QualityIssue{Row: rowNum, Field: field, Value: value, Reason: reason})
	}

	date, err := l.parseDate(get("date"))
	if err != nil {
		bad("date", get("date"), err.Error())
	}

	amount, err := parseAmount(get("amount"))
	if err != nil {
		bad("amount", get("amount"), err.Error())
	}

	city := titleCase(get("city"))
	if city == "" {
		bad("city", "", "empty city")
	}

	customer := get("customer_id")
	if customer == "" {
		bad("customer_id", "", "empty customer id")
	}

	if len(issues) > 0 {
		return api.Transaction{}, issues
	}

	id := get("transaction_id")
	if id == "" {
		id = uuid.NewString()
	}

	txn := api.Transaction{
		ID:         id,
		Date:       date,
		Amount:     amount,
		City:       city,
		CityTier:   l.tierFor(city),
		CardType:   titleCase(get("card_type")),
		CustomerID: customer,
		Gender:     titleCase(get("gender")),
	}
	txn.Category = l.resolveCategory(get("category"), get("description"))
	l.deriveCalendar(&txn)
	txn.SpendingTier = l.spendingTier(amount)
	return txn, nil
}

// parseDate tries each configured layout in order.
func (l *Loader) parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range l.cfg.DateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

// parseAmount parses a currency amount, tolerating thousands separators
// and a leading currency symbol. Non-positive amounts are rejected.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	cleaned := strings.ReplaceAll(s, ",", "")
	cleaned = strings.TrimLeft(cleaned, "₹$€£ ")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive amount")
	}
	return d, nil
}

// normalizeHeader lowers a header and collapses spaces and dashes, so
// "Card Type", "card-type" and "card_type" all match.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

func citySet(cities []string) map[string]bool {
	set := make(map[string]bool, len(cities))
	for _, c := range cities {
		set[normalizeCity(c)] = true
	}
	return set
}
