// Package export writes analysis results to CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/cardscope/cardscope/pkg/analytics"
	"github.com/cardscope/cardscope/pkg/api"
	"github.com/cardscope/cardscope/pkg/query"
)

// Writer renders tables, reports, and query results as CSV.
type Writer struct {
	logger *slog.Logger
}

// New creates an export writer.
func New(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// WriteTableFile dumps a transaction table to path.
func (w *Writer) WriteTableFile(path string, t *api.Table) error {
	return w.toFile(path, func(out io.Writer) error { return w.WriteTable(out, t) })
}

// WriteTable writes the normalized rows, derived fields included.
func (w *Writer) WriteTable(out io.Writer, t *api.Table) error {
	cw := csv.NewWriter(out)
	header := []string{
		"transaction_id", "date", "amount", "city", "city_tier", "card_type",
		"category", "customer_id", "gender", "year", "month", "quarter",
		"day_of_week", "is_weekend", "spending_tier",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, r := range t.Rows {
		record := []string{
			r.ID,
			r.Date.Format("2006-01-02"),
			r.Amount.String(),
			r.City,
			string(r.CityTier),
			r.CardType,
			r.Category,
			r.CustomerID,
			r.Gender,
			strconv.Itoa(r.Year),
			strconv.Itoa(int(r.Month)),
			strconv.Itoa(r.Quarter),
			r.DayOfWeek.String(),
			strconv.FormatBool(r.Weekend),
			string(r.SpendingTier),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	w.logger.Debug("wrote table", "rows", t.Len())
	return nil
}

// Report bundles everything the summary export contains.
type Report struct {
	Overview analytics.Overview
	ByCity   []analytics.Summary
	ByMonth  []analytics.Summary
	Segments []analytics.Summary
}

// WriteReportFile writes a summary report to path.
func (w *Writer) WriteReportFile(path string, r Report) error {
	return w.toFile(path, func(out io.Writer) error { return w.WriteReport(out, r) })
}

// WriteReport writes the headline metrics followed by the per-city,
// per-month, and customer-segment breakdowns, one titled section each.
func (w *Writer) WriteReport(out io.Writer, r Report) error {
	cw := csv.NewWriter(out)

	rows := [][]string{
		{"metric", "value"},
		{"transactions", strconv.Itoa(r.Overview.Transactions)},
		{"total_spend", r.Overview.TotalSpend.String()},
		{"mean_ticket", r.Overview.MeanTicket.StringFixed(2)},
		{"cities", strconv.Itoa(r.Overview.Cities)},
	}
	if r.Overview.Transactions > 0 {
		rows = append(rows,
			[]string{"from", r.Overview.From.Format("2006-01-02")},
			[]string{"to", r.Overview.To.Format("2006-01-02")},
		)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing overview: %w", err)
	}

	sections := []struct {
		title     string
		keyHeader string
		summaries []analytics.Summary
	}{
		{"spend by city", "city", r.ByCity},
		{"spend by month", "month", r.ByMonth},
		{"customer segments", "segment", r.Segments},
	}
	for _, sec := range sections {
		if len(sec.summaries) == 0 {
			continue
		}
		if err := cw.Write([]string{sec.title}); err != nil {
			return fmt.Errorf("writing section %q: %w", sec.title, err)
		}
		if err := cw.Write([]string{sec.keyHeader, "total", "count", "mean"}); err != nil {
			return fmt.Errorf("writing section %q: %w", sec.title, err)
		}
		for _, s := range sec.summaries {
			record := []string{s.Key, s.Sum.String(), strconv.Itoa(s.Count), s.Mean.StringFixed(2)}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("writing section %q: %w", sec.title, err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing report: %w", err)
	}
	return nil
}

// WriteResult writes a query result as plain CSV.
func (w *Writer) WriteResult(out io.Writer, r *query.Result) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(r.Columns); err != nil {
		return fmt.Errorf("writing result header: %w", err)
	}
	for _, row := range r.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing result row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing result: %w", err)
	}
	return nil
}

func (w *Writer) toFile(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening export file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}
	w.logger.Info("export written", "file", path)
	return nil
}
