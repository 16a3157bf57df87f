package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cardscope/cardscope/pkg/analytics"
	"github.com/cardscope/cardscope/pkg/api"
	"github.com/cardscope/cardscope/pkg/config"
	"github.com/cardscope/cardscope/pkg/export"
	"github.com/cardscope/cardscope/pkg/filter"
	"github.com/cardscope/cardscope/pkg/session"
)

func run(opts options, logger *slog.Logger) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	sess := session.New(cfg, logger)
	defer sess.Close()

	f, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	report, err := sess.LoadCSV(f)
	if err != nil {
		var dq *api.DataQualityError
		if errors.As(err, &dq) {
			printQualityIssues(report)
		}
		return err
	}
	if report.BadRows > 0 {
		logger.Warn("rows dropped during load", "bad_rows", report.BadRows, "total_rows", report.TotalRows)
	}

	pred, err := buildPredicate(opts)
	if err != nil {
		return err
	}
	if !pred.IsEmpty() {
		if err := sess.SetFilter(pred); err != nil {
			return err
		}
	}

	printOverview(sess.Overview())

	if opts.groupBy != "" {
		summaries := sess.SummarizeBy(analytics.GroupKey(opts.groupBy))
		printSummaries(opts.groupBy, summaries)
	}

	if opts.rfm {
		scores := sess.RFM()
		printSummaries("segment", analytics.SegmentCounts(scores))
	}

	if opts.query != "" {
		result, err := sess.Query(opts.query)
		if err != nil {
			return err
		}
		if err := export.New(logger).WriteResult(os.Stdout, result); err != nil {
			return err
		}
	}

	if opts.exportTo != "" {
		if err := export.New(logger).WriteTableFile(opts.exportTo, sess.Filtered()); err != nil {
			return err
		}
	}

	if opts.reportTo != "" {
		rep := export.Report{
			Overview: sess.Overview(),
			ByCity:   sess.SummarizeBy(analytics.ByCity),
			ByMonth:  sess.SummarizeBy(analytics.ByMonth),
			Segments: analytics.SegmentCounts(sess.RFM()),
		}
		if err := export.New(logger).WriteReportFile(opts.reportTo, rep); err != nil {
			return err
		}
	}

	return nil
}

func buildPredicate(opts options) (filter.Predicate, error) {
	pred := filter.Predicate{
		Cities:    opts.cities,
		Genders:   opts.genders,
		CardTypes: opts.cardTypes,
	}
	if opts.from == "" && opts.to == "" {
		return pred, nil
	}

	parse := func(name, v string, fallback time.Time) (time.Time, error) {
		if v == "" {
			return fallback, nil
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid -%s date %q: %w", name, v, err)
		}
		return t, nil
	}

	start, err := parse("from", opts.from, time.Time{})
	if err != nil {
		return pred, err
	}
	end, err := parse("to", opts.to, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return pred, err
	}
	pred.DateRange = &filter.DateRange{Start: start, End: end}
	return pred, nil
}

func printOverview(o analytics.Overview) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "transactions\t%d\n", o.Transactions)
	fmt.Fprintf(w, "total spend\t%s\n", o.TotalSpend.StringFixed(2))
	fmt.Fprintf(w, "mean ticket\t%s\n", o.MeanTicket.StringFixed(2))
	fmt.Fprintf(w, "cities\t%d\n", o.Cities)
	if o.Transactions > 0 {
		fmt.Fprintf(w, "window\t%s to %s\n", o.From.Format("2006-01-02"), o.To.Format("2006-01-02"))
	}
	w.Flush()
	fmt.Println()
}

func printSummaries(dim string, summaries []analytics.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\ttotal\tcount\tmean\n", dim)
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Key, s.Sum.StringFixed(2), s.Count, s.Mean.StringFixed(2))
	}
	w.Flush()
	fmt.Println()
}

func printQualityIssues(report *api.QualityReport) {
	if report == nil {
		return
	}
	max := len(report.Issues)
	if max > 20 {
		max = 20
	}
	for _, issue := range report.Issues[:max] {
		fmt.Fprintf(os.Stderr, "row %d: %s %q: %s\n", issue.Row, issue.Field, issue.Value, issue.Reason)
	}
	if len(report.Issues) > max {
		fmt.Fprintf(os.Stderr, "... and %d more\n", len(report.Issues)-max)
	}
}
