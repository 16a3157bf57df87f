// Package session owns the lifecycle of one analysis session: the
// canonical table loaded from a source file, the active filter
// predicate, the filtered view derived from it, and the query store that
// snapshots that view for ad-hoc queries.
package session

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cardscope/cardscope/pkg/analytics"
	"github.com/cardscope/cardscope/pkg/api"
	"github.com/cardscope/cardscope/pkg/config"
	"github.com/cardscope/cardscope/pkg/filter"
	"github.com/cardscope/cardscope/pkg/loader"
	"github.com/cardscope/cardscope/pkg/query"
)

// Session is a single-user analysis context. It is not safe for
// concurrent use; callers serialize access.
type Session struct {
	ID     string
	cfg    *config.Config
	logger *slog.Logger

	canonical *api.Table
	quality   *api.QualityReport

	predicate filter.Predicate
	filtered  *api.Table

	store *query.Store
}

// New creates an empty session.
func New(cfg *config.Config, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		cfg:       cfg,
		logger:    logger.With("session", id),
		canonical: api.NewTable(nil),
		filtered:  api.NewTable(nil),
	}
}

// LoadCSV ingests a source file, replacing any previously loaded data and
// resetting the active filter. The returned quality report is also kept
// on the session.
func (s *Session) LoadCSV(r io.Reader) (*api.QualityReport, error) {
	table, report, err := loader.New(s.cfg, s.logger).Load(r)
	if err != nil {
		return report, err
	}

	s.canonical = table
	s.quality = report
	s.predicate = filter.Predicate{}
	s.filtered = api.NewTable(table.Rows)
	s.dropStore()

	s.logger.Info("dataset loaded",
		"rows", table.Len(),
		"bad_rows", report.BadRows,
		"from", table.MinDate.Format("2006-01-02"),
		"to", table.MaxDate.Format("2006-01-02"),
	)
	return report, nil
}

// SetFilter validates and applies a predicate, recomputing the filtered
// view. An invalid predicate leaves the current view in place.
func (s *Session) SetFilter(p filter.Predicate) error {
	filtered, err := filter.Apply(s.canonical, p)
	if err != nil {
		return err
	}
	s.predicate = p
	s.filtered = filtered
	s.dropStore()
	s.logger.Info("filter applied", "rows", filtered.Len(), "of", s.canonical.Len())
	return nil
}

// ClearFilter restores the unfiltered view.
func (s *Session) ClearFilter() {
	s.predicate = filter.Predicate{}
	s.filtered = api.NewTable(s.canonical.Rows)
	s.dropStore()
}

// Canonical returns the full loaded table.
func (s *Session) Canonical() *api.Table { return s.canonical }

// Filtered returns the current view. With no filter active this has the
// same rows as the canonical table.
func (s *Session) Filtered() *api.Table { return s.filtered }

// Predicate returns the active filter predicate.
func (s *Session) Predicate() filter.Predicate { return s.predicate }

// Quality returns the report from the last load, nil before any load.
func (s *Session) Quality() *api.QualityReport { return s.quality }

// Overview computes headline metrics for the current view.
func (s *Session) Overview() analytics.Overview {
	return analytics.Summarize(s.filtered)
}

// SummarizeBy groups the current view on the given dimension.
func (s *Session) SummarizeBy(key analytics.GroupKey) []analytics.Summary {
	return analytics.SummarizeBy(s.filtered, key)
}

// RFM scores the customers visible in the current view.
func (s *Session) RFM() []analytics.Score {
	return analytics.ComputeRFM(s.filtered, s.cfg.RFM)
}

// Query runs a restricted query expression over a snapshot of the
// current view. The snapshot is built on first use after each filter
// change; the underlying tables are never modified.
func (s *Session) Query(expr string) (*query.Result, error) {
	if s.store == nil {
		store, err := query.NewStore(s.filtered, s.logger)
		if err != nil {
			return nil, fmt.Errorf("preparing query store: %w", err)
		}
		s.store = store
	}
	return s.store.Run(expr)
}

// Close releases session resources.
func (s *Session) Close() error {
	s.dropStore()
	return nil
}

func (s *Session) dropStore() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("closing query store", "error", err)
		}
		s.store = nil
	}
}
