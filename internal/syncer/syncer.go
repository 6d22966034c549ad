// Package syncer runs one WHOOP to spreadsheet sync: authenticate, fetch
// running totals, place each day in the sheet, and write the batch.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/whoopsheet/internal/metrics"
	"github.com/christopherklint97/whoopsheet/internal/notify"
	"github.com/christopherklint97/whoopsheet/internal/running"
	"github.com/christopherklint97/whoopsheet/internal/sheet"
	"github.com/christopherklint97/whoopsheet/internal/store"
)

type Authenticator interface {
	EnsureValidToken(ctx context.Context) (string, error)
}

type TotalsFetcher interface {
	Fetch(ctx context.Context, start, end time.Time) (running.DailyTotals, error)
}

// Spreadsheet is the part of the Sheets client a run needs.
type Spreadsheet interface {
	sheet.BatchUpdater
	ReadGrid(ctx context.Context, worksheet string) (sheet.Grid, sheet.Bounds, error)
}

// SheetOpener connects to the spreadsheet. It is only called once there is
// something to write.
type SheetOpener func(ctx context.Context) (Spreadsheet, error)

type History interface {
	RecordRun(r *store.Run, cells []store.WrittenCell) error
}

type Notifier interface {
	RunFinished(s notify.Summary) (bool, error)
}

type MetricsPusher interface {
	Push(ctx context.Context, s metrics.RunStats) error
}

// Deps are the collaborators of a Syncer. History, Notifier and Metrics
// are optional.
type Deps struct {
	Auth      Authenticator
	Fetcher   TotalsFetcher
	OpenSheet SheetOpener
	History   History
	Notifier  Notifier
	Metrics   MetricsPusher
}

type Options struct {
	Worksheet      string
	DurationFormat string
	DryRun         bool
}

// CellUpdate is a day that was (or, in a dry run, would be) written.
type CellUpdate struct {
	Date     running.Date
	Duration time.Duration
	Range    string
	Value    any
}

// FailedDate is a day with running time that had no cell in the sheet.
type FailedDate struct {
	Date     running.Date
	Duration time.Duration
	Err      error
}

type Result struct {
	RunID   string
	Start   time.Time
	End     time.Time
	DryRun  bool
	Updated []CellUpdate
	Skipped []running.Date
	Failed  []FailedDate
}

// HasFailures reports whether any date could not be placed.
func (r *Result) HasFailures() bool {
	return len(r.Failed) > 0
}

func (r *Result) failedDates() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Date.String())
	}
	return out
}

type Syncer struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func New(deps Deps, opts Options, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Worksheet == "" {
		opts.Worksheet = "Running"
	}
	if opts.DurationFormat == "" {
		opts.DurationFormat = sheet.FormatMinutes
	}
	return &Syncer{deps: deps, opts: opts, logger: logger, now: time.Now}
}

// Run syncs running time for [start, end). Dates without a matching cell
// are collected in Result.Failed and do not stop the run; auth, fetch,
// sheet read and write errors do. The result is non-nil even on error.
func (s *Syncer) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	started := s.now()
	res := &Result{
		RunID:  store.NewRunID(),
		Start:  start,
		End:    end,
		DryRun: s.opts.DryRun,
	}

	s.logger.Info("sync started", "run_id", res.RunID, "start", start.Format(time.RFC3339), "end", end.Format(time.RFC3339), "dry_run", s.opts.DryRun)
	err := s.run(ctx, res)
	s.finish(ctx, res, started, err)
	return res, err
}

func (s *Syncer) run(ctx context.Context, res *Result) error {
	if _, err := s.deps.Auth.EnsureValidToken(ctx); err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	totals, err := s.deps.Fetcher.Fetch(ctx, res.Start, res.End)
	if err != nil {
		return fmt.Errorf("fetching running totals: %w", err)
	}
	if len(totals) == 0 {
		s.logger.Warn("no running activities in range, nothing to write")
		return nil
	}

	ss, err := s.deps.OpenSheet(ctx)
	if err != nil {
		return fmt.Errorf("opening spreadsheet: %w", err)
	}
	grid, bounds, err := ss.ReadGrid(ctx, s.opts.Worksheet)
	if err != nil {
		return fmt.Errorf("reading worksheet: %w", err)
	}
	locator, err := sheet.NewLocator(grid, s.logger)
	if err != nil {
		return fmt.Errorf("parsing worksheet %q: %w", s.opts.Worksheet, err)
	}

	var updates []sheet.Update
	for _, date := range totals.Dates() {
		d := totals[date]
		if d < time.Minute {
			s.logger.Info("skipping day with no whole minutes", "date", date, "duration", d)
			res.Skipped = append(res.Skipped, date)
			continue
		}

		cell, err := locator.Locate(date)
		if err != nil {
			var nf *sheet.CellNotFoundError
			if !errors.As(err, &nf) {
				return err
			}
			s.logger.Warn("no cell for date", "date", date, "duration", d, "reason", nf.Reason)
			res.Failed = append(res.Failed, FailedDate{Date: date, Duration: d, Err: err})
			continue
		}

		value := sheet.FormatDuration(d, s.opts.DurationFormat)
		updates = append(updates, sheet.Update{Date: date, Cell: cell, Value: value})
		res.Updated = append(res.Updated, CellUpdate{
			Date:     date,
			Duration: d,
			Range:    cell.A1(s.opts.Worksheet),
			Value:    value,
		})
	}

	if len(updates) == 0 {
		return nil
	}

	if s.opts.DryRun {
		for _, u := range res.Updated {
			s.logger.Info("dry run: would update cell", "date", u.Date, "range", u.Range, "value", u.Value)
		}
		return nil
	}

	writer := sheet.NewWriter(ss, s.opts.Worksheet, bounds, s.logger)
	if _, err := writer.Write(ctx, updates); err != nil {
		res.Updated = nil
		return err
	}
	return nil
}

// finish records the run's side outputs. Failures here are logged only.
func (s *Syncer) finish(ctx context.Context, res *Result, started time.Time, runErr error) {
	finished := s.now()

	status := store.StatusOK
	switch {
	case runErr != nil:
		status = store.StatusFailed
	case res.HasFailures():
		status = store.StatusPartial
	case res.DryRun:
		status = store.StatusDryRun
	}

	s.logger.Info("sync finished",
		"run_id", res.RunID,
		"status", status,
		"updated", len(res.Updated),
		"skipped", len(res.Skipped),
		"failed", len(res.Failed),
		"duration", finished.Sub(started).Round(time.Millisecond),
	)

	if s.deps.History != nil {
		run := &store.Run{
			ID:         res.RunID,
			StartedAt:  started,
			FinishedAt: finished,
			RangeStart: res.Start,
			RangeEnd:   res.End,
			Updated:    len(res.Updated),
			Skipped:    len(res.Skipped),
			Failed:     len(res.Failed),
			Status:     status,
		}
		if runErr != nil {
			run.Error = runErr.Error()
		}
		var cells []store.WrittenCell
		if !res.DryRun {
			for _, u := range res.Updated {
				cells = append(cells, store.WrittenCell{Date: u.Date.String(), Range: u.Range, Value: fmt.Sprint(u.Value)})
			}
		}
		if err := s.deps.History.RecordRun(run, cells); err != nil {
			s.logger.Warn("failed to record run history", "run_id", res.RunID, "error", err)
		}
	}

	if s.deps.Notifier != nil {
		if _, err := s.deps.Notifier.RunFinished(notify.Summary{
			Updated: len(res.Updated),
			Failed:  res.failedDates(),
			Err:     runErr,
		}); err != nil {
			s.logger.Warn("failed to send notification", "error", err)
		}
	}

	if s.deps.Metrics != nil && !res.DryRun {
		if err := s.deps.Metrics.Push(ctx, metrics.RunStats{
			Updated:  len(res.Updated),
			Skipped:  len(res.Skipped),
			Failed:   len(res.Failed),
			Duration: finished.Sub(started),
			Finished: finished,
			Success:  runErr == nil && !res.HasFailures(),
		}); err != nil {
			s.logger.Warn("failed to push metrics", "error", err)
		}
	}
}
