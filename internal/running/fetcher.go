package running

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/whoopsheet/internal/whoop"
)

// WorkoutLister is the slice of the WHOOP client the fetcher uses.
type WorkoutLister interface {
	ListWorkouts(ctx context.Context, start, end time.Time) ([]whoop.Workout, error)
}

// Fetcher pulls workouts and reduces them to DailyTotals.
type Fetcher struct {
	lister   WorkoutLister
	sportIDs map[int]bool
	logger   *slog.Logger
}

// NewFetcher keeps activities whose sport ID is in sportIDs; an empty list
// means running only.
func NewFetcher(lister WorkoutLister, sportIDs []int, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ids := make(map[int]bool, len(sportIDs))
	for _, id := range sportIDs {
		ids[id] = true
	}
	if len(ids) == 0 {
		ids[RunningSportID] = true
	}
	return &Fetcher{lister: lister, sportIDs: ids, logger: logger}
}

// Fetch returns running totals for workouts overlapping [start, end).
// Auth and API errors from the lister are returned unchanged in the chain.
func (f *Fetcher) Fetch(ctx context.Context, start, end time.Time) (DailyTotals, error) {
	f.logger.Info("fetching workouts", "start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"))
	workouts, err := f.lister.ListWorkouts(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("listing workouts: %w", err)
	}

	activities := make([]Activity, 0, len(workouts))
	for _, w := range workouts {
		activities = append(activities, Activity{
			ID:             string(w.ID),
			SportID:        w.SportID,
			Start:          w.Start,
			End:            w.End,
			TimezoneOffset: w.TimezoneOffset,
		})
	}

	totals := f.Aggregate(activities)
	f.logger.Info("aggregated running time", "days", len(totals), "total", totals.Total())
	return totals, nil
}

// Aggregate buckets running activities by the local date of their start,
// where local means the activity's own UTC offset.
func (f *Fetcher) Aggregate(activities []Activity) DailyTotals {
	totals := make(DailyTotals)
	for _, a := range activities {
		if !f.sportIDs[a.SportID] {
			continue
		}

		loc, err := ParseOffset(a.TimezoneOffset)
		if err != nil {
			f.logger.Warn("bad timezone offset, using UTC", "workout", a.ID, "offset", a.TimezoneOffset, "error", err)
			loc = time.UTC
		}

		localStart := a.Start.In(loc)
		day := DateOf(localStart)

		dur := a.End.Sub(a.Start)
		if dur <= 0 {
			f.logger.Warn("running workout has no duration", "workout", a.ID, "date", day)
			dur = 0
		}

		totals[day] += dur
		f.logger.Debug("running workout", "workout", a.ID, "date", day, "duration", dur)
	}
	return totals
}
