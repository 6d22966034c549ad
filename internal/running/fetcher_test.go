package running

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/whoopsheet/internal/whoop"
)

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func day(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAggregateIgnoresOtherSports(t *testing.T) {
	f := NewFetcher(nil, nil, nil)
	totals := f.Aggregate([]Activity{
		{ID: "cycle", SportID: 1, Start: utc("2024-06-03T06:00:00Z"), End: utc("2024-06-03T07:00:00Z")},
		{ID: "yoga", SportID: 44, Start: utc("2024-06-04T06:00:00Z"), End: utc("2024-06-04T07:00:00Z")},
	})
	assert.Empty(t, totals)
}

func TestAggregateSumsSameLocalDay(t *testing.T) {
	f := NewFetcher(nil, nil, nil)
	totals := f.Aggregate([]Activity{
		{ID: "a", SportID: 0, Start: utc("2024-06-03T06:00:00Z"), End: utc("2024-06-03T06:30:00Z"), TimezoneOffset: "+00:00"},
		{ID: "b", SportID: 0, Start: utc("2024-06-03T18:00:00Z"), End: utc("2024-06-03T18:45:00Z"), TimezoneOffset: "+00:00"},
		{ID: "c", SportID: 1, Start: utc("2024-06-03T19:00:00Z"), End: utc("2024-06-03T20:00:00Z"), TimezoneOffset: "+00:00"},
	})
	require.Len(t, totals, 1)
	assert.Equal(t, 75*time.Minute, totals[day("2024-06-03")])
}

func TestAggregateUsesActivityOffset(t *testing.T) {
	f := NewFetcher(nil, nil, nil)
	totals := f.Aggregate([]Activity{
		// 23:30 UTC on the 3rd is 01:30 on the 4th at +02:00.
		{ID: "east", SportID: 0, Start: utc("2024-06-03T23:30:00Z"), End: utc("2024-06-04T00:10:00Z"), TimezoneOffset: "+02:00"},
		// 02:00 UTC on the 5th is 21:00 on the 4th at -05:00.
		{ID: "west", SportID: 0, Start: utc("2024-06-05T02:00:00Z"), End: utc("2024-06-05T02:20:00Z"), TimezoneOffset: "-05:00"},
	})
	require.Len(t, totals, 1)
	assert.Equal(t, 60*time.Minute, totals[day("2024-06-04")])
}

func TestAggregateBadOffsetFallsBackToUTC(t *testing.T) {
	f := NewFetcher(nil, nil, nil)
	totals := f.Aggregate([]Activity{
		{ID: "x", SportID: 0, Start: utc("2024-06-03T23:30:00Z"), End: utc("2024-06-03T23:50:00Z"), TimezoneOffset: "garbage"},
	})
	assert.Equal(t, 20*time.Minute, totals[day("2024-06-03")])
}

func TestAggregateZeroDurationKeepsBucket(t *testing.T) {
	f := NewFetcher(nil, nil, nil)
	totals := f.Aggregate([]Activity{
		{ID: "z", SportID: 0, Start: utc("2024-06-03T06:00:00Z"), End: utc("2024-06-03T06:00:00Z")},
		{ID: "neg", SportID: 0, Start: utc("2024-06-03T07:00:00Z"), End: utc("2024-06-03T06:00:00Z")},
	})
	v, ok := totals[day("2024-06-03")]
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestAggregateCustomSportIDs(t *testing.T) {
	f := NewFetcher(nil, []int{0, 63}, nil)
	totals := f.Aggregate([]Activity{
		{ID: "run", SportID: 0, Start: utc("2024-06-03T06:00:00Z"), End: utc("2024-06-03T06:30:00Z")},
		{ID: "walk", SportID: 63, Start: utc("2024-06-03T08:00:00Z"), End: utc("2024-06-03T08:10:00Z")},
	})
	assert.Equal(t, 40*time.Minute, totals[day("2024-06-03")])
}

type fakeLister struct {
	workouts []whoop.Workout
	err      error
}

func (f *fakeLister) ListWorkouts(ctx context.Context, start, end time.Time) ([]whoop.Workout, error) {
	return f.workouts, f.err
}

func TestFetchConvertsWorkouts(t *testing.T) {
	lister := &fakeLister{workouts: []whoop.Workout{
		{ID: "1", SportID: 0, Start: utc("2024-06-03T06:00:00Z"), End: utc("2024-06-03T06:42:00Z"), TimezoneOffset: "+01:00"},
		{ID: "2", SportID: 0, Start: utc("2024-06-05T06:00:00Z"), End: utc("2024-06-05T06:30:00Z"), TimezoneOffset: "+01:00"},
	}}
	f := NewFetcher(lister, nil, nil)

	totals, err := f.Fetch(context.Background(), utc("2024-06-01T00:00:00Z"), utc("2024-06-08T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []Date{day("2024-06-03"), day("2024-06-05")}, totals.Dates())
	assert.Equal(t, 72*time.Minute, totals.Total())
}

func TestFetchPropagatesAuthError(t *testing.T) {
	f := NewFetcher(&fakeLister{err: &whoop.AuthError{Reason: "expired"}}, nil, nil)

	_, err := f.Fetch(context.Background(), time.Now().Add(-time.Hour), time.Now())
	var authErr *whoop.AuthError
	require.True(t, errors.As(err, &authErr))
}

func TestParseOffset(t *testing.T) {
	cases := map[string]int{
		"+02:00": 2 * 3600,
		"-05:00": -5 * 3600,
		"+05:30": 5*3600 + 30*60,
		"-0330":  -(3*3600 + 30*60),
		"Z":      0,
		"":       0,
	}
	for in, want := range cases {
		loc, err := ParseOffset(in)
		require.NoError(t, err, in)
		_, got := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"02:00", "+ab:00", "+02:75", "+99:00"} {
		_, err := ParseOffset(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateHelpers(t *testing.T) {
	d := day("2024-06-03")
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, "2024-06-10", d.AddDays(7).String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.False(t, d.Before(d))
}
