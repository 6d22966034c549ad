package sheet

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/christopherklint97/whoopsheet/internal/running"
)

// Grid is the raw cell text of a worksheet, row-major. Row 0 is the header.
type Grid [][]string

// weekStartLayouts are tried in order; the first that parses wins.
var weekStartLayouts = []string{
	"2006-01-02",
	"2/1/06",
}

var dayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// ParseWeekStart parses a week-start cell in one of the accepted layouts.
func ParseWeekStart(s string) (running.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range weekStartLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return running.DateOf(t), true
		}
	}
	return running.Date{}, false
}

// WeekRow is a grid row whose column 0 holds a week-start date.
type WeekRow struct {
	Row   int
	Start running.Date
}

// Locator resolves dates to cells in a week-per-row layout.
type Locator struct {
	dayColumns map[time.Weekday]int
	weeks      []WeekRow // ascending by Start
	logger     *slog.Logger
}

func NewLocator(grid Grid, logger *slog.Logger) (*Locator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("worksheet is empty")
	}

	l := &Locator{
		dayColumns: make(map[time.Weekday]int),
		logger:     logger,
	}

	for col, cell := range grid[0] {
		wd, ok := dayNames[strings.ToLower(strings.TrimSpace(cell))]
		if !ok {
			continue
		}
		if _, dup := l.dayColumns[wd]; dup {
			logger.Warn("duplicate day column in header, keeping the first", "day", wd, "column", col)
			continue
		}
		l.dayColumns[wd] = col
	}
	if len(l.dayColumns) == 0 {
		return nil, fmt.Errorf("no day-of-week columns found in header row")
	}

	seen := make(map[running.Date]int)
	for i, row := range grid[1:] {
		rowIdx := i + 1
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		start, ok := ParseWeekStart(row[0])
		if !ok {
			logger.Warn("skipping row with unparseable week start", "row", rowIdx+1, "value", row[0])
			continue
		}
		if first, dup := seen[start]; dup {
			logger.Warn("duplicate week start, keeping the first row", "week", start, "row", rowIdx+1, "first_row", first+1)
			continue
		}
		seen[start] = rowIdx
		l.weeks = append(l.weeks, WeekRow{Row: rowIdx, Start: start})
	}

	sort.SliceStable(l.weeks, func(i, j int) bool { return l.weeks[i].Start.Before(l.weeks[j].Start) })

	logger.Debug("sheet layout", "day_columns", len(l.dayColumns), "week_rows", len(l.weeks))
	return l, nil
}

// Weeks returns the parsed week rows, oldest first.
func (l *Locator) Weeks() []WeekRow {
	return l.weeks
}

// Locate returns the cell for date, or a *CellNotFoundError.
func (l *Locator) Locate(date running.Date) (Cell, error) {
	// Latest week starting on or before date.
	i := sort.Search(len(l.weeks), func(i int) bool { return date.Before(l.weeks[i].Start) })
	if i == 0 {
		return Cell{}, &CellNotFoundError{Date: date, Reason: "before the earliest week row"}
	}
	week := l.weeks[i-1]
	if !date.Before(week.Start.AddDays(7)) {
		return Cell{}, &CellNotFoundError{
			Date:   date,
			Reason: fmt.Sprintf("no week row covers it (closest starts %s)", week.Start),
		}
	}

	col, ok := l.dayColumns[date.Weekday()]
	if !ok {
		return Cell{}, &CellNotFoundError{Date: date, Reason: fmt.Sprintf("no %s column in header", date.Weekday())}
	}

	return Cell{Row: week.Row, Col: col}, nil
}
