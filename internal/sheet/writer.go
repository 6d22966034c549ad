package sheet

import (
	"context"
	"io"
	"log/slog"

	"github.com/christopherklint97/whoopsheet/internal/running"
)

// Update is one value destined for one cell.
type Update struct {
	Date  running.Date
	Cell  Cell
	Value any
}

// Bounds is the worksheet's grid size as reported by the API.
type Bounds struct {
	Rows int
	Cols int
}

func (b Bounds) Contains(c Cell) bool {
	return c.Row >= 0 && c.Col >= 0 && c.Row < b.Rows && c.Col < b.Cols
}

// BatchUpdater sends every update in a single request. *Client implements it.
type BatchUpdater interface {
	BatchUpdate(ctx context.Context, worksheet string, updates []Update) error
}

// Writer batches resolved cells into one update call.
type Writer struct {
	api       BatchUpdater
	worksheet string
	bounds    Bounds
	logger    *slog.Logger
}

func NewWriter(api BatchUpdater, worksheet string, bounds Bounds, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{api: api, worksheet: worksheet, bounds: bounds, logger: logger}
}

// Write validates every cell against the sheet bounds, then writes them all
// at once. Nothing is sent if any cell is out of bounds.
func (w *Writer) Write(ctx context.Context, updates []Update) ([]string, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	var outside []Update
	for _, u := range updates {
		if !w.bounds.Contains(u.Cell) {
			outside = append(outside, u)
		}
	}
	if len(outside) > 0 {
		return nil, &WriteError{Cells: outside, Reason: "cells outside worksheet bounds"}
	}

	if err := w.api.BatchUpdate(ctx, w.worksheet, updates); err != nil {
		return nil, &WriteError{Cells: updates, Reason: "batch update rejected", Err: err}
	}

	ranges := make([]string, 0, len(updates))
	for _, u := range updates {
		ranges = append(ranges, u.Cell.A1(w.worksheet))
		w.logger.Info("updated cell", "date", u.Date, "day", u.Date.Weekday(), "cell", u.Cell.A1(""), "value", u.Value)
	}
	return ranges, nil
}
