package sheet

import (
	"fmt"
	"strings"

	"github.com/christopherklint97/whoopsheet/internal/running"
)

// CellNotFoundError means a date has no week-row/day-column in the sheet.
type CellNotFoundError struct {
	Date   running.Date
	Reason string
}

func (e *CellNotFoundError) Error() string {
	return fmt.Sprintf("cell not found for %s (%s): %s", e.Date, e.Date.Weekday(), e.Reason)
}

// WriteError means the batch could not be written. Cells lists the updates
// that were out of bounds, or the whole batch when the API rejected it.
type WriteError struct {
	Cells  []Update
	Reason string
	Err    error
}

func (e *WriteError) Error() string {
	refs := make([]string, 0, len(e.Cells))
	for _, u := range e.Cells {
		refs = append(refs, fmt.Sprintf("%s=%s", u.Date, u.Cell.A1("")))
	}
	msg := fmt.Sprintf("sheet write failed: %s [%s]", e.Reason, strings.Join(refs, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WriteError) Unwrap() error { return e.Err }
