package sheet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/whoopsheet/internal/running"
)

func date(s string) running.Date {
	d, err := running.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleGrid() Grid {
	return Grid{
		{"Week", " monday ", "Tuesday", "WEDNESDAY", "Thursday", "Friday", "Saturday", "Sunday", "Total"},
		{"2024-05-27", "", "", "", "", "", "", ""},
		{"03/06/24", "30"},
		{"not a date", "x"},
		{""},
		{"2024-06-10"},
	}
}

func TestLocatorResolvesWednesday(t *testing.T) {
	l, err := NewLocator(sampleGrid(), nil)
	require.NoError(t, err)

	cell, err := l.Locate(date("2024-06-05"))
	require.NoError(t, err)
	assert.Equal(t, Cell{Row: 2, Col: 3}, cell)
	assert.Equal(t, "D3", cell.A1(""))
}

func TestLocatorHeaderNormalization(t *testing.T) {
	l, err := NewLocator(sampleGrid(), nil)
	require.NoError(t, err)

	mon, err := l.Locate(date("2024-06-03"))
	require.NoError(t, err)
	assert.Equal(t, 1, mon.Col, "' monday ' matches Monday")

	sun, err := l.Locate(date("2024-06-16"))
	require.NoError(t, err)
	assert.Equal(t, Cell{Row: 5, Col: 7}, sun)
}

func TestLocatorAcceptsBothDateFormats(t *testing.T) {
	l, err := NewLocator(sampleGrid(), nil)
	require.NoError(t, err)

	weeks := l.Weeks()
	require.Len(t, weeks, 3, "malformed and blank rows are skipped")
	assert.Equal(t, date("2024-05-27"), weeks[0].Start)
	assert.Equal(t, date("2024-06-03"), weeks[1].Start)
	assert.Equal(t, 2, weeks[1].Row)
	assert.Equal(t, date("2024-06-10"), weeks[2].Start)
}

func TestLocatorNotFound(t *testing.T) {
	l, err := NewLocator(sampleGrid(), nil)
	require.NoError(t, err)

	for _, d := range []string{"2024-05-26", "2024-06-17", "2025-01-01"} {
		_, err := l.Locate(date(d))
		var nf *CellNotFoundError
		require.True(t, errors.As(err, &nf), d)
		assert.Equal(t, date(d), nf.Date)
		assert.Contains(t, nf.Error(), d)
	}
}

func TestLocatorGapBetweenWeeks(t *testing.T) {
	l, err := NewLocator(Grid{
		{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
		{"2024-06-03"},
		{"2024-06-17"},
	}, nil)
	require.NoError(t, err)

	_, err = l.Locate(date("2024-06-12"))
	var nf *CellNotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestLocatorUnsortedRows(t *testing.T) {
	l, err := NewLocator(Grid{
		{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
		{"2024-06-10"},
		{"2024-06-03"},
	}, nil)
	require.NoError(t, err)

	cell, err := l.Locate(date("2024-06-04"))
	require.NoError(t, err)
	assert.Equal(t, 2, cell.Row)
}

func TestLocatorMissingWeekdayColumn(t *testing.T) {
	l, err := NewLocator(Grid{
		{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		{"2024-06-03"},
	}, nil)
	require.NoError(t, err)

	_, err = l.Locate(date("2024-06-08"))
	var nf *CellNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Contains(t, nf.Reason, "Saturday")
}

func TestNewLocatorErrors(t *testing.T) {
	_, err := NewLocator(nil, nil)
	require.Error(t, err)

	_, err = NewLocator(Grid{{"Week", "Distance"}}, nil)
	require.Error(t, err)
}

func TestParseWeekStart(t *testing.T) {
	d, ok := ParseWeekStart("2024-06-03")
	require.True(t, ok)
	assert.Equal(t, date("2024-06-03"), d)

	for _, s := range []string{" 03/06/24 ", "3/6/24", "03/6/24", "3/06/24"} {
		d, ok = ParseWeekStart(s)
		require.True(t, ok, s)
		assert.Equal(t, date("2024-06-03"), d, s)
	}

	for _, bad := range []string{"June 3", "2024/06/03", "32/01/24", ""} {
		_, ok := ParseWeekStart(bad)
		assert.False(t, ok, bad)
	}
}
