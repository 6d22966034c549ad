package sheet

import (
	"fmt"
	"strings"
	"time"
)

// Cell is a zero-based (row, column) position in a worksheet.
type Cell struct {
	Row int
	Col int
}

// ColumnName converts a zero-based column index to letters: 0→A, 26→AA.
func ColumnName(col int) string {
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// A1 renders the cell in A1 notation, prefixed with the quoted worksheet
// title when one is given.
func (c Cell) A1(worksheet string) string {
	ref := fmt.Sprintf("%s%d", ColumnName(c.Col), c.Row+1)
	if worksheet == "" {
		return ref
	}
	return QuoteSheetName(worksheet) + "!" + ref
}

// QuoteSheetName quotes a worksheet title for use in a range.
func QuoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

const (
	FormatMinutes = "minutes"
	FormatHM      = "hm"
)

// FormatDuration renders d for the sheet. "minutes" yields an integer number
// of whole minutes, which is what existing sheets hold; "hm" yields "H:MM".
func FormatDuration(d time.Duration, format string) any {
	minutes := int64(d / time.Minute)
	switch format {
	case FormatHM:
		return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
	default:
		return minutes
	}
}
