package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/christopherklint97/whoopsheet/internal/store"
	"github.com/christopherklint97/whoopsheet/internal/syncer"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case store.StatusOK:
		return successStyle
	case store.StatusPartial:
		return warningStyle
	case store.StatusFailed:
		return errorStyle
	default:
		return dimStyle
	}
}

func printResult(res *syncer.Result) {
	title := "Sync complete"
	if res.DryRun {
		title = "Dry run (nothing written)"
	}
	fmt.Println(titleStyle.Render(title))

	for _, u := range res.Updated {
		fmt.Printf("  %s %s  %-12s %v\n",
			successStyle.Render("✓"), u.Date, dimStyle.Render(u.Range), u.Value)
	}
	for _, d := range res.Skipped {
		fmt.Printf("  %s %s  %s\n", dimStyle.Render("-"), d, dimStyle.Render("under a minute, skipped"))
	}
	for _, f := range res.Failed {
		fmt.Printf("  %s %s  %s\n", errorStyle.Render("✗"), f.Date, warningStyle.Render("no matching cell"))
	}

	summary := fmt.Sprintf("%d updated, %d skipped, %d failed", len(res.Updated), len(res.Skipped), len(res.Failed))
	if res.HasFailures() {
		fmt.Println("\n" + warningStyle.Render(summary))
		return
	}
	fmt.Println("\n" + subtitleStyle.Render(summary))
}

func runsTable(runs []store.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Local().Format("2006-01-02 15:04")
		}
		window := r.RangeStart.Local().Format("01-02") + " to " + r.RangeEnd.Local().Format("01-02")
		rows = append(rows, []string{
			finished,
			r.Status,
			window,
			strconv.Itoa(r.Updated),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
			shorten(r.Error, 40),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("FINISHED", "STATUS", "WINDOW", "UPDATED", "SKIPPED", "FAILED", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(rows) {
				return statusStyle(rows[row][1]).Padding(0, 1)
			}
			return cellStyle
		})
	return t.String()
}

func shorten(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
