package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"saldo/internal/format"
	"saldo/internal/services"
)

var (
	successSymbol = "✓"
	warningSymbol = "!"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FFAF00", Dark: "#FFAF00"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	headerStyle  = lipgloss.NewStyle().Bold(true)
	incomeStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00AF5F", Dark: "#00D787"})
	expenseStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F87"})
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", successStyle.Render(successSymbol), message)
}

func printWarning(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", warningStyle.Render(warningSymbol), warningStyle.Render(message))
}

func printInfo(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", infoStyle.Render(infoSymbol), message)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type column struct {
	title string
	right bool
}

// printTable pads by display width so that wide runes keep columns aligned.
// style may color a cell; it is applied after padding.
func printTable(w io.Writer, cols []column, rows [][]string, style func(row, col int) lipgloss.Style) {
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = runewidth.StringWidth(c.title)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	pad := func(cell string, i int) string {
		if cols[i].right {
			return runewidth.FillLeft(cell, widths[i])
		}
		return runewidth.FillRight(cell, widths[i])
	}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = headerStyle.Render(pad(c.title, i))
	}
	_, _ = fmt.Fprintln(w, strings.TrimRight(strings.Join(header, "  "), " "))

	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = pad(cell, i)
			if style != nil {
				cells[i] = style(r, i).Render(cells[i])
			}
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func printRows(w io.Writer, res services.Result) {
	cols := []column{{title: "ID"}, {title: "Date"}, {title: "Description"}, {title: "Category"}, {title: "Amount", right: true}}
	rows := make([][]string, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = []string{strconv.FormatInt(r.ID, 10), r.Date, r.Text, r.Category, r.Sign + r.Amount}
	}
	printTable(w, cols, rows, func(row, col int) lipgloss.Style {
		if col != len(cols)-1 {
			return lipgloss.NewStyle()
		}
		if res.Rows[row].Expense {
			return expenseStyle
		}
		return incomeStyle
	})
}

func printSummary(w io.Writer, res services.Result, f *format.Formatter) {
	printTable(w, []column{{title: "Total"}, {title: "Amount", right: true}}, [][]string{
		{"Balance", res.Balance},
		{"Income", res.Income},
		{"Expense", res.Expense},
	}, nil)

	if len(res.Distribution) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	rows := make([][]string, len(res.Distribution))
	for i, c := range res.Distribution {
		rows[i] = []string{c.Name, f.Money(c.Amount)}
	}
	printTable(w, []column{{title: "Category"}, {title: "Spent", right: true}}, rows, nil)
}

func printList(w io.Writer, title string, items []string) {
	_, _ = fmt.Fprintln(w, headerStyle.Render(title))
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "  %s\n", it)
	}
}
