package sqlfmt

import (
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
)

// NoResults is rendered in place of an empty table.
const NoResults = "No results found."

// NullText is rendered for absent and nil cells.
const NullText = "NULL"

// FormatTable renders rows as a fixed-width grid. Each column is as wide as
// its header or its widest cell, whichever is larger. When columns is empty
// the header is derived from the row keys.
func FormatTable(columns []string, rows []map[string]any) string {
	if len(rows) == 0 {
		return Colorize(Cyan, NoResults)
	}
	if len(columns) == 0 {
		columns = Columns(rows)
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = runewidth.StringWidth(col)
	}

	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i, col := range columns {
			text := cellText(row, col)
			cells[r][i] = text
			if w := runewidth.StringWidth(text); w > widths[i] {
				widths[i] = w
			}
		}
	}

	sep := separator(widths)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(sep)
	b.WriteString("\n")
	b.WriteString(line(Yellow, columns, widths))
	b.WriteString("\n")
	b.WriteString(sep)
	for _, row := range cells {
		b.WriteString("\n")
		b.WriteString(line(Green, row, widths))
	}
	b.WriteString("\n")
	b.WriteString(sep)
	return b.String()
}

// Columns returns the sorted union of keys across rows.
func Columns(rows []map[string]any) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}

func cellText(row map[string]any, col string) string {
	v, ok := row[col]
	if !ok || v == nil {
		return NullText
	}
	return FormatValue(v)
}

func separator(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w+2)
	}
	return Yellow + "+" + strings.Join(parts, "+") + "+" + Reset
}

func line(color string, cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = runewidth.FillRight(cell, widths[i]+2)
	}
	return color + "|" + strings.Join(parts, "|") + "|" + Reset
}
