package connector

import (
	"github.com/JonMunkholm/sheetsync/internal/core"
)

// gridRow is one source row with its 1-based row number.
type gridRow struct {
	number int
	cells  []any
}

// buildRows turns a header row plus data rows into keyed SheetRows.
// Columns with an empty header are dropped. When two columns share a header
// the leftmost non-blank value wins.
func buildRows(header []any, body []gridRow) []core.SheetRow {
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = core.CleanCell(core.CellString(h))
	}

	rows := make([]core.SheetRow, 0, len(body))
	for _, r := range body {
		values := make(core.RawRow, len(names))
		for i, name := range names {
			if name == "" {
				continue
			}
			var v any
			if i < len(r.cells) {
				v = r.cells[i]
			}
			if prev, ok := values[name]; ok && !core.IsBlank(prev) {
				continue
			}
			values[name] = v
		}
		rows = append(rows, core.SheetRow{Number: r.number, Values: values})
	}
	return rows
}

// fromStrings adapts a [][]string grid whose first row is the header and
// whose row numbers start at 1.
func fromStrings(grid [][]string) []core.SheetRow {
	if len(grid) == 0 {
		return []core.SheetRow{}
	}
	body := make([]gridRow, 0, len(grid)-1)
	for i, line := range grid[1:] {
		body = append(body, gridRow{number: i + 2, cells: stringsToAny(line)})
	}
	return buildRows(stringsToAny(grid[0]), body)
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
