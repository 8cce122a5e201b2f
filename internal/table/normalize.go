package table

import (
	"fmt"
	"strings"

	"idemat/internal"
	"idemat/internal/util"
)

// Layout describes where the compound header and the identifier columns sit
// in a raw sheet.
type Layout struct {
	HeaderRows        int
	IDColumns         int
	Separator         string
	PlaceholderPrefix string
}

func DefaultLayout() Layout {
	return Layout{HeaderRows: 3, IDColumns: 3, Separator: "_", PlaceholderPrefix: "Unnamed"}
}

// Key identifies the layout in cache keys; tables normalised under different
// layouts must not be confused.
func (l Layout) Key() string {
	return fmt.Sprintf("h%d:c%d:s%q:p%q", l.HeaderRows, l.IDColumns, l.Separator, l.PlaceholderPrefix)
}

func (l Layout) isPlaceholder(name string) bool {
	if name == "" {
		return true
	}
	return l.PlaceholderPrefix != "" && strings.HasPrefix(name, l.PlaceholderPrefix)
}

// Normalize turns a raw sheet into a Table. The result depends only on the
// sheet content and the layout, so normalising the same sheet twice yields
// equal tables.
func Normalize(raw internal.RawSheet, layout Layout) (*Table, error) {
	if len(raw.Rows) < layout.HeaderRows {
		return nil, &internal.SheetError{
			Sheet:  raw.Name,
			Err:    internal.ErrMalformedSheet,
			Detail: fmt.Sprintf("%d rows, need at least %d header rows", len(raw.Rows), layout.HeaderRows),
		}
	}
	width := raw.Width()
	if width < layout.IDColumns {
		return nil, &internal.SheetError{
			Sheet:  raw.Name,
			Err:    internal.ErrMalformedSheet,
			Detail: fmt.Sprintf("%d columns, need at least %d identifier columns", width, layout.IDColumns),
		}
	}

	names := headerNames(raw.Rows[:layout.HeaderRows], width, layout.Separator)

	keep := make([]int, 0, width)
	seen := map[string]struct{}{}
	for c := layout.IDColumns; c < width; c++ {
		name := names[c]
		if layout.isPlaceholder(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		keep = append(keep, c)
	}

	columns := make([]string, 0, len(keep))
	for _, c := range keep {
		columns = append(columns, names[c])
	}

	rows := make([][]string, 0, len(raw.Rows)-layout.HeaderRows)
	for _, src := range raw.Rows[layout.HeaderRows:] {
		row := make([]string, len(keep))
		hasData := false
		for i, c := range keep {
			v := util.NormalizeCell(cellAt(src, c))
			row[i] = v
			if v != "" {
				hasData = true
			}
		}
		if hasData {
			rows = append(rows, row)
		}
	}

	return New(raw.Name, columns, rows), nil
}

func headerNames(header [][]string, width int, sep string) []string {
	names := make([]string, width)
	for c := 0; c < width; c++ {
		parts := make([]string, 0, len(header))
		for _, row := range header {
			if v := util.NormalizeCell(cellAt(row, c)); v != "" {
				parts = append(parts, v)
			}
		}
		names[c] = strings.Join(parts, sep)
	}
	return names
}

func cellAt(row []string, idx int) string {
	if idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}
