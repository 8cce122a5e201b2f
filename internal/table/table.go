// Package table holds the normalized life-cycle-inventory table and the
// operations pickers and the aggregator run against it.
package table

import (
	"idemat/internal"
)

// Table is a normalized sheet: named columns and rows of cell text aligned
// to them. A Table is read-only once built.
type Table struct {
	Sheet   string     `json:"sheet"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`

	index map[string]int
}

func New(sheet string, columns []string, rows [][]string) *Table {
	t := &Table{Sheet: sheet, Columns: columns, Rows: rows, index: make(map[string]int, len(columns))}
	for i, name := range columns {
		if _, ok := t.index[name]; !ok {
			t.index[name] = i
		}
	}
	return t
}

func (t *Table) Len() int {
	return len(t.Rows)
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

func (t *Table) ColumnIndex(name string) (int, error) {
	idx, ok := t.index[name]
	if !ok {
		return -1, &internal.ColumnError{Sheet: t.Sheet, Column: name, Err: internal.ErrColumnNotFound}
	}
	return idx, nil
}

// RequireColumns fails with ErrColumnNotFound on the first missing name.
func (t *Table) RequireColumns(names ...string) error {
	for _, name := range names {
		if _, err := t.ColumnIndex(name); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) Value(row int, column string) (string, error) {
	idx, err := t.ColumnIndex(column)
	if err != nil {
		return "", err
	}
	if row < 0 || row >= len(t.Rows) {
		return "", internal.ErrIndexOutOfRange
	}
	return cellAt(t.Rows[row], idx), nil
}

// Cell returns the text at row/col, or "" outside the grid.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	return cellAt(t.Rows[row], col)
}

func (t *Table) Column(name string) ([]string, error) {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = cellAt(row, idx)
	}
	return out, nil
}

// DistinctValues returns the non-empty values of a column in first
// occurrence order.
func (t *Table) DistinctValues(name string) ([]string, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// Where returns the rows whose column equals value, in table order. The
// returned table shares row slices with t.
func (t *Table) Where(column, value string) (*Table, error) {
	idx, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	rows := [][]string{}
	for _, row := range t.Rows {
		if cellAt(row, idx) == value {
			rows = append(rows, row)
		}
	}
	return New(t.Sheet, t.Columns, rows), nil
}

// FirstRow returns the position of the first row whose column equals value.
func (t *Table) FirstRow(column, value string) (int, bool, error) {
	idx, err := t.ColumnIndex(column)
	if err != nil {
		return -1, false, err
	}
	for i, row := range t.Rows {
		if cellAt(row, idx) == value {
			return i, true, nil
		}
	}
	return -1, false, nil
}
