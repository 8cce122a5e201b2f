package table

// Index maps the values of one column to the first row holding them.
// Later duplicates are counted but never returned.
type Index struct {
	Column     string
	FirstByKey map[string]int
	Duplicates map[string]int
}

func BuildIndex(t *Table, column string) (*Index, error) {
	col, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	idx := &Index{
		Column:     column,
		FirstByKey: make(map[string]int, len(t.Rows)),
		Duplicates: map[string]int{},
	}
	for i, row := range t.Rows {
		key := cellAt(row, col)
		if key == "" {
			continue
		}
		if _, ok := idx.FirstByKey[key]; ok {
			idx.Duplicates[key]++
			continue
		}
		idx.FirstByKey[key] = i
	}
	return idx, nil
}

func (idx *Index) First(key string) (int, bool) {
	row, ok := idx.FirstByKey[key]
	return row, ok
}

func (idx *Index) Keys() []string {
	out := make([]string, 0, len(idx.FirstByKey))
	for k := range idx.FirstByKey {
		out = append(out, k)
	}
	return out
}
