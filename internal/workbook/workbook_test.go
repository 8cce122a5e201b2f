package workbook

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"idemat/internal"
	"idemat/internal/table"
)

func mkXLSX(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, f.SetCellValue(name, cell, v))
			}
		}
	}
	buf := bytes.NewBuffer(nil)
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func idematRows() [][]any {
	return [][]any{
		{"ID", "Code", "Nr", "Category", "Process", "unit", "kg CO2"},
		{"", "", "", "", "", "", "equiv"},
		{"", "", "", "", "", "", ""},
		{1, "A.1", "x", "Metals", "Steel, primary", "kg", 2.123456789},
		{2, "A.2", "x", "Metals", "Aluminium", "kg", 8.1},
	}
}

func writeFile(t *testing.T, name string, blob []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, blob, 0o644))
	return path
}

func TestReadSheetKeepsRawNumbers(t *testing.T) {
	blob := mkXLSX(t, map[string][][]any{"Idemat2024": idematRows()})
	wb, err := OpenBytes("Idemat.xlsx", blob)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"Idemat2024"}, wb.SheetNames())
	raw, err := wb.ReadSheet("Idemat2024")
	require.NoError(t, err)
	require.Len(t, raw.Rows, 5)
	assert.Equal(t, "2.123456789", raw.Rows[3][6])
	assert.Len(t, wb.Identity(), 64)
}

func TestReadSheetMissing(t *testing.T) {
	blob := mkXLSX(t, map[string][][]any{"Idemat2024": idematRows()})
	wb, err := OpenBytes("Idemat.xlsx", blob)
	require.NoError(t, err)
	defer wb.Close()

	_, err = wb.ReadSheet("Nope")
	require.ErrorIs(t, err, internal.ErrSourceUnavailable)
	var sheetErr *internal.SheetError
	require.ErrorAs(t, err, &sheetErr)
	assert.Equal(t, "Nope", sheetErr.Sheet)
}

func TestOpenFailures(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.ErrorIs(t, err, internal.ErrSourceUnavailable)

	_, err = OpenBytes("broken.xlsx", []byte("not a zip"))
	assert.ErrorIs(t, err, internal.ErrSourceUnavailable)
}

func TestCSVSource(t *testing.T) {
	csv := "ID,Code,Nr,Category,Process,unit,CO2\n,,,,,,\n,,,,,,\n1,a,b,Metals,\"Steel, primary\",kg,2.5\n"
	wb, err := OpenBytes("/data/lci.csv", []byte(csv))
	require.NoError(t, err)

	assert.Equal(t, []string{"lci"}, wb.SheetNames())
	raw, err := wb.ReadSheet("lci")
	require.NoError(t, err)
	assert.Equal(t, "Steel, primary", raw.Rows[3][4])

	_, err = wb.ReadSheet("other")
	assert.ErrorIs(t, err, internal.ErrSourceUnavailable)
}

type countingCache struct {
	stored map[string]*table.Table
	gets   int
	puts   int
}

func (c *countingCache) GetTable(identity, sheet, layout string) (*table.Table, error) {
	c.gets++
	return c.stored[identity+sheet+layout], nil
}

func (c *countingCache) PutTable(identity, sheet, layout string, t *table.Table) error {
	c.puts++
	c.stored[identity+sheet+layout] = t
	return nil
}

func TestLoaderCachesAndInvalidates(t *testing.T) {
	path := writeFile(t, "Idemat.xlsx", mkXLSX(t, map[string][][]any{"Idemat2024": idematRows()}))
	cache := &countingCache{stored: map[string]*table.Table{}}
	l := NewLoader(path, table.DefaultLayout(), cache, nil)
	defer l.Close()

	first, err := l.Load("Idemat2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Process", "unit", "kg CO2_equiv"}, first.Columns)
	assert.Equal(t, 2, first.Len())

	again, err := l.Load("Idemat2024")
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, cache.puts)

	// A second loader on the same content hits the persistent cache.
	other := NewLoader(path, table.DefaultLayout(), cache, nil)
	defer other.Close()
	fromCache, err := other.Load("Idemat2024")
	require.NoError(t, err)
	assert.Same(t, first, fromCache)
	assert.Equal(t, 1, cache.puts)

	rows := idematRows()
	rows = append(rows, []any{3, "B.1", "x", "Plastics", "PET", "kg", 2.2})
	require.NoError(t, os.WriteFile(path, mkXLSX(t, map[string][][]any{"Idemat2024": rows}), 0o644))
	// Ensure a different modification time even on coarse filesystems.
	l.modTime = l.modTime.Add(-1)

	changed, err := l.Load("Idemat2024")
	require.NoError(t, err)
	assert.Equal(t, 3, changed.Len())
	assert.Equal(t, 2, cache.puts)
}

func TestLoaderSheetNamesAndErrors(t *testing.T) {
	path := writeFile(t, "Idemat.xlsx", mkXLSX(t, map[string][][]any{
		"Idemat2024": idematRows(),
		"Tiny":       {{"a", "b"}},
	}))
	l := NewLoader(path, table.DefaultLayout(), nil, nil)
	defer l.Close()

	names, err := l.SheetNames()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Idemat2024", "Tiny"}, names)

	_, err = l.Load("Tiny")
	assert.ErrorIs(t, err, internal.ErrMalformedSheet)
	_, err = l.Load("Absent")
	assert.ErrorIs(t, err, internal.ErrSourceUnavailable)
}
