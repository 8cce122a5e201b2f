package session

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idemat/internal"
	"idemat/internal/selection"
	"idemat/internal/table"
)

type memSource struct {
	tables map[string]*table.Table
	order  []string
}

func (m *memSource) SheetNames() ([]string, error) {
	return m.order, nil
}

func (m *memSource) Load(sheet string) (*table.Table, error) {
	t, ok := m.tables[sheet]
	if !ok {
		return nil, &internal.SheetError{Sheet: sheet, Err: internal.ErrSourceUnavailable}
	}
	return t, nil
}

type memRuns struct {
	runs []internal.CalculationResult
}

func (m *memRuns) InsertRun(traceID string, result internal.CalculationResult, categories []string, counts map[string]int) (int64, error) {
	m.runs = append(m.runs, result)
	return int64(len(m.runs)), nil
}

func newSource() *memSource {
	cols := []string{"Category", "Process", "unit", "kg CO2", "eco-costs"}
	return &memSource{
		order: []string{"Idemat2024", "Idemat2024 midpoints", "Notes", "Broken"},
		tables: map[string]*table.Table{
			"Idemat2024": table.New("Idemat2024", cols, [][]string{
				{"Metals", "Steel, primary", "kg", "2.5", "0.9"},
				{"Metals", "Aluminium", "kg", "8.1", "2.2"},
				{"Metals", "Aluminium", "t", "8100", "2200"},
				{"Plastics", "PET", "kg", "2.2", "0.6"},
			}),
			"Idemat2024 midpoints": table.New("Idemat2024 midpoints", cols, [][]string{
				{"Plastics", "PET", "kg", "2.0", "0.5"},
			}),
			"Broken": table.New("Broken", []string{"Process", "kg CO2"}, [][]string{{"x", "1"}}),
		},
	}
}

func newSession(runs RunLog) *Session {
	return New(newSource(), Options{
		Sheets: []string{"Idemat2024", "Idemat2024 midpoints", "Broken", "Missing"},
		Runs:   runs,
	})
}

func pick(t *testing.T, s *Session, category, process, unit string) internal.SelectionRecord {
	t.Helper()
	require.NoError(t, s.SelectCategory(category))
	require.NoError(t, s.SelectProcess(process))
	require.NoError(t, s.SelectUnit(unit))
	rec, err := s.AddSelection()
	require.NoError(t, err)
	return rec
}

func TestSheetsFollowConfiguredOrder(t *testing.T) {
	s := newSession(nil)
	sheets, err := s.Sheets()
	require.NoError(t, err)
	assert.Equal(t, []string{"Idemat2024", "Idemat2024 midpoints", "Broken"}, sheets)
}

func TestSelectSheetErrors(t *testing.T) {
	s := newSession(nil)
	assert.ErrorIs(t, s.SelectSheet("Notes"), internal.ErrSourceUnavailable)
	assert.ErrorIs(t, s.SelectSheet("Missing"), internal.ErrSourceUnavailable)
	assert.ErrorIs(t, s.SelectSheet("Broken"), internal.ErrColumnNotFound)
	assert.Equal(t, "", s.Sheet())

	_, err := s.Categories()
	assert.ErrorIs(t, err, internal.ErrInvalidChoice)
	_, err = s.Calculate()
	assert.ErrorIs(t, err, internal.ErrInvalidChoice)
}

func TestCascadingPickers(t *testing.T) {
	s := newSession(nil)
	require.NoError(t, s.SelectSheet("Idemat2024"))

	cats, err := s.Categories()
	require.NoError(t, err)
	assert.Equal(t, []string{"Metals", "Plastics"}, cats)

	procs, err := s.Processes()
	require.NoError(t, err)
	assert.Empty(t, procs)

	require.NoError(t, s.SelectCategory("Metals"))
	procs, err = s.Processes()
	require.NoError(t, err)
	assert.Equal(t, []string{"Steel, primary", "Aluminium"}, procs)
	assert.ErrorIs(t, s.SelectProcess("PET"), internal.ErrInvalidChoice)

	require.NoError(t, s.SelectProcess("Aluminium"))
	units, err := s.Units()
	require.NoError(t, err)
	assert.Equal(t, []string{"kg", "t"}, units)
	require.NoError(t, s.SelectUnit("t"))
	assert.Equal(t, Picks{Category: "Metals", Process: "Aluminium", Unit: "t"}, s.Picks())

	require.NoError(t, s.SelectProcess("Steel, primary"))
	assert.Equal(t, Picks{Category: "Metals", Process: "Steel, primary"}, s.Picks())

	require.NoError(t, s.SelectCategory("Plastics"))
	assert.Equal(t, Picks{Category: "Plastics"}, s.Picks())
	assert.ErrorIs(t, s.SelectCategory("Wood"), internal.ErrInvalidChoice)
}

func TestAddSelectionRequiresAllPicks(t *testing.T) {
	s := newSession(nil)
	require.NoError(t, s.SelectSheet("Idemat2024"))
	require.NoError(t, s.SelectCategory("Metals"))
	require.NoError(t, s.SelectProcess("Steel, primary"))

	_, err := s.AddSelection()
	assert.ErrorIs(t, err, internal.ErrIncompleteSelection)

	require.NoError(t, s.SelectUnit("kg"))
	first, err := s.AddSelection()
	require.NoError(t, err)
	second, err := s.AddSelection()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "1", first.Quantity)
	assert.Len(t, s.Selections(), 2)
}

func TestSteelCalculationIsLogged(t *testing.T) {
	runs := &memRuns{}
	s := newSession(runs)
	require.NoError(t, s.SelectSheet("Idemat2024"))
	rec := pick(t, s, "Metals", "Steel, primary", "kg")
	require.NoError(t, s.SetQuantityByID(rec.ID, "3"))

	opts, err := s.ImpactCategoryOptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"kg CO2", "eco-costs"}, opts)

	s.ChooseImpactCategories([]string{"kg CO2"})
	res, err := s.Calculate()
	require.NoError(t, err)
	v, ok := res.Total("kg CO2")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("7.5").Equal(v))
	require.Len(t, runs.runs, 1)
	assert.Equal(t, "Idemat2024", runs.runs[0].Sheet)

	totals, err := s.Totals()
	require.NoError(t, err)
	assert.Equal(t, res.Map(), totals.Map())
	assert.Len(t, runs.runs, 1)
}

func TestSwitchingSheetKeepsSelections(t *testing.T) {
	s := newSession(nil)
	require.NoError(t, s.SelectSheet("Idemat2024"))
	pick(t, s, "Plastics", "PET", "kg")
	pick(t, s, "Metals", "Steel, primary", "kg")
	s.ChooseImpactCategories([]string{"kg CO2"})

	require.NoError(t, s.SelectSheet("Idemat2024 midpoints"))
	assert.Equal(t, Picks{}, s.Picks())
	assert.Len(t, s.Selections(), 2)

	_, err := s.Calculate()
	require.ErrorIs(t, err, internal.ErrProcessNotFound)
	var recErr *internal.RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 1, recErr.Position)

	_, err = s.RemoveSelection(1)
	require.NoError(t, err)
	res, err := s.Calculate()
	require.NoError(t, err)
	v, _ := res.Total("kg CO2")
	assert.True(t, decimal.RequireFromString("2").Equal(v))
}

func TestRemoveAndRestore(t *testing.T) {
	s := newSession(nil)
	require.NoError(t, s.SelectSheet("Idemat2024"))
	a := pick(t, s, "Metals", "Steel, primary", "kg")
	b := pick(t, s, "Plastics", "PET", "kg")
	require.NoError(t, s.SetQuantity(1, "4"))
	before := s.Selections()

	removed, err := s.RemoveSelection(0)
	require.NoError(t, err)
	assert.Equal(t, a.ID, removed.ID)
	_, err = s.RestoreSelection(0, removed)
	require.NoError(t, err)
	assert.Equal(t, before, s.Selections())

	_, err = s.RemoveSelectionByID(b.ID)
	require.NoError(t, err)
	_, err = s.RemoveSelectionByID(b.ID)
	assert.ErrorIs(t, err, internal.ErrIndexOutOfRange)
	assert.ErrorIs(t, s.SetQuantity(5, "1"), internal.ErrIndexOutOfRange)
}

func TestImportSelections(t *testing.T) {
	s := newSession(nil)
	require.NoError(t, s.SelectSheet("Idemat2024"))
	added, err := s.ImportSelections([]internal.SelectionRecord{
		{ID: "ignored", Process: "Steel, primary", Quantity: "2"},
		{Process: "Aluminium"},
	})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.NotEqual(t, "ignored", added[0].ID)
	assert.Equal(t, "", added[1].Quantity)

	s.ChooseImpactCategories([]string{"kg CO2"})
	res, err := s.Calculate()
	require.NoError(t, err)
	v, _ := res.Total("kg CO2")
	assert.True(t, decimal.RequireFromString("5").Equal(v))
	require.Len(t, res.InvalidQuantities, 1)
	assert.Equal(t, "Aluminium", res.InvalidQuantities[0].Process)

	s.ClearSelections()
	assert.Empty(t, s.Selections())
}

func TestSavedBillReloadsWithSameTotals(t *testing.T) {
	s := newSession(nil)
	require.NoError(t, s.SelectSheet("Idemat2024"))
	steel := pick(t, s, "Metals", "Steel, primary", "kg")
	pet := pick(t, s, "Plastics", "PET", "kg")
	require.NoError(t, s.SetQuantityByID(steel.ID, "3"))
	require.NoError(t, s.SetQuantityByID(pet.ID, ""))
	s.ChooseImpactCategories([]string{"kg CO2"})
	before, err := s.Calculate()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, selection.WriteBill(&buf, s.Selections()))
	s.ClearSelections()
	records, err := selection.ReadBill(&buf)
	require.NoError(t, err)
	_, err = s.ImportSelections(records)
	require.NoError(t, err)

	after, err := s.Calculate()
	require.NoError(t, err)
	assert.Equal(t, before.Map(), after.Map())
	assert.Len(t, after.InvalidQuantities, 1)
}

func TestSkipPolicy(t *testing.T) {
	s := New(newSource(), Options{Policy: internal.MissingProcessSkip})
	require.NoError(t, s.SelectSheet("Idemat2024"))
	pick(t, s, "Metals", "Steel, primary", "kg")
	require.NoError(t, s.SelectSheet("Idemat2024 midpoints"))
	s.ChooseImpactCategories([]string{"kg CO2"})

	res, err := s.Calculate()
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 1)
	v, _ := res.Total("kg CO2")
	assert.True(t, v.IsZero())
}
