// Package session holds the state of one interactive calculation: the active
// sheet, the category/process/unit pickers, the bill of selections and the
// chosen impact categories.
package session

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"idemat/internal"
	"idemat/internal/impact"
	"idemat/internal/logging"
	"idemat/internal/selection"
	"idemat/internal/table"
)

// TableSource yields normalized tables by sheet name.
type TableSource interface {
	SheetNames() ([]string, error)
	Load(sheet string) (*table.Table, error)
}

// RunLog records finished calculations.
type RunLog interface {
	InsertRun(traceID string, result internal.CalculationResult, categories []string, counts map[string]int) (int64, error)
}

type Options struct {
	// Sheets limits which workbook sheets may be selected; empty allows all.
	Sheets         []string
	CategoryColumn string
	ProcessColumn  string
	UnitColumn     string
	Policy         internal.MissingProcessPolicy
	Runs           RunLog
	Log            *slog.Logger
}

// Picks is the current state of the three cascading pickers.
type Picks struct {
	Category string `json:"category"`
	Process  string `json:"process"`
	Unit     string `json:"unit"`
}

// Session is not safe for concurrent use.
type Session struct {
	src   TableSource
	opts  Options
	log   *slog.Logger
	store *selection.Store
	agg   *impact.Aggregator

	sheet      string
	tbl        *table.Table
	picks      Picks
	categories []string
}

func New(src TableSource, opts Options) *Session {
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	if opts.CategoryColumn == "" {
		opts.CategoryColumn = "Category"
	}
	if opts.ProcessColumn == "" {
		opts.ProcessColumn = "Process"
	}
	if opts.UnitColumn == "" {
		opts.UnitColumn = "unit"
	}
	reserved := []string{opts.CategoryColumn, opts.ProcessColumn, opts.UnitColumn}
	return &Session{
		src:   src,
		opts:  opts,
		log:   opts.Log,
		store: selection.NewStore(),
		agg:   impact.NewAggregator(opts.ProcessColumn, reserved, opts.Policy, opts.Log),
	}
}

// Sheets lists the selectable sheets present in the workbook, in configured
// order.
func (s *Session) Sheets() ([]string, error) {
	available, err := s.src.SheetNames()
	if err != nil {
		return nil, err
	}
	if len(s.opts.Sheets) == 0 {
		return available, nil
	}
	out := []string{}
	for _, name := range s.opts.Sheets {
		if slices.Contains(available, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// SelectSheet makes name the active sheet. The pickers reset; selections are
// kept and may then name processes the new sheet lacks.
func (s *Session) SelectSheet(name string) error {
	if len(s.opts.Sheets) > 0 && !slices.Contains(s.opts.Sheets, name) {
		return &internal.SheetError{Sheet: name, Err: internal.ErrSourceUnavailable, Detail: "sheet is not configured"}
	}
	tbl, err := s.src.Load(name)
	if err != nil {
		return err
	}
	if err := tbl.RequireColumns(s.opts.CategoryColumn, s.opts.ProcessColumn, s.opts.UnitColumn); err != nil {
		return err
	}
	s.sheet = name
	s.tbl = tbl
	s.picks = Picks{}
	s.log.Info("sheet selected", "sheet", name, "rows", tbl.Len(), "selections", s.store.Len())
	return nil
}

func (s *Session) Sheet() string {
	return s.sheet
}

// Table returns the active table, or nil before a sheet is selected.
func (s *Session) Table() *table.Table {
	return s.tbl
}

func (s *Session) Picks() Picks {
	return s.picks
}

func (s *Session) Categories() ([]string, error) {
	if err := s.requireSheet(); err != nil {
		return nil, err
	}
	return s.tbl.DistinctValues(s.opts.CategoryColumn)
}

// SelectCategory clears the process and unit picks.
func (s *Session) SelectCategory(value string) error {
	options, err := s.Categories()
	if err != nil {
		return err
	}
	if err := choose(options, value, "category"); err != nil {
		return err
	}
	s.picks = Picks{Category: value}
	return nil
}

// Processes lists the processes of the picked category; empty until a
// category is picked.
func (s *Session) Processes() ([]string, error) {
	if err := s.requireSheet(); err != nil {
		return nil, err
	}
	if s.picks.Category == "" {
		return []string{}, nil
	}
	sub, err := s.tbl.Where(s.opts.CategoryColumn, s.picks.Category)
	if err != nil {
		return nil, err
	}
	return sub.DistinctValues(s.opts.ProcessColumn)
}

// SelectProcess clears the unit pick.
func (s *Session) SelectProcess(value string) error {
	options, err := s.Processes()
	if err != nil {
		return err
	}
	if err := choose(options, value, "process"); err != nil {
		return err
	}
	s.picks.Process = value
	s.picks.Unit = ""
	return nil
}

func (s *Session) Units() ([]string, error) {
	if err := s.requireSheet(); err != nil {
		return nil, err
	}
	if s.picks.Category == "" || s.picks.Process == "" {
		return []string{}, nil
	}
	sub, err := s.tbl.Where(s.opts.CategoryColumn, s.picks.Category)
	if err != nil {
		return nil, err
	}
	sub, err = sub.Where(s.opts.ProcessColumn, s.picks.Process)
	if err != nil {
		return nil, err
	}
	return sub.DistinctValues(s.opts.UnitColumn)
}

func (s *Session) SelectUnit(value string) error {
	options, err := s.Units()
	if err != nil {
		return err
	}
	if err := choose(options, value, "unit"); err != nil {
		return err
	}
	s.picks.Unit = value
	return nil
}

// AddSelection appends the current picks to the bill with quantity "1".
// The pickers keep their values so the same process can be added again.
func (s *Session) AddSelection() (internal.SelectionRecord, error) {
	p := s.picks
	if p.Category == "" || p.Process == "" || p.Unit == "" {
		return internal.SelectionRecord{}, fmt.Errorf("%w: category %q, process %q, unit %q",
			internal.ErrIncompleteSelection, p.Category, p.Process, p.Unit)
	}
	rec := s.store.Add(p.Category, p.Process, p.Unit)
	s.log.Debug("selection added", "id", rec.ID, "process", rec.Process)
	return rec, nil
}

func (s *Session) SetQuantity(position int, text string) error {
	return s.store.SetQuantity(position, text)
}

func (s *Session) SetQuantityByID(id, text string) error {
	return s.store.SetQuantityByID(id, text)
}

func (s *Session) RemoveSelection(position int) (internal.SelectionRecord, error) {
	return s.store.RemoveAt(position)
}

func (s *Session) RemoveSelectionByID(id string) (internal.SelectionRecord, error) {
	return s.store.Remove(id)
}

// RestoreSelection puts a removed record back at position.
func (s *Session) RestoreSelection(position int, rec internal.SelectionRecord) (internal.SelectionRecord, error) {
	return s.store.Insert(position, rec)
}

// ImportSelections appends records from a saved bill. They bypass the
// pickers; processes the active sheet lacks surface at Calculate.
func (s *Session) ImportSelections(records []internal.SelectionRecord) ([]internal.SelectionRecord, error) {
	added := make([]internal.SelectionRecord, 0, len(records))
	for _, rec := range records {
		rec.ID = ""
		stored, err := s.store.Insert(s.store.Len(), rec)
		if err != nil {
			return added, err
		}
		added = append(added, stored)
	}
	s.log.Info("selections imported", "count", len(added))
	return added, nil
}

func (s *Session) ClearSelections() {
	s.store.Clear()
}

func (s *Session) Selections() []internal.SelectionRecord {
	return s.store.List()
}

// ImpactCategoryOptions lists the columns that can be aggregated: every
// column except the reserved ones.
func (s *Session) ImpactCategoryOptions() ([]string, error) {
	if err := s.requireSheet(); err != nil {
		return nil, err
	}
	reserved := []string{s.opts.CategoryColumn, s.opts.ProcessColumn, s.opts.UnitColumn}
	out := []string{}
	for _, c := range s.tbl.Columns {
		if !slices.Contains(reserved, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ChooseImpactCategories replaces the chosen categories. Names the table
// lacks are accepted here and reported by Calculate.
func (s *Session) ChooseImpactCategories(names []string) {
	s.categories = slices.Clone(names)
}

func (s *Session) ImpactCategories() []string {
	return slices.Clone(s.categories)
}

// Calculate aggregates the bill against the active sheet and logs the run
// when a run log is configured.
func (s *Session) Calculate() (internal.CalculationResult, error) {
	if err := s.requireSheet(); err != nil {
		return internal.CalculationResult{}, err
	}
	traceID := uuid.NewString()
	start := time.Now()
	records := s.store.List()

	result, err := s.agg.Calculate(s.tbl, records, s.categories)
	if err != nil {
		s.log.Warn("calculation failed", "traceId", traceID, "sheet", s.sheet, "err", err)
		return internal.CalculationResult{}, err
	}

	counts := map[string]int{
		"selections":        len(records),
		"categories":        len(result.Totals),
		"ignored":           len(result.Ignored),
		"invalidQuantities": len(result.InvalidQuantities),
		"skipped":           len(result.Skipped),
	}
	s.log.Info("calculation done", "traceId", traceID, "sheet", s.sheet, "selections", len(records),
		"categories", len(result.Totals), "ms", time.Since(start).Milliseconds())

	if s.opts.Runs != nil {
		if _, err := s.opts.Runs.InsertRun(traceID, result, s.categories, counts); err != nil {
			s.log.Warn("run log write failed", "traceId", traceID, "err", err)
		}
	}
	return result, nil
}

// Totals aggregates like Calculate without recording a run.
func (s *Session) Totals() (internal.CalculationResult, error) {
	if err := s.requireSheet(); err != nil {
		return internal.CalculationResult{}, err
	}
	return s.agg.Calculate(s.tbl, s.store.List(), s.categories)
}

func (s *Session) requireSheet() error {
	if s.tbl == nil {
		return fmt.Errorf("%w: no sheet selected", internal.ErrInvalidChoice)
	}
	return nil
}

func choose(options []string, value, level string) error {
	if !slices.Contains(options, value) {
		return fmt.Errorf("%w: %s %q", internal.ErrInvalidChoice, level, value)
	}
	return nil
}
