// Package impact computes weighted impact totals for a bill of selections.
package impact

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"idemat/internal"
	"idemat/internal/logging"
	"idemat/internal/table"
	"idemat/internal/util"
)

// suggestionThreshold is the minimum similarity for proposing a column name
// in place of an ignored category.
const suggestionThreshold = 0.5

type Aggregator struct {
	ProcessColumn string
	Reserved      []string
	Policy        internal.MissingProcessPolicy
	Log           *slog.Logger
}

func NewAggregator(processColumn string, reserved []string, policy internal.MissingProcessPolicy, log *slog.Logger) *Aggregator {
	if log == nil {
		log = logging.Discard()
	}
	if policy == "" {
		policy = internal.MissingProcessFail
	}
	return &Aggregator{ProcessColumn: processColumn, Reserved: reserved, Policy: policy, Log: log}
}

// Calculate sums coefficient × quantity per chosen category. Totals follow
// the order of categories; unusable category names are reported in Ignored.
// A record with an unparseable quantity contributes zero. A record whose
// process is absent from the table fails the whole call under the fail
// policy and is listed in Skipped under the skip policy.
func (a *Aggregator) Calculate(tbl *table.Table, records []internal.SelectionRecord, categories []string) (internal.CalculationResult, error) {
	result := internal.CalculationResult{Sheet: tbl.Sheet, Totals: []internal.ImpactTotal{}}

	chosen, ignored := a.resolveCategories(tbl, categories)
	result.Ignored = ignored
	for _, ig := range ignored {
		a.Log.Warn("impact category ignored", "sheet", tbl.Sheet, "category", ig.Name, "reason", ig.Reason)
	}

	colIdx := make([]int, len(chosen))
	totals := make([]decimal.Decimal, len(chosen))
	for i, name := range chosen {
		colIdx[i], _ = tbl.ColumnIndex(name)
		totals[i] = decimal.Zero
	}

	index, err := table.BuildIndex(tbl, a.ProcessColumn)
	if err != nil {
		return internal.CalculationResult{}, err
	}

	for pos, rec := range records {
		qty, ok := util.ParseQuantity(rec.Quantity)
		if !ok {
			result.InvalidQuantities = append(result.InvalidQuantities, internal.QuantityIssue{
				Position: pos, ID: rec.ID, Process: rec.Process, Quantity: rec.Quantity,
			})
			a.Log.Warn("quantity coerced to zero", "position", pos, "id", rec.ID, "process", rec.Process, "quantity", rec.Quantity)
		}

		row, found := index.First(rec.Process)
		if !found {
			missing := &internal.RecordError{
				Position: pos,
				ID:       rec.ID,
				Process:  rec.Process,
				Err:      internal.ErrProcessNotFound,
				Detail:   fmt.Sprintf("not in sheet %q", tbl.Sheet),
			}
			if a.Policy != internal.MissingProcessSkip {
				return internal.CalculationResult{}, missing
			}
			result.Skipped = append(result.Skipped, internal.SkippedRecord{
				Position: pos, ID: rec.ID, Process: rec.Process, Reason: missing.Error(),
			})
			a.Log.Warn("selection skipped", "position", pos, "id", rec.ID, "process", rec.Process)
			continue
		}

		if n := index.Duplicates[rec.Process]; n > 0 {
			a.Log.Debug("process has several rows, using the first", "process", rec.Process, "extraRows", n)
		}

		for i, name := range chosen {
			raw := tbl.Cell(row, colIdx[i])
			coef, ok := util.ParseCoefficient(raw)
			if !ok {
				return internal.CalculationResult{}, &internal.RecordError{
					Position: pos,
					ID:       rec.ID,
					Process:  rec.Process,
					Column:   name,
					Err:      internal.ErrInvalidCoefficient,
					Detail:   fmt.Sprintf("cell value %q", raw),
				}
			}
			totals[i] = totals[i].Add(coef.Mul(qty))
		}
	}

	for i, name := range chosen {
		result.Totals = append(result.Totals, internal.ImpactTotal{Category: name, Total: totals[i]})
	}
	return result, nil
}

func (a *Aggregator) resolveCategories(tbl *table.Table, categories []string) ([]string, []internal.IgnoredCategory) {
	reserved := map[string]struct{}{}
	for _, r := range a.Reserved {
		reserved[r] = struct{}{}
	}
	options := make([]string, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		if _, ok := reserved[c]; !ok {
			options = append(options, c)
		}
	}

	chosen := []string{}
	ignored := []internal.IgnoredCategory{}
	seen := map[string]struct{}{}
	for _, name := range categories {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if _, ok := reserved[name]; ok && tbl.HasColumn(name) {
			ignored = append(ignored, internal.IgnoredCategory{Name: name, Reason: internal.IgnoredReserved})
			continue
		}
		if !tbl.HasColumn(name) {
			ig := internal.IgnoredCategory{Name: name, Reason: internal.IgnoredNotInTable}
			if s, ok := util.Closest(name, options, suggestionThreshold); ok {
				ig.Suggestion = util.StringPtr(s.Value)
			}
			ignored = append(ignored, ig)
			continue
		}
		chosen = append(chosen, name)
	}
	return chosen, ignored
}
