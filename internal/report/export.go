// Package report renders calculation results as a spreadsheet or a plain
// text table.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"

	"idemat/internal"
)

const (
	totalsSheet     = "Totals"
	selectionsSheet = "Selections"
	issuesSheet     = "Issues"
)

// BuildWorkbook lays out totals, the bill of selections and, when present,
// the issues found while calculating.
func BuildWorkbook(result internal.CalculationResult, selections []internal.SelectionRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), totalsSheet); err != nil {
		return nil, err
	}

	writeRow(f, totalsSheet, 1, "sheet", result.Sheet)
	writeRow(f, totalsSheet, 3, "impact_category", "total")
	for i, t := range result.Totals {
		writeRow(f, totalsSheet, i+4, t.Category, t.Total.InexactFloat64())
	}

	if _, err := f.NewSheet(selectionsSheet); err != nil {
		return nil, err
	}
	writeRow(f, selectionsSheet, 1, "position", "id", "category", "process", "unit", "quantity")
	for i, s := range selections {
		writeRow(f, selectionsSheet, i+2, i, s.ID, s.Category, s.Process, s.Unit, s.Quantity)
	}

	if len(result.Ignored)+len(result.InvalidQuantities)+len(result.Skipped) > 0 {
		if _, err := f.NewSheet(issuesSheet); err != nil {
			return nil, err
		}
		writeRow(f, issuesSheet, 1, "kind", "subject", "detail", "suggestion")
		r := 2
		for _, ig := range result.Ignored {
			writeRow(f, issuesSheet, r, "ignored_category", ig.Name, string(ig.Reason), derefString(ig.Suggestion))
			r++
		}
		for _, q := range result.InvalidQuantities {
			writeRow(f, issuesSheet, r, "invalid_quantity", q.Process, fmt.Sprintf("position %d quantity %q", q.Position, q.Quantity), "")
			r++
		}
		for _, s := range result.Skipped {
			writeRow(f, issuesSheet, r, "skipped", s.Process, s.Reason, "")
			r++
		}
	}
	return f, nil
}

func ExportTotalsToXLSX(result internal.CalculationResult, selections []internal.SelectionRecord, outputPath string) error {
	f, err := BuildWorkbook(result, selections)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func WriteTotalsXLSX(w io.Writer, result internal.CalculationResult, selections []internal.SelectionRecord) error {
	f, err := BuildWorkbook(result, selections)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// WriteTotalsTable prints totals in category order followed by any issues.
func WriteTotalsTable(w io.Writer, result internal.CalculationResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "IMPACT CATEGORY\tTOTAL\n")
	for _, t := range result.Totals {
		fmt.Fprintf(tw, "%s\t%s\n", t.Category, t.Total.String())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, ig := range result.Ignored {
		line := fmt.Sprintf("ignored %q (%s)", ig.Name, ig.Reason)
		if ig.Suggestion != nil {
			line += fmt.Sprintf(", did you mean %q?", *ig.Suggestion)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	for _, q := range result.InvalidQuantities {
		if _, err := fmt.Fprintf(w, "quantity %q for %q counted as 0\n", q.Quantity, q.Process); err != nil {
			return err
		}
	}
	for _, s := range result.Skipped {
		if _, err := fmt.Fprintf(w, "skipped: %s\n", s.Reason); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
