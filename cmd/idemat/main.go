package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"idemat/internal"
	"idemat/internal/app"
	"idemat/internal/config"
	"idemat/internal/logging"
	"idemat/internal/report"
	"idemat/internal/selection"
	"idemat/internal/session"
	"idemat/internal/table"
)

var (
	workbookPath string
	logLevel     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "idemat",
		Short:         "Environmental impact totals for a bill of materials from the Idemat workbook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&workbookPath, "workbook", "", "workbook path (default from IDEMAT_WORKBOOK)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (default from LOG_LEVEL)")

	rootCmd.AddCommand(
		newSheetsCmd(),
		newColumnsCmd(),
		newValuesCmd(),
		newDescribeCmd(),
		newCalcCmd(),
		newRunsCmd(),
		newPruneCacheCmd(),
	)

	must(rootCmd.Execute())
}

func open() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if workbookPath != "" {
		cfg.WorkbookPath = workbookPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return app.New(cfg, logging.New(os.Stderr, cfg))
}

// loadSheet selects sheet in a fresh session, defaulting to the first
// configured sheet.
func loadSheet(a *app.App, sheet string) (*session.Session, *table.Table, error) {
	s := a.Session()
	if sheet == "" {
		sheets, err := s.Sheets()
		if err != nil {
			return nil, nil, err
		}
		if len(sheets) == 0 {
			return nil, nil, fmt.Errorf("%w: no configured sheet in %s", internal.ErrSourceUnavailable, a.Cfg.WorkbookPath)
		}
		sheet = sheets[0]
	}
	if err := s.SelectSheet(sheet); err != nil {
		return nil, nil, err
	}
	return s, s.Table(), nil
}

func newSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets",
		Short: "List the selectable sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			sheets, err := a.Session().Sheets()
			if err != nil {
				return err
			}
			for _, name := range sheets {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newColumnsCmd() *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "List the normalized columns of a sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			_, tbl, err := loadSheet(a, sheet)
			if err != nil {
				return err
			}
			for _, c := range tbl.Columns {
				fmt.Println(c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name")
	return cmd
}

func newValuesCmd() *cobra.Command {
	var sheet, column string
	var where []string
	cmd := &cobra.Command{
		Use:   "values",
		Short: "List the distinct values of a column",
		Long: `List the distinct non-empty values of a column in first-occurrence order.

Example: idemat values --column Process --where Category=Metals`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			_, tbl, err := loadSheet(a, sheet)
			if err != nil {
				return err
			}
			for _, cond := range where {
				col, value, ok := strings.Cut(cond, "=")
				if !ok {
					return fmt.Errorf("--where expects column=value, got %q", cond)
				}
				if tbl, err = tbl.Where(col, value); err != nil {
					return err
				}
			}
			values, err := tbl.DistinctValues(column)
			if err != nil {
				return err
			}
			for _, v := range values {
				fmt.Println(v)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name")
	cmd.Flags().StringVar(&column, "column", "Category", "column name")
	cmd.Flags().StringArrayVar(&where, "where", nil, "filter column=value (repeatable)")
	return cmd
}

func newDescribeCmd() *cobra.Command {
	var sheet, column string
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Summary statistics of an impact category column",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			_, tbl, err := loadSheet(a, sheet)
			if err != nil {
				return err
			}
			st, err := tbl.Describe(column)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "column\t%s\n", st.Column)
			fmt.Fprintf(tw, "numeric\t%d\n", st.Count)
			fmt.Fprintf(tw, "blank\t%d\n", st.Blank)
			fmt.Fprintf(tw, "non-numeric\t%d\n", st.NonNumeric)
			if st.Count > 0 {
				fmt.Fprintf(tw, "sum\t%g\n", st.Sum)
				fmt.Fprintf(tw, "min\t%g\n", st.Min)
				fmt.Fprintf(tw, "max\t%g\n", st.Max)
				fmt.Fprintf(tw, "mean\t%g\n", st.Mean)
				fmt.Fprintf(tw, "median\t%g\n", st.Median)
				fmt.Fprintf(tw, "stddev\t%g\n", st.StdDev)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name")
	cmd.Flags().StringVar(&column, "column", "", "impact category column")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

func newCalcCmd() *cobra.Command {
	var sheet, billPath, out, saveBill string
	var items, categories []string
	var skipMissing, asJSON bool
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate impact totals for a bill of materials",
		Long: `Calculate impact totals for a bill of materials.

Items are given as "Process=quantity" (repeatable) and/or read from a CSV bill
with a header naming at least a "process" column.

Example: idemat calc --item "Steel, primary=3" --category "kg CO2_equiv" --out ./out/totals.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(categories) == 0 {
				return fmt.Errorf("at least one --category is required")
			}
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()
			if skipMissing {
				a.Cfg.MissingProcessPolicy = internal.MissingProcessSkip
			}

			s, tbl, err := loadSheet(a, sheet)
			if err != nil {
				return err
			}

			records := []internal.SelectionRecord{}
			if billPath != "" {
				f, err := os.Open(billPath)
				if err != nil {
					return err
				}
				bill, err := selection.ReadBill(f)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("read bill %s: %w", billPath, err)
				}
				records = append(records, bill...)
			}
			for _, item := range items {
				rec, err := parseItem(item)
				if err != nil {
					return err
				}
				records = append(records, fillFromTable(a.Cfg, tbl, rec))
			}
			if len(records) == 0 {
				return fmt.Errorf("nothing to calculate: pass --item or --bill")
			}
			if _, err := s.ImportSelections(records); err != nil {
				return err
			}
			s.ChooseImpactCategories(categories)

			result, err := s.Calculate()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else if err := report.WriteTotalsTable(os.Stdout, result); err != nil {
				return err
			}

			if out != "" {
				if err := report.ExportTotalsToXLSX(result, s.Selections(), out); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "exported totals to %s\n", out)
			}
			if saveBill != "" {
				if err := writeBillFile(saveBill, s.Selections()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name (default: first configured)")
	cmd.Flags().StringArrayVar(&items, "item", nil, `selection as "Process=quantity" (repeatable)`)
	cmd.Flags().StringVar(&billPath, "bill", "", "CSV bill of materials")
	cmd.Flags().StringArrayVar(&categories, "category", nil, "impact category column (repeatable)")
	cmd.Flags().BoolVar(&skipMissing, "skip-missing", false, "skip selections whose process is not in the sheet")
	cmd.Flags().StringVar(&out, "out", "", "write totals to this xlsx path")
	cmd.Flags().StringVar(&saveBill, "save-bill", "", "write the bill to this CSV path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// parseItem splits "Process=quantity" at the last '='; process names may
// themselves contain '='.
func parseItem(item string) (internal.SelectionRecord, error) {
	i := strings.LastIndex(item, "=")
	if i <= 0 {
		return internal.SelectionRecord{Process: strings.TrimSpace(item), Quantity: selection.DefaultQuantity}, nil
	}
	process := strings.TrimSpace(item[:i])
	if process == "" {
		return internal.SelectionRecord{}, fmt.Errorf("--item %q has no process", item)
	}
	return internal.SelectionRecord{Process: process, Quantity: strings.TrimSpace(item[i+1:])}, nil
}

// fillFromTable copies category and unit from the first row of the process.
func fillFromTable(cfg config.Config, tbl *table.Table, rec internal.SelectionRecord) internal.SelectionRecord {
	row, ok, err := tbl.FirstRow(cfg.ProcessColumn, rec.Process)
	if err != nil || !ok {
		return rec
	}
	rec.Category, _ = tbl.Value(row, cfg.CategoryColumn)
	rec.Unit, _ = tbl.Value(row, cfg.UnitColumn)
	return rec
}

func writeBillFile(path string, records []internal.SelectionRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := selection.WriteBill(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent calculations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.DB.ListRuns(limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tWHEN\tSHEET\tSELECTIONS\tTOTALS\n")
			for _, run := range runs {
				parts := make([]string, 0, len(run.Totals))
				for _, t := range run.Totals {
					parts = append(parts, fmt.Sprintf("%s=%s", t.Category, t.Total.String()))
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					run.Sheet, run.Counts["selections"], strings.Join(parts, "; "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs")
	return cmd
}

func newPruneCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-cache",
		Short: "Drop cached tables of older workbook versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.PruneTableCache()
			if err != nil {
				return err
			}
			fmt.Printf("removed %d cached tables\n", n)
			return nil
		},
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
