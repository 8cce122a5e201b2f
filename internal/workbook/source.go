// Package workbook reads raw sheets from the source spreadsheet and caches
// their normalized form.
package workbook

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"idemat/internal"
)

// Workbook is an opened source file. CSV files expose a single sheet named
// after the file.
type Workbook struct {
	Name     string
	identity string
	xlsx     *excelize.File
	csvSheet string
	csvRows  [][]string
}

func Open(path string) (*Workbook, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, &internal.SheetError{Source: path, Err: internal.ErrSourceUnavailable, Detail: err.Error()}
	}
	return OpenBytes(path, blob)
}

func OpenBytes(name string, blob []byte) (*Workbook, error) {
	sum := sha256.Sum256(blob)
	wb := &Workbook{Name: name, identity: hex.EncodeToString(sum[:])}

	if strings.EqualFold(filepath.Ext(name), ".csv") {
		r := csv.NewReader(bytes.NewReader(blob))
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		rows, err := r.ReadAll()
		if err != nil {
			return nil, &internal.SheetError{Source: name, Err: internal.ErrSourceUnavailable, Detail: err.Error()}
		}
		wb.csvSheet = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		wb.csvRows = rows
		return wb, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return nil, &internal.SheetError{Source: name, Err: internal.ErrSourceUnavailable, Detail: err.Error()}
	}
	wb.xlsx = f
	return wb, nil
}

func (w *Workbook) Close() error {
	if w.xlsx != nil {
		return w.xlsx.Close()
	}
	return nil
}

// Identity is the sha256 of the file content; it changes whenever the file
// does.
func (w *Workbook) Identity() string {
	return w.identity
}

func (w *Workbook) SheetNames() []string {
	if w.xlsx == nil {
		return []string{w.csvSheet}
	}
	return w.xlsx.GetSheetList()
}

// ReadSheet returns the sheet's cells as text. Numeric cells are read raw,
// not through the cell's display format, so coefficients keep full precision.
func (w *Workbook) ReadSheet(name string) (internal.RawSheet, error) {
	if w.xlsx == nil {
		if name != w.csvSheet {
			return internal.RawSheet{}, w.missing(name)
		}
		return internal.RawSheet{Name: name, Rows: w.csvRows}, nil
	}

	if idx, err := w.xlsx.GetSheetIndex(name); err != nil || idx < 0 {
		return internal.RawSheet{}, w.missing(name)
	}
	rows, err := w.xlsx.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return internal.RawSheet{}, &internal.SheetError{Source: w.Name, Sheet: name, Err: internal.ErrSourceUnavailable, Detail: err.Error()}
	}
	return internal.RawSheet{Name: name, Rows: rows}, nil
}

func (w *Workbook) missing(name string) error {
	return &internal.SheetError{
		Source: w.Name,
		Sheet:  name,
		Err:    internal.ErrSourceUnavailable,
		Detail: fmt.Sprintf("no such sheet (have %s)", strings.Join(w.SheetNames(), ", ")),
	}
}
