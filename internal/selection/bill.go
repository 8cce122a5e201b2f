package selection

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"idemat/internal"
	"idemat/internal/util"
)

var billColumns = []string{"category", "process", "unit", "quantity"}

// ReadBill parses a CSV bill of materials. The header row names the columns
// (case-insensitive); only "process" is mandatory. A bill without a quantity
// column gets the default quantity on every line; an empty quantity cell is
// kept empty. Records come back without ids.
func ReadBill(r io.Reader) ([]internal.SelectionRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &internal.SheetError{Sheet: "bill", Err: internal.ErrMalformedSheet, Detail: "empty bill"}
	}
	if err != nil {
		return nil, &internal.SheetError{Sheet: "bill", Err: internal.ErrMalformedSheet, Detail: err.Error()}
	}

	idx := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(util.NormalizeCell(h))
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	if _, ok := idx["process"]; !ok {
		return nil, &internal.ColumnError{Sheet: "bill", Column: "process", Err: internal.ErrColumnNotFound}
	}
	_, hasQuantity := idx["quantity"]

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return util.NormalizeCell(row[i])
	}

	out := []internal.SelectionRecord{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &internal.SheetError{Sheet: "bill", Err: internal.ErrMalformedSheet, Detail: err.Error()}
		}
		rec := internal.SelectionRecord{
			Category: field(row, "category"),
			Process:  field(row, "process"),
			Unit:     field(row, "unit"),
			Quantity: field(row, "quantity"),
		}
		if rec.Process == "" {
			if rec.Category == "" && rec.Unit == "" && rec.Quantity == "" {
				continue
			}
			return nil, &internal.SheetError{Sheet: "bill", Err: internal.ErrMalformedSheet, Detail: fmt.Sprintf("line %d has no process", line)}
		}
		if !hasQuantity {
			rec.Quantity = DefaultQuantity
		}
		out = append(out, rec)
	}
	return out, nil
}

// WriteBill writes records in the format ReadBill accepts.
func WriteBill(w io.Writer, records []internal.SelectionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(billColumns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write([]string{rec.Category, rec.Process, rec.Unit, rec.Quantity}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
