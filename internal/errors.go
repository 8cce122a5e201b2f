package internal

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrMalformedSheet      = errors.New("malformed sheet")
	ErrColumnNotFound      = errors.New("column not found")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrProcessNotFound     = errors.New("process not found")
	ErrInvalidCoefficient  = errors.New("invalid coefficient")
	ErrInvalidChoice       = errors.New("invalid choice")
	ErrIncompleteSelection = errors.New("incomplete selection")
)

// SheetError ties a failure to a workbook sheet.
type SheetError struct {
	Source string
	Sheet  string
	Err    error
	Detail string
}

func (e *SheetError) Error() string {
	msg := fmt.Sprintf("%v: sheet %q", e.Err, e.Sheet)
	if e.Source != "" {
		msg = fmt.Sprintf("%v: %s sheet %q", e.Err, e.Source, e.Sheet)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *SheetError) Unwrap() error {
	return e.Err
}

// ColumnError ties a failure to a column of a normalized table.
type ColumnError struct {
	Sheet  string
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("%v: %q", e.Err, e.Column)
	}
	return fmt.Sprintf("%v: %q in sheet %q", e.Err, e.Column, e.Sheet)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}

// RecordError ties a failure to one selection record. Position is -1 when
// the record was addressed by id only.
type RecordError struct {
	Position int
	ID       string
	Process  string
	Column   string
	Err      error
	Detail   string
}

func (e *RecordError) Error() string {
	msg := fmt.Sprintf("%v: record", e.Err)
	if e.Position >= 0 {
		msg += fmt.Sprintf(" #%d", e.Position)
	}
	if e.ID != "" {
		msg += fmt.Sprintf(" id=%s", e.ID)
	}
	if e.Process != "" {
		msg += fmt.Sprintf(" process=%q", e.Process)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" column=%q", e.Column)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
