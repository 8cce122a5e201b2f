// Package selection keeps the user's bill of materials: an ordered list of
// selection records addressed either by position or by a stable id.
package selection

import (
	"fmt"

	"github.com/google/uuid"

	"idemat/internal"
)

const DefaultQuantity = "1"

// Store is not safe for concurrent use; callers serialise access.
type Store struct {
	records []internal.SelectionRecord
	newID   func() string
}

func NewStore() *Store {
	return &Store{newID: func() string { return uuid.NewString() }}
}

// Add appends a record with the default quantity. The same process may be
// added any number of times; each call is its own line item.
func (s *Store) Add(category, process, unit string) internal.SelectionRecord {
	rec := internal.SelectionRecord{
		ID:       s.newID(),
		Category: category,
		Process:  process,
		Unit:     unit,
		Quantity: DefaultQuantity,
	}
	s.records = append(s.records, rec)
	return rec
}

// Insert places rec at position, shifting later records up. A record without
// an id gets a fresh one.
func (s *Store) Insert(position int, rec internal.SelectionRecord) (internal.SelectionRecord, error) {
	if position < 0 || position > len(s.records) {
		return internal.SelectionRecord{}, s.outOfRange(position)
	}
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if _, ok := s.Position(rec.ID); ok {
		return internal.SelectionRecord{}, fmt.Errorf("duplicate selection id %s", rec.ID)
	}
	s.records = append(s.records, internal.SelectionRecord{})
	copy(s.records[position+1:], s.records[position:])
	s.records[position] = rec
	return rec, nil
}

// SetQuantity stores text as-is; it is only interpreted at calculation time.
func (s *Store) SetQuantity(position int, text string) error {
	if position < 0 || position >= len(s.records) {
		return s.outOfRange(position)
	}
	s.records[position].Quantity = text
	return nil
}

func (s *Store) SetQuantityByID(id, text string) error {
	pos, ok := s.Position(id)
	if !ok {
		return s.unknownID(id)
	}
	s.records[pos].Quantity = text
	return nil
}

// RemoveAt deletes the record at position; later records move down by one.
func (s *Store) RemoveAt(position int) (internal.SelectionRecord, error) {
	if position < 0 || position >= len(s.records) {
		return internal.SelectionRecord{}, s.outOfRange(position)
	}
	rec := s.records[position]
	s.records = append(s.records[:position], s.records[position+1:]...)
	return rec, nil
}

func (s *Store) Remove(id string) (internal.SelectionRecord, error) {
	pos, ok := s.Position(id)
	if !ok {
		return internal.SelectionRecord{}, s.unknownID(id)
	}
	return s.RemoveAt(pos)
}

func (s *Store) Position(id string) (int, bool) {
	for i, rec := range s.records {
		if rec.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) Get(id string) (internal.SelectionRecord, bool) {
	pos, ok := s.Position(id)
	if !ok {
		return internal.SelectionRecord{}, false
	}
	return s.records[pos], true
}

// List returns a copy of the records in order.
func (s *Store) List() []internal.SelectionRecord {
	out := make([]internal.SelectionRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) Clear() {
	s.records = nil
}

func (s *Store) outOfRange(position int) error {
	return &internal.RecordError{
		Position: position,
		Err:      internal.ErrIndexOutOfRange,
		Detail:   fmt.Sprintf("store holds %d records", len(s.records)),
	}
}

func (s *Store) unknownID(id string) error {
	return &internal.RecordError{Position: -1, ID: id, Err: internal.ErrIndexOutOfRange, Detail: "no such selection"}
}
