// Package storage persists normalized tables and the calculation log in
// SQLite.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"idemat/internal"
	"idemat/internal/table"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS tables (
  identity TEXT NOT NULL,
  sheet TEXT NOT NULL,
  layout TEXT NOT NULL,
  columnsJson TEXT NOT NULL,
  rowsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(identity, sheet, layout)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  sheet TEXT NOT NULL,
  categoriesJson TEXT NOT NULL,
  totalsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_createdAt ON runs(createdAt);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// GetTable returns the cached table, or nil when none is stored.
func (d *DB) GetTable(identity, sheet, layout string) (*table.Table, error) {
	var columnsJSON, rowsJSON string
	err := d.conn.QueryRow(`
SELECT columnsJson, rowsJson FROM tables WHERE identity = ? AND sheet = ? AND layout = ?
`, identity, sheet, layout).Scan(&columnsJSON, &rowsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var columns []string
	if err := json.Unmarshal([]byte(columnsJSON), &columns); err != nil {
		return nil, fmt.Errorf("decode cached columns: %w", err)
	}
	var rows [][]string
	if err := json.Unmarshal([]byte(rowsJSON), &rows); err != nil {
		return nil, fmt.Errorf("decode cached rows: %w", err)
	}
	return table.New(sheet, columns, rows), nil
}

func (d *DB) PutTable(identity, sheet, layout string, t *table.Table) error {
	columnsJSON, err := json.Marshal(t.Columns)
	if err != nil {
		return err
	}
	rowsJSON, err := json.Marshal(t.Rows)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO tables (identity, sheet, layout, columnsJson, rowsJson)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(identity, sheet, layout) DO UPDATE SET
  columnsJson=excluded.columnsJson,
  rowsJson=excluded.rowsJson,
  createdAt=CURRENT_TIMESTAMP
`, identity, sheet, layout, string(columnsJSON), string(rowsJSON))
	return err
}

// PruneTables drops cached tables of workbook versions other than identity.
func (d *DB) PruneTables(identity string) (int64, error) {
	res, err := d.conn.Exec(`DELETE FROM tables WHERE identity <> ?`, identity)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) InsertRun(traceID string, result internal.CalculationResult, categories []string, counts map[string]int) (int64, error) {
	categoriesJSON, _ := json.Marshal(categories)
	totalsJSON, _ := json.Marshal(result.Totals)
	countsJSON, _ := json.Marshal(counts)
	res, err := d.conn.Exec(`
INSERT INTO runs (traceId, sheet, categoriesJson, totalsJson, countsJson, createdAt)
VALUES (?, ?, ?, ?, ?, ?)
`, traceID, result.Sheet, string(categoriesJSON), string(totalsJSON), string(countsJSON), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(limit int) ([]internal.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, sheet, categoriesJson, totalsJson, countsJson, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.RunRecord{}
	for rows.Next() {
		var run internal.RunRecord
		var categoriesJSON, totalsJSON, countsJSON, createdAt string
		if err := rows.Scan(&run.ID, &run.TraceID, &run.Sheet, &categoriesJSON, &totalsJSON, &countsJSON, &createdAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(categoriesJSON), &run.Categories)
		_ = json.Unmarshal([]byte(totalsJSON), &run.Totals)
		_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
		run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
