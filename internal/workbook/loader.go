package workbook

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"idemat/internal/logging"
	"idemat/internal/table"
)

// TableCache persists normalized tables between processes. GetTable returns
// nil, nil when nothing is stored under the key.
type TableCache interface {
	GetTable(identity, sheet, layout string) (*table.Table, error)
	PutTable(identity, sheet, layout string, t *table.Table) error
}

// Loader opens the workbook lazily and memoises normalized tables keyed by
// content hash, sheet and layout. A file whose size or modification time
// changed is reopened and rehashed, which invalidates old entries.
type Loader struct {
	path    string
	layout  table.Layout
	persist TableCache
	log     *slog.Logger

	mu      sync.Mutex
	wb      *Workbook
	size    int64
	modTime time.Time
	tables  map[string]*table.Table
}

// NewLoader builds a loader; persist may be nil.
func NewLoader(path string, layout table.Layout, persist TableCache, log *slog.Logger) *Loader {
	if log == nil {
		log = logging.Discard()
	}
	return &Loader{path: path, layout: layout, persist: persist, log: log, tables: map[string]*table.Table{}}
}

func (l *Loader) SheetNames() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wb, err := l.workbook()
	if err != nil {
		return nil, err
	}
	return wb.SheetNames(), nil
}

// Load returns the normalized table for sheet.
func (l *Loader) Load(sheet string) (*table.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wb, err := l.workbook()
	if err != nil {
		return nil, err
	}
	identity := wb.Identity()
	layoutKey := l.layout.Key()
	key := identity + "|" + sheet + "|" + layoutKey
	if t, ok := l.tables[key]; ok {
		return t, nil
	}

	if l.persist != nil {
		t, err := l.persist.GetTable(identity, sheet, layoutKey)
		if err != nil {
			l.log.Warn("table cache read failed", "sheet", sheet, "err", err)
		} else if t != nil {
			l.log.Debug("table cache hit", "sheet", sheet, "identity", identity)
			l.tables[key] = t
			return t, nil
		}
	}

	start := time.Now()
	raw, err := wb.ReadSheet(sheet)
	if err != nil {
		return nil, err
	}
	t, err := table.Normalize(raw, l.layout)
	if err != nil {
		return nil, err
	}
	l.log.Info("sheet normalized", "sheet", sheet, "columns", len(t.Columns), "rows", t.Len(), "ms", time.Since(start).Milliseconds())

	l.tables[key] = t
	if l.persist != nil {
		if err := l.persist.PutTable(identity, sheet, layoutKey, t); err != nil {
			l.log.Warn("table cache write failed", "sheet", sheet, "err", err)
		}
	}
	return t, nil
}

// Identity returns the content hash of the current workbook file.
func (l *Loader) Identity() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wb, err := l.workbook()
	if err != nil {
		return "", err
	}
	return wb.Identity(), nil
}

func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.wb == nil {
		return nil
	}
	err := l.wb.Close()
	l.wb = nil
	return err
}

// workbook returns the open workbook, reopening it when the file changed.
// Callers hold l.mu.
func (l *Loader) workbook() (*Workbook, error) {
	info, statErr := os.Stat(l.path)
	if l.wb != nil && statErr == nil && info.Size() == l.size && info.ModTime().Equal(l.modTime) {
		return l.wb, nil
	}

	wb, err := Open(l.path)
	if err != nil {
		return nil, err
	}
	if l.wb != nil {
		_ = l.wb.Close()
		if l.wb.Identity() != wb.Identity() {
			l.log.Info("workbook changed, dropping cached tables", "path", l.path)
			l.tables = map[string]*table.Table{}
		}
	}
	l.wb = wb
	if statErr == nil {
		l.size = info.Size()
		l.modTime = info.ModTime()
	}
	return wb, nil
}
