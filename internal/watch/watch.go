// Package watch polls the workbook and refreshes cached tables when the file
// is replaced.
package watch

import (
	"context"
	"log/slog"
	"time"

	"idemat/internal/logging"
	"idemat/internal/table"
)

type Loader interface {
	Identity() (string, error)
	Load(sheet string) (*table.Table, error)
}

type Pruner interface {
	PruneTables(identity string) (int64, error)
}

type Service struct {
	loader   Loader
	pruner   Pruner
	sheets   []string
	interval time.Duration
	log      *slog.Logger

	identity string
}

// NewService builds a watcher; pruner may be nil.
func NewService(loader Loader, pruner Pruner, sheets []string, interval time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{loader: loader, pruner: pruner, sheets: sheets, interval: interval, log: log}
}

// Run checks the workbook every interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.RunCycle(); err != nil {
			s.log.Warn("watch cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.interval):
		}
	}
}

func (s *Service) RunCycle() error {
	_, err := s.Check()
	return err
}

// Check normalizes the configured sheets when the workbook content changed
// since the last check and drops tables cached for older content. It reports
// whether a change was seen.
func (s *Service) Check() (bool, error) {
	identity, err := s.loader.Identity()
	if err != nil {
		return false, err
	}
	if identity == s.identity {
		return false, nil
	}

	start := time.Now()
	for _, sheet := range s.sheets {
		if _, err := s.loader.Load(sheet); err != nil {
			s.log.Warn("prewarm sheet", "sheet", sheet, "err", err)
		}
	}
	var pruned int64
	if s.pruner != nil {
		if pruned, err = s.pruner.PruneTables(identity); err != nil {
			return false, err
		}
	}
	s.log.Info("workbook refreshed", "identity", identity, "sheets", len(s.sheets), "pruned", pruned, "ms", time.Since(start).Milliseconds())
	s.identity = identity
	return true, nil
}
