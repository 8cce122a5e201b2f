// Package app wires configuration, storage and the workbook loader into a
// calculation session.
package app

import (
	"log/slog"

	"idemat/internal/config"
	"idemat/internal/session"
	"idemat/internal/storage"
	"idemat/internal/table"
	"idemat/internal/workbook"
)

type App struct {
	Cfg    config.Config
	Log    *slog.Logger
	DB     *storage.DB
	Loader *workbook.Loader
}

func New(cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var cache workbook.TableCache
	if cfg.TableCache {
		cache = db
	}
	loader := workbook.NewLoader(cfg.WorkbookPath, Layout(cfg), cache, log)
	return &App{Cfg: cfg, Log: log, DB: db, Loader: loader}, nil
}

func Layout(cfg config.Config) table.Layout {
	return table.Layout{
		HeaderRows:        cfg.HeaderRows,
		IDColumns:         cfg.IDColumns,
		Separator:         cfg.HeaderSeparator,
		PlaceholderPrefix: cfg.PlaceholderPrefix,
	}
}

// Session starts a fresh session whose calculations are logged to the db.
func (a *App) Session() *session.Session {
	return session.New(a.Loader, session.Options{
		Sheets:         a.Cfg.Sheets,
		CategoryColumn: a.Cfg.CategoryColumn,
		ProcessColumn:  a.Cfg.ProcessColumn,
		UnitColumn:     a.Cfg.UnitColumn,
		Policy:         a.Cfg.MissingProcessPolicy,
		Runs:           a.DB,
		Log:            a.Log,
	})
}

// PruneTableCache drops cached tables of older workbook versions.
func (a *App) PruneTableCache() (int64, error) {
	identity, err := a.Loader.Identity()
	if err != nil {
		return 0, err
	}
	n, err := a.DB.PruneTables(identity)
	if err != nil {
		return 0, err
	}
	a.Log.Info("table cache pruned", "removed", n, "identity", identity)
	return n, nil
}

func (a *App) Close() error {
	lerr := a.Loader.Close()
	if err := a.DB.Close(); err != nil {
		return err
	}
	return lerr
}
