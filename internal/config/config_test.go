package config

import (
	"testing"

	"idemat/internal"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IDEMAT_SHEETS", "")
	t.Setenv("MISSING_PROCESS_POLICY", "")
	t.Setenv("HEADER_ROWS", "")
	t.Setenv("ID_COLUMNS", "")
	t.Setenv("HEADER_SEPARATOR", "_")
	t.Setenv("WATCH_INTERVAL_SEC", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HeaderRows != 3 || cfg.IDColumns != 3 || cfg.HeaderSeparator != "_" {
		t.Fatalf("unexpected layout: %+v", cfg)
	}
	if len(cfg.Sheets) != 2 || cfg.Sheets[1] != "Idemat2024 midpoints" {
		t.Fatalf("sheets=%v", cfg.Sheets)
	}
	if cfg.MissingProcessPolicy != internal.MissingProcessFail {
		t.Fatalf("policy=%s", cfg.MissingProcessPolicy)
	}
	if cfg.WatchIntervalSec != 60 {
		t.Fatalf("watch=%d", cfg.WatchIntervalSec)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IDEMAT_SHEETS", " A sheet , B ,,")
	t.Setenv("HEADER_ROWS", "2")
	t.Setenv("TABLE_CACHE", "off")
	t.Setenv("MISSING_PROCESS_POLICY", "SKIP")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Sheets) != 2 || cfg.Sheets[0] != "A sheet" || cfg.Sheets[1] != "B" {
		t.Fatalf("sheets=%q", cfg.Sheets)
	}
	if cfg.HeaderRows != 2 {
		t.Fatalf("headerRows=%d", cfg.HeaderRows)
	}
	if cfg.TableCache {
		t.Fatal("table cache should be off")
	}
	if cfg.MissingProcessPolicy != internal.MissingProcessSkip {
		t.Fatalf("policy=%s", cfg.MissingProcessPolicy)
	}
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("MISSING_PROCESS_POLICY", "ignore")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}
