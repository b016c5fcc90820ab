package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
tick_interval_ms: 250
script_budget_ms: 20
maze:
  rooms_x: 2
logging:
  level: debug
`)
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickIntervalMs != 250 || tu.Maze.RoomsX != 2 || tu.Logging.Level != "debug" {
		t.Fatalf("overlay not applied: %+v", tu)
	}
	d := Defaults()
	if tu.Maze.RoomsY != d.Maze.RoomsY || tu.Maze.CellsPerRoom != d.Maze.CellsPerRoom || tu.Logging.Format != d.Logging.Format {
		t.Fatalf("defaults lost: %+v", tu)
	}
	if tu.ScriptConfig().Budget != 20*time.Millisecond {
		t.Fatalf("budget: %v", tu.ScriptConfig().Budget)
	}
	if g := tu.GenParams(); g.IntervalMs != 250 || g.Maze.RoomsX != 2 {
		t.Fatalf("gen params: %+v", g)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	for body, want := range map[string]string{
		"tick_interval_ms: 0":          "tick_interval_ms",
		"maze:\n  swamp_rate: 2":       "swamp_rate",
		"maze:\n  cells_per_room: 7":   "cells_per_room",
		"script_max_call_stack: -1":    "script_max_call_stack",
		"tick_interval_ms: [not, int]": "tuning.yaml",
	} {
		_, err := Load(writeFile(t, body))
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("%q: expected error mentioning %q, got %v", body, want, err)
		}
	}
}

func TestShippedConfigLoads(t *testing.T) {
	if _, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml")); err != nil {
		t.Fatalf("configs/tuning.yaml: %v", err)
	}
}
