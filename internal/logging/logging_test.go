package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	cfg := DefaultConfig()
	cfg.File = path
	cfg.Level = "debug"
	log, sync, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Named("engine").Debug("tick committed")
	sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"tick committed"`) || !strings.Contains(string(b), `"logger":"engine"`) {
		t.Fatalf("unexpected log contents: %s", b)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for bad level")
	}
	if _, _, err := New(Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error for bad format")
	}
}
