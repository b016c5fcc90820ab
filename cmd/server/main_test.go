package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"creepworld.ai/internal/persistence/scripts"
	"creepworld.ai/internal/sim/engine"
	"creepworld.ai/internal/sim/script"
	"creepworld.ai/internal/sim/world"
)

func TestEnvBool(t *testing.T) {
	t.Setenv("CW_TEST_BOOL", "true")
	if !envBool("CW_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("CW_TEST_BOOL", "nope")
	if envBool("CW_TEST_BOOL", false) {
		t.Fatalf("unparsable value should fall back to default")
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	dir := t.TempDir()
	if idx, err := openRuntimeIndex(dir, true); err != nil || idx != nil {
		t.Fatalf("disabled: %v %v", idx, err)
	}
	t.Setenv("CW_INDEX_BACKEND", "off")
	if idx, err := openRuntimeIndex(dir, false); err != nil || idx != nil {
		t.Fatalf("off: %v %v", idx, err)
	}
	t.Setenv("CW_INDEX_BACKEND", "postgres")
	if _, err := openRuntimeIndex(dir, false); err == nil {
		t.Fatalf("unknown backend accepted")
	}
	t.Setenv("CW_INDEX_BACKEND", "")
	idx, err := openRuntimeIndex(dir, false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: %v", err)
	}
	_ = idx.Close()
}

func TestMetricsHandler(t *testing.T) {
	w, err := world.Generate("metrics", world.DefaultGenParams())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	eng := engine.New(w, engine.Config{Script: script.DefaultConfig()}, engine.Deps{Store: scripts.NewMemStore()}, zap.NewNop())
	if _, err := eng.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}

	rec := httptest.NewRecorder()
	metricsHandler(eng, nil)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"creepworld_tick 1\n",
		`creepworld_objects{kind="room"} 9`,
		`creepworld_engine_state{state="persisted"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
	if strings.Contains(body, "creepworld_index_") {
		t.Fatalf("index metrics without an index")
	}
}
