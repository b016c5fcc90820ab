package engine

import "testing"

func TestMetricsAfterStep(t *testing.T) {
	e, _ := newEngine(t, twoRooms(t), Config{})
	done := e.Register("alice", spawner)
	if m := e.Metrics(); m.QueuedOps != 1 || m.Players != 0 {
		t.Fatalf("before step: %+v", m)
	}
	step(t, e)
	if err := wait(t, done); err != nil {
		t.Fatalf("register: %v", err)
	}

	m := e.Metrics()
	if m.Tick != 1 || m.Rooms != 2 || m.Players != 1 || m.QueuedOps != 0 {
		t.Fatalf("metrics: %+v", m)
	}
	if m.Creeps != 1 {
		t.Fatalf("creeps: %d", m.Creeps)
	}
	// two controllers, two sources and the starter spawn
	if m.Structures != 5 {
		t.Fatalf("structures: %d", m.Structures)
	}
	if m.LastFaults != 0 || m.State != Persisted {
		t.Fatalf("last step: %+v", m)
	}
}
