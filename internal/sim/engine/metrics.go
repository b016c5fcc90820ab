package engine

import (
	"time"

	"creepworld.ai/internal/sim/world"
)

// Metrics is a point-in-time summary for the /metrics endpoint.
type Metrics struct {
	State      State
	Tick       uint64
	Rooms      int
	Players    int
	Creeps     int
	Structures int
	QueuedOps  int

	StepMs     float64
	LastFaults int
	Applied    int
	Failed     int
}

type lastStep struct {
	dur   time.Duration
	entry world.TickLogEntry
}

func (e *Engine) Metrics() Metrics {
	m := Metrics{State: e.State()}

	e.opsMu.Lock()
	m.QueuedOps = len(e.ops)
	e.opsMu.Unlock()

	e.lastMu.Lock()
	last := e.last
	e.lastMu.Unlock()
	m.StepMs = float64(last.dur.Microseconds()) / 1000
	m.LastFaults = last.entry.Faults()
	for _, n := range last.entry.Applied {
		m.Applied += n
	}
	for _, n := range last.entry.Failed {
		m.Failed += n
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	m.Tick = e.w.Time()
	m.Players = len(e.w.PlayerNames())
	for _, rn := range e.w.RoomNames() {
		r := e.w.Room(rn)
		m.Rooms++
		m.Creeps += len(r.Creeps)
		m.Structures += len(r.Structures)
	}
	return m
}
