package world

// TickLogEntry is the per-tick record written to the tick log and the sqlite index. It is
// operational output and never read back by the simulation.
type TickLogEntry struct {
	Tick    uint64         `json:"tick"`
	Digest  string         `json:"digest"`
	Runs    []PlayerRun    `json:"runs,omitempty"`
	Applied map[string]int `json:"applied,omitempty"`
	Failed  map[string]int `json:"failed,omitempty"`
	Spawned []string       `json:"spawned,omitempty"`
}

type PlayerRun struct {
	Player     string  `json:"player"`
	DurationMs float64 `json:"duration_ms"`
	Actions    int     `json:"actions"`
	Fault      string  `json:"fault,omitempty"`
	FaultKind  string  `json:"fault_kind,omitempty"`
}

// Faults counts the runs that ended in a fault.
func (e TickLogEntry) Faults() int {
	n := 0
	for _, r := range e.Runs {
		if r.Fault != "" {
			n++
		}
	}
	return n
}

// ResetEntry records a world reset.
type ResetEntry struct {
	Tick     uint64   `json:"tick"`
	Seed     string   `json:"seed"`
	Rooms    int      `json:"rooms"`
	Unplaced []string `json:"unplaced,omitempty"`
}

// TickEntry builds the log entry for a resolved tick.
func (r Report) TickEntry(tick uint64, digest string, runs []PlayerRun) TickLogEntry {
	e := TickLogEntry{Tick: tick, Digest: digest, Runs: runs, Spawned: r.Spawned}
	if len(r.Applied) > 0 {
		e.Applied = map[string]int{}
		for v, n := range r.Applied {
			e.Applied[string(v)] = n
		}
	}
	if len(r.Failed) > 0 {
		e.Failed = map[string]int{}
		for v, n := range r.Failed {
			e.Failed[string(v)] = n
		}
	}
	return e
}
