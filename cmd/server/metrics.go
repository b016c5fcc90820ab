package main

import (
	"fmt"
	"net/http"

	"creepworld.ai/internal/persistence/indexdb"
	"creepworld.ai/internal/sim/engine"
)

// metricsHandler writes the Prometheus text exposition format.
func metricsHandler(eng *engine.Engine, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := eng.Metrics()

		fmt.Fprintf(rw, "# HELP creepworld_tick Current world time.\n")
		fmt.Fprintf(rw, "# TYPE creepworld_tick gauge\n")
		fmt.Fprintf(rw, "creepworld_tick %d\n", m.Tick)

		fmt.Fprintf(rw, "# HELP creepworld_engine_state Engine state (0 idle .. 4 halted).\n")
		fmt.Fprintf(rw, "# TYPE creepworld_engine_state gauge\n")
		fmt.Fprintf(rw, "creepworld_engine_state{state=%q} %d\n", m.State.String(), m.State)

		fmt.Fprintf(rw, "# HELP creepworld_objects Objects in the world by kind.\n")
		fmt.Fprintf(rw, "# TYPE creepworld_objects gauge\n")
		fmt.Fprintf(rw, "creepworld_objects{kind=%q} %d\n", "room", m.Rooms)
		fmt.Fprintf(rw, "creepworld_objects{kind=%q} %d\n", "player", m.Players)
		fmt.Fprintf(rw, "creepworld_objects{kind=%q} %d\n", "creep", m.Creeps)
		fmt.Fprintf(rw, "creepworld_objects{kind=%q} %d\n", "structure", m.Structures)

		fmt.Fprintf(rw, "# HELP creepworld_queued_ops Admin operations waiting for the tick boundary.\n")
		fmt.Fprintf(rw, "# TYPE creepworld_queued_ops gauge\n")
		fmt.Fprintf(rw, "creepworld_queued_ops %d\n", m.QueuedOps)

		fmt.Fprintf(rw, "# HELP creepworld_step_ms Last tick duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE creepworld_step_ms gauge\n")
		fmt.Fprintf(rw, "creepworld_step_ms %.3f\n", m.StepMs)

		fmt.Fprintf(rw, "# HELP creepworld_last_tick Outcome counts of the last tick.\n")
		fmt.Fprintf(rw, "# TYPE creepworld_last_tick gauge\n")
		fmt.Fprintf(rw, "creepworld_last_tick{outcome=%q} %d\n", "fault", m.LastFaults)
		fmt.Fprintf(rw, "creepworld_last_tick{outcome=%q} %d\n", "applied", m.Applied)
		fmt.Fprintf(rw, "creepworld_last_tick{outcome=%q} %d\n", "failed", m.Failed)

		if idx == nil {
			return
		}
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP creepworld_index_queue_depth Index writer queue depth.\n")
		fmt.Fprintf(rw, "# TYPE creepworld_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "creepworld_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "creepworld_index_queue_capacity %d\n", s.QueueCapacity)

		fmt.Fprintf(rw, "# HELP creepworld_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE creepworld_index_dropped_total counter\n")
		fmt.Fprintf(rw, "creepworld_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
		fmt.Fprintf(rw, "creepworld_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
		fmt.Fprintf(rw, "creepworld_index_dropped_total{kind=%q} %d\n", "reset", s.DropResetTotal)
	}
}
