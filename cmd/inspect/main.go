package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	persistlog "creepworld.ai/internal/persistence/log"
	"creepworld.ai/internal/persistence/snapshot"
	"creepworld.ai/internal/sim/world"
)

var errStop = errors.New("stop")

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		snapPath = flag.String("snapshot", "", "path to .snap.zst (default: <data>/world.snap.zst)")
		room     = flag.String("room", "", "render this room, e.g. E0S0")
		ticks    = flag.Bool("ticks", false, "print the tick log")
		fromTick = flag.Uint64("from_tick", 0, "first tick to print (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to print (inclusive, optional)")
		verify   = flag.Bool("verify", true, "check the snapshot digest against the tick log")
	)
	flag.Parse()

	path := *snapPath
	if path == "" {
		path = snapshot.CurrentPath(*dataDir)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	w, err := world.Import(snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}

	creeps, structures := 0, 0
	for _, r := range snap.Rooms {
		creeps += len(r.Creeps)
		structures += len(r.Structures)
	}
	digest := w.Digest()
	fmt.Printf("snapshot v%d seed=%s time=%d interval=%dms rooms=%d players=%d creeps=%d structures=%d digest=%s\n",
		snap.Header.Version, snap.Seed, snap.Time, snap.Interval,
		len(snap.Rooms), len(snap.Players), creeps, structures, digest)

	names := make([]string, 0, len(snap.Players))
	for name := range snap.Players {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := snap.Players[name]
		fmt.Printf("  player %-16s registered=%d faults=%d last_run=%.2fms\n", name, p.RegisteredAt, p.Faults, p.LastRunMs)
	}

	if *room != "" {
		rd, ok := w.RoomData(*room)
		if !ok {
			fmt.Fprintln(os.Stderr, "no such room:", *room)
			os.Exit(1)
		}
		fmt.Printf("\nroom %s creeps=%d structures=%d\n%s\n", rd.Room, len(rd.Creeps), len(rd.Structures), rd.Render)
	}

	if !*ticks && !*verify {
		return
	}
	files, err := persistlog.Files(filepath.Join(*dataDir, persistlog.TickDir), persistlog.TickPrefix)
	if err != nil {
		if *ticks {
			fmt.Fprintln(os.Stderr, "list tick log:", err)
			os.Exit(1)
		}
		return
	}

	var found bool
	for _, f := range files {
		err := persistlog.ReadJSONL(f, func(raw json.RawMessage) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(f), err)
			}
			if *verify && e.Tick == snap.Time {
				found = true
				if e.Digest != digest {
					return fmt.Errorf("digest mismatch at tick %d: snapshot=%s log=%s", e.Tick, digest, e.Digest)
				}
			}
			if *toTick != 0 && e.Tick > *toTick {
				return errStop
			}
			if *ticks && e.Tick >= *fromTick {
				printEntry(e)
			}
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "tick log:", err)
			os.Exit(1)
		}
	}
	if *verify {
		if found {
			fmt.Printf("digest ok at tick %d\n", snap.Time)
		} else {
			fmt.Printf("tick %d not in tick log; digest not checked\n", snap.Time)
		}
	}
}

func printEntry(e world.TickLogEntry) {
	applied, failed := 0, 0
	for _, n := range e.Applied {
		applied += n
	}
	for _, n := range e.Failed {
		failed += n
	}
	fmt.Printf("tick=%d digest=%.12s runs=%d faults=%d applied=%d failed=%d spawned=%v\n",
		e.Tick, e.Digest, len(e.Runs), e.Faults(), applied, failed, e.Spawned)
	for _, r := range e.Runs {
		if r.Fault == "" {
			continue
		}
		fmt.Printf("  %s %s: %s\n", r.Player, r.FaultKind, r.Fault)
	}
}
