package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleSnapshot() SnapshotV1 {
	return SnapshotV1{
		Time:     42,
		Interval: 1000,
		Seed:     "seed-a",
		RNG:      [2][2]uint32{{1, 2}, {3, 4}},
		Players: map[string]PlayerV1{
			"alice": {Name: "alice", RegisteredAt: 3, Faults: 1, LastRunMs: 2.5},
		},
		Rooms: map[string]RoomV1{
			"E0S0": {
				Terrain: "xx",
				Creeps: map[string]CreepV1{
					"worker": {
						ObjectV1: ObjectV1{Pos: PosV1{X: 4, Y: 5, Room: "E0S0"}, Hits: 300, HitsMax: 300, ID: "c1"},
						Name:     "worker",
						Owner:    "alice",
						Head:     3,
						Body:     []string{"work", "carry", "move"},
						Store:    map[string]int{"energy": 20},
					},
				},
				Structures: map[string]StructureV1{
					"k1": {
						ObjectV1:      ObjectV1{Pos: PosV1{X: 10, Y: 11, Room: "E0S0"}, ID: "k1"},
						StructureType: "controller",
						Owner:         "alice",
						Level:         IntPtr(2),
						Progress:      IntPtr(0),
						ProgressTotal: IntPtr(45000),
					},
				},
			},
		},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := CurrentPath(dir)
	in := sampleSnapshot()
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Header.Version != Version || out.Header.Tick != 42 || out.Header.Seed != "seed-a" {
		t.Fatalf("header: %+v", out.Header)
	}
	out.Header = Header{}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\nin  %+v\nout %+v", in, out)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the snapshot file, got %d entries", len(entries))
	}
}

func TestPosEncodesAsTriple(t *testing.T) {
	b, err := json.Marshal(ObjectV1{Pos: PosV1{X: 1, Y: 2, Room: "W0N0"}, ID: "x"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"pos":[1,2,"W0N0"],"hits":0,"hitsMax":0,"id":"x"}`
	if string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}
	var p PosV1
	if err := json.Unmarshal([]byte(`[1,2]`), &p); err == nil {
		t.Fatalf("expected error for short pos")
	}
}

func TestReadCurrentMissingIsFirstRun(t *testing.T) {
	_, found, err := ReadCurrent(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestArchivePath(t *testing.T) {
	got := ArchivePath("/data", 120)
	want := filepath.Join("/data", "snapshots", "120.snap.zst")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
