package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

// Header is written as a plain JSON line ahead of the body so tools can identify a file
// without decoding the whole world.
type Header struct {
	Version int    `json:"version"`
	Seed    string `json:"seed"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"-"`

	Time     uint64              `json:"time"`
	Interval int                 `json:"interval"`
	Seed     string              `json:"seed,omitempty"`
	RNG      [2][2]uint32        `json:"RNG"`
	Players  map[string]PlayerV1 `json:"players"`
	Rooms    map[string]RoomV1   `json:"rooms"`
}

type PlayerV1 struct {
	Name         string  `json:"name"`
	RegisteredAt uint64  `json:"registeredAt"`
	Faults       int     `json:"faults"`
	LastRunMs    float64 `json:"lastRunMs"`
}

type RoomV1 struct {
	Terrain    string                 `json:"terrain"`
	Creeps     map[string]CreepV1     `json:"creeps"`
	Structures map[string]StructureV1 `json:"structures"`
}

// PosV1 encodes as [x, y, roomName].
type PosV1 struct {
	X    int
	Y    int
	Room string
}

func (p PosV1) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.X, p.Y, p.Room})
}

func (p *PosV1) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("pos: want 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.X); err != nil {
		return fmt.Errorf("pos x: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Y); err != nil {
		return fmt.Errorf("pos y: %w", err)
	}
	if err := json.Unmarshal(raw[2], &p.Room); err != nil {
		return fmt.Errorf("pos room: %w", err)
	}
	return nil
}

type ObjectV1 struct {
	Pos     PosV1  `json:"pos"`
	Hits    int    `json:"hits"`
	HitsMax int    `json:"hitsMax"`
	ID      string `json:"id"`
}

type CreepV1 struct {
	ObjectV1
	Name    string         `json:"name"`
	Owner   string         `json:"owner"`
	Head    int            `json:"head"`
	Body    []string       `json:"body"`
	Fatigue int            `json:"fatigue"`
	Store   map[string]int `json:"store"`
}

// StructureV1 is the union of every structure variant; StructureType selects which of the
// optional fields are meaningful.
type StructureV1 struct {
	ObjectV1
	StructureType       string         `json:"structureType"`
	Owner               string         `json:"owner,omitempty"`
	Name                string         `json:"name,omitempty"`
	Level               *int           `json:"level,omitempty"`
	Progress            *int           `json:"progress,omitempty"`
	ProgressTotal       *int           `json:"progressTotal,omitempty"`
	Store               map[string]int `json:"store,omitempty"`
	TicksToRegeneration *int           `json:"ticksToRegeneration,omitempty"`
}

func IntPtr(v int) *int { return &v }

// Deref returns 0 for absent optional fields.
func Deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

const (
	CurrentName = "world.snap.zst"
	ArchiveDir  = "snapshots"
)

func CurrentPath(dataDir string) string { return filepath.Join(dataDir, CurrentName) }

func ArchivePath(dataDir string, tick uint64) string {
	return filepath.Join(dataDir, ArchiveDir, strconv.FormatUint(tick, 10)+".snap.zst")
}

// WriteSnapshot writes through a sibling temp file and renames it over path, so a crash
// mid-write leaves the previous snapshot intact.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := encode(tmp, snap); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	h := snap.Header
	h.Version = Version
	h.Tick = snap.Time
	h.Seed = snap.Seed
	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &snap.Header); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("json decode: %w", err)
	}
	return snap, nil
}

// ReadCurrent loads <dataDir>/world.snap.zst. A missing file is a first run: found is false
// and err is nil.
func ReadCurrent(dataDir string) (snap SnapshotV1, found bool, err error) {
	snap, err = ReadSnapshot(CurrentPath(dataDir))
	if errors.Is(err, os.ErrNotExist) {
		return SnapshotV1{}, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	return snap, true, nil
}
