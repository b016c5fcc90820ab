// Package archive keeps the last state of every world generation before a reset replaces it.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"creepworld.ai/internal/persistence/snapshot"
)

const Dir = "archives"

type EraMeta struct {
	Era       int    `json:"era"`
	EndTick   uint64 `json:"end_tick"`
	Seed      string `json:"seed"`
	NextSeed  string `json:"next_seed"`
	Snapshot  string `json:"snapshot"`
	Rooms     int    `json:"rooms"`
	Players   int    `json:"players"`
	CreatedAt string `json:"created_at"`
}

// ArchiveEra writes snap into <dataDir>/archives/era_<NNN>/ next to a meta.json. Eras are
// numbered from 1 in the order they were archived.
func ArchiveEra(dataDir string, snap snapshot.SnapshotV1, nextSeed string) (era int, archivedPath string, err error) {
	root := filepath.Join(dataDir, Dir)
	era, err = nextEra(root)
	if err != nil {
		return 0, "", err
	}

	eraDir := filepath.Join(root, fmt.Sprintf("era_%03d", era))
	dst := filepath.Join(eraDir, snapshot.CurrentName)
	if err := snapshot.WriteSnapshot(dst, snap); err != nil {
		return 0, "", err
	}

	meta := EraMeta{
		Era:       era,
		EndTick:   snap.Time,
		Seed:      snap.Seed,
		NextSeed:  nextSeed,
		Snapshot:  filepath.Base(dst),
		Rooms:     len(snap.Rooms),
		Players:   len(snap.Players),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(eraDir, "meta.json"), b, 0o644)
	}
	return era, dst, nil
}

func nextEra(root string) (int, error) {
	ents, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range ents {
		if e.IsDir() && strings.HasPrefix(e.Name(), "era_") {
			n++
		}
	}
	return n + 1, nil
}

// ReadMeta loads the meta.json of an archived era.
func ReadMeta(dataDir string, era int) (EraMeta, error) {
	var m EraMeta
	b, err := os.ReadFile(filepath.Join(dataDir, Dir, fmt.Sprintf("era_%03d", era), "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}
