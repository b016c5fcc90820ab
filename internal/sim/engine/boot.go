package engine

import (
	"fmt"

	"creepworld.ai/internal/persistence/snapshot"
	"creepworld.ai/internal/sim/world"
)

// Boot resumes the world from <dataDir>/world.snap.zst, or generates a fresh one from seed
// when there is no snapshot yet. resumed reports which happened.
func Boot(dataDir, seed string, gen world.GenParams) (w *world.World, resumed bool, err error) {
	if dataDir != "" {
		snap, found, err := snapshot.ReadCurrent(dataDir)
		if err != nil {
			return nil, false, fmt.Errorf("read snapshot: %w", err)
		}
		if found {
			w, err := world.Import(snap)
			if err != nil {
				return nil, false, fmt.Errorf("import snapshot: %w", err)
			}
			return w, true, nil
		}
	}
	w, err = world.Generate(seed, gen)
	if err != nil {
		return nil, false, fmt.Errorf("generate world: %w", err)
	}
	return w, false, nil
}
