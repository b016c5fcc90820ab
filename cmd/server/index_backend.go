package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"creepworld.ai/internal/persistence/indexdb"
)

// openRuntimeIndex opens the sqlite read model under dataDir. A nil index means indexing is
// off; the engine runs the same either way.
func openRuntimeIndex(dataDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CW_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported CW_INDEX_BACKEND: %s", backend)
	}
}
