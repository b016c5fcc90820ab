package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"creepworld.ai/internal/logging"
	"creepworld.ai/internal/sim/script"
	"creepworld.ai/internal/sim/world"
	"creepworld.ai/internal/sim/world/terrain/maze"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Seed           string `yaml:"seed"`
	TickIntervalMs int    `yaml:"tick_interval_ms"`

	ScriptBudgetMs       int `yaml:"script_budget_ms"`
	ScriptMaxCallStack   int `yaml:"script_max_call_stack"`
	ScriptMaxMemoryBytes int `yaml:"script_max_memory_bytes"`

	SnapshotArchiveEvery uint64 `yaml:"snapshot_archive_every"`

	Maze    Maze           `yaml:"maze"`
	Logging logging.Config `yaml:"logging"`
	Admin   Admin          `yaml:"admin"`
}

type Maze struct {
	RoomsX        int     `yaml:"rooms_x"`
	RoomsY        int     `yaml:"rooms_y"`
	CellsPerRoom  int     `yaml:"cells_per_room"`
	LossRate      float64 `yaml:"loss_rate"`
	CarveRate     float64 `yaml:"carve_rate"`
	ErosionRounds int     `yaml:"erosion_rounds"`
	GrowthRounds  int     `yaml:"growth_rounds"`
	PunchRate     float64 `yaml:"punch_rate"`
	SwampRate     float64 `yaml:"swamp_rate"`
	LavaRate      float64 `yaml:"lava_rate"`
}

type Admin struct {
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
	// ApplyTimeoutMs bounds how long a queued admin operation waits for the tick boundary.
	ApplyTimeoutMs int `yaml:"apply_timeout_ms"`
}

func Defaults() Tuning {
	mp := maze.DefaultParams()
	sc := script.DefaultConfig()
	return Tuning{
		ProtocolVersion:      "1.0",
		Seed:                 "creepworld",
		TickIntervalMs:       world.DefaultIntervalMs,
		ScriptBudgetMs:       int(sc.Budget / time.Millisecond),
		ScriptMaxCallStack:   sc.MaxCallStack,
		ScriptMaxMemoryBytes: sc.MaxMemoryBytes,
		SnapshotArchiveEvery: 100,
		Maze: Maze{
			RoomsX:        mp.RoomsX,
			RoomsY:        mp.RoomsY,
			CellsPerRoom:  mp.CellsPerRoom,
			LossRate:      mp.LossRate,
			CarveRate:     mp.CarveRate,
			ErosionRounds: mp.ErosionRounds,
			GrowthRounds:  mp.GrowthRounds,
			PunchRate:     mp.PunchRate,
			SwampRate:     mp.SwampRate,
			LavaRate:      mp.LavaRate,
		},
		Logging: logging.DefaultConfig(),
		Admin: Admin{
			MaxMessageBytes: 256 << 10,
			ApplyTimeoutMs:  10_000,
		},
	}
}

// Load overlays the yaml file at path onto Defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickIntervalMs <= 0 {
		return fmt.Errorf("tick_interval_ms must be positive, got %d", t.TickIntervalMs)
	}
	if t.ScriptBudgetMs < 0 {
		return fmt.Errorf("script_budget_ms must not be negative, got %d", t.ScriptBudgetMs)
	}
	if t.ScriptMaxCallStack <= 0 {
		return fmt.Errorf("script_max_call_stack must be positive, got %d", t.ScriptMaxCallStack)
	}
	for name, r := range map[string]float64{
		"loss_rate":  t.Maze.LossRate,
		"carve_rate": t.Maze.CarveRate,
		"punch_rate": t.Maze.PunchRate,
		"swamp_rate": t.Maze.SwampRate,
		"lava_rate":  t.Maze.LavaRate,
	} {
		if r < 0 || r > 1 {
			return fmt.Errorf("maze.%s must be within [0,1], got %v", name, r)
		}
	}
	return t.MazeParams().Validate()
}

func (t Tuning) MazeParams() maze.Params {
	m := t.Maze
	return maze.Params{
		RoomsX:        m.RoomsX,
		RoomsY:        m.RoomsY,
		CellsPerRoom:  m.CellsPerRoom,
		LossRate:      m.LossRate,
		CarveRate:     m.CarveRate,
		ErosionRounds: m.ErosionRounds,
		GrowthRounds:  m.GrowthRounds,
		PunchRate:     m.PunchRate,
		SwampRate:     m.SwampRate,
		LavaRate:      m.LavaRate,
	}
}

func (t Tuning) GenParams() world.GenParams {
	return world.GenParams{Maze: t.MazeParams(), IntervalMs: t.TickIntervalMs}
}

func (t Tuning) ScriptConfig() script.Config {
	return script.Config{
		Budget:         time.Duration(t.ScriptBudgetMs) * time.Millisecond,
		MaxCallStack:   t.ScriptMaxCallStack,
		MaxMemoryBytes: t.ScriptMaxMemoryBytes,
	}
}
