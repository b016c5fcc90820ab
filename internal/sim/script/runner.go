// Package script runs player programs. Each run gets a fresh goja runtime exposing only the
// game API, Memory and deterministic Math.random; nothing else from the host is reachable.
package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"creepworld.ai/internal/sim/bridge"
	"creepworld.ai/internal/sim/rng"
)

// Store loads and saves player scripts and their Memory blobs. Missing entries load as "".
type Store interface {
	LoadScript(player string) (string, error)
	SaveScript(player, src string) error
	LoadMemory(player string) (string, error)
	SaveMemory(player, mem string) error
}

type Config struct {
	// Budget is the wall-clock limit per run; 0 disables it.
	Budget         time.Duration
	MaxCallStack   int
	MaxMemoryBytes int
}

func DefaultConfig() Config {
	return Config{
		Budget:         50 * time.Millisecond,
		MaxCallStack:   1024,
		MaxMemoryBytes: 2 << 20,
	}
}

var (
	ErrBudgetExceeded = errors.New("cpu budget exceeded")
	ErrCanceled       = errors.New("run canceled")
)

type FaultKind string

const (
	FaultSyntax    FaultKind = "syntax"
	FaultException FaultKind = "exception"
	FaultBudget    FaultKind = "budget"
	FaultCanceled  FaultKind = "canceled"
)

// Fault is a script-level failure. It ends that player's turn and nothing else.
type Fault struct {
	Player string
	Tick   uint64
	Kind   FaultKind
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("script fault (%s) player=%s tick=%d: %v", f.Kind, f.Player, f.Tick, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

type RunResult struct {
	Player   string
	Tick     uint64
	Ran      bool
	Duration time.Duration
	Actions  int
	Fault    *Fault
}

type compiled struct {
	src  string
	prog *goja.Program
	err  error
}

type Runner struct {
	store Store
	log   *zap.Logger
	cfg   Config

	mu       sync.Mutex
	programs map[string]compiled
}

func NewRunner(store Store, log *zap.Logger, cfg Config) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxCallStack <= 0 {
		cfg.MaxCallStack = DefaultConfig().MaxCallStack
	}
	return &Runner{store: store, log: log, cfg: cfg, programs: map[string]compiled{}}
}

// program compiles src once per distinct source; goja programs are safe to share between
// runtimes.
func (r *Runner) program(player, src string) (*goja.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.programs[player]; ok && c.src == src {
		return c.prog, c.err
	}
	prog, err := goja.Compile(player+".js", src, false)
	r.programs[player] = compiled{src: src, prog: prog, err: err}
	return prog, err
}

// Run executes the player's script once against api. Memory is saved afterwards whatever the
// outcome; actions recorded before a fault stand.
func (r *Runner) Run(ctx context.Context, api *bridge.API) RunResult {
	player := api.Player()
	res := RunResult{Player: player, Tick: api.Time()}
	log := r.log.With(zap.String("player", player), zap.Uint64("tick", res.Tick))

	src, err := r.store.LoadScript(player)
	if err != nil {
		log.Warn("load script", zap.Error(err))
		return res
	}
	if src == "" {
		return res
	}
	res.Ran = true
	fault := func(kind FaultKind, err error) *Fault {
		return &Fault{Player: player, Tick: res.Tick, Kind: kind, Err: err}
	}

	prog, err := r.program(player, src)
	if err != nil {
		res.Fault = fault(FaultSyntax, err)
		return res
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(r.cfg.MaxCallStack)
	vm.SetRandSource(rng.From(fmt.Sprintf("%s:%d", player, res.Tick)).Uniform)

	memStr, err := r.store.LoadMemory(player)
	if err != nil {
		log.Warn("load memory", zap.Error(err))
	}
	env := newEnv(vm, api, log)
	env.loadMemory(memStr)
	env.install()

	// Interrupts are fenced off once the run returns so they cannot hit the memory dump.
	var fence sync.Mutex
	done := false
	interrupt := func(v error) {
		fence.Lock()
		defer fence.Unlock()
		if !done {
			vm.Interrupt(v)
		}
	}
	stopCtx := context.AfterFunc(ctx, func() { interrupt(ErrCanceled) })
	var timer *time.Timer
	if r.cfg.Budget > 0 {
		timer = time.AfterFunc(r.cfg.Budget, func() { interrupt(ErrBudgetExceeded) })
	}

	start := time.Now()
	_, runErr := vm.RunProgram(prog)
	res.Duration = time.Since(start)

	fence.Lock()
	done = true
	fence.Unlock()
	if timer != nil {
		timer.Stop()
	}
	stopCtx()
	vm.ClearInterrupt()

	if runErr != nil {
		res.Fault = classify(player, res.Tick, runErr)
	}

	if mem, ok := env.dumpMemory(r.cfg.MaxMemoryBytes); ok {
		if err := r.store.SaveMemory(player, mem); err != nil {
			log.Warn("save memory", zap.Error(err))
		}
	}
	res.Actions = api.Intents().Len()
	return res
}

func classify(player string, tick uint64, err error) *Fault {
	f := &Fault{Player: player, Tick: tick, Kind: FaultException, Err: err}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch interrupted.Value() {
		case ErrBudgetExceeded:
			f.Kind, f.Err = FaultBudget, ErrBudgetExceeded
		case ErrCanceled:
			f.Kind, f.Err = FaultCanceled, ErrCanceled
		}
	}
	return f
}
