package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"creepworld.ai/internal/logging"
	persistlog "creepworld.ai/internal/persistence/log"
	"creepworld.ai/internal/persistence/scripts"
	"creepworld.ai/internal/protocol"
	"creepworld.ai/internal/sim/engine"
	"creepworld.ai/internal/sim/tuning"
	"creepworld.ai/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		seed        = flag.String("seed", "", "world seed for a fresh world (default: tuning seed)")
		reset       = flag.Bool("reset", false, "regenerate the world from -seed before the first tick, keeping players")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite index")
		allowRemote = flag.Bool("allow_remote_admin", false, "accept admin connections from non-loopback addresses")
	)
	flag.Parse()

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil && !os.IsNotExist(tuneErr) {
		// No logger yet.
		_, _ = os.Stderr.WriteString("load tuning: " + tuneErr.Error() + "\n")
		os.Exit(1)
	}

	logger, syncLog, err := logging.New(tune.Logging)
	if err != nil {
		_, _ = os.Stderr.WriteString("logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer syncLog()
	if tuneErr != nil {
		logger.Warn("tuning not found; using defaults", zap.String("path", tp))
	}

	worldSeed := strings.TrimSpace(*seed)
	if worldSeed == "" {
		worldSeed = tune.Seed
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatal("data dir", zap.Error(err))
	}

	store, err := scripts.NewFileStore(filepath.Join(*dataDir, "scripts"))
	if err != nil {
		logger.Fatal("script store", zap.Error(err))
	}

	// Optional read model; does not affect the simulation.
	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatal("open index backend", zap.Error(err))
	}
	if idx != nil {
		defer idx.Close()
	}

	tickLog := persistlog.NewTickLogger(*dataDir)
	defer tickLog.Close()
	resetLog := persistlog.NewResetLogger(*dataDir)
	defer resetLog.Close()

	w, resumed, err := engine.Boot(*dataDir, worldSeed, tune.GenParams())
	if err != nil {
		logger.Fatal("boot world", zap.Error(err))
	}
	logger.Info("world ready",
		zap.Bool("resumed", resumed),
		zap.String("seed", w.Seed()),
		zap.Uint64("time", w.Time()),
		zap.Int("rooms", len(w.RoomNames())),
		zap.Int("players", len(w.PlayerNames())),
	)

	deps := engine.Deps{
		Store:    store,
		TickLog:  tickLog,
		ResetLog: resetLog,
	}
	if idx != nil {
		deps.Index = idx
	}
	eng := engine.New(w, engine.Config{
		DataDir:      *dataDir,
		ArchiveEvery: tune.SnapshotArchiveEvery,
		Gen:          tune.GenParams(),
		Script:       tune.ScriptConfig(),
	}, deps, logger.Named("engine"))

	if *reset {
		// Applied at the first tick boundary.
		done := eng.Reset(worldSeed)
		go func() {
			if err := <-done; err != nil {
				logger.Error("reset", zap.Error(err))
			}
		}()
	}

	ctx, cancel := signalContext()
	defer cancel()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("engine stopped", zap.Error(err))
		}
	}()

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatal("protocol schemas", zap.Error(err))
	}

	mux := http.NewServeMux()
	ws.NewServer(eng, validator, ws.Config{
		MaxMessageBytes: tune.Admin.MaxMessageBytes,
		ApplyTimeout:    time.Duration(tune.Admin.ApplyTimeoutMs) * time.Millisecond,
		AllowRemote:     *allowRemote,
	}, logger.Named("admin")).Routes(mux)
	mux.HandleFunc("/metrics", metricsHandler(eng, idx))

	if envBool("CW_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Debug("pprof endpoints disabled (CW_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", zap.String("addr", *addr), zap.Bool("allow_remote_admin", *allowRemote))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("ListenAndServe", zap.Error(err))
		cancel()
	}
	<-engineDone
	logger.Info("stopped", zap.Uint64("time", eng.Time()))
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
