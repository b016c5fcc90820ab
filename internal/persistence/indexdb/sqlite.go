// Package indexdb keeps a queryable sqlite read model of what the engine did. The simulation
// never reads it back; writes are queued and dropped when the writer falls behind.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"creepworld.ai/internal/persistence/snapshot"
	"creepworld.ai/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
	dropReset    atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
	reqReset
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	snapshot snapshotRow
	reset    resetRow
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	Seed       string
	Rooms      int
	Players    int
	Creeps     int
	Structures int
}

type resetRow struct {
	Tick       uint64
	Seed       string
	Rooms      int
	Unplaced   string
	RecordedAt string
}

const queueSize = 16384

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queueSize)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			runs INTEGER NOT NULL,
			faults INTEGER NOT NULL,
			applied INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS player_runs (
			tick INTEGER NOT NULL,
			player TEXT NOT NULL,
			duration_ms REAL NOT NULL,
			actions INTEGER NOT NULL,
			fault_kind TEXT,
			fault TEXT,
			PRIMARY KEY (tick, player)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_player_runs_player_tick ON player_runs(player, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed TEXT NOT NULL,
			rooms INTEGER NOT NULL,
			players INTEGER NOT NULL,
			creeps INTEGER NOT NULL,
			structures INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS resets (
			tick INTEGER NOT NULL,
			seed TEXT NOT NULL,
			rooms INTEGER NOT NULL,
			unplaced TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// DB exposes the underlying handle for read queries.
func (s *SQLiteIndex) DB() *sql.DB { return s.db }

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// The tick log remains the source of truth.
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	r := snapshotRow{
		Tick:    snap.Header.Tick,
		Path:    path,
		Seed:    snap.Seed,
		Rooms:   len(snap.Rooms),
		Players: len(snap.Players),
	}
	for _, room := range snap.Rooms {
		r.Creeps += len(room.Creeps)
		r.Structures += len(room.Structures)
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

func (s *SQLiteIndex) RecordReset(e world.ResetEntry) {
	if s == nil {
		return
	}
	r := resetRow{
		Tick:       e.Tick,
		Seed:       e.Seed,
		Rooms:      e.Rooms,
		Unplaced:   strings.Join(e.Unplaced, ","),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.enqueue(req{kind: reqReset, reset: r}, &s.dropReset)
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropTickTotal     uint64
	DropSnapshotTotal uint64
	DropResetTotal    uint64
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropResetTotal:    s.dropReset.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,runs,faults,applied,failed,spawned,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO player_runs(tick,player,duration_ms,actions,fault_kind,fault) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,rooms,players,creeps,structures) VALUES(?,?,?,?,?,?,?)`)
	insertReset, _ := s.db.Prepare(`INSERT INTO resets(tick,seed,rooms,unplaced,recorded_at) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertRun, insertSnapshot, insertReset} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			raw, _ := json.Marshal(e)
			if !exec(insertTick, int64(e.Tick), e.Digest, len(e.Runs), e.Faults(),
				sum(e.Applied), sum(e.Failed), len(e.Spawned), string(raw)) {
				continue
			}
			for _, run := range e.Runs {
				if !exec(insertRun, int64(e.Tick), run.Player, run.DurationMs, run.Actions,
					nullable(run.FaultKind), nullable(run.Fault)) {
					break
				}
			}

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Seed, sn.Rooms, sn.Players, sn.Creeps, sn.Structures)

		case reqReset:
			rs := r.reset
			exec(insertReset, int64(rs.Tick), rs.Seed, rs.Rooms, rs.Unplaced, rs.RecordedAt)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
