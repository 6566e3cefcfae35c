package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"cornerlink/internal/persistence/snapshot"
	"cornerlink/internal/sim/catalogs"
	"cornerlink/internal/sim/multiworld"
)

// SQLiteIndex is a secondary, queryable copy of the decision log. Writes are
// queued to one goroutine and dropped when the queue is full.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropDecision atomic.Uint64
	dropSnapshot atomic.Uint64
	writeErrors  atomic.Uint64
}

type reqKind int

const (
	reqDecision reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	decision multiworld.DecisionRecord
	snapshot snapshotRow
}

type snapshotRow struct {
	WorldID    string
	Path       string
	Height     int
	Chunks     int
	Palette    int
	RecordedAt string
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropDecisionTotal uint64
	DropSnapshotTotal uint64
	WriteErrorTotal   uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
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

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
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
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS link_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			from_world TEXT NOT NULL,
			to_world TEXT NOT NULL,
			mode TEXT NOT NULL,
			signature TEXT NOT NULL,
			target_x INTEGER NOT NULL,
			target_y INTEGER NOT NULL,
			target_z INTEGER NOT NULL,
			candidates INTEGER NOT NULL,
			found INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_link_decisions_entity ON link_decisions(entity_id, id);`,
		`CREATE INDEX IF NOT EXISTS idx_link_decisions_route ON link_decisions(from_world, to_world, mode);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			world_id TEXT NOT NULL,
			path TEXT NOT NULL,
			height INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			palette INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (world_id, path)
		);`,
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
		if s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropDecisionTotal: s.dropDecision.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WriteErrorTotal:   s.writeErrors.Load(),
	}
}

// RecordDecision queues rec. It never blocks.
func (s *SQLiteIndex) RecordDecision(rec multiworld.DecisionRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqDecision, decision: rec}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropDecision.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.WorldV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		WorldID:    snap.Header.WorldID,
		Path:       path,
		Height:     snap.Height,
		Chunks:     len(snap.Chunks),
		Palette:    len(snap.Palette),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertCatalogs stores the block catalog so decisions can be read against
// the exact block and tag set that produced them.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs) error {
	if s == nil || cats == nil {
		return nil
	}
	defs := make([]catalogs.BlockDef, 0, len(cats.Blocks.Palette))
	for _, id := range cats.Blocks.Palette {
		defs = append(defs, cats.Blocks.Defs[id])
	}
	raw, err := json.Marshal(defs)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.Exec(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"blocks", cats.Blocks.DefsDigest, string(raw), now)
	return err
}

// RecentDecisions returns up to limit decisions, newest first.
func (s *SQLiteIndex) RecentDecisions(ctx context.Context, limit int) ([]multiworld.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM link_decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []multiworld.DecisionRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec multiworld.DecisionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode decision: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ModeCounts returns the number of stored decisions per mode.
func (s *SQLiteIndex) ModeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mode, COUNT(*) FROM link_decisions GROUP BY mode`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			mode string
			n    int
		)
		if err := rows.Scan(&mode, &n); err != nil {
			return nil, err
		}
		out[mode] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertDecision, _ := s.db.Prepare(`INSERT INTO link_decisions(ts,entity_id,from_world,to_world,mode,signature,target_x,target_y,target_z,candidates,found,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(world_id,path,height,chunks,palette,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertDecision != nil {
			_ = insertDecision.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
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
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrors.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		// An idle queue commits right away so readers see every queued row.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqDecision:
			d := r.decision
			raw, _ := json.Marshal(d)
			sig, _ := json.Marshal(d.Signature)
			if insertDecision != nil {
				if _, err := tx.Stmt(insertDecision).Exec(
					d.Time.UTC().Format(time.RFC3339Nano),
					d.EntityID,
					d.FromWorld,
					d.ToWorld,
					d.Mode,
					string(sig),
					d.Target.X, d.Target.Y, d.Target.Z,
					d.Candidates,
					d.Found,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					sn.WorldID,
					sn.Path,
					sn.Height,
					sn.Chunks,
					sn.Palette,
					sn.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
