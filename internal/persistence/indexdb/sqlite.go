package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"cryptotown.ai/internal/persistence/snapshot"
	"cryptotown.ai/internal/sim/town"
	"cryptotown.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable read model of the town. Writes are queued and
// applied by one goroutine; the JSONL logs and snapshots stay the source of
// truth, so a full queue drops entries instead of stalling the town loop.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTx            atomic.Uint64
	dropEvent         atomic.Uint64
	dropSnapshot      atomic.Uint64
	dropSnapshotState atomic.Uint64
}

type Stats struct {
	QueueDepth             int    `json:"queue_depth"`
	QueueCapacity          int    `json:"queue_capacity"`
	DropTxTotal            uint64 `json:"drop_tx_total"`
	DropEventTotal         uint64 `json:"drop_event_total"`
	DropSnapshotTotal      uint64 `json:"drop_snapshot_total"`
	DropSnapshotStateTotal uint64 `json:"drop_snapshot_state_total"`
}

type reqKind int

const (
	reqTx reqKind = iota + 1
	reqEvent
	reqSnapshot
	reqSnapshotState
)

type req struct {
	kind reqKind

	tx       town.TxLogEntry
	event    town.EventLogEntry
	snapshot snapshotRow
	state    snapshot.SnapshotV1
}

type snapshotRow struct {
	Seq        uint64
	Now        int64
	Path       string
	Supply     string
	Holders    int
	Parcels    int
	Destitutes int
}

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

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tuning (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS txs (
			seq INTEGER PRIMARY KEY,
			time INTEGER NOT NULL,
			id TEXT NOT NULL,
			op TEXT NOT NULL,
			caller TEXT NOT NULL,
			ok INTEGER NOT NULL,
			code TEXT,
			message TEXT,
			events INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_txs_caller_seq ON txs(caller, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_txs_op_seq ON txs(op, seq);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			time INTEGER NOT NULL,
			tx_id TEXT NOT NULL,
			type TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (seq, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_seq ON events(type, seq);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			seq INTEGER PRIMARY KEY,
			now INTEGER NOT NULL,
			path TEXT NOT NULL,
			supply TEXT NOT NULL,
			holders INTEGER NOT NULL,
			parcels INTEGER NOT NULL,
			destitutes INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pie_balances (
			account TEXT PRIMARY KEY,
			balance TEXT NOT NULL,
			seq INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS parcels (
			id INTEGER PRIMARY KEY,
			owner TEXT NOT NULL,
			seq INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_parcels_owner ON parcels(owner);`,
		`CREATE TABLE IF NOT EXISTS destitutes (
			pos INTEGER PRIMARY KEY,
			account TEXT NOT NULL,
			seq INTEGER NOT NULL
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
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:             len(s.ch),
		QueueCapacity:          cap(s.ch),
		DropTxTotal:            s.dropTx.Load(),
		DropEventTotal:         s.dropEvent.Load(),
		DropSnapshotTotal:      s.dropSnapshot.Load(),
		DropSnapshotStateTotal: s.dropSnapshotState.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTx(entry town.TxLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqTx, tx: entry}, &s.dropTx)
	return nil
}

func (s *SQLiteIndex) WriteEvent(entry town.EventLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqEvent, event: entry}, &s.dropEvent)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	supply := snap.Pie.Supply
	if supply == "" {
		supply = "0"
	}
	r := snapshotRow{
		Seq:        snap.Header.Seq,
		Now:        snap.Header.Now,
		Path:       path,
		Supply:     supply,
		Holders:    len(snap.Pie.Balances),
		Parcels:    len(snap.Land.Parcels),
		Destitutes: len(snap.Temple.Destitutes),
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

// RecordSnapshotState replaces the balance, parcel and destitute tables with
// the contents of snap.
func (s *SQLiteIndex) RecordSnapshotState(snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSnapshotState, state: snap}, &s.dropSnapshotState)
}

// UpsertTuning stores the tuning the town was started with.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO tuning(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTx, _ := s.db.Prepare(`INSERT OR REPLACE INTO txs(seq,time,id,op,caller,ok,code,message,events) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(seq,idx,time,tx_id,type,raw_json) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(seq,now,path,supply,holders,parcels,destitutes) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTx, insertEvent, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastEventSeq uint64
		eventIdx     int
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
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTx:
			e := r.tx
			if insertTx != nil {
				ok := 0
				if e.OK {
					ok = 1
				}
				if _, err := tx.Stmt(insertTx).Exec(int64(e.Seq), e.Time, e.ID, e.Op, e.Caller, ok, e.Code, e.Message, e.Events); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqEvent:
			e := r.event
			if e.Seq != lastEventSeq {
				lastEventSeq = e.Seq
				eventIdx = 0
			}
			idx := eventIdx
			eventIdx++
			raw, _ := json.Marshal(e.Event)
			typ, _ := e.Event["type"].(string)
			if insertEvent != nil {
				if _, err := tx.Stmt(insertEvent).Exec(int64(e.Seq), idx, e.Time, e.TxID, typ, string(raw)); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(int64(sn.Seq), sn.Now, sn.Path, sn.Supply, sn.Holders, sn.Parcels, sn.Destitutes); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshotState:
			n, err := writeState(tx, r.state)
			if err != nil {
				rollback()
				continue
			}
			opCount += n
		}
		flushIfNeeded()
	}

	commit()
}

func writeState(tx *sql.Tx, snap snapshot.SnapshotV1) (int, error) {
	seq := int64(snap.Header.Seq)
	ops := 0
	for _, table := range []string{"pie_balances", "parcels", "destitutes"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return ops, err
		}
		ops++
	}
	for account, bal := range snap.Pie.Balances {
		if _, err := tx.Exec(`INSERT INTO pie_balances(account,balance,seq) VALUES(?,?,?)`, account, bal, seq); err != nil {
			return ops, err
		}
		ops++
	}
	for _, p := range snap.Land.Parcels {
		if _, err := tx.Exec(`INSERT INTO parcels(id,owner,seq) VALUES(?,?,?)`, int64(p.ID), p.Owner, seq); err != nil {
			return ops, err
		}
		ops++
	}
	for i, a := range snap.Temple.Destitutes {
		if _, err := tx.Exec(`INSERT INTO destitutes(pos,account,seq) VALUES(?,?,?)`, i, a, seq); err != nil {
			return ops, err
		}
		ops++
	}
	return ops, nil
}
