// Package town composes the four ledgers behind one transactional boundary.
//
// All ledger state is owned by the goroutine running Run. Callers reach it
// through Submit/Ask, or call Apply/Query directly when no loop is running.
package town

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"cryptotown.ai/internal/persistence/snapshot"
	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/laboratory"
	"cryptotown.ai/internal/sim/land"
	"cryptotown.ai/internal/sim/ledger"
	"cryptotown.ai/internal/sim/pie"
	"cryptotown.ai/internal/sim/temple"
)

// Component accounts. Each ledger is deployed at a fixed address.
const (
	PieAccount        ledger.Account = "pie"
	LaboratoryAccount ledger.Account = "laboratory"
	LandAccount       ledger.Account = "land"
	TempleAccount     ledger.Account = "temple"
)

var componentAccounts = []ledger.Account{PieAccount, LaboratoryAccount, LandAccount, TempleAccount}

// IsComponent reports whether a is a component account. Components act only
// through their own ledgers; no caller or role may hold one.
func IsComponent(a ledger.Account) bool {
	for _, c := range componentAccounts {
		if a == c {
			return true
		}
	}
	return false
}

type Config struct {
	ID string

	Chef        ledger.Account
	Monarch     ledger.Account
	LandOwner   ledger.Account
	TempleOwner ledger.Account

	RateCap       *uint256.Int
	WindowSeconds int64
	Threshold     *uint256.Int
	Genesis       map[laboratory.Kind]*uint256.Int
	Prices        map[land.Combo][]*uint256.Int

	// SnapshotEvery emits a snapshot after every N transactions (0 disables).
	SnapshotEvery uint64

	// Clock returns unix seconds. Defaults to the wall clock.
	Clock func() int64
}

type TxRequest struct {
	Tx   protocol.TxMsg
	Resp chan protocol.TxResultMsg
}

type QueryRequest struct {
	Query protocol.QueryMsg
	Resp  chan protocol.QueryResultMsg
}

type snapshotReq struct {
	resp chan snapshot.SnapshotV1
}

type TxLogger interface {
	WriteTx(entry TxLogEntry) error
}

type EventLogger interface {
	WriteEvent(entry EventLogEntry) error
}

type TxLogEntry struct {
	Seq     uint64 `json:"seq"`
	Time    int64  `json:"time"`
	ID      string `json:"id"`
	Op      string `json:"op"`
	Caller  string `json:"caller"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Events  int    `json:"events"`

	// Tx is the request as applied, with its id filled in.
	Tx protocol.TxMsg `json:"tx"`
}

type EventLogEntry struct {
	Seq   uint64         `json:"seq"`
	Time  int64          `json:"time"`
	TxID  string         `json:"tx_id"`
	Event protocol.Event `json:"event"`
}

type Town struct {
	cfg Config
	j   *ledger.Journal

	pie    *pie.Ledger
	lab    *laboratory.Laboratory
	land   *land.Land
	temple *temple.Temple

	seq atomic.Uint64
	now atomic.Int64

	tracer trace.Tracer

	txLogger     TxLogger
	eventLogger  EventLogger
	snapshotSink chan<- snapshot.SnapshotV1

	inbox   chan TxRequest
	queries chan QueryRequest
	snapReq chan snapshotReq
	stop    chan struct{}
}

func New(cfg Config) *Town {
	if cfg.Clock == nil {
		cfg.Clock = func() int64 { return time.Now().Unix() }
	}
	if cfg.Genesis == nil {
		cfg.Genesis = laboratory.DefaultGenesis()
	}
	t := &Town{
		cfg:     cfg,
		j:       ledger.NewJournal(),
		tracer:  otel.Tracer("cryptotown.ai/internal/sim/town"),
		inbox:   make(chan TxRequest, 1024),
		queries: make(chan QueryRequest, 256),
		snapReq: make(chan snapshotReq, 8),
		stop:    make(chan struct{}),
	}
	t.pie = pie.New(pie.Config{
		Chef:          cfg.Chef,
		RateCap:       cfg.RateCap,
		WindowSeconds: cfg.WindowSeconds,
	}, t.j)
	t.lab = laboratory.New(laboratory.Config{Monarch: cfg.Monarch, Genesis: cfg.Genesis}, t.j)
	t.land = land.New(land.Config{
		Owner:      cfg.LandOwner,
		Self:       LandAccount,
		Laboratory: LaboratoryAccount,
		Temple:     TempleAccount,
		Prices:     cfg.Prices,
	}, land.DirectoryFunc(t.resolveLaboratory), t.j)
	t.temple = temple.New(temple.Config{
		Owner:     cfg.TempleOwner,
		Self:      TempleAccount,
		Pie:       PieAccount,
		Threshold: cfg.Threshold,
		Reserved:  componentAccounts,
	}, temple.DirectoryFunc(t.resolvePie), t.j)
	return t
}

func (t *Town) resolveLaboratory(addr ledger.Account) (land.ResourceBook, bool) {
	if addr == LaboratoryAccount {
		return t.lab, true
	}
	return nil, false
}

func (t *Town) resolvePie(addr ledger.Account) (temple.Currency, bool) {
	if addr == PieAccount {
		return t.pie, true
	}
	return nil, false
}

func (t *Town) SetTracer(tr trace.Tracer)                     { t.tracer = tr }
func (t *Town) SetTxLogger(l TxLogger)                        { t.txLogger = l }
func (t *Town) SetEventLogger(l EventLogger)                  { t.eventLogger = l }
func (t *Town) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { t.snapshotSink = ch }

func (t *Town) ID() string { return t.cfg.ID }

// Ledger accessors. Only safe from the loop goroutine or while no loop runs.
func (t *Town) Pie() *pie.Ledger                   { return t.pie }
func (t *Town) Laboratory() *laboratory.Laboratory { return t.lab }
func (t *Town) Land() *land.Land                   { return t.land }
func (t *Town) Temple() *temple.Temple             { return t.temple }

func (t *Town) CurrentSeq() uint64 { return t.seq.Load() }
func (t *Town) Now() int64         { return t.now.Load() }

// Components lists the deployed component addresses by name.
func (t *Town) Components() map[string]string {
	return map[string]string{
		"pie":        PieAccount.String(),
		"laboratory": LaboratoryAccount.String(),
		"land":       LandAccount.String(),
		"temple":     TempleAccount.String(),
	}
}

// tick advances the town clock. It never moves backwards.
func (t *Town) tick() int64 {
	now := t.cfg.Clock()
	if last := t.now.Load(); now < last {
		now = last
	}
	t.now.Store(now)
	return now
}

func (t *Town) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.stop:
			return nil
		case req := <-t.inbox:
			res := t.Apply(ctx, req.Tx)
			if req.Resp != nil {
				req.Resp <- res
			}
		case req := <-t.queries:
			res := t.Query(req.Query)
			if req.Resp != nil {
				req.Resp <- res
			}
		case req := <-t.snapReq:
			req.resp <- t.ExportSnapshot()
		}
	}
}

func (t *Town) Stop() { close(t.stop) }

// Submit queues tx on the loop and waits for its result.
func (t *Town) Submit(ctx context.Context, tx protocol.TxMsg) (protocol.TxResultMsg, error) {
	resp := make(chan protocol.TxResultMsg, 1)
	select {
	case t.inbox <- TxRequest{Tx: tx, Resp: resp}:
	case <-ctx.Done():
		return protocol.TxResultMsg{}, ctx.Err()
	}
	select {
	case res := <-resp:
		return res, nil
	case <-ctx.Done():
		return protocol.TxResultMsg{}, ctx.Err()
	}
}

// Ask runs a read-only query on the loop.
func (t *Town) Ask(ctx context.Context, q protocol.QueryMsg) (protocol.QueryResultMsg, error) {
	resp := make(chan protocol.QueryResultMsg, 1)
	select {
	case t.queries <- QueryRequest{Query: q, Resp: resp}:
	case <-ctx.Done():
		return protocol.QueryResultMsg{}, ctx.Err()
	}
	select {
	case res := <-resp:
		return res, nil
	case <-ctx.Done():
		return protocol.QueryResultMsg{}, ctx.Err()
	}
}

// RequestSnapshot captures the state on the loop and forwards it to the
// snapshot sink. It returns the seq the snapshot was taken at.
func (t *Town) RequestSnapshot(ctx context.Context) (uint64, error) {
	snap, err := t.Snapshot(ctx)
	if err != nil {
		return t.CurrentSeq(), err
	}
	if t.snapshotSink == nil {
		return snap.Header.Seq, fmt.Errorf("snapshot sink not configured")
	}
	select {
	case t.snapshotSink <- snap:
		return snap.Header.Seq, nil
	case <-ctx.Done():
		return snap.Header.Seq, ctx.Err()
	}
}

// Snapshot captures the state on the loop without persisting it.
func (t *Town) Snapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	resp := make(chan snapshot.SnapshotV1, 1)
	select {
	case t.snapReq <- snapshotReq{resp: resp}:
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
	select {
	case snap := <-resp:
		return snap, nil
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
}
