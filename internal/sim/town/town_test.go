package town

import (
	"context"
	"testing"
	"time"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/laboratory"
	"cryptotown.ai/internal/sim/ledger"
)

const (
	chef    = "chef"
	monarch = "monarch"
	mayor   = "mayor"
	priest  = "priest"
	bob     = "bob"
	alice   = "alice"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() int64         { return c.now }
func (c *fakeClock) Advance(secs int64) { c.now += secs }

func newTown(t *testing.T) (*Town, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: 1_700_000_000}
	tw := New(Config{
		ID:          "town_test",
		Chef:        chef,
		Monarch:     monarch,
		LandOwner:   mayor,
		TempleOwner: priest,
		Clock:       clk.Now,
	})
	return tw, clk
}

func mustOK(t *testing.T, tw *Town, tx protocol.TxMsg) protocol.TxResultMsg {
	t.Helper()
	res := tw.Apply(context.Background(), tx)
	if !res.OK {
		t.Fatalf("%s by %s: %s %s", tx.Op, tx.Caller, res.Code, res.Message)
	}
	return res
}

func mustFail(t *testing.T, tw *Town, tx protocol.TxMsg, code string) protocol.TxResultMsg {
	t.Helper()
	res := tw.Apply(context.Background(), tx)
	if res.OK || res.Code != code {
		t.Fatalf("%s by %s: ok=%v code=%s, want %s", tx.Op, tx.Caller, res.OK, res.Code, code)
	}
	if len(res.Events) != 0 {
		t.Fatalf("failed tx emitted events: %v", res.Events)
	}
	return res
}

func units(n uint64) string { return ledger.Units(n).Dec() }

func TestBakeDonateDistribute(t *testing.T) {
	tw, _ := newTown(t)
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpAddBaker, Caller: chef, Target: bob})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpBakePies, Caller: bob, Amount: units(4)})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpApprove, Caller: bob, Target: TempleAccount.String(), Amount: units(4)})
	res := mustOK(t, tw, protocol.TxMsg{Op: protocol.OpDonatePies, Caller: bob, Amount: units(4)})
	if len(res.Events) == 0 || res.Events[len(res.Events)-1]["seq"] != res.Seq {
		t.Fatalf("events not stamped with seq: %v", res.Events)
	}

	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpAddDestitute, Caller: priest, Target: bob})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpAddDestitute, Caller: priest, Target: alice})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpDistributeDonatedPies, Caller: priest})

	for _, a := range []string{bob, alice} {
		q := tw.Query(protocol.QueryMsg{Query: protocol.QueryPieBalance, Account: a})
		if !q.OK || q.Result["balance"] != units(2) {
			t.Fatalf("%s balance = %v", a, q.Result)
		}
	}
	q := tw.Query(protocol.QueryMsg{Query: protocol.QueryTemplePool})
	if q.Result["pool"] != "0" {
		t.Fatalf("pool = %v", q.Result["pool"])
	}
}

func TestHourlyWindowThroughTransactions(t *testing.T) {
	tw, clk := newTown(t)
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpAddBaker, Caller: chef, Target: bob})

	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpBakePies, Caller: bob, Amount: units(4)})
	mustFail(t, tw, protocol.TxMsg{Op: protocol.OpBakePies, Caller: bob, Amount: units(1)}, protocol.ErrRateLimit)
	clk.Advance(1800)
	mustFail(t, tw, protocol.TxMsg{Op: protocol.OpDestroyPies, Caller: bob, Amount: units(1)}, protocol.ErrRateLimit)
	clk.Advance(1800)
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpDestroyPies, Caller: bob, Amount: units(2)})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpBakePies, Caller: bob, Amount: units(2)})

	q := tw.Query(protocol.QueryMsg{Query: protocol.QueryKitchen, Account: bob})
	if q.Result["window_volume"] != units(4) || q.Result["is_baker"] != true {
		t.Fatalf("kitchen view = %v", q.Result)
	}
	q = tw.Query(protocol.QueryMsg{Query: protocol.QueryPieSupply})
	if q.Result["total_supply"] != units(4) {
		t.Fatalf("supply = %v", q.Result["total_supply"])
	}
}

func TestBuyLandTwice(t *testing.T) {
	tw, _ := newTown(t)
	mustOK(t, tw, protocol.TxMsg{
		Op:      protocol.OpAddBatchOfResources,
		Caller:  monarch,
		To:      bob,
		Kinds:   []int{0, 2, 3},
		Amounts: []string{units(2000), units(300), units(200)},
	})
	mustFail(t, tw, protocol.TxMsg{Op: protocol.OpBuyLand, Caller: bob, Combo: "GOLD_WOOD_ROCK"}, protocol.ErrNotOwnerOrApproved)
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpSetApprovalForAll, Caller: bob, Target: LandAccount.String(), Approved: true})

	for want := uint64(1); want <= 2; want++ {
		res := mustOK(t, tw, protocol.TxMsg{Op: protocol.OpBuyLand, Caller: bob, Combo: "gold_wood_rock"})
		var got interface{}
		for _, ev := range res.Events {
			if ev["type"] == "LAND_BOUGHT" {
				got = ev["land_id"]
			}
		}
		if got != want {
			t.Fatalf("land_id = %v, want %d", got, want)
		}
	}
	mustFail(t, tw, protocol.TxMsg{Op: protocol.OpBuyLand, Caller: bob, Combo: "GOLD_WOOD_ROCK"}, protocol.ErrInsufficientBalance)

	q := tw.Query(protocol.QueryMsg{Query: protocol.QueryLabBalance, Account: bob, Kind: 0})
	bal, _ := q.Result["balances"].([]string)
	if len(bal) != 5 || bal[0] != units(1900) || bal[2] != "0" || bal[3] != "0" {
		t.Fatalf("balances = %v", q.Result)
	}
	q = tw.Query(protocol.QueryMsg{Query: protocol.QueryParcelOwner, ParcelID: 2})
	if !q.OK || q.Result["owner"] != bob {
		t.Fatalf("owner of 2 = %v", q)
	}
	q = tw.Query(protocol.QueryMsg{Query: protocol.QueryParcelOwner, ParcelID: 3})
	if q.OK || q.Code != protocol.ErrNotFound {
		t.Fatalf("parcel 3 = %v", q)
	}
}

func TestFailedTransactionRevertsAcrossLedgers(t *testing.T) {
	tw, _ := newTown(t)
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpAddBaker, Caller: chef, Target: bob})

	const op = "pie.bake_then_fail"
	handlers[op] = func(t *Town, tx *protocol.TxMsg, now int64) error {
		if err := t.pie.BakePies(caller(tx), ledger.Units(1), now); err != nil {
			return err
		}
		if err := t.lab.SetApprovalForAll(caller(tx), LandAccount, true); err != nil {
			return err
		}
		return ledger.Errf(protocol.ErrInternal, "boom")
	}
	defer delete(handlers, op)

	mustFail(t, tw, protocol.TxMsg{Op: op, Caller: bob}, protocol.ErrInternal)
	if !tw.Pie().BalanceOf(bob).IsZero() || !tw.Pie().TotalSupply().IsZero() {
		t.Fatalf("bake survived the revert")
	}
	if tw.Laboratory().IsApprovedForAll(bob, LandAccount) {
		t.Fatalf("approval survived the revert")
	}
	if w := tw.Pie().Window(bob, tw.Now()); !w.Volume.IsZero() {
		t.Fatalf("rate window survived the revert: %s", w.Volume.Dec())
	}
	// The whole budget is still available.
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpBakePies, Caller: bob, Amount: units(4)})
}

func TestPanicIsRevertedAsInternalError(t *testing.T) {
	tw, _ := newTown(t)
	const op = "pie.panic"
	handlers[op] = func(t *Town, tx *protocol.TxMsg, _ int64) error {
		if err := t.pie.AddBaker(chef, bob); err != nil {
			return err
		}
		panic("bad handler")
	}
	defer delete(handlers, op)

	mustFail(t, tw, protocol.TxMsg{Op: op}, protocol.ErrInternal)
	if tw.Pie().IsBaker(bob) {
		t.Fatalf("baker survived the panic")
	}
}

func TestUnknownOpAndBadAmount(t *testing.T) {
	tw, _ := newTown(t)
	mustFail(t, tw, protocol.TxMsg{Op: "pie.nope", Caller: bob}, protocol.ErrBadRequest)
	mustFail(t, tw, protocol.TxMsg{Op: protocol.OpTransfer, Caller: bob, To: alice, Amount: "-1"}, protocol.ErrBadRequest)
	q := tw.Query(protocol.QueryMsg{Query: "pie.nope"})
	if q.OK || q.Code != protocol.ErrBadRequest {
		t.Fatalf("unknown query = %v", q)
	}
}

func TestClockNeverGoesBackwards(t *testing.T) {
	tw, clk := newTown(t)
	first := mustOK(t, tw, protocol.TxMsg{Op: protocol.OpOpenKitchen, Caller: chef})
	clk.Advance(-500)
	second := mustOK(t, tw, protocol.TxMsg{Op: protocol.OpCloseKitchen, Caller: chef})
	if second.Time < first.Time {
		t.Fatalf("time went backwards: %d then %d", first.Time, second.Time)
	}
	if second.Seq != first.Seq+1 {
		t.Fatalf("seq = %d then %d", first.Seq, second.Seq)
	}
}

type captureLog struct {
	txs    []TxLogEntry
	events []EventLogEntry
}

func (c *captureLog) WriteTx(e TxLogEntry) error       { c.txs = append(c.txs, e); return nil }
func (c *captureLog) WriteEvent(e EventLogEntry) error { c.events = append(c.events, e); return nil }

func TestLoggersSeeOutcomes(t *testing.T) {
	tw, _ := newTown(t)
	logs := &captureLog{}
	tw.SetTxLogger(logs)
	tw.SetEventLogger(logs)

	mustOK(t, tw, protocol.TxMsg{ID: "t1", Op: protocol.OpAddBaker, Caller: chef, Target: bob})
	mustFail(t, tw, protocol.TxMsg{ID: "t2", Op: protocol.OpAddBaker, Caller: bob, Target: alice}, protocol.ErrUnauthorized)

	if len(logs.txs) != 2 || !logs.txs[0].OK || logs.txs[1].OK || logs.txs[1].Code != protocol.ErrUnauthorized {
		t.Fatalf("tx log = %+v", logs.txs)
	}
	if len(logs.events) != 1 || logs.events[0].TxID != "t1" {
		t.Fatalf("event log = %+v", logs.events)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	tw, _ := newTown(t)
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpAddBaker, Caller: chef, Target: bob})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpBakePies, Caller: bob, Amount: units(3)})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpAddDestitute, Caller: priest, Target: alice})
	snap := tw.ExportSnapshot()

	cp, _ := newTown(t)
	if err := cp.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if cp.CurrentSeq() != tw.CurrentSeq() {
		t.Fatalf("seq = %d, want %d", cp.CurrentSeq(), tw.CurrentSeq())
	}
	if !cp.Pie().BalanceOf(bob).Eq(ledger.Units(3)) || !cp.Temple().IsDestitute(alice) {
		t.Fatalf("state not restored")
	}
	// The restored window still counts the earlier bake.
	mustFail(t, cp, protocol.TxMsg{Op: protocol.OpBakePies, Caller: bob, Amount: units(2)}, protocol.ErrRateLimit)

	snap.Header.TownID = "other"
	if err := cp.ImportSnapshot(snap); err == nil {
		t.Fatalf("expected town id mismatch")
	}
}

func TestRunLoop(t *testing.T) {
	tw, _ := newTown(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tw.Run(ctx) }()

	res, err := tw.Submit(ctx, protocol.TxMsg{Op: protocol.OpAddBaker, Caller: chef, Target: bob})
	if err != nil || !res.OK || res.ID == "" {
		t.Fatalf("submit: %+v %v", res, err)
	}
	q, err := tw.Ask(ctx, protocol.QueryMsg{Query: protocol.QueryKitchen, Account: bob})
	if err != nil || q.Result["is_baker"] != true {
		t.Fatalf("ask: %+v %v", q, err)
	}
	snap, err := tw.Snapshot(ctx)
	if err != nil || snap.Header.Seq != 1 {
		t.Fatalf("snapshot: %+v %v", snap.Header, err)
	}

	tw.Stop()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestEveryHandlerIsAKnownOp(t *testing.T) {
	for op := range handlers {
		if !protocol.IsKnownOp(op) {
			t.Fatalf("handler %q is not a known op", op)
		}
	}
}

func TestAllowanceAdjustments(t *testing.T) {
	tw, _ := newTown(t)
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpIncreaseAllowance, Caller: bob, Target: alice, Amount: units(3)})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpDecreaseAllowance, Caller: bob, Target: alice, Amount: units(1)})
	if got := tw.Pie().Allowance(bob, alice); !got.Eq(ledger.Units(2)) {
		t.Fatalf("allowance = %s, want %s", got.Dec(), units(2))
	}
	mustFail(t, tw, protocol.TxMsg{Op: protocol.OpDecreaseAllowance, Caller: bob, Target: alice, Amount: units(3)}, protocol.ErrInsufficientAllowance)
	if got := tw.Pie().Allowance(bob, alice); !got.Eq(ledger.Units(2)) {
		t.Fatalf("allowance after failed decrease = %s", got.Dec())
	}
}

func TestComponentAccountsCannotCall(t *testing.T) {
	tw, _ := newTown(t)
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpAddBaker, Caller: chef, Target: bob})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpBakePies, Caller: bob, Amount: units(4)})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpApprove, Caller: bob, Target: TempleAccount.String(), Amount: units(4)})
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpDonatePies, Caller: bob, Amount: units(4)})

	// Draining the donation pool directly.
	mustFail(t, tw, protocol.TxMsg{Op: protocol.OpTransfer, Caller: TempleAccount.String(), To: "mallory", Amount: units(4)}, protocol.ErrUnauthorized)
	if pool := tw.Pie().BalanceOf(TempleAccount); !pool.Eq(ledger.Units(4)) {
		t.Fatalf("pool = %s, want %s", pool.Dec(), units(4))
	}

	// Spending a marketplace approval outside a purchase.
	mustOK(t, tw, protocol.TxMsg{Op: protocol.OpSetApprovalForAll, Caller: monarch, Target: LandAccount.String(), Approved: true})
	mustFail(t, tw, protocol.TxMsg{Op: protocol.OpSafeTransferFrom, Caller: LandAccount.String(), From: monarch, To: "mallory", Kind: int(laboratory.Gold), Amount: units(1000)}, protocol.ErrUnauthorized)
	if got := tw.Laboratory().BalanceOf("mallory", laboratory.Gold); !got.IsZero() {
		t.Fatalf("mallory gold = %s", got.Dec())
	}

	for _, c := range []ledger.Account{PieAccount, LaboratoryAccount, LandAccount, TempleAccount} {
		mustFail(t, tw, protocol.TxMsg{Op: protocol.OpApprove, Caller: c.String(), Target: "mallory", Amount: units(1)}, protocol.ErrUnauthorized)
		mustFail(t, tw, protocol.TxMsg{Op: protocol.OpAddDestitute, Caller: priest, Target: c.String()}, protocol.ErrInvalidTarget)
	}
}
