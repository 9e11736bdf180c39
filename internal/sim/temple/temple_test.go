package temple

import (
	"testing"

	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/ledger"
	"cryptotown.ai/internal/sim/pie"
)

const (
	bob     ledger.Account = "bob"
	alice   ledger.Account = "alice"
	carol   ledger.Account = "carol"
	pieAddr ledger.Account = "pie"
	self    ledger.Account = "temple"
)

type fixture struct {
	pie    *pie.Ledger
	temple *Temple
	now    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	j := ledger.NewJournal()
	p := pie.New(pie.Config{Chef: bob}, j)
	if err := p.AddBaker(bob, bob); err != nil {
		t.Fatalf("add baker: %v", err)
	}
	dir := DirectoryFunc(func(addr ledger.Account) (Currency, bool) {
		if addr == pieAddr {
			return p, true
		}
		return nil, false
	})
	return &fixture{pie: p, temple: New(Config{Owner: bob, Self: self, Pie: pieAddr, Reserved: []ledger.Account{pieAddr}}, dir, j)}
}

// bake mints n Pies to bob, advancing an hour between full windows.
func (f *fixture) bake(t *testing.T, n uint64) {
	t.Helper()
	for n > 0 {
		step := n
		if step > 4 {
			step = 4
		}
		if err := f.pie.BakePies(bob, ledger.Units(step), f.now); err != nil {
			t.Fatalf("bake: %v", err)
		}
		f.now += 3600
		n -= step
	}
}

func (f *fixture) donate(t *testing.T, from ledger.Account, amount *uint256.Int) {
	t.Helper()
	if err := f.pie.Approve(from, self, amount); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.temple.DonatePies(from, amount); err != nil {
		t.Fatalf("donate: %v", err)
	}
}

func TestSetPieAddress(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		caller, addr ledger.Account
		code         string
	}{
		{alice, ledger.Null, protocol.ErrUnauthorized},
		{bob, ledger.Null, protocol.ErrInvalidTarget},
		{bob, bob, protocol.ErrInvalidTarget},
		{bob, pieAddr, protocol.ErrInvalidTarget},
	}
	for _, c := range cases {
		if err := f.temple.SetPieAddress(c.caller, c.addr); !ledger.IsCode(err, c.code) {
			t.Fatalf("SetPieAddress(%q,%q) = %v, want %s", c.caller, c.addr, err, c.code)
		}
	}
	if err := f.temple.SetPieAddress(bob, alice); err != nil {
		t.Fatalf("set: %v", err)
	}
	if f.temple.PieAddress() != alice {
		t.Fatalf("pie address = %s", f.temple.PieAddress())
	}
	if _, err := f.temple.PoolBalance(); !ledger.IsCode(err, protocol.ErrInvalidTarget) {
		t.Fatalf("expected unresolvable pie ledger, got %v", err)
	}
}

func TestOnlyOwnerManagesDestitutes(t *testing.T) {
	f := newFixture(t)
	if err := f.temple.AddDestitute(alice, alice); !ledger.IsCode(err, protocol.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.temple.RemoveDestitute(alice, alice); !ledger.IsCode(err, protocol.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.temple.AddDestitute(bob, alice); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !f.temple.IsDestitute(alice) {
		t.Fatalf("alice should be destitute")
	}
	if err := f.temple.AddDestitute(bob, alice); !ledger.IsCode(err, protocol.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	if err := f.temple.RemoveDestitute(bob, alice); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if f.temple.IsDestitute(alice) {
		t.Fatalf("alice should be removed")
	}
	if err := f.temple.RemoveDestitute(bob, alice); !ledger.IsCode(err, protocol.ErrInvalidTarget) {
		t.Fatalf("expected invalid target, got %v", err)
	}
}

func TestComponentAccountsAreNotDestitute(t *testing.T) {
	f := newFixture(t)
	for _, a := range []ledger.Account{self, pieAddr} {
		if err := f.temple.AddDestitute(bob, a); !ledger.IsCode(err, protocol.ErrInvalidTarget) {
			t.Fatalf("%s: expected invalid target, got %v", a, err)
		}
		if f.temple.IsDestitute(a) {
			t.Fatalf("%s registered", a)
		}
	}
}

func TestRichAccountIsNotEligible(t *testing.T) {
	f := newFixture(t)
	f.bake(t, 6)
	if err := f.temple.AddDestitute(bob, bob); !ledger.IsCode(err, protocol.ErrNotEligible) {
		t.Fatalf("expected not eligible, got %v", err)
	}
}

func TestDonate(t *testing.T) {
	f := newFixture(t)
	f.bake(t, 4)
	if err := f.temple.DonatePies(bob, ledger.Units(4)); !ledger.IsCode(err, protocol.ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}
	if err := f.temple.DonatePies(alice, ledger.Units(1)); !ledger.IsCode(err, protocol.ErrInsufficientBalance) {
		t.Fatalf("donor without pies or allowance: expected insufficient balance, got %v", err)
	}
	f.donate(t, bob, ledger.Units(4))
	pool, err := f.temple.PoolBalance()
	if err != nil || !pool.Eq(ledger.Units(4)) {
		t.Fatalf("pool = %v, %v", pool, err)
	}
	if err := f.pie.Approve(bob, self, ledger.Units(1)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.temple.DonatePies(bob, ledger.Units(1)); !ledger.IsCode(err, protocol.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestNothingToDistribute(t *testing.T) {
	f := newFixture(t)
	if err := f.temple.DistributeDonatedPies(bob); !ledger.IsCode(err, protocol.ErrNothingToDistribute) {
		t.Fatalf("expected nothing to distribute, got %v", err)
	}
	f.bake(t, 1)
	f.donate(t, bob, ledger.Units(1))
	if err := f.temple.DistributeDonatedPies(bob); !ledger.IsCode(err, protocol.ErrNothingToDistribute) {
		t.Fatalf("expected nothing to distribute without members, got %v", err)
	}
	if err := f.temple.DistributeDonatedPies(alice); !ledger.IsCode(err, protocol.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestDistributeEvenly(t *testing.T) {
	f := newFixture(t)
	f.bake(t, 4)
	f.donate(t, bob, ledger.Units(4))
	for _, a := range []ledger.Account{bob, alice} {
		if err := f.temple.AddDestitute(bob, a); err != nil {
			t.Fatalf("add %s: %v", a, err)
		}
	}
	if err := f.temple.DistributeDonatedPies(bob); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	for _, a := range []ledger.Account{bob, alice} {
		if got := f.pie.BalanceOf(a); !got.Eq(ledger.Units(2)) {
			t.Fatalf("%s = %s", a, got.Dec())
		}
	}
	if pool, _ := f.temple.PoolBalance(); !pool.IsZero() {
		t.Fatalf("pool = %s", pool.Dec())
	}
}

func TestDistributeKeepsRemainder(t *testing.T) {
	f := newFixture(t)
	f.bake(t, 1)
	f.donate(t, bob, uint256.NewInt(5))
	for _, a := range []ledger.Account{alice, carol} {
		if err := f.temple.AddDestitute(bob, a); err != nil {
			t.Fatalf("add %s: %v", a, err)
		}
	}
	if err := f.temple.DistributeDonatedPies(bob); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if got := f.pie.BalanceOf(alice); got.Uint64() != 2 {
		t.Fatalf("alice = %s", got.Dec())
	}
	if pool, _ := f.temple.PoolBalance(); pool.Uint64() != 1 {
		t.Fatalf("pool = %s, want remainder 1", pool.Dec())
	}
}

func TestDistributePrunesRichMembers(t *testing.T) {
	f := newFixture(t)
	f.bake(t, 8)
	f.donate(t, bob, ledger.Units(8))
	if err := f.temple.AddDestitute(bob, alice); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.temple.DistributeDonatedPies(bob); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if f.temple.IsDestitute(alice) {
		t.Fatalf("alice should have been removed")
	}
	if got := f.pie.BalanceOf(alice); !got.Eq(ledger.Units(8)) {
		t.Fatalf("alice = %s", got.Dec())
	}
}

func TestExportImport(t *testing.T) {
	f := newFixture(t)
	if err := f.temple.AddDestitute(bob, alice); err != nil {
		t.Fatalf("add: %v", err)
	}
	cp := New(Config{Owner: "x", Self: self}, nil, nil)
	if err := cp.Import(f.temple.Export()); err != nil {
		t.Fatalf("import: %v", err)
	}
	if cp.Owner() != bob || cp.PieAddress() != pieAddr || !cp.IsDestitute(alice) {
		t.Fatalf("state not restored")
	}
	if !cp.Threshold().Eq(DefaultThreshold) {
		t.Fatalf("threshold = %s", cp.Threshold().Dec())
	}
}
