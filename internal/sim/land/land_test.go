package land

import (
	"testing"

	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/laboratory"
	"cryptotown.ai/internal/sim/ledger"
)

const (
	bob     ledger.Account = "bob"
	alice   ledger.Account = "alice"
	labAddr ledger.Account = "laboratory"
	self    ledger.Account = "land"
)

type fixture struct {
	j    *ledger.Journal
	lab  *laboratory.Laboratory
	land *Land
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	j := ledger.NewJournal()
	lab := laboratory.New(laboratory.Config{Monarch: bob}, j)
	dir := DirectoryFunc(func(addr ledger.Account) (ResourceBook, bool) {
		if addr == labAddr {
			return lab, true
		}
		return nil, false
	})
	l := New(Config{Owner: bob, Self: self, Laboratory: labAddr, Temple: "temple"}, dir, j)
	return fixture{j: j, lab: lab, land: l}
}

func (f fixture) fund(t *testing.T, to ledger.Account, gold, wood, rock uint64) {
	t.Helper()
	kinds := []laboratory.Kind{laboratory.Gold, laboratory.Wood, laboratory.Rock}
	amounts := []*uint256.Int{ledger.Units(gold), ledger.Units(wood), ledger.Units(rock)}
	if err := f.lab.AddBatchOfResources(bob, kinds, amounts, "", to); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func (f fixture) mustKind(t *testing.T, a ledger.Account, k laboratory.Kind, units uint64) {
	t.Helper()
	if got := f.lab.BalanceOf(a, k); !got.Eq(ledger.Units(units)) {
		t.Fatalf("%s %s = %s, want %d units", a, k, got.Dec(), units)
	}
}

func TestBuyRequiresApproval(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 2000, 300, 200)
	if _, err := f.land.BuyUsingGold(alice); !ledger.IsCode(err, protocol.ErrNotOwnerOrApproved) {
		t.Fatalf("expected not approved, got %v", err)
	}
	if f.land.LastID() != 0 {
		t.Fatalf("no parcel may be minted")
	}
}

func TestBuyUsingGoldWoodRockTwice(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 2000, 300, 200)
	if err := f.lab.SetApprovalForAll(alice, self, true); err != nil {
		t.Fatalf("approve: %v", err)
	}

	id, err := f.land.BuyUsingGoldWoodRock(alice)
	if err != nil || id != 1 {
		t.Fatalf("first buy: id=%d err=%v", id, err)
	}
	f.mustKind(t, alice, laboratory.Gold, 1950)
	f.mustKind(t, alice, laboratory.Wood, 150)
	f.mustKind(t, alice, laboratory.Rock, 100)

	id, err = f.land.BuyUsingGoldWoodRock(alice)
	if err != nil || id != 2 {
		t.Fatalf("second buy: id=%d err=%v", id, err)
	}
	f.mustKind(t, alice, laboratory.Gold, 1900)
	f.mustKind(t, alice, laboratory.Wood, 0)
	f.mustKind(t, alice, laboratory.Rock, 0)
	f.mustKind(t, self, laboratory.Wood, 300)

	if owner, err := f.land.OwnerOf(2); err != nil || owner != alice {
		t.Fatalf("owner of 2 = %s, %v", owner, err)
	}
	if n := f.land.BalanceOf(alice); n != 2 {
		t.Fatalf("alice owns %d parcels", n)
	}

	evs := f.j.Commit()
	last := evs[len(evs)-1]
	if last["type"] != EventLandBought || last["owner"] != "alice" || last["land_id"] != uint64(2) {
		t.Fatalf("last event = %v", last)
	}
}

func TestBuyIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 2000, 100, 200) // not enough wood for GOLD_WOOD_ROCK
	if err := f.lab.SetApprovalForAll(alice, self, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.land.BuyUsingGoldWoodRock(alice); !ledger.IsCode(err, protocol.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	f.mustKind(t, alice, laboratory.Gold, 2000)
	f.mustKind(t, alice, laboratory.Rock, 200)
	if f.land.LastID() != 0 {
		t.Fatalf("no parcel may be minted")
	}

	// Ids keep counting from the last successful mint.
	if id, err := f.land.BuyUsingGold(alice); err != nil || id != 1 {
		t.Fatalf("gold buy: id=%d err=%v", id, err)
	}
}

func TestBuyWithUnknownLaboratory(t *testing.T) {
	f := newFixture(t)
	if err := f.land.SetLaboratoryAddress(bob, "nowhere"); err != nil {
		t.Fatalf("set address: %v", err)
	}
	if _, err := f.land.BuyUsingRock(alice); !ledger.IsCode(err, protocol.ErrInvalidTarget) {
		t.Fatalf("expected invalid target, got %v", err)
	}
}

func TestSetPrice(t *testing.T) {
	f := newFixture(t)
	if err := f.land.SetPriceInGold(alice, ledger.Units(1)); !ledger.IsCode(err, protocol.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	before := f.land.Price(ComboGoldWoodRock)
	err := f.land.SetPriceInGoldWoodRock(bob, ledger.Units(1), new(uint256.Int), ledger.Units(3))
	if !ledger.IsCode(err, protocol.ErrInvalidPrice) {
		t.Fatalf("expected invalid price, got %v", err)
	}
	after := f.land.Price(ComboGoldWoodRock)
	for i := range before {
		if !before[i].Eq(after[i]) {
			t.Fatalf("partial price update at %d", i)
		}
	}
	if err := f.land.SetPrice(bob, ComboGoldSilver, []*uint256.Int{ledger.Units(1)}); !ledger.IsCode(err, protocol.ErrArrayLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
	if err := f.land.SetPriceInSilverWoodRock(bob, ledger.Units(1), ledger.Units(2), ledger.Units(3)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if p := f.land.Price(ComboSilverWoodRock); !p[2].Eq(ledger.Units(3)) {
		t.Fatalf("price not applied: %s", p[2].Dec())
	}

	f.fund(t, alice, 10, 0, 0)
	if err := f.lab.SetApprovalForAll(alice, self, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.land.SetPriceInGold(bob, ledger.Units(7)); err != nil {
		t.Fatalf("set gold: %v", err)
	}
	if _, err := f.land.BuyUsingGold(alice); err != nil {
		t.Fatalf("buy: %v", err)
	}
	f.mustKind(t, alice, laboratory.Gold, 3)
}

func TestSetAddresses(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		caller, addr ledger.Account
		code         string
	}{
		{alice, "x", protocol.ErrUnauthorized},
		{bob, ledger.Null, protocol.ErrInvalidTarget},
		{bob, bob, protocol.ErrInvalidTarget},
		{bob, labAddr, protocol.ErrInvalidTarget},
	}
	for _, c := range cases {
		if err := f.land.SetLaboratoryAddress(c.caller, c.addr); !ledger.IsCode(err, c.code) {
			t.Fatalf("SetLaboratoryAddress(%q,%q) = %v, want %s", c.caller, c.addr, err, c.code)
		}
	}
	if err := f.land.SetTempleAddress(bob, "temple"); !ledger.IsCode(err, protocol.ErrInvalidTarget) {
		t.Fatalf("expected unchanged temple rejected, got %v", err)
	}
	if err := f.land.SetTempleAddress(bob, "temple2"); err != nil {
		t.Fatalf("set temple: %v", err)
	}
	if f.land.TempleAddress() != "temple2" {
		t.Fatalf("temple = %s", f.land.TempleAddress())
	}
}

func TestTransferParcel(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 100, 0, 0)
	if err := f.lab.SetApprovalForAll(alice, self, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	id, err := f.land.BuyUsingGold(alice)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := f.land.TransferParcel(bob, bob, id); !ledger.IsCode(err, protocol.ErrNotOwnerOrApproved) {
		t.Fatalf("expected not owner, got %v", err)
	}
	if err := f.land.TransferParcel(alice, bob, 99); !ledger.IsCode(err, protocol.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := f.land.TransferParcel(alice, bob, id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if f.land.BalanceOf(alice) != 0 || f.land.BalanceOf(bob) != 1 {
		t.Fatalf("counts not moved")
	}
}

func TestExportImport(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 100, 0, 0)
	if err := f.lab.SetApprovalForAll(alice, self, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.land.BuyUsingGold(alice); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := f.land.SetPriceInRock(bob, ledger.Units(9)); err != nil {
		t.Fatalf("price: %v", err)
	}
	cp := New(Config{Owner: "x", Self: self}, nil, nil)
	if err := cp.Import(f.land.Export()); err != nil {
		t.Fatalf("import: %v", err)
	}
	if cp.LastID() != 1 || cp.BalanceOf(alice) != 1 || cp.Owner() != bob {
		t.Fatalf("parcels/owner not restored")
	}
	if p := cp.Price(ComboRock); !p[0].Eq(ledger.Units(9)) {
		t.Fatalf("rock price = %s", p[0].Dec())
	}
}
