// Package temple pools donated Pies and shares them among registered
// destitute accounts.
package temple

import (
	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/access"
	"cryptotown.ai/internal/sim/ledger"
)

// DefaultThreshold is 5 Pies: richer accounts are not eligible for help.
var DefaultThreshold = ledger.Units(5)

const (
	EventDestituteAdded         = "DESTITUTE_ADDED"
	EventDestituteRemoved       = "DESTITUTE_REMOVED"
	EventPiesDonated            = "PIES_DONATED"
	EventDonatedPiesDistributed = "DONATED_PIES_DISTRIBUTED"
	EventPieAddressSet          = "PIE_ADDRESS_SET"
)

// Currency is the part of the Pie ledger the temple needs.
type Currency interface {
	BalanceOf(a ledger.Account) *uint256.Int
	Transfer(caller, to ledger.Account, amount *uint256.Int) error
	TransferFrom(caller, owner, to ledger.Account, amount *uint256.Int) error
}

type Directory interface {
	Pie(addr ledger.Account) (Currency, bool)
}

type DirectoryFunc func(addr ledger.Account) (Currency, bool)

func (f DirectoryFunc) Pie(addr ledger.Account) (Currency, bool) { return f(addr) }

type Config struct {
	Owner     ledger.Account
	Self      ledger.Account
	Pie       ledger.Account
	Threshold *uint256.Int

	// Reserved accounts can never be registered as destitute.
	Reserved []ledger.Account
}

type Temple struct {
	access.Ownable
	j   *ledger.Journal
	dir Directory

	self      ledger.Account
	pie       ledger.Account
	threshold *uint256.Int
	reserved  []ledger.Account

	destitutes []ledger.Account
}

func New(cfg Config, dir Directory, j *ledger.Journal) *Temple {
	if cfg.Threshold == nil {
		cfg.Threshold = DefaultThreshold
	}
	return &Temple{
		Ownable:   access.NewOwnable("temple", cfg.Owner, j),
		j:         j,
		dir:       dir,
		self:      cfg.Self,
		pie:       cfg.Pie,
		threshold: cfg.Threshold.Clone(),
		reserved:  append([]ledger.Account{cfg.Self}, cfg.Reserved...),
	}
}

func (t *Temple) Self() ledger.Account       { return t.self }
func (t *Temple) PieAddress() ledger.Account { return t.pie }
func (t *Temple) Threshold() *uint256.Int    { return t.threshold.Clone() }

func (t *Temple) Destitutes() []ledger.Account {
	return append([]ledger.Account(nil), t.destitutes...)
}

func (t *Temple) IsDestitute(a ledger.Account) bool { return t.indexOf(a) >= 0 }

// PoolBalance is the temple's own Pie balance.
func (t *Temple) PoolBalance() (*uint256.Int, error) {
	cur, err := t.currency()
	if err != nil {
		return nil, err
	}
	return cur.BalanceOf(t.self), nil
}

func (t *Temple) AddDestitute(caller, a ledger.Account) error {
	if err := t.OnlyOwner(caller); err != nil {
		return err
	}
	if a.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "destitute can not be zero address")
	}
	if t.isReserved(a) {
		return ledger.Errf(protocol.ErrInvalidTarget, "%s is a component account", a)
	}
	if t.IsDestitute(a) {
		return ledger.Errf(protocol.ErrAlreadyExists, "%s is already registered", a)
	}
	cur, err := t.currency()
	if err != nil {
		return err
	}
	if bal := cur.BalanceOf(a); bal.Gt(t.threshold) {
		return ledger.Errf(protocol.ErrNotEligible, "this account does not need help now")
	}
	next := append(t.Destitutes(), a)
	ledger.Set(t.j, &t.destitutes, next)
	t.j.Emit(protocol.Event{"type": EventDestituteAdded, "destitute": a.String()})
	return nil
}

func (t *Temple) RemoveDestitute(caller, a ledger.Account) error {
	if err := t.OnlyOwner(caller); err != nil {
		return err
	}
	if !t.IsDestitute(a) {
		return ledger.Errf(protocol.ErrInvalidTarget, "%s is not registered", a)
	}
	t.remove(a)
	return nil
}

// DonatePies pulls amount from the caller through the Pie allowance mechanism.
func (t *Temple) DonatePies(caller ledger.Account, amount *uint256.Int) error {
	cur, err := t.currency()
	if err != nil {
		return err
	}
	if err := cur.TransferFrom(t.self, caller, t.self, amount); err != nil {
		return err
	}
	t.j.Emit(protocol.Event{"type": EventPiesDonated, "donater": caller.String(), "amount": amount.Dec()})
	return nil
}

// DistributeDonatedPies pays floor(pool/members) to every member. The
// remainder stays pooled. Members left above the threshold are removed.
func (t *Temple) DistributeDonatedPies(caller ledger.Account) error {
	if err := t.OnlyOwner(caller); err != nil {
		return err
	}
	cur, err := t.currency()
	if err != nil {
		return err
	}
	pool := cur.BalanceOf(t.self)
	if pool.IsZero() {
		return ledger.Errf(protocol.ErrNothingToDistribute, "no pies were donated yet")
	}
	if len(t.destitutes) == 0 {
		return ledger.Errf(protocol.ErrNothingToDistribute, "no destitute registered")
	}
	members := t.Destitutes()
	share := new(uint256.Int).Div(pool, uint256.NewInt(uint64(len(members))))
	for _, m := range members {
		if err := cur.Transfer(t.self, m, share); err != nil {
			return err
		}
	}
	t.j.Emit(protocol.Event{
		"type":       EventDonatedPiesDistributed,
		"amount":     pool.Dec(),
		"share":      share.Dec(),
		"recipients": len(members),
	})
	for _, m := range members {
		if cur.BalanceOf(m).Gt(t.threshold) {
			t.remove(m)
		}
	}
	return nil
}

func (t *Temple) SetPieAddress(caller, addr ledger.Account) error {
	if err := t.OnlyOwner(caller); err != nil {
		return err
	}
	switch {
	case addr.IsNull():
		return ledger.Errf(protocol.ErrInvalidTarget, "pie token can not be zero address")
	case addr == t.Owner():
		return ledger.Errf(protocol.ErrInvalidTarget, "pie token can not be the same as owner")
	case addr == t.pie:
		return ledger.Errf(protocol.ErrInvalidTarget, "pie token can not be the same as old pie token")
	}
	ledger.Set(t.j, &t.pie, addr)
	t.j.Emit(protocol.Event{"type": EventPieAddressSet, "address": addr.String()})
	return nil
}

func (t *Temple) currency() (Currency, error) {
	cur, ok := t.dir.Pie(t.pie)
	if !ok {
		return nil, ledger.Errf(protocol.ErrInvalidTarget, "no pie ledger deployed at %q", t.pie)
	}
	return cur, nil
}

func (t *Temple) remove(a ledger.Account) {
	i := t.indexOf(a)
	if i < 0 {
		return
	}
	next := make([]ledger.Account, 0, len(t.destitutes)-1)
	next = append(next, t.destitutes[:i]...)
	next = append(next, t.destitutes[i+1:]...)
	ledger.Set(t.j, &t.destitutes, next)
	t.j.Emit(protocol.Event{"type": EventDestituteRemoved, "destitute": a.String()})
}

func (t *Temple) isReserved(a ledger.Account) bool {
	for _, r := range t.reserved {
		if a == r {
			return true
		}
	}
	return false
}

func (t *Temple) indexOf(a ledger.Account) int {
	for i, x := range t.destitutes {
		if x == a {
			return i
		}
	}
	return -1
}
