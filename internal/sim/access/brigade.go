package access

import (
	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/ledger"
)

const MaxBakers = 3

// Brigade is the Pie kitchen staff: one Chef administering up to MaxBakers Bakers.
type Brigade struct {
	chef   ledger.Account
	bakers []ledger.Account
	j      *ledger.Journal
}

func NewBrigade(chef ledger.Account, j *ledger.Journal) Brigade {
	return Brigade{chef: chef, j: j}
}

func (b *Brigade) Chef() ledger.Account { return b.chef }

func (b *Brigade) IsChef(a ledger.Account) bool { return !a.IsNull() && a == b.chef }

func (b *Brigade) IsBaker(a ledger.Account) bool { return b.indexOf(a) >= 0 }

func (b *Brigade) Bakers() []ledger.Account {
	return append([]ledger.Account(nil), b.bakers...)
}

func (b *Brigade) OnlyChef(caller ledger.Account) error {
	if !b.IsChef(caller) {
		return ledger.Unauthorized("Chef")
	}
	return nil
}

func (b *Brigade) OnlyBaker(caller ledger.Account) error {
	if !b.IsBaker(caller) {
		return ledger.Unauthorized("Baker")
	}
	return nil
}

func (b *Brigade) ReassignChef(caller, next ledger.Account) error {
	if err := b.OnlyChef(caller); err != nil {
		return err
	}
	if err := checkReassign("Chef", b.chef, next); err != nil {
		return err
	}
	prev := b.chef
	ledger.Set(b.j, &b.chef, next)
	b.j.Emit(protocol.Event{"type": EventChefReassigned, "old_chef": prev.String(), "new_chef": next.String()})
	return nil
}

// AddBaker rejects duplicates with E_ALREADY_EXISTS rather than treating them as no-ops.
func (b *Brigade) AddBaker(caller, baker ledger.Account) error {
	if err := b.OnlyChef(caller); err != nil {
		return err
	}
	if baker.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "baker can not be zero address")
	}
	if b.IsBaker(baker) {
		return ledger.Errf(protocol.ErrAlreadyExists, "%s is already a baker", baker)
	}
	if len(b.bakers) >= MaxBakers {
		return ledger.Errf(protocol.ErrCapacityExceeded, "maximum number of bakers reached")
	}
	next := append(b.Bakers(), baker)
	ledger.Set(b.j, &b.bakers, next)
	b.j.Emit(protocol.Event{"type": EventBakerAdded, "baker": baker.String()})
	return nil
}

func (b *Brigade) RemoveBaker(caller, baker ledger.Account) error {
	if err := b.OnlyChef(caller); err != nil {
		return err
	}
	i := b.indexOf(baker)
	if i < 0 {
		return ledger.Errf(protocol.ErrInvalidTarget, "%s is not a baker", baker)
	}
	next := make([]ledger.Account, 0, len(b.bakers)-1)
	next = append(next, b.bakers[:i]...)
	next = append(next, b.bakers[i+1:]...)
	ledger.Set(b.j, &b.bakers, next)
	b.j.Emit(protocol.Event{"type": EventBakerRemoved, "baker": baker.String()})
	return nil
}

// Restore overwrites the role set without checks; used when importing snapshots.
func (b *Brigade) Restore(chef ledger.Account, bakers []ledger.Account) {
	b.chef = chef
	b.bakers = append([]ledger.Account(nil), bakers...)
}

func (b *Brigade) indexOf(a ledger.Account) int {
	if a.IsNull() {
		return -1
	}
	for i, x := range b.bakers {
		if x == a {
			return i
		}
	}
	return -1
}
