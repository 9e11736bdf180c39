// Package access holds the role sets guarding every ledger: a single
// transferable Owner, and the Chef/Baker brigade that runs the Pie kitchen.
package access

import (
	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/ledger"
)

const (
	EventOwnershipTransferred = "OWNERSHIP_TRANSFERRED"
	EventChefReassigned       = "CHEF_REASSIGNED"
	EventBakerAdded           = "BAKER_ADDED"
	EventBakerRemoved         = "BAKER_REMOVED"
)

type Ownable struct {
	component string
	owner     ledger.Account
	j         *ledger.Journal
}

func NewOwnable(component string, owner ledger.Account, j *ledger.Journal) Ownable {
	return Ownable{component: component, owner: owner, j: j}
}

func (o *Ownable) Owner() ledger.Account { return o.owner }

func (o *Ownable) IsOwner(a ledger.Account) bool { return !a.IsNull() && a == o.owner }

// OnlyOwner is the guard evaluated first by every owner-restricted operation.
func (o *Ownable) OnlyOwner(caller ledger.Account) error {
	if !o.IsOwner(caller) {
		return ledger.Unauthorized(o.component + " owner")
	}
	return nil
}

func (o *Ownable) TransferOwnership(caller, next ledger.Account) error {
	if err := o.OnlyOwner(caller); err != nil {
		return err
	}
	if err := checkReassign("owner", o.owner, next); err != nil {
		return err
	}
	prev := o.owner
	ledger.Set(o.j, &o.owner, next)
	o.j.Emit(protocol.Event{
		"type":      EventOwnershipTransferred,
		"component": o.component,
		"previous":  prev.String(),
		"owner":     next.String(),
	})
	return nil
}

// Restore overwrites the owner without checks; used when importing snapshots.
func (o *Ownable) Restore(owner ledger.Account) { o.owner = owner }

func checkReassign(role string, cur, next ledger.Account) error {
	if next.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "new %s can not be zero address", role)
	}
	if next == cur {
		return ledger.Errf(protocol.ErrInvalidTarget, "new %s can not be the same as old one", role)
	}
	return nil
}
