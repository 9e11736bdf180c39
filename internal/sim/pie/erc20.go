package pie

import (
	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/ledger"
)

func (l *Ledger) TotalSupply() *uint256.Int { return l.supply.Clone() }

func (l *Ledger) BalanceOf(a ledger.Account) *uint256.Int {
	return ledger.Get(l.balances, a).Clone()
}

func (l *Ledger) Allowance(owner, spender ledger.Account) *uint256.Int {
	return ledger.Get(l.allowances[owner], spender).Clone()
}

func (l *Ledger) Transfer(caller, to ledger.Account, amount *uint256.Int) error {
	if caller.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "transfer from the zero address")
	}
	return l.move(caller, to, amount)
}

func (l *Ledger) Approve(caller, spender ledger.Account, amount *uint256.Int) error {
	if caller.IsNull() || spender.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "approve with the zero address")
	}
	l.setAllowance(caller, spender, amount.Clone())
	return nil
}

// TransferFrom moves amount from owner to to, spending the caller's allowance.
// The recipient and balance are checked before the allowance, so an owner
// short on both gets InsufficientBalance.
func (l *Ledger) TransferFrom(caller, owner, to ledger.Account, amount *uint256.Int) error {
	if owner.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "transfer from the zero address")
	}
	if to.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "transfer to the zero address")
	}
	if bal := ledger.Get(l.balances, owner); bal.Lt(amount) {
		return ledger.Errf(protocol.ErrInsufficientBalance, "transfer amount %s exceeds balance %s", amount.Dec(), bal.Dec())
	}
	allowed := ledger.Get(l.allowances[owner], caller)
	if allowed.Lt(amount) {
		return ledger.Errf(protocol.ErrInsufficientAllowance, "transfer amount %s exceeds allowance %s", amount.Dec(), allowed.Dec())
	}
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	l.setAllowance(owner, caller, new(uint256.Int).Sub(allowed, amount))
	return nil
}

func (l *Ledger) IncreaseAllowance(caller, spender ledger.Account, added *uint256.Int) error {
	next, err := ledger.AddChecked(ledger.Get(l.allowances[caller], spender), added)
	if err != nil {
		return err
	}
	return l.Approve(caller, spender, next)
}

func (l *Ledger) DecreaseAllowance(caller, spender ledger.Account, sub *uint256.Int) error {
	cur := ledger.Get(l.allowances[caller], spender)
	if cur.Lt(sub) {
		return ledger.Errf(protocol.ErrInsufficientAllowance, "decreased allowance below zero")
	}
	return l.Approve(caller, spender, new(uint256.Int).Sub(cur, sub))
}

func (l *Ledger) move(from, to ledger.Account, amount *uint256.Int) error {
	if to.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "transfer to the zero address")
	}
	bal := ledger.Get(l.balances, from)
	if bal.Lt(amount) {
		return ledger.Errf(protocol.ErrInsufficientBalance, "transfer amount %s exceeds balance %s", amount.Dec(), bal.Dec())
	}
	ledger.Put(l.j, l.balances, from, new(uint256.Int).Sub(bal, amount))
	// Sum of balances is bounded by supply, so the credit can not overflow.
	ledger.Put(l.j, l.balances, to, new(uint256.Int).Add(ledger.Get(l.balances, to), amount))
	l.j.Emit(protocol.Event{"type": EventTransfer, "from": from.String(), "to": to.String(), "amount": amount.Dec()})
	return nil
}

func (l *Ledger) setAllowance(owner, spender ledger.Account, amount *uint256.Int) {
	m := l.allowances[owner]
	if m == nil {
		m = map[ledger.Account]*uint256.Int{}
		ledger.Put(l.j, l.allowances, owner, m)
	}
	ledger.Put(l.j, m, spender, amount)
	l.j.Emit(protocol.Event{"type": EventApproval, "owner": owner.String(), "spender": spender.String(), "amount": amount.Dec()})
}
