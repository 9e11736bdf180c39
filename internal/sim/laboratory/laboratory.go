// Package laboratory is the multi-resource book. The Monarch (owner) mints
// raw resources to anyone; holders move them directly or through operators
// they approved.
package laboratory

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/access"
	"cryptotown.ai/internal/sim/ledger"
)

type Kind int

const (
	Gold Kind = iota
	Silver
	Wood
	Rock
	Clay

	NumKinds = 5
)

var kindNames = [NumKinds]string{"GOLD", "SILVER", "WOOD", "ROCK", "CLAY"}

func (k Kind) Valid() bool { return k >= 0 && k < NumKinds }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("KIND(%d)", int(k))
	}
	return kindNames[k]
}

func ParseKind(s string) (Kind, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return 0, false
}

const (
	EventResourcesAdded = "RESOURCES_ADDED"
	EventApprovalForAll = "APPROVAL_FOR_ALL"
	EventTransferBatch  = "TRANSFER_BATCH"
)

// DefaultGenesis is what the Monarch holds right after construction.
func DefaultGenesis() map[Kind]*uint256.Int {
	return map[Kind]*uint256.Int{
		Gold:   ledger.MustAmount("1000000000000000000000"),
		Silver: ledger.MustAmount("8000000000000000000000"),
		Wood:   ledger.MustAmount("20000000000000000000000000000"),
		Rock:   ledger.MustAmount("7000000000000000000000000000000"),
		Clay:   ledger.MustAmount("3300000000000000000000000000000000"),
	}
}

type Config struct {
	Monarch ledger.Account
	Genesis map[Kind]*uint256.Int
}

type Laboratory struct {
	access.Ownable
	j *ledger.Journal

	balances  map[ledger.Account]*[NumKinds]*uint256.Int
	approvals map[ledger.Account]map[ledger.Account]bool
}

func New(cfg Config, j *ledger.Journal) *Laboratory {
	lab := &Laboratory{
		Ownable:   access.NewOwnable("laboratory", cfg.Monarch, j),
		j:         j,
		balances:  map[ledger.Account]*[NumKinds]*uint256.Int{},
		approvals: map[ledger.Account]map[ledger.Account]bool{},
	}
	for k, v := range cfg.Genesis {
		if k.Valid() && v != nil && !cfg.Monarch.IsNull() {
			row := lab.row(cfg.Monarch)
			row[k] = v.Clone()
			lab.balances[cfg.Monarch] = row
		}
	}
	return lab
}

func (l *Laboratory) BalanceOf(a ledger.Account, k Kind) *uint256.Int {
	if !k.Valid() {
		return new(uint256.Int)
	}
	if row := l.balances[a]; row != nil && row[k] != nil {
		return row[k].Clone()
	}
	return new(uint256.Int)
}

func (l *Laboratory) BalanceOfBatch(accounts []ledger.Account, kinds []Kind) ([]*uint256.Int, error) {
	if len(accounts) != len(kinds) {
		return nil, ledger.Errf(protocol.ErrArrayLengthMismatch, "accounts and ids length mismatch")
	}
	out := make([]*uint256.Int, len(kinds))
	for i := range kinds {
		out[i] = l.BalanceOf(accounts[i], kinds[i])
	}
	return out, nil
}

func (l *Laboratory) IsApprovedForAll(owner, operator ledger.Account) bool {
	return l.approvals[owner][operator]
}

func (l *Laboratory) SetApprovalForAll(caller, operator ledger.Account, approved bool) error {
	if caller.IsNull() || operator.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "approval with the zero address")
	}
	if caller == operator {
		return ledger.Errf(protocol.ErrInvalidTarget, "setting approval status for self")
	}
	m := l.approvals[caller]
	if m == nil {
		m = map[ledger.Account]bool{}
		ledger.Put(l.j, l.approvals, caller, m)
	}
	ledger.Put(l.j, m, operator, approved)
	l.j.Emit(protocol.Event{
		"type":     EventApprovalForAll,
		"owner":    caller.String(),
		"operator": operator.String(),
		"approved": approved,
	})
	return nil
}

// AddResources mints amount of kind to recipient. data is echoed in the event.
func (l *Laboratory) AddResources(caller ledger.Account, kind Kind, amount *uint256.Int, data string, recipient ledger.Account) error {
	return l.AddBatchOfResources(caller, []Kind{kind}, []*uint256.Int{amount}, data, recipient)
}

// AddBatchOfResources mints every (kind, amount) pair, in order, or nothing.
func (l *Laboratory) AddBatchOfResources(caller ledger.Account, kinds []Kind, amounts []*uint256.Int, data string, recipient ledger.Account) error {
	if err := l.OnlyOwner(caller); err != nil {
		return err
	}
	if len(kinds) != len(amounts) {
		return ledger.Errf(protocol.ErrArrayLengthMismatch, "ids and amounts length mismatch")
	}
	if recipient.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "mint to the zero address")
	}
	next := l.row(recipient)
	for i, k := range kinds {
		if !k.Valid() {
			return ledger.Errf(protocol.ErrInvalidTarget, "unknown resource id %d", int(k))
		}
		sum, err := ledger.AddChecked(valueOr(next[k]), amounts[i])
		if err != nil {
			return err
		}
		next[k] = sum
	}
	ledger.Put(l.j, l.balances, recipient, next)
	l.j.Emit(protocol.Event{
		"type":      EventResourcesAdded,
		"monarch":   caller.String(),
		"recipient": recipient.String(),
		"ids":       kindInts(kinds),
		"amounts":   decs(amounts),
		"data":      data,
	})
	return nil
}

func (l *Laboratory) SafeTransferFrom(caller, from, to ledger.Account, kind Kind, amount *uint256.Int, data string) error {
	return l.SafeBatchTransferFrom(caller, from, to, []Kind{kind}, []*uint256.Int{amount}, data)
}

// SafeBatchTransferFrom moves every listed amount from one holder to another.
// The caller must be the holder or an approved operator; all debits succeed or none do.
func (l *Laboratory) SafeBatchTransferFrom(caller, from, to ledger.Account, kinds []Kind, amounts []*uint256.Int, data string) error {
	if len(kinds) != len(amounts) {
		return ledger.Errf(protocol.ErrArrayLengthMismatch, "ids and amounts length mismatch")
	}
	if to.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "transfer to the zero address")
	}
	if from.IsNull() || (caller != from && !l.IsApprovedForAll(from, caller)) {
		return ledger.Errf(protocol.ErrNotOwnerOrApproved, "caller is not owner nor approved")
	}
	src := l.row(from)
	for i, k := range kinds {
		if !k.Valid() {
			return ledger.Errf(protocol.ErrInvalidTarget, "unknown resource id %d", int(k))
		}
		have := valueOr(src[k])
		if have.Lt(amounts[i]) {
			return ledger.Errf(protocol.ErrInsufficientBalance, "insufficient %s balance: have %s, need %s", k, have.Dec(), amounts[i].Dec())
		}
		src[k] = new(uint256.Int).Sub(have, amounts[i])
	}
	ledger.Put(l.j, l.balances, from, src)
	dst := l.row(to)
	for i, k := range kinds {
		// Per-kind totals never exceed minted supply, which AddChecked bounded.
		dst[k] = new(uint256.Int).Add(valueOr(dst[k]), amounts[i])
	}
	ledger.Put(l.j, l.balances, to, dst)
	l.j.Emit(protocol.Event{
		"type":     EventTransferBatch,
		"operator": caller.String(),
		"from":     from.String(),
		"to":       to.String(),
		"ids":      kindInts(kinds),
		"amounts":  decs(amounts),
		"data":     data,
	})
	return nil
}

// row returns a copy of a's balances, so callers can stage changes.
func (l *Laboratory) row(a ledger.Account) *[NumKinds]*uint256.Int {
	var out [NumKinds]*uint256.Int
	if cur := l.balances[a]; cur != nil {
		out = *cur
	}
	return &out
}

func valueOr(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

func kindInts(ks []Kind) []int {
	out := make([]int, len(ks))
	for i, k := range ks {
		out[i] = int(k)
	}
	return out
}

func decs(vs []*uint256.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Dec()
	}
	return out
}
