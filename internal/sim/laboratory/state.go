package laboratory

import (
	"sort"

	"github.com/holiman/uint256"

	"cryptotown.ai/internal/sim/ledger"
)

type State struct {
	Monarch   string              `json:"monarch"`
	Balances  map[string][]string `json:"balances,omitempty"`
	Approvals []ApprovalState     `json:"approvals,omitempty"`
}

type ApprovalState struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
}

func (l *Laboratory) Export() State {
	s := State{Monarch: l.Owner().String(), Balances: map[string][]string{}}
	for a, row := range l.balances {
		vals := make([]string, NumKinds)
		nonzero := false
		for k := range row {
			v := valueOr(row[k])
			vals[k] = v.Dec()
			nonzero = nonzero || !v.IsZero()
		}
		if nonzero {
			s.Balances[a.String()] = vals
		}
	}
	for owner, m := range l.approvals {
		for op, ok := range m {
			if ok {
				s.Approvals = append(s.Approvals, ApprovalState{Owner: owner.String(), Operator: op.String()})
			}
		}
	}
	sort.Slice(s.Approvals, func(i, j int) bool {
		if s.Approvals[i].Owner != s.Approvals[j].Owner {
			return s.Approvals[i].Owner < s.Approvals[j].Owner
		}
		return s.Approvals[i].Operator < s.Approvals[j].Operator
	})
	return s
}

// Import replaces the ledger contents with s. It bypasses the journal.
func (l *Laboratory) Import(s State) error {
	balances := map[ledger.Account]*[NumKinds]*uint256.Int{}
	for a, vals := range s.Balances {
		var row [NumKinds]*uint256.Int
		for k := 0; k < NumKinds && k < len(vals); k++ {
			n, err := ledger.ParseAmount(vals[k])
			if err != nil {
				return err
			}
			row[k] = n
		}
		balances[ledger.Account(a)] = &row
	}
	approvals := map[ledger.Account]map[ledger.Account]bool{}
	for _, ap := range s.Approvals {
		owner := ledger.Account(ap.Owner)
		if approvals[owner] == nil {
			approvals[owner] = map[ledger.Account]bool{}
		}
		approvals[owner][ledger.Account(ap.Operator)] = true
	}
	l.Restore(ledger.Account(s.Monarch))
	l.balances = balances
	l.approvals = approvals
	return nil
}
