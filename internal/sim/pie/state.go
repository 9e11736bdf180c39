package pie

import (
	"sort"

	"github.com/holiman/uint256"

	"cryptotown.ai/internal/sim/ledger"
)

// State is the serializable form of the ledger. Amounts are decimal strings.
type State struct {
	Chef          string            `json:"chef"`
	Bakers        []string          `json:"bakers,omitempty"`
	Closed        bool              `json:"closed"`
	RateCap       string            `json:"rate_cap"`
	WindowSeconds int64             `json:"window_seconds"`
	Supply        string            `json:"supply"`
	Balances      map[string]string `json:"balances,omitempty"`
	Allowances    []AllowanceState  `json:"allowances,omitempty"`
	Windows       []WindowState     `json:"windows,omitempty"`
}

type AllowanceState struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type WindowState struct {
	Baker  string `json:"baker"`
	Start  int64  `json:"start"`
	Volume string `json:"volume"`
}

func (l *Ledger) Export() State {
	s := State{
		Chef:          l.brigade.Chef().String(),
		Closed:        l.closed,
		RateCap:       l.rateCap.Dec(),
		WindowSeconds: l.windowSeconds,
		Supply:        l.supply.Dec(),
		Balances:      map[string]string{},
	}
	for _, b := range l.brigade.Bakers() {
		s.Bakers = append(s.Bakers, b.String())
	}
	for a, v := range l.balances {
		if !v.IsZero() {
			s.Balances[a.String()] = v.Dec()
		}
	}
	for owner, m := range l.allowances {
		for spender, v := range m {
			if v.IsZero() {
				continue
			}
			s.Allowances = append(s.Allowances, AllowanceState{Owner: owner.String(), Spender: spender.String(), Amount: v.Dec()})
		}
	}
	sort.Slice(s.Allowances, func(i, j int) bool {
		if s.Allowances[i].Owner != s.Allowances[j].Owner {
			return s.Allowances[i].Owner < s.Allowances[j].Owner
		}
		return s.Allowances[i].Spender < s.Allowances[j].Spender
	})
	for b, w := range l.windows {
		s.Windows = append(s.Windows, WindowState{Baker: b.String(), Start: w.Start, Volume: w.Volume.Dec()})
	}
	sort.Slice(s.Windows, func(i, j int) bool { return s.Windows[i].Baker < s.Windows[j].Baker })
	return s
}

// Import replaces the ledger contents with s. It bypasses the journal.
func (l *Ledger) Import(s State) error {
	parse := func(v string) (*uint256.Int, error) { return ledger.ParseAmount(v) }

	rateCap, err := parse(s.RateCap)
	if err != nil {
		return err
	}
	supply, err := parse(s.Supply)
	if err != nil {
		return err
	}
	balances := map[ledger.Account]*uint256.Int{}
	for a, v := range s.Balances {
		n, err := parse(v)
		if err != nil {
			return err
		}
		balances[ledger.Account(a)] = n
	}
	allowances := map[ledger.Account]map[ledger.Account]*uint256.Int{}
	for _, al := range s.Allowances {
		n, err := parse(al.Amount)
		if err != nil {
			return err
		}
		owner := ledger.Account(al.Owner)
		if allowances[owner] == nil {
			allowances[owner] = map[ledger.Account]*uint256.Int{}
		}
		allowances[owner][ledger.Account(al.Spender)] = n
	}
	windows := map[ledger.Account]RateWindow{}
	for _, w := range s.Windows {
		n, err := parse(w.Volume)
		if err != nil {
			return err
		}
		windows[ledger.Account(w.Baker)] = RateWindow{Start: w.Start, Volume: n}
	}
	bakers := make([]ledger.Account, 0, len(s.Bakers))
	for _, b := range s.Bakers {
		bakers = append(bakers, ledger.Account(b))
	}

	l.brigade.Restore(ledger.Account(s.Chef), bakers)
	l.closed = s.Closed
	if !rateCap.IsZero() {
		l.rateCap = rateCap
	}
	if s.WindowSeconds > 0 {
		l.windowSeconds = s.WindowSeconds
	}
	l.supply = supply
	l.balances = balances
	l.allowances = allowances
	l.windows = windows
	return nil
}
