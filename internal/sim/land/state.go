package land

import (
	"sort"

	"github.com/holiman/uint256"

	"cryptotown.ai/internal/sim/ledger"
)

type State struct {
	Owner      string              `json:"owner"`
	Laboratory string              `json:"laboratory"`
	Temple     string              `json:"temple,omitempty"`
	Prices     map[string][]string `json:"prices"`
	LastID     uint64              `json:"last_id"`
	Parcels    []ParcelState       `json:"parcels,omitempty"`
}

type ParcelState struct {
	ID    uint64 `json:"id"`
	Owner string `json:"owner"`
}

func (l *Land) Export() State {
	s := State{
		Owner:      l.Owner().String(),
		Laboratory: l.laboratory.String(),
		Temple:     l.temple.String(),
		Prices:     map[string][]string{},
		LastID:     l.lastID,
	}
	for c, p := range l.prices {
		s.Prices[string(c)] = decs(p)
	}
	for id, owner := range l.owners {
		s.Parcels = append(s.Parcels, ParcelState{ID: id, Owner: owner.String()})
	}
	sort.Slice(s.Parcels, func(i, j int) bool { return s.Parcels[i].ID < s.Parcels[j].ID })
	return s
}

// Import replaces the marketplace contents with s. It bypasses the journal.
func (l *Land) Import(s State) error {
	prices := DefaultPrices()
	for name, vals := range s.Prices {
		c, ok := ParseCombo(name)
		if !ok || len(vals) != len(comboKinds[c]) {
			continue
		}
		p := make([]*uint256.Int, len(vals))
		for i, v := range vals {
			n, err := ledger.ParseAmount(v)
			if err != nil {
				return err
			}
			p[i] = n
		}
		prices[c] = p
	}
	owners := map[uint64]ledger.Account{}
	counts := map[ledger.Account]uint64{}
	for _, p := range s.Parcels {
		owner := ledger.Account(p.Owner)
		owners[p.ID] = owner
		counts[owner]++
	}
	l.Restore(ledger.Account(s.Owner))
	l.laboratory = ledger.Account(s.Laboratory)
	l.temple = ledger.Account(s.Temple)
	l.prices = prices
	l.owners = owners
	l.counts = counts
	l.lastID = s.LastID
	return nil
}
