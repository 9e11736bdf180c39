package temple

import "cryptotown.ai/internal/sim/ledger"

type State struct {
	Owner      string   `json:"owner"`
	Pie        string   `json:"pie"`
	Threshold  string   `json:"threshold"`
	Destitutes []string `json:"destitutes,omitempty"`
}

func (t *Temple) Export() State {
	s := State{Owner: t.Owner().String(), Pie: t.pie.String(), Threshold: t.threshold.Dec()}
	for _, d := range t.destitutes {
		s.Destitutes = append(s.Destitutes, d.String())
	}
	return s
}

// Import replaces the temple contents with s. It bypasses the journal.
func (t *Temple) Import(s State) error {
	threshold, err := ledger.ParseAmount(s.Threshold)
	if err != nil {
		return err
	}
	members := make([]ledger.Account, 0, len(s.Destitutes))
	for _, d := range s.Destitutes {
		members = append(members, ledger.Account(d))
	}
	t.Restore(ledger.Account(s.Owner))
	t.pie = ledger.Account(s.Pie)
	if !threshold.IsZero() {
		t.threshold = threshold
	}
	t.destitutes = members
	return nil
}
