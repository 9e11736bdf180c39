package land

import (
	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/ledger"
)

// SetPrice replaces every component of a combination's price, or none.
func (l *Land) SetPrice(caller ledger.Account, c Combo, prices []*uint256.Int) error {
	if err := l.OnlyOwner(caller); err != nil {
		return err
	}
	kinds, ok := comboKinds[c]
	if !ok {
		return ledger.Errf(protocol.ErrBadRequest, "unknown payment combination %q", c)
	}
	if len(prices) != len(kinds) {
		return ledger.Errf(protocol.ErrArrayLengthMismatch, "%s takes %d prices, got %d", c, len(kinds), len(prices))
	}
	for i, p := range prices {
		if p == nil || p.IsZero() {
			return ledger.Errf(protocol.ErrInvalidPrice, "price in %s must be greater than zero", kinds[i])
		}
	}
	ledger.Put(l.j, l.prices, c, clones(prices))
	l.j.Emit(protocol.Event{"type": EventPriceChanged, "combo": string(c), "prices": decs(prices)})
	return nil
}

func (l *Land) SetPriceInGold(caller ledger.Account, gold *uint256.Int) error {
	return l.SetPrice(caller, ComboGold, []*uint256.Int{gold})
}

func (l *Land) SetPriceInWood(caller ledger.Account, wood *uint256.Int) error {
	return l.SetPrice(caller, ComboWood, []*uint256.Int{wood})
}

func (l *Land) SetPriceInRock(caller ledger.Account, rock *uint256.Int) error {
	return l.SetPrice(caller, ComboRock, []*uint256.Int{rock})
}

func (l *Land) SetPriceInGoldWoodRock(caller ledger.Account, gold, wood, rock *uint256.Int) error {
	return l.SetPrice(caller, ComboGoldWoodRock, []*uint256.Int{gold, wood, rock})
}

func (l *Land) SetPriceInSilverWoodRock(caller ledger.Account, silver, wood, rock *uint256.Int) error {
	return l.SetPrice(caller, ComboSilverWoodRock, []*uint256.Int{silver, wood, rock})
}

func (l *Land) SetPriceInGoldSilver(caller ledger.Account, gold, silver *uint256.Int) error {
	return l.SetPrice(caller, ComboGoldSilver, []*uint256.Int{gold, silver})
}

func (l *Land) SetLaboratoryAddress(caller, addr ledger.Account) error {
	if err := l.checkAddress(caller, "laboratory", l.laboratory, addr); err != nil {
		return err
	}
	ledger.Set(l.j, &l.laboratory, addr)
	l.j.Emit(protocol.Event{"type": EventLaboratoryAddressSet, "address": addr.String()})
	return nil
}

func (l *Land) SetTempleAddress(caller, addr ledger.Account) error {
	if err := l.checkAddress(caller, "temple", l.temple, addr); err != nil {
		return err
	}
	ledger.Set(l.j, &l.temple, addr)
	l.j.Emit(protocol.Event{"type": EventTempleAddressSet, "address": addr.String()})
	return nil
}

func (l *Land) checkAddress(caller ledger.Account, what string, cur, next ledger.Account) error {
	if err := l.OnlyOwner(caller); err != nil {
		return err
	}
	switch {
	case next.IsNull():
		return ledger.Errf(protocol.ErrInvalidTarget, "%s can not be zero address", what)
	case next == l.Owner():
		return ledger.Errf(protocol.ErrInvalidTarget, "%s can not be the same as owner", what)
	case next == cur:
		return ledger.Errf(protocol.ErrInvalidTarget, "%s can not be the same as old one", what)
	}
	return nil
}

func decs(vs []*uint256.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Dec()
	}
	return out
}
