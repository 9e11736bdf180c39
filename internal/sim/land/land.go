// Package land sells numbered parcels for bundles of Laboratory resources.
package land

import (
	"sort"
	"strings"

	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/access"
	"cryptotown.ai/internal/sim/laboratory"
	"cryptotown.ai/internal/sim/ledger"
)

// Combo names an accepted payment combination.
type Combo string

const (
	ComboGold           Combo = "GOLD"
	ComboWood           Combo = "WOOD"
	ComboRock           Combo = "ROCK"
	ComboGoldWoodRock   Combo = "GOLD_WOOD_ROCK"
	ComboSilverWoodRock Combo = "SILVER_WOOD_ROCK"
	ComboGoldSilver     Combo = "GOLD_SILVER"
)

var comboKinds = map[Combo][]laboratory.Kind{
	ComboGold:           {laboratory.Gold},
	ComboWood:           {laboratory.Wood},
	ComboRock:           {laboratory.Rock},
	ComboGoldWoodRock:   {laboratory.Gold, laboratory.Wood, laboratory.Rock},
	ComboSilverWoodRock: {laboratory.Silver, laboratory.Wood, laboratory.Rock},
	ComboGoldSilver:     {laboratory.Gold, laboratory.Silver},
}

func Combos() []Combo {
	out := make([]Combo, 0, len(comboKinds))
	for c := range comboKinds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ParseCombo(s string) (Combo, bool) {
	c := Combo(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := comboKinds[c]
	return c, ok
}

// Kinds lists the resources a combination charges, in price order.
func (c Combo) Kinds() []laboratory.Kind {
	return append([]laboratory.Kind(nil), comboKinds[c]...)
}

// DefaultPrices are per combination, in 10^18 units.
func DefaultPrices() map[Combo][]*uint256.Int {
	u := ledger.Units
	return map[Combo][]*uint256.Int{
		ComboGold:           {u(100)},
		ComboWood:           {u(500)},
		ComboRock:           {u(400)},
		ComboGoldWoodRock:   {u(50), u(150), u(100)},
		ComboSilverWoodRock: {u(200), u(150), u(100)},
		ComboGoldSilver:     {u(40), u(300)},
	}
}

const (
	EventLandBought           = "LAND_BOUGHT"
	EventParcelTransferred    = "PARCEL_TRANSFERRED"
	EventPriceChanged         = "PRICE_CHANGED"
	EventLaboratoryAddressSet = "LABORATORY_ADDRESS_SET"
	EventTempleAddressSet     = "TEMPLE_ADDRESS_SET"
)

// ResourceBook is the part of the Laboratory a purchase needs.
type ResourceBook interface {
	IsApprovedForAll(owner, operator ledger.Account) bool
	SafeBatchTransferFrom(caller, from, to ledger.Account, kinds []laboratory.Kind, amounts []*uint256.Int, data string) error
}

// Directory resolves component addresses to deployed ledgers.
type Directory interface {
	Laboratory(addr ledger.Account) (ResourceBook, bool)
}

type Config struct {
	Owner      ledger.Account
	Self       ledger.Account
	Laboratory ledger.Account
	Temple     ledger.Account
	Prices     map[Combo][]*uint256.Int
}

type Land struct {
	access.Ownable
	j   *ledger.Journal
	dir Directory

	self       ledger.Account
	laboratory ledger.Account
	temple     ledger.Account

	prices map[Combo][]*uint256.Int
	owners map[uint64]ledger.Account
	counts map[ledger.Account]uint64
	lastID uint64
}

func New(cfg Config, dir Directory, j *ledger.Journal) *Land {
	prices := DefaultPrices()
	for c, p := range cfg.Prices {
		if _, ok := comboKinds[c]; ok && len(p) == len(comboKinds[c]) {
			prices[c] = clones(p)
		}
	}
	return &Land{
		Ownable:    access.NewOwnable("land", cfg.Owner, j),
		j:          j,
		dir:        dir,
		self:       cfg.Self,
		laboratory: cfg.Laboratory,
		temple:     cfg.Temple,
		prices:     prices,
		owners:     map[uint64]ledger.Account{},
		counts:     map[ledger.Account]uint64{},
	}
}

func (l *Land) Self() ledger.Account              { return l.self }
func (l *Land) LaboratoryAddress() ledger.Account { return l.laboratory }
func (l *Land) TempleAddress() ledger.Account     { return l.temple }
func (l *Land) LastID() uint64                    { return l.lastID }

func (l *Land) Price(c Combo) []*uint256.Int { return clones(l.prices[c]) }

func (l *Land) OwnerOf(id uint64) (ledger.Account, error) {
	owner, ok := l.owners[id]
	if !ok {
		return ledger.Null, ledger.Errf(protocol.ErrNotFound, "land %d does not exist", id)
	}
	return owner, nil
}

func (l *Land) BalanceOf(a ledger.Account) uint64 { return l.counts[a] }

// Buy charges caller the configured price of combo and mints the next parcel.
func (l *Land) Buy(caller ledger.Account, c Combo) (uint64, error) {
	kinds, ok := comboKinds[c]
	if !ok {
		return 0, ledger.Errf(protocol.ErrBadRequest, "unknown payment combination %q", c)
	}
	if caller.IsNull() {
		return 0, ledger.Errf(protocol.ErrInvalidTarget, "mint to the zero address")
	}
	lab, ok := l.dir.Laboratory(l.laboratory)
	if !ok {
		return 0, ledger.Errf(protocol.ErrInvalidTarget, "no laboratory deployed at %q", l.laboratory)
	}
	if !lab.IsApprovedForAll(caller, l.self) {
		return 0, ledger.Errf(protocol.ErrNotOwnerOrApproved, "land is not approved to spend %s resources", caller)
	}
	if err := lab.SafeBatchTransferFrom(l.self, caller, l.self, kinds, clones(l.prices[c]), ""); err != nil {
		return 0, err
	}

	id := l.lastID + 1
	ledger.Set(l.j, &l.lastID, id)
	ledger.Put(l.j, l.owners, id, caller)
	ledger.Put(l.j, l.counts, caller, l.counts[caller]+1)
	l.j.Emit(protocol.Event{
		"type":    EventLandBought,
		"owner":   caller.String(),
		"land_id": id,
		"combo":   string(c),
	})
	return id, nil
}

func (l *Land) BuyUsingGold(caller ledger.Account) (uint64, error) { return l.Buy(caller, ComboGold) }
func (l *Land) BuyUsingWood(caller ledger.Account) (uint64, error) { return l.Buy(caller, ComboWood) }
func (l *Land) BuyUsingRock(caller ledger.Account) (uint64, error) { return l.Buy(caller, ComboRock) }

func (l *Land) BuyUsingGoldWoodRock(caller ledger.Account) (uint64, error) {
	return l.Buy(caller, ComboGoldWoodRock)
}

func (l *Land) BuyUsingSilverWoodRock(caller ledger.Account) (uint64, error) {
	return l.Buy(caller, ComboSilverWoodRock)
}

func (l *Land) BuyUsingGoldSilver(caller ledger.Account) (uint64, error) {
	return l.Buy(caller, ComboGoldSilver)
}

// TransferParcel hands a parcel from its owner to another account.
func (l *Land) TransferParcel(caller, to ledger.Account, id uint64) error {
	owner, err := l.OwnerOf(id)
	if err != nil {
		return err
	}
	if caller != owner {
		return ledger.Errf(protocol.ErrNotOwnerOrApproved, "caller does not own land %d", id)
	}
	if to.IsNull() {
		return ledger.Errf(protocol.ErrInvalidTarget, "transfer to the zero address")
	}
	if to == owner {
		return ledger.Errf(protocol.ErrInvalidTarget, "land %d already belongs to %s", id, to)
	}
	ledger.Put(l.j, l.owners, id, to)
	ledger.Put(l.j, l.counts, owner, l.counts[owner]-1)
	ledger.Put(l.j, l.counts, to, l.counts[to]+1)
	l.j.Emit(protocol.Event{"type": EventParcelTransferred, "from": owner.String(), "to": to.String(), "land_id": id})
	return nil
}

func clones(vs []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}

// DirectoryFunc adapts a lookup function to Directory.
type DirectoryFunc func(addr ledger.Account) (ResourceBook, bool)

func (f DirectoryFunc) Laboratory(addr ledger.Account) (ResourceBook, bool) { return f(addr) }
