// Package pie implements the town currency: an ERC-20 style balance book
// whose supply is baked and destroyed by a small brigade of Bakers, each
// limited to a combined bake+destroy volume per rolling window.
package pie

import (
	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/access"
	"cryptotown.ai/internal/sim/ledger"
)

const (
	Name     = "Pie"
	Symbol   = "PIE"
	Decimals = 18

	DefaultWindowSeconds = 3600
)

// DefaultRateCap is 4 Pies (4e18 units) per window.
var DefaultRateCap = ledger.Units(4)

const (
	EventPiesBaked     = "PIES_BAKED"
	EventPiesDestroyed = "PIES_DESTROYED"
	EventKitchenOpened = "KITCHEN_OPENED"
	EventKitchenClosed = "KITCHEN_CLOSED"
	EventTransfer      = "TRANSFER"
	EventApproval      = "APPROVAL"
)

type Config struct {
	Chef          ledger.Account
	RateCap       *uint256.Int
	WindowSeconds int64
}

// RateWindow tracks one Baker's volume since Start.
type RateWindow struct {
	Start  int64
	Volume *uint256.Int
}

type Ledger struct {
	brigade access.Brigade
	j       *ledger.Journal

	rateCap       *uint256.Int
	windowSeconds int64

	closed     bool
	supply     *uint256.Int
	balances   map[ledger.Account]*uint256.Int
	allowances map[ledger.Account]map[ledger.Account]*uint256.Int
	windows    map[ledger.Account]RateWindow
}

func New(cfg Config, j *ledger.Journal) *Ledger {
	if cfg.RateCap == nil {
		cfg.RateCap = DefaultRateCap
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = DefaultWindowSeconds
	}
	return &Ledger{
		brigade:       access.NewBrigade(cfg.Chef, j),
		j:             j,
		rateCap:       cfg.RateCap.Clone(),
		windowSeconds: cfg.WindowSeconds,
		supply:        new(uint256.Int),
		balances:      map[ledger.Account]*uint256.Int{},
		allowances:    map[ledger.Account]map[ledger.Account]*uint256.Int{},
		windows:       map[ledger.Account]RateWindow{},
	}
}

// Roles.

func (l *Ledger) Chef() ledger.Account          { return l.brigade.Chef() }
func (l *Ledger) Bakers() []ledger.Account      { return l.brigade.Bakers() }
func (l *Ledger) IsChef(a ledger.Account) bool  { return l.brigade.IsChef(a) }
func (l *Ledger) IsBaker(a ledger.Account) bool { return l.brigade.IsBaker(a) }
func (l *Ledger) AddBaker(caller, a ledger.Account) error {
	return l.brigade.AddBaker(caller, a)
}
func (l *Ledger) RemoveBaker(caller, a ledger.Account) error {
	return l.brigade.RemoveBaker(caller, a)
}
func (l *Ledger) ReassignChef(caller, next ledger.Account) error {
	return l.brigade.ReassignChef(caller, next)
}

// Kitchen.

func (l *Ledger) IsKitchenClosed() bool { return l.closed }

func (l *Ledger) OpenKitchen(caller ledger.Account) error {
	if err := l.brigade.OnlyChef(caller); err != nil {
		return err
	}
	ledger.Set(l.j, &l.closed, false)
	l.j.Emit(protocol.Event{"type": EventKitchenOpened, "chef": caller.String()})
	return nil
}

func (l *Ledger) CloseKitchen(caller ledger.Account) error {
	if err := l.brigade.OnlyChef(caller); err != nil {
		return err
	}
	ledger.Set(l.j, &l.closed, true)
	l.j.Emit(protocol.Event{"type": EventKitchenClosed, "chef": caller.String()})
	return nil
}

// Supply changes.

// BakePies mints amount to the calling Baker.
func (l *Ledger) BakePies(caller ledger.Account, amount *uint256.Int, now int64) error {
	if err := l.brigade.OnlyBaker(caller); err != nil {
		return err
	}
	if l.closed {
		return ledger.Errf(protocol.ErrKitchenClosed, "kitchen must be opened")
	}
	w, err := l.nextWindow(caller, amount, now)
	if err != nil {
		return err
	}
	supply, err := ledger.AddChecked(l.supply, amount)
	if err != nil {
		return err
	}
	ledger.Put(l.j, l.windows, caller, w)
	ledger.Set(l.j, &l.supply, supply)
	ledger.Put(l.j, l.balances, caller, new(uint256.Int).Add(ledger.Get(l.balances, caller), amount))
	l.j.Emit(protocol.Event{"type": EventPiesBaked, "baker": caller.String(), "amount": amount.Dec()})
	return nil
}

// DestroyPies burns amount from the calling Baker. The kitchen gate does not
// apply; the rate window is checked before the balance.
func (l *Ledger) DestroyPies(caller ledger.Account, amount *uint256.Int, now int64) error {
	if err := l.brigade.OnlyBaker(caller); err != nil {
		return err
	}
	w, err := l.nextWindow(caller, amount, now)
	if err != nil {
		return err
	}
	bal := ledger.Get(l.balances, caller)
	if bal.Lt(amount) {
		return ledger.Errf(protocol.ErrInsufficientBalance, "burn amount %s exceeds balance %s", amount.Dec(), bal.Dec())
	}
	ledger.Put(l.j, l.windows, caller, w)
	ledger.Set(l.j, &l.supply, new(uint256.Int).Sub(l.supply, amount))
	ledger.Put(l.j, l.balances, caller, new(uint256.Int).Sub(bal, amount))
	l.j.Emit(protocol.Event{"type": EventPiesDestroyed, "baker": caller.String(), "amount": amount.Dec()})
	return nil
}

// nextWindow returns the caller's window after charging amount, without storing it.
func (l *Ledger) nextWindow(baker ledger.Account, amount *uint256.Int, now int64) (RateWindow, error) {
	w, ok := l.windows[baker]
	if !ok || now >= w.Start+l.windowSeconds {
		w = RateWindow{Start: now, Volume: new(uint256.Int)}
	}
	vol, overflow := new(uint256.Int).AddOverflow(w.Volume, amount)
	if overflow || vol.Gt(l.rateCap) {
		return w, ledger.Errf(protocol.ErrRateLimit, "you can bake or destroy only %s Pies in %ds", l.rateCap.Dec(), l.windowSeconds)
	}
	return RateWindow{Start: w.Start, Volume: vol}, nil
}

// Window reports the Baker's active window as seen at now.
func (l *Ledger) Window(baker ledger.Account, now int64) RateWindow {
	w, ok := l.windows[baker]
	if !ok || now >= w.Start+l.windowSeconds {
		return RateWindow{Start: now, Volume: new(uint256.Int)}
	}
	return RateWindow{Start: w.Start, Volume: w.Volume.Clone()}
}

func (l *Ledger) RateCap() *uint256.Int { return l.rateCap.Clone() }
func (l *Ledger) WindowSeconds() int64  { return l.windowSeconds }
