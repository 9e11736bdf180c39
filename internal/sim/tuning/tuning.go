package tuning

import (
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"cryptotown.ai/internal/protocol"
	"cryptotown.ai/internal/sim/laboratory"
	"cryptotown.ai/internal/sim/land"
	"cryptotown.ai/internal/sim/ledger"
	"cryptotown.ai/internal/sim/pie"
	"cryptotown.ai/internal/sim/temple"
	"cryptotown.ai/internal/sim/town"
)

// Tuning is the economic configuration of a fresh town. Amounts are decimal
// strings in base units (10^18 per whole token) since they overflow YAML ints.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	SnapshotEveryTx uint64 `yaml:"snapshot_every_tx"`

	Roles Roles `yaml:"roles"`

	Pie struct {
		RateCap       string `yaml:"rate_cap"`
		WindowSeconds int64  `yaml:"window_seconds"`
	} `yaml:"pie"`

	Temple struct {
		Threshold string `yaml:"threshold"`
	} `yaml:"temple"`

	// Genesis is the Monarch's initial Laboratory balance per kind name.
	Genesis map[string]string `yaml:"genesis"`

	// Prices per combination, in the combination's kind order.
	Prices map[string][]string `yaml:"prices"`
}

type Roles struct {
	Chef        string `yaml:"chef"`
	Monarch     string `yaml:"monarch"`
	LandOwner   string `yaml:"land_owner"`
	TempleOwner string `yaml:"temple_owner"`
}

func Defaults() Tuning {
	var t Tuning
	t.ProtocolVersion = protocol.Version
	t.SnapshotEveryTx = 1000
	t.Roles = Roles{Chef: "chef", Monarch: "monarch", LandOwner: "mayor", TempleOwner: "priest"}
	t.Pie.RateCap = pie.DefaultRateCap.Dec()
	t.Pie.WindowSeconds = pie.DefaultWindowSeconds
	t.Temple.Threshold = temple.DefaultThreshold.Dec()
	t.Genesis = map[string]string{}
	for k, v := range laboratory.DefaultGenesis() {
		t.Genesis[k.String()] = v.Dec()
	}
	t.Prices = map[string][]string{}
	for c, p := range land.DefaultPrices() {
		vals := make([]string, len(p))
		for i, v := range p {
			vals[i] = v.Dec()
		}
		t.Prices[string(c)] = vals
	}
	return t
}

// Load reads path over Defaults, so a partial file only overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if _, err := t.TownConfig("check"); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// TownConfig converts the tuning into a town.Config.
func (t Tuning) TownConfig(id string) (town.Config, error) {
	cfg := town.Config{
		ID:            id,
		Chef:          ledger.ParseAccount(t.Roles.Chef),
		Monarch:       ledger.ParseAccount(t.Roles.Monarch),
		LandOwner:     ledger.ParseAccount(t.Roles.LandOwner),
		TempleOwner:   ledger.ParseAccount(t.Roles.TempleOwner),
		WindowSeconds: t.Pie.WindowSeconds,
		SnapshotEvery: t.SnapshotEveryTx,
	}
	for _, r := range []struct {
		name string
		acct ledger.Account
	}{
		{"chef", cfg.Chef}, {"monarch", cfg.Monarch},
		{"land_owner", cfg.LandOwner}, {"temple_owner", cfg.TempleOwner},
	} {
		if r.acct.IsNull() {
			return cfg, fmt.Errorf("roles.%s: missing account", r.name)
		}
		if town.IsComponent(r.acct) {
			return cfg, fmt.Errorf("roles.%s: %s is a component account", r.name, r.acct)
		}
	}
	var err error
	if cfg.RateCap, err = optAmount("pie.rate_cap", t.Pie.RateCap); err != nil {
		return cfg, err
	}
	if cfg.Threshold, err = optAmount("temple.threshold", t.Temple.Threshold); err != nil {
		return cfg, err
	}
	if cfg.RateCap != nil && cfg.RateCap.IsZero() {
		return cfg, fmt.Errorf("pie.rate_cap must be positive")
	}

	cfg.Genesis = map[laboratory.Kind]*uint256.Int{}
	for name, s := range t.Genesis {
		k, ok := laboratory.ParseKind(name)
		if !ok {
			return cfg, fmt.Errorf("genesis: unknown kind %q", name)
		}
		v, err := ledger.ParseAmount(s)
		if err != nil {
			return cfg, fmt.Errorf("genesis.%s: %w", name, err)
		}
		cfg.Genesis[k] = v
	}

	cfg.Prices = map[land.Combo][]*uint256.Int{}
	for name, ss := range t.Prices {
		c, ok := land.ParseCombo(name)
		if !ok {
			return cfg, fmt.Errorf("prices: unknown combination %q", name)
		}
		if len(ss) != len(c.Kinds()) {
			return cfg, fmt.Errorf("prices.%s: want %d values, got %d", name, len(c.Kinds()), len(ss))
		}
		vals := make([]*uint256.Int, len(ss))
		for i, s := range ss {
			v, err := ledger.ParseAmount(s)
			if err != nil {
				return cfg, fmt.Errorf("prices.%s: %w", name, err)
			}
			if v.IsZero() {
				return cfg, fmt.Errorf("prices.%s: zero price", name)
			}
			vals[i] = v
		}
		cfg.Prices[c] = vals
	}
	return cfg, nil
}

func optAmount(field, s string) (*uint256.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := ledger.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}
