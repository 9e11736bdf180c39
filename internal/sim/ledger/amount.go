package ledger

import (
	"strings"

	"github.com/holiman/uint256"

	"cryptotown.ai/internal/protocol"
)

// Ether is 10^18, the scale every amount in the town is expressed in.
var Ether = uint256.NewInt(1_000_000_000_000_000_000)

// ParseAmount parses a non-negative decimal amount.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, Errf(protocol.ErrBadRequest, "bad amount %q: %v", s, err)
	}
	return v, nil
}

func MustAmount(s string) *uint256.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Units returns n * 10^18.
func Units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), Ether)
}

// AddChecked returns a+b, or E_OVERFLOW.
func AddChecked(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, Errf(protocol.ErrOverflow, "%s + %s overflows", a.Dec(), b.Dec())
	}
	return sum, nil
}

// Get reads m[k], treating a missing key as zero. The result must not be mutated.
func Get[K comparable](m map[K]*uint256.Int, k K) *uint256.Int {
	if v, ok := m[k]; ok && v != nil {
		return v
	}
	return zero
}

var zero = new(uint256.Int)
