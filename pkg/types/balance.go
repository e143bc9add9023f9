package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"lukechampine.com/uint128"
)

// BalanceSize is the encoded size of a Balance in bytes.
const BalanceSize = 16

// ErrBalanceOverflow is returned when an arithmetic result does not fit
// in 128 bits.
var ErrBalanceOverflow = errors.New("balance overflows 128 bits")

// ErrBalanceUnderflow is returned when a subtraction would go below zero.
var ErrBalanceUnderflow = errors.New("balance underflow")

// Balance is an unsigned 128-bit quantity of native value units or token
// units. It encodes to JSON as a decimal string, since the values
// routinely exceed what JSON numbers carry exactly.
type Balance struct {
	v uint128.Uint128
}

// ZeroBalance is the zero amount.
var ZeroBalance = Balance{}

// NewBalance returns a Balance holding v.
func NewBalance(v uint64) Balance {
	return Balance{v: uint128.From64(v)}
}

// ParseBalance parses a base-10 string.
func ParseBalance(s string) (Balance, error) {
	if s == "" {
		return Balance{}, fmt.Errorf("parse balance: empty string")
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Balance{}, fmt.Errorf("parse balance %q: not a base-10 integer", s)
	}
	if i.Sign() < 0 {
		return Balance{}, fmt.Errorf("parse balance %q: negative value", s)
	}
	if i.BitLen() > 128 {
		return Balance{}, fmt.Errorf("parse balance %q: %w", s, ErrBalanceOverflow)
	}
	return Balance{v: uint128.FromBig(i)}, nil
}

// MustParseBalance is like ParseBalance but panics on error. Intended for
// constants and tests.
func MustParseBalance(s string) Balance {
	b, err := ParseBalance(s)
	if err != nil {
		panic(err)
	}
	return b
}

// BalanceFromBytes decodes a 16-byte little-endian value.
func BalanceFromBytes(b []byte) (Balance, error) {
	if len(b) != BalanceSize {
		return Balance{}, fmt.Errorf("balance must be %d bytes, got %d", BalanceSize, len(b))
	}
	return Balance{v: uint128.FromBytes(b)}, nil
}

// Bytes returns the 16-byte little-endian encoding.
func (b Balance) Bytes() []byte {
	out := make([]byte, BalanceSize)
	b.v.PutBytes(out)
	return out
}

// IsZero returns true for the zero amount.
func (b Balance) IsZero() bool {
	return b.v.IsZero()
}

// Cmp compares b and o and returns -1, 0 or +1.
func (b Balance) Cmp(o Balance) int {
	return b.v.Cmp(o.v)
}

// Equal reports whether b == o.
func (b Balance) Equal(o Balance) bool {
	return b.v.Cmp(o.v) == 0
}

// Add returns b + o, or ErrBalanceOverflow.
func (b Balance) Add(o Balance) (Balance, error) {
	if uint128.Max.Sub(b.v).Cmp(o.v) < 0 {
		return Balance{}, ErrBalanceOverflow
	}
	return Balance{v: b.v.Add(o.v)}, nil
}

// Sub returns b - o, or ErrBalanceUnderflow if o > b.
func (b Balance) Sub(o Balance) (Balance, error) {
	if b.v.Cmp(o.v) < 0 {
		return Balance{}, ErrBalanceUnderflow
	}
	return Balance{v: b.v.Sub(o.v)}, nil
}

// SaturatingSub returns b - o, clamped at zero.
func (b Balance) SaturatingSub(o Balance) Balance {
	if b.v.Cmp(o.v) <= 0 {
		return Balance{}
	}
	return Balance{v: b.v.Sub(o.v)}
}

// MulUint64 returns b * n, or ErrBalanceOverflow.
func (b Balance) MulUint64(n uint64) (Balance, error) {
	prod := new(big.Int).Mul(b.v.Big(), new(big.Int).SetUint64(n))
	if prod.BitLen() > 128 {
		return Balance{}, ErrBalanceOverflow
	}
	return Balance{v: uint128.FromBig(prod)}, nil
}

// Mul returns b * o, or ErrBalanceOverflow.
func (b Balance) Mul(o Balance) (Balance, error) {
	prod := new(big.Int).Mul(b.v.Big(), o.v.Big())
	if prod.BitLen() > 128 {
		return Balance{}, ErrBalanceOverflow
	}
	return Balance{v: uint128.FromBig(prod)}, nil
}

// String returns the base-10 representation.
func (b Balance) String() string {
	return b.v.String()
}

// MarshalJSON encodes the balance as a decimal string.
func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.v.String())
}

// UnmarshalJSON accepts a decimal string. Plain JSON integers are also
// accepted for convenience.
func (b *Balance) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return fmt.Errorf("balance must be a decimal string: %w", err)
		}
		s = n.String()
	}
	parsed, err := ParseBalance(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
