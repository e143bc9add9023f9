package token

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// ErrMalformedRecord is returned when decoding fails.
var ErrMalformedRecord = errors.New("malformed token record encoding")

// Encode serializes a record into its canonical binary form.
//
// Layout (all integers little-endian):
//
//	string  token_id        [u32 len][bytes]
//	string  owner_id
//	u128    total_supply    [16 bytes]
//	string  metadata.spec
//	string  metadata.name
//	string  metadata.symbol
//	option  metadata.description   [0] or [1][string]
//	option  metadata.icon
//	option  metadata.reference
//	option  metadata.reference_hash [0] or [1][u32 len][bytes]
//	u8      metadata.decimals
//
// The encoded length is what the cost estimator charges for.
func Encode(r *Record) []byte {
	buf := make([]byte, 0, EncodedSize(r))
	buf = appendString(buf, r.TokenID)
	buf = appendString(buf, r.OwnerID)
	buf = append(buf, r.TotalSupply.Bytes()...)

	m := &r.Metadata
	buf = appendString(buf, m.Spec)
	buf = appendString(buf, m.Name)
	buf = appendString(buf, m.Symbol)
	buf = appendOptString(buf, m.Description)
	buf = appendOptString(buf, m.Icon)
	buf = appendOptString(buf, m.Reference)
	if m.ReferenceHash == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = appendBytes(buf, m.ReferenceHash)
	}
	return append(buf, m.Decimals)
}

// EncodedSize returns len(Encode(r)) without encoding.
func EncodedSize(r *Record) int {
	m := &r.Metadata
	n := 4 + len(r.TokenID) + 4 + len(r.OwnerID) + types.BalanceSize
	n += 4 + len(m.Spec) + 4 + len(m.Name) + 4 + len(m.Symbol)
	for _, s := range []*string{m.Description, m.Icon, m.Reference} {
		n++
		if s != nil {
			n += 4 + len(*s)
		}
	}
	n++
	if m.ReferenceHash != nil {
		n += 4 + len(m.ReferenceHash)
	}
	return n + 1
}

// Decode parses a record produced by Encode. Trailing bytes are an error.
func Decode(data []byte) (*Record, error) {
	d := decoder{buf: data}
	r := &Record{}
	r.TokenID = d.string()
	r.OwnerID = d.string()
	r.TotalSupply = d.balance()

	m := &r.Metadata
	m.Spec = d.string()
	m.Name = d.string()
	m.Symbol = d.string()
	m.Description = d.optString()
	m.Icon = d.optString()
	m.Reference = d.optString()
	if d.flag() {
		m.ReferenceHash = d.bytes()
	}
	m.Decimals = d.byte()

	if d.err != nil {
		return nil, d.err
	}
	if d.off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedRecord, len(data)-d.off)
	}
	return r, nil
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendOptString(buf []byte, s *string) []byte {
	if s == nil {
		return append(buf, 0)
	}
	return appendString(append(buf, 1), *s)
}

// decoder reads sequential fields and records the first error.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.off < n {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrMalformedRecord, n, d.off, len(d.buf)-d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) byte() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) flag() bool {
	switch v := d.byte(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		if d.err == nil {
			d.err = fmt.Errorf("%w: invalid option tag %d", ErrMalformedRecord, v)
		}
		return false
	}
}

func (d *decoder) bytes() []byte {
	lb := d.take(4)
	if lb == nil {
		return nil
	}
	n := binary.LittleEndian.Uint32(lb)
	if uint64(n) > uint64(len(d.buf)-d.off) {
		d.take(len(d.buf) - d.off + 1)
		return nil
	}
	b := d.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (d *decoder) string() string {
	return string(d.bytes())
}

func (d *decoder) optString() *string {
	if !d.flag() {
		return nil
	}
	s := d.string()
	if d.err != nil {
		return nil
	}
	return &s
}

func (d *decoder) balance() types.Balance {
	b := d.take(types.BalanceSize)
	if b == nil {
		return types.Balance{}
	}
	v, err := types.BalanceFromBytes(b)
	if err != nil {
		d.err = err
	}
	return v
}
