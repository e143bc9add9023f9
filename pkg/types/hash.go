// Package types defines core primitive types shared by the token factory.
package types

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash is a 256-bit digest. Its text form is base58, matching how code
// hashes are displayed by the host chain.
type Hash [HashSize]byte

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the base58-encoded hash.
func (h Hash) String() string {
	return base58.Encode(h[:])
}


// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the hash as a base58 string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a base58 string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a base58 string into a Hash.
func ParseHash(s string) (Hash, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid base58 hash: %w", err)
	}
	return hashFromSlice(b)
}

func hashFromSlice(b []byte) (Hash, error) {
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
