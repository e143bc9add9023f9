// Package crypto provides the hashing primitives used by the token factory.
package crypto

import (
	"encoding/binary"

	"github.com/Klingon-tech/tokenfactory/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// HashParts hashes a sequence of byte strings, each prefixed with its
// little-endian u32 length so that part boundaries are unambiguous.
func HashParts(parts ...[]byte) types.Hash {
	h := blake3.New()
	var lenBuf [4]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
