package token

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Klingon-tech/tokenfactory/internal/state"
	"github.com/Klingon-tech/tokenfactory/internal/storage"
)

// ErrDuplicateTokenID is returned when registering an id that already exists.
var ErrDuplicateTokenID = errors.New("token id already exists")

// Registry key layout:
//
//	t/n               -> u64 BE token count
//	t/i/<token_id>    -> u64 BE insertion index
//	t/v/<u64 BE idx>  -> Encode(record)
var (
	keyCount     = []byte("t/n")
	prefixIndex  = []byte("t/i/")
	prefixRecord = []byte("t/v/")
)

// Register appends a record. It fails with ErrDuplicateTokenID if the
// token id is already registered, leaving w unchanged.
func Register(w state.Writer, r *Record) error {
	exists, err := w.Has(indexKey(r.TokenID))
	if err != nil {
		return fmt.Errorf("registry lookup: %w", err)
	}
	if exists {
		return fmt.Errorf("token %q: %w", r.TokenID, ErrDuplicateTokenID)
	}

	n, err := Count(w)
	if err != nil {
		return err
	}
	if err := w.Put(recordKey(n), Encode(r)); err != nil {
		return fmt.Errorf("registry put record: %w", err)
	}
	if err := w.Put(indexKey(r.TokenID), u64(n)); err != nil {
		return fmt.Errorf("registry put index: %w", err)
	}
	if err := w.Put(keyCount, u64(n+1)); err != nil {
		return fmt.Errorf("registry put count: %w", err)
	}
	return nil
}

// Count returns the number of registered tokens.
func Count(r state.Reader) (uint64, error) {
	data, err := r.Get(keyCount)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("registry count: %w", err)
	}
	return readU64(data, "count")
}

// Lookup returns the record for a token id. found is false if the id is
// not registered.
func Lookup(r state.Reader, tokenID string) (rec *Record, found bool, err error) {
	data, err := r.Get(indexKey(tokenID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("registry index: %w", err)
	}
	idx, err := readU64(data, "index")
	if err != nil {
		return nil, false, err
	}
	rec, err = at(r, idx)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// List returns up to limit records starting at insertion index from.
// A from at or past the end yields an empty slice.
func List(r state.Reader, from, limit uint64) ([]*Record, error) {
	n, err := Count(r)
	if err != nil {
		return nil, err
	}
	out := []*Record{}
	if from >= n || limit == 0 {
		return out, nil
	}
	end := n
	if limit < n-from {
		end = from + limit
	}
	for i := from; i < end; i++ {
		rec, err := at(r, i)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func at(r state.Reader, idx uint64) (*Record, error) {
	data, err := r.Get(recordKey(idx))
	if err != nil {
		return nil, fmt.Errorf("registry record %d: %w", idx, err)
	}
	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("registry record %d: %w", idx, err)
	}
	return rec, nil
}

func indexKey(tokenID string) []byte {
	key := make([]byte, 0, len(prefixIndex)+len(tokenID))
	key = append(key, prefixIndex...)
	return append(key, tokenID...)
}

func recordKey(idx uint64) []byte {
	key := make([]byte, 0, len(prefixRecord)+8)
	key = append(key, prefixRecord...)
	return binary.BigEndian.AppendUint64(key, idx)
}

func u64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func readU64(data []byte, what string) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt registry %s: %d bytes", what, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
