// Package state provides a metered transactional overlay over a storage.DB.
//
// Every mutating factory call runs inside one Txn. Writes are buffered and
// either committed atomically through a storage batch or discarded. The
// Txn tracks how many bytes of storage its writes add or release, which is
// what the factory charges deposits against.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/tokenfactory/internal/storage"
)

// RecordOverhead is the fixed storage cost of one record, in bytes, on top
// of its key and value lengths.
const RecordOverhead = 40

// usageKey holds the committed storage usage in bytes (8-byte big-endian).
// It is bookkeeping and is not itself metered.
var usageKey = []byte("m/usage")

// ErrClosed is returned when a Txn is used after Commit or Discard.
var ErrClosed = errors.New("transaction already closed")

// Reader is the read side shared by a Txn and a committed storage.DB.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Writer is the write side of a Txn.
type Writer interface {
	Reader
	Put(key, value []byte) error
	Delete(key []byte) error
}

// RecordSize returns the metered size of a record.
func RecordSize(key, value []byte) int64 {
	return int64(len(key) + len(value) + RecordOverhead)
}

// Usage returns the committed storage usage in bytes.
func Usage(r Reader) (uint64, error) {
	data, err := r.Get(usageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read storage usage: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt storage usage record: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// Txn buffers writes over a DB and meters their storage cost.
// A Txn is not safe for concurrent use.
type Txn struct {
	db     storage.DB
	writes map[string][]byte // nil value marks a delete
	delta  int64
	closed bool
}

// Begin starts a new transaction over db.
func Begin(db storage.DB) *Txn {
	return &Txn{db: db, writes: make(map[string][]byte)}
}

// Get returns the value for key as seen by this transaction.
func (tx *Txn) Get(key []byte) ([]byte, error) {
	if tx.closed {
		return nil, ErrClosed
	}
	if v, ok := tx.writes[string(key)]; ok {
		if v == nil {
			return nil, storage.ErrNotFound
		}
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}
	return tx.db.Get(key)
}

// Has reports whether key exists as seen by this transaction.
func (tx *Txn) Has(key []byte) (bool, error) {
	if tx.closed {
		return false, ErrClosed
	}
	if v, ok := tx.writes[string(key)]; ok {
		return v != nil, nil
	}
	return tx.db.Has(key)
}

// Put buffers a write and meters the size change.
func (tx *Txn) Put(key, value []byte) error {
	if tx.closed {
		return ErrClosed
	}
	prev, err := tx.sizeOf(key)
	if err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)
	tx.writes[string(key)] = v
	tx.delta += RecordSize(key, v) - prev
	return nil
}

// PutUnmetered buffers a write that is not charged against storage usage.
// It is meant for bookkeeping records that live outside the metered
// keyspace, such as the provisioning outbox.
func (tx *Txn) PutUnmetered(key, value []byte) error {
	if tx.closed {
		return ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	tx.writes[string(key)] = v
	return nil
}

// Delete buffers a removal and releases the record's metered size.
func (tx *Txn) Delete(key []byte) error {
	if tx.closed {
		return ErrClosed
	}
	prev, err := tx.sizeOf(key)
	if err != nil {
		return err
	}
	if prev == 0 {
		return nil
	}
	tx.writes[string(key)] = nil
	tx.delta -= prev
	return nil
}

// sizeOf returns the metered size of key's current value, 0 if absent.
func (tx *Txn) sizeOf(key []byte) (int64, error) {
	v, err := tx.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return RecordSize(key, v), nil
}

// UsageDelta returns the net bytes added (positive) or released (negative)
// by the buffered writes.
func (tx *Txn) UsageDelta() int64 {
	return tx.delta
}

// Usage returns the storage usage this transaction would commit.
func (tx *Txn) Usage() (uint64, error) {
	base, err := Usage(tx.db)
	if err != nil {
		return 0, err
	}
	total := int64(base) + tx.delta
	if total < 0 {
		return 0, fmt.Errorf("storage usage would become negative (%d)", total)
	}
	return uint64(total), nil
}

// Commit applies all buffered writes and the updated usage counter in one
// batch. An empty transaction commits nothing.
func (tx *Txn) Commit() error {
	if tx.closed {
		return ErrClosed
	}
	defer tx.close()
	if len(tx.writes) == 0 {
		return nil
	}

	usage, err := tx.Usage()
	if err != nil {
		return err
	}

	var batch storage.Batch
	if b, ok := tx.db.(storage.Batcher); ok {
		batch = b.NewBatch()
	} else {
		batch = storage.NewSequentialBatch(tx.db)
	}

	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := tx.writes[k]
		if v == nil {
			err = batch.Delete([]byte(k))
		} else {
			err = batch.Put([]byte(k), v)
		}
		if err != nil {
			return fmt.Errorf("stage %q: %w", k, err)
		}
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], usage)
	if err := batch.Put(usageKey, buf[:]); err != nil {
		return fmt.Errorf("stage storage usage: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Discard drops all buffered writes. Discarding a closed Txn is a no-op.
func (tx *Txn) Discard() {
	if !tx.closed {
		tx.close()
	}
}

func (tx *Txn) close() {
	tx.closed = true
	tx.writes = nil
}
