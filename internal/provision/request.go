// Package provision carries token provisioning requests from the factory
// to the host.
//
// A successful creation writes a Request into an outbox in the same commit
// as the registry entry. The Dispatcher drains the outbox in its own
// goroutine and hands each request to a Provisioner exactly once. The
// outcome never flows back into the factory state: a failed request leaves
// the registry entry in place and the forwarded funds stranded.
package provision

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/tokenfactory/internal/state"
	"github.com/Klingon-tech/tokenfactory/internal/storage"
	"github.com/Klingon-tech/tokenfactory/pkg/crypto"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// InitMethod is the token contract's initialization entry point.
const InitMethod = "new"

// Request is one composite provisioning action: create AccountID, transfer
// Amount to it, deploy the code identified by CodeHash, then call Method
// with Args and Gas.
type Request struct {
	ID        types.Hash      `json:"id"`
	Seq       uint64          `json:"seq"`
	FactoryID string          `json:"factory_id"`
	TokenID   string          `json:"token_id"`
	AccountID string          `json:"account_id"`
	Amount    types.Balance   `json:"amount"`
	CodeHash  types.Hash      `json:"code_hash"`
	Method    string          `json:"method"`
	Args      json.RawMessage `json:"args"`
	Gas       uint64          `json:"gas"`
}

// RequestID derives the stable id of the request for a token.
func RequestID(factoryID, tokenID string) types.Hash {
	return crypto.HashParts([]byte(factoryID), []byte(tokenID))
}

// Outbox key layout:
//
//	o/n              -> u64 BE next sequence number
//	o/r/<u64 BE seq> -> Request JSON
var (
	keySeq        = []byte("o/n")
	prefixPending = []byte("o/r/")
)

// Writer is the transactional side the factory enqueues through.
type Writer interface {
	state.Reader
	PutUnmetered(key, value []byte) error
}

// Enqueue assigns the next sequence number to req and stages it.
func Enqueue(w Writer, req *Request) error {
	seq, err := nextSeq(w)
	if err != nil {
		return err
	}
	req.Seq = seq
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal provisioning request: %w", err)
	}
	if err := w.PutUnmetered(pendingKey(seq), data); err != nil {
		return fmt.Errorf("stage provisioning request: %w", err)
	}
	if err := w.PutUnmetered(keySeq, binary.BigEndian.AppendUint64(nil, seq+1)); err != nil {
		return fmt.Errorf("stage outbox sequence: %w", err)
	}
	return nil
}

// Pending returns queued requests in sequence order. Entries that fail to
// decode are returned as keys in bad so the caller can drop them.
func Pending(db storage.DB) (reqs []*Request, bad [][]byte, err error) {
	err = db.ForEach(prefixPending, func(key, value []byte) error {
		var req Request
		if err := json.Unmarshal(value, &req); err != nil {
			bad = append(bad, append([]byte{}, key...))
			return nil
		}
		reqs = append(reqs, &req)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan outbox: %w", err)
	}
	return reqs, bad, nil
}

// Remove deletes a request from the outbox.
func Remove(db storage.DB, seq uint64) error {
	return db.Delete(pendingKey(seq))
}

func nextSeq(r state.Reader) (uint64, error) {
	data, err := r.Get(keySeq)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read outbox sequence: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt outbox sequence: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func pendingKey(seq uint64) []byte {
	key := make([]byte, 0, len(prefixPending)+8)
	key = append(key, prefixPending...)
	return binary.BigEndian.AppendUint64(key, seq)
}
