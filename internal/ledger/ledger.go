// Package ledger implements the storage-deposit ledger: prepaid storage
// credit per account, never allowed to go negative.
package ledger

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/tokenfactory/internal/state"
	"github.com/Klingon-tech/tokenfactory/internal/storage"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// Ledger errors.
var (
	ErrDepositTooLow      = errors.New("deposit below base storage cost")
	ErrNoDeposit          = errors.New("no storage deposit")
	ErrInsufficientCredit = errors.New("insufficient storage credit")
)

var prefixDeposit = []byte("d/") // d/<account_id> -> 16-byte LE credit

// Key returns the storage key of an account's ledger entry.
func Key(accountID string) []byte {
	key := make([]byte, 0, len(prefixDeposit)+len(accountID))
	key = append(key, prefixDeposit...)
	return append(key, accountID...)
}

// Ledger applies top-ups and debits against deposit entries.
type Ledger struct {
	baseCost types.Balance
}

// New creates a ledger that charges baseCost on an account's first top-up.
func New(baseCost types.Balance) *Ledger {
	return &Ledger{baseCost: baseCost}
}

// TopUp credits amount to accountID and returns the new credit. A first
// top-up must cover the base cost, which is kept back from the credit.
func (l *Ledger) TopUp(w state.Writer, accountID string, amount types.Balance) (types.Balance, error) {
	credit, found, err := get(w, accountID)
	if err != nil {
		return types.Balance{}, err
	}

	if !found {
		if amount.Cmp(l.baseCost) < 0 {
			return types.Balance{}, fmt.Errorf("%s: attached %s, need at least %s: %w",
				accountID, amount, l.baseCost, ErrDepositTooLow)
		}
		credit = amount.SaturatingSub(l.baseCost)
	} else {
		credit, err = credit.Add(amount)
		if err != nil {
			return types.Balance{}, fmt.Errorf("%s: top up: %w", accountID, err)
		}
	}

	if err := w.Put(Key(accountID), credit.Bytes()); err != nil {
		return types.Balance{}, fmt.Errorf("ledger put: %w", err)
	}
	return credit, nil
}

// Debit subtracts amount from accountID's credit and returns the remainder.
// On failure the entry is left unchanged.
func (l *Ledger) Debit(w state.Writer, accountID string, amount types.Balance) (types.Balance, error) {
	credit, found, err := get(w, accountID)
	if err != nil {
		return types.Balance{}, err
	}
	if !found {
		return types.Balance{}, fmt.Errorf("%s: %w", accountID, ErrNoDeposit)
	}
	rest, err := credit.Sub(amount)
	if err != nil {
		return types.Balance{}, fmt.Errorf("%s: credit %s, need %s: %w",
			accountID, credit, amount, ErrInsufficientCredit)
	}
	if err := w.Put(Key(accountID), rest.Bytes()); err != nil {
		return types.Balance{}, fmt.Errorf("ledger put: %w", err)
	}
	return rest, nil
}

// BalanceOf returns accountID's credit, or zero if it has no entry.
func BalanceOf(r state.Reader, accountID string) (types.Balance, error) {
	credit, _, err := get(r, accountID)
	return credit, err
}

// Lookup returns accountID's credit and whether an entry exists.
func Lookup(r state.Reader, accountID string) (types.Balance, bool, error) {
	return get(r, accountID)
}

func get(r state.Reader, accountID string) (types.Balance, bool, error) {
	data, err := r.Get(Key(accountID))
	if errors.Is(err, storage.ErrNotFound) {
		return types.ZeroBalance, false, nil
	}
	if err != nil {
		return types.Balance{}, false, fmt.Errorf("ledger get %s: %w", accountID, err)
	}
	credit, err := types.BalanceFromBytes(data)
	if err != nil {
		return types.Balance{}, false, fmt.Errorf("ledger entry %s: %w", accountID, err)
	}
	return credit, true, nil
}
