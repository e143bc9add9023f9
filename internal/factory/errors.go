package factory

import (
	"errors"

	"github.com/Klingon-tech/tokenfactory/internal/ledger"
	"github.com/Klingon-tech/tokenfactory/internal/token"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// Factory error kinds. Every failed call wraps exactly one of them.
var (
	ErrNotInitialized     = errors.New("factory not initialized")
	ErrAlreadyInitialized = errors.New("factory already initialized")

	ErrInvalidAccountID   = token.ErrInvalidAccountID
	ErrInvalidTokenID     = token.ErrInvalidTokenID
	ErrInvalidRecord      = token.ErrInvalidRecord
	ErrDuplicateTokenID   = token.ErrDuplicateTokenID
	ErrDepositTooLow      = ledger.ErrDepositTooLow
	ErrNoDeposit          = ledger.ErrNoDeposit
	ErrInsufficientCredit = ledger.ErrInsufficientCredit
	ErrBalanceOverflow    = types.ErrBalanceOverflow
)

// Kind returns a short label for the error kind wrapped by err, for logs
// and metrics. Unknown errors are "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, ErrInvalidAccountID):
		return "invalid_account_id"
	case errors.Is(err, ErrInvalidTokenID):
		return "invalid_token_id"
	case errors.Is(err, ErrInvalidRecord):
		return "invalid_record"
	case errors.Is(err, ErrDuplicateTokenID):
		return "duplicate_token_id"
	case errors.Is(err, ErrDepositTooLow):
		return "deposit_too_low"
	case errors.Is(err, ErrNoDeposit):
		return "no_deposit"
	case errors.Is(err, ErrInsufficientCredit):
		return "insufficient_credit"
	case errors.Is(err, ErrBalanceOverflow):
		return "balance_overflow"
	default:
		return "internal"
	}
}
