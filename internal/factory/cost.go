package factory

import (
	"fmt"

	"github.com/Klingon-tech/tokenfactory/internal/ledger"
	"github.com/Klingon-tech/tokenfactory/internal/token"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// storageCost prices n bytes at the configured storage price.
func (f *Factory) storageCost(n uint64) (types.Balance, error) {
	cost, err := types.NewBalance(n).Mul(f.params.StoragePricePerByte)
	if err != nil {
		return types.Balance{}, fmt.Errorf("price %d bytes: %w", n, err)
	}
	return cost, nil
}

// RequiredDeposit prices a token creation: the token code, the extra
// margin and the encoded record counted twice (once in the registry, once
// in the token contract's own state).
func (f *Factory) RequiredDeposit(rec *token.Record) (types.Balance, error) {
	size := uint64(len(f.params.Code)) + f.params.ExtraBytes + 2*uint64(token.EncodedSize(rec))
	return f.storageCost(size)
}

// GetRequiredDeposit returns what accountID must attach to create rec. An
// account with a ledger entry owes the part of the price its credit does
// not cover; a new account also owes the base storage cost.
func (f *Factory) GetRequiredDeposit(rec *token.Record, accountID string) (types.Balance, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return types.Balance{}, err
	}
	required, err := f.RequiredDeposit(rec)
	if err != nil {
		return types.Balance{}, err
	}

	credit, found, err := ledger.Lookup(f.db, accountID)
	if err != nil {
		return types.Balance{}, err
	}
	if found {
		return required.SaturatingSub(credit), nil
	}
	total, err := cfg.BaseStorageCost.Add(required)
	if err != nil {
		return types.Balance{}, fmt.Errorf("required deposit: %w", err)
	}
	return total, nil
}
