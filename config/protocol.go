package config

import (
	"fmt"

	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// =============================================================================
// Factory Rules (fixed per network)
// Changing them after deployment reprices every later creation.
// =============================================================================

// Gas units.
const (
	TGas = 1_000_000_000_000
)

// FactoryRules are the pricing and provisioning parameters of a factory.
type FactoryRules struct {
	AccountID           string        `json:"account_id"`
	StoragePricePerByte types.Balance `json:"storage_price_per_byte"`
	ExtraBytes          uint64        `json:"extra_bytes"`
	Gas                 uint64        `json:"gas"` // Attached to each token's init call.
}

// MainnetRules returns the mainnet factory rules.
func MainnetRules() *FactoryRules {
	return &FactoryRules{
		AccountID:           "tokens.near",
		StoragePricePerByte: types.MustParseBalance("10000000000000000000"), // 10^19
		ExtraBytes:          10_000,
		Gas:                 50 * TGas,
	}
}

// TestnetRules returns the testnet factory rules.
func TestnetRules() *FactoryRules {
	r := MainnetRules()
	r.AccountID = "tokens.testnet"
	return r
}

// Rules returns the factory rules for the given network.
func Rules(network NetworkType) *FactoryRules {
	switch network {
	case Testnet:
		return TestnetRules()
	default:
		return MainnetRules()
	}
}

// RulesFor returns the network rules with the node's factory account
// override applied.
func RulesFor(cfg *Config) *FactoryRules {
	r := Rules(cfg.Network)
	if cfg.Factory.AccountID != "" {
		r.AccountID = cfg.Factory.AccountID
	}
	return r
}

// Validate checks the rules for values no factory can run with.
func (r *FactoryRules) Validate() error {
	if !types.IsValidAccountID(r.AccountID) {
		return fmt.Errorf("factory account %q is not a valid account id", r.AccountID)
	}
	if r.StoragePricePerByte.IsZero() {
		return fmt.Errorf("storage price per byte must be positive")
	}
	if r.Gas == 0 {
		return fmt.Errorf("gas must be positive")
	}
	return nil
}
