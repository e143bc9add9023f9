// Package token defines the token registration record and the append-only
// registry that stores it.
//
// A token is identified by its lower-case symbol. Registering a token
// reserves the sub-account "<token_id>.<factory>" that the provisioning
// step later creates and initializes with the record.
package token

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// MetadataSpec is the fungible token metadata standard version.
const MetadataSpec = "ft-1.0.0"

// ReferenceHashSize is the length of Metadata.ReferenceHash in bytes.
const ReferenceHashSize = 32

// Record validation errors.
var (
	ErrInvalidAccountID = errors.New("invalid account id")
	ErrInvalidTokenID   = errors.New("invalid token id")
	ErrInvalidRecord    = errors.New("invalid token record")
)

// Metadata is the fungible token metadata handed to the token contract.
type Metadata struct {
	Spec          string  `json:"spec"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Description   *string `json:"description,omitempty"`
	Icon          *string `json:"icon,omitempty"`
	Reference     *string `json:"reference,omitempty"`
	ReferenceHash []byte  `json:"reference_hash,omitempty"`
	Decimals      uint8   `json:"decimals"`
}

// Record is one registered token. It is immutable once registered.
type Record struct {
	TokenID     string        `json:"token_id"`
	OwnerID     string        `json:"owner_id"`
	TotalSupply types.Balance `json:"total_supply"`
	Metadata    Metadata      `json:"metadata"`
}

// InitArgs is the argument object of the token contract's "new" call.
type InitArgs struct {
	OwnerID     string        `json:"owner_id"`
	TotalSupply types.Balance `json:"total_supply"`
	Metadata    Metadata      `json:"metadata"`
}

// InitArgs returns the initialization arguments for the record's contract.
func (r *Record) InitArgs() InitArgs {
	return InitArgs{
		OwnerID:     r.OwnerID,
		TotalSupply: r.TotalSupply,
		Metadata:    r.Metadata,
	}
}

// IsValidTokenID reports whether s is a non-empty string of lower-case
// ASCII letters and digits.
func IsValidTokenID(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// TokenIDFromSymbol derives the token id for a symbol. Only ASCII letters
// are lower-cased; other bytes are kept as they are.
func TokenIDFromSymbol(symbol string) string {
	b := []byte(symbol)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ChildAccountID returns the sub-account a token is deployed to.
func ChildAccountID(tokenID, factoryID string) string {
	return tokenID + "." + factoryID
}

// Validate checks the record's own fields. The derived child account is
// checked by the caller, which knows the factory account.
func (r *Record) Validate() error {
	if !types.IsValidAccountID(r.OwnerID) {
		return fmt.Errorf("owner %q: %w", r.OwnerID, ErrInvalidAccountID)
	}
	if r.TotalSupply.IsZero() {
		return fmt.Errorf("total supply must be positive: %w", ErrInvalidRecord)
	}
	if !IsValidTokenID(r.TokenID) {
		return fmt.Errorf("token id %q: %w", r.TokenID, ErrInvalidTokenID)
	}
	if TokenIDFromSymbol(r.Metadata.Symbol) != r.TokenID {
		return fmt.Errorf("symbol %q does not match token id %q: %w",
			r.Metadata.Symbol, r.TokenID, ErrInvalidTokenID)
	}
	if r.Metadata.ReferenceHash != nil && len(r.Metadata.ReferenceHash) != ReferenceHashSize {
		return fmt.Errorf("reference hash must be %d bytes, got %d: %w",
			ReferenceHashSize, len(r.Metadata.ReferenceHash), ErrInvalidRecord)
	}
	return nil
}
