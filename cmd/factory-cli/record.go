package main

import (
	"encoding/base64"
	"flag"
	"fmt"

	"github.com/Klingon-tech/tokenfactory/internal/token"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// tokenFlags holds the flags that describe a token record.
type tokenFlags struct {
	symbol        *string
	name          *string
	owner         *string
	supply        *string
	decimals      *uint
	spec          *string
	icon          *string
	reference     *string
	referenceHash *string
	description   *string
}

func addTokenFlags(fs *flag.FlagSet) *tokenFlags {
	return &tokenFlags{
		symbol:        fs.String("symbol", "", "Token symbol; its lower-case form is the token id"),
		name:          fs.String("name", "", "Token name"),
		owner:         fs.String("owner", "", "Account receiving the total supply"),
		supply:        fs.String("supply", "", "Total supply in base units"),
		decimals:      fs.Uint("decimals", 18, "Decimal places"),
		spec:          fs.String("spec", token.MetadataSpec, "Metadata spec version"),
		icon:          fs.String("icon", "", "Icon data URL"),
		reference:     fs.String("reference", "", "Off-chain metadata link"),
		referenceHash: fs.String("reference-hash", "", "Base64 sha256 of the reference document"),
		description:   fs.String("description", "", "Token description"),
	}
}

// record builds a token record from the parsed flags. Only local syntax is
// checked here; the factory validates the record itself.
func (tf *tokenFlags) record() (*token.Record, error) {
	if *tf.symbol == "" {
		return nil, fmt.Errorf("--symbol is required")
	}
	if *tf.owner == "" {
		return nil, fmt.Errorf("--owner is required")
	}
	if *tf.supply == "" {
		return nil, fmt.Errorf("--supply is required")
	}
	if *tf.decimals > 255 {
		return nil, fmt.Errorf("--decimals must be at most 255")
	}
	supply, err := types.ParseBalance(*tf.supply)
	if err != nil {
		return nil, fmt.Errorf("invalid supply: %w", err)
	}

	name := *tf.name
	if name == "" {
		name = *tf.symbol
	}

	md := token.Metadata{
		Spec:        *tf.spec,
		Name:        name,
		Symbol:      *tf.symbol,
		Description: optional(*tf.description),
		Icon:        optional(*tf.icon),
		Reference:   optional(*tf.reference),
		Decimals:    uint8(*tf.decimals),
	}
	if *tf.referenceHash != "" {
		h, err := base64.StdEncoding.DecodeString(*tf.referenceHash)
		if err != nil {
			return nil, fmt.Errorf("invalid reference hash: %w", err)
		}
		md.ReferenceHash = h
	}

	return &token.Record{
		TokenID:     token.TokenIDFromSymbol(*tf.symbol),
		OwnerID:     *tf.owner,
		TotalSupply: supply,
		Metadata:    md,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
