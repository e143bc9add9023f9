package rpc

import (
	"github.com/Klingon-tech/tokenfactory/internal/provision"
	"github.com/Klingon-tech/tokenfactory/internal/token"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// Application error codes.
	CodeInsufficientFunds = -32001 // Deposit too low, no deposit, or insufficient credit.
	CodeConflict          = -32002 // Token id already registered.
	CodeNotInitialized    = -32003
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// AccountParam is used by factory_storageBalanceOf.
type AccountParam struct {
	AccountID string `json:"account_id"`
}

// DepositParam is used by factory_storageDeposit. AccountID is the
// caller and Attached its payment; the host authenticates both.
type DepositParam struct {
	AccountID string        `json:"account_id"`
	Attached  types.Balance `json:"attached"`
}

// RequiredDepositParam is used by factory_getRequiredDeposit.
type RequiredDepositParam struct {
	AccountID string        `json:"account_id"`
	Token     *token.Record `json:"token"`
}

// CreateTokenParam is used by factory_createToken.
type CreateTokenParam struct {
	AccountID string        `json:"account_id"`
	Attached  types.Balance `json:"attached"`
	Token     *token.Record `json:"token"`
}

// TokensParam is used by factory_getTokens.
type TokensParam struct {
	FromIndex uint64 `json:"from_index"`
	Limit     uint64 `json:"limit"`
}

// TokenParam is used by factory_getToken.
type TokenParam struct {
	TokenID string `json:"token_id"`
}

// ── Result types ────────────────────────────────────────────────────────

// StorageBalanceResult is returned by factory_storageDeposit and
// factory_storageBalanceOf.
type StorageBalanceResult struct {
	AccountID  string        `json:"account_id"`
	Balance    types.Balance `json:"balance"`
	Registered bool          `json:"registered"`
}

// RequiredDepositResult is returned by factory_getRequiredDeposit.
type RequiredDepositResult struct {
	AccountID string        `json:"account_id"`
	TokenID   string        `json:"token_id"`
	Required  types.Balance `json:"required_deposit"`
}

// CountResult is returned by factory_getNumberOfTokens.
type CountResult struct {
	Count uint64 `json:"count"`
}

// TokensResult is returned by factory_getTokens.
type TokensResult struct {
	Tokens    []*token.Record `json:"tokens"`
	FromIndex uint64          `json:"from_index"`
	Total     uint64          `json:"total"`
}

// PendingResult is returned by factory_getPendingProvisions.
type PendingResult struct {
	Requests  []*provision.Request `json:"requests"`
	Malformed int                  `json:"malformed"`
}
