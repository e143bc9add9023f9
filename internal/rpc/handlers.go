package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Klingon-tech/tokenfactory/internal/factory"
	"github.com/Klingon-tech/tokenfactory/internal/provision"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// Page sizes for factory_getTokens.
const (
	DefaultTokensLimit = 100
	MaxTokensLimit     = 1000
)

// nullResult is the success result of a lookup that found nothing.
var nullResult = json.RawMessage("null")

// ── Factory endpoints ───────────────────────────────────────────────────

func (s *Server) handleGetInfo(ctx context.Context, req *Request) (interface{}, *Error) {
	info, err := s.factory.Info()
	if err != nil {
		return nil, s.factoryError(err)
	}
	return info, nil
}

func (s *Server) handleStorageDeposit(ctx context.Context, req *Request) (interface{}, *Error) {
	var params DepositParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.AccountID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "account_id is required"}
	}

	credit, err := s.factory.StorageDeposit(ctx, factory.Call{
		Predecessor: params.AccountID,
		Attached:    params.Attached,
	})
	if err != nil {
		return nil, s.factoryError(err)
	}
	return &StorageBalanceResult{
		AccountID:  params.AccountID,
		Balance:    credit,
		Registered: true,
	}, nil
}

func (s *Server) handleStorageBalanceOf(ctx context.Context, req *Request) (interface{}, *Error) {
	var params AccountParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.AccountID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "account_id is required"}
	}

	bal, found, err := s.factory.StorageBalanceOf(params.AccountID)
	if err != nil {
		return nil, s.factoryError(err)
	}
	if !found {
		bal = types.ZeroBalance
	}
	return &StorageBalanceResult{
		AccountID:  params.AccountID,
		Balance:    bal,
		Registered: found,
	}, nil
}

func (s *Server) handleGetRequiredDeposit(ctx context.Context, req *Request) (interface{}, *Error) {
	var params RequiredDepositParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.AccountID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "account_id is required"}
	}
	if params.Token == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "token is required"}
	}

	required, err := s.factory.GetRequiredDeposit(params.Token, params.AccountID)
	if err != nil {
		return nil, s.factoryError(err)
	}
	return &RequiredDepositResult{
		AccountID: params.AccountID,
		TokenID:   params.Token.TokenID,
		Required:  required,
	}, nil
}

func (s *Server) handleCreateToken(ctx context.Context, req *Request) (interface{}, *Error) {
	var params CreateTokenParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.AccountID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "account_id is required"}
	}
	if params.Token == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "token is required"}
	}

	receipt, err := s.factory.CreateToken(ctx, factory.Call{
		Predecessor: params.AccountID,
		Attached:    params.Attached,
	}, params.Token)
	if err != nil {
		return nil, s.factoryError(err)
	}
	return receipt, nil
}

func (s *Server) handleGetNumberOfTokens(ctx context.Context, req *Request) (interface{}, *Error) {
	n, err := s.factory.NumberOfTokens()
	if err != nil {
		return nil, s.factoryError(err)
	}
	return &CountResult{Count: n}, nil
}

func (s *Server) handleGetTokens(ctx context.Context, req *Request) (interface{}, *Error) {
	var params TokensParam
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}
	if params.Limit == 0 {
		params.Limit = DefaultTokensLimit
	}
	if params.Limit > MaxTokensLimit {
		params.Limit = MaxTokensLimit
	}

	total, err := s.factory.NumberOfTokens()
	if err != nil {
		return nil, s.factoryError(err)
	}
	tokens, err := s.factory.Tokens(params.FromIndex, params.Limit)
	if err != nil {
		return nil, s.factoryError(err)
	}
	return &TokensResult{
		Tokens:    tokens,
		FromIndex: params.FromIndex,
		Total:     total,
	}, nil
}

func (s *Server) handleGetToken(ctx context.Context, req *Request) (interface{}, *Error) {
	var params TokenParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.TokenID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "token_id is required"}
	}

	rec, found, err := s.factory.Token(params.TokenID)
	if err != nil {
		return nil, s.factoryError(err)
	}
	if !found {
		return nullResult, nil
	}
	return rec, nil
}

func (s *Server) handleGetPendingProvisions(ctx context.Context, req *Request) (interface{}, *Error) {
	reqs, malformed, err := s.factory.PendingProvisions()
	if err != nil {
		return nil, s.factoryError(err)
	}
	if reqs == nil {
		reqs = []*provision.Request{}
	}
	return &PendingResult{Requests: reqs, Malformed: malformed}, nil
}

// factoryError maps a factory error kind to a JSON-RPC error.
func (s *Server) factoryError(err error) *Error {
	code := CodeInternalError
	switch {
	case errors.Is(err, factory.ErrNotInitialized):
		code = CodeNotInitialized
	case errors.Is(err, factory.ErrInvalidAccountID),
		errors.Is(err, factory.ErrInvalidTokenID),
		errors.Is(err, factory.ErrInvalidRecord):
		code = CodeInvalidParams
	case errors.Is(err, factory.ErrDepositTooLow),
		errors.Is(err, factory.ErrNoDeposit),
		errors.Is(err, factory.ErrInsufficientCredit),
		errors.Is(err, factory.ErrBalanceOverflow):
		code = CodeInsufficientFunds
	case errors.Is(err, factory.ErrDuplicateTokenID), errors.Is(err, factory.ErrAlreadyInitialized):
		code = CodeConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = CodeInternalError
	default:
		s.logger.Error().Err(err).Msg("Factory call failed")
	}
	return &Error{Code: code, Message: err.Error(), Data: factory.Kind(err)}
}
