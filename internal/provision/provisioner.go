package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/tokenfactory/internal/rpcclient"
	"github.com/Klingon-tech/tokenfactory/pkg/crypto"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultHostMethod is the host RPC method that executes an action batch.
const DefaultHostMethod = "host_sendActions"

// ErrCodeMismatch is returned when a request names code the provisioner
// does not hold.
var ErrCodeMismatch = errors.New("request code hash does not match deployable code")

// Action kinds, executed by the host in order.
const (
	ActionCreateAccount  = "create_account"
	ActionTransfer       = "transfer"
	ActionDeployContract = "deploy_contract"
	ActionFunctionCall   = "function_call"
)

// Action is one step of a host action batch.
type Action struct {
	Type    string          `json:"type"`
	Deposit *types.Balance  `json:"deposit,omitempty"`
	Code    []byte          `json:"code,omitempty"`
	Method  string          `json:"method_name,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Gas     uint64          `json:"gas,omitempty"`
}

// ActionBatch is the parameter object of the host method.
type ActionBatch struct {
	RequestID  types.Hash `json:"request_id"`
	SignerID   string     `json:"signer_id"`
	ReceiverID string     `json:"receiver_id"`
	Actions    []Action   `json:"actions"`
}

// Actions expands req into the host action batch using code.
func Actions(req *Request, code []byte) ActionBatch {
	amount := req.Amount
	return ActionBatch{
		RequestID:  req.ID,
		SignerID:   req.FactoryID,
		ReceiverID: req.AccountID,
		Actions: []Action{
			{Type: ActionCreateAccount},
			{Type: ActionTransfer, Deposit: &amount},
			{Type: ActionDeployContract, Code: code},
			{Type: ActionFunctionCall, Method: req.Method, Args: req.Args, Gas: req.Gas},
		},
	}
}

// RPCProvisioner submits action batches to the host over JSON-RPC.
type RPCProvisioner struct {
	client   *rpcclient.Client
	method   string
	code     []byte
	codeHash types.Hash
}

// NewRPCProvisioner creates a provisioner that deploys code through client.
// An empty method uses DefaultHostMethod.
func NewRPCProvisioner(client *rpcclient.Client, method string, code []byte) *RPCProvisioner {
	if method == "" {
		method = DefaultHostMethod
	}
	return &RPCProvisioner{
		client:   client,
		method:   method,
		code:     code,
		codeHash: crypto.Hash(code),
	}
}

// Provision sends the request's action batch. The host's result is not
// interpreted beyond success or failure.
func (p *RPCProvisioner) Provision(ctx context.Context, req *Request) error {
	if req.CodeHash != p.codeHash {
		return fmt.Errorf("%w: request %s, have %s", ErrCodeMismatch, req.CodeHash, p.codeHash)
	}
	if err := p.client.CallContext(ctx, p.method, Actions(req, p.code), nil); err != nil {
		return fmt.Errorf("%s to %s: %w", p.method, req.AccountID, err)
	}
	return nil
}

// LogProvisioner only logs requests. It backs dry-run deployments where no
// host endpoint is configured.
type LogProvisioner struct {
	logger zerolog.Logger
}

// NewLogProvisioner creates a logging provisioner.
func NewLogProvisioner(logger zerolog.Logger) *LogProvisioner {
	return &LogProvisioner{logger: logger}
}

// Provision logs req and reports success.
func (p *LogProvisioner) Provision(_ context.Context, req *Request) error {
	p.logger.Info().
		Str("request_id", req.ID.String()).
		Str("account", req.AccountID).
		Str("amount", req.Amount.String()).
		Str("code_hash", req.CodeHash.String()).
		Str("method", req.Method).
		RawJSON("args", req.Args).
		Uint64("gas", req.Gas).
		Msg("Dry-run provisioning")
	return nil
}
