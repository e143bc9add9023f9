// Package factory implements the token creation orchestrator on top of the
// storage-deposit ledger and the token registry.
//
// Mutating calls (Initialize, StorageDeposit, CreateToken) are serialized
// and each commits through one state transaction or leaves no trace.
// Queries read committed state and never wait on a mutating call.
package factory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Klingon-tech/tokenfactory/internal/ledger"
	klog "github.com/Klingon-tech/tokenfactory/internal/log"
	"github.com/Klingon-tech/tokenfactory/internal/metrics"
	"github.com/Klingon-tech/tokenfactory/internal/provision"
	"github.com/Klingon-tech/tokenfactory/internal/state"
	"github.com/Klingon-tech/tokenfactory/internal/storage"
	"github.com/Klingon-tech/tokenfactory/internal/token"
	"github.com/Klingon-tech/tokenfactory/pkg/crypto"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
	"github.com/rs/zerolog"
)

// Defaults for Params.
const (
	DefaultExtraBytes = 10_000
	DefaultGas        = 50_000_000_000_000 // 50 Tgas
)

// DefaultStoragePricePerByte is 10^19 units per byte.
var DefaultStoragePricePerByte = types.MustParseBalance("10000000000000000000")

var keyConfig = []byte("c/config") // -> 16-byte LE base storage cost

// Params are the fixed inputs of a factory instance.
type Params struct {
	AccountID           string        // The factory's own account.
	StoragePricePerByte types.Balance // Host storage price.
	Code                []byte        // Token contract deployed to each child.
	ExtraBytes          uint64        // Pricing margin in bytes.
	Gas                 uint64        // Gas attached to the init call.
}

// Config is the factory state fixed at initialization.
type Config struct {
	BaseStorageCost types.Balance `json:"base_storage_cost"`
}

// Call carries the caller identity and attached payment of a mutating call.
// The host authenticates both.
type Call struct {
	Predecessor string
	Attached    types.Balance
}

// Receipt describes a committed token creation.
type Receipt struct {
	TokenID         string        `json:"token_id"`
	AccountID       string        `json:"account_id"`
	Required        types.Balance `json:"required_deposit"`
	StorageUsed     uint64        `json:"storage_used"`
	Forwarded       types.Balance `json:"forwarded"`
	RequestID       types.Hash    `json:"request_id"`
	RemainingCredit types.Balance `json:"remaining_credit"`
}

// Info summarizes a factory instance.
type Info struct {
	AccountID           string        `json:"account_id"`
	Initialized         bool          `json:"initialized"`
	BaseStorageCost     types.Balance `json:"base_storage_cost"`
	StoragePricePerByte types.Balance `json:"storage_price_per_byte"`
	CodeHash            types.Hash    `json:"code_hash"`
	CodeSize            int           `json:"code_size"`
	ExtraBytes          uint64        `json:"extra_bytes"`
	Gas                 uint64        `json:"gas"`
	Tokens              uint64        `json:"tokens"`
	StorageUsage        uint64        `json:"storage_usage"`
}

// Option customizes a Factory.
type Option func(*Factory)

// WithMetrics records call outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Factory) { f.metrics = m }
}

// WithNotifier registers fn to be called after a provisioning request is
// committed. fn must not block.
func WithNotifier(fn func()) Option {
	return func(f *Factory) { f.notify = fn }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// Factory is one token factory instance over its own keyspace.
type Factory struct {
	db       storage.DB
	params   Params
	codeHash types.Hash
	cfg      atomic.Pointer[Config]
	metrics  *metrics.Metrics
	notify   func()
	logger   zerolog.Logger
	mu       sync.Mutex // serializes mutating calls
}

// New creates a factory over db. The factory must be initialized once
// before it accepts deposits or creations.
func New(db storage.DB, p Params, opts ...Option) (*Factory, error) {
	if db == nil {
		return nil, fmt.Errorf("factory DB is nil")
	}
	if !types.IsValidAccountID(p.AccountID) {
		return nil, fmt.Errorf("factory account %q: %w", p.AccountID, ErrInvalidAccountID)
	}
	if len(p.Code) == 0 {
		return nil, fmt.Errorf("token code is empty")
	}
	f := &Factory{
		db:       db,
		params:   p,
		codeHash: crypto.Hash(p.Code),
		logger:   klog.WithFactory("factory", p.AccountID),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// AccountID returns the factory's account.
func (f *Factory) AccountID() string {
	return f.params.AccountID
}

// CodeHash returns the hash of the deployed token code.
func (f *Factory) CodeHash() types.Hash {
	return f.codeHash
}

// Initialize measures the base storage cost and persists the factory
// config. It fails with ErrAlreadyInitialized on a second call.
func (f *Factory) Initialize(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if ok, err := f.db.Has(keyConfig); err != nil {
		return nil, fmt.Errorf("check config: %w", err)
	} else if ok {
		return nil, ErrAlreadyInitialized
	}

	base, err := f.measureBaseCost()
	if err != nil {
		return nil, err
	}
	cfg := &Config{BaseStorageCost: base}

	tx := state.Begin(f.db)
	if err := tx.Put(keyConfig, base.Bytes()); err != nil {
		tx.Discard()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit config: %w", err)
	}
	f.cfg.Store(cfg)
	f.observeState()

	f.logger.Info().
		Str("base_storage_cost", base.String()).
		Str("code_hash", f.codeHash.String()).
		Msg("Factory initialized")
	return cfg, nil
}

// measureBaseCost prices a maximal-length ledger entry by writing and
// removing a placeholder in a scratch transaction.
func (f *Factory) measureBaseCost() (types.Balance, error) {
	scratch := state.Begin(f.db)
	defer scratch.Discard()

	placeholder := strings.Repeat("a", types.MaxAccountIDLen)
	if err := scratch.Put(ledger.Key(placeholder), types.ZeroBalance.Bytes()); err != nil {
		return types.Balance{}, err
	}
	used := scratch.UsageDelta()
	if err := scratch.Delete(ledger.Key(placeholder)); err != nil {
		return types.Balance{}, err
	}
	return f.storageCost(uint64(used))
}

// loadConfig returns the persisted config or ErrNotInitialized.
func (f *Factory) loadConfig() (*Config, error) {
	if cfg := f.cfg.Load(); cfg != nil {
		return cfg, nil
	}
	data, err := f.db.Get(keyConfig)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	base, err := types.BalanceFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("corrupt config: %w", err)
	}
	cfg := &Config{BaseStorageCost: base}
	f.cfg.Store(cfg)
	return cfg, nil
}

// Config returns the factory config, or ErrNotInitialized.
func (f *Factory) Config() (*Config, error) {
	return f.loadConfig()
}

// StorageDeposit credits the caller's attached payment to its ledger entry
// and returns the new credit.
func (f *Factory) StorageDeposit(ctx context.Context, call Call) (types.Balance, error) {
	if err := ctx.Err(); err != nil {
		return types.Balance{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	credit, err := f.topUp(call)
	f.countDeposit(err)
	if err != nil {
		f.logger.Debug().Err(err).Str("account", call.Predecessor).Msg("Storage deposit rejected")
		return types.Balance{}, err
	}
	return credit, nil
}

// topUp applies call.Attached to the caller's entry in its own commit.
// Callers hold f.mu.
func (f *Factory) topUp(call Call) (types.Balance, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return types.Balance{}, err
	}
	if !types.IsValidAccountID(call.Predecessor) {
		return types.Balance{}, fmt.Errorf("caller %q: %w", call.Predecessor, ErrInvalidAccountID)
	}

	tx := state.Begin(f.db)
	defer tx.Discard()

	credit, err := ledger.New(cfg.BaseStorageCost).TopUp(tx, call.Predecessor, call.Attached)
	if err != nil {
		return types.Balance{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Balance{}, fmt.Errorf("commit deposit: %w", err)
	}
	f.observeState()

	f.logger.Info().
		Str("account", call.Predecessor).
		Str("amount", call.Attached.String()).
		Str("credit", credit.String()).
		Msg("Storage deposit")
	return credit, nil
}

// CreateToken validates, prices and funds rec, registers it, and queues
// its provisioning request. An attached payment is applied as a storage
// deposit first and stays credited even if the creation then fails.
func (f *Factory) CreateToken(ctx context.Context, call Call, rec *token.Record) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("token record is nil: %w", ErrInvalidRecord)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	receipt, err := f.createToken(call, rec)
	if f.metrics != nil {
		f.metrics.Creations.WithLabelValues(Kind(err)).Inc()
	}
	if err != nil {
		f.logger.Debug().Err(err).
			Str("account", call.Predecessor).
			Str("token_id", rec.TokenID).
			Msg("Token creation aborted")
		return nil, err
	}

	f.logger.Info().
		Str("account", call.Predecessor).
		Str("token_id", receipt.TokenID).
		Str("amount", receipt.Required.String()).
		Uint64("storage_used", receipt.StorageUsed).
		Str("forwarded", receipt.Forwarded.String()).
		Msg("Token created, provisioning requested")

	if f.notify != nil {
		f.notify()
	}
	return receipt, nil
}

func (f *Factory) createToken(call Call, rec *token.Record) (*Receipt, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	// Validated.
	if !types.IsValidAccountID(call.Predecessor) {
		return nil, fmt.Errorf("caller %q: %w", call.Predecessor, ErrInvalidAccountID)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	child := token.ChildAccountID(rec.TokenID, f.params.AccountID)
	if !types.IsValidAccountID(child) {
		return nil, fmt.Errorf("token account %q: %w", child, ErrInvalidAccountID)
	}

	// Priced.
	required, err := f.RequiredDeposit(rec)
	if err != nil {
		return nil, err
	}

	// Funded. The top-up commits on its own.
	if !call.Attached.IsZero() {
		_, err := f.topUp(call)
		f.countDeposit(err)
		if err != nil {
			return nil, err
		}
	}

	tx := state.Begin(f.db)
	defer tx.Discard()

	remaining, err := ledger.New(cfg.BaseStorageCost).Debit(tx, call.Predecessor, required)
	if err != nil {
		return nil, err
	}

	// Registered.
	before := tx.UsageDelta()
	if err := token.Register(tx, rec); err != nil {
		return nil, err
	}
	used := uint64(tx.UsageDelta() - before)
	usedCost, err := f.storageCost(used)
	if err != nil {
		return nil, err
	}
	forwarded := required.SaturatingSub(usedCost)

	// ProvisioningRequested.
	args, err := json.Marshal(rec.InitArgs())
	if err != nil {
		return nil, fmt.Errorf("marshal init args: %w", err)
	}
	req := &provision.Request{
		ID:        provision.RequestID(f.params.AccountID, rec.TokenID),
		FactoryID: f.params.AccountID,
		TokenID:   rec.TokenID,
		AccountID: child,
		Amount:    forwarded,
		CodeHash:  f.codeHash,
		Method:    provision.InitMethod,
		Args:      args,
		Gas:       f.params.Gas,
	}
	if err := provision.Enqueue(tx, req); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit creation: %w", err)
	}
	f.observeState()

	return &Receipt{
		TokenID:         rec.TokenID,
		AccountID:       child,
		Required:        required,
		StorageUsed:     used,
		Forwarded:       forwarded,
		RequestID:       req.ID,
		RemainingCredit: remaining,
	}, nil
}

// NumberOfTokens returns the registry size.
func (f *Factory) NumberOfTokens() (uint64, error) {
	return token.Count(f.db)
}

// Tokens returns up to limit records in insertion order starting at from.
func (f *Factory) Tokens(from, limit uint64) ([]*token.Record, error) {
	return token.List(f.db, from, limit)
}

// Token returns the record for tokenID; found is false if it does not exist.
func (f *Factory) Token(tokenID string) (rec *token.Record, found bool, err error) {
	return token.Lookup(f.db, tokenID)
}

// StorageBalanceOf returns an account's credit; found is false if it has
// no ledger entry.
func (f *Factory) StorageBalanceOf(accountID string) (types.Balance, bool, error) {
	return ledger.Lookup(f.db, accountID)
}

// Info returns a summary of the factory.
func (f *Factory) Info() (*Info, error) {
	info := &Info{
		AccountID:           f.params.AccountID,
		StoragePricePerByte: f.params.StoragePricePerByte,
		CodeHash:            f.codeHash,
		CodeSize:            len(f.params.Code),
		ExtraBytes:          f.params.ExtraBytes,
		Gas:                 f.params.Gas,
	}
	cfg, err := f.loadConfig()
	switch {
	case err == nil:
		info.Initialized = true
		info.BaseStorageCost = cfg.BaseStorageCost
	case !errors.Is(err, ErrNotInitialized):
		return nil, err
	}

	if info.Tokens, err = token.Count(f.db); err != nil {
		return nil, err
	}
	if info.StorageUsage, err = state.Usage(f.db); err != nil {
		return nil, err
	}
	return info, nil
}

// PendingProvisions returns the queued provisioning requests in order and
// the number of outbox entries that failed to decode.
func (f *Factory) PendingProvisions() ([]*provision.Request, int, error) {
	reqs, bad, err := provision.Pending(f.db)
	if err != nil {
		return nil, 0, err
	}
	return reqs, len(bad), nil
}

func (f *Factory) countDeposit(err error) {
	if f.metrics == nil {
		return
	}
	result := metrics.ResultOK
	if err != nil {
		result = Kind(err)
	}
	f.metrics.Deposits.WithLabelValues(result).Inc()
}

// observeState refreshes the state gauges after a commit.
func (f *Factory) observeState() {
	if f.metrics == nil {
		return
	}
	if n, err := token.Count(f.db); err == nil {
		f.metrics.Tokens.Set(float64(n))
	}
	if usage, err := state.Usage(f.db); err == nil {
		f.metrics.StorageUsage.Set(float64(usage))
	}
}
