// Package node provides a reusable factory node that can be embedded
// in any binary (daemon, tests, etc.).
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Klingon-tech/tokenfactory/config"
	"github.com/Klingon-tech/tokenfactory/internal/factory"
	klog "github.com/Klingon-tech/tokenfactory/internal/log"
	"github.com/Klingon-tech/tokenfactory/internal/metrics"
	"github.com/Klingon-tech/tokenfactory/internal/provision"
	"github.com/Klingon-tech/tokenfactory/internal/rpc"
	"github.com/Klingon-tech/tokenfactory/internal/rpcclient"
	"github.com/Klingon-tech/tokenfactory/internal/storage"
	"github.com/rs/zerolog"
)

// Node is a fully-initialized factory node.
type Node struct {
	cfg    *config.Config
	rules  *config.FactoryRules
	logger zerolog.Logger

	// Core
	db      storage.DB
	factory *factory.Factory
	metrics *metrics.Metrics

	// Provisioning
	dispatcher *provision.Dispatcher

	// RPC
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, storage, factory, provisioning, RPC) but does NOT start the
// provisioning dispatcher. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "factory.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.Node

	// ── 2. Factory rules and code ───────────────────────────────────
	rules := config.RulesFor(cfg)
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("factory rules: %w", err)
	}
	code, err := loadCode(cfg.Factory.CodePath)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("factory", rules.AccountID).
		Str("network", string(cfg.Network)).
		Str("storage_price", rules.StoragePricePerByte.String()).
		Int("code_size", len(code)).
		Msg("Starting Token Factory Node")

	// ── 3. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.DBDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.DBDir(), err)
	}
	state := storage.NewPrefixDB(db, FactoryPrefix(rules.AccountID))
	logger.Info().Str("path", cfg.DBDir()).Msg("Database opened")

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:    cfg,
		rules:  rules,
		logger: logger,
		db:     db,
		ctx:    ctx,
		cancel: cancel,
	}

	// ── 4. Metrics ──────────────────────────────────────────────────
	if cfg.Metrics.Enabled {
		n.metrics = metrics.New()
	}

	// ── 5. Provisioning ─────────────────────────────────────────────
	var provisioner provision.Provisioner
	if cfg.Provision.DryRun() {
		provisioner = provision.NewLogProvisioner(klog.Provision)
		logger.Warn().Msg("Provisioning in dry-run mode, requests are logged and dropped")
	} else {
		client := rpcclient.NewWithTimeout(cfg.Provision.Endpoint, cfg.Provision.Timeout)
		provisioner = provision.NewRPCProvisioner(client, cfg.Provision.Method, code)
		logger.Info().
			Str("endpoint", cfg.Provision.Endpoint).
			Str("method", cfg.Provision.Method).
			Msg("Provisioning via host RPC")
	}
	n.dispatcher = provision.NewDispatcher(provision.DispatcherConfig{
		DB:           state,
		Provisioner:  provisioner,
		PollInterval: cfg.Provision.Interval,
		Metrics:      n.metrics,
		Logger:       klog.WithFactory("provision", rules.AccountID),
	})

	// ── 6. Factory ──────────────────────────────────────────────────
	opts := []factory.Option{factory.WithNotifier(n.dispatcher.Notify)}
	if n.metrics != nil {
		opts = append(opts, factory.WithMetrics(n.metrics))
	}
	n.factory, err = factory.New(state, factory.Params{
		AccountID:           rules.AccountID,
		StoragePricePerByte: rules.StoragePricePerByte,
		Code:                code,
		ExtraBytes:          rules.ExtraBytes,
		Gas:                 rules.Gas,
	}, opts...)
	if err != nil {
		n.close()
		return nil, fmt.Errorf("create factory: %w", err)
	}

	fcfg, err := n.factory.Config()
	switch {
	case errors.Is(err, factory.ErrNotInitialized):
		if fcfg, err = n.factory.Initialize(ctx); err != nil {
			n.close()
			return nil, fmt.Errorf("initialize factory: %w", err)
		}
	case err != nil:
		n.close()
		return nil, fmt.Errorf("load factory config: %w", err)
	default:
		logger.Info().Msg("Factory resumed from database")
	}
	logger.Info().
		Str("base_storage_cost", fcfg.BaseStorageCost.String()).
		Str("code_hash", n.factory.CodeHash().String()).
		Msg("Factory ready")

	// ── 7. RPC ──────────────────────────────────────────────────────
	if cfg.RPC.Enabled {
		n.rpcServer = rpc.New(cfg.RPCListenAddr(), n.factory, cfg.RPC)
		if n.metrics != nil {
			n.rpcServer.SetMetrics(n.metrics)
		}
		if err := n.rpcServer.Start(); err != nil {
			n.close()
			return nil, fmt.Errorf("start rpc: %w", err)
		}
		logger.Info().Str("addr", n.rpcServer.Addr()).Msg("RPC server started")
	}

	return n, nil
}

// Start launches the provisioning dispatcher.
func (n *Node) Start() error {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.dispatcher.Run(n.ctx)
	}()

	info, err := n.factory.Info()
	if err != nil {
		return fmt.Errorf("factory info: %w", err)
	}
	n.logger.Info().
		Uint64("tokens", info.Tokens).
		Uint64("storage_usage", info.StorageUsage).
		Bool("dry_run", n.cfg.Provision.DryRun()).
		Msg("Node started successfully")

	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()
	n.close()
	n.logger.Info().Msg("Goodbye!")
}

func (n *Node) close() {
	n.cancel()
	if n.rpcServer != nil {
		n.rpcServer.Stop()
		n.rpcServer = nil
	}
	if n.db != nil {
		n.db.Close()
		n.db = nil
	}
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Factory returns the node's factory instance.
func (n *Node) Factory() *factory.Factory {
	return n.factory
}

// Rules returns the factory rules the node runs with.
func (n *Node) Rules() *config.FactoryRules {
	return n.rules
}
