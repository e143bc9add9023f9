// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Factory rules: pricing and gas per network, fixed for the lifetime
//     of a deployed factory
//   - Node settings: runtime configuration, can vary per node
package config

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Factory instance
	Factory FactoryConfig

	// RPC server
	RPC RPCConfig

	// Provisioning dispatcher
	Provision ProvisionConfig

	// Prometheus metrics
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// FactoryConfig selects the factory account and the token contract code.
type FactoryConfig struct {
	AccountID string `conf:"factory.account"` // Empty = network default.
	CodePath  string `conf:"factory.code"`    // Token contract binary.
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// ProvisionConfig controls how queued provisioning requests reach the host.
type ProvisionConfig struct {
	Endpoint string        `conf:"provision.endpoint"` // Host RPC URL. Empty = log only.
	Method   string        `conf:"provision.method"`
	Interval time.Duration `conf:"provision.interval"`
	Timeout  time.Duration `conf:"provision.timeout"`
}

// DryRun reports whether requests are only logged.
func (p ProvisionConfig) DryRun() bool {
	return p.Endpoint == ""
}

// MetricsConfig holds Prometheus settings. Metrics are served on the RPC
// listener under /metrics.
type MetricsConfig struct {
	Enabled bool `conf:"metrics.enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// RPCListenAddr returns the host:port the RPC server binds to.
func (c *Config) RPCListenAddr() string {
	return net.JoinHostPort(c.RPC.Addr, strconv.Itoa(c.RPC.Port))
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.tokenfactory
//	macOS:   ~/Library/Application Support/TokenFactory
//	Windows: %APPDATA%\TokenFactory
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tokenfactory"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "TokenFactory")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "TokenFactory")
		}
		return filepath.Join(home, "AppData", "Roaming", "TokenFactory")
	default:
		return filepath.Join(home, ".tokenfactory")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DBDir returns the state database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.NetworkDataDir(), "db")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "factory.conf")
}
