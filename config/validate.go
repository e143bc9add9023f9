package config

import (
	"fmt"
	"net/url"

	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.Factory.AccountID != "" && !types.IsValidAccountID(cfg.Factory.AccountID) {
		return fmt.Errorf("factory.account %q is not a valid account id", cfg.Factory.AccountID)
	}
	if cfg.Factory.CodePath == "" {
		return fmt.Errorf("factory.code is required")
	}

	if cfg.Provision.Endpoint != "" {
		u, err := url.Parse(cfg.Provision.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("provision.endpoint must be an http(s) URL")
		}
	}
	if cfg.Provision.Method == "" {
		cfg.Provision.Method = DefaultProvisionMethod
	}
	if cfg.Provision.Interval <= 0 {
		return fmt.Errorf("provision.interval must be positive")
	}
	if cfg.Provision.Timeout <= 0 {
		return fmt.Errorf("provision.timeout must be positive")
	}

	return RulesFor(cfg).Validate()
}
