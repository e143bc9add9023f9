package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultMainnet()
	cfg.DataDir = t.TempDir()
	cfg.Factory.CodePath = "token.wasm"
	return cfg
}

func TestDefaults(t *testing.T) {
	main := DefaultMainnet()
	test := DefaultTestnet()
	if main.Network != Mainnet || test.Network != Testnet {
		t.Fatalf("networks = %s, %s", main.Network, test.Network)
	}
	if main.RPC.Port == test.RPC.Port {
		t.Error("mainnet and testnet share an RPC port")
	}
	if main.Provision.Interval != DefaultProvisionInterval {
		t.Errorf("interval = %v", main.Provision.Interval)
	}
	if !main.Provision.DryRun() {
		t.Error("default config should be dry run")
	}
	if got := Default("bogus").Network; got != Mainnet {
		t.Errorf("Default(bogus) = %s, want mainnet", got)
	}
}

func TestRules(t *testing.T) {
	for _, network := range []NetworkType{Mainnet, Testnet} {
		r := Rules(network)
		if err := r.Validate(); err != nil {
			t.Errorf("%s rules invalid: %v", network, err)
		}
	}
	if Rules(Testnet).AccountID == Rules(Mainnet).AccountID {
		t.Error("networks share a factory account")
	}

	cfg := DefaultTestnet()
	cfg.Factory.AccountID = "my-factory.testnet"
	if got := RulesFor(cfg).AccountID; got != "my-factory.testnet" {
		t.Errorf("RulesFor override = %s", got)
	}

	r := MainnetRules()
	r.Gas = 0
	if err := r.Validate(); err == nil {
		t.Error("zero gas should be invalid")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"network", func(c *Config) { c.Network = "devnet" }, "network"},
		{"port", func(c *Config) { c.RPC.Port = 70000 }, "rpc.port"},
		{"account", func(c *Config) { c.Factory.AccountID = "Bad Account" }, "factory.account"},
		{"no code", func(c *Config) { c.Factory.CodePath = "" }, "factory.code"},
		{"endpoint", func(c *Config) { c.Provision.Endpoint = "ftp://host" }, "provision.endpoint"},
		{"interval", func(c *Config) { c.Provision.Interval = 0 }, "provision.interval"},
		{"https endpoint", func(c *Config) { c.Provision.Endpoint = "https://rpc.example.org/" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}

	if err := Validate(nil); err == nil {
		t.Error("Validate(nil) should fail")
	}
}

func TestValidate_DefaultsMethod(t *testing.T) {
	cfg := validConfig(t)
	cfg.Provision.Method = ""
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Provision.Method != DefaultProvisionMethod {
		t.Errorf("method = %q", cfg.Provision.Method)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factory.conf")
	content := `# comment
network = testnet
factory.account = "my.testnet"
factory.code = /opt/token.wasm
rpc.port = 9000
rpc.allowed = 127.0.0.1, 10.0.0.0/8
provision.endpoint = http://127.0.0.1:3030/
provision.interval = 2s
metrics.enabled = false
log.json = yes
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if values["factory.account"] != "my.testnet" {
		t.Errorf("quotes not stripped: %q", values["factory.account"])
	}

	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.Network != Testnet || cfg.Factory.CodePath != "/opt/token.wasm" || cfg.RPC.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.0/8" {
		t.Errorf("allowed = %v", cfg.RPC.AllowedIPs)
	}
	if cfg.Provision.Interval != 2*time.Second || cfg.Provision.DryRun() {
		t.Errorf("provision = %+v", cfg.Provision)
	}
	if cfg.Metrics.Enabled || !cfg.Log.JSON {
		t.Errorf("metrics %v, log json %v", cfg.Metrics.Enabled, cfg.Log.JSON)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil || len(values) != 0 {
		t.Fatalf("LoadFile(missing) = %v, %v", values, err)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factory.conf")
	os.WriteFile(path, []byte("rpc.port\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyFileConfig_BadValue(t *testing.T) {
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, map[string]string{"provision.timeout": "soon"}); err == nil {
		t.Fatal("expected duration error")
	}
}

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{
		"--testnet",
		"--factory-code=./token.wasm",
		"--rpc-port=9100",
		"--metrics=false",
		"--provision-endpoint=http://host:3030/",
		"--dry-run",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	cfg := DefaultMainnet()
	ApplyFlags(cfg, f)
	if cfg.Network != Testnet || cfg.Factory.CodePath != "./token.wasm" || cfg.RPC.Port != 9100 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Metrics.Enabled {
		t.Error("--metrics=false not applied")
	}
	if !cfg.Provision.DryRun() {
		t.Error("--dry-run should clear the endpoint")
	}
	if cfg.RPC.Enabled != true {
		t.Error("rpc should stay enabled when the flag is unset")
	}
}

func TestParseFlags_StrayFlag(t *testing.T) {
	if _, err := parseFlags([]string{"extra", "--rpc-port=1"}, io.Discard); err == nil {
		t.Fatal("expected error for flag after positional argument")
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultMainnet()
	cfg.DataDir = dir
	if err := EnsureDataDirs(cfg); err != nil {
		t.Fatalf("EnsureDataDirs: %v", err)
	}
	if _, err := os.Stat(cfg.ConfigFile()); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if _, err := os.Stat(cfg.DBDir()); err != nil {
		t.Fatalf("db dir not created: %v", err)
	}

	// File sets code and port; the flag overrides the port.
	f, _ := os.OpenFile(cfg.ConfigFile(), os.O_APPEND|os.O_WRONLY, 0644)
	f.WriteString("factory.code = file.wasm\nrpc.port = 9001\n")
	f.Close()

	flags, err := parseFlags([]string{"--datadir=" + dir, "--rpc-port=9002"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	got, err := load(flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Factory.CodePath != "file.wasm" || got.RPC.Port != 9002 {
		t.Errorf("code %q, port %d", got.Factory.CodePath, got.RPC.Port)
	}

	fromFile, err := LoadFromFile(dir, Mainnet)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if fromFile.RPC.Port != 9001 {
		t.Errorf("LoadFromFile port = %d", fromFile.RPC.Port)
	}
}

func TestLoad_RequiresCode(t *testing.T) {
	flags, _ := parseFlags([]string{"--datadir=" + t.TempDir()}, io.Discard)
	if _, err := load(flags); err == nil || !strings.Contains(err.Error(), "factory.code") {
		t.Fatalf("load = %v, want factory.code error", err)
	}
}

func TestRPCListenAddr(t *testing.T) {
	cfg := DefaultMainnet()
	if got := cfg.RPCListenAddr(); got != "127.0.0.1:8555" {
		t.Errorf("RPCListenAddr = %s", got)
	}
}
