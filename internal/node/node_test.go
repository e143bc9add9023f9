package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/tokenfactory/config"
	"github.com/Klingon-tech/tokenfactory/internal/factory"
	"github.com/Klingon-tech/tokenfactory/internal/provision"
	"github.com/Klingon-tech/tokenfactory/internal/rpc"
	"github.com/Klingon-tech/tokenfactory/internal/rpcclient"
	"github.com/Klingon-tech/tokenfactory/internal/token"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		input, want string
	}{
		{"~/foo/bar", filepath.Join(home, "foo/bar")},
		{"~/.tokenfactory/token.wasm", filepath.Join(home, ".tokenfactory/token.wasm")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoadCode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.wasm")
	if err := os.WriteFile(path, []byte("\x00asm"), 0644); err != nil {
		t.Fatal(err)
	}
	code, err := loadCode(path)
	if err != nil || string(code) != "\x00asm" {
		t.Fatalf("loadCode = %q, %v", code, err)
	}

	if _, err := loadCode(filepath.Join(dir, "missing.wasm")); err == nil {
		t.Error("expected error for missing file")
	}
	empty := filepath.Join(dir, "empty.wasm")
	os.WriteFile(empty, nil, 0644)
	if _, err := loadCode(empty); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestFactoryPrefix(t *testing.T) {
	if got := string(FactoryPrefix("tokens.near")); got != "f/tokens.near/" {
		t.Errorf("FactoryPrefix = %q", got)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	codePath := filepath.Join(dir, "token.wasm")
	if err := os.WriteFile(codePath, []byte("token contract code"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultTestnet()
	cfg.DataDir = dir
	cfg.Factory.CodePath = codePath
	cfg.RPC.Port = 0
	cfg.RPC.AllowedIPs = nil
	cfg.Provision.Interval = 20 * time.Millisecond
	cfg.Log.Level = "error"
	if err := config.EnsureDataDirs(cfg); err != nil {
		t.Fatal(err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func testRecord() *token.Record {
	return &token.Record{
		TokenID:     "abc",
		OwnerID:     "alice.testnet",
		TotalSupply: types.NewBalance(1_000_000),
		Metadata:    token.Metadata{Spec: token.MetadataSpec, Name: "Abc", Symbol: "ABC", Decimals: 6},
	}
}

func waitNoPending(t *testing.T, f *factory.Factory) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		reqs, _, err := f.PendingProvisions()
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if len(reqs) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("outbox not drained")
}

func TestNode_DryRunLifecycle(t *testing.T) {
	cfg := testConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client := rpcclient.New("http://" + n.RPCAddr() + "/")
	var info factory.Info
	if err := client.Call("factory_getInfo", nil, &info); err != nil {
		t.Fatalf("getInfo: %v", err)
	}
	if !info.Initialized || info.AccountID != "tokens.testnet" {
		t.Fatalf("info = %+v", info)
	}

	rec := testRecord()
	owed, err := n.Factory().GetRequiredDeposit(rec, "bob.testnet")
	if err != nil {
		t.Fatal(err)
	}
	var receipt factory.Receipt
	if err := client.Call("factory_createToken", rpc.CreateTokenParam{
		AccountID: "bob.testnet", Attached: owed, Token: rec,
	}, &receipt); err != nil {
		t.Fatalf("createToken: %v", err)
	}
	waitNoPending(t, n.Factory())
	n.Stop()

	// State survives a restart and the factory is not re-initialized.
	n, err = New(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer n.Stop()
	if count, _ := n.Factory().NumberOfTokens(); count != 1 {
		t.Errorf("tokens after restart = %d", count)
	}
	cfgAfter, _ := n.Factory().Config()
	if !cfgAfter.BaseStorageCost.Equal(info.BaseStorageCost) {
		t.Errorf("base cost changed across restart")
	}
}

func TestNode_ProvisionsThroughHost(t *testing.T) {
	var (
		mu      sync.Mutex
		batches []provision.ActionBatch
	)
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string                `json:"method"`
			Params provision.ActionBatch `json:"params"`
			ID     uint64                `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		batches = append(batches, req.Params)
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "result": true, "id": req.ID})
	}))
	defer host.Close()

	cfg := testConfig(t)
	cfg.Provision.Endpoint = host.URL
	cfg.RPC.Enabled = false

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Stop()
	if n.RPCAddr() != "" {
		t.Error("RPC should be disabled")
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rec := testRecord()
	owed, _ := n.Factory().GetRequiredDeposit(rec, "bob.testnet")
	receipt, err := n.Factory().CreateToken(context.Background(),
		factory.Call{Predecessor: "bob.testnet", Attached: owed}, rec)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	waitNoPending(t, n.Factory())

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("host received %d batches, want 1", len(batches))
	}
	b := batches[0]
	if b.ReceiverID != "abc.tokens.testnet" || b.SignerID != "tokens.testnet" || b.RequestID != receipt.RequestID {
		t.Errorf("batch = %+v", b)
	}
	if len(b.Actions) != 4 || b.Actions[3].Method != provision.InitMethod {
		t.Fatalf("actions = %+v", b.Actions)
	}
	if b.Actions[1].Deposit == nil || !b.Actions[1].Deposit.Equal(receipt.Forwarded) {
		t.Errorf("transfer = %v, want %s", b.Actions[1].Deposit, receipt.Forwarded)
	}
}

func TestNode_MissingCode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Factory.CodePath = filepath.Join(cfg.DataDir, "missing.wasm")
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for missing token code")
	}
}
