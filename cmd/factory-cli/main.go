// Token factory CLI.
//
// Usage:
//
//	factory-cli [--rpc=<url>] <command> [flags]
//
// Commands:
//
//	info                              Factory configuration and usage
//	deposit   --account --amount      Attach a storage deposit
//	balance   --account               Storage credit of an account
//	required  --account [token flags] Deposit still needed to create a token
//	create    --account [token flags] Register a token and provision it
//	tokens    [--from] [--limit]      List registered tokens
//	token     --id                    Show one token
//	pending                           Provisioning requests not yet delivered
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Klingon-tech/tokenfactory/internal/factory"
	"github.com/Klingon-tech/tokenfactory/internal/rpc"
	"github.com/Klingon-tech/tokenfactory/internal/rpcclient"
	"github.com/Klingon-tech/tokenfactory/internal/token"
	"github.com/Klingon-tech/tokenfactory/pkg/types"
)

const defaultRPC = "http://127.0.0.1:8555"

func main() {
	rpcURL := defaultRPC

	// Global flags come before the command.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = strings.TrimPrefix(args[0], "--rpc=")
			args = args[1:]
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.New(rpcURL)
	cmd, cmdArgs := args[0], args[1:]

	switch cmd {
	case "info":
		cmdInfo(client)
	case "deposit":
		cmdDeposit(client, cmdArgs)
	case "balance":
		cmdBalance(client, cmdArgs)
	case "required":
		cmdRequired(client, cmdArgs)
	case "create":
		cmdCreate(client, cmdArgs)
	case "tokens":
		cmdTokens(client, cmdArgs)
	case "token":
		cmdToken(client, cmdArgs)
	case "pending":
		cmdPending(client)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: factory-cli [--rpc=<url>] <command> [flags]

Commands:
  info        Factory configuration and usage
  deposit     Attach a storage deposit (--account, --amount)
  balance     Storage credit of an account (--account)
  required    Deposit still needed to create a token (--account, token flags)
  create      Register a token and provision it (--account, --attached, token flags)
  tokens      List registered tokens (--from, --limit)
  token       Show one token (--id)
  pending     Provisioning requests not yet delivered

Token flags:
  --symbol, --name, --owner, --supply, --decimals,
  --spec, --icon, --reference, --reference-hash, --description

Global flags:
  --rpc       JSON-RPC endpoint (default %s)
`, defaultRPC)
}

func cmdInfo(client *rpcclient.Client) {
	var info factory.Info
	if err := client.Call("factory_getInfo", nil, &info); err != nil {
		fatal("%v", err)
	}
	printResult(&info)
}

func cmdDeposit(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("deposit", flag.ExitOnError)
	account := fs.String("account", "", "Depositing account")
	amount := fs.String("amount", "", "Attached amount in yocto units")
	fs.Parse(args)

	if *account == "" || *amount == "" {
		fatal("--account and --amount are required")
	}
	attached, err := types.ParseBalance(*amount)
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	var res rpc.StorageBalanceResult
	if err := client.Call("factory_storageDeposit", rpc.DepositParam{
		AccountID: *account,
		Attached:  attached,
	}, &res); err != nil {
		fatal("%v", err)
	}
	printResult(&res)
}

func cmdBalance(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	account := fs.String("account", "", "Account to query")
	fs.Parse(args)

	if *account == "" {
		fatal("--account is required")
	}

	var res rpc.StorageBalanceResult
	if err := client.Call("factory_storageBalanceOf", rpc.AccountParam{AccountID: *account}, &res); err != nil {
		fatal("%v", err)
	}
	printResult(&res)
}

func cmdRequired(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("required", flag.ExitOnError)
	account := fs.String("account", "", "Requesting account")
	tf := addTokenFlags(fs)
	fs.Parse(args)

	if *account == "" {
		fatal("--account is required")
	}
	rec, err := tf.record()
	if err != nil {
		fatal("%v", err)
	}

	var res rpc.RequiredDepositResult
	if err := client.Call("factory_getRequiredDeposit", rpc.RequiredDepositParam{
		AccountID: *account,
		Token:     rec,
	}, &res); err != nil {
		fatal("%v", err)
	}
	printResult(&res)
}

func cmdCreate(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	account := fs.String("account", "", "Creating account")
	attached := fs.String("attached", "0", "Attached payment in yocto units, or \"auto\" for the required deposit")
	tf := addTokenFlags(fs)
	fs.Parse(args)

	if *account == "" {
		fatal("--account is required")
	}
	rec, err := tf.record()
	if err != nil {
		fatal("%v", err)
	}

	var amount types.Balance
	if *attached == "auto" {
		var req rpc.RequiredDepositResult
		if err := client.Call("factory_getRequiredDeposit", rpc.RequiredDepositParam{
			AccountID: *account,
			Token:     rec,
		}, &req); err != nil {
			fatal("%v", err)
		}
		amount = req.Required
	} else {
		amount, err = types.ParseBalance(*attached)
		if err != nil {
			fatal("invalid attached amount: %v", err)
		}
	}

	var receipt factory.Receipt
	if err := client.Call("factory_createToken", rpc.CreateTokenParam{
		AccountID: *account,
		Attached:  amount,
		Token:     rec,
	}, &receipt); err != nil {
		fatal("%v", err)
	}
	printResult(&receipt)
}

func cmdTokens(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("tokens", flag.ExitOnError)
	from := fs.Uint64("from", 0, "Index of the first token")
	limit := fs.Uint64("limit", 0, "Maximum number of tokens (0 = server default)")
	fs.Parse(args)

	var res rpc.TokensResult
	if err := client.Call("factory_getTokens", rpc.TokensParam{FromIndex: *from, Limit: *limit}, &res); err != nil {
		fatal("%v", err)
	}
	printResult(&res)
}

func cmdToken(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	id := fs.String("id", "", "Token id")
	fs.Parse(args)

	if *id == "" {
		fatal("--id is required")
	}

	var rec *token.Record
	if err := client.Call("factory_getToken", rpc.TokenParam{TokenID: *id}, &rec); err != nil {
		fatal("%v", err)
	}
	if rec == nil {
		fatal("token %q is not registered", *id)
	}
	printResult(rec)
}

func cmdPending(client *rpcclient.Client) {
	var res rpc.PendingResult
	if err := client.Call("factory_getPendingProvisions", nil, &res); err != nil {
		fatal("%v", err)
	}
	printResult(&res)
}

// printResult writes v as JSON, indented when stdout is a terminal.
func printResult(v interface{}) {
	var (
		data []byte
		err  error
	)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		fatal("encode result: %v", err)
	}
	fmt.Println(string(data))
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
