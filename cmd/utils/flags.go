// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// This file is derived from cmd/utils/flags.go.
// Modified and improved for the chratos-sub002 development.

// Package utils holds the CLI flag definitions and small helpers shared
// across the cmd/chratos entrypoint, the same split the teacher keeps
// between its node binaries and cmd/utils.
package utils

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/chratos-system/chratos-sub002/node"
)

// NewApp builds the skeleton cli.App every subcommand attaches itself
// to, naming the binary after os.Args[0] the way the teacher's NewApp
// does.
func NewApp(usage string) *cli.App {
	app := cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.Usage = usage
	app.HideVersion = true
	return app
}

var (
	DataDirFlag = cli.StringFlag{
		Name:  "data_path",
		Usage: "Data directory for the node's store, config, and wallet",
		Value: node.DefaultDataDir(),
	}
	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "JSON configuration file path (default: <data_path>/config.json)",
	}
	DaemonFlag = cli.BoolFlag{
		Name:  "daemon",
		Usage: "Run the node in the foreground, processing blocks and votes until interrupted",
	}
	InitializeFlag = cli.BoolFlag{
		Name:  "initialize",
		Usage: "Create a fresh data directory with a default config, first copying in the template directory named by CHRATOS_BOOTSTRAP_TEMPLATE if set",
	}
	DiagnosticsFlag = cli.BoolFlag{
		Name:  "diagnostics",
		Usage: "Print a snapshot of store, election, and work-pool counters and exit",
	}
	KeyCreateFlag = cli.BoolFlag{
		Name:  "key_create",
		Usage: "Generate a new ed25519 representative key and print it",
	}
	KeyExpandFlag = cli.StringFlag{
		Name:  "key_expand",
		Usage: "Expand a hex-encoded ed25519 seed into its full keypair and account",
	}
	WalletAddFlag = cli.BoolFlag{
		Name:  "wallet_add",
		Usage: "Generate a new representative key and append it to the wallet file",
	}
	WalletListFlag = cli.BoolFlag{
		Name:  "wallet_list",
		Usage: "List every account held in the wallet file",
	}
	AccountBalanceFlag = cli.StringFlag{
		Name:  "account_balance",
		Usage: "Print the current ledger balance of the given account (hex)",
	}
)

// WalletPath returns the default wallet file location under dataDir.
func WalletPath(dataDir string) string {
	return filepath.Join(dataDir, "wallet.json")
}

// ConfigPath returns the effective config path: the --config flag value
// if set, else <data_path>/config.json.
func ConfigPath(ctx *cli.Context) string {
	if p := ctx.GlobalString(ConfigFileFlag.Name); p != "" {
		return p
	}
	return filepath.Join(ctx.GlobalString(DataDirFlag.Name), "config.json")
}
