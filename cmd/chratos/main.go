// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// This file is derived from cmd/kcn/main.go.
// Modified and improved for the chratos-sub002 development.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/otiai10/copy"
	"github.com/urfave/cli"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/cmd/utils"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/log"
	"github.com/chratos-system/chratos-sub002/node"
	"github.com/chratos-system/chratos-sub002/secure"
	"github.com/chratos-system/chratos-sub002/storage/database"
	"github.com/chratos-system/chratos-sub002/work"
)

var logger = log.NewModuleLogger(log.CMD)

// accountCacheHotSize and accountCacheColdBytes size the AccountCache
// every ledger is built with: a few thousand hot account records plus
// a fixed arena for the cache's cold tier, which the ledger leaves unused.
const (
	accountCacheHotSize   = 4096
	accountCacheColdBytes = 32 << 20
)

var app = utils.NewApp("the command line interface for a chratos-sub002 node")

func init() {
	app.Flags = []cli.Flag{
		utils.DataDirFlag,
		utils.ConfigFileFlag,
		utils.DaemonFlag,
		utils.InitializeFlag,
		utils.DiagnosticsFlag,
		utils.KeyCreateFlag,
		utils.KeyExpandFlag,
		utils.WalletAddFlag,
		utils.WalletListFlag,
		utils.AccountBalanceFlag,
	}
	app.Action = run
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeOf(err))
	}
}

// run dispatches on whichever single-purpose flag the caller passed.
// Exactly one of --daemon/--initialize/--diagnostics/--key_create/
// --key_expand/--wallet_add/--wallet_list/--account_balance is expected
// per invocation; this mirrors the flag-as-subcommand shape of the CLI
// surface rather than urfave/cli's nested-command shape, since every
// one of these operations is a single, non-composable action against
// one data directory.
func run(ctx *cli.Context) error {
	switch {
	case ctx.Bool(utils.InitializeFlag.Name):
		return runInitialize(ctx)
	case ctx.Bool(utils.DiagnosticsFlag.Name):
		return runDiagnostics(ctx)
	case ctx.Bool(utils.KeyCreateFlag.Name):
		return runKeyCreate(ctx)
	case ctx.String(utils.KeyExpandFlag.Name) != "":
		return runKeyExpand(ctx)
	case ctx.Bool(utils.WalletAddFlag.Name):
		return runWalletAdd(ctx)
	case ctx.Bool(utils.WalletListFlag.Name):
		return runWalletList(ctx)
	case ctx.String(utils.AccountBalanceFlag.Name) != "":
		return runAccountBalance(ctx)
	case ctx.Bool(utils.DaemonFlag.Name):
		return runDaemon(ctx)
	default:
		cli.ShowAppHelp(ctx)
		return unknownCommand(fmt.Errorf("no action flag given"))
	}
}

func runInitialize(ctx *cli.Context) error {
	dataDir := ctx.String(utils.DataDirFlag.Name)
	if dataDir == "" {
		return invalidArguments(fmt.Errorf("--data_path is required"))
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return generic(err)
	}

	if template := os.Getenv("CHRATOS_BOOTSTRAP_TEMPLATE"); template != "" {
		if err := copy.Copy(template, dataDir); err != nil {
			return generic(err)
		}
	}

	cfg := node.DefaultConfig()
	if err := node.SaveConfig(utils.ConfigPath(ctx), cfg); err != nil {
		return generic(err)
	}
	logger.Info("data directory initialized", "path", dataDir)
	return nil
}

func runKeyCreate(ctx *cli.Context) error {
	account, priv, err := newKeypair()
	if err != nil {
		return generic(err)
	}
	fmt.Printf("account: %s\nprivate_key: %x\n", account.Hex(), []byte(priv))
	return nil
}

func runKeyExpand(ctx *cli.Context) error {
	account, priv, err := expandSeed(ctx.String(utils.KeyExpandFlag.Name))
	if err != nil {
		return parseError(err)
	}
	fmt.Printf("account: %s\nprivate_key: %x\n", account.Hex(), []byte(priv))
	return nil
}

func runWalletAdd(ctx *cli.Context) error {
	path := utils.WalletPath(ctx.String(utils.DataDirFlag.Name))
	entries, err := loadWallet(path)
	if err != nil {
		return generic(err)
	}
	account, priv, err := newKeypair()
	if err != nil {
		return generic(err)
	}
	entries = append(entries, walletEntry{Account: account, PrivateKey: fmt.Sprintf("%x", []byte(priv))})
	if err := saveWallet(path, entries); err != nil {
		return generic(err)
	}
	fmt.Printf("added account: %s\n", account.Hex())
	return nil
}

func runWalletList(ctx *cli.Context) error {
	path := utils.WalletPath(ctx.String(utils.DataDirFlag.Name))
	entries, err := loadWallet(path)
	if err != nil {
		return generic(err)
	}
	for _, e := range entries {
		fmt.Println(e.Account.Hex())
	}
	return nil
}

func runAccountBalance(ctx *cli.Context) error {
	store, ledger, closeStore, err := openStoreAndLedger(ctx)
	if err != nil {
		return generic(err)
	}
	defer closeStore()

	account := common.HexToAccount(ctx.String(utils.AccountBalanceFlag.Name))
	txn, err := store.Begin(false)
	if err != nil {
		return generic(err)
	}
	defer txn.Discard()

	balance, err := ledger.AccountBalance(txn, account)
	if err != nil {
		return generic(err)
	}
	fmt.Println(balance.String())
	return nil
}

func runDiagnostics(ctx *cli.Context) error {
	n, err := buildNode(ctx, nil)
	if err != nil {
		return generic(err)
	}
	defer n.Store.Close()

	printDiagnostics(n)
	return nil
}

// runDaemon runs the node in the foreground until interrupted. It is
// the thin entrypoint for running the node: no fork/detach, pidfile,
// or service-manager integration, since full daemon bootstrap tooling
// is out of scope here.
func runDaemon(ctx *cli.Context) error {
	cfg, err := node.LoadConfig(utils.ConfigPath(ctx))
	if err != nil {
		return generic(err)
	}

	var notifier *node.Notifier
	if cfg.CallbackAddress != "" {
		callbackURL := node.CallbackURL(cfg.CallbackAddress, cfg.CallbackPort, cfg.CallbackTarget)
		notifier = node.NewNotifier(callbackURL, nil, "", node.NewInMemoryLimiter(60, time.Minute))
	}

	n, err := buildNode(ctx, notifier)
	if err != nil {
		return generic(err)
	}

	n.Start()
	logger.Info("daemon running", "peering_port", n.Config.PeeringPort)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig

	n.Stop()
	n.Store.Close()
	return nil
}

// openStoreAndLedger opens the on-disk store and the ledger built on
// top of it, for --account_balance, which needs a store but not a full
// Node (--diagnostics builds a full Node instead).
func openStoreAndLedger(ctx *cli.Context) (database.Store, *secure.Ledger, func(), error) {
	dataDir := ctx.String(utils.DataDirFlag.Name)
	if dataDir == "" {
		return nil, nil, nil, fmt.Errorf("--data_path is required")
	}
	store, err := database.Open(database.BadgerDB, filepath.Join(dataDir, "chain"))
	if err != nil {
		return nil, nil, nil, err
	}

	cfg, err := node.LoadConfig(utils.ConfigPath(ctx))
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	ledger := secure.NewLedger(store, cfg.EpochBlockLink, cfg.EpochBlockSigner, work.PublishFullThreshold)
	if cache, err := database.NewAccountCache(accountCacheHotSize, accountCacheColdBytes); err == nil {
		ledger.SetCache(cache)
	}
	return store, ledger, func() { store.Close() }, nil
}

// buildNode wires a full Node (store, ledger, wallet, work pool and
// election manager) the way --daemon and --diagnostics both need it,
// differing only in whether the caller starts it.
func buildNode(ctx *cli.Context, notifier *node.Notifier) (*node.Node, error) {
	dataDir := ctx.String(utils.DataDirFlag.Name)
	if dataDir == "" {
		return nil, fmt.Errorf("--data_path is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}

	cfg, err := node.LoadConfig(utils.ConfigPath(ctx))
	if err != nil {
		return nil, err
	}

	store, err := database.Open(database.BadgerDB, filepath.Join(dataDir, "chain"))
	if err != nil {
		return nil, err
	}

	ledger := secure.NewLedger(store, cfg.EpochBlockLink, cfg.EpochBlockSigner, work.PublishFullThreshold)
	if cache, err := database.NewAccountCache(accountCacheHotSize, accountCacheColdBytes); err == nil {
		ledger.SetCache(cache)
	}

	entries, err := loadWallet(utils.WalletPath(dataDir))
	if err != nil {
		store.Close()
		return nil, err
	}
	w := &wallet{entries: entries}

	publish := func(v *types.Vote) error {
		logger.Debug("vote generated", "account", v.Account.Hex())
		return nil
	}

	n := node.New(cfg, store, ledger, w, publish, work.PublishFullThreshold, nil, notifier)
	return n, nil
}
