package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"fuji-cli/config"
	"fuji-cli/pkg/chain"
	"fuji-cli/pkg/client"
	"fuji-cli/pkg/history"
	"fuji-cli/pkg/logging"
	"fuji-cli/pkg/persist"
	"fuji-cli/pkg/store"
	"fuji-cli/pkg/types"
)

// app wires the configured services for one command invocation
type app struct {
	cfg        *config.Config
	log        *logrus.Logger
	db         *bolt.DB
	prefs      *persist.Prefs
	history    *history.Store
	client     *client.FujiClient
	pool       *chain.Pool
	wallet     *chain.Wallet
	jsonOutput bool
}

func newApp(cmd *cobra.Command) (*app, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	db, err := persist.Open(cfg.HistoryPath)
	if err != nil {
		return nil, err
	}
	prefs, err := persist.NewPrefs(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	hist, err := history.NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		prefs:      prefs,
		history:    hist,
		client:     client.NewFujiClient(cfg.APIURL, client.WithRetry(cfg.MaxRetries, client.DefaultBaseDelay), client.WithLogger(log)),
		pool:       chain.NewPool(cfg.Networks, log),
		jsonOutput: jsonOutput,
	}, nil
}

// unlock loads the wallet from the configured private key
func (a *app) unlock(confirm chain.ConfirmFunc) error {
	if err := a.cfg.RequireKey(); err != nil {
		return err
	}
	wallet, err := chain.NewWallet(a.pool, a.cfg.PrivateKey, confirm, a.log)
	if err != nil {
		return err
	}
	a.wallet = wallet
	return nil
}

// account returns the address given on the command line, or the wallet's
func (a *app) account(address string) (common.Address, error) {
	if address != "" {
		if !common.IsHexAddress(address) {
			return common.Address{}, fmt.Errorf("invalid address: %s", address)
		}
		return common.HexToAddress(address), nil
	}
	if a.wallet != nil {
		return a.wallet.Address(), nil
	}
	if a.cfg.PrivateKey != "" {
		if err := a.unlock(nil); err != nil {
			return common.Address{}, err
		}
		return a.wallet.Address(), nil
	}
	return common.Address{}, fmt.Errorf("no account: pass --address or configure a private key")
}

func (a *app) network(name string) (config.Network, error) {
	n, ok := a.cfg.NetworkByName(name)
	if !ok {
		names := lo.Map(a.cfg.Networks, func(n config.Network, _ int) string { return n.Name })
		return config.Network{}, fmt.Errorf("unknown chain %q (configured: %s)", name, strings.Join(names, ", "))
	}
	return n, nil
}

// asset resolves a symbol on a chain into an empty asset side whose
// selectable currencies are all tokens of that chain
func (a *app) asset(ctx context.Context, chainID int64, side types.AssetType, symbol string) (types.AssetChange, error) {
	tokens, err := a.client.Tokens(ctx, chainID, side)
	if err != nil {
		return types.AssetChange{}, err
	}
	currency, ok := lo.Find(tokens, func(c types.Currency) bool { return strings.EqualFold(c.Symbol, symbol) })
	if !ok {
		return types.AssetChange{}, fmt.Errorf("token %s not available as %s on chain %d", symbol, side, chainID)
	}
	return types.NewAssetChange(currency, tokens), nil
}

func (a *app) session(account common.Address, notifier store.Notifier) store.Session {
	s := store.Session{
		Account:  account,
		SDK:      a.client,
		Chain:    a.pool,
		History:  a.history,
		Notifier: notifier,
		Log:      a.log,
	}
	if a.wallet != nil {
		s.Wallet = a.wallet
	}
	return s
}

func (a *app) watcher() *history.Watcher {
	return history.NewWatcher(a.history, a.pool, a.client, a.log)
}

func (a *app) Close() {
	a.pool.Close()
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
}
