package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fuji-cli/pkg/chain"
	"fuji-cli/pkg/history"
	"fuji-cli/pkg/parser"
	"fuji-cli/pkg/routing"
	"fuji-cli/pkg/sdk"
	"fuji-cli/pkg/store"
	"fuji-cli/pkg/types"
)

// crossChainBanner is shown once per user on cross-chain routes
const crossChainBanner = "cross-chain-routes"

type positionOptions struct {
	collateralChain string
	debtChain       string
	collateral      string
	debt            string
	vault           string
	address         string
	editing         bool
	slippage        uint32
	yes             bool
	wait            bool
	lend            bool
	dryRun          bool
}

func positionFlags(cmd *cobra.Command, opts *positionOptions) {
	cmd.Flags().StringVar(&opts.collateralChain, "chain", "ethereum", "Chain of the collateral")
	cmd.Flags().StringVar(&opts.collateral, "collateral", "", "Collateral token when the command only names a debt amount")
	cmd.Flags().StringVar(&opts.vault, "vault", "", "Vault address (defaults to the recommended one)")
	cmd.Flags().BoolVar(&opts.editing, "editing", false, "Edit an existing position instead of opening one")
	cmd.Flags().Uint32Var(&opts.slippage, "slippage", 0, "Slippage tolerance in bps (defaults to config)")
	if !opts.lend {
		cmd.Flags().StringVar(&opts.debtChain, "debt-chain", "", "Chain of the debt (defaults to --chain)")
		cmd.Flags().StringVar(&opts.debt, "debt", "", "Debt token when the command only names a collateral amount")
	}
}

func executeFlags(cmd *cobra.Command, opts *positionOptions) {
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip confirmation prompts")
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "Wait until the transaction settles")
}

var (
	borrowOpts  = positionOptions{}
	lendOpts    = positionOptions{lend: true}
	previewOpts = positionOptions{dryRun: true}
)

var borrowCmd = &cobra.Command{
	Use:   "borrow <command>",
	Short: "Deposit collateral, borrow, pay back or withdraw",
	Long: `Run an operation on a borrowing position. The operation is derived from
the amounts: collateral and debt together open or extend a position, a single
amount deposits, borrows, pays back or withdraws when --editing.

Examples:
  fuji borrow deposit 1 WETH and borrow 1000 USDC
  fuji borrow 1 WETH 1000 USDC --debt-chain optimism
  fuji borrow borrow 200 USDC --collateral WETH --editing
  fuji borrow payback 200 USDC and withdraw 0.5 WETH --editing`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPosition(cmd, args, &borrowOpts)
	},
}

var lendCmd = &cobra.Command{
	Use:   "lend <command>",
	Short: "Deposit to or withdraw from a lending vault",
	Long: `Run an operation on a lending position.

Examples:
  fuji lend 10 WETH
  fuji lend withdraw 2 WETH --editing --chain arbitrum`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPosition(cmd, args, &lendOpts)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <command>",
	Short: "Compare the routes of every vault without executing",
	Long: `Preview an operation on every vault available for the pair.

Examples:
  fuji preview deposit 1 WETH and borrow 1000 USDC
  fuji preview 10 WETH --lend`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPosition(cmd, args, &previewOpts)
	},
}

func init() {
	rootCmd.AddCommand(borrowCmd, lendCmd, previewCmd)

	positionFlags(borrowCmd, &borrowOpts)
	executeFlags(borrowCmd, &borrowOpts)
	positionFlags(lendCmd, &lendOpts)
	executeFlags(lendCmd, &lendOpts)
	positionFlags(previewCmd, &previewOpts)
	previewCmd.Flags().BoolVar(&previewOpts.lend, "lend", false, "Preview a lending position")
	previewCmd.Flags().StringVar(&previewOpts.address, "address", "", "Account to preview for (defaults to the configured key)")
}

func runPosition(cmd *cobra.Command, args []string, opts *positionOptions) error {
	// Parse the command
	parsed, err := parser.ParseCommand(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if err := parser.ValidateCommand(parsed, opts.lend); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	term := newTerminal(a.jsonOutput, opts.yes)
	a.onboard()

	if !opts.dryRun {
		if err := a.unlock(term.Confirm); err != nil {
			return err
		}
		if !a.acceptDisclaimer(term, opts.yes) {
			return fmt.Errorf("the disclaimer must be accepted before executing")
		}
	}
	account, err := a.account(opts.address)
	if err != nil && !opts.dryRun {
		return err
	}

	s, err := a.newPositionStore(ctx, parsed, opts, account, term)
	if err != nil {
		return err
	}

	// Balances and allowances are best effort for previews
	if err := s.RefreshAll(ctx); err != nil {
		a.log.WithError(err).Warn("failed to refresh balances")
	}
	if err := s.UpdateVault(ctx); err != nil {
		return err
	}
	if opts.vault != "" {
		want := common.HexToAddress(opts.vault)
		if err := s.ChangeVault(ctx, want); err != nil {
			if v := s.Snapshot().Vault; v == nil || v.Address != want {
				return err
			}
			a.log.WithError(err).Warn("failed to refresh balances")
		}
	}

	snap := s.Snapshot()
	if a.jsonOutput && opts.dryRun {
		return printJSON(newPositionView(snap))
	}
	if !a.jsonOutput {
		displayRoutes(snap)
		a.showBanner(snap)
	}
	if opts.dryRun {
		return nil
	}

	if snap.Meta.Status != types.FetchReady || snap.Meta.Route == nil {
		return store.ErrNoRoute
	}
	if !opts.yes && !a.jsonOutput && !term.ask("\nExecute this route?") {
		fmt.Println("\nCancelled.")
		return nil
	}

	hash, err := runPipeline(ctx, s)
	if chain.IsUserRejected(err) {
		// Already reported as cancelled
		return nil
	}
	if err != nil {
		return err
	}
	if err := a.prefs.RememberWallet(account.Hex()); err != nil {
		a.log.WithError(err).Warn("failed to remember wallet")
	}

	if a.jsonOutput {
		return printJSON(map[string]any{"tx": hash.Hex(), "status": history.StatusOngoing})
	}
	fmt.Printf("\n  Transaction: %s\n", color.CyanString(hash.Hex()))

	if !opts.wait {
		fmt.Println("\nYou can monitor the transaction using:")
		color.Cyan("  fuji history watch %s\n", hash.Hex())
		return nil
	}

	id := term.Pending("Waiting for the transaction to settle")
	entry, err := a.watcher().Watch(ctx, hash.Hex())
	term.Dismiss(id)
	if err != nil {
		return err
	}
	displayEntry(*entry)
	return nil
}

// runPipeline approves every side that needs it, then signs and executes
func runPipeline(ctx context.Context, s *store.Store) (common.Hash, error) {
	for _, side := range []types.AssetType{types.AssetCollateral, types.AssetDebt} {
		if !s.NeedsAllowance(side) {
			continue
		}
		if err := s.Allow(ctx, side); err != nil {
			return common.Hash{}, err
		}
	}
	return s.SignAndExecute(ctx)
}

func (a *app) newPositionStore(ctx context.Context, parsed *parser.Command, opts *positionOptions, account common.Address, term *terminal) (*store.Store, error) {
	collateralNet, err := a.network(opts.collateralChain)
	if err != nil {
		return nil, err
	}
	collateralSymbol := opts.collateral
	if parsed.Collateral != nil {
		collateralSymbol = parsed.Collateral.Symbol
	}
	if collateralSymbol == "" {
		return nil, fmt.Errorf("collateral token required, name it in the command or pass --collateral")
	}
	collateral, err := a.asset(ctx, collateralNet.ChainID, types.AssetCollateral, collateralSymbol)
	if err != nil {
		return nil, err
	}

	slippage := a.cfg.SlippageBps
	if opts.slippage != 0 {
		slippage = opts.slippage
	}
	session := a.session(account, term)

	var s *store.Store
	if opts.lend {
		s = store.NewLend(session, collateral, slippage)
	} else {
		debtChain := opts.debtChain
		if debtChain == "" {
			debtChain = opts.collateralChain
		}
		debtNet, err := a.network(debtChain)
		if err != nil {
			return nil, err
		}
		debtSymbol := opts.debt
		if parsed.Debt != nil {
			debtSymbol = parsed.Debt.Symbol
		}
		if debtSymbol == "" {
			return nil, fmt.Errorf("debt token required, name it in the command or pass --debt")
		}
		debt, err := a.asset(ctx, debtNet.ChainID, types.AssetDebt, debtSymbol)
		if err != nil {
			return nil, err
		}
		s = store.NewBorrow(session, collateral, debt, slippage)
	}

	if err := s.SetSlippage(slippage); err != nil {
		return nil, err
	}
	s.SetEditing(opts.editing)
	s.ChangeAction(parsed.Action)
	for _, side := range []types.AssetType{types.AssetCollateral, types.AssetDebt} {
		if leg := parsed.Leg(side); leg != nil {
			if err := s.ChangeInput(side, leg.Amount); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// onboard prints a short introduction on first use
func (a *app) onboard() {
	if a.jsonOutput || a.prefs.Onboarded() {
		return
	}
	color.Cyan("\nWelcome to fuji!")
	fmt.Println("Every vault for your pair is previewed and the recommended one comes first.")
	fmt.Println("Pick another with --vault, and compare them with 'fuji preview'.")
	if err := a.prefs.SetOnboarded(true); err != nil {
		a.log.WithError(err).Warn("failed to store onboarding")
	}
}

func (a *app) acceptDisclaimer(term *terminal, assumeOK bool) bool {
	if a.prefs.DisclaimerAccepted() {
		return true
	}
	if !assumeOK {
		color.Yellow("\nBorrowing and lending carry liquidation and smart contract risk.")
		fmt.Println("Routes may bridge funds between chains through third-party protocols.")
		if !term.ask("Do you accept these risks?") {
			return false
		}
	}
	if err := a.prefs.AcceptDisclaimer(); err != nil {
		a.log.WithError(err).Warn("failed to store disclaimer acceptance")
	}
	return true
}

func (a *app) showBanner(snap store.State) {
	if snap.Meta.Route == nil || !sdk.IsCrossChain(snap.Meta.Route.Steps) || a.prefs.BannerDismissed(crossChainBanner) {
		return
	}
	color.Yellow("Cross-chain routes take longer to settle. Track them with 'fuji history watch'.")
	fmt.Printf("Hide this tip with 'fuji prefs dismiss-banner %s'.\n\n", crossChainBanner)
}

// positionView is the JSON form of a previewed position
type positionView struct {
	Mode       string      `json:"mode"`
	Collateral assetView   `json:"collateral"`
	Debt       *assetView  `json:"debt,omitempty"`
	Vault      string      `json:"vault,omitempty"`
	Routes     []routeView `json:"routes"`
}

type assetView struct {
	Symbol  string `json:"symbol"`
	ChainID int64  `json:"chainId"`
	Amount  string `json:"amount"`
	Balance string `json:"balance"`
	USD     string `json:"usdValue"`
}

type routeView struct {
	Vault            string   `json:"vault"`
	Address          string   `json:"address"`
	Recommended      bool     `json:"recommended"`
	Selected         bool     `json:"selected"`
	BridgeFee        string   `json:"bridgeFee"`
	EstimateSeconds  float64  `json:"estimateSeconds"`
	EstimateSlippage string   `json:"estimateSlippagePercent"`
	Steps            []string `json:"steps"`
}

func newAssetView(a types.AssetChange) assetView {
	return assetView{
		Symbol:  a.Currency.Symbol,
		ChainID: a.Currency.ChainID,
		Amount:  a.Amount.String(),
		Balance: a.Balance().String(),
		USD:     a.USDValue().StringFixed(2),
	}
}

func newRouteView(r routing.RouteMeta, selected *types.Vault) routeView {
	steps := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		steps = append(steps, fmt.Sprintf("%s@%d", s.Step, s.ChainID))
	}
	return routeView{
		Vault:            r.Vault.Name,
		Address:          r.Vault.Address.Hex(),
		Recommended:      r.Recommended,
		Selected:         selected != nil && selected.Address == r.Vault.Address,
		BridgeFee:        r.BridgeFee.String(),
		EstimateSeconds:  r.EstimateTime.Seconds(),
		EstimateSlippage: r.EstimateSlippage.String(),
		Steps:            steps,
	}
}

func newPositionView(snap store.State) positionView {
	v := positionView{
		Mode:       snap.Mode.String(),
		Collateral: newAssetView(snap.Collateral),
	}
	if snap.Debt != nil {
		debt := newAssetView(*snap.Debt)
		v.Debt = &debt
	}
	if snap.Vault != nil {
		v.Vault = snap.Vault.Name
	}
	for _, r := range snap.Routes {
		v.Routes = append(v.Routes, newRouteView(r, snap.Vault))
	}
	return v
}

func displayRoutes(snap store.State) {
	view := newPositionView(snap)

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                 %s", view.Mode)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Collateral:  %s %s on chain %d (balance %s, ~$%s)\n",
		view.Collateral.Amount, color.YellowString(view.Collateral.Symbol), view.Collateral.ChainID,
		view.Collateral.Balance, view.Collateral.USD)
	if view.Debt != nil {
		fmt.Printf("  Debt:        %s %s on chain %d (balance %s, ~$%s)\n",
			view.Debt.Amount, color.YellowString(view.Debt.Symbol), view.Debt.ChainID,
			view.Debt.Balance, view.Debt.USD)
	}

	if len(view.Routes) == 0 {
		color.Yellow("\n  No routes available")
	}
	for _, r := range view.Routes {
		marker := " "
		if r.Selected {
			marker = "*"
		}
		name := r.Vault
		if r.Recommended {
			name += color.GreenString(" (recommended)")
		}
		fmt.Printf("\n %s %s  %s\n", marker, name, color.CyanString(r.Address))
		fmt.Printf("      Bridge fee:  %s\n", r.BridgeFee)
		fmt.Printf("      Time:        ~%.0f seconds\n", r.EstimateSeconds)
		fmt.Printf("      Slippage:    %s%%\n", r.EstimateSlippage)
		fmt.Printf("      Steps:       %s\n", strings.Join(r.Steps, " -> "))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
