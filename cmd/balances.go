package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/cobra"

	"fuji-cli/pkg/balance"
	"fuji-cli/pkg/types"
)

var (
	balancesChain   string
	balancesAddress string
	balancesWatch   bool
)

var balancesCmd = &cobra.Command{
	Use:   "balances [token...]",
	Short: "Show wallet balances on a chain",
	Long: `Show native and ERC20 balances of an account. With --watch the balances
are refreshed on the configured poll interval until interrupted.

Examples:
  fuji balances --chain optimism
  fuji balances WETH USDC --watch`,
	RunE: runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)

	balancesCmd.Flags().StringVar(&balancesChain, "chain", "ethereum", "Chain to read")
	balancesCmd.Flags().StringVar(&balancesAddress, "address", "", "Account (defaults to the configured key)")
	balancesCmd.Flags().BoolVarP(&balancesWatch, "watch", "w", false, "Keep refreshing")
}

type balanceRow struct {
	Symbol  string          `json:"symbol"`
	Balance decimal.Decimal `json:"balance"`
}

func runBalances(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	account, err := a.account(balancesAddress)
	if err != nil {
		return err
	}
	network, err := a.network(balancesChain)
	if err != nil {
		return err
	}

	tokens, err := a.client.Tokens(ctx, network.ChainID, types.AssetCollateral)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		tokens = lo.Filter(tokens, func(c types.Currency, _ int) bool {
			return lo.ContainsBy(args, func(s string) bool { return strings.EqualFold(s, c.Symbol) })
		})
	}
	if len(tokens) == 0 {
		return fmt.Errorf("no matching tokens on %s", network.Name)
	}

	show := func(ctx context.Context) error {
		rows, err := iter.MapErr(tokens, func(c *types.Currency) (balanceRow, error) {
			bal, err := a.pool.Balance(ctx, *c, account)
			return balanceRow{Symbol: c.Symbol, Balance: bal}, err
		})
		if err != nil {
			return err
		}
		if a.jsonOutput {
			return printJSON(rows)
		}
		displayBalances(account, network.Name, rows)
		return nil
	}

	if !balancesWatch {
		return show(ctx)
	}

	poller := balance.NewPoller(a.cfg.PollInterval, show, a.log)
	poller.Start(ctx)
	defer poller.Stop()

	<-ctx.Done()
	return nil
}

func displayBalances(account common.Address, network string, rows []balanceRow) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("  %s on %s  %s\n", color.CyanString(account.Hex()), network, time.Now().Format(time.TimeOnly))
	fmt.Println(strings.Repeat("=", 60))
	for _, r := range rows {
		fmt.Printf("  %-10s %s\n", color.YellowString(r.Symbol), r.Balance.String())
	}
}
