package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fuji-cli/pkg/types"
)

var (
	vaultsChain     string
	vaultsDebtChain string
)

var vaultsCmd = &cobra.Command{
	Use:   "vaults <collateral> [debt]",
	Short: "List the vaults available for a pair",
	Long: `List borrowing vaults for a collateral and debt pair, or lending vaults
when only a collateral token is given.

Examples:
  fuji vaults WETH USDC
  fuji vaults WETH USDC --chain ethereum --debt-chain optimism
  fuji vaults WETH --chain arbitrum`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runVaults,
}

func init() {
	rootCmd.AddCommand(vaultsCmd)

	vaultsCmd.Flags().StringVar(&vaultsChain, "chain", "ethereum", "Chain of the collateral")
	vaultsCmd.Flags().StringVar(&vaultsDebtChain, "debt-chain", "", "Chain of the debt (defaults to --chain)")
}

func runVaults(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	network, err := a.network(vaultsChain)
	if err != nil {
		return err
	}
	collateral, err := a.asset(ctx, network.ChainID, types.AssetCollateral, args[0])
	if err != nil {
		return err
	}

	var vaults []types.Vault
	if len(args) == 1 {
		vaults, err = a.client.LendingVaultsFor(ctx, collateral.Currency)
	} else {
		vaults, err = a.borrowingVaults(cmd, collateral.Currency, args[1])
	}
	if err != nil {
		return err
	}

	if a.jsonOutput {
		return printJSON(vaults)
	}
	if len(vaults) == 0 {
		color.Yellow("\nNo vaults available for this pair")
		return nil
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	for i, v := range vaults {
		name := v.Name
		if i == 0 {
			name += color.GreenString(" (recommended)")
		}
		fmt.Printf("\n  %s\n", name)
		fmt.Printf("    Address:    %s\n", color.CyanString(v.Address.Hex()))
		fmt.Printf("    Chain:      %d\n", v.ChainID)
		fmt.Printf("    Collateral: %s\n", v.Collateral.Symbol)
		if v.Debt != nil {
			fmt.Printf("    Debt:       %s\n", v.Debt.Symbol)
		}
		if len(v.Providers) > 0 {
			fmt.Printf("    Providers:  %s\n", strings.Join(v.Providers, ", "))
		}
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
	return nil
}

func (a *app) borrowingVaults(cmd *cobra.Command, collateral types.Currency, debtSymbol string) ([]types.Vault, error) {
	debtChain := vaultsDebtChain
	if debtChain == "" {
		debtChain = vaultsChain
	}
	network, err := a.network(debtChain)
	if err != nil {
		return nil, err
	}
	debt, err := a.asset(cmd.Context(), network.ChainID, types.AssetDebt, debtSymbol)
	if err != nil {
		return nil, err
	}
	return a.client.BorrowingVaultsFor(cmd.Context(), collateral, debt.Currency)
}
