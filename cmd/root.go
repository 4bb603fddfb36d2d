package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fuji",
	Short: "A CLI for cross-chain borrowing and lending",
	Long: `fuji previews and executes cross-chain borrow and lend operations. It
derives the operation from the amounts you give, compares the routes of every
vault for the pair and runs the approve, sign and execute steps with your key.

Examples:
  fuji vaults WETH USDC
  fuji preview deposit 1 WETH and borrow 1000 USDC --debt-chain optimism
  fuji borrow deposit 1 WETH and borrow 1000 USDC
  fuji lend 10 WETH --chain arbitrum
  fuji history watch`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// PrintError prints a command error
func PrintError(err error) {
	color.Red("\nError: %v\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
