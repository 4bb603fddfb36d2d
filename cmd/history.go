package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fuji-cli/pkg/history"
)

var (
	historyAddress string
	historyYes     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and follow submitted transactions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the transactions of an account, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyWatchCmd = &cobra.Command{
	Use:   "watch [tx-hash]",
	Short: "Follow a transaction, or every ongoing one, until it settles",
	Long: `Follow a transaction until it settles on its source chain and, for
cross-chain routes, on the destination chain.

Examples:
  fuji history watch 0x1234...abcd
  fuji history watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistoryWatch,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the transactions of an account",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyWatchCmd, historyClearCmd)

	historyCmd.PersistentFlags().StringVar(&historyAddress, "address", "", "Account (defaults to the configured key)")
	historyClearCmd.Flags().BoolVarP(&historyYes, "yes", "y", false, "Skip confirmation prompt")
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	account, err := a.account(historyAddress)
	if err != nil {
		return err
	}
	entries, err := a.history.List(account)
	if err != nil {
		return err
	}

	if a.jsonOutput {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("\nNo transactions yet.")
		return nil
	}
	for _, e := range entries {
		displayEntry(e)
	}
	return nil
}

func runHistoryWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	w := a.watcher()
	w.OnUpdate(func(e history.Entry) {
		if a.jsonOutput {
			_ = printJSON(e)
			return
		}
		displayEntry(e)
	})

	if len(args) == 1 {
		_, err := w.Watch(ctx, args[0])
		return err
	}

	n, err := w.Resume(ctx)
	if err != nil {
		return err
	}
	if !a.jsonOutput {
		printSuccess(fmt.Sprintf("%d transaction(s) settled", n))
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	account, err := a.account(historyAddress)
	if err != nil {
		return err
	}
	if !historyYes && !newTerminal(false, false).ask(fmt.Sprintf("\nRemove the history of %s?", account.Hex())) {
		fmt.Println("\nCancelled.")
		return nil
	}

	n, err := a.history.Clear(account)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Removed %d transaction(s)", n))
	return nil
}

func displayEntry(e history.Entry) {
	status := e.Status
	var statusText string
	switch status {
	case history.StatusSuccess:
		statusText = color.GreenString(string(status))
	case history.StatusFailure:
		statusText = color.RedString(string(status))
	default:
		statusText = color.YellowString(string(status))
	}

	fmt.Println("\n" + strings.Repeat("-", 60))
	fmt.Printf("  %s  %s\n", color.CyanString(e.Hash), statusText)
	fmt.Printf("  Mode:        %s\n", e.Mode)
	fmt.Printf("  Vault:       %s %s\n", e.VaultName, e.VaultAddress)
	fmt.Printf("  Source:      chain %d, %s\n", e.Source.ChainID, e.Source.Status)
	if e.Destination != nil {
		dest := fmt.Sprintf("chain %d, %s", e.Destination.ChainID, e.Destination.Status)
		if e.Destination.Hash != "" {
			dest += " (" + e.Destination.Hash + ")"
		}
		fmt.Printf("  Destination: %s\n", dest)
	}
	if e.Error != "" {
		fmt.Printf("  Error:       %s\n", color.RedString(e.Error))
	}
	fmt.Printf("  Submitted:   %s\n", e.CreatedAt.Local().Format(time.RFC1123))
}
