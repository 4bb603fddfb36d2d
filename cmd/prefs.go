package cmd

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show the stored preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		all := a.prefs.All()
		if a.jsonOutput {
			return printJSON(all)
		}

		fmt.Printf("\n  Disclaimer accepted: %t\n", a.prefs.DisclaimerAccepted())
		fmt.Printf("  Onboarded:           %t\n", a.prefs.Onboarded())
		for _, w := range a.prefs.Wallets() {
			fmt.Printf("  Wallet:              %s\n", color.CyanString(w))
		}

		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			fmt.Println()
			for _, k := range keys {
				fmt.Printf("  %s = %s\n", k, all[k])
			}
		}
		fmt.Println()
		return nil
	},
}

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every stored preference",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.prefs.Reset(); err != nil {
			return err
		}
		printSuccess("Preferences reset")
		return nil
	},
}

var prefsDismissCmd = &cobra.Command{
	Use:   "dismiss-banner <id>",
	Short: "Stop showing a banner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.prefs.DismissBanner(args[0])
	},
}

var prefsAcceptCmd = &cobra.Command{
	Use:   "accept-disclaimer",
	Short: "Accept the risk disclaimer without being prompted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.prefs.AcceptDisclaimer()
	},
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsResetCmd, prefsDismissCmd, prefsAcceptCmd)
}
