package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finopslab/hostalloc/config"
)

var (
	consolidateAccounts string
	consolidateMethod   string
	consolidateDays     int
	consolidateOutput   string
)

// consolidateCmd represents the consolidate command
var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Allocate dedicated host costs across multiple accounts",
	Long: `Allocate dedicated host costs across every account in the config.

Assumes the configured cross-account role in each member account,
runs the same discovery and allocation pipeline there, and merges
everything into one consolidated report. An account that fails role
assumption, has no dedicated hosts, or cannot be queried is skipped;
the remaining accounts are still processed.`,
	Example: `  hostalloc consolidate                            # All configured accounts
  hostalloc consolidate --accounts 111111111111    # Subset of accounts
  hostalloc consolidate --method equal             # Equal split everywhere`,
	RunE: runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)

	consolidateCmd.Flags().StringVarP(&consolidateAccounts, "accounts", "a", "", "Comma-separated account ids to process (default: all configured)")
	consolidateCmd.Flags().StringVarP(&consolidateMethod, "method", "m", "", "Allocation method: weighted, equal (overrides config)")
	consolidateCmd.Flags().IntVarP(&consolidateDays, "days-back", "d", 0, "Billing period length in days (overrides config)")
	consolidateCmd.Flags().StringVarP(&consolidateOutput, "output", "o", "", "Report file path (default: timestamped CSV in cwd)")
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.RequireAccounts(); err != nil {
		printAccountsHelp()
		return err
	}
	if cmd.Flags().Changed("method") {
		cfg.Method = consolidateMethod
	}
	if cmd.Flags().Changed("days-back") {
		cfg.DaysBack = consolidateDays
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.EnsureAccountTag()

	accounts := cfg.FilterAccounts(splitList(consolidateAccounts))
	if len(accounts) == 0 {
		return fmt.Errorf("no configured accounts match --accounts filter")
	}

	consolidate := &ConsolidateCommand{
		Accounts: accounts,
		TagKeys:  cfg.TagKeys,
		Method:   cfg.Method,
		DaysBack: cfg.DaysBack,
		Output:   consolidateOutput,
	}

	if err := consolidate.Run(cmd.Context()); err != nil {
		printTroubleshootingHelp()
		return err
	}
	return nil
}

func printAccountsHelp() {
	fmt.Println("Multi-account mode needs an accounts section in the config file:")
	fmt.Println()
	fmt.Println("  accounts:")
	fmt.Println("    - id: \"111111111111\"")
	fmt.Println("      name: \"production\"")
	fmt.Println("      role: \"arn:aws:iam::111111111111:role/CostAllocatorRole\"")
	fmt.Println("      regions: [\"us-east-1\"]")
}

func printTroubleshootingHelp() {
	fmt.Println("\nTroubleshooting:")
	fmt.Println("  - Verify the cross-account role exists in each member account")
	fmt.Println("  - Verify its trust policy allows this account to assume it")
	fmt.Println("  - Verify the role grants ce:GetCostAndUsage and the ec2:Describe* permissions")
	fmt.Println("  - Verify Cost Explorer is enabled in each member account")
}
