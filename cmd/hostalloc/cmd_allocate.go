package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finopslab/hostalloc/config"
)

var (
	allocRegions  string
	allocTags     string
	allocMethod   string
	allocDaysBack int
	allocOutput   string
)

// allocateCmd represents the allocate command
var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Allocate dedicated host costs in the current account",
	Long: `Allocate dedicated host costs to the instances running on them.

Discovers dedicated hosts and their instances across the configured
regions, pulls the matching host charges from Cost Explorer, and
splits each host's cost across its instances. The result is a CSV
report plus a cost summary grouped by region and tag.`,
	Example: `  hostalloc allocate                          # Use config.yaml settings
  hostalloc allocate --regions us-east-1      # Override regions
  hostalloc allocate --method equal           # Equal split instead of vCPU-weighted
  hostalloc allocate --days-back 7            # Last week only
  hostalloc allocate --output costs.csv       # Explicit report path`,
	RunE: runAllocate,
}

func init() {
	rootCmd.AddCommand(allocateCmd)

	allocateCmd.Flags().StringVarP(&allocRegions, "regions", "r", "", "Comma-separated AWS regions (overrides config)")
	allocateCmd.Flags().StringVarP(&allocTags, "tags", "t", "", "Comma-separated tag keys for the report (overrides config)")
	allocateCmd.Flags().StringVarP(&allocMethod, "method", "m", "", "Allocation method: weighted, equal (overrides config)")
	allocateCmd.Flags().IntVarP(&allocDaysBack, "days-back", "d", 0, "Billing period length in days (overrides config)")
	allocateCmd.Flags().StringVarP(&allocOutput, "output", "o", "", "Report file path (default: timestamped CSV in cwd)")
}

func runAllocate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	allocate := &AllocateCommand{
		Regions:  cfg.Regions,
		TagKeys:  cfg.TagKeys,
		Method:   cfg.Method,
		DaysBack: cfg.DaysBack,
		Output:   allocOutput,
	}

	if err := allocate.Run(cmd.Context()); err != nil {
		printPermissionHelp()
		return err
	}
	return nil
}

// applyOverrides lets explicitly set flags win over file values. A flag
// left at its default never clobbers the config.
func applyOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("regions") {
		cfg.Regions = splitList(allocRegions)
	}
	if cmd.Flags().Changed("tags") {
		cfg.TagKeys = splitList(allocTags)
	}
	if cmd.Flags().Changed("method") {
		cfg.Method = allocMethod
	}
	if cmd.Flags().Changed("days-back") {
		cfg.DaysBack = allocDaysBack
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printPermissionHelp() {
	fmt.Println("\nThe IAM identity running hostalloc needs:")
	fmt.Println("  - ce:GetCostAndUsage")
	fmt.Println("  - ec2:DescribeHosts")
	fmt.Println("  - ec2:DescribeInstances")
	fmt.Println("  - ec2:DescribeInstanceTypes")
}
