package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "hostalloc",
		Short: "Dedicated Host Cost Allocator",
		Long: `Hostalloc - Dedicated Host Cost Allocator

Hostalloc breaks down AWS Dedicated Host charges into per-instance
costs for chargeback. Cost Explorer bills the host, not the instances
on it; hostalloc redistributes that cost to the instances that
actually ran there, weighted by vCPU share or split equally.

Run 'allocate' for a single account or 'consolidate' to assume roles
across many accounts and produce one combined report.`,
		Version: version,
	}

	cfgPath string
	debug   bool
)

// Execute runs the root command
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Operation cancelled by user")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Hostalloc {{.Version}} - Dedicated Host Cost Allocator
`)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	}
}
