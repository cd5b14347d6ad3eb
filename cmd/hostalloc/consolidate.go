package main

import (
	"context"
	"fmt"
	"time"

	"github.com/finopslab/hostalloc/config"
	"github.com/finopslab/hostalloc/orchestrator"
	awsprov "github.com/finopslab/hostalloc/providers/aws"
	"github.com/finopslab/hostalloc/report"
)

// ConsolidateCommand holds the resolved parameters for a multi-account
// run.
type ConsolidateCommand struct {
	Accounts []config.Account
	TagKeys  []string
	Method   string
	DaysBack int
	Output   string
}

// Run assumes the configured role in every account, runs the
// allocation pipeline there, and writes one consolidated report.
func (c *ConsolidateCommand) Run(ctx context.Context) error {
	end := time.Now()
	start := end.AddDate(0, 0, -c.DaysBack)

	fmt.Println("AWS Dedicated Host Cost Allocator (multi-account)")
	fmt.Println("=================================================")
	fmt.Printf("Accounts: %d\n", len(c.Accounts))
	fmt.Printf("Method:   %s\n", c.Method)
	fmt.Printf("Period:   %s to %s (%d days)\n\n",
		start.Format("2006-01-02"), end.Format("2006-01-02"), c.DaysBack)

	creds, err := awsprov.NewSTSCredentialProvider(ctx)
	if err != nil {
		return err
	}

	orch := orchestrator.New(creds, c.TagKeys)
	records := orch.Run(ctx, c.Accounts, c.Method, start, end)
	if len(records) == 0 {
		fmt.Println("No allocatable host costs found in any account")
		return nil
	}

	path, err := report.NewWriter().Write(records, c.Output)
	if err != nil {
		return err
	}
	fmt.Printf("Consolidated report written to %s\n\n", path)

	report.PrintConsolidatedSummary(records, c.TagKeys)
	return nil
}
