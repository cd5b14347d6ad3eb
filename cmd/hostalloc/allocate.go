package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/finopslab/hostalloc/allocator"
	awsprov "github.com/finopslab/hostalloc/providers/aws"
	"github.com/finopslab/hostalloc/report"
)

// AllocateCommand holds the resolved parameters for a single-account
// run, after config and flags have been merged.
type AllocateCommand struct {
	Regions  []string
	TagKeys  []string
	Method   string
	DaysBack int
	Output   string
}

// Run executes the single-account pipeline: discover hosts, attach
// instances, fetch costs, allocate, report.
func (c *AllocateCommand) Run(ctx context.Context) error {
	end := time.Now()
	start := end.AddDate(0, 0, -c.DaysBack)

	fmt.Println("AWS Dedicated Host Cost Allocator")
	fmt.Println("=================================")
	fmt.Printf("Regions:  %s\n", strings.Join(c.Regions, ", "))
	fmt.Printf("Tag keys: %s\n", strings.Join(c.TagKeys, ", "))
	fmt.Printf("Method:   %s\n", c.Method)
	fmt.Printf("Period:   %s to %s (%d days)\n\n",
		start.Format("2006-01-02"), end.Format("2006-01-02"), c.DaysBack)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	collector := awsprov.NewCollectorFromConfig(awsCfg, c.Regions)

	fmt.Println("Discovering dedicated hosts...")
	hosts := collector.DiscoverHosts(ctx)
	if len(hosts) == 0 {
		fmt.Println("No dedicated hosts found in the configured regions")
		return nil
	}
	collector.AttachInstances(ctx, hosts)

	instances := 0
	for _, host := range hosts {
		instances += len(host.Instances)
	}
	fmt.Printf("Found %d dedicated hosts with %d instances\n\n", len(hosts), instances)

	fmt.Println("Retrieving costs from Cost Explorer...")
	costs, err := awsprov.NewCostRetriever(awsCfg).HostCosts(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to retrieve host costs: %w", err)
	}

	engine := allocator.NewEngine(allocator.NewResolver(collector))
	records, err := engine.Allocate(ctx, hosts, costs, c.Method, start, end, c.TagKeys)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No host costs matched the discovered hosts; nothing to report")
		return nil
	}

	path, err := report.NewWriter().Write(records, c.Output)
	if err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n\n", path)

	report.PrintSummary(records, c.TagKeys)
	return nil
}
