package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/finopslab/hostalloc/telemetry"
	"github.com/finopslab/hostalloc/types"
)

// Writer serializes allocation records to CSV and prints grouped
// summaries. Reports are only written when at least one record exists.
type Writer struct {
	logger *telemetry.Logger
}

// NewWriter creates a report writer.
func NewWriter() *Writer {
	return &Writer{logger: telemetry.NewLogger("report")}
}

// Filename synthesizes the default report filename for an allocation
// method label, e.g. dedicated_host_costs_vcpu_weighted_20260823_120000.csv.
func Filename(methodLabel string, multiAccount bool, now time.Time) string {
	prefix := "dedicated_host_costs"
	if multiAccount {
		prefix = "multi_account_" + prefix
	}
	return fmt.Sprintf("%s_%s_%s.csv", prefix, methodLabel, now.Format("20060102_150405"))
}

// Write emits one CSV row per record and returns the path written.
// The column set is taken from the first record; the engine guarantees
// every record in a run shares the same field set.
func (w *Writer) Write(records []types.AllocationRecord, path string) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("no records to report")
	}

	if path == "" {
		path = Filename(records[0].AllocationMethod, records[0].HasAccount(), time.Now())
	}

	file, err := os.Create(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() { _ = file.Close() }()

	cw := csv.NewWriter(file)
	if err := cw.Write(columns(&records[0])); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	for i := range records {
		if err := cw.Write(row(&records[i])); err != nil {
			return "", fmt.Errorf("failed to write record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush report: %w", err)
	}

	w.logger.Info().
		Str("path", path).
		Int("records", len(records)).
		Msg("report written")

	return path, nil
}

// columns returns the CSV header for a record's field set.
func columns(rec *types.AllocationRecord) []string {
	cols := []string{
		"region", "host_id", "instance_id", "instance_type",
		"allocated_cost", "allocation_method",
		"runtime_hours", "billing_period_hours",
	}
	if rec.HasVCPU() {
		cols = append(cols, "vcpu_count", "hourly_rate")
	}
	cols = append(cols, rec.TagKeys...)
	if rec.HasAccount() {
		cols = append(cols, "account_id", "account_name")
	}
	return cols
}

func row(rec *types.AllocationRecord) []string {
	vals := []string{
		rec.Region, rec.HostID, rec.InstanceID, rec.InstanceType,
		money(rec.AllocatedCost), rec.AllocationMethod,
		hours(rec.RuntimeHours), hours(rec.BillingPeriodHours),
	}
	if rec.HasVCPU() {
		vals = append(vals, strconv.Itoa(rec.VCPUCount), rate(rec.HourlyRate))
	}
	for _, key := range rec.TagKeys {
		vals = append(vals, rec.TagValues[key])
	}
	if rec.HasAccount() {
		vals = append(vals, rec.AccountID, rec.AccountName)
	}
	return vals
}

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
func hours(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
func rate(v float64) string  { return strconv.FormatFloat(v, 'f', 4, 64) }

// PrintSummary prints the grand total, cost by region, and cost by each
// configured tag key. The "Unknown" bucket stays in the CSV but is
// skipped here.
func PrintSummary(records []types.AllocationRecord, tagKeys []string) {
	if len(records) == 0 {
		fmt.Println("No costs to report")
		return
	}

	fmt.Printf("Total allocated cost: $%.2f\n", totalCost(records))
	printRegionSection(records)
	printTagSections(records, tagKeys, nil)
}

// PrintConsolidatedSummary prints the multi-account variant: grand
// total, a dedicated per-account section, then region and tag sections.
// The account tag is suppressed from the generic tag sections since it
// has its own.
func PrintConsolidatedSummary(records []types.AllocationRecord, tagKeys []string) {
	if len(records) == 0 {
		fmt.Println("No costs to report")
		return
	}

	fmt.Printf("Total allocated cost across all accounts: $%.2f\n", totalCost(records))

	byAccount := make(map[string]float64)
	for _, rec := range records {
		byAccount[rec.AccountName] += rec.AllocatedCost
	}
	fmt.Println("\nCost by Account:")
	printGrouped(byAccount, false)

	printRegionSection(records)
	printTagSections(records, tagKeys, map[string]bool{"account": true})
}

func totalCost(records []types.AllocationRecord) float64 {
	total := 0.0
	for _, rec := range records {
		total += rec.AllocatedCost
	}
	return total
}

func printRegionSection(records []types.AllocationRecord) {
	byRegion := make(map[string]float64)
	for _, rec := range records {
		byRegion[rec.Region] += rec.AllocatedCost
	}
	fmt.Println("\nCost by Region:")
	printGrouped(byRegion, false)
}

func printTagSections(records []types.AllocationRecord, tagKeys []string, skip map[string]bool) {
	for _, key := range tagKeys {
		lower := strings.ToLower(key)
		if skip[lower] {
			continue
		}
		byTag := make(map[string]float64)
		for _, rec := range records {
			if val, ok := rec.TagValues[lower]; ok {
				byTag[val] += rec.AllocatedCost
			}
		}
		if onlyUnknown(byTag) {
			continue
		}
		fmt.Printf("\nCost by %s:\n", key)
		printGrouped(byTag, true)
	}
}

func printGrouped(groups map[string]float64, skipUnknown bool) {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if skipUnknown && key == types.UnknownTagValue {
			continue
		}
		fmt.Printf("  %s: $%.2f\n", key, groups[key])
	}
}

func onlyUnknown(groups map[string]float64) bool {
	for key := range groups {
		if key != types.UnknownTagValue {
			return false
		}
	}
	return true
}
