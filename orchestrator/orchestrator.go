package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/finopslab/hostalloc/allocator"
	"github.com/finopslab/hostalloc/config"
	awsprov "github.com/finopslab/hostalloc/providers/aws"
	"github.com/finopslab/hostalloc/telemetry"
	"github.com/finopslab/hostalloc/types"
)

// HostSource supplies host inventory and vCPU lookups for one account.
// Satisfied by *awsprov.Collector.
type HostSource interface {
	DiscoverHosts(ctx context.Context) map[types.HostKey]*types.Host
	AttachInstances(ctx context.Context, hosts map[types.HostKey]*types.Host)
	DefaultVCPUs(ctx context.Context, instanceType, region string) (int, error)
}

// CostSource supplies the billing breakdown for one account.
type CostSource interface {
	HostCosts(ctx context.Context, start, end time.Time) (*types.CostTable, error)
}

// SourceFactory builds a fresh source pair from scoped account
// credentials. Each account gets its own pair; credentials are never
// shared across accounts.
type SourceFactory func(cfg aws.Config, regions []string) (HostSource, CostSource)

// Orchestrator runs the discovery+allocation pipeline once per account
// and concatenates the results. Accounts are processed strictly in
// order; one account's failure never aborts the rest.
type Orchestrator struct {
	creds      awsprov.CredentialProvider
	newSources SourceFactory
	tagKeys    []string
	logger     *telemetry.Logger
}

// New creates an orchestrator using real AWS collectors per account.
func New(creds awsprov.CredentialProvider, tagKeys []string) *Orchestrator {
	return &Orchestrator{
		creds: creds,
		newSources: func(cfg aws.Config, regions []string) (HostSource, CostSource) {
			return awsprov.NewCollectorFromConfig(cfg, regions), awsprov.NewCostRetriever(cfg)
		},
		tagKeys: tagKeys,
		logger:  telemetry.NewLogger("orchestrator"),
	}
}

// WithSourceFactory overrides source construction, for tests.
func (o *Orchestrator) WithSourceFactory(factory SourceFactory) *Orchestrator {
	o.newSources = factory
	return o
}

// Run processes every account and returns the consolidated records.
func (o *Orchestrator) Run(ctx context.Context, accounts []config.Account, method string, start, end time.Time) []types.AllocationRecord {
	var all []types.AllocationRecord

	for _, acct := range accounts {
		result := o.processAccount(ctx, acct, method, start, end)
		if result.Status == StatusSkipped {
			o.logger.LogAccountError(ctx, result.AccountID, string(result.Status), result.Err)
			continue
		}
		all = append(all, result.Records...)
	}

	o.logger.WithContext(ctx).Info().
		Int("accounts", len(accounts)).
		Int("records", len(all)).
		Msg("multi-account processing complete")

	return all
}

// processAccount walks one account through
// pending -> role_assumed -> discovered -> costed -> allocated,
// short-circuiting to skipped on any failure.
func (o *Orchestrator) processAccount(ctx context.Context, acct config.Account, method string, start, end time.Time) *AccountResult {
	result := &AccountResult{
		AccountID:   acct.ID,
		AccountName: acct.DisplayName(),
		Status:      StatusPending,
	}

	o.logger.WithContext(ctx).Info().
		Str("account_id", acct.ID).
		Str("account_name", result.AccountName).
		Msg("processing account")

	regions := acct.Regions
	if len(regions) == 0 {
		regions = []string{"us-east-1"}
	}

	cfg, err := o.creds.AssumeAccount(ctx, acct.ID, acct.RoleARN)
	if err != nil {
		return skipped(result, err)
	}
	result.Status = StatusRoleAssumed

	hostSource, costSource := o.newSources(cfg, regions)

	hosts := hostSource.DiscoverHosts(ctx)
	if len(hosts) == 0 {
		return skipped(result, fmt.Errorf("no dedicated hosts found"))
	}
	hostSource.AttachInstances(ctx, hosts)
	result.Status = StatusDiscovered

	costs, err := costSource.HostCosts(ctx, start, end)
	if err != nil {
		return skipped(result, err)
	}
	result.Status = StatusCosted

	// Fresh engine per account so the vCPU cache stays account-scoped.
	engine := allocator.NewEngine(allocator.NewResolver(hostSource))
	records, err := engine.Allocate(ctx, hosts, costs, method, start, end, o.tagKeys)
	if err != nil {
		return skipped(result, err)
	}
	result.Status = StatusAllocated
	result.Records = o.tagAccount(records, acct)

	total := 0.0
	instances := 0
	for _, host := range hosts {
		instances += len(host.Instances)
	}
	for _, rec := range result.Records {
		total += rec.AllocatedCost
	}
	o.logger.WithContext(ctx).Info().
		Str("account_id", acct.ID).
		Int("hosts", len(hosts)).
		Int("instances", instances).
		Int("records", len(result.Records)).
		Float64("allocated", total).
		Msg("account processed")

	return result
}

// tagAccount stamps account identity onto every record: the dedicated
// account_id/account_name columns plus the "account" tag column used by
// tag-grouped summaries.
func (o *Orchestrator) tagAccount(records []types.AllocationRecord, acct config.Account) []types.AllocationRecord {
	name := acct.DisplayName()
	for i := range records {
		records[i].AccountID = acct.ID
		records[i].AccountName = name
		if _, ok := records[i].TagValues["account"]; ok {
			records[i].TagValues["account"] = name
		}
	}
	return records
}

func skipped(result *AccountResult, err error) *AccountResult {
	result.Status = StatusSkipped
	result.Err = err
	return result
}
