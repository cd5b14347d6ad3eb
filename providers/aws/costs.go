package aws

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/finopslab/hostalloc/telemetry"
	"github.com/finopslab/hostalloc/types"
)

const (
	// Cost Explorer is a global API served out of us-east-1.
	costExplorerRegion = "us-east-1"

	computeService  = "Amazon Elastic Compute Cloud - Compute"
	hostUsageMarker = "HostUsage"

	costDateFormat = "2006-01-02"
)

// CostExplorerAPI is the slice of Cost Explorer the retriever consumes.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// CostRetriever fetches the dedicated-host cost breakdown for a billing
// window from Cost Explorer.
type CostRetriever struct {
	client CostExplorerAPI
	logger *telemetry.Logger
}

// NewCostRetriever builds a retriever from an AWS config.
func NewCostRetriever(cfg aws.Config) *CostRetriever {
	rcfg := cfg.Copy()
	rcfg.Region = costExplorerRegion
	return NewCostRetrieverWithClient(costexplorer.NewFromConfig(rcfg))
}

// NewCostRetrieverWithClient wires a pre-built client, for tests.
func NewCostRetrieverWithClient(client CostExplorerAPI) *CostRetriever {
	return &CostRetriever{
		client: client,
		logger: telemetry.NewLogger("cost-retriever"),
	}
}

// HostCosts queries the full window at monthly granularity, grouped by
// usage type and region and filtered to the EC2 compute service, keeping
// only dedicated-host usage line items. A request failure propagates and
// aborts the caller's run.
func (r *CostRetriever) HostCosts(ctx context.Context, start, end time.Time) (*types.CostTable, error) {
	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format(costDateFormat)),
			End:   aws.String(end.Format(costDateFormat)),
		},
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{"BlendedCost"},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("USAGE_TYPE")},
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("REGION")},
		},
		Filter: &cetypes.Expression{
			Dimensions: &cetypes.DimensionValues{
				Key:    cetypes.DimensionService,
				Values: []string{computeService},
			},
		},
	}

	output, err := r.client.GetCostAndUsage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get cost and usage: %w", err)
	}

	costs := types.NewCostTable()
	for _, result := range output.ResultsByTime {
		for _, group := range result.Groups {
			r.addGroup(ctx, costs, group)
		}
	}

	r.logger.WithContext(ctx).Info().
		Int("line_items", costs.Len()).
		Msg("fetched dedicated host costs")

	return costs, nil
}

func (r *CostRetriever) addGroup(ctx context.Context, costs *types.CostTable, group cetypes.Group) {
	if len(group.Keys) < 2 {
		return
	}
	usageType, region := group.Keys[0], group.Keys[1]
	if !strings.Contains(usageType, hostUsageMarker) {
		return
	}

	metric, ok := group.Metrics["BlendedCost"]
	if !ok || metric.Amount == nil {
		return
	}
	amount, err := strconv.ParseFloat(aws.ToString(metric.Amount), 64)
	if err != nil {
		r.logger.WithContext(ctx).Warn().
			Str("usage_type", usageType).
			Str("amount", aws.ToString(metric.Amount)).
			Msg("unparsable cost amount, skipping line item")
		return
	}

	costs.Add(region, usageType, amount)
}
