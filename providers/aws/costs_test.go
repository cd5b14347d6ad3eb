package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCostExplorer struct {
	output *costexplorer.GetCostAndUsageOutput
	err    error
	input  *costexplorer.GetCostAndUsageInput
}

func (f *fakeCostExplorer) GetCostAndUsage(_ context.Context, params *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func costGroup(usageType, region, amount string) cetypes.Group {
	return cetypes.Group{
		Keys: []string{usageType, region},
		Metrics: map[string]cetypes.MetricValue{
			"BlendedCost": {Amount: aws.String(amount), Unit: aws.String("USD")},
		},
	}
}

func billingWindow() (time.Time, time.Time) {
	end := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, 0, -30), end
}

func TestCostRetriever_HostCosts(t *testing.T) {
	client := &fakeCostExplorer{output: &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []cetypes.ResultByTime{
			{Groups: []cetypes.Group{
				costGroup("HostBoxUsage:c5", "us-east-1", "300.0"),
				costGroup("BoxUsage:t3.micro", "us-east-1", "12.5"), // on-demand, discarded
				costGroup("HostBoxUsage:m5", "eu-west-1", "100.0"),
			}},
			{Groups: []cetypes.Group{
				costGroup("HostBoxUsage:c5", "us-east-1", "50.0"), // second month accumulates
			}},
		},
	}}

	start, end := billingWindow()
	costs, err := NewCostRetrieverWithClient(client).HostCosts(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 2, costs.Len())
	assert.InDelta(t, 350.0, costs.Amount("us-east-1:HostBoxUsage:c5"), 1e-9)
	assert.InDelta(t, 100.0, costs.Amount("eu-west-1:HostBoxUsage:m5"), 1e-9)
}

func TestCostRetriever_RequestShape(t *testing.T) {
	client := &fakeCostExplorer{output: &costexplorer.GetCostAndUsageOutput{}}

	start, end := billingWindow()
	_, err := NewCostRetrieverWithClient(client).HostCosts(context.Background(), start, end)
	require.NoError(t, err)

	input := client.input
	require.NotNil(t, input)
	assert.Equal(t, "2026-07-02", aws.ToString(input.TimePeriod.Start))
	assert.Equal(t, "2026-08-01", aws.ToString(input.TimePeriod.End))
	assert.Equal(t, cetypes.GranularityMonthly, input.Granularity)
	assert.Equal(t, []string{"BlendedCost"}, input.Metrics)
	require.Len(t, input.GroupBy, 2)
	assert.Equal(t, "USAGE_TYPE", aws.ToString(input.GroupBy[0].Key))
	assert.Equal(t, "REGION", aws.ToString(input.GroupBy[1].Key))
	require.NotNil(t, input.Filter)
	assert.Equal(t, []string{computeService}, input.Filter.Dimensions.Values)
}

func TestCostRetriever_ErrorPropagates(t *testing.T) {
	client := &fakeCostExplorer{err: errors.New("access denied")}

	start, end := billingWindow()
	_, err := NewCostRetrieverWithClient(client).HostCosts(context.Background(), start, end)
	assert.Error(t, err)
}

func TestCostRetriever_SkipsUnparsableAmount(t *testing.T) {
	client := &fakeCostExplorer{output: &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []cetypes.ResultByTime{
			{Groups: []cetypes.Group{
				costGroup("HostBoxUsage:c5", "us-east-1", "not-a-number"),
				costGroup("HostBoxUsage:m5", "us-east-1", "25.0"),
			}},
		},
	}}

	start, end := billingWindow()
	costs, err := NewCostRetrieverWithClient(client).HostCosts(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, costs.Len())
}
