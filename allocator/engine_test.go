package allocator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finopslab/hostalloc/types"
)

// stubLookup returns a fixed vCPU count per instance type and counts calls.
type stubLookup struct {
	vcpus map[string]int
	err   error
	calls int
}

func (s *stubLookup) DefaultVCPUs(_ context.Context, instanceType, _ string) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if count, ok := s.vcpus[instanceType]; ok {
		return count, nil
	}
	return 0, fmt.Errorf("unknown instance type %s", instanceType)
}

func fullWindow() (time.Time, time.Time) {
	end := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	start := end.Add(-720 * time.Hour)
	return start, end
}

func testHost(instances ...types.Instance) map[types.HostKey]*types.Host {
	host := &types.Host{
		Region:    "us-east-1",
		HostID:    "h-0abc",
		Family:    "c5",
		State:     "available",
		Instances: instances,
	}
	return map[types.HostKey]*types.Host{host.Key(): host}
}

func testInstance(id, instanceType string, launch time.Time) types.Instance {
	return types.Instance{
		InstanceID:   id,
		InstanceType: instanceType,
		Region:       "us-east-1",
		Tags:         types.Tags{"Team": "platform"},
		LaunchTime:   launch,
	}
}

func testCosts(amount float64) *types.CostTable {
	costs := types.NewCostTable()
	costs.Add("us-east-1", "HostBoxUsage:c5", amount)
	return costs
}

func TestAllocate_WeightedEqualVCPUs(t *testing.T) {
	start, end := fullWindow()
	launched := start.Add(-24 * time.Hour)
	hosts := testHost(
		testInstance("i-1", "c5.large", launched),
		testInstance("i-2", "c5.large", launched),
	)

	engine := NewEngine(NewResolver(&stubLookup{vcpus: map[string]int{"c5.large": 2}}))
	records, err := engine.Allocate(context.Background(), hosts, testCosts(300), types.MethodWeighted, start, end, []string{"Team"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, rec := range records {
		assert.InDelta(t, 150.00, rec.AllocatedCost, 1e-9)
		assert.Equal(t, 2, rec.VCPUCount)
		assert.InDelta(t, 0.2083, rec.HourlyRate, 1e-9)
		assert.Equal(t, types.MethodLabelWeighted, rec.AllocationMethod)
		assert.InDelta(t, 720.0, rec.RuntimeHours, 1e-9)
		assert.InDelta(t, 720.0, rec.BillingPeriodHours, 1e-9)
	}
}

func TestAllocate_EqualFullWindow(t *testing.T) {
	start, end := fullWindow()
	launched := start.Add(-24 * time.Hour)
	hosts := testHost(
		testInstance("i-1", "c5.large", launched),
		testInstance("i-2", "c5.large", launched),
	)

	engine := NewEngine(NewResolver(&stubLookup{}))
	records, err := engine.Allocate(context.Background(), hosts, testCosts(300), types.MethodEqual, start, end, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, rec := range records {
		assert.InDelta(t, 150.00, rec.AllocatedCost, 1e-9)
		assert.Equal(t, types.MethodLabelEqual, rec.AllocationMethod)
		assert.Zero(t, rec.VCPUCount, "equal method carries no vcpu column")
		assert.Zero(t, rec.HourlyRate)
	}
}

func TestAllocate_WeightedUnevenVCPUs(t *testing.T) {
	start, end := fullWindow()
	launched := start.Add(-24 * time.Hour)
	hosts := testHost(
		testInstance("i-1", "c5.large", launched),
		testInstance("i-2", "c5.xlarge", launched),
	)

	lookup := &stubLookup{vcpus: map[string]int{"c5.large": 2, "c5.xlarge": 4}}
	engine := NewEngine(NewResolver(lookup))
	records, err := engine.Allocate(context.Background(), hosts, testCosts(300), types.MethodWeighted, start, end, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := map[string]types.AllocationRecord{}
	for _, rec := range records {
		byID[rec.InstanceID] = rec
	}
	assert.InDelta(t, 100.00, byID["i-1"].AllocatedCost, 1e-9)
	assert.InDelta(t, 200.00, byID["i-2"].AllocatedCost, 1e-9)
}

func TestAllocate_WeightedSumsToHostCost(t *testing.T) {
	start, end := fullWindow()
	hosts := testHost(
		testInstance("i-1", "c5.large", start.Add(-time.Hour)),
		testInstance("i-2", "c5.xlarge", start.Add(200*time.Hour)), // partial window
		testInstance("i-3", "c5.2xlarge", start.Add(500*time.Hour)),
	)

	lookup := &stubLookup{vcpus: map[string]int{"c5.large": 2, "c5.xlarge": 4, "c5.2xlarge": 8}}
	engine := NewEngine(NewResolver(lookup))
	records, err := engine.Allocate(context.Background(), hosts, testCosts(537.89), types.MethodWeighted, start, end, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)

	total := 0.0
	for _, rec := range records {
		total += rec.AllocatedCost
	}
	// Sum matches host cost within rounding error (0.01 per instance).
	assert.InDelta(t, 537.89, total, 0.01*float64(len(records)))
}

func TestAllocate_EqualPartialWindowNotRenormalized(t *testing.T) {
	start, end := fullWindow()
	hosts := testHost(
		testInstance("i-1", "c5.large", start.Add(-time.Hour)),
		testInstance("i-2", "c5.large", start.Add(360*time.Hour)), // half window
	)

	engine := NewEngine(NewResolver(&stubLookup{}))
	records, err := engine.Allocate(context.Background(), hosts, testCosts(300), types.MethodEqual, start, end, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := map[string]types.AllocationRecord{}
	for _, rec := range records {
		byID[rec.InstanceID] = rec
	}
	// (300/2) * 1.0 and (300/2) * 0.5; host total is 225, not 300.
	assert.InDelta(t, 150.00, byID["i-1"].AllocatedCost, 1e-9)
	assert.InDelta(t, 75.00, byID["i-2"].AllocatedCost, 1e-9)
}

func TestAllocate_NoCostMatchSkipsHost(t *testing.T) {
	start, end := fullWindow()
	hosts := testHost(testInstance("i-1", "c5.large", start.Add(-time.Hour)))

	costs := types.NewCostTable()
	costs.Add("eu-west-1", "HostBoxUsage:m5", 300) // wrong region and family

	engine := NewEngine(NewResolver(&stubLookup{}))
	records, err := engine.Allocate(context.Background(), hosts, costs, types.MethodWeighted, start, end, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAllocate_EmptyHostIgnored(t *testing.T) {
	start, end := fullWindow()
	hosts := testHost() // no instances

	engine := NewEngine(NewResolver(&stubLookup{}))
	records, err := engine.Allocate(context.Background(), hosts, testCosts(300), types.MethodEqual, start, end, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAllocate_UnknownMethod(t *testing.T) {
	engine := NewEngine(NewResolver(&stubLookup{}))
	_, err := engine.Allocate(context.Background(), nil, types.NewCostTable(), "fair", time.Time{}, time.Time{}, nil)
	assert.Error(t, err)
}

func TestAllocate_TagSubstitution(t *testing.T) {
	start, end := fullWindow()
	inst := testInstance("i-1", "c5.large", start.Add(-time.Hour))
	inst.Tags = types.Tags{"Team": "platform"}
	hosts := testHost(inst)

	engine := NewEngine(NewResolver(&stubLookup{}))
	records, err := engine.Allocate(context.Background(), hosts, testCosts(300), types.MethodEqual, start, end, []string{"Team", "Department"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, []string{"team", "department"}, rec.TagKeys)
	assert.Equal(t, "platform", rec.TagValues["team"])
	assert.Equal(t, types.UnknownTagValue, rec.TagValues["department"])
}

func TestAllocate_DefaultWindowIs720Hours(t *testing.T) {
	hosts := testHost(testInstance("i-1", "c5.large", time.Time{}))

	engine := NewEngine(NewResolver(&stubLookup{}))
	records, err := engine.Allocate(context.Background(), hosts, testCosts(300), types.MethodEqual, time.Time{}, time.Time{}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 720.0, records[0].BillingPeriodHours, 1e-9)
}

func TestInstanceRuntime(t *testing.T) {
	start, end := fullWindow()

	tests := []struct {
		name   string
		launch time.Time
		want   float64
	}{
		{"launched before window", start.Add(-48 * time.Hour), 720},
		{"launched mid window", start.Add(480 * time.Hour), 240},
		{"launched after window end", end.Add(10 * time.Hour), 0},
		{"launched at window start", start, 720},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := instanceRuntime(tt.launch, start, end, 720)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestInstanceRuntime_TimezoneStripped(t *testing.T) {
	start, end := fullWindow()

	// Same wall clock as start+480h but carrying a +05:00 offset; the
	// offset is discarded before comparison.
	zone := time.FixedZone("x", 5*3600)
	mid := start.Add(480 * time.Hour)
	launch := time.Date(mid.Year(), mid.Month(), mid.Day(), mid.Hour(), 0, 0, 0, zone)

	got := instanceRuntime(launch, start, end, 720)
	assert.InDelta(t, 240, got, 1e-9)
}
