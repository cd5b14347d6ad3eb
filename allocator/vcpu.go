package allocator

import (
	"context"
	"strings"

	"github.com/finopslab/hostalloc/telemetry"
)

// VCPULookup answers "how many vCPUs does this instance type have" from
// the provider. Implemented by providers/aws; tests inject stubs.
type VCPULookup interface {
	DefaultVCPUs(ctx context.Context, instanceType, region string) (int, error)
}

// sizeVCPUs maps canonical size names to vCPU counts, used when the
// provider lookup fails or returns nothing.
var sizeVCPUs = map[string]int{
	"nano":     1,
	"micro":    1,
	"small":    1,
	"medium":   2,
	"large":    2,
	"xlarge":   4,
	"2xlarge":  8,
	"3xlarge":  12,
	"4xlarge":  16,
	"6xlarge":  24,
	"8xlarge":  32,
	"12xlarge": 48,
	"16xlarge": 64,
}

const defaultVCPUs = 2

type vcpuKey struct {
	region       string
	instanceType string
}

// Resolver resolves instance types to vCPU counts, memoizing per
// (region, instance type). The cache belongs to the resolver instance
// and is never shared or accessed concurrently.
type Resolver struct {
	lookup VCPULookup
	cache  map[vcpuKey]int
	logger *telemetry.Logger
}

// NewResolver creates a resolver backed by the given provider lookup.
func NewResolver(lookup VCPULookup) *Resolver {
	return &Resolver{
		lookup: lookup,
		cache:  make(map[vcpuKey]int),
		logger: telemetry.NewLogger("vcpu-resolver"),
	}
}

// VCPUs returns the vCPU count for an instance type, always >= 1.
// Lookup failures are logged as warnings and fall back to parsing the
// size suffix of the type name; unknown suffixes default to 2.
func (r *Resolver) VCPUs(ctx context.Context, instanceType, region string) int {
	key := vcpuKey{region: region, instanceType: instanceType}
	if cached, ok := r.cache[key]; ok {
		return cached
	}

	count, err := r.lookup.DefaultVCPUs(ctx, instanceType, region)
	if err != nil || count < 1 {
		r.logger.LogVCPUFallback(ctx, instanceType, region, err)
		count = vcpusFromName(instanceType)
	}

	r.cache[key] = count
	return count
}

// vcpusFromName parses the size suffix after the first dot,
// e.g. "c5.4xlarge" -> 16. Types without a dot default to 2.
func vcpusFromName(instanceType string) int {
	_, size, found := strings.Cut(instanceType, ".")
	if !found {
		return defaultVCPUs
	}
	if count, ok := sizeVCPUs[size]; ok {
		return count
	}
	return defaultVCPUs
}
