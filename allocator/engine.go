package allocator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/finopslab/hostalloc/telemetry"
	"github.com/finopslab/hostalloc/types"
)

// DefaultBillingHours is assumed when no billing window is given
// (30 days x 24h).
const DefaultBillingHours = 720.0

// Engine computes per-instance allocated costs. Stateless between calls;
// each Allocate is a pure function of its inputs plus vCPU resolution.
type Engine struct {
	resolver *Resolver
	logger   *telemetry.Logger
}

// NewEngine creates an allocation engine using the given vCPU resolver.
func NewEngine(resolver *Resolver) *Engine {
	return &Engine{
		resolver: resolver,
		logger:   telemetry.NewLogger("allocator"),
	}
}

// Allocate distributes each host's matched cost across its instances.
//
// Hosts without instances are ignored. Hosts whose (region, family) never
// matches a cost line item are logged and excluded entirely; partial
// hosts are never partially billed. Hosts are processed in key order so
// output is deterministic.
func (e *Engine) Allocate(
	ctx context.Context,
	hosts map[types.HostKey]*types.Host,
	costs *types.CostTable,
	method string,
	start, end time.Time,
	tagKeys []string,
) ([]types.AllocationRecord, error) {
	if method != types.MethodWeighted && method != types.MethodEqual {
		return nil, fmt.Errorf("unknown allocation method: %s", method)
	}

	billingHours := DefaultBillingHours
	if !start.IsZero() && !end.IsZero() {
		billingHours = stripZone(end).Sub(stripZone(start)).Hours()
	}

	e.logger.WithContext(ctx).Info().
		Str("method", method).
		Float64("billing_hours", billingHours).
		Int("hosts", len(hosts)).
		Msg("calculating costs")

	var records []types.AllocationRecord
	for _, key := range sortedKeys(hosts) {
		host := hosts[key]
		if len(host.Instances) == 0 {
			continue
		}

		hostCost, ok := costs.Match(host.Region, host.Family)
		if !ok || hostCost == 0 {
			e.logger.LogCostMiss(ctx, host.HostID, host.Region, host.Family)
			continue
		}

		runtimes := make(map[string]float64, len(host.Instances))
		for _, inst := range host.Instances {
			runtimes[inst.InstanceID] = instanceRuntime(inst.LaunchTime, start, end, billingHours)
		}

		switch method {
		case types.MethodEqual:
			records = append(records, e.allocateEqual(host, hostCost, runtimes, billingHours, tagKeys)...)
		case types.MethodWeighted:
			records = append(records, e.allocateWeighted(ctx, host, hostCost, runtimes, billingHours, tagKeys)...)
		}
	}

	return records, nil
}

// allocateEqual splits the host cost evenly, then scales each share by
// the instance's share of the billing window. Partial-window instances
// are not renormalized across their peers, so the host total can come in
// under the host cost.
func (e *Engine) allocateEqual(
	host *types.Host,
	hostCost float64,
	runtimes map[string]float64,
	billingHours float64,
	tagKeys []string,
) []types.AllocationRecord {
	costPerInstance := hostCost / float64(len(host.Instances))

	records := make([]types.AllocationRecord, 0, len(host.Instances))
	for _, inst := range host.Instances {
		runtime := runtimes[inst.InstanceID]
		allocated := costPerInstance * (runtime / billingHours)
		records = append(records, newRecord(host, inst, allocated, types.MethodLabelEqual, runtime, billingHours, 0, tagKeys))
	}
	return records
}

// allocateWeighted distributes the host cost proportionally to
// vcpu x runtime. With a non-zero denominator the shares sum back to the
// host cost exactly (up to rounding).
func (e *Engine) allocateWeighted(
	ctx context.Context,
	host *types.Host,
	hostCost float64,
	runtimes map[string]float64,
	billingHours float64,
	tagKeys []string,
) []types.AllocationRecord {
	weights := make(map[string]int, len(host.Instances))
	totalWeightedRuntime := 0.0
	for _, inst := range host.Instances {
		vcpu := e.resolver.VCPUs(ctx, inst.InstanceType, inst.Region)
		weights[inst.InstanceID] = vcpu
		totalWeightedRuntime += float64(vcpu) * runtimes[inst.InstanceID]
	}

	records := make([]types.AllocationRecord, 0, len(host.Instances))
	for _, inst := range host.Instances {
		vcpu := weights[inst.InstanceID]
		runtime := runtimes[inst.InstanceID]

		allocated := 0.0
		if totalWeightedRuntime > 0 {
			allocated = hostCost * (float64(vcpu) * runtime) / totalWeightedRuntime
		}

		records = append(records, newRecord(host, inst, allocated, types.MethodLabelWeighted, runtime, billingHours, vcpu, tagKeys))
	}
	return records
}

// newRecord builds a record, applying the rounding policy exactly once:
// money to 2 decimals, hours to 1, hourly rate to 4.
func newRecord(
	host *types.Host,
	inst types.Instance,
	cost float64,
	methodLabel string,
	runtime, billingHours float64,
	vcpu int,
	tagKeys []string,
) types.AllocationRecord {
	rec := types.AllocationRecord{
		Region:             host.Region,
		HostID:             host.HostID,
		InstanceID:         inst.InstanceID,
		InstanceType:       inst.InstanceType,
		AllocatedCost:      round2(cost),
		AllocationMethod:   methodLabel,
		RuntimeHours:       round1(runtime),
		BillingPeriodHours: round1(billingHours),
		TagValues:          make(map[string]string, len(tagKeys)),
	}

	if vcpu > 0 {
		rec.VCPUCount = vcpu
		if runtime > 0 {
			rec.HourlyRate = round4(cost / runtime)
		}
	}

	for _, key := range tagKeys {
		lower := strings.ToLower(key)
		rec.TagKeys = append(rec.TagKeys, lower)
		rec.TagValues[lower] = inst.Tags.Get(key)
	}

	return rec
}

// instanceRuntime computes hours the instance was present in the window,
// clamped to [0, billingHours]. Instances launched before the window
// start count the full window.
func instanceRuntime(launch time.Time, start, end time.Time, billingHours float64) float64 {
	if launch.IsZero() {
		return billingHours
	}

	launch = stripZone(launch)
	if !start.IsZero() && launch.Before(stripZone(start)) {
		return billingHours
	}

	runtime := billingHours
	if !end.IsZero() {
		runtime = math.Min(billingHours, stripZone(end).Sub(launch).Hours())
	}
	return math.Max(0, runtime)
}

// stripZone discards the timezone offset, keeping wall-clock fields.
// All window comparisons happen on this single naive timeline.
func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func sortedKeys(hosts map[types.HostKey]*types.Host) []types.HostKey {
	keys := make([]types.HostKey, 0, len(hosts))
	for key := range hosts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Region != keys[j].Region {
			return keys[i].Region < keys[j].Region
		}
		return keys[i].HostID < keys[j].HostID
	})
	return keys
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
