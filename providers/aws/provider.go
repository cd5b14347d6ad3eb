package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/finopslab/hostalloc/telemetry"
	"github.com/finopslab/hostalloc/types"
)

const unknownFamily = "Unknown"

// EC2API is the slice of the EC2 surface the collector consumes.
// *ec2.Client satisfies it; tests inject fakes.
type EC2API interface {
	DescribeHosts(ctx context.Context, params *ec2.DescribeHostsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeHostsOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeInstanceTypes(ctx context.Context, params *ec2.DescribeInstanceTypesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
}

// Collector discovers dedicated hosts and the instances placed on them,
// one EC2 client per configured region.
type Collector struct {
	regions []string
	clients map[string]EC2API
	logger  *telemetry.Logger
}

// NewCollector builds a collector from the default credential chain.
func NewCollector(ctx context.Context, regions []string) (*Collector, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewCollectorFromConfig(cfg, regions), nil
}

// NewCollectorFromConfig builds a collector from an existing AWS config,
// typically one carrying assumed-role credentials.
func NewCollectorFromConfig(cfg aws.Config, regions []string) *Collector {
	clients := make(map[string]EC2API, len(regions))
	for _, region := range regions {
		rcfg := cfg.Copy()
		rcfg.Region = region
		clients[region] = ec2.NewFromConfig(rcfg)
	}
	return &Collector{
		regions: regions,
		clients: clients,
		logger:  telemetry.NewLogger("collector"),
	}
}

// NewCollectorWithClients wires pre-built clients, for tests.
func NewCollectorWithClients(clients map[string]EC2API) *Collector {
	regions := make([]string, 0, len(clients))
	for region := range clients {
		regions = append(regions, region)
	}
	return &Collector{
		regions: regions,
		clients: clients,
		logger:  telemetry.NewLogger("collector"),
	}
}

// DiscoverHosts lists dedicated hosts across all configured regions.
// A failing region is logged and skipped; the remaining regions still
// contribute, so a partial map is a normal outcome.
func (c *Collector) DiscoverHosts(ctx context.Context) map[types.HostKey]*types.Host {
	hosts := make(map[types.HostKey]*types.Host)

	for _, region := range c.regions {
		found, err := c.discoverRegionHosts(ctx, region)
		if err != nil {
			c.logger.LogRegionError(ctx, region, "describe_hosts", err)
			continue
		}
		for key, host := range found {
			hosts[key] = host
		}
		c.logger.WithContext(ctx).Info().
			Str("region", region).
			Int("hosts", len(found)).
			Msg("discovered dedicated hosts")
	}

	return hosts
}

func (c *Collector) discoverRegionHosts(ctx context.Context, region string) (map[types.HostKey]*types.Host, error) {
	found := make(map[types.HostKey]*types.Host)

	paginator := ec2.NewDescribeHostsPaginator(c.clients[region], &ec2.DescribeHostsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe hosts: %w", err)
		}
		for _, h := range output.Hosts {
			host := c.convertHost(region, h)
			found[host.Key()] = host
		}
	}

	return found, nil
}

func (c *Collector) convertHost(region string, h ec2types.Host) *types.Host {
	family := unknownFamily
	if props := h.HostProperties; props != nil {
		if props.InstanceFamily != nil {
			family = aws.ToString(props.InstanceFamily)
		} else if props.InstanceType != nil {
			family = types.HostFamily(aws.ToString(props.InstanceType))
		}
	}

	return &types.Host{
		Region: region,
		HostID: aws.ToString(h.HostId),
		Family: family,
		State:  string(h.State),
	}
}

// AttachInstances maps host-tenancy instances onto discovered hosts.
// Instances whose placement host is not in the map are silently ignored.
func (c *Collector) AttachInstances(ctx context.Context, hosts map[types.HostKey]*types.Host) {
	for _, region := range c.regions {
		if err := c.attachRegionInstances(ctx, region, hosts); err != nil {
			c.logger.LogRegionError(ctx, region, "describe_instances", err)
		}
	}

	total := 0
	for _, host := range hosts {
		total += len(host.Instances)
	}
	c.logger.WithContext(ctx).Info().
		Int("instances", total).
		Msg("mapped instances to dedicated hosts")
}

func (c *Collector) attachRegionInstances(ctx context.Context, region string, hosts map[types.HostKey]*types.Host) error {
	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tenancy"), Values: []string{"host"}},
		},
	}

	paginator := ec2.NewDescribeInstancesPaginator(c.clients[region], input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				c.attachInstance(region, instance, hosts)
			}
		}
	}

	return nil
}

func (c *Collector) attachInstance(region string, instance ec2types.Instance, hosts map[types.HostKey]*types.Host) {
	if instance.Placement == nil || instance.Placement.HostId == nil {
		return
	}

	key := types.HostKey{Region: region, HostID: aws.ToString(instance.Placement.HostId)}
	host, ok := hosts[key]
	if !ok {
		return
	}

	host.Instances = append(host.Instances, types.Instance{
		InstanceID:   aws.ToString(instance.InstanceId),
		InstanceType: string(instance.InstanceType),
		Region:       region,
		Tags:         convertTags(instance.Tags),
		LaunchTime:   safeTimeValue(instance.LaunchTime),
	})
}

// DefaultVCPUs looks up the default vCPU count for an instance type.
// Implements allocator.VCPULookup.
func (c *Collector) DefaultVCPUs(ctx context.Context, instanceType, region string) (int, error) {
	client, ok := c.clients[region]
	if !ok {
		return 0, fmt.Errorf("no client for region %s", region)
	}

	output, err := client.DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{
		InstanceTypes: []ec2types.InstanceType{ec2types.InstanceType(instanceType)},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to describe instance type %s: %w", instanceType, err)
	}

	if len(output.InstanceTypes) == 0 || output.InstanceTypes[0].VCpuInfo == nil {
		return 0, fmt.Errorf("no vCPU data for instance type %s", instanceType)
	}

	return int(aws.ToInt32(output.InstanceTypes[0].VCpuInfo.DefaultVCpus)), nil
}

// convertTags converts EC2 tags to the free-form tag map.
func convertTags(ec2Tags []ec2types.Tag) types.Tags {
	tags := types.Tags{}
	for _, tag := range ec2Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return tags
}

// safeTimeValue safely converts *time.Time to time.Time
func safeTimeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
