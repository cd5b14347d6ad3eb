package types

import (
	"fmt"
	"time"
)

// HostKey identifies a dedicated host within a region.
type HostKey struct {
	Region string
	HostID string
}

// String renders the key as region:host-id, the form used in logs.
func (k HostKey) String() string {
	return fmt.Sprintf("%s:%s", k.Region, k.HostID)
}

// Host is a dedicated host and the instances placed on it.
// Built once per discovery run, never persisted.
type Host struct {
	Region    string
	HostID    string
	Family    string
	State     string
	Instances []Instance
}

// Key returns the host's lookup key.
func (h *Host) Key() HostKey {
	return HostKey{Region: h.Region, HostID: h.HostID}
}

// Instance is an EC2 instance with host tenancy.
type Instance struct {
	InstanceID   string
	InstanceType string
	Region       string
	Tags         Tags
	LaunchTime   time.Time
}

// HostFamily derives the instance family from a type string,
// e.g. "c5" from "c5.large". Strings without a dot pass through.
func HostFamily(instanceType string) string {
	for i := 0; i < len(instanceType); i++ {
		if instanceType[i] == '.' {
			return instanceType[:i]
		}
	}
	return instanceType
}
