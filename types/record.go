package types

// Allocation method names as accepted by config and CLI.
const (
	MethodWeighted = "weighted"
	MethodEqual    = "equal"
)

// Allocation method labels as they appear in report rows.
const (
	MethodLabelWeighted = "vcpu_weighted"
	MethodLabelEqual    = "equal_split"
)

// AllocationRecord is one instance's share of its host's cost.
// All records produced by a single engine run carry the same field set,
// which the report generator relies on for its column layout.
type AllocationRecord struct {
	Region             string
	HostID             string
	InstanceID         string
	InstanceType       string
	AllocatedCost      float64
	AllocationMethod   string
	RuntimeHours       float64
	BillingPeriodHours float64

	// Weighted method only.
	VCPUCount  int
	HourlyRate float64

	// Per-tag columns: lowercase keys in TagKeys order.
	TagKeys   []string
	TagValues map[string]string

	// Set by the multi-account orchestrator, empty otherwise.
	AccountID   string
	AccountName string
}

// HasVCPU reports whether the record carries vcpu_count/hourly_rate
// columns (weighted allocation).
func (r *AllocationRecord) HasVCPU() bool {
	return r.AllocationMethod == MethodLabelWeighted
}

// HasAccount reports whether account columns were appended.
func (r *AllocationRecord) HasAccount() bool {
	return r.AccountID != ""
}
