package orchestrator

import "github.com/finopslab/hostalloc/types"

// AccountStatus tracks how far an account made it through the pipeline.
type AccountStatus string

const (
	StatusPending     AccountStatus = "pending"
	StatusRoleAssumed AccountStatus = "role_assumed"
	StatusDiscovered  AccountStatus = "discovered"
	StatusCosted      AccountStatus = "costed"
	StatusAllocated   AccountStatus = "allocated"
	StatusSkipped     AccountStatus = "skipped"
)

// AccountResult is one account's contribution to the consolidated run.
// A skipped account carries zero records and the error that stopped it.
type AccountResult struct {
	AccountID   string
	AccountName string
	Status      AccountStatus
	Records     []types.AllocationRecord
	Err         error
}
