package dto

// CreateJobRequest creates a new escrow job. The client is the authenticated
// actor; attached_value funds native jobs and must equal amount.
type CreateJobRequest struct {
	Freelancer     string `json:"freelancer" binding:"required"`
	Arbiter        string `json:"arbiter"`
	AssetKind      string `json:"asset_kind" binding:"required,oneof=NATIVE TOKEN"`
	Token          string `json:"token"`
	Amount         uint64 `json:"amount" binding:"required"`
	Deadline       string `json:"deadline" binding:"required"` // RFC3339
	AttachedValue  uint64 `json:"attached_value"`
}

// CreateJobResponse returns the allocated job id. ArbiterDefaulted marks a
// job whose arbiter fell back to the creating client.
type CreateJobResponse struct {
	JobID            string `json:"job_id"`
	Status           string `json:"status"`
	ArbiterDefaulted bool   `json:"arbiter_defaulted,omitempty"`
}

// SubmitWorkRequest carries the optional deliverable reference.
type SubmitWorkRequest struct {
	DeliverableRef string `json:"deliverable_ref"`
}

// OpenDisputeRequest carries the optional dispute reason.
type OpenDisputeRequest struct {
	Reason string `json:"reason"`
}

// ResolveDisputeRequest names the winning party.
type ResolveDisputeRequest struct {
	Winner string `json:"winner" binding:"required"`
}

// DepositRequest credits an identity's native ledger balance.
type DepositRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

// JobResponse is the external view of a live job.
type JobResponse struct {
	JobID          string `json:"job_id"`
	Client         string `json:"client"`
	Freelancer     string `json:"freelancer"`
	Arbiter        string `json:"arbiter"`
	Amount         uint64 `json:"amount"`
	AssetKind      string `json:"asset_kind"`
	Token          string `json:"token,omitempty"`
	Deadline       string `json:"deadline"`
	Status         string `json:"status"`
	DeliverableRef string `json:"deliverable_ref,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// BalanceResponse reports a native ledger balance.
type BalanceResponse struct {
	Identity string `json:"identity"`
	Balance  uint64 `json:"balance"`
}
