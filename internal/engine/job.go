package engine

import "time"

// Identity is an opaque caller/party identifier (an address or account id).
type Identity string

// AssetKind distinguishes the two supported custody asset kinds.
type AssetKind string

const (
	AssetNative AssetKind = "NATIVE"
	AssetToken  AssetKind = "TOKEN"
)

// Asset describes what a job's locked value is denominated in. For
// AssetToken, Token references a registered fungible-token backend.
type Asset struct {
	Kind  AssetKind `json:"kind"`
	Token string    `json:"token,omitempty"`
}

// Job status constants. Terminal outcomes (accepted, resolved, cancelled,
// refunded) are never stored: the record is removed the moment one of them
// is reached, so only non-terminal statuses appear here.
const (
	StatusCreated    = "CREATED"
	StatusInProgress = "IN_PROGRESS"
	StatusSubmitted  = "SUBMITTED"
	StatusDisputed   = "DISPUTED"
)

// Job is the central escrow record: a custodial agreement between a client
// and a freelancer, optionally mediated by an arbiter.
type Job struct {
	ID             string
	Client         Identity
	Freelancer     Identity
	Arbiter        Identity
	Amount         uint64
	Asset          Asset
	Deadline       time.Time
	Status         string
	DeliverableRef string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Expired reports whether the job's deadline has passed at the given time.
func (j *Job) Expired(now time.Time) bool {
	return now.After(j.Deadline)
}

// IsParty reports whether id is the job's client or freelancer.
func (j *Job) IsParty(id Identity) bool {
	return id == j.Client || id == j.Freelancer
}
