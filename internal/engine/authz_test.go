package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob() *Job {
	return &Job{
		ID:         "job-1",
		Client:     "alice",
		Freelancer: "bob",
		Arbiter:    "carol",
		Amount:     100,
		Asset:      Asset{Kind: AssetNative},
		Deadline:   time.Now().Add(time.Hour),
		Status:     StatusCreated,
	}
}

func TestAuthorize(t *testing.T) {
	policy := NewPolicy("admin", "dave")
	job := testJob()

	tests := []struct {
		name    string
		caller  Identity
		role    Role
		allowed bool
	}{
		{"client as client", "alice", RoleClient, true},
		{"freelancer as client", "bob", RoleClient, false},
		{"freelancer as freelancer", "bob", RoleFreelancer, true},
		{"client as freelancer", "alice", RoleFreelancer, false},
		{"bound arbiter", "carol", RoleArbiter, true},
		{"global arbiter", "dave", RoleArbiter, true},
		{"client as arbiter", "alice", RoleArbiter, false},
		{"stranger as arbiter", "mallory", RoleArbiter, false},
		{"admin as admin", "admin", RoleAdmin, true},
		{"client as admin", "alice", RoleAdmin, false},
		{"empty caller", "", RoleClient, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorize(job, tt.caller, tt.role, policy)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnauthorized)
			}
		})
	}
}

func TestPolicy_Registry(t *testing.T) {
	policy := NewPolicy("admin")

	assert.False(t, policy.IsGlobalArbiter("dave"))

	// Only admin mutates the registry.
	err := policy.SetArbiter("alice", "dave")
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, policy.SetArbiter("admin", "dave"))
	assert.True(t, policy.IsGlobalArbiter("dave"))

	// Empty identity is rejected.
	err = policy.SetArbiter("admin", "")
	assert.ErrorIs(t, err, ErrValidation)

	err = policy.RemoveArbiter("alice", "dave")
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, policy.RemoveArbiter("admin", "dave"))
	assert.False(t, policy.IsGlobalArbiter("dave"))

	// Removing an absent entry is a no-op.
	require.NoError(t, policy.RemoveArbiter("admin", "dave"))
}

func TestPolicy_IsAdmin(t *testing.T) {
	policy := NewPolicy("admin")

	assert.True(t, policy.IsAdmin("admin"))
	assert.False(t, policy.IsAdmin("alice"))
	assert.False(t, policy.IsAdmin(""))
}

func TestJob_IsParty(t *testing.T) {
	job := testJob()

	assert.True(t, job.IsParty("alice"))
	assert.True(t, job.IsParty("bob"))
	assert.False(t, job.IsParty("carol"))
	assert.False(t, job.IsParty(""))
}

func TestJob_Expired(t *testing.T) {
	job := testJob()
	job.Deadline = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, job.Expired(job.Deadline.Add(-time.Second)))
	// The deadline instant itself is still on time.
	assert.False(t, job.Expired(job.Deadline))
	assert.True(t, job.Expired(job.Deadline.Add(time.Second)))
}
