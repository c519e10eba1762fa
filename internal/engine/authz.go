package engine

import (
	"fmt"
	"sync"
)

// Role identifies the capability a transition requires of its caller.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	// RoleArbiter is satisfied by the job's bound arbiter or by any identity
	// in the global arbiter registry. The global role is an override, not a
	// replacement: a job keeps its bound arbiter regardless of registry churn.
	RoleArbiter Role = "arbiter"
	RoleAdmin   Role = "admin"
)

// Policy is the injected global authorization state: the admin identity that
// manages the arbiter registry, and the registry itself. It is deliberately a
// plain value passed at construction, never a package-level singleton, so a
// governance component can own and swap it.
type Policy struct {
	mu       sync.RWMutex
	admin    Identity
	arbiters map[Identity]struct{}
}

// NewPolicy returns a policy owned by admin with an optional initial set of
// global arbiters.
func NewPolicy(admin Identity, arbiters ...Identity) *Policy {
	p := &Policy{
		admin:    admin,
		arbiters: make(map[Identity]struct{}, len(arbiters)),
	}
	for _, a := range arbiters {
		p.arbiters[a] = struct{}{}
	}
	return p
}

// IsAdmin reports whether id owns the policy.
func (p *Policy) IsAdmin(id Identity) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return id != "" && id == p.admin
}

// IsGlobalArbiter reports whether id is in the global arbiter registry.
func (p *Policy) IsGlobalArbiter(id Identity) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.arbiters[id]
	return ok
}

// SetArbiter adds id to the global arbiter registry. Admin only.
func (p *Policy) SetArbiter(caller, id Identity) error {
	if !p.IsAdmin(caller) {
		return fmt.Errorf("%w: only admin may manage the arbiter registry", ErrUnauthorized)
	}
	if id == "" {
		return fmt.Errorf("%w: arbiter identity must not be empty", ErrValidation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.arbiters[id] = struct{}{}
	return nil
}

// RemoveArbiter removes id from the global arbiter registry. Admin only.
// Jobs that bound id at creation are unaffected.
func (p *Policy) RemoveArbiter(caller, id Identity) error {
	if !p.IsAdmin(caller) {
		return fmt.Errorf("%w: only admin may manage the arbiter registry", ErrUnauthorized)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.arbiters, id)
	return nil
}

// authorize resolves caller against the job's bound identities and the global
// policy. It consults only creation-time identities on the job, so later
// registry changes never revoke a job's own arbiter.
func authorize(job *Job, caller Identity, role Role, policy *Policy) error {
	if caller == "" {
		return fmt.Errorf("%w: missing caller identity", ErrUnauthorized)
	}

	switch role {
	case RoleClient:
		if caller == job.Client {
			return nil
		}
	case RoleFreelancer:
		if caller == job.Freelancer {
			return nil
		}
	case RoleArbiter:
		if caller == job.Arbiter || policy.IsGlobalArbiter(caller) {
			return nil
		}
	case RoleAdmin:
		if policy.IsAdmin(caller) {
			return nil
		}
	}

	return fmt.Errorf("%w: caller %q lacks role %s", ErrUnauthorized, caller, role)
}
