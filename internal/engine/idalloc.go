package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// IDAllocator derives fixed-size job ids from creation-time inputs.
//
// The digest covers both parties, the amount and the creation timestamp, plus
// a monotonic counter so that two jobs created with identical inputs in the
// same instant still get distinct ids. Hashing alone is not a uniqueness
// guarantee: the creation handler still checks the store and fails with
// ErrIDCollision rather than overwrite.
type IDAllocator struct {
	counter atomic.Uint64
}

// NewIDAllocator returns an allocator with its counter at zero.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Allocate derives an id for a job between client and freelancer. It is
// deterministic given identical inputs and counter position.
func (a *IDAllocator) Allocate(client, freelancer Identity, amount uint64, at time.Time) string {
	n := a.counter.Add(1)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%d", client, freelancer, amount, at.UnixNano(), n)
	return hex.EncodeToString(h.Sum(nil))
}
