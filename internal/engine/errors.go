package engine

import "errors"

var (
	// ErrValidation is returned when creation or transition inputs are invalid
	// (zero amount, identical parties, past deadline, bad dispute winner).
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when the caller lacks the required role
	// for the requested transition.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrInvalidState is returned when the transition is illegal for the
	// job's current status.
	ErrInvalidState = errors.New("operation not allowed in current status")

	// ErrDeadline is returned when a deadline condition for the requested
	// operation is unmet.
	ErrDeadline = errors.New("deadline condition not met")

	// ErrReentrancy is returned when a call tries to enter a guarded
	// transition while an external value transfer is in flight.
	ErrReentrancy = errors.New("reentrant call rejected")

	// ErrNotFound is returned for an unknown or already-settled job id.
	// The two are indistinguishable by design.
	ErrNotFound = errors.New("job not found")

	// ErrIDCollision is returned when the allocator derives an id that is
	// already bound to a live job.
	ErrIDCollision = errors.New("job id collision")
)

// TransferError wraps a failed external asset movement. The triggering
// operation persists nothing when one of these is returned.
type TransferError struct {
	Op  string // "lock" or "release"
	Err error
}

func (e *TransferError) Error() string {
	return "transfer failed during " + e.Op + ": " + e.Err.Error()
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError wraps err as a TransferError for the given custody op.
func NewTransferError(op string, err error) error {
	return &TransferError{Op: op, Err: err}
}

// IsTransferError reports whether err is (or wraps) a TransferError.
func IsTransferError(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}
