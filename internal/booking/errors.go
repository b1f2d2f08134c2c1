package booking

import "errors"

var (
	// ErrIllegalTransition: the action is not valid from the current status.
	// Always a caller bug, never retried.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrNoTimeToApprove: approve attempted with no usable time on the request.
	ErrNoTimeToApprove = errors.New("no time to approve")

	// ErrConflict: the candidate interval overlaps busy time. Surfaced to the
	// operator to pick another time, never auto-resolved.
	ErrConflict = errors.New("interval conflicts with busy time")

	// ErrStaleState: optimistic-concurrency mismatch. The caller should
	// refetch and retry once.
	ErrStaleState = errors.New("stale state")

	// ErrInvalidProposal: propose payload missing a window or end not after start.
	ErrInvalidProposal = errors.New("proposed end must be after proposed start")
)

// Code maps a taxonomy error to its wire identifier.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrIllegalTransition):
		return "ILLEGAL_TRANSITION"
	case errors.Is(err, ErrNoTimeToApprove):
		return "NO_TIME_TO_APPROVE"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrStaleState):
		return "STALE_STATE"
	case errors.Is(err, ErrInvalidProposal):
		return "INVALID_PROPOSAL"
	default:
		return "INTERNAL"
	}
}
