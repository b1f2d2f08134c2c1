// Package booking holds the pure request state machine: given the current
// request, an action and its payload, it returns the updated request plus
// the audit entry to append, or a typed rejection. It performs no I/O; the
// caller persists the result atomically.
package booking

import (
	"fmt"
	"time"

	"github.com/bookline/bookline/internal/interval"
	"github.com/bookline/bookline/internal/model"
)

type Action string

const (
	ActionApprove    Action = "approve"
	ActionPropose    Action = "propose"
	ActionDecline    Action = "decline"
	ActionComplete   Action = "complete"
	ActionReactivate Action = "reactivate"
)

// ParseAction validates a wire action name against the closed enum.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionPropose, ActionDecline, ActionComplete, ActionReactivate:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// transitions enumerates every legal (status, action) edge. Anything not
// listed here is ErrIllegalTransition. CANCELED has no inbound edge: it is a
// valid stored status but no action produces it.
var transitions = map[model.RequestStatus]map[Action]model.RequestStatus{
	model.StatusRequested: {
		ActionApprove: model.StatusApproved,
		ActionPropose: model.StatusProposedTime,
		ActionDecline: model.StatusDeclined,
	},
	model.StatusProposedTime: {
		ActionPropose: model.StatusProposedTime,
		ActionDecline: model.StatusDeclined,
	},
	model.StatusApproved: {
		ActionComplete: model.StatusCompleted,
	},
	model.StatusDeclined: {
		ActionReactivate: model.StatusRequested,
	},
}

// Target returns the status the action leads to from the given one.
func Target(from model.RequestStatus, action Action) (model.RequestStatus, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// TargetStatus returns the status an action drives toward regardless of the
// starting point. Bulk batches use it to tell a no-op item (already there,
// skipped) from an illegal one (failed).
func TargetStatus(action Action) model.RequestStatus {
	switch action {
	case ActionApprove:
		return model.StatusApproved
	case ActionPropose:
		return model.StatusProposedTime
	case ActionDecline:
		return model.StatusDeclined
	case ActionComplete:
		return model.StatusCompleted
	case ActionReactivate:
		return model.StatusRequested
	}
	return ""
}

// Payload carries the caller-supplied inputs of an action.
type Payload struct {
	ProposedStart time.Time // propose only
	ProposedEnd   time.Time
	Actor         model.ActorKind
	Notes         string // copied onto the audit entry
}

// ConflictFn answers whether a candidate interval is bookable. It returns
// ErrConflict when the interval overlaps busy time.
type ConflictFn func(span interval.Span) error

// Outcome is the result of an accepted transition.
type Outcome struct {
	Request model.BookingRequest // updated copy
	Entry   model.AuditLogEntry  // audit record to append atomically
	Notify  bool                 // whether the external notification sink fires
}

// Apply runs one action against a request snapshot. approveDuration is the
// assumed interval length when approving a bare preferred start (offering
// duration, or the business slot granularity when no offering is referenced).
// validate is only consulted for actions that assert a time.
func Apply(req model.BookingRequest, action Action, p Payload, approveDuration time.Duration, validate ConflictFn, now time.Time) (Outcome, error) {
	to, ok := Target(req.Status, action)
	if !ok {
		return Outcome{}, fmt.Errorf("%s from %s: %w", action, req.Status, ErrIllegalTransition)
	}

	from := req.Status
	notify := false

	switch action {
	case ActionApprove:
		if req.PreferredStart == nil {
			return Outcome{}, ErrNoTimeToApprove
		}
		span, err := interval.New(*req.PreferredStart, req.PreferredStart.Add(approveDuration))
		if err != nil {
			return Outcome{}, ErrNoTimeToApprove
		}
		if validate != nil {
			if err := validate(span); err != nil {
				return Outcome{}, err
			}
		}
		start, end := span.Start, span.End
		req.ProposedStart = &start
		req.ProposedEnd = &end
		notify = true

	case ActionPropose:
		if p.ProposedStart.IsZero() || p.ProposedEnd.IsZero() || !p.ProposedStart.Before(p.ProposedEnd) {
			return Outcome{}, ErrInvalidProposal
		}
		span := interval.Span{Start: p.ProposedStart, End: p.ProposedEnd}
		if validate != nil {
			if err := validate(span); err != nil {
				return Outcome{}, err
			}
		}
		start, end := p.ProposedStart, p.ProposedEnd
		req.ProposedStart = &start
		req.ProposedEnd = &end
		notify = true

	case ActionDecline:
		notify = true

	case ActionComplete, ActionReactivate:
		// Reactivate deliberately keeps any stale proposed window; the next
		// propose/approve overwrites it.
	}

	req.Status = to
	req.UpdatedAt = now

	actor := p.Actor
	if actor == "" {
		actor = model.ActorStaff
	}

	return Outcome{
		Request: req,
		Entry: model.AuditLogEntry{
			RequestID:  req.ID,
			Actor:      actor,
			FromStatus: from,
			ToStatus:   to,
			Action:     string(action),
			Timestamp:  now,
			Notes:      p.Notes,
		},
		Notify: notify,
	}, nil
}
