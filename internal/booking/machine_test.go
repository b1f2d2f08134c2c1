package booking

import (
	"testing"
	"time"

	"github.com/bookline/bookline/internal/interval"
	"github.com/bookline/bookline/internal/model"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2030, 6, 3, 12, 0, 0, 0, time.UTC)

func newRequest(status model.RequestStatus) model.BookingRequest {
	preferred := testNow.Add(48 * time.Hour)
	return model.BookingRequest{
		ID:             "req-1",
		BusinessID:     "biz-1",
		Customer:       model.CustomerInfo{Name: "Ada", Email: "ada@example.com"},
		PreferredStart: &preferred,
		Status:         status,
		CreatedAt:      testNow.Add(-time.Hour),
		UpdatedAt:      testNow.Add(-time.Hour),
	}
}

func proposePayload() Payload {
	return Payload{
		ProposedStart: testNow.Add(72 * time.Hour),
		ProposedEnd:   testNow.Add(73 * time.Hour),
		Actor:         model.ActorStaff,
	}
}

func allStatuses() []model.RequestStatus {
	return []model.RequestStatus{
		model.StatusRequested,
		model.StatusProposedTime,
		model.StatusApproved,
		model.StatusDeclined,
		model.StatusCompleted,
		model.StatusCanceled,
	}
}

func allActions() []Action {
	return []Action{ActionApprove, ActionPropose, ActionDecline, ActionComplete, ActionReactivate}
}

// legalEdges mirrors the transition table; the adversarial matrix below
// asserts every pair outside it is rejected unchanged.
var legalEdges = map[model.RequestStatus]map[Action]model.RequestStatus{
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

func TestTransitionMatrixExhaustive(t *testing.T) {
	for _, status := range allStatuses() {
		for _, action := range allActions() {
			status, action := status, action
			t.Run(string(status)+"_"+string(action), func(t *testing.T) {
				req := newRequest(status)
				before := req

				outcome, err := Apply(req, action, proposePayload(), time.Hour, nil, testNow)

				want, legal := legalEdges[status][action]
				if !legal {
					require.ErrorIs(t, err, ErrIllegalTransition)
					require.Equal(t, before, req, "rejected action must leave the request unchanged")
					return
				}

				require.NoError(t, err)
				require.Equal(t, want, outcome.Request.Status)
				require.Equal(t, status, outcome.Entry.FromStatus)
				require.Equal(t, want, outcome.Entry.ToStatus)
				require.Equal(t, string(action), outcome.Entry.Action)
				require.Equal(t, testNow, outcome.Entry.Timestamp)
			})
		}
	}
}

func TestTerminalStatusesHaveNoOutboundEdges(t *testing.T) {
	for _, status := range []model.RequestStatus{model.StatusCompleted, model.StatusCanceled} {
		for _, action := range allActions() {
			_, err := Apply(newRequest(status), action, proposePayload(), time.Hour, nil, testNow)
			require.ErrorIs(t, err, ErrIllegalTransition, "%s must be terminal, action %s got through", status, action)
		}
	}
}

func TestReactivateIsOnlyWayOutOfDeclined(t *testing.T) {
	for _, action := range allActions() {
		_, err := Apply(newRequest(model.StatusDeclined), action, proposePayload(), time.Hour, nil, testNow)
		if action == ActionReactivate {
			require.NoError(t, err)
		} else {
			require.ErrorIs(t, err, ErrIllegalTransition)
		}
	}
}

func TestApproveWithoutPreferredStart(t *testing.T) {
	req := newRequest(model.StatusRequested)
	req.PreferredStart = nil

	_, err := Apply(req, ActionApprove, Payload{}, time.Hour, nil, testNow)
	require.ErrorIs(t, err, ErrNoTimeToApprove)
}

func TestApproveSetsWindowFromPreferredStart(t *testing.T) {
	req := newRequest(model.StatusRequested)

	outcome, err := Apply(req, ActionApprove, Payload{}, 90*time.Minute, nil, testNow)
	require.NoError(t, err)
	require.NotNil(t, outcome.Request.ProposedStart)
	require.NotNil(t, outcome.Request.ProposedEnd)
	require.Equal(t, *req.PreferredStart, *outcome.Request.ProposedStart)
	require.Equal(t, req.PreferredStart.Add(90*time.Minute), *outcome.Request.ProposedEnd)
	require.True(t, outcome.Notify)
}

func TestApproveConflictLeavesRequestUntouched(t *testing.T) {
	req := newRequest(model.StatusRequested)

	conflict := func(interval.Span) error { return ErrConflict }
	_, err := Apply(req, ActionApprove, Payload{}, time.Hour, conflict, testNow)
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, model.StatusRequested, req.Status)
	require.Nil(t, req.ProposedStart)
}

func TestProposeValidatesWindow(t *testing.T) {
	req := newRequest(model.StatusRequested)

	_, err := Apply(req, ActionPropose, Payload{}, time.Hour, nil, testNow)
	require.ErrorIs(t, err, ErrInvalidProposal)

	p := proposePayload()
	p.ProposedEnd = p.ProposedStart
	_, err = Apply(req, ActionPropose, p, time.Hour, nil, testNow)
	require.ErrorIs(t, err, ErrInvalidProposal)
}

func TestProposeConsultsConflictCheck(t *testing.T) {
	var checked interval.Span
	validate := func(span interval.Span) error {
		checked = span
		return nil
	}

	p := proposePayload()
	outcome, err := Apply(newRequest(model.StatusRequested), ActionPropose, p, time.Hour, validate, testNow)
	require.NoError(t, err)
	require.Equal(t, p.ProposedStart, checked.Start)
	require.Equal(t, p.ProposedEnd, checked.End)
	require.Equal(t, model.StatusProposedTime, outcome.Request.Status)
}

func TestDeclineNeedsNoConflictCheck(t *testing.T) {
	validate := func(interval.Span) error {
		t.Fatal("decline must not consult availability")
		return nil
	}
	_, err := Apply(newRequest(model.StatusRequested), ActionDecline, Payload{}, time.Hour, validate, testNow)
	require.NoError(t, err)
}

func TestReactivateKeepsStaleProposedWindow(t *testing.T) {
	req := newRequest(model.StatusDeclined)
	start := testNow.Add(24 * time.Hour)
	end := start.Add(time.Hour)
	req.ProposedStart = &start
	req.ProposedEnd = &end

	outcome, err := Apply(req, ActionReactivate, Payload{}, time.Hour, nil, testNow)
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, outcome.Request.Status)

	// Observed source behavior: the stale window survives until the next
	// propose/approve overwrites it.
	require.Equal(t, &start, outcome.Request.ProposedStart)
	require.Equal(t, &end, outcome.Request.ProposedEnd)
}

func TestParseActionRejectsUnknown(t *testing.T) {
	_, err := ParseAction("cancel")
	require.Error(t, err, "cancel is not an action: no edge leads into CANCELED")

	_, err = ParseAction("archive")
	require.Error(t, err)

	action, err := ParseAction("decline")
	require.NoError(t, err)
	require.Equal(t, ActionDecline, action)
}

func TestTargetStatus(t *testing.T) {
	require.Equal(t, model.StatusDeclined, TargetStatus(ActionDecline))
	require.Equal(t, model.StatusRequested, TargetStatus(ActionReactivate))
	require.Equal(t, model.RequestStatus(""), TargetStatus(Action("bogus")))
}
