package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bookline/bookline/internal/booking"
	"github.com/bookline/bookline/internal/interval"
	"github.com/bookline/bookline/internal/lock"
	"github.com/bookline/bookline/internal/model"
	"github.com/bookline/bookline/internal/notify"
	"github.com/bookline/bookline/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBusiness = "biz-1"

// fixedNow is a Monday noon; preferred times below land on the Wednesday.
var fixedNow = time.Date(2030, 6, 3, 12, 0, 0, 0, time.UTC)

func wednesday(hour int) time.Time {
	return time.Date(2030, 6, 5, hour, 0, 0, 0, time.UTC)
}

type testEnv struct {
	store    *memory.Store
	avail    *AvailabilityService
	bookings *BookingService
}

// newTestEnv wires the services over one memory store. A test that needs to
// intercept the commit path passes its own base store plus a wrapped
// RequestStore view over it, so audit and schedule reads see the same data.
func newTestEnv(t *testing.T, store *memory.Store, requests RequestStore) *testEnv {
	t.Helper()

	if store == nil {
		store = memory.NewStore()
	}
	if requests == nil {
		requests = store
	}
	logger := zap.NewNop()

	avail := NewAvailabilityService(store, requests, store, nil, 0, logger)
	avail.now = func() time.Time { return fixedNow }

	bookings := NewBookingService(requests, store, store, avail, nil, logger)
	bookings.now = avail.now

	env := &testEnv{store: store, avail: avail, bookings: bookings}
	env.seedWeek(t)
	return env
}

// seedWeek opens every weekday 09:00-17:00 so only deliberate busy time
// causes conflicts.
func (e *testEnv) seedWeek(t *testing.T) {
	t.Helper()
	windows := make([]model.AvailabilityWindow, 0, 7)
	for day := 0; day < 7; day++ {
		windows = append(windows, model.AvailabilityWindow{
			DayOfWeek: day,
			StartTime: "09:00",
			EndTime:   "17:00",
			Enabled:   true,
		})
	}
	require.NoError(t, e.avail.ReplaceWindows(context.Background(), testBusiness, windows))
}

func (e *testEnv) submit(t *testing.T, preferred time.Time) *model.BookingRequest {
	t.Helper()
	req, err := e.bookings.SubmitRequest(context.Background(), testBusiness, model.CustomerInfo{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
	}, nil, &preferred)
	require.NoError(t, err)
	return req
}

func TestSubmitRequestValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	preferred := wednesday(10)

	_, err := env.bookings.SubmitRequest(ctx, testBusiness, model.CustomerInfo{Email: "a@b.example"}, nil, &preferred)
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.bookings.SubmitRequest(ctx, testBusiness, model.CustomerInfo{Name: "Ada", Email: "not-an-email"}, nil, &preferred)
	require.ErrorIs(t, err, ErrValidation)

	missing := uuid.NewString()
	_, err = env.bookings.SubmitRequest(ctx, testBusiness, model.CustomerInfo{Name: "Ada", Email: "a@b.example"}, &missing, &preferred)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitRequestRejectsInactiveOffering(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	offering := &model.Offering{ID: uuid.NewString(), BusinessID: testBusiness, Name: "Intro call", DurationMinutes: 30}
	require.NoError(t, env.store.CreateOffering(ctx, offering))

	preferred := wednesday(10)
	_, err := env.bookings.SubmitRequest(ctx, testBusiness, model.CustomerInfo{Name: "Ada", Email: "a@b.example"}, &offering.ID, &preferred)
	require.ErrorIs(t, err, ErrValidation)

	offering.Active = true
	require.NoError(t, env.store.UpdateOffering(ctx, offering))

	req, err := env.bookings.SubmitRequest(ctx, testBusiness, model.CustomerInfo{Name: "Ada", Email: "a@b.example"}, &offering.ID, &preferred)
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, req.Status)
	require.NotEmpty(t, req.ID)
}

func TestApproveSetsWindowAndAppendsAudit(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	req := env.submit(t, wednesday(10))

	got, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionApprove, ActionInput{Actor: model.ActorStaff}, model.StatusRequested)
	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, got.Status)
	require.Equal(t, wednesday(10), *got.ProposedStart)
	// no offering on the request, so the slot granularity decides the length
	require.Equal(t, wednesday(10).Add(30*time.Minute), *got.ProposedEnd)

	trail, err := env.bookings.GetAuditTrail(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, model.StatusRequested, trail[0].FromStatus)
	require.Equal(t, model.StatusApproved, trail[0].ToStatus)
	require.Equal(t, "approve", trail[0].Action)
	require.NotEmpty(t, trail[0].ID)
}

func TestApproveUsesOfferingDuration(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	offering := &model.Offering{ID: uuid.NewString(), BusinessID: testBusiness, Name: "Deep dive", DurationMinutes: 90, Active: true}
	require.NoError(t, env.store.CreateOffering(ctx, offering))

	preferred := wednesday(10)
	req, err := env.bookings.SubmitRequest(ctx, testBusiness, model.CustomerInfo{Name: "Ada", Email: "a@b.example"}, &offering.ID, &preferred)
	require.NoError(t, err)

	got, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionApprove, ActionInput{}, model.StatusRequested)
	require.NoError(t, err)
	require.Equal(t, preferred.Add(90*time.Minute), *got.ProposedEnd)
}

func TestApproveAgainstBusyBlockConflicts(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	req := env.submit(t, wednesday(10))

	_, err := env.avail.CreateBusyBlock(ctx, model.BusyBlock{
		BusinessID: testBusiness,
		Start:      wednesday(10),
		End:        wednesday(11),
	})
	require.NoError(t, err)

	_, err = env.bookings.ApplyAction(ctx, req.ID, booking.ActionApprove, ActionInput{}, model.StatusRequested)
	require.ErrorIs(t, err, booking.ErrConflict)

	// rejected transition leaves the request and its trail untouched
	stored, err := env.bookings.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, stored.Status)
	require.Nil(t, stored.ProposedStart)

	trail, err := env.bookings.GetAuditTrail(ctx, req.ID)
	require.NoError(t, err)
	require.Empty(t, trail)
}

func TestProposeOutsideHoursConflicts(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	req := env.submit(t, wednesday(10))

	_, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionPropose, ActionInput{
		ProposedStart: wednesday(18),
		ProposedEnd:   wednesday(19),
	}, model.StatusRequested)
	require.ErrorIs(t, err, booking.ErrConflict)
}

func TestReProposeIgnoresOwnCommittedWindow(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	req := env.submit(t, wednesday(10))

	_, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionPropose, ActionInput{
		ProposedStart: wednesday(10),
		ProposedEnd:   wednesday(11),
	}, model.StatusRequested)
	require.NoError(t, err)

	// Overlaps the request's own committed window; only other requests count.
	got, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionPropose, ActionInput{
		ProposedStart: wednesday(10).Add(30 * time.Minute),
		ProposedEnd:   wednesday(11).Add(30 * time.Minute),
	}, model.StatusProposedTime)
	require.NoError(t, err)
	require.Equal(t, model.StatusProposedTime, got.Status)
}

func TestApproveBlockedByAnotherCommittedRequest(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	first := env.submit(t, wednesday(10))
	_, err := env.bookings.ApplyAction(ctx, first.ID, booking.ActionApprove, ActionInput{}, model.StatusRequested)
	require.NoError(t, err)

	second := env.submit(t, wednesday(10))
	_, err = env.bookings.ApplyAction(ctx, second.ID, booking.ActionApprove, ActionInput{}, model.StatusRequested)
	require.ErrorIs(t, err, booking.ErrConflict)
}

// hookedStore lets a test interleave a write between the availability read
// and the commit, the way a concurrent caller would.
type hookedStore struct {
	RequestStore
	mu           sync.Mutex
	beforeCommit func()
}

func (h *hookedStore) CommitTransition(ctx context.Context, observed model.RequestStatus, req *model.BookingRequest, entry *model.AuditLogEntry, buffer time.Duration) error {
	h.mu.Lock()
	hook := h.beforeCommit
	h.beforeCommit = nil
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
	return h.RequestStore.CommitTransition(ctx, observed, req, entry, buffer)
}

func TestConcurrentTransitionLosesWithStaleState(t *testing.T) {
	store := memory.NewStore()
	hooked := &hookedStore{RequestStore: store}
	env := newTestEnv(t, store, hooked)
	ctx := context.Background()
	req := env.submit(t, wednesday(10))

	// A rival decline commits between our read and our commit.
	hooked.beforeCommit = func() {
		rival := *req
		rival.Status = model.StatusDeclined
		rival.UpdatedAt = fixedNow
		err := store.CommitTransition(ctx, model.StatusRequested, &rival, &model.AuditLogEntry{
			ID:         uuid.NewString(),
			RequestID:  req.ID,
			Actor:      model.ActorStaff,
			FromStatus: model.StatusRequested,
			ToStatus:   model.StatusDeclined,
			Action:     "decline",
			Timestamp:  fixedNow,
		}, 0)
		require.NoError(t, err)
	}

	_, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionApprove, ActionInput{}, model.StatusRequested)
	require.ErrorIs(t, err, booking.ErrStaleState)

	stored, err := env.bookings.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusDeclined, stored.Status)

	trail, err := env.bookings.GetAuditTrail(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1, "only the rival's transition may be recorded")
}

func TestCommitRevalidatesAgainstFreshCommits(t *testing.T) {
	store := memory.NewStore()
	hooked := &hookedStore{RequestStore: store}
	env := newTestEnv(t, store, hooked)
	ctx := context.Background()
	req := env.submit(t, wednesday(10))

	// A rival request takes the same window after our availability read.
	hooked.beforeCommit = func() {
		start, end := wednesday(10), wednesday(11)
		err := store.CreateRequest(ctx, &model.BookingRequest{
			ID:            uuid.NewString(),
			BusinessID:    testBusiness,
			Customer:      model.CustomerInfo{Name: "Bob", Email: "bob@example.com"},
			ProposedStart: &start,
			ProposedEnd:   &end,
			Status:        model.StatusApproved,
			CreatedAt:     fixedNow,
			UpdatedAt:     fixedNow,
		})
		require.NoError(t, err)
	}

	_, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionApprove, ActionInput{}, model.StatusRequested)
	require.ErrorIs(t, err, booking.ErrConflict)

	stored, err := env.bookings.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, stored.Status)
}

func TestCommitRevalidationHonorsBuffer(t *testing.T) {
	store := memory.NewStore()
	hooked := &hookedStore{RequestStore: store}
	env := newTestEnv(t, store, hooked)
	ctx := context.Background()

	settings := model.DefaultSettings(testBusiness)
	settings.BufferMinutes = 30
	require.NoError(t, env.avail.SaveSettings(ctx, settings))

	req := env.submit(t, wednesday(10).Add(30*time.Minute))

	// A back-to-back rival lands first; it does not touch our 10:30-11:00
	// window but its buffer does, so the commit must refuse.
	hooked.beforeCommit = func() {
		start, end := wednesday(10), wednesday(10).Add(30*time.Minute)
		require.NoError(t, store.CreateRequest(ctx, &model.BookingRequest{
			ID:            uuid.NewString(),
			BusinessID:    testBusiness,
			Customer:      model.CustomerInfo{Name: "Bob", Email: "bob@example.com"},
			ProposedStart: &start,
			ProposedEnd:   &end,
			Status:        model.StatusApproved,
			CreatedAt:     fixedNow,
			UpdatedAt:     fixedNow,
		}))
	}

	_, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionApprove, ActionInput{}, model.StatusRequested)
	require.ErrorIs(t, err, booking.ErrConflict)

	stored, err := env.bookings.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, stored.Status)
}

func TestCommitRevalidationSeesFreshBusyBlocks(t *testing.T) {
	store := memory.NewStore()
	hooked := &hookedStore{RequestStore: store}
	env := newTestEnv(t, store, hooked)
	ctx := context.Background()
	req := env.submit(t, wednesday(10))

	// A busy block created after our availability read still blocks the commit.
	hooked.beforeCommit = func() {
		require.NoError(t, store.CreateBusyBlock(ctx, &model.BusyBlock{
			ID:         uuid.NewString(),
			BusinessID: testBusiness,
			Start:      wednesday(10),
			End:        wednesday(11),
			Source:     model.BusySourceManual,
			CreatedAt:  fixedNow,
		}))
	}

	_, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionApprove, ActionInput{}, model.StatusRequested)
	require.ErrorIs(t, err, booking.ErrConflict)

	stored, err := env.bookings.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, stored.Status)
}

func TestDeclineReactivateRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	req := env.submit(t, wednesday(10))

	_, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionDecline, ActionInput{Notes: "double booked"}, model.StatusRequested)
	require.NoError(t, err)

	got, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionReactivate, ActionInput{}, model.StatusDeclined)
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, got.Status)

	trail, err := env.bookings.GetAuditTrail(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, "decline", trail[0].Action)
	require.Equal(t, "double booked", trail[0].Notes)
	require.Equal(t, "reactivate", trail[1].Action)
}

func TestUpdateNotesLeavesNoAuditEntry(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	req := env.submit(t, wednesday(10))

	require.NoError(t, env.bookings.UpdateNotes(ctx, req.ID, "VIP customer"))

	stored, err := env.bookings.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, "VIP customer", stored.InternalNotes)
	require.Equal(t, model.StatusRequested, stored.Status)

	trail, err := env.bookings.GetAuditTrail(ctx, req.ID)
	require.NoError(t, err)
	require.Empty(t, trail)
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, notify.Event) error {
	return errors.New("sink unreachable")
}

func TestNotifierFailureDoesNotBlockTransition(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.bookings.notifier = failingNotifier{}
	ctx := context.Background()
	req := env.submit(t, wednesday(10))

	got, err := env.bookings.ApplyAction(ctx, req.ID, booking.ActionApprove, ActionInput{}, model.StatusRequested)
	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, got.Status)
}

type failingBusySource struct{}

func (failingBusySource) BusyIntervals(context.Context, string, time.Time, time.Time) ([]interval.Span, error) {
	return nil, errors.New("calendar unreachable")
}

func TestSlotListDegradesWhenCalendarFails(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.avail.external = failingBusySource{}
	ctx := context.Background()

	_, err := env.avail.CreateBusyBlock(ctx, model.BusyBlock{
		BusinessID: testBusiness,
		Start:      wednesday(12),
		End:        wednesday(13),
	})
	require.NoError(t, err)

	list, err := env.avail.ListAvailableSlots(ctx, testBusiness, wednesday(0), wednesday(0), nil)
	require.NoError(t, err)
	require.True(t, list.Degraded)
	// manual data still applies in the degraded result
	require.Equal(t, []interval.Span{
		{Start: wednesday(9), End: wednesday(12)},
		{Start: wednesday(13), End: wednesday(17)},
	}, list.Slots)
}

func TestValidateCandidateInterval(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	res, err := env.avail.ValidateCandidateInterval(ctx, testBusiness, interval.Span{Start: wednesday(10), End: wednesday(11)})
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = env.avail.ValidateCandidateInterval(ctx, testBusiness, interval.Span{Start: wednesday(18), End: wednesday(19)})
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, "CONFLICT", res.Reason)

	res, err = env.avail.ValidateCandidateInterval(ctx, testBusiness, interval.Span{Start: wednesday(11), End: wednesday(10)})
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, "INVALID_PROPOSAL", res.Reason)
}

func TestDeleteBusyBlockRejectsCalendarOwned(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	synced := &model.BusyBlock{
		ID:         uuid.NewString(),
		BusinessID: testBusiness,
		Start:      wednesday(9),
		End:        wednesday(10),
		Source:     model.CalendarSource("google"),
	}
	require.NoError(t, env.store.CreateBusyBlock(ctx, synced))

	err := env.avail.DeleteBusyBlock(ctx, testBusiness, synced.ID)
	require.ErrorIs(t, err, ErrCalendarOwned)

	manual, err := env.avail.CreateBusyBlock(ctx, model.BusyBlock{
		BusinessID: testBusiness,
		Start:      wednesday(14),
		End:        wednesday(15),
	})
	require.NoError(t, err)
	require.NoError(t, env.avail.DeleteBusyBlock(ctx, testBusiness, manual.ID))
}

func newBulkService(env *testEnv, locker lock.Locker) *BulkService {
	return NewBulkService(env.store, env.bookings, locker, zap.NewNop())
}

func TestBulkDeclineMixedSet(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	bulk := newBulkService(env, lock.NewLocalLocker())
	ctx := context.Background()

	pending := env.submit(t, wednesday(10))
	declined := env.submit(t, wednesday(11))
	approved := env.submit(t, wednesday(14))

	_, err := env.bookings.ApplyAction(ctx, declined.ID, booking.ActionDecline, ActionInput{}, model.StatusRequested)
	require.NoError(t, err)
	_, err = env.bookings.ApplyAction(ctx, approved.ID, booking.ActionApprove, ActionInput{}, model.StatusRequested)
	require.NoError(t, err)

	outcome, err := bulk.BulkApplyAction(ctx, testBusiness, []string{pending.ID, declined.ID, approved.ID}, booking.ActionDecline, ActionInput{})
	require.NoError(t, err)

	require.Equal(t, []string{pending.ID}, outcome.Succeeded)
	require.Equal(t, []SkippedItem{{ID: declined.ID, Reason: "already declined"}}, outcome.Skipped)
	require.Equal(t, []FailedItem{{ID: approved.ID, Error: "ILLEGAL_TRANSITION"}}, outcome.Failed)
}

func TestBulkDropsForeignAndUnknownIDs(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	bulk := newBulkService(env, lock.NewLocalLocker())
	ctx := context.Background()

	mine := env.submit(t, wednesday(10))

	foreign := &model.BookingRequest{
		ID:         uuid.NewString(),
		BusinessID: "biz-2",
		Customer:   model.CustomerInfo{Name: "Eve", Email: "eve@example.com"},
		Status:     model.StatusRequested,
		CreatedAt:  fixedNow,
		UpdatedAt:  fixedNow,
	}
	require.NoError(t, env.store.CreateRequest(ctx, foreign))

	outcome, err := bulk.BulkApplyAction(ctx, testBusiness, []string{mine.ID, foreign.ID, uuid.NewString()}, booking.ActionDecline, ActionInput{})
	require.NoError(t, err)

	require.Equal(t, []string{mine.ID}, outcome.Succeeded)
	require.Empty(t, outcome.Skipped)
	require.Empty(t, outcome.Failed)

	// the foreign request is untouched
	stored, err := env.store.GetRequest(ctx, foreign.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, stored.Status)
}

func TestBulkRefusesSecondBatch(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	locker := lock.NewLocalLocker()
	bulk := newBulkService(env, locker)
	ctx := context.Background()

	release, ok, err := locker.TryAcquire(ctx, testBusiness)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	_, err = bulk.BulkApplyAction(ctx, testBusiness, []string{uuid.NewString()}, booking.ActionDecline, ActionInput{})
	require.ErrorIs(t, err, ErrBatchInFlight)

	// a different business is not affected by the held lock
	_, err = bulk.BulkApplyAction(ctx, "biz-2", nil, booking.ActionDecline, ActionInput{})
	require.NoError(t, err)
}

func TestBulkCancellationStopsScheduling(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	bulk := newBulkService(env, lock.NewLocalLocker())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := env.submit(t, wednesday(10))
	b := env.submit(t, wednesday(11))

	outcome, err := bulk.BulkApplyAction(ctx, testBusiness, []string{a.ID, b.ID}, booking.ActionDecline, ActionInput{})
	require.NoError(t, err)
	require.Empty(t, outcome.Succeeded)
	require.Empty(t, outcome.Skipped)
	require.Empty(t, outcome.Failed)
}
