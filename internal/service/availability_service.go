package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bookline/bookline/internal/availability"
	"github.com/bookline/bookline/internal/booking"
	"github.com/bookline/bookline/internal/interval"
	"github.com/bookline/bookline/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AvailabilityService answers slot and conflict queries and manages the
// schedule configuration (windows, exceptions, manual busy blocks).
type AvailabilityService struct {
	store     AvailabilityStore
	requests  RequestStore
	offerings OfferingStore
	external  BusySource // optional calendar feed, may be nil
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewAvailabilityService(
	store AvailabilityStore,
	requests RequestStore,
	offerings OfferingStore,
	external BusySource,
	externalTimeout time.Duration,
	logger *zap.Logger,
) *AvailabilityService {
	if externalTimeout <= 0 {
		externalTimeout = 3 * time.Second
	}
	return &AvailabilityService{
		store:     store,
		requests:  requests,
		offerings: offerings,
		external:  external,
		timeout:   externalTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

// SlotList is the browsable availability for a date range. Degraded marks a
// result computed without the external calendar feed; it is still
// authoritative for manual data.
type SlotList struct {
	Slots    []interval.Span `json:"slots"`
	Degraded bool            `json:"degraded"`
}

// ListAvailableSlots resolves the bookable intervals for the range and
// applies the browsing filters (length, notice, horizon).
func (s *AvailabilityService) ListAvailableSlots(ctx context.Context, businessID string, fromDate, toDate time.Time, offeringID *string) (*SlotList, error) {
	settings, err := s.settings(ctx, businessID)
	if err != nil {
		return nil, err
	}

	minLength := time.Duration(settings.SlotGranularityMinutes) * time.Minute
	if offeringID != nil {
		offering, err := s.offerings.GetOffering(ctx, *offeringID)
		if err != nil {
			return nil, fmt.Errorf("get offering: %w", err)
		}
		if offering == nil {
			return nil, fmt.Errorf("offering %s: %w", *offeringID, ErrNotFound)
		}
		minLength = offering.Duration()
	}

	free, degraded, err := s.resolve(ctx, businessID, settings, fromDate, toDate, "")
	if err != nil {
		return nil, err
	}

	return &SlotList{
		Slots:    availability.FilterForBrowsing(free, minLength, s.now(), settings),
		Degraded: degraded,
	}, nil
}

// CandidateResult is the answer to a specific-interval validation.
type CandidateResult struct {
	OK       bool   `json:"ok"`
	Reason   string `json:"reason,omitempty"`
	Degraded bool   `json:"degraded"`
}

// ValidateCandidateInterval checks that the candidate fits fully inside the
// free set. Notice, horizon and length filters deliberately do not apply: an
// operator validating a concrete time may override those policies.
func (s *AvailabilityService) ValidateCandidateInterval(ctx context.Context, businessID string, candidate interval.Span) (*CandidateResult, error) {
	degraded, err := s.validateSpan(ctx, businessID, candidate, "")
	if err != nil {
		if code := booking.Code(err); code != "INTERNAL" {
			return &CandidateResult{OK: false, Reason: code, Degraded: degraded}, nil
		}
		return nil, err
	}
	return &CandidateResult{OK: true, Degraded: degraded}, nil
}

// validateSpan is the internal conflict check used by the state machine for
// propose/approve. excludeRequestID keeps a request's own committed window
// from blocking its re-proposal.
func (s *AvailabilityService) validateSpan(ctx context.Context, businessID string, candidate interval.Span, excludeRequestID string) (bool, error) {
	if !candidate.Start.Before(candidate.End) {
		return false, booking.ErrInvalidProposal
	}

	settings, err := s.settings(ctx, businessID)
	if err != nil {
		return false, err
	}

	free, degraded, err := s.resolve(ctx, businessID, settings, candidate.Start, candidate.End, excludeRequestID)
	if err != nil {
		return degraded, err
	}

	if !interval.ContainedInAny(candidate, free) {
		return degraded, booking.ErrConflict
	}
	return degraded, nil
}

// resolve loads the snapshot and computes the free set. The external feed
// is bounded by a timeout; on failure the result degrades to manual blocks.
func (s *AvailabilityService) resolve(ctx context.Context, businessID string, settings model.BookingSettings, from, to time.Time, excludeRequestID string) ([]interval.Span, bool, error) {
	windows, err := s.store.ListWindows(ctx, businessID)
	if err != nil {
		return nil, false, fmt.Errorf("list windows: %w", err)
	}
	exceptions, err := s.store.ListExceptions(ctx, businessID)
	if err != nil {
		return nil, false, fmt.Errorf("list exceptions: %w", err)
	}

	// Widen the block query by a day on both sides so blocks straddling
	// midnight in the business timezone are not missed.
	blocks, err := s.store.ListBusyBlocks(ctx, businessID, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1))
	if err != nil {
		return nil, false, fmt.Errorf("list busy blocks: %w", err)
	}

	busy := make([]interval.Span, 0, len(blocks))
	for _, b := range blocks {
		busy = append(busy, interval.Span{Start: b.Start, End: b.End})
	}

	degraded := false
	if s.external != nil {
		extCtx, cancel := context.WithTimeout(ctx, s.timeout)
		ext, err := s.external.BusyIntervals(extCtx, businessID, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1))
		cancel()
		if err != nil {
			degraded = true
			s.logger.Warn("external busy feed unavailable, degrading to manual blocks",
				zap.String("business_id", businessID),
				zap.Error(err),
			)
		} else {
			busy = append(busy, ext...)
		}
	}

	committed, err := s.requests.ListCommitted(ctx, businessID, from.AddDate(0, 0, -1), to.AddDate(0, 0, 1), excludeRequestID)
	if err != nil {
		return nil, degraded, fmt.Errorf("list committed requests: %w", err)
	}

	free, err := availability.Resolve(availability.Inputs{
		Windows:    windows,
		Exceptions: exceptions,
		Busy:       busy,
		Committed:  committed,
		Settings:   settings,
	}, from, to)
	if err != nil {
		return nil, degraded, err
	}
	return free, degraded, nil
}

func (s *AvailabilityService) settings(ctx context.Context, businessID string) (model.BookingSettings, error) {
	settings, err := s.store.GetSettings(ctx, businessID)
	if err != nil {
		return model.BookingSettings{}, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		return model.DefaultSettings(businessID), nil
	}
	return *settings, nil
}

// Settings returns the effective per-business knobs, defaults included.
func (s *AvailabilityService) Settings(ctx context.Context, businessID string) (model.BookingSettings, error) {
	return s.settings(ctx, businessID)
}

// SaveSettings replaces the per-business booking knobs.
func (s *AvailabilityService) SaveSettings(ctx context.Context, settings model.BookingSettings) error {
	if settings.BusinessID == "" {
		return fmt.Errorf("%w: business id required", ErrValidation)
	}
	if _, err := time.LoadLocation(settings.Timezone); settings.Timezone != "" && err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrValidation, settings.Timezone)
	}
	return s.store.SaveSettings(ctx, &settings)
}

// ReplaceWindows saves the weekly schedule wholesale. There is no patch
// path: the caller always submits the full set.
func (s *AvailabilityService) ReplaceWindows(ctx context.Context, businessID string, windows []model.AvailabilityWindow) error {
	now := s.now()
	for i := range windows {
		w := &windows[i]
		if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			return fmt.Errorf("%w: day_of_week %d out of range", ErrValidation, w.DayOfWeek)
		}
		if err := validClockPair(w.StartTime, w.EndTime); err != nil {
			return err
		}
		w.BusinessID = businessID
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
	}
	return s.store.ReplaceWindows(ctx, businessID, windows)
}

// ListWindows returns the saved weekly schedule.
func (s *AvailabilityService) ListWindows(ctx context.Context, businessID string) ([]model.AvailabilityWindow, error) {
	return s.store.ListWindows(ctx, businessID)
}

// CreateException adds a date override. Duplicate dates are allowed in
// storage; the resolver picks the most recently created one.
func (s *AvailabilityService) CreateException(ctx context.Context, exc model.AvailabilityException) (*model.AvailabilityException, error) {
	if _, err := time.Parse(model.DateFormat, exc.Date); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, exc.Date)
	}
	switch exc.Kind {
	case model.ExceptionClosed:
		exc.StartTime, exc.EndTime = "", ""
	case model.ExceptionCustomHours:
		if err := validClockPair(exc.StartTime, exc.EndTime); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown exception kind %q", ErrValidation, exc.Kind)
	}

	exc.ID = uuid.NewString()
	exc.CreatedAt = s.now()
	if err := s.store.CreateException(ctx, &exc); err != nil {
		return nil, fmt.Errorf("create exception: %w", err)
	}
	return &exc, nil
}

func (s *AvailabilityService) ListExceptions(ctx context.Context, businessID string) ([]model.AvailabilityException, error) {
	return s.store.ListExceptions(ctx, businessID)
}

func (s *AvailabilityService) DeleteException(ctx context.Context, businessID, id string) error {
	return s.store.DeleteException(ctx, businessID, id)
}

// CreateBusyBlock adds a manual block. Calendar-sourced blocks are written
// only by the sync engine, never through here.
func (s *AvailabilityService) CreateBusyBlock(ctx context.Context, block model.BusyBlock) (*model.BusyBlock, error) {
	if !block.Start.Before(block.End) {
		return nil, fmt.Errorf("%w: block end must be after start", ErrValidation)
	}
	block.ID = uuid.NewString()
	block.Source = model.BusySourceManual
	block.CreatedAt = s.now()
	if err := s.store.CreateBusyBlock(ctx, &block); err != nil {
		return nil, fmt.Errorf("create busy block: %w", err)
	}
	return &block, nil
}

func (s *AvailabilityService) ListBusyBlocks(ctx context.Context, businessID string, from, to time.Time) ([]model.BusyBlock, error) {
	return s.store.ListBusyBlocks(ctx, businessID, from, to)
}

// DeleteBusyBlock removes a manual block. Calendar-owned blocks are
// read-only here and deletion is rejected.
func (s *AvailabilityService) DeleteBusyBlock(ctx context.Context, businessID, id string) error {
	block, err := s.store.GetBusyBlock(ctx, id)
	if err != nil {
		return fmt.Errorf("get busy block: %w", err)
	}
	if block == nil || block.BusinessID != businessID {
		return ErrNotFound
	}
	if block.CalendarOwned() {
		return ErrCalendarOwned
	}
	return s.store.DeleteBusyBlock(ctx, businessID, id)
}

func validClockPair(start, end string) error {
	startMin, err := clockMinutes(start)
	if err != nil {
		return err
	}
	endMin, err := clockMinutes(end)
	if err != nil {
		return err
	}
	if endMin <= startMin {
		return fmt.Errorf("%w: end time %s must be after start time %s", ErrValidation, end, start)
	}
	return nil
}

func clockMinutes(clock string) (int, error) {
	t, err := time.Parse(model.ClockFormat, clock)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time %q", ErrValidation, clock)
	}
	return t.Hour()*60 + t.Minute(), nil
}
