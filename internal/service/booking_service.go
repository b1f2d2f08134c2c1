package service

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/bookline/bookline/internal/booking"
	"github.com/bookline/bookline/internal/interval"
	"github.com/bookline/bookline/internal/model"
	"github.com/bookline/bookline/internal/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService drives the request lifecycle: inbound submissions, single
// transitions, the notes write path and the audit read path.
type BookingService struct {
	requests     RequestStore
	audit        AuditStore
	offerings    OfferingStore
	availability *AvailabilityService
	notifier     notify.Notifier
	logger       *zap.Logger
	now          func() time.Time
}

func NewBookingService(
	requests RequestStore,
	audit AuditStore,
	offerings OfferingStore,
	availability *AvailabilityService,
	notifier notify.Notifier,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		requests:     requests,
		audit:        audit,
		offerings:    offerings,
		availability: availability,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
	}
}

// SubmitRequest creates a request from the public booking form, always in
// status REQUESTED.
func (s *BookingService) SubmitRequest(ctx context.Context, businessID string, customer model.CustomerInfo, offeringID *string, preferredStart *time.Time) (*model.BookingRequest, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: business id required", ErrValidation)
	}
	if customer.Name == "" {
		return nil, fmt.Errorf("%w: customer name required", ErrValidation)
	}
	if _, err := mail.ParseAddress(customer.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid customer email", ErrValidation)
	}

	var offering *model.Offering
	if offeringID != nil {
		var err error
		offering, err = s.offerings.GetOffering(ctx, *offeringID)
		if err != nil {
			return nil, fmt.Errorf("get offering: %w", err)
		}
		if offering == nil || offering.BusinessID != businessID {
			return nil, fmt.Errorf("offering %s: %w", *offeringID, ErrNotFound)
		}
		if !offering.Active {
			return nil, fmt.Errorf("%w: offering %s is inactive", ErrValidation, *offeringID)
		}
	}

	now := s.now()
	req := &model.BookingRequest{
		ID:             uuid.NewString(),
		BusinessID:     businessID,
		Customer:       customer,
		OfferingID:     offeringID,
		PreferredStart: preferredStart,
		Status:         model.StatusRequested,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.requests.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.logger.Info("booking request submitted",
		zap.String("request_id", req.ID),
		zap.String("business_id", businessID),
	)

	req.Offering = offering
	return req, nil
}

// ActionInput carries the caller-supplied parts of a transition.
type ActionInput struct {
	ProposedStart time.Time
	ProposedEnd   time.Time
	Actor         model.ActorKind
	Notes         string
}

// ApplyAction runs one state-machine action against a request. The caller
// passes the status it last observed; a mismatch at commit time yields
// booking.ErrStaleState and the caller should refetch and retry once.
func (s *BookingService) ApplyAction(ctx context.Context, requestID string, action booking.Action, input ActionInput, observed model.RequestStatus) (*model.BookingRequest, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	settings, err := s.availability.settings(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}
	approveDuration, err := s.approveDuration(ctx, req, settings)
	if err != nil {
		return nil, err
	}

	validate := func(span interval.Span) error {
		_, err := s.availability.validateSpan(ctx, req.BusinessID, span, req.ID)
		return err
	}

	outcome, err := booking.Apply(*req, action, booking.Payload{
		ProposedStart: input.ProposedStart,
		ProposedEnd:   input.ProposedEnd,
		Actor:         input.Actor,
		Notes:         input.Notes,
	}, approveDuration, validate, s.now())
	if err != nil {
		return nil, err
	}

	outcome.Entry.ID = uuid.NewString()
	buffer := time.Duration(settings.BufferMinutes) * time.Minute
	if err := s.requests.CommitTransition(ctx, observed, &outcome.Request, &outcome.Entry, buffer); err != nil {
		return nil, err
	}

	s.logger.Info("booking transition applied",
		zap.String("request_id", req.ID),
		zap.String("action", string(action)),
		zap.String("from", string(outcome.Entry.FromStatus)),
		zap.String("to", string(outcome.Entry.ToStatus)),
	)

	if outcome.Notify && s.notifier != nil {
		event := notify.Event{
			BusinessID: outcome.Request.BusinessID,
			RequestID:  outcome.Request.ID,
			Action:     string(action),
			FromStatus: outcome.Entry.FromStatus,
			ToStatus:   outcome.Entry.ToStatus,
			Customer:   outcome.Request.Customer,
			OccurredAt: outcome.Entry.Timestamp,
		}
		if err := s.notifier.Notify(ctx, event); err != nil {
			// Delivery never blocks the transition.
			s.logger.Warn("notification delivery failed",
				zap.String("request_id", req.ID),
				zap.Error(err),
			)
		}
	}

	return &outcome.Request, nil
}

// UpdateNotes writes internal notes. Independent of status, no audit entry,
// no conflict checking.
func (s *BookingService) UpdateNotes(ctx context.Context, requestID, notes string) error {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	return s.requests.UpdateNotes(ctx, requestID, notes)
}

// GetRequest returns a request by id.
func (s *BookingService) GetRequest(ctx context.Context, requestID string) (*model.BookingRequest, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	return req, nil
}

// GetAuditTrail returns the transition history ordered by timestamp.
func (s *BookingService) GetAuditTrail(ctx context.Context, requestID string) ([]model.AuditLogEntry, error) {
	return s.audit.ListFor(ctx, requestID)
}

// approveDuration decides the assumed interval length for approving a bare
// preferred start: the offering duration, or the slot granularity when the
// request carries no offering preference.
func (s *BookingService) approveDuration(ctx context.Context, req *model.BookingRequest, settings model.BookingSettings) (time.Duration, error) {
	if req.OfferingID != nil {
		offering, err := s.offerings.GetOffering(ctx, *req.OfferingID)
		if err != nil {
			return 0, fmt.Errorf("get offering: %w", err)
		}
		if offering != nil {
			return offering.Duration(), nil
		}
	}
	return time.Duration(settings.SlotGranularityMinutes) * time.Minute, nil
}
