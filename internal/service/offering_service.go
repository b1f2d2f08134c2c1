package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bookline/bookline/internal/model"

	"github.com/google/uuid"
)

// OfferingService manages the bookable services of a business.
type OfferingService struct {
	store OfferingStore
	now   func() time.Time
}

func NewOfferingService(store OfferingStore) *OfferingService {
	return &OfferingService{store: store, now: time.Now}
}

func (s *OfferingService) Create(ctx context.Context, businessID, name string, durationMinutes int) (*model.Offering, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: offering name required", ErrValidation)
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}

	now := s.now()
	offering := &model.Offering{
		ID:              uuid.NewString(),
		BusinessID:      businessID,
		Name:            name,
		DurationMinutes: durationMinutes,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateOffering(ctx, offering); err != nil {
		return nil, fmt.Errorf("create offering: %w", err)
	}
	return offering, nil
}

func (s *OfferingService) List(ctx context.Context, businessID string) ([]model.Offering, error) {
	return s.store.ListOfferings(ctx, businessID)
}

func (s *OfferingService) Update(ctx context.Context, businessID, id, name string, durationMinutes int, active bool) (*model.Offering, error) {
	offering, err := s.store.GetOffering(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get offering: %w", err)
	}
	if offering == nil || offering.BusinessID != businessID {
		return nil, ErrNotFound
	}
	if name != "" {
		offering.Name = name
	}
	if durationMinutes > 0 {
		offering.DurationMinutes = durationMinutes
	}
	offering.Active = active
	offering.UpdatedAt = s.now()

	if err := s.store.UpdateOffering(ctx, offering); err != nil {
		return nil, fmt.Errorf("update offering: %w", err)
	}
	return offering, nil
}
