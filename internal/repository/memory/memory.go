// Package memory is the in-process store adapter. It honors the same
// compare-and-swap transition contract as the Postgres adapter and backs the
// engine tests and the STORE=memory development mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bookline/bookline/internal/booking"
	"github.com/bookline/bookline/internal/interval"
	"github.com/bookline/bookline/internal/model"
)

// Store implements every store interface consumed by the service layer.
type Store struct {
	mu sync.Mutex

	requests   map[string]*model.BookingRequest
	audit      map[string][]model.AuditLogEntry
	windows    map[string][]model.AvailabilityWindow
	exceptions map[string][]model.AvailabilityException
	blocks     map[string]*model.BusyBlock
	settings   map[string]*model.BookingSettings
	offerings  map[string]*model.Offering
}

func NewStore() *Store {
	return &Store{
		requests:   make(map[string]*model.BookingRequest),
		audit:      make(map[string][]model.AuditLogEntry),
		windows:    make(map[string][]model.AvailabilityWindow),
		exceptions: make(map[string][]model.AvailabilityException),
		blocks:     make(map[string]*model.BusyBlock),
		settings:   make(map[string]*model.BookingSettings),
		offerings:  make(map[string]*model.Offering),
	}
}

func cloneRequest(r *model.BookingRequest) *model.BookingRequest {
	c := *r
	c.Offering = nil
	return &c
}

// --- RequestStore ---

func (s *Store) CreateRequest(_ context.Context, req *model.BookingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("request %s already exists", req.ID)
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*model.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	return cloneRequest(req), nil
}

func (s *Store) ListVisible(_ context.Context, businessID string, ids []string) ([]*model.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.BookingRequest, 0, len(ids))
	for _, id := range ids {
		req, ok := s.requests[id]
		if !ok || req.BusinessID != businessID {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	return out, nil
}

func (s *Store) ListByBusiness(_ context.Context, businessID string, from, to time.Time) ([]*model.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.BookingRequest
	for _, req := range s.requests {
		if req.BusinessID != businessID {
			continue
		}
		if req.CreatedAt.Before(from) || !req.CreatedAt.Before(to) {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ListCommitted(_ context.Context, businessID string, from, to time.Time, excludeID string) ([]interval.Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedLocked(businessID, from, to, excludeID), nil
}

func (s *Store) committedLocked(businessID string, from, to time.Time, excludeID string) []interval.Span {
	var out []interval.Span
	window := interval.Span{Start: from, End: to}
	for _, req := range s.requests {
		if req.BusinessID != businessID || req.ID == excludeID {
			continue
		}
		if req.Status != model.StatusApproved && req.Status != model.StatusProposedTime {
			continue
		}
		if !req.HasProposedWindow() {
			continue
		}
		span := interval.Span{Start: *req.ProposedStart, End: *req.ProposedEnd}
		if span.Overlaps(window) {
			out = append(out, span)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (s *Store) UpdateNotes(_ context.Context, id, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("request %s not found", id)
	}
	req.InternalNotes = notes
	return nil
}

func (s *Store) CommitTransition(_ context.Context, observed model.RequestStatus, req *model.BookingRequest, entry *model.AuditLogEntry, buffer time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[req.ID]
	if !ok {
		return fmt.Errorf("request %s not found", req.ID)
	}
	if current.Status != observed {
		return booking.ErrStaleState
	}

	// Commit-time re-validation: a concurrently committed request or busy
	// block may have taken the window since the caller's availability read.
	// Committed rivals count as busy plus the configured buffer.
	if asserting(entry.Action) && req.HasProposedWindow() {
		span := interval.Span{Start: *req.ProposedStart, End: *req.ProposedEnd}
		for _, other := range s.committedLocked(req.BusinessID, span.Start.Add(-buffer), span.End.Add(buffer), req.ID) {
			padded := interval.Span{Start: other.Start.Add(-buffer), End: other.End.Add(buffer)}
			if span.Overlaps(padded) {
				return booking.ErrConflict
			}
		}
		for _, block := range s.blocks {
			if block.BusinessID != req.BusinessID {
				continue
			}
			if span.Overlaps(interval.Span{Start: block.Start, End: block.End}) {
				return booking.ErrConflict
			}
		}
	}

	s.requests[req.ID] = cloneRequest(req)
	s.audit[req.ID] = append(s.audit[req.ID], *entry)
	return nil
}

func asserting(action string) bool {
	return action == string(booking.ActionApprove) || action == string(booking.ActionPropose)
}

// --- AuditStore ---

func (s *Store) Append(_ context.Context, entry *model.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit[entry.RequestID] = append(s.audit[entry.RequestID], *entry)
	return nil
}

func (s *Store) ListFor(_ context.Context, requestID string) ([]model.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]model.AuditLogEntry, len(s.audit[requestID]))
	copy(entries, s.audit[requestID])
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries, nil
}

func (s *Store) ListForMany(ctx context.Context, requestIDs []string) (map[string][]model.AuditLogEntry, error) {
	out := make(map[string][]model.AuditLogEntry, len(requestIDs))
	for _, id := range requestIDs {
		entries, err := s.ListFor(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			out[id] = entries
		}
	}
	return out, nil
}

// --- AvailabilityStore ---

func (s *Store) ReplaceWindows(_ context.Context, businessID string, windows []model.AvailabilityWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]model.AvailabilityWindow, len(windows))
	copy(copied, windows)
	s.windows[businessID] = copied
	return nil
}

func (s *Store) ListWindows(_ context.Context, businessID string) ([]model.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AvailabilityWindow, len(s.windows[businessID]))
	copy(out, s.windows[businessID])
	return out, nil
}

func (s *Store) CreateException(_ context.Context, exc *model.AvailabilityException) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions[exc.BusinessID] = append(s.exceptions[exc.BusinessID], *exc)
	return nil
}

func (s *Store) ListExceptions(_ context.Context, businessID string) ([]model.AvailabilityException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AvailabilityException, len(s.exceptions[businessID]))
	copy(out, s.exceptions[businessID])
	return out, nil
}

func (s *Store) DeleteException(_ context.Context, businessID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	excs := s.exceptions[businessID]
	for i, e := range excs {
		if e.ID == id {
			s.exceptions[businessID] = append(excs[:i:i], excs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("exception %s not found", id)
}

func (s *Store) CreateBusyBlock(_ context.Context, block *model.BusyBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := *block
	s.blocks[block.ID] = &b
	return nil
}

func (s *Store) GetBusyBlock(_ context.Context, id string) (*model.BusyBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.blocks[id]
	if !ok {
		return nil, nil
	}
	b := *block
	return &b, nil
}

func (s *Store) ListBusyBlocks(_ context.Context, businessID string, from, to time.Time) ([]model.BusyBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	window := interval.Span{Start: from, End: to}
	var out []model.BusyBlock
	for _, block := range s.blocks {
		if block.BusinessID != businessID {
			continue
		}
		if (interval.Span{Start: block.Start, End: block.End}).Overlaps(window) {
			out = append(out, *block)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (s *Store) DeleteBusyBlock(_ context.Context, businessID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.blocks[id]
	if !ok || block.BusinessID != businessID {
		return fmt.Errorf("busy block %s not found", id)
	}
	delete(s.blocks, id)
	return nil
}

func (s *Store) GetSettings(_ context.Context, businessID string) (*model.BookingSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, ok := s.settings[businessID]
	if !ok {
		return nil, nil
	}
	c := *settings
	return &c, nil
}

func (s *Store) SaveSettings(_ context.Context, settings *model.BookingSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *settings
	s.settings[settings.BusinessID] = &c
	return nil
}

// --- OfferingStore ---

func (s *Store) CreateOffering(_ context.Context, o *model.Offering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *o
	s.offerings[o.ID] = &c
	return nil
}

func (s *Store) GetOffering(_ context.Context, id string) (*model.Offering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offerings[id]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

func (s *Store) ListOfferings(_ context.Context, businessID string) ([]model.Offering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Offering
	for _, o := range s.offerings {
		if o.BusinessID == businessID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateOffering(_ context.Context, o *model.Offering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offerings[o.ID]; !ok {
		return fmt.Errorf("offering %s not found", o.ID)
	}
	c := *o
	s.offerings[o.ID] = &c
	return nil
}
