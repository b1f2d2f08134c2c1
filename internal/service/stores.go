package service

import (
	"context"
	"time"

	"github.com/bookline/bookline/internal/interval"
	"github.com/bookline/bookline/internal/model"
)

// RequestStore persists booking requests. Implementations return (nil, nil)
// for a missing request, matching the repository convention used everywhere
// in this codebase.
type RequestStore interface {
	CreateRequest(ctx context.Context, req *model.BookingRequest) error
	GetRequest(ctx context.Context, id string) (*model.BookingRequest, error)

	// ListVisible returns the requests among ids that still belong to the
	// business; ids that resolve to nothing are silently absent, preserving
	// the input order of the ones that remain.
	ListVisible(ctx context.Context, businessID string, ids []string) ([]*model.BookingRequest, error)

	// ListByBusiness returns requests created within [from, to).
	ListByBusiness(ctx context.Context, businessID string, from, to time.Time) ([]*model.BookingRequest, error)

	// ListCommitted returns the proposed windows of APPROVED and
	// PROPOSED_TIME requests overlapping [from, to), excluding excludeID.
	ListCommitted(ctx context.Context, businessID string, from, to time.Time, excludeID string) ([]interval.Span, error)

	// UpdateNotes is the status-independent notes write path. No audit entry.
	UpdateNotes(ctx context.Context, id, notes string) error

	// CommitTransition applies the transition only if the stored status still
	// equals observed (otherwise booking.ErrStaleState). When the action
	// asserts a time, the proposed window is re-validated against the busy
	// set as it stands at commit time: committed requests padded by buffer,
	// plus busy blocks (otherwise booking.ErrConflict). The status update and
	// the audit append commit atomically or not at all.
	CommitTransition(ctx context.Context, observed model.RequestStatus, req *model.BookingRequest, entry *model.AuditLogEntry, buffer time.Duration) error
}

// AuditStore is the append-only transition log.
type AuditStore interface {
	Append(ctx context.Context, entry *model.AuditLogEntry) error

	// ListFor returns entries for one request ordered by timestamp ascending.
	// A request with no history yields an empty slice, never an error.
	ListFor(ctx context.Context, requestID string) ([]model.AuditLogEntry, error)

	// ListForMany returns entries grouped by request id, each group ordered
	// by timestamp ascending.
	ListForMany(ctx context.Context, requestIDs []string) (map[string][]model.AuditLogEntry, error)
}

// AvailabilityStore persists the schedule configuration of a business.
type AvailabilityStore interface {
	ReplaceWindows(ctx context.Context, businessID string, windows []model.AvailabilityWindow) error
	ListWindows(ctx context.Context, businessID string) ([]model.AvailabilityWindow, error)

	CreateException(ctx context.Context, exc *model.AvailabilityException) error
	ListExceptions(ctx context.Context, businessID string) ([]model.AvailabilityException, error)
	DeleteException(ctx context.Context, businessID, id string) error

	CreateBusyBlock(ctx context.Context, block *model.BusyBlock) error
	GetBusyBlock(ctx context.Context, id string) (*model.BusyBlock, error)
	ListBusyBlocks(ctx context.Context, businessID string, from, to time.Time) ([]model.BusyBlock, error)
	DeleteBusyBlock(ctx context.Context, businessID, id string) error

	GetSettings(ctx context.Context, businessID string) (*model.BookingSettings, error)
	SaveSettings(ctx context.Context, settings *model.BookingSettings) error
}

// OfferingStore persists bookable services.
type OfferingStore interface {
	CreateOffering(ctx context.Context, o *model.Offering) error
	GetOffering(ctx context.Context, id string) (*model.Offering, error)
	ListOfferings(ctx context.Context, businessID string) ([]model.Offering, error)
	UpdateOffering(ctx context.Context, o *model.Offering) error
}

// BusySource is the external calendar-sync collaborator. Only its result (a
// list of busy intervals) matters here; sync mechanics live elsewhere.
type BusySource interface {
	BusyIntervals(ctx context.Context, businessID string, from, to time.Time) ([]interval.Span, error)
}
