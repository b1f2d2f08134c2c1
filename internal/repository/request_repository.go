package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookline/bookline/internal/booking"
	"github.com/bookline/bookline/internal/interval"
	"github.com/bookline/bookline/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RequestRepository struct {
	pool *pgxpool.Pool
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

const requestColumns = `id, business_id, customer_name, customer_email, customer_phone, customer_message,
	offering_id, preferred_start, proposed_start, proposed_end, status, internal_notes, created_at, updated_at`

func scanRequest(row pgx.Row) (*model.BookingRequest, error) {
	var req model.BookingRequest
	err := row.Scan(
		&req.ID,
		&req.BusinessID,
		&req.Customer.Name,
		&req.Customer.Email,
		&req.Customer.Phone,
		&req.Customer.Message,
		&req.OfferingID,
		&req.PreferredStart,
		&req.ProposedStart,
		&req.ProposedEnd,
		&req.Status,
		&req.InternalNotes,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateRequest inserts a new request row.
func (r *RequestRepository) CreateRequest(ctx context.Context, req *model.BookingRequest) error {
	query := `
		INSERT INTO booking_requests (id, business_id, customer_name, customer_email, customer_phone,
			customer_message, offering_id, preferred_start, status, internal_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID,
		req.BusinessID,
		req.Customer.Name,
		req.Customer.Email,
		req.Customer.Phone,
		req.Customer.Message,
		req.OfferingID,
		req.PreferredStart,
		req.Status,
		req.InternalNotes,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetRequest returns a request by id, (nil, nil) when missing.
func (r *RequestRepository) GetRequest(ctx context.Context, id string) (*model.BookingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM booking_requests WHERE id = $1`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// ListVisible returns the requests among ids still owned by the business,
// preserving the caller's order. Missing ids are silently absent.
func (r *RequestRepository) ListVisible(ctx context.Context, businessID string, ids []string) ([]*model.BookingRequest, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + requestColumns + ` FROM booking_requests WHERE business_id = $1 AND id = ANY($2)`

	rows, err := r.pool.Query(ctx, query, businessID, ids)
	if err != nil {
		return nil, fmt.Errorf("list visible requests: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*model.BookingRequest, len(ids))
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		byID[req.ID] = req
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visible requests: %w", err)
	}

	out := make([]*model.BookingRequest, 0, len(byID))
	for _, id := range ids {
		if req, ok := byID[id]; ok {
			out = append(out, req)
		}
	}
	return out, nil
}

// ListByBusiness returns requests created within [from, to).
func (r *RequestRepository) ListByBusiness(ctx context.Context, businessID string, from, to time.Time) ([]*model.BookingRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM booking_requests
		WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []*model.BookingRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

// ListCommitted returns the proposed windows of APPROVED and PROPOSED_TIME
// requests overlapping [from, to), excluding excludeID.
func (r *RequestRepository) ListCommitted(ctx context.Context, businessID string, from, to time.Time, excludeID string) ([]interval.Span, error) {
	query := `
		SELECT proposed_start, proposed_end
		FROM booking_requests
		WHERE business_id = $1
		  AND id <> $2
		  AND status IN ('approved', 'proposed_time')
		  AND proposed_start IS NOT NULL
		  AND proposed_start < $4
		  AND proposed_end > $3
		ORDER BY proposed_start ASC
	`

	rows, err := r.pool.Query(ctx, query, businessID, excludeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list committed windows: %w", err)
	}
	defer rows.Close()

	var out []interval.Span
	for rows.Next() {
		var span interval.Span
		if err := rows.Scan(&span.Start, &span.End); err != nil {
			return nil, fmt.Errorf("scan committed window: %w", err)
		}
		out = append(out, span)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list committed windows: %w", err)
	}
	return out, nil
}

// UpdateNotes writes internal notes without touching status or updated_at
// audit semantics.
func (r *RequestRepository) UpdateNotes(ctx context.Context, id, notes string) error {
	result, err := r.pool.Exec(ctx, `UPDATE booking_requests SET internal_notes = $1 WHERE id = $2`, notes, id)
	if err != nil {
		return fmt.Errorf("update notes: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("request %s not found", id)
	}
	return nil
}

// CommitTransition applies the CAS status update, re-validates the proposed
// window against the busy set as of commit time (committed requests padded
// by buffer, plus busy blocks) and appends the audit entry, all in one
// transaction.
func (r *RequestRepository) CommitTransition(ctx context.Context, observed model.RequestStatus, req *model.BookingRequest, entry *model.AuditLogEntry, buffer time.Duration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current model.RequestStatus
	err = tx.QueryRow(ctx, `SELECT status FROM booking_requests WHERE id = $1 FOR UPDATE`, req.ID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("request %s not found", req.ID)
		}
		return fmt.Errorf("lock request: %w", err)
	}
	if current != observed {
		return booking.ErrStaleState
	}

	asserting := entry.Action == string(booking.ActionApprove) || entry.Action == string(booking.ActionPropose)
	if asserting && req.HasProposedWindow() {
		// Committed rivals count as busy plus the configured buffer; padding
		// our side of the overlap test is equivalent to padding theirs.
		padStart := req.ProposedStart.Add(-buffer)
		padEnd := req.ProposedEnd.Add(buffer)

		var conflicting bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM booking_requests
				WHERE business_id = $1
				  AND id <> $2
				  AND status IN ('approved', 'proposed_time')
				  AND proposed_start IS NOT NULL
				  AND proposed_start < $4
				  AND proposed_end > $3
			) OR EXISTS (
				SELECT 1 FROM busy_blocks
				WHERE business_id = $1
				  AND start_at < $6
				  AND end_at > $5
			)
		`, req.BusinessID, req.ID, padStart, padEnd, *req.ProposedStart, *req.ProposedEnd).Scan(&conflicting)
		if err != nil {
			return fmt.Errorf("revalidate window: %w", err)
		}
		if conflicting {
			return booking.ErrConflict
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE booking_requests
		SET status = $1, proposed_start = $2, proposed_end = $3, updated_at = $4
		WHERE id = $5
	`, req.Status, req.ProposedStart, req.ProposedEnd, req.UpdatedAt, req.ID)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_log (id, request_id, actor, from_status, to_status, action, ts, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.RequestID, entry.Actor, entry.FromStatus, entry.ToStatus, entry.Action, entry.Timestamp, entry.Notes)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
