package repository

import (
	"context"
	"fmt"

	"github.com/bookline/bookline/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository reads and appends the immutable transition log. There is
// deliberately no update or delete: corrections are new entries.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append inserts one entry. It fails only on storage errors, never on
// well-formed input.
func (r *AuditRepository) Append(ctx context.Context, entry *model.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (id, request_id, actor, from_status, to_status, action, ts, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.Actor,
		entry.FromStatus,
		entry.ToStatus,
		entry.Action,
		entry.Timestamp,
		entry.Notes,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListFor returns the trail for one request ordered by timestamp ascending.
// No history yields an empty slice, never an error.
func (r *AuditRepository) ListFor(ctx context.Context, requestID string) ([]model.AuditLogEntry, error) {
	query := `
		SELECT id, request_id, actor, from_status, to_status, action, ts, notes
		FROM audit_log
		WHERE request_id = $1
		ORDER BY ts ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditLogEntry{}
	for rows.Next() {
		var e model.AuditLogEntry
		err := rows.Scan(&e.ID, &e.RequestID, &e.Actor, &e.FromStatus, &e.ToStatus, &e.Action, &e.Timestamp, &e.Notes)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// ListForMany returns trails grouped by request id.
func (r *AuditRepository) ListForMany(ctx context.Context, requestIDs []string) (map[string][]model.AuditLogEntry, error) {
	if len(requestIDs) == 0 {
		return map[string][]model.AuditLogEntry{}, nil
	}

	query := `
		SELECT id, request_id, actor, from_status, to_status, action, ts, notes
		FROM audit_log
		WHERE request_id = ANY($1)
		ORDER BY ts ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := map[string][]model.AuditLogEntry{}
	for rows.Next() {
		var e model.AuditLogEntry
		err := rows.Scan(&e.ID, &e.RequestID, &e.Actor, &e.FromStatus, &e.ToStatus, &e.Action, &e.Timestamp, &e.Notes)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out[e.RequestID] = append(out[e.RequestID], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return out, nil
}
