package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookline/bookline/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AvailabilityRepository struct {
	pool *pgxpool.Pool
}

func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// ReplaceWindows swaps the full weekly schedule in one transaction
// (replace-all semantics, never a partial patch).
func (r *AvailabilityRepository) ReplaceWindows(ctx context.Context, businessID string, windows []model.AvailabilityWindow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM availability_windows WHERE business_id = $1`, businessID); err != nil {
		return fmt.Errorf("clear windows: %w", err)
	}

	for _, w := range windows {
		_, err := tx.Exec(ctx, `
			INSERT INTO availability_windows (id, business_id, day_of_week, start_time, end_time, enabled, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, w.ID, businessID, w.DayOfWeek, w.StartTime, w.EndTime, w.Enabled, w.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert window: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *AvailabilityRepository) ListWindows(ctx context.Context, businessID string) ([]model.AvailabilityWindow, error) {
	query := `
		SELECT id, business_id, day_of_week, start_time, end_time, enabled, created_at
		FROM availability_windows
		WHERE business_id = $1
		ORDER BY day_of_week ASC, start_time ASC
	`

	rows, err := r.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close()

	var out []model.AvailabilityWindow
	for rows.Next() {
		var w model.AvailabilityWindow
		if err := rows.Scan(&w.ID, &w.BusinessID, &w.DayOfWeek, &w.StartTime, &w.EndTime, &w.Enabled, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	return out, nil
}

func (r *AvailabilityRepository) CreateException(ctx context.Context, exc *model.AvailabilityException) error {
	query := `
		INSERT INTO availability_exceptions (id, business_id, date, kind, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query, exc.ID, exc.BusinessID, exc.Date, exc.Kind, exc.StartTime, exc.EndTime, exc.CreatedAt)
	if err != nil {
		return fmt.Errorf("create exception: %w", err)
	}
	return nil
}

func (r *AvailabilityRepository) ListExceptions(ctx context.Context, businessID string) ([]model.AvailabilityException, error) {
	query := `
		SELECT id, business_id, date, kind, start_time, end_time, created_at
		FROM availability_exceptions
		WHERE business_id = $1
		ORDER BY date ASC, created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	defer rows.Close()

	var out []model.AvailabilityException
	for rows.Next() {
		var e model.AvailabilityException
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.Date, &e.Kind, &e.StartTime, &e.EndTime, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exception: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	return out, nil
}

func (r *AvailabilityRepository) DeleteException(ctx context.Context, businessID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM availability_exceptions WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return fmt.Errorf("delete exception: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("exception %s not found", id)
	}
	return nil
}

func (r *AvailabilityRepository) CreateBusyBlock(ctx context.Context, block *model.BusyBlock) error {
	query := `
		INSERT INTO busy_blocks (id, business_id, start_at, end_at, reason, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query, block.ID, block.BusinessID, block.Start, block.End, block.Reason, block.Source, block.CreatedAt)
	if err != nil {
		return fmt.Errorf("create busy block: %w", err)
	}
	return nil
}

func (r *AvailabilityRepository) GetBusyBlock(ctx context.Context, id string) (*model.BusyBlock, error) {
	query := `
		SELECT id, business_id, start_at, end_at, reason, source, created_at
		FROM busy_blocks
		WHERE id = $1
	`

	var b model.BusyBlock
	err := r.pool.QueryRow(ctx, query, id).Scan(&b.ID, &b.BusinessID, &b.Start, &b.End, &b.Reason, &b.Source, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get busy block: %w", err)
	}
	return &b, nil
}

func (r *AvailabilityRepository) ListBusyBlocks(ctx context.Context, businessID string, from, to time.Time) ([]model.BusyBlock, error) {
	query := `
		SELECT id, business_id, start_at, end_at, reason, source, created_at
		FROM busy_blocks
		WHERE business_id = $1 AND start_at < $3 AND end_at > $2
		ORDER BY start_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list busy blocks: %w", err)
	}
	defer rows.Close()

	var out []model.BusyBlock
	for rows.Next() {
		var b model.BusyBlock
		if err := rows.Scan(&b.ID, &b.BusinessID, &b.Start, &b.End, &b.Reason, &b.Source, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan busy block: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list busy blocks: %w", err)
	}
	return out, nil
}

func (r *AvailabilityRepository) DeleteBusyBlock(ctx context.Context, businessID, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM busy_blocks WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return fmt.Errorf("delete busy block: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("busy block %s not found", id)
	}
	return nil
}

func (r *AvailabilityRepository) GetSettings(ctx context.Context, businessID string) (*model.BookingSettings, error) {
	query := `
		SELECT business_id, buffer_minutes, min_notice_hours, max_days_out, slot_granularity_minutes, timezone
		FROM booking_settings
		WHERE business_id = $1
	`

	var s model.BookingSettings
	err := r.pool.QueryRow(ctx, query, businessID).Scan(
		&s.BusinessID, &s.BufferMinutes, &s.MinNoticeHours, &s.MaxDaysOut, &s.SlotGranularityMinutes, &s.Timezone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

func (r *AvailabilityRepository) SaveSettings(ctx context.Context, settings *model.BookingSettings) error {
	query := `
		INSERT INTO booking_settings (business_id, buffer_minutes, min_notice_hours, max_days_out, slot_granularity_minutes, timezone)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (business_id) DO UPDATE SET
			buffer_minutes = EXCLUDED.buffer_minutes,
			min_notice_hours = EXCLUDED.min_notice_hours,
			max_days_out = EXCLUDED.max_days_out,
			slot_granularity_minutes = EXCLUDED.slot_granularity_minutes,
			timezone = EXCLUDED.timezone
	`

	_, err := r.pool.Exec(ctx, query,
		settings.BusinessID,
		settings.BufferMinutes,
		settings.MinNoticeHours,
		settings.MaxDaysOut,
		settings.SlotGranularityMinutes,
		settings.Timezone,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
