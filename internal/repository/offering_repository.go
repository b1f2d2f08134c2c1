package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookline/bookline/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OfferingRepository struct {
	pool *pgxpool.Pool
}

func NewOfferingRepository(pool *pgxpool.Pool) *OfferingRepository {
	return &OfferingRepository{pool: pool}
}

func (r *OfferingRepository) CreateOffering(ctx context.Context, o *model.Offering) error {
	query := `
		INSERT INTO offerings (id, business_id, name, duration_minutes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query, o.ID, o.BusinessID, o.Name, o.DurationMinutes, o.Active, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}

func (r *OfferingRepository) GetOffering(ctx context.Context, id string) (*model.Offering, error) {
	query := `
		SELECT id, business_id, name, duration_minutes, active, created_at, updated_at
		FROM offerings
		WHERE id = $1
	`

	var o model.Offering
	err := r.pool.QueryRow(ctx, query, id).Scan(&o.ID, &o.BusinessID, &o.Name, &o.DurationMinutes, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get offering: %w", err)
	}
	return &o, nil
}

func (r *OfferingRepository) ListOfferings(ctx context.Context, businessID string) ([]model.Offering, error) {
	query := `
		SELECT id, business_id, name, duration_minutes, active, created_at, updated_at
		FROM offerings
		WHERE business_id = $1
		ORDER BY name ASC
	`

	rows, err := r.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer rows.Close()

	var out []model.Offering
	for rows.Next() {
		var o model.Offering
		if err := rows.Scan(&o.ID, &o.BusinessID, &o.Name, &o.DurationMinutes, &o.Active, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	return out, nil
}

func (r *OfferingRepository) UpdateOffering(ctx context.Context, o *model.Offering) error {
	query := `
		UPDATE offerings
		SET name = $1, duration_minutes = $2, active = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.pool.Exec(ctx, query, o.Name, o.DurationMinutes, o.Active, o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("update offering: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("offering %s not found", o.ID)
	}
	return nil
}
