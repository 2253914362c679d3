package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lenmanean/doer-sub005/internal/domain"
)

// PlanRepository abstracts database access for plans.
type PlanRepository interface {
	GetByID(ctx context.Context, planID, userID string) (*domain.Plan, error)
	// ExtendEndDate pushes the plan's end date forward by the given number
	// of days and returns the new end date. Used by the orchestrator's
	// slot-not-found fallback.
	ExtendEndDate(ctx context.Context, planID, userID string, days int) (string, error)
	// ListActiveIDs returns the user's active plan ids for sweep passes.
	ListActiveIDs(ctx context.Context, userID string) ([]string, error)
}

type planRepository struct {
	pool *pgxpool.Pool
}

// NewPlanRepository wraps a pgxpool with the PlanRepository interface.
func NewPlanRepository(pool *pgxpool.Pool) PlanRepository {
	return &planRepository{pool: pool}
}

func (r *planRepository) GetByID(ctx context.Context, planID, userID string) (*domain.Plan, error) {
	var p domain.Plan
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name,
		       to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'),
		       status, created_at
		FROM plans
		WHERE id = $1 AND user_id = $2
	`, planID, userID).Scan(
		&p.ID, &p.UserID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.PlanNotFoundError{PlanID: planID}
		}
		return nil, fmt.Errorf("get plan %s: %w", planID, err)
	}
	return &p, nil
}

func (r *planRepository) ExtendEndDate(ctx context.Context, planID, userID string, days int) (string, error) {
	var newEnd string
	err := r.pool.QueryRow(ctx, `
		UPDATE plans
		SET end_date = end_date + $1::int, updated_at = now()
		WHERE id = $2 AND user_id = $3
		RETURNING to_char(end_date, 'YYYY-MM-DD')
	`, days, planID, userID).Scan(&newEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", &domain.PlanNotFoundError{PlanID: planID}
		}
		return "", fmt.Errorf("extend plan %s by %d days: %w", planID, days, err)
	}
	return newEnd, nil
}

func (r *planRepository) ListActiveIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM plans
		WHERE user_id = $1 AND status = 'active'
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active plans for user %s: %w", userID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan plan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
