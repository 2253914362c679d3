package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lenmanean/doer-sub005/internal/domain"
)

// SettingsRepository abstracts database access for user settings.
type SettingsRepository interface {
	// Get returns the user's settings row, or nil when none exists —
	// callers fall back to defaults.
	Get(ctx context.Context, userID string) (*domain.UserSettings, error)
	// IsAutoRescheduleEnabled is the feature-toggle lookup. Users without
	// a settings row default to enabled.
	IsAutoRescheduleEnabled(ctx context.Context, userID string) (bool, error)
	// ListAutoRescheduleUserIDs returns every user the sweeper should run
	// a pass for.
	ListAutoRescheduleUserIDs(ctx context.Context) ([]string, error)
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository wraps a pgxpool with the SettingsRepository interface.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) Get(ctx context.Context, userID string) (*domain.UserSettings, error) {
	var s domain.UserSettings
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, timezone, workday_start, workday_end,
		       lunch_start, lunch_end, buffer_minutes, priority_spacing,
		       reschedule_window_days, auto_reschedule_enabled, updated_at
		FROM user_settings
		WHERE user_id = $1
	`, userID).Scan(
		&s.UserID, &s.Timezone, &s.WorkdayStart, &s.WorkdayEnd,
		&s.LunchStart, &s.LunchEnd, &s.BufferMinutes, &s.PrioritySpacing,
		&s.RescheduleWindowDays, &s.AutoRescheduleEnabled, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings for user %s: %w", userID, err)
	}
	return &s, nil
}

func (r *settingsRepository) IsAutoRescheduleEnabled(ctx context.Context, userID string) (bool, error) {
	var enabled bool
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT auto_reschedule_enabled FROM user_settings WHERE user_id = $1),
			TRUE
		)
	`, userID).Scan(&enabled)
	if err != nil {
		return false, fmt.Errorf("auto-reschedule toggle for user %s: %w", userID, err)
	}
	return enabled, nil
}

func (r *settingsRepository) ListAutoRescheduleUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id FROM user_settings
		WHERE auto_reschedule_enabled
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list auto-reschedule users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
