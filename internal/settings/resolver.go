// Package settings derives per-user scheduling preferences and the
// auto-reschedule feature toggle from the user_settings table, applying
// hardcoded fallbacks field by field.
package settings

import (
	"context"
	"log/slog"

	"github.com/lenmanean/doer-sub005/internal/domain"
	"github.com/lenmanean/doer-sub005/internal/postgres"
	redisstore "github.com/lenmanean/doer-sub005/internal/redis"
	"github.com/lenmanean/doer-sub005/internal/timeutil"
)

// Resolver loads user settings with per-field default fallback.
type Resolver struct {
	repo   postgres.SettingsRepository
	cache  redisstore.ToggleCache // nil disables caching
	logger *slog.Logger
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(repo postgres.SettingsRepository, cache redisstore.ToggleCache, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, cache: cache, logger: logger}
}

// Workday resolves the user's workday settings. Missing rows and unset or
// malformed fields fall back to domain.DefaultWorkdaySettings.
func (r *Resolver) Workday(ctx context.Context, userID string) (domain.WorkdaySettings, error) {
	ws := domain.DefaultWorkdaySettings()

	row, err := r.repo.Get(ctx, userID)
	if err != nil {
		return ws, err
	}
	if row == nil {
		return ws, nil
	}

	if row.Timezone != nil && *row.Timezone != "" {
		ws.Timezone = *row.Timezone
	}
	applyClock(row.WorkdayStart, &ws.StartHour, &ws.StartMinute)
	applyClock(row.WorkdayEnd, &ws.EndHour, &ws.EndMinute)
	var ignored int
	applyClock(row.LunchStart, &ws.LunchStartHour, &ignored)
	applyClock(row.LunchEnd, &ws.LunchEndHour, &ignored)
	if row.BufferMinutes != nil && *row.BufferMinutes >= 0 {
		ws.BufferMinutes = *row.BufferMinutes
	}
	if row.PrioritySpacing != nil {
		if mode := domain.SpacingMode(*row.PrioritySpacing); mode.Valid() {
			ws.Spacing = mode
		}
	}
	if row.RescheduleWindowDays != nil && *row.RescheduleWindowDays > 0 {
		ws.RescheduleWindowDays = *row.RescheduleWindowDays
	}
	return ws, nil
}

// AutoRescheduleEnabled resolves the feature toggle, consulting the Redis
// cache first. Cache failures fall through to the store.
func (r *Resolver) AutoRescheduleEnabled(ctx context.Context, userID string) (bool, error) {
	if r.cache != nil {
		enabled, found, err := r.cache.Get(ctx, userID)
		if err != nil {
			r.logger.Warn("toggle cache read failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else if found {
			return enabled, nil
		}
	}

	enabled, err := r.repo.IsAutoRescheduleEnabled(ctx, userID)
	if err != nil {
		return false, err
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, userID, enabled); err != nil {
			r.logger.Warn("toggle cache write failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return enabled, nil
}

func applyClock(s *string, hour, minute *int) {
	if s == nil || *s == "" {
		return
	}
	h, m, _, err := timeutil.ParseClock(*s)
	if err != nil {
		return
	}
	*hour, *minute = h, m
}
