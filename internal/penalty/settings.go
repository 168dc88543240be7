package penalty

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/apperr"
	"github.com/dukerupert/hearth/internal/caching"
	"github.com/dukerupert/hearth/internal/model"
)

// Default returns the settings used by spaces that never saved their own.
func Default() model.PenaltySettings {
	return model.PenaltySettings{
		Enabled:                 true,
		DefaultPenaltyPoints:    5,
		DefaultGracePeriodHours: 24,
		MaxPenaltyPerChore:      50,
		ProgressivePenalty:      false,
		PenaltyMultiplierPerDay: 1,
		ExcludeWeekends:         false,
		ForgivenessAllowed:      true,
	}
}

// Validate checks every field against its allowed range.
func Validate(s model.PenaltySettings) error {
	fields := map[string]string{}
	if s.DefaultPenaltyPoints < 1 || s.DefaultPenaltyPoints > 100 {
		fields["default_penalty_points"] = "must be between 1 and 100"
	}
	if s.DefaultGracePeriodHours < 0 || s.DefaultGracePeriodHours > 168 {
		fields["default_grace_period_hours"] = "must be between 0 and 168"
	}
	if s.MaxPenaltyPerChore < 1 || s.MaxPenaltyPerChore > 500 {
		fields["max_penalty_per_chore"] = "must be between 1 and 500"
	}
	if s.PenaltyMultiplierPerDay < 1 || s.PenaltyMultiplierPerDay > 5 {
		fields["penalty_multiplier_per_day"] = "must be between 1 and 5"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid penalty settings", fields)
	}
	return nil
}

type SettingsStore interface {
	GetPenaltySettings(ctx context.Context, spaceID uuid.UUID) (*model.PenaltySettings, error)
	SetPenaltySettings(ctx context.Context, spaceID uuid.UUID, ps model.PenaltySettings, updatedBy uuid.UUID, at time.Time) error
}

// Resolver reads and writes per-space penalty settings, falling back to
// Default. It never retries; store failures surface as Unavailable.
type Resolver struct {
	store  SettingsStore
	cache  caching.Cache
	ttl    time.Duration
	logger *slog.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(store SettingsStore, cache caching.Cache, ttl time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, ttl: ttl, logger: logger, Clock: time.Now}
}

func cacheKey(spaceID uuid.UUID) string {
	return "penalty_settings:" + spaceID.String()
}

// Get returns the space's settings, or Default when none are stored.
func (r *Resolver) Get(ctx context.Context, spaceID uuid.UUID) (model.PenaltySettings, error) {
	return caching.UseCache(ctx, r.cache, cacheKey(spaceID), r.ttl, func() (model.PenaltySettings, error) {
		return r.load(ctx, spaceID)
	})
}

func (r *Resolver) load(ctx context.Context, spaceID uuid.UUID) (model.PenaltySettings, error) {
	stored, err := r.store.GetPenaltySettings(ctx, spaceID)
	if err != nil {
		return model.PenaltySettings{}, apperr.Unavailable("load penalty settings", err)
	}
	if stored == nil {
		return Default(), nil
	}
	return *stored, nil
}

// Update merges patch onto the current settings, validates and saves the
// result. The caller must have checked the requester's role.
func (r *Resolver) Update(ctx context.Context, spaceID uuid.UUID, patch model.PenaltySettingsPatch, updatedBy uuid.UUID) (model.PenaltySettings, error) {
	current, err := r.load(ctx, spaceID)
	if err != nil {
		return model.PenaltySettings{}, err
	}

	merged := current.Apply(patch)
	if err := Validate(merged); err != nil {
		return model.PenaltySettings{}, err
	}

	at := r.Clock().UTC().Truncate(time.Second)
	if err := r.store.SetPenaltySettings(ctx, spaceID, merged, updatedBy, at); err != nil {
		return model.PenaltySettings{}, err
	}

	if r.cache != nil {
		if err := r.cache.Delete(ctx, cacheKey(spaceID)); err != nil {
			r.logger.Warn("invalidate penalty settings cache", "space_id", spaceID, "error", err)
		}
	}
	return merged, nil
}
