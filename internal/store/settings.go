package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/model"
)

type SettingsStore struct {
	db DBTX
}

func NewSettingsStore(db DBTX) *SettingsStore {
	return &SettingsStore{db: db}
}

const penaltySettingsCols = `enabled, default_penalty_points, default_grace_period_hours, max_penalty_per_chore,
	progressive_penalty, penalty_multiplier_per_day, exclude_weekends, forgiveness_allowed`

// GetPenaltySettings returns the stored settings for a space, or nil when
// the space has never saved any.
func (s *SettingsStore) GetPenaltySettings(ctx context.Context, spaceID uuid.UUID) (*model.PenaltySettings, error) {
	var ps model.PenaltySettings
	var enabled, progressive, excludeWeekends, forgiveness int

	err := s.db.QueryRowContext(ctx,
		`SELECT `+penaltySettingsCols+` FROM space_penalty_settings WHERE space_id = ?`, spaceID,
	).Scan(
		&enabled, &ps.DefaultPenaltyPoints, &ps.DefaultGracePeriodHours, &ps.MaxPenaltyPerChore,
		&progressive, &ps.PenaltyMultiplierPerDay, &excludeWeekends, &forgiveness,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get penalty settings", err)
	}

	ps.Enabled = enabled != 0
	ps.ProgressivePenalty = progressive != 0
	ps.ExcludeWeekends = excludeWeekends != 0
	ps.ForgivenessAllowed = forgiveness != 0
	return &ps, nil
}

// SetPenaltySettings upserts the full settings row for a space.
func (s *SettingsStore) SetPenaltySettings(ctx context.Context, spaceID uuid.UUID, ps model.PenaltySettings, updatedBy uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO space_penalty_settings (space_id, `+penaltySettingsCols+`, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(space_id) DO UPDATE SET
			enabled = excluded.enabled,
			default_penalty_points = excluded.default_penalty_points,
			default_grace_period_hours = excluded.default_grace_period_hours,
			max_penalty_per_chore = excluded.max_penalty_per_chore,
			progressive_penalty = excluded.progressive_penalty,
			penalty_multiplier_per_day = excluded.penalty_multiplier_per_day,
			exclude_weekends = excluded.exclude_weekends,
			forgiveness_allowed = excluded.forgiveness_allowed,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		spaceID, boolInt(ps.Enabled), ps.DefaultPenaltyPoints, ps.DefaultGracePeriodHours, ps.MaxPenaltyPerChore,
		boolInt(ps.ProgressivePenalty), ps.PenaltyMultiplierPerDay, boolInt(ps.ExcludeWeekends),
		boolInt(ps.ForgivenessAllowed), updatedBy, at.UTC(),
	)
	if err != nil {
		return classify("set penalty settings", err)
	}
	return nil
}
