package model

// PenaltySettings is the per-space late penalty configuration.
type PenaltySettings struct {
	Enabled                 bool    `json:"enabled"`
	DefaultPenaltyPoints    int     `json:"default_penalty_points"`
	DefaultGracePeriodHours int     `json:"default_grace_period_hours"`
	MaxPenaltyPerChore      int     `json:"max_penalty_per_chore"`
	ProgressivePenalty      bool    `json:"progressive_penalty"`
	PenaltyMultiplierPerDay float64 `json:"penalty_multiplier_per_day"`
	ExcludeWeekends         bool    `json:"exclude_weekends"`
	ForgivenessAllowed      bool    `json:"forgiveness_allowed"`
}

// PenaltySettingsPatch carries a partial settings update. Nil fields are
// left unchanged.
type PenaltySettingsPatch struct {
	Enabled                 *bool    `json:"enabled"`
	DefaultPenaltyPoints    *int     `json:"default_penalty_points"`
	DefaultGracePeriodHours *int     `json:"default_grace_period_hours"`
	MaxPenaltyPerChore      *int     `json:"max_penalty_per_chore"`
	ProgressivePenalty      *bool    `json:"progressive_penalty"`
	PenaltyMultiplierPerDay *float64 `json:"penalty_multiplier_per_day"`
	ExcludeWeekends         *bool    `json:"exclude_weekends"`
	ForgivenessAllowed      *bool    `json:"forgiveness_allowed"`
}

// Apply returns s with every non-nil field of p applied.
func (s PenaltySettings) Apply(p PenaltySettingsPatch) PenaltySettings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.DefaultPenaltyPoints != nil {
		s.DefaultPenaltyPoints = *p.DefaultPenaltyPoints
	}
	if p.DefaultGracePeriodHours != nil {
		s.DefaultGracePeriodHours = *p.DefaultGracePeriodHours
	}
	if p.MaxPenaltyPerChore != nil {
		s.MaxPenaltyPerChore = *p.MaxPenaltyPerChore
	}
	if p.ProgressivePenalty != nil {
		s.ProgressivePenalty = *p.ProgressivePenalty
	}
	if p.PenaltyMultiplierPerDay != nil {
		s.PenaltyMultiplierPerDay = *p.PenaltyMultiplierPerDay
	}
	if p.ExcludeWeekends != nil {
		s.ExcludeWeekends = *p.ExcludeWeekends
	}
	if p.ForgivenessAllowed != nil {
		s.ForgivenessAllowed = *p.ForgivenessAllowed
	}
	return s
}
