package model

import (
	"time"

	"github.com/google/uuid"
)

// LatePenalty is one ledger entry recording points deducted for a late
// completion.
type LatePenalty struct {
	ID                uuid.UUID  `json:"id"`
	ChoreID           uuid.UUID  `json:"chore_id"`
	UserID            uuid.UUID  `json:"user_id"`
	SpaceID           uuid.UUID  `json:"space_id"`
	PointsDeducted    int        `json:"points_deducted"`
	DaysLate          int        `json:"days_late"`
	IsForgiven        bool       `json:"is_forgiven"`
	ForgivenBy        *uuid.UUID `json:"forgiven_by"`
	ForgivenAt        *time.Time `json:"forgiven_at"`
	ForgivenessReason *string    `json:"forgiveness_reason"`
	CreatedAt         time.Time  `json:"created_at"`

	// Populated by list queries.
	ChoreTitle string `json:"chore_title,omitempty"`
}

type PenaltyStats struct {
	Period              string             `json:"period"`
	Since               *time.Time         `json:"since"`
	TotalPenalties      int                `json:"totalPenalties"`
	TotalPointsDeducted int                `json:"totalPointsDeducted"`
	ForgivenCount       int                `json:"forgivenCount"`
	ForgivenPoints      int                `json:"forgivenPoints"`
	AverageDaysLate     float64            `json:"averageDaysLate"`
	ByUser              []UserPenaltyStats `json:"byUser"`
}

type UserPenaltyStats struct {
	UserID         uuid.UUID `json:"userId"`
	Penalties      int       `json:"penalties"`
	PointsDeducted int       `json:"pointsDeducted"`
	Forgiven       int       `json:"forgiven"`
}

// OverdueChore is an incomplete chore past its due date with the penalty
// it would incur if completed now.
type OverdueChore struct {
	Chore            Chore `json:"chore"`
	DaysLate         int   `json:"daysLate"`
	ProjectedPenalty int   `json:"projectedPenalty"`
	InGracePeriod    bool  `json:"inGracePeriod"`
}
