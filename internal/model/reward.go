package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	TransactionChoreCompletion TransactionKind = "chore_completion"
	TransactionStreakBonus     TransactionKind = "streak_bonus"
	TransactionLatePenalty     TransactionKind = "late_penalty"
	TransactionPenaltyRefund   TransactionKind = "penalty_refund"
)

// PointTransaction is an immutable ledger row. (ChoreID, UserID, Kind) is
// unique.
type PointTransaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	SpaceID     uuid.UUID       `json:"space_id"`
	ChoreID     uuid.UUID       `json:"chore_id"`
	Kind        TransactionKind `json:"kind"`
	Points      int             `json:"points"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PointBalance is a user's running total and streak within one space.
type PointBalance struct {
	UserID             uuid.UUID `json:"user_id"`
	SpaceID            uuid.UUID `json:"space_id"`
	DisplayName        string    `json:"display_name,omitempty"`
	TotalPoints        int       `json:"total_points"`
	CurrentStreak      int       `json:"current_streak"`
	LongestStreak      int       `json:"longest_streak"`
	LastCompletionDate string    `json:"last_completion_date,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}
