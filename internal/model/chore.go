package model

import (
	"time"

	"github.com/google/uuid"
)

type ChoreStatus string

const (
	ChoreStatusPending    ChoreStatus = "pending"
	ChoreStatusInProgress ChoreStatus = "in_progress"
	ChoreStatusCompleted  ChoreStatus = "completed"
	ChoreStatusBlocked    ChoreStatus = "blocked"
	ChoreStatusOnHold     ChoreStatus = "on_hold"
)

type Chore struct {
	ID                 uuid.UUID   `json:"id"`
	SpaceID            uuid.UUID   `json:"space_id"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	Status             ChoreStatus `json:"status"`
	DueDate            *time.Time  `json:"due_date"`
	PointValue         int         `json:"point_value"`
	LatePenaltyEnabled bool        `json:"late_penalty_enabled"`
	LatePenaltyPoints  *int        `json:"late_penalty_points"`
	GracePeriodHours   *int        `json:"grace_period_hours"`
	AssignedTo         *uuid.UUID  `json:"assigned_to"`
	CreatedBy          uuid.UUID   `json:"created_by"`
	CompletedAt        *time.Time  `json:"completed_at"`
	CompletedBy        *uuid.UUID  `json:"completed_by"`
	OverdueNotifiedAt  *time.Time  `json:"overdue_notified_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// DefaultPointValue is used when a chore is created without a point value.
const DefaultPointValue = 10
