package chore

import (
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

// transitions lists the statuses reachable through a manual status update.
// completed is absent as a target: only the completion flow sets it, and
// nothing leaves it.
var transitions = map[model.ChoreStatus][]model.ChoreStatus{
	model.ChoreStatusPending:    {model.ChoreStatusInProgress, model.ChoreStatusBlocked, model.ChoreStatusOnHold},
	model.ChoreStatusInProgress: {model.ChoreStatusPending, model.ChoreStatusBlocked, model.ChoreStatusOnHold},
	model.ChoreStatusBlocked:    {model.ChoreStatusPending, model.ChoreStatusInProgress, model.ChoreStatusOnHold},
	model.ChoreStatusOnHold:     {model.ChoreStatusPending, model.ChoreStatusInProgress, model.ChoreStatusBlocked},
}

// Valid reports whether s is a known status.
func Valid(s model.ChoreStatus) bool {
	switch s {
	case model.ChoreStatusPending, model.ChoreStatusInProgress, model.ChoreStatusCompleted,
		model.ChoreStatusBlocked, model.ChoreStatusOnHold:
		return true
	}
	return false
}

// CanTransition reports whether a manual update may move a chore from one
// status to another.
func CanTransition(from, to model.ChoreStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsOverdue reports whether the chore is incomplete and past its due date.
func IsOverdue(c model.Chore, now time.Time) bool {
	if c.Status == model.ChoreStatusCompleted || c.DueDate == nil {
		return false
	}
	return now.After(*c.DueDate)
}

// PenaltyEligible reports whether completing the chore should go through
// late penalty evaluation.
func PenaltyEligible(c model.Chore) bool {
	return c.LatePenaltyEnabled && c.DueDate != nil
}
