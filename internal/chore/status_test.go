package chore

import (
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.ChoreStatus
		want     bool
	}{
		{model.ChoreStatusPending, model.ChoreStatusInProgress, true},
		{model.ChoreStatusInProgress, model.ChoreStatusBlocked, true},
		{model.ChoreStatusOnHold, model.ChoreStatusPending, true},
		{model.ChoreStatusPending, model.ChoreStatusCompleted, false},
		{model.ChoreStatusCompleted, model.ChoreStatusPending, false},
		{model.ChoreStatusPending, model.ChoreStatusPending, false},
		{model.ChoreStatusBlocked, "archived", false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	for _, s := range []model.ChoreStatus{"pending", "in_progress", "completed", "blocked", "on_hold"} {
		if !Valid(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Valid("overdue") {
		t.Error("overdue is derived, not stored")
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		chore model.Chore
		want  bool
	}{
		{"no due date", model.Chore{Status: model.ChoreStatusPending}, false},
		{"past due", model.Chore{Status: model.ChoreStatusPending, DueDate: &past}, true},
		{"blocked past due", model.Chore{Status: model.ChoreStatusBlocked, DueDate: &past}, true},
		{"future", model.Chore{Status: model.ChoreStatusInProgress, DueDate: &future}, false},
		{"completed", model.Chore{Status: model.ChoreStatusCompleted, DueDate: &past}, false},
		{"due exactly now", model.Chore{Status: model.ChoreStatusPending, DueDate: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOverdue(tt.chore, now); got != tt.want {
				t.Errorf("IsOverdue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPenaltyEligible(t *testing.T) {
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if PenaltyEligible(model.Chore{LatePenaltyEnabled: true}) {
		t.Error("no due date should not be eligible")
	}
	if PenaltyEligible(model.Chore{DueDate: &due}) {
		t.Error("disabled penalty should not be eligible")
	}
	if !PenaltyEligible(model.Chore{LatePenaltyEnabled: true, DueDate: &due}) {
		t.Error("expected eligible")
	}
}
