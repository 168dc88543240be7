package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/model"
)

func TestPenaltySettingsUnset(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSettingsStore(db)
	sp, _ := seedSpace(t, db)

	got, err := ss.GetPenaltySettings(context.Background(), sp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil settings for new space, got %+v", got)
	}
}

func TestPenaltySettingsUpsert(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSettingsStore(db)
	ctx := context.Background()
	sp, owner := seedSpace(t, db)

	want := model.PenaltySettings{
		Enabled:                 true,
		DefaultPenaltyPoints:    7,
		DefaultGracePeriodHours: 12,
		MaxPenaltyPerChore:      40,
		ProgressivePenalty:      true,
		PenaltyMultiplierPerDay: 1.5,
		ExcludeWeekends:         true,
		ForgivenessAllowed:      false,
	}
	if err := ss.SetPenaltySettings(ctx, sp.ID, want, owner, testNow); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := ss.GetPenaltySettings(ctx, sp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || *got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}

	want.Enabled = false
	want.ForgivenessAllowed = true
	if err := ss.SetPenaltySettings(ctx, sp.ID, want, owner, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = ss.GetPenaltySettings(ctx, sp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != want {
		t.Errorf("settings after update = %+v, want %+v", got, want)
	}
}

func TestPenaltySettingsUnknownSpace(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSettingsStore(db)

	err := ss.SetPenaltySettings(context.Background(), uuid.New(), model.PenaltySettings{}, uuid.New(), testNow)
	if err == nil {
		t.Fatal("expected foreign key error for unknown space")
	}
}
