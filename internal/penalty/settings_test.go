package penalty

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/apperr"
	"github.com/dukerupert/hearth/internal/caching"
	"github.com/dukerupert/hearth/internal/caching/cachetest"
	"github.com/dukerupert/hearth/internal/model"
)

type fakeSettingsStore struct {
	stored map[uuid.UUID]model.PenaltySettings
	getErr error
	gets   int
	sets   int
}

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{stored: map[uuid.UUID]model.PenaltySettings{}}
}

func (f *fakeSettingsStore) GetPenaltySettings(_ context.Context, spaceID uuid.UUID) (*model.PenaltySettings, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.stored[spaceID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSettingsStore) SetPenaltySettings(_ context.Context, spaceID uuid.UUID, ps model.PenaltySettings, _ uuid.UUID, _ time.Time) error {
	f.sets++
	f.stored[spaceID] = ps
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolverGetDefault(t *testing.T) {
	r := NewResolver(newFakeSettingsStore(), nil, time.Minute, discardLogger())

	got, err := r.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != Default() {
		t.Errorf("Get = %+v, want defaults %+v", got, Default())
	}
}

func TestResolverGetStored(t *testing.T) {
	fs := newFakeSettingsStore()
	spaceID := uuid.New()
	want := Default()
	want.DefaultPenaltyPoints = 12
	fs.stored[spaceID] = want

	r := NewResolver(fs, nil, time.Minute, discardLogger())
	got, err := r.Get(context.Background(), spaceID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestResolverStoreFailureIsRetryable(t *testing.T) {
	fs := newFakeSettingsStore()
	fs.getErr = errors.New("connection reset")

	r := NewResolver(fs, nil, time.Minute, discardLogger())
	_, err := r.Get(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if !apperr.Retryable(err) {
		t.Error("expected store failure to be retryable")
	}
	if fs.gets != 1 {
		t.Errorf("store called %d times, want 1 (no retries)", fs.gets)
	}
}

func TestResolverCachesAndInvalidates(t *testing.T) {
	fs := newFakeSettingsStore()
	r := NewResolver(fs, caching.NewLocal(100, time.Minute), time.Minute, discardLogger())
	ctx := context.Background()
	spaceID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := r.Get(ctx, spaceID); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if fs.gets != 1 {
		t.Errorf("store reads = %d, want 1", fs.gets)
	}

	points := 9
	if _, err := r.Update(ctx, spaceID, model.PenaltySettingsPatch{DefaultPenaltyPoints: &points}, uuid.New()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := r.Get(ctx, spaceID)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.DefaultPenaltyPoints != 9 {
		t.Errorf("points after update = %d, want 9", got.DefaultPenaltyPoints)
	}
}

func TestResolversSharingRedisSeeEachOthersUpdates(t *testing.T) {
	fs := newFakeSettingsStore()
	shared := cachetest.NewRedis()
	a := NewResolver(fs, caching.NewCacheRedis(shared, false), time.Minute, discardLogger())
	b := NewResolver(fs, caching.NewCacheRedis(shared, false), time.Minute, discardLogger())
	ctx := context.Background()
	spaceID := uuid.New()

	before, err := b.Get(ctx, spaceID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !before.ForgivenessAllowed {
		t.Fatal("forgiveness should default to allowed")
	}
	if _, err := a.Get(ctx, spaceID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fs.gets != 1 {
		t.Errorf("store reads = %d, want 1 (second instance served from redis)", fs.gets)
	}

	off := false
	if _, err := a.Update(ctx, spaceID, model.PenaltySettingsPatch{ForgivenessAllowed: &off}, uuid.New()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	after, err := b.Get(ctx, spaceID)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if after.ForgivenessAllowed {
		t.Error("second instance still sees forgiveness allowed after the first disabled it")
	}
}

func TestResolverUpdateMerges(t *testing.T) {
	fs := newFakeSettingsStore()
	r := NewResolver(fs, nil, time.Minute, discardLogger())
	spaceID := uuid.New()

	progressive := true
	mult := 2.5
	got, err := r.Update(context.Background(), spaceID, model.PenaltySettingsPatch{
		ProgressivePenalty:      &progressive,
		PenaltyMultiplierPerDay: &mult,
	}, uuid.New())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := Default()
	want.ProgressivePenalty = true
	want.PenaltyMultiplierPerDay = 2.5
	if got != want {
		t.Errorf("Update = %+v, want %+v", got, want)
	}
	if fs.stored[spaceID] != want {
		t.Errorf("stored = %+v, want %+v", fs.stored[spaceID], want)
	}
}

func TestResolverUpdateRejectsOutOfRange(t *testing.T) {
	fs := newFakeSettingsStore()
	r := NewResolver(fs, nil, time.Minute, discardLogger())

	grace := 200
	mult := 0.5
	_, err := r.Update(context.Background(), uuid.New(), model.PenaltySettingsPatch{
		DefaultGracePeriodHours: &grace,
		PenaltyMultiplierPerDay: &mult,
	}, uuid.New())

	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"default_grace_period_hours", "penalty_multiplier_per_day"} {
		if _, ok := e.Fields[field]; !ok {
			t.Errorf("expected field error for %s, got %v", field, e.Fields)
		}
	}
	if fs.sets != 0 {
		t.Errorf("store written %d times, want 0", fs.sets)
	}
}

func TestValidateBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.PenaltySettings)
		field  string
	}{
		{"points too low", func(s *model.PenaltySettings) { s.DefaultPenaltyPoints = 0 }, "default_penalty_points"},
		{"points too high", func(s *model.PenaltySettings) { s.DefaultPenaltyPoints = 101 }, "default_penalty_points"},
		{"negative grace", func(s *model.PenaltySettings) { s.DefaultGracePeriodHours = -1 }, "default_grace_period_hours"},
		{"max too high", func(s *model.PenaltySettings) { s.MaxPenaltyPerChore = 501 }, "max_penalty_per_chore"},
		{"multiplier too high", func(s *model.PenaltySettings) { s.PenaltyMultiplierPerDay = 5.5 }, "penalty_multiplier_per_day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			e, ok := apperr.As(Validate(s))
			if !ok {
				t.Fatal("expected validation error")
			}
			if _, ok := e.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want key %s", e.Fields, tt.field)
			}
		})
	}

	edges := Default()
	edges.DefaultPenaltyPoints = 100
	edges.DefaultGracePeriodHours = 0
	edges.MaxPenaltyPerChore = 500
	edges.PenaltyMultiplierPerDay = 5
	if err := Validate(edges); err != nil {
		t.Errorf("inclusive bounds rejected: %v", err)
	}
}
