package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

var testNow = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

type recordingHub struct {
	messages []websocket.Message
}

func (h *recordingHub) Broadcast(msg websocket.Message) {
	h.messages = append(h.messages, msg)
}

type countingCleaner struct{ calls int }

func (c *countingCleaner) Cleanup() { c.calls++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepOverdueAnnouncesOnce(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	owner := uuid.New()
	sp, err := store.NewSpaceStore(db).Create(ctx, "Maple House", owner, "Alex", testNow)
	if err != nil {
		t.Fatalf("create space: %v", err)
	}
	chores := store.NewChoreStore(db)
	past := testNow.Add(-2 * time.Hour)
	future := testNow.Add(2 * time.Hour)
	overdue, err := chores.Create(ctx, model.Chore{SpaceID: sp.ID, Title: "Water plants", DueDate: &past, CreatedBy: owner, CreatedAt: testNow.Add(-time.Hour * 48)})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if _, err := chores.Create(ctx, model.Chore{SpaceID: sp.ID, Title: "Later", DueDate: &future, CreatedBy: owner, CreatedAt: testNow}); err != nil {
		t.Fatalf("create chore: %v", err)
	}

	hub := &recordingHub{}
	activity := store.NewActivityStore(db)
	s := New(chores, activity, hub, testLogger())
	s.Clock = func() time.Time { return testNow }

	if err := s.SweepOverdue(ctx); err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if err := s.SweepOverdue(ctx); err != nil {
		t.Fatalf("second SweepOverdue: %v", err)
	}

	if len(hub.messages) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(hub.messages))
	}
	msg := hub.messages[0]
	if msg.Type != "chore_overdue" || msg.SpaceID != sp.ID || msg.ID != overdue.ID.String() {
		t.Errorf("message = %+v", msg)
	}

	entries, err := activity.ListBySpace(ctx, sp.ID, 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "chore_overdue" {
		t.Errorf("activity = %+v, want one chore_overdue entry", entries)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(nil, nil, &recordingHub{}, testLogger())
	if err := s.Start(context.Background(), "not a schedule"); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestStartAndStop(t *testing.T) {
	cleaner := &countingCleaner{}
	s := New(nil, nil, &recordingHub{}, testLogger(), cleaner)
	if err := s.Start(context.Background(), "@daily"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := len(s.cron.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2", got)
	}
	s.Stop()
}
