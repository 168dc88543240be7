package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/model"
)

func TestPointTransactionIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPointsStore(db)
	ctx := context.Background()
	sp, owner := seedSpace(t, db)
	choreID := uuid.New()

	txn := &model.PointTransaction{
		UserID: owner, SpaceID: sp.ID, ChoreID: choreID,
		Kind: model.TransactionChoreCompletion, Points: 10, CreatedAt: testNow,
	}
	ok, err := ps.InsertTransaction(ctx, txn)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !ok {
		t.Fatal("first insert should succeed")
	}

	again := &model.PointTransaction{
		UserID: owner, SpaceID: sp.ID, ChoreID: choreID,
		Kind: model.TransactionChoreCompletion, Points: 10, CreatedAt: testNow,
	}
	ok, err = ps.InsertTransaction(ctx, again)
	if err != nil {
		t.Fatalf("insert again: %v", err)
	}
	if ok {
		t.Error("same chore, user and kind should be rejected")
	}

	bonus := &model.PointTransaction{
		UserID: owner, SpaceID: sp.ID, ChoreID: choreID,
		Kind: model.TransactionStreakBonus, Points: 2, CreatedAt: testNow,
	}
	ok, err = ps.InsertTransaction(ctx, bonus)
	if err != nil || !ok {
		t.Fatalf("bonus insert: ok=%v err=%v", ok, err)
	}

	txns, err := ps.ListTransactions(ctx, sp.ID, owner, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(txns))
	}
}

func TestBalanceSaveAndAdjust(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPointsStore(db)
	ctx := context.Background()
	sp, owner := seedSpace(t, db)

	got, err := ps.GetBalance(ctx, owner, sp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil balance before any points")
	}

	b := &model.PointBalance{
		UserID: owner, SpaceID: sp.ID, TotalPoints: 12,
		CurrentStreak: 3, LongestStreak: 5, LastCompletionDate: "2024-01-10", UpdatedAt: testNow,
	}
	if err := ps.SaveBalance(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := ps.AdjustTotal(ctx, owner, sp.ID, -20, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	got, err = ps.GetBalance(ctx, owner, sp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalPoints != -8 {
		t.Errorf("total = %d, want -8", got.TotalPoints)
	}
	if got.CurrentStreak != 3 || got.LongestStreak != 5 || got.LastCompletionDate != "2024-01-10" {
		t.Errorf("streak fields changed: %+v", got)
	}
}

func TestAdjustTotalCreatesRow(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPointsStore(db)
	ctx := context.Background()
	sp, owner := seedSpace(t, db)

	if err := ps.AdjustTotal(ctx, owner, sp.ID, -5, testNow); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	got, err := ps.GetBalance(ctx, owner, sp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.TotalPoints != -5 || got.CurrentStreak != 0 {
		t.Errorf("balance = %+v", got)
	}
}

func TestLeaderboard(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPointsStore(db)
	ss := NewSpaceStore(db)
	ctx := context.Background()
	sp, owner := seedSpace(t, db)

	kid := uuid.New()
	if _, err := ss.AddMember(ctx, sp.ID, kid, model.RoleMember, "Sam", testNow); err != nil {
		t.Fatalf("add member: %v", err)
	}
	newcomer := uuid.New()
	if _, err := ss.AddMember(ctx, sp.ID, newcomer, model.RoleMember, "Ari", testNow); err != nil {
		t.Fatalf("add member: %v", err)
	}

	if err := ps.AdjustTotal(ctx, owner, sp.ID, 15, testNow); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := ps.AdjustTotal(ctx, kid, sp.ID, 40, testNow); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	board, err := ps.Leaderboard(ctx, sp.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(board))
	}
	if board[0].UserID != kid || board[0].TotalPoints != 40 {
		t.Errorf("leader = %+v", board[0])
	}
	if board[2].UserID != newcomer || board[2].TotalPoints != 0 {
		t.Errorf("last = %+v", board[2])
	}
}
