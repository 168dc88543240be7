package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/model"
)

type PointsStore struct {
	db DBTX
}

func NewPointsStore(db DBTX) *PointsStore {
	return &PointsStore{db: db}
}

// WithTx returns a store bound to tx.
func (s *PointsStore) WithTx(tx *sql.Tx) *PointsStore {
	return &PointsStore{db: tx}
}

// --- Transaction methods ---

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.PointTransaction, error) {
	var t model.PointTransaction
	var kind string
	err := scanner.Scan(&t.ID, &t.UserID, &t.SpaceID, &t.ChoreID, &kind, &t.Points, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Kind = model.TransactionKind(kind)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

const transactionCols = `id, user_id, space_id, chore_id, kind, points, description, created_at`

// InsertTransaction appends a ledger row. It reports false when a row with
// the same chore, user and kind already exists.
func (s *PointsStore) InsertTransaction(ctx context.Context, t *model.PointTransaction) (bool, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO point_transactions (`+transactionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chore_id, user_id, kind) DO NOTHING`,
		t.ID, t.UserID, t.SpaceID, t.ChoreID, string(t.Kind), t.Points, t.Description, t.CreatedAt.UTC(),
	)
	if err != nil {
		return false, classify("insert point transaction", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ListTransactions returns the user's most recent ledger rows in a space.
func (s *PointsStore) ListTransactions(ctx context.Context, spaceID, userID uuid.UUID, limit int) ([]model.PointTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionCols+` FROM point_transactions
		WHERE space_id = ? AND user_id = ? ORDER BY created_at DESC, kind ASC LIMIT ?`,
		spaceID, userID, limit,
	)
	if err != nil {
		return nil, classify("list point transactions", err)
	}
	defer rows.Close()

	var txns []model.PointTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan point transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// --- Balance methods ---

func scanBalance(scanner interface{ Scan(...any) error }) (*model.PointBalance, error) {
	var b model.PointBalance
	var lastDate sql.NullString
	err := scanner.Scan(&b.UserID, &b.SpaceID, &b.TotalPoints, &b.CurrentStreak, &b.LongestStreak, &lastDate, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.LastCompletionDate = lastDate.String
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

const balanceCols = `user_id, space_id, total_points, current_streak, longest_streak, last_completion_date, updated_at`

// GetBalance returns the user's balance row in a space, or nil if the user
// has never earned or lost points there.
func (s *PointsStore) GetBalance(ctx context.Context, userID, spaceID uuid.UUID) (*model.PointBalance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+balanceCols+` FROM user_points WHERE user_id = ? AND space_id = ?`,
		userID, spaceID,
	)
	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get point balance", err)
	}
	return b, nil
}

// SaveBalance writes the full balance row, including streak fields.
func (s *PointsStore) SaveBalance(ctx context.Context, b *model.PointBalance) error {
	var lastDate sql.NullString
	if b.LastCompletionDate != "" {
		lastDate = sql.NullString{String: b.LastCompletionDate, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_points (`+balanceCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, space_id) DO UPDATE SET
			total_points = excluded.total_points,
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_completion_date = excluded.last_completion_date,
			updated_at = excluded.updated_at`,
		b.UserID, b.SpaceID, b.TotalPoints, b.CurrentStreak, b.LongestStreak, lastDate, b.UpdatedAt.UTC(),
	)
	if err != nil {
		return classify("save point balance", err)
	}
	return nil
}

// AdjustTotal adds delta to the user's total, creating the row if needed.
// Streak fields are untouched. Totals may go negative.
func (s *PointsStore) AdjustTotal(ctx context.Context, userID, spaceID uuid.UUID, delta int, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_points (user_id, space_id, total_points, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, space_id) DO UPDATE SET
			total_points = total_points + excluded.total_points,
			updated_at = excluded.updated_at`,
		userID, spaceID, delta, at.UTC(),
	)
	if err != nil {
		return classify("adjust point total", err)
	}
	return nil
}

// Leaderboard returns every member of the space with their balance,
// highest total first. Members without a balance row report zero.
func (s *PointsStore) Leaderboard(ctx context.Context, spaceID uuid.UUID) ([]model.PointBalance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.user_id, m.display_name,
			COALESCE(p.total_points, 0), COALESCE(p.current_streak, 0), COALESCE(p.longest_streak, 0),
			COALESCE(p.last_completion_date, '')
		FROM space_members m
		LEFT JOIN user_points p ON p.user_id = m.user_id AND p.space_id = m.space_id
		WHERE m.space_id = ?
		ORDER BY COALESCE(p.total_points, 0) DESC, m.display_name ASC`,
		spaceID,
	)
	if err != nil {
		return nil, classify("leaderboard", err)
	}
	defer rows.Close()

	var balances []model.PointBalance
	for rows.Next() {
		b := model.PointBalance{SpaceID: spaceID}
		if err := rows.Scan(&b.UserID, &b.DisplayName, &b.TotalPoints, &b.CurrentStreak, &b.LongestStreak, &b.LastCompletionDate); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
