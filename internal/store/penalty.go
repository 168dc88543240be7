package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/model"
)

type PenaltyStore struct {
	db DBTX
}

func NewPenaltyStore(db DBTX) *PenaltyStore {
	return &PenaltyStore{db: db}
}

// WithTx returns a store bound to tx.
func (s *PenaltyStore) WithTx(tx *sql.Tx) *PenaltyStore {
	return &PenaltyStore{db: tx}
}

func scanPenalty(scanner interface{ Scan(...any) error }, extra ...any) (*model.LatePenalty, error) {
	var p model.LatePenalty
	var forgiven int
	var forgivenBy uuid.NullUUID
	var forgivenAt sql.NullTime
	var reason sql.NullString

	dest := []any{
		&p.ID, &p.ChoreID, &p.UserID, &p.SpaceID, &p.PointsDeducted, &p.DaysLate,
		&forgiven, &forgivenBy, &forgivenAt, &reason, &p.CreatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p.IsForgiven = forgiven != 0
	p.ForgivenBy = uuidPtr(forgivenBy)
	p.ForgivenAt = timePtr(forgivenAt)
	p.ForgivenessReason = stringPtr(reason)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

const penaltyCols = `id, chore_id, user_id, space_id, points_deducted, days_late,
	is_forgiven, forgiven_by, forgiven_at, forgiveness_reason, created_at`

// Insert records a ledger entry. It reports false when a penalty already
// exists for the same chore and user.
func (s *PenaltyStore) Insert(ctx context.Context, p *model.LatePenalty) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO late_penalties (id, chore_id, user_id, space_id, points_deducted, days_late, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chore_id, user_id) DO NOTHING`,
		p.ID, p.ChoreID, p.UserID, p.SpaceID, p.PointsDeducted, p.DaysLate, p.CreatedAt.UTC(),
	)
	if err != nil {
		return false, classify("insert late penalty", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *PenaltyStore) GetByID(ctx context.Context, id uuid.UUID) (*model.LatePenalty, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+penaltyCols+` FROM late_penalties WHERE id = ?`, id)
	p, err := scanPenalty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get late penalty", err)
	}
	return p, nil
}

// MarkForgiven flips an active penalty to forgiven. It reports false when
// the penalty was already forgiven.
func (s *PenaltyStore) MarkForgiven(ctx context.Context, id, forgivenBy uuid.UUID, reason *string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE late_penalties SET is_forgiven = 1, forgiven_by = ?, forgiven_at = ?, forgiveness_reason = ?
		WHERE id = ? AND is_forgiven = 0`,
		forgivenBy, at.UTC(), nullString(reason), id,
	)
	if err != nil {
		return false, classify("forgive late penalty", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

type PenaltyFilter struct {
	SpaceID         uuid.UUID
	UserID          *uuid.UUID
	IncludeForgiven bool
	Limit           int
}

// List returns penalties for a space, newest first, with the chore title
// when the chore still exists.
func (s *PenaltyStore) List(ctx context.Context, f PenaltyFilter) ([]model.LatePenalty, error) {
	query := `SELECT p.id, p.chore_id, p.user_id, p.space_id, p.points_deducted, p.days_late,
		p.is_forgiven, p.forgiven_by, p.forgiven_at, p.forgiveness_reason, p.created_at,
		COALESCE(c.title, '')
		FROM late_penalties p LEFT JOIN chores c ON c.id = p.chore_id
		WHERE p.space_id = ?`
	args := []any{f.SpaceID}
	if f.UserID != nil {
		query += ` AND p.user_id = ?`
		args = append(args, *f.UserID)
	}
	if !f.IncludeForgiven {
		query += ` AND p.is_forgiven = 0`
	}
	query += ` ORDER BY p.created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list late penalties", err)
	}
	defer rows.Close()

	var penalties []model.LatePenalty
	for rows.Next() {
		var title string
		p, err := scanPenalty(rows, &title)
		if err != nil {
			return nil, fmt.Errorf("scan late penalty: %w", err)
		}
		p.ChoreTitle = title
		penalties = append(penalties, *p)
	}
	return penalties, rows.Err()
}

// Stats aggregates the space's penalties created at or after since. A nil
// since covers all time.
func (s *PenaltyStore) Stats(ctx context.Context, spaceID uuid.UUID, since *time.Time) (*model.PenaltyStats, error) {
	where := `WHERE space_id = ?`
	args := []any{spaceID}
	if since != nil {
		where += ` AND created_at >= ?`
		args = append(args, since.UTC())
	}

	stats := &model.PenaltyStats{Since: since, ByUser: []model.UserPenaltyStats{}}
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(points_deducted), 0),
			COALESCE(SUM(CASE WHEN is_forgiven = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_forgiven = 1 THEN points_deducted ELSE 0 END), 0),
			AVG(days_late)
		FROM late_penalties `+where,
		args...,
	).Scan(&stats.TotalPenalties, &stats.TotalPointsDeducted, &stats.ForgivenCount, &stats.ForgivenPoints, &avg)
	if err != nil {
		return nil, classify("penalty totals", err)
	}
	if avg.Valid {
		stats.AverageDaysLate = avg.Float64
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, COUNT(*), COALESCE(SUM(points_deducted), 0),
			COALESCE(SUM(CASE WHEN is_forgiven = 1 THEN 1 ELSE 0 END), 0)
		FROM late_penalties `+where+`
		GROUP BY user_id ORDER BY SUM(points_deducted) DESC`,
		args...,
	)
	if err != nil {
		return nil, classify("penalty totals by user", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u model.UserPenaltyStats
		if err := rows.Scan(&u.UserID, &u.Penalties, &u.PointsDeducted, &u.Forgiven); err != nil {
			return nil, fmt.Errorf("scan user penalty stats: %w", err)
		}
		stats.ByUser = append(stats.ByUser, u)
	}
	return stats, rows.Err()
}
