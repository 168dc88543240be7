package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/model"
)

type ChoreStore struct {
	db DBTX
}

func NewChoreStore(db DBTX) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var status string
	var lateEnabled int
	var dueDate, completedAt, notifiedAt sql.NullTime
	var penaltyPoints, graceHours sql.NullInt64
	var assignedTo, completedBy uuid.NullUUID

	err := scanner.Scan(
		&c.ID, &c.SpaceID, &c.Title, &c.Description, &status, &dueDate, &c.PointValue,
		&lateEnabled, &penaltyPoints, &graceHours, &assignedTo, &c.CreatedBy,
		&completedAt, &completedBy, &notifiedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = model.ChoreStatus(status)
	c.LatePenaltyEnabled = lateEnabled != 0
	c.DueDate = timePtr(dueDate)
	c.LatePenaltyPoints = intPtr(penaltyPoints)
	c.GracePeriodHours = intPtr(graceHours)
	c.AssignedTo = uuidPtr(assignedTo)
	c.CompletedAt = timePtr(completedAt)
	c.CompletedBy = uuidPtr(completedBy)
	c.OverdueNotifiedAt = timePtr(notifiedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

const choreCols = `id, space_id, title, description, status, due_date, point_value,
	late_penalty_enabled, late_penalty_points, grace_period_hours, assigned_to, created_by,
	completed_at, completed_by, overdue_notified_at, created_at, updated_at`

// Create inserts c, assigning an ID when c.ID is zero. Timestamps are taken
// from c.CreatedAt.
func (s *ChoreStore) Create(ctx context.Context, c model.Chore) (*model.Chore, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = model.ChoreStatusPending
	}
	created := c.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (id, space_id, title, description, status, due_date, point_value,
			late_penalty_enabled, late_penalty_points, grace_period_hours, assigned_to, created_by,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SpaceID, c.Title, c.Description, string(c.Status), nullTime(c.DueDate), c.PointValue,
		boolInt(c.LatePenaltyEnabled), nullInt(c.LatePenaltyPoints), nullInt(c.GracePeriodHours),
		nullUUID(c.AssignedTo), c.CreatedBy, created, created,
	)
	if err != nil {
		return nil, classify("insert chore", err)
	}
	return s.GetByID(ctx, c.ID)
}

func (s *ChoreStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get chore", err)
	}
	return c, nil
}

// ListBySpace returns the space's chores, soonest due first. A non-empty
// status narrows the result.
func (s *ChoreStore) ListBySpace(ctx context.Context, spaceID uuid.UUID, status model.ChoreStatus) ([]model.Chore, error) {
	query := `SELECT ` + choreCols + ` FROM chores WHERE space_id = ?`
	args := []any{spaceID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY due_date IS NULL, due_date ASC, created_at ASC`

	return s.list(ctx, "list chores", query, args...)
}

// ListOverdue returns incomplete chores in the space that were due before now.
func (s *ChoreStore) ListOverdue(ctx context.Context, spaceID uuid.UUID, now time.Time) ([]model.Chore, error) {
	return s.list(ctx, "list overdue chores",
		`SELECT `+choreCols+` FROM chores
		WHERE space_id = ? AND status != 'completed' AND due_date IS NOT NULL AND due_date < ?
		ORDER BY due_date ASC`,
		spaceID, now.UTC(),
	)
}

// ListUnnotifiedOverdue returns incomplete chores across all spaces that
// became overdue and have not been announced yet.
func (s *ChoreStore) ListUnnotifiedOverdue(ctx context.Context, now time.Time, limit int) ([]model.Chore, error) {
	return s.list(ctx, "list unnotified overdue chores",
		`SELECT `+choreCols+` FROM chores
		WHERE status != 'completed' AND due_date IS NOT NULL AND due_date < ?
			AND overdue_notified_at IS NULL
		ORDER BY due_date ASC LIMIT ?`,
		now.UTC(), limit,
	)
}

func (s *ChoreStore) list(ctx context.Context, op, query string, args ...any) ([]model.Chore, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// UpdateStatus moves a chore from one status to another. It reports false
// when the chore was no longer in the from status.
func (s *ChoreStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ChoreStatus, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chores SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), at.UTC(), id, string(from),
	)
	if err != nil {
		return false, classify("update chore status", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkCompleted sets the chore to completed unless it already is. Exactly
// one concurrent caller observes true.
func (s *ChoreStore) MarkCompleted(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chores SET status = 'completed', completed_at = ?, completed_by = ?, updated_at = ?
		WHERE id = ? AND status != 'completed'`,
		at.UTC(), userID, at.UTC(), id,
	)
	if err != nil {
		return false, classify("mark chore completed", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkOverdueNotified stamps the chore so the overdue sweep skips it next time.
func (s *ChoreStore) MarkOverdueNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chores SET overdue_notified_at = ? WHERE id = ? AND overdue_notified_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return false, classify("mark overdue notified", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *ChoreStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return classify("delete chore", err)
	}
	return nil
}
