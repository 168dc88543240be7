package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/apperr"
	"github.com/dukerupert/hearth/internal/model"
)

type SpaceStore struct {
	db *sql.DB
}

func NewSpaceStore(db *sql.DB) *SpaceStore {
	return &SpaceStore{db: db}
}

func scanSpace(scanner interface{ Scan(...any) error }) (*model.Space, error) {
	var sp model.Space
	err := scanner.Scan(&sp.ID, &sp.Name, &sp.CreatedBy, &sp.CreatedAt)
	if err != nil {
		return nil, err
	}
	sp.CreatedAt = sp.CreatedAt.UTC()
	return &sp, nil
}

func scanSpaceMember(scanner interface{ Scan(...any) error }) (*model.SpaceMember, error) {
	var m model.SpaceMember
	var role string
	err := scanner.Scan(&m.SpaceID, &m.UserID, &role, &m.DisplayName, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	m.Role = model.Role(role)
	m.JoinedAt = m.JoinedAt.UTC()
	return &m, nil
}

const spaceCols = `id, name, created_by, created_at`
const spaceMemberCols = `space_id, user_id, role, display_name, joined_at`

// Create inserts a space and makes its creator the owner.
func (s *SpaceStore) Create(ctx context.Context, name string, createdBy uuid.UUID, displayName string, at time.Time) (*model.Space, error) {
	id := uuid.New()
	at = at.UTC()

	err := InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO spaces (id, name, created_by, created_at) VALUES (?, ?, ?, ?)`,
			id, name, createdBy, at,
		); err != nil {
			return classify("insert space", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO space_members (space_id, user_id, role, display_name, joined_at) VALUES (?, ?, ?, ?, ?)`,
			id, createdBy, string(model.RoleOwner), displayName, at,
		); err != nil {
			return classify("insert owner", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *SpaceStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Space, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+spaceCols+` FROM spaces WHERE id = ?`, id)
	sp, err := scanSpace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get space", err)
	}
	return sp, nil
}

// ListForUser returns every space the user belongs to, by name.
func (s *SpaceStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Space, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.name, s.created_by, s.created_at FROM spaces s
		JOIN space_members m ON m.space_id = s.id
		WHERE m.user_id = ? ORDER BY s.name ASC`,
		userID,
	)
	if err != nil {
		return nil, classify("list spaces", err)
	}
	defer rows.Close()

	var spaces []model.Space
	for rows.Next() {
		sp, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		spaces = append(spaces, *sp)
	}
	return spaces, rows.Err()
}

// AddMember adds a user to a space. Adding an existing member is a conflict.
func (s *SpaceStore) AddMember(ctx context.Context, spaceID, userID uuid.UUID, role model.Role, displayName string, at time.Time) (*model.SpaceMember, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO space_members (space_id, user_id, role, display_name, joined_at) VALUES (?, ?, ?, ?, ?)`,
		spaceID, userID, string(role), displayName, at.UTC(),
	)
	if err != nil {
		if isConstraintError(err) {
			return nil, apperr.Conflict("user is already a member of this space")
		}
		return nil, classify("add member", err)
	}
	return s.GetMember(ctx, spaceID, userID)
}

func (s *SpaceStore) GetMember(ctx context.Context, spaceID, userID uuid.UUID) (*model.SpaceMember, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+spaceMemberCols+` FROM space_members WHERE space_id = ? AND user_id = ?`,
		spaceID, userID,
	)
	m, err := scanSpaceMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get member", err)
	}
	return m, nil
}

func (s *SpaceStore) ListMembers(ctx context.Context, spaceID uuid.UUID) ([]model.SpaceMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+spaceMemberCols+` FROM space_members WHERE space_id = ? ORDER BY joined_at ASC, display_name ASC`,
		spaceID,
	)
	if err != nil {
		return nil, classify("list members", err)
	}
	defer rows.Close()

	var members []model.SpaceMember
	for rows.Next() {
		m, err := scanSpaceMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}
