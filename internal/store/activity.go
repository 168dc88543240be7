package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/model"
)

type ActivityStore struct {
	db DBTX
}

func NewActivityStore(db DBTX) *ActivityStore {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) Record(ctx context.Context, e model.ActivityEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	details := []byte("{}")
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal activity details: %w", err)
		}
		details = b
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, space_id, user_id, action, entity_type, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SpaceID, nullUUID(e.UserID), e.Action, e.EntityType, e.EntityID, string(details), e.CreatedAt.UTC(),
	)
	if err != nil {
		return classify("insert activity", err)
	}
	return nil
}

// ListBySpace returns the space's most recent activity, newest first.
func (s *ActivityStore) ListBySpace(ctx context.Context, spaceID uuid.UUID, limit int) ([]model.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, space_id, user_id, action, entity_type, entity_id, details, created_at
		FROM activity_log WHERE space_id = ? ORDER BY created_at DESC LIMIT ?`,
		spaceID, limit,
	)
	if err != nil {
		return nil, classify("list activity", err)
	}
	defer rows.Close()

	var entries []model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		var userID uuid.NullUUID
		var details string
		if err := rows.Scan(&e.ID, &e.SpaceID, &userID, &e.Action, &e.EntityType, &e.EntityID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.UserID = uuidPtr(userID)
		e.CreatedAt = e.CreatedAt.UTC()
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshal activity details: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
