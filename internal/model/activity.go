package model

import (
	"time"

	"github.com/google/uuid"
)

type ActivityEntry struct {
	ID         uuid.UUID      `json:"id"`
	SpaceID    uuid.UUID      `json:"space_id"`
	UserID     *uuid.UUID     `json:"user_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}
