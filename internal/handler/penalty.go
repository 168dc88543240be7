package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/apperr"
	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/penalty"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type PenaltyHandler struct {
	penalties *penalty.Service
	settings  *penalty.Resolver
	spaces    *store.SpaceStore
	publisher *Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewPenaltyHandler(penalties *penalty.Service, settings *penalty.Resolver, spaces *store.SpaceStore, publisher *Publisher, logger *slog.Logger) *PenaltyHandler {
	return &PenaltyHandler{penalties: penalties, settings: settings, spaces: spaces, publisher: publisher, logger: logger, now: time.Now}
}

// List returns penalties, aggregate stats (stats=true) or the overdue
// preview (overdue=true) for a space.
func (h *PenaltyHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	spaceID, err := queryUUID(r, "spaceId", true)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	userID, err := queryUUID(r, "userId", false)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := requireMember(ctx, h.spaces, *spaceID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	switch {
	case queryBool(r, "stats"):
		stats, err := h.penalties.Stats(ctx, *spaceID, r.URL.Query().Get("period"))
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stats": stats})

	case queryBool(r, "overdue"):
		overdue, err := h.penalties.Overdue(ctx, *spaceID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"overdueChores": overdue})

	default:
		penalties, err := h.penalties.List(ctx, store.PenaltyFilter{
			SpaceID:         *spaceID,
			UserID:          userID,
			IncludeForgiven: queryBool(r, "includeForgiven"),
			Limit:           queryLimit(r, 100, 500),
		})
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"penalties": penalties})
	}
}

func (h *PenaltyHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	spaceID, err := queryUUID(r, "spaceId", true)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := requireMember(r.Context(), h.spaces, *spaceID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	s, err := h.settings.Get(r.Context(), *spaceID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": s})
}

type updateSettingsRequest struct {
	SpaceID  uuid.UUID                  `json:"spaceId"`
	Settings model.PenaltySettingsPatch `json:"settings"`
}

func (h *PenaltyHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.SpaceID == uuid.Nil {
		writeError(w, r, h.logger, apperr.Validation("spaceId is required", map[string]string{"spaceId": "required"}))
		return
	}
	if _, err := requireManager(r.Context(), h.spaces, req.SpaceID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	s, err := h.settings.Update(r.Context(), req.SpaceID, req.Settings, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	userID := auth.UserID(r.Context())
	h.publisher.Publish(r.Context(), model.ActivityEntry{
		SpaceID:    req.SpaceID,
		UserID:     &userID,
		Action:     "penalty_settings_updated",
		EntityType: "space",
		EntityID:   req.SpaceID,
		CreatedAt:  h.now().UTC().Truncate(time.Second),
	}, websocket.NewMessage(req.SpaceID, "penalty_settings", "updated", req.SpaceID, nil))
	writeJSON(w, http.StatusOK, map[string]any{"settings": s})
}

type forgiveRequest struct {
	PenaltyID uuid.UUID `json:"penaltyId"`
	Reason    *string   `json:"reason"`
}

func (h *PenaltyHandler) Forgive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req forgiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.PenaltyID == uuid.Nil {
		writeError(w, r, h.logger, apperr.Validation("penaltyId is required", map[string]string{"penaltyId": "required"}))
		return
	}
	if req.Reason != nil {
		reason := strings.TrimSpace(*req.Reason)
		if len(reason) > 500 {
			writeError(w, r, h.logger, apperr.Validation("invalid reason", map[string]string{"reason": "must be at most 500 characters"}))
			return
		}
		req.Reason = &reason
		if reason == "" {
			req.Reason = nil
		}
	}

	p, err := h.penalties.Get(ctx, req.PenaltyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if p == nil {
		writeError(w, r, h.logger, apperr.NotFound("penalty not found"))
		return
	}
	if _, err := requireManager(ctx, h.spaces, p.SpaceID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	userID := auth.UserID(ctx)
	res, err := h.penalties.ForgivePenalty(ctx, penalty.ForgiveRequest{
		PenaltyID:  p.ID,
		ForgivenBy: userID,
		Reason:     req.Reason,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	details := map[string]any{"user_id": p.UserID.String(), "points_refunded": res.PointsRefunded}
	h.publisher.Publish(ctx, model.ActivityEntry{
		SpaceID:    p.SpaceID,
		UserID:     &userID,
		Action:     "penalty_forgiven",
		EntityType: "late_penalty",
		EntityID:   p.ID,
		Details:    details,
		CreatedAt:  h.now().UTC().Truncate(time.Second),
	}, websocket.NewMessage(p.SpaceID, "penalty", "forgiven", p.ID, details))
	writeJSON(w, http.StatusOK, res)
}
