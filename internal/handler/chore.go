package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/apperr"
	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/chore"
	"github.com/dukerupert/hearth/internal/completion"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type ChoreHandler struct {
	chores    *store.ChoreStore
	spaces    *store.SpaceStore
	orch      *completion.Orchestrator
	publisher *Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewChoreHandler(chores *store.ChoreStore, spaces *store.SpaceStore, orch *completion.Orchestrator, publisher *Publisher, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{chores: chores, spaces: spaces, orch: orch, publisher: publisher, logger: logger, now: time.Now}
}

type createChoreRequest struct {
	SpaceID            uuid.UUID  `json:"spaceId"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	DueDate            *time.Time `json:"dueDate"`
	PointValue         *int       `json:"pointValue"`
	LatePenaltyEnabled bool       `json:"latePenaltyEnabled"`
	LatePenaltyPoints  *int       `json:"latePenaltyPoints"`
	GracePeriodHours   *int       `json:"gracePeriodHours"`
	AssignedTo         *uuid.UUID `json:"assignedTo"`
}

func (req *createChoreRequest) validate() error {
	fields := map[string]string{}
	req.Title = strings.TrimSpace(req.Title)
	if req.SpaceID == uuid.Nil {
		fields["spaceId"] = "required"
	}
	if req.Title == "" || len(req.Title) > 200 {
		fields["title"] = "must be 1-200 characters"
	}
	if req.PointValue != nil && (*req.PointValue < 0 || *req.PointValue > 1000) {
		fields["pointValue"] = "must be between 0 and 1000"
	}
	if req.LatePenaltyPoints != nil && (*req.LatePenaltyPoints < 1 || *req.LatePenaltyPoints > 100) {
		fields["latePenaltyPoints"] = "must be between 1 and 100"
	}
	if req.GracePeriodHours != nil && (*req.GracePeriodHours < 0 || *req.GracePeriodHours > 168) {
		fields["gracePeriodHours"] = "must be between 0 and 168"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid chore", fields)
	}
	return nil
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createChoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := requireMember(ctx, h.spaces, req.SpaceID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.AssignedTo != nil {
		m, err := h.spaces.GetMember(ctx, req.SpaceID, *req.AssignedTo)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if m == nil {
			writeError(w, r, h.logger, apperr.Validation("invalid chore", map[string]string{"assignedTo": "not a member of this space"}))
			return
		}
	}

	points := model.DefaultPointValue
	if req.PointValue != nil {
		points = *req.PointValue
	}
	var due *time.Time
	if req.DueDate != nil {
		d := req.DueDate.UTC()
		due = &d
	}

	c, err := h.chores.Create(ctx, model.Chore{
		SpaceID:            req.SpaceID,
		Title:              req.Title,
		Description:        strings.TrimSpace(req.Description),
		DueDate:            due,
		PointValue:         points,
		LatePenaltyEnabled: req.LatePenaltyEnabled,
		LatePenaltyPoints:  req.LatePenaltyPoints,
		GracePeriodHours:   req.GracePeriodHours,
		AssignedTo:         req.AssignedTo,
		CreatedBy:          auth.UserID(ctx),
		CreatedAt:          h.now().UTC().Truncate(time.Second),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.publish(r, c, "created", nil)
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	spaceID, err := queryUUID(r, "spaceId", true)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := model.ChoreStatus(r.URL.Query().Get("status"))
	if status != "" && !chore.Valid(status) {
		writeError(w, r, h.logger, apperr.Validation("invalid status", map[string]string{"status": "unknown status"}))
		return
	}
	if _, err := requireMember(r.Context(), h.spaces, *spaceID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	chores, err := h.chores.ListBySpace(r.Context(), *spaceID, status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

// load fetches the chore named by {id} and checks the caller belongs to
// its space. It writes the error response itself.
func (h *ChoreHandler) load(w http.ResponseWriter, r *http.Request) (*model.Chore, *model.SpaceMember, bool) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, nil, false
	}
	c, err := h.chores.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, nil, false
	}
	if c == nil {
		writeError(w, r, h.logger, apperr.NotFound("chore not found"))
		return nil, nil, false
	}
	m, err := requireMember(r.Context(), h.spaces, c.SpaceID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, nil, false
	}
	return c, m, true
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type statusRequest struct {
	Status model.ChoreStatus `json:"status"`
}

func (h *ChoreHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.load(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	switch {
	case !chore.Valid(req.Status):
		writeError(w, r, h.logger, apperr.Validation("invalid status", map[string]string{"status": "unknown status"}))
		return
	case req.Status == model.ChoreStatusCompleted:
		writeError(w, r, h.logger, apperr.Validation("use the complete endpoint to complete a chore", map[string]string{"status": "cannot be set directly"}))
		return
	case c.Status == model.ChoreStatusCompleted:
		writeError(w, r, h.logger, apperr.Conflict("chore is already completed"))
		return
	case c.Status == req.Status:
		writeJSON(w, http.StatusOK, c)
		return
	case !chore.CanTransition(c.Status, req.Status):
		writeError(w, r, h.logger, apperr.Validation("invalid status transition", map[string]string{"status": "not reachable from " + string(c.Status)}))
		return
	}

	ok, err := h.chores.UpdateStatus(r.Context(), c.ID, c.Status, req.Status, h.now().UTC().Truncate(time.Second))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !ok {
		writeError(w, r, h.logger, apperr.Conflict("chore was modified concurrently, reload and retry"))
		return
	}

	updated, err := h.chores.GetByID(r.Context(), c.ID)
	if err != nil || updated == nil {
		writeError(w, r, h.logger, apperr.Internal("reload chore", err))
		return
	}
	h.publish(r, updated, "updated", map[string]any{"status": string(updated.Status)})
	writeJSON(w, http.StatusOK, updated)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, m, ok := h.load(w, r)
	if !ok {
		return
	}
	if !m.Role.CanManage() && c.CreatedBy != m.UserID {
		writeError(w, r, h.logger, apperr.Forbidden("only the creator or an owner or admin can delete this chore"))
		return
	}

	if err := h.chores.Delete(r.Context(), c.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.publish(r, c, "deleted", nil)
	w.WriteHeader(http.StatusNoContent)
}

// Complete runs the completion flow for the caller.
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.orch.CompleteChore(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.publish(r, &res.Chore, "completed", map[string]any{
		"points_awarded":  res.Rewards.PointsAwarded,
		"streak_bonus":    res.Rewards.StreakBonus,
		"points_deducted": res.Penalty.PointsDeducted,
		"net_points":      res.NetPoints,
	})
	writeJSON(w, http.StatusOK, res)
}

func (h *ChoreHandler) publish(r *http.Request, c *model.Chore, action string, extra map[string]any) {
	userID := auth.UserID(r.Context())
	details := map[string]any{"title": c.Title}
	for k, v := range extra {
		details[k] = v
	}
	h.publisher.Publish(r.Context(), model.ActivityEntry{
		SpaceID:    c.SpaceID,
		UserID:     &userID,
		Action:     "chore_" + action,
		EntityType: "chore",
		EntityID:   c.ID,
		Details:    details,
		CreatedAt:  h.now().UTC().Truncate(time.Second),
	}, websocket.NewMessage(c.SpaceID, "chore", action, c.ID, extra))
}
