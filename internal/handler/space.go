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
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type SpaceHandler struct {
	spaces   *store.SpaceStore
	points   *store.PointsStore
	activity *store.ActivityStore
	hub      *websocket.Hub
	logger   *slog.Logger
	now      func() time.Time
}

func NewSpaceHandler(spaces *store.SpaceStore, points *store.PointsStore, activity *store.ActivityStore, hub *websocket.Hub, logger *slog.Logger) *SpaceHandler {
	return &SpaceHandler{spaces: spaces, points: points, activity: activity, hub: hub, logger: logger, now: time.Now}
}

type createSpaceRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

func (h *SpaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSpaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 100 {
		writeError(w, r, h.logger, apperr.Validation("invalid space", map[string]string{"name": "must be 1-100 characters"}))
		return
	}

	sp, err := h.spaces.Create(r.Context(), req.Name, auth.UserID(r.Context()), strings.TrimSpace(req.DisplayName), h.now().UTC().Truncate(time.Second))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (h *SpaceHandler) List(w http.ResponseWriter, r *http.Request) {
	spaces, err := h.spaces.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if spaces == nil {
		spaces = []model.Space{}
	}
	writeJSON(w, http.StatusOK, spaces)
}

func (h *SpaceHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	spaceID, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := requireMember(r.Context(), h.spaces, spaceID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	members, err := h.spaces.ListMembers(r.Context(), spaceID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

type addMemberRequest struct {
	UserID      uuid.UUID  `json:"userId"`
	Role        model.Role `json:"role"`
	DisplayName string     `json:"displayName"`
}

func (h *SpaceHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	spaceID, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	caller, err := requireManager(r.Context(), h.spaces, spaceID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	fields := map[string]string{}
	if req.UserID == uuid.Nil {
		fields["userId"] = "required"
	}
	if !req.Role.Valid() {
		fields["role"] = "must be owner, admin or member"
	}
	if len(fields) > 0 {
		writeError(w, r, h.logger, apperr.Validation("invalid member", fields))
		return
	}
	if req.Role == model.RoleOwner && caller.Role != model.RoleOwner {
		writeError(w, r, h.logger, apperr.Forbidden("only owners can add owners"))
		return
	}

	m, err := h.spaces.AddMember(r.Context(), spaceID, req.UserID, req.Role, strings.TrimSpace(req.DisplayName), h.now().UTC().Truncate(time.Second))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *SpaceHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	spaceID, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := requireMember(r.Context(), h.spaces, spaceID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	balances, err := h.points.Leaderboard(r.Context(), spaceID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if balances == nil {
		balances = []model.PointBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *SpaceHandler) Balance(w http.ResponseWriter, r *http.Request) {
	spaceID, userID, ok := h.spaceAndUser(w, r)
	if !ok {
		return
	}

	b, err := h.points.GetBalance(r.Context(), userID, spaceID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if b == nil {
		b = &model.PointBalance{UserID: userID, SpaceID: spaceID}
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *SpaceHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	spaceID, userID, ok := h.spaceAndUser(w, r)
	if !ok {
		return
	}

	txs, err := h.points.ListTransactions(r.Context(), spaceID, userID, queryLimit(r, 50, 200))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if txs == nil {
		txs = []model.PointTransaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// spaceAndUser parses {id} and {userId} and checks the caller belongs to
// the space. It writes the error response itself.
func (h *SpaceHandler) spaceAndUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	spaceID, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return uuid.Nil, uuid.Nil, false
	}
	userID, err := parseUUIDParam(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return uuid.Nil, uuid.Nil, false
	}
	if _, err := requireMember(r.Context(), h.spaces, spaceID); err != nil {
		writeError(w, r, h.logger, err)
		return uuid.Nil, uuid.Nil, false
	}
	return spaceID, userID, true
}

func (h *SpaceHandler) Activity(w http.ResponseWriter, r *http.Request) {
	spaceID, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := requireMember(r.Context(), h.spaces, spaceID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entries, err := h.activity.ListBySpace(r.Context(), spaceID, queryLimit(r, 50, 200))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Stream upgrades to a websocket carrying the space's activity.
func (h *SpaceHandler) Stream(w http.ResponseWriter, r *http.Request) {
	spaceID, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := requireMember(r.Context(), h.spaces, spaceID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.hub.Serve(w, r, spaceID)
}
