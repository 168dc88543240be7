// Package handler implements the JSON API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/apperr"
	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status and JSON body. It is the only place
// request errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal("internal server error", err)
	}
	status := statusFor(e.Kind)

	body := errorBody{Error: e.Message, Code: e.Kind.Code(), Fields: e.Fields}
	switch e.Kind {
	case apperr.KindInternal:
		body.Error = "internal server error"
	case apperr.KindUnavailable:
		body.Error = "service temporarily unavailable"
	}

	if status >= 500 {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", e.Kind.Code(),
			"error", err,
		)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required", nil)
		}
		return apperr.Validation(fmt.Sprintf("invalid JSON: %v", err), nil)
	}
	return nil
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid "+name, map[string]string{name: "must be a UUID"})
	}
	return id, nil
}

// queryUUID parses a UUID query parameter. Missing required values are a
// validation error; missing optional ones return nil.
func queryUUID(r *http.Request, name string, required bool) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			return nil, apperr.Validation(name+" is required", map[string]string{name: "required"})
		}
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("invalid "+name, map[string]string{name: "must be a UUID"})
	}
	return &id, nil
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

func queryLimit(r *http.Request, def, maxLimit int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxLimit)
}

type memberLookup interface {
	GetMember(ctx context.Context, spaceID, userID uuid.UUID) (*model.SpaceMember, error)
}

// requireMember returns the caller's membership in spaceID or Forbidden.
func requireMember(ctx context.Context, members memberLookup, spaceID uuid.UUID) (*model.SpaceMember, error) {
	m, err := members.GetMember(ctx, spaceID, auth.UserID(ctx))
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.Forbidden("not a member of this space")
	}
	return m, nil
}

// requireManager is requireMember restricted to owners and admins.
func requireManager(ctx context.Context, members memberLookup, spaceID uuid.UUID) (*model.SpaceMember, error) {
	m, err := requireMember(ctx, members, spaceID)
	if err != nil {
		return nil, err
	}
	if !m.Role.CanManage() {
		return nil, apperr.Forbidden("owner or admin role required")
	}
	return m, nil
}
