package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cws "github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/background"
	"github.com/dukerupert/hearth/internal/caching"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/middleware"
	"github.com/dukerupert/hearth/internal/penalty"
	"github.com/dukerupert/hearth/internal/store"
	ws "github.com/dukerupert/hearth/internal/websocket"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	router   http.Handler
	verifier *auth.Verifier
}

func newTestEnv(t *testing.T, limits Limits) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := background.NewRunner(4, time.Second, logger)
	t.Cleanup(func() { runner.Close(context.Background()) })

	resolver := penalty.NewResolver(store.NewSettingsStore(db), caching.NewLocal(100, time.Minute), time.Minute, logger)
	verifier := auth.NewVerifier(testSecret, "", "")
	srv := New(db, ws.NewHub(logger), runner, resolver, verifier, middleware.NewMemoryLimiter(time.Minute), limits, logger)
	return &testEnv{router: srv.Router(), verifier: verifier}
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := e.verifier.Issue(userID, "", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t, PerMinute(30, 10))
	rec := env.do(t, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t, PerMinute(30, 10))
	for _, path := range []string{"/api/spaces", "/api/penalties?spaceId=" + uuid.NewString()} {
		rec := env.do(t, "GET", path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s = %d, want 401", path, rec.Code)
		}
	}
	rec := env.do(t, "GET", "/api/spaces", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", rec.Code)
	}
}

func TestCompleteLateChoreAndForgive(t *testing.T) {
	env := newTestEnv(t, PerMinute(30, 10))
	owner := uuid.New()
	member := uuid.New()
	ownerTok := env.token(t, owner)
	memberTok := env.token(t, member)

	rec := env.do(t, "POST", "/api/spaces", ownerTok, map[string]any{"name": "Home"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create space = %d %s", rec.Code, rec.Body.String())
	}
	var sp struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, rec, &sp)

	rec = env.do(t, "POST", "/api/spaces/"+sp.ID.String()+"/members", ownerTok, map[string]any{
		"userId": member, "role": "member", "displayName": "Sam",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add member = %d %s", rec.Code, rec.Body.String())
	}

	due := time.Now().UTC().Add(-72 * time.Hour)
	rec = env.do(t, "POST", "/api/chores", memberTok, map[string]any{
		"spaceId":            sp.ID,
		"title":              "Take out recycling",
		"dueDate":            due,
		"latePenaltyEnabled": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create chore = %d %s", rec.Code, rec.Body.String())
	}
	var c struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, rec, &c)

	rec = env.do(t, "POST", "/api/chores/"+c.ID.String()+"/complete", memberTok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete = %d %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Success bool `json:"success"`
		Rewards struct {
			PointsAwarded int `json:"pointsAwarded"`
		} `json:"rewards"`
		Penalty struct {
			Applied        bool `json:"applied"`
			PointsDeducted int  `json:"pointsDeducted"`
		} `json:"penalty"`
		NetPoints int `json:"netPoints"`
	}
	decode(t, rec, &res)
	if !res.Success || res.Rewards.PointsAwarded != 10 || !res.Penalty.Applied || res.Penalty.PointsDeducted != 5 || res.NetPoints != 5 {
		t.Fatalf("unexpected completion result %s", rec.Body.String())
	}

	rec = env.do(t, "POST", "/api/chores/"+c.ID.String()+"/complete", memberTok, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("second complete = %d, want 400", rec.Code)
	}

	rec = env.do(t, "GET", "/api/penalties?spaceId="+sp.ID.String(), memberTok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list penalties = %d %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Penalties []struct {
			ID         uuid.UUID `json:"id"`
			ChoreTitle string    `json:"chore_title"`
		} `json:"penalties"`
	}
	decode(t, rec, &list)
	if len(list.Penalties) != 1 || list.Penalties[0].ChoreTitle != "Take out recycling" {
		t.Fatalf("penalties = %s", rec.Body.String())
	}
	penaltyID := list.Penalties[0].ID

	rec = env.do(t, "POST", "/api/penalties/forgive", memberTok, map[string]any{"penaltyId": penaltyID})
	if rec.Code != http.StatusForbidden {
		t.Errorf("member forgive = %d, want 403", rec.Code)
	}

	rec = env.do(t, "POST", "/api/penalties/forgive", ownerTok, map[string]any{"penaltyId": penaltyID, "reason": "storm"})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgive = %d %s", rec.Code, rec.Body.String())
	}
	var fr struct {
		Success        bool `json:"success"`
		PointsRefunded int  `json:"pointsRefunded"`
	}
	decode(t, rec, &fr)
	if !fr.Success || fr.PointsRefunded != 5 {
		t.Errorf("forgive result = %s", rec.Body.String())
	}

	rec = env.do(t, "POST", "/api/penalties/forgive", ownerTok, map[string]any{"penaltyId": penaltyID})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("second forgive = %d, want 400", rec.Code)
	}

	rec = env.do(t, "GET", "/api/spaces/"+sp.ID.String()+"/points/"+member.String(), memberTok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance = %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"total_points":10`) {
		t.Errorf("balance = %s, want total_points 10", rec.Body.String())
	}

	rec = env.do(t, "GET", "/api/penalties?stats=true&period=all&spaceId="+sp.ID.String(), memberTok, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"stats"`) {
		t.Errorf("stats = %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, "GET", "/api/penalties?stats=true&period=decade&spaceId="+sp.ID.String(), memberTok, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad period = %d, want 400", rec.Code)
	}
	rec = env.do(t, "GET", "/api/penalties?overdue=true&spaceId="+sp.ID.String(), memberTok, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"overdueChores":[]`) {
		t.Errorf("overdue = %d %s", rec.Code, rec.Body.String())
	}
}

func TestPenaltySettingsRequireManager(t *testing.T) {
	env := newTestEnv(t, PerMinute(30, 10))
	owner := uuid.New()
	ownerTok := env.token(t, owner)
	outsiderTok := env.token(t, uuid.New())

	rec := env.do(t, "POST", "/api/spaces", ownerTok, map[string]any{"name": "Flat"})
	var sp struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, rec, &sp)

	rec = env.do(t, "GET", "/api/penalties/settings?spaceId="+sp.ID.String(), outsiderTok, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("outsider get settings = %d, want 403", rec.Code)
	}

	rec = env.do(t, "PUT", "/api/penalties/settings", ownerTok, map[string]any{
		"spaceId":  sp.ID,
		"settings": map[string]any{"default_penalty_points": 500},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid settings = %d, want 400", rec.Code)
	}

	rec = env.do(t, "PUT", "/api/penalties/settings", ownerTok, map[string]any{
		"spaceId":  sp.ID,
		"settings": map[string]any{"default_penalty_points": 8, "exclude_weekends": true},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update settings = %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "GET", "/api/penalties/settings?spaceId="+sp.ID.String(), ownerTok, nil)
	var got struct {
		Settings struct {
			DefaultPenaltyPoints int  `json:"default_penalty_points"`
			ExcludeWeekends      bool `json:"exclude_weekends"`
			Enabled              bool `json:"enabled"`
		} `json:"settings"`
	}
	decode(t, rec, &got)
	if got.Settings.DefaultPenaltyPoints != 8 || !got.Settings.ExcludeWeekends || !got.Settings.Enabled {
		t.Errorf("settings = %s", rec.Body.String())
	}
}

func TestCompleteIsRateLimited(t *testing.T) {
	env := newTestEnv(t, PerMinute(2, 10))
	tok := env.token(t, uuid.New())
	path := "/api/chores/" + uuid.NewString() + "/complete"

	for i := 0; i < 2; i++ {
		rec := env.do(t, "POST", path, tok, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("request %d = %d, want 404", i, rec.Code)
		}
	}
	rec := env.do(t, "POST", path, tok, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestSpaceStreamAcceptsBrowserTokens(t *testing.T) {
	env := newTestEnv(t, PerMinute(30, 10))
	ownerTok := env.token(t, uuid.New())
	strangerTok := env.token(t, uuid.New())

	rec := env.do(t, "POST", "/api/spaces", ownerTok, map[string]any{"name": "Home"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create space = %d %s", rec.Code, rec.Body.String())
	}
	var sp struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, rec, &sp)

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/spaces/" + sp.ID.String() + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	t.Run("query parameter", func(t *testing.T) {
		conn, _, err := cws.Dial(ctx, url+"?token="+ownerTok, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		conn.Close(cws.StatusNormalClosure, "")
	})

	t.Run("subprotocol", func(t *testing.T) {
		conn, _, err := cws.Dial(ctx, url, &cws.DialOptions{Subprotocols: []string{"bearer", ownerTok}})
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close(cws.StatusNormalClosure, "")
		if got := conn.Subprotocol(); got != ws.BearerSubprotocol {
			t.Errorf("subprotocol = %q, want %q", got, ws.BearerSubprotocol)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		_, resp, err := cws.Dial(ctx, url, nil)
		if err == nil {
			t.Fatal("expected dial to fail")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("response = %v, want 401", resp)
		}
	})

	t.Run("non-member", func(t *testing.T) {
		_, resp, err := cws.Dial(ctx, url+"?token="+strangerTok, nil)
		if err == nil {
			t.Fatal("expected dial to fail")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("response = %v, want 403", resp)
		}
	})
}

func TestQueryTokenOnlyAcceptedForStream(t *testing.T) {
	env := newTestEnv(t, PerMinute(30, 10))
	tok := env.token(t, uuid.New())
	rec := env.do(t, "GET", "/api/spaces?token="+tok, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
