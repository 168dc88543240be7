package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-redis/redis_rate/v10"

	"github.com/dukerupert/hearth/internal/background"
	"github.com/dukerupert/hearth/internal/completion"
	"github.com/dukerupert/hearth/internal/handler"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/middleware"
	"github.com/dukerupert/hearth/internal/penalty"
	"github.com/dukerupert/hearth/internal/reward"
	"github.com/dukerupert/hearth/internal/store"
	ws "github.com/dukerupert/hearth/internal/websocket"
)

// Limits are the per-user request budgets for the write-heavy endpoints.
type Limits struct {
	Complete redis_rate.Limit
	Forgive  redis_rate.Limit
}

// PerMinute builds Limits from requests-per-minute values.
func PerMinute(complete, forgive int) Limits {
	return Limits{
		Complete: redis_rate.PerMinute(complete),
		Forgive:  redis_rate.PerMinute(forgive),
	}
}

type Server struct {
	spaceH   *handler.SpaceHandler
	choreH   *handler.ChoreHandler
	penaltyH *handler.PenaltyHandler
	healthH  *handler.HealthHandler
	verifier middleware.TokenVerifier
	limiter  middleware.Limiter
	limits   Limits
	logger   *slog.Logger
}

func New(db *sql.DB, hub *ws.Hub, runner *background.Runner, settings *penalty.Resolver, verifier middleware.TokenVerifier, limiter middleware.Limiter, limits Limits, logger *slog.Logger) *Server {
	spaceStore := store.NewSpaceStore(db)
	choreStore := store.NewChoreStore(db)
	pointsStore := store.NewPointsStore(db)
	activityStore := store.NewActivityStore(db)

	penalties := penalty.NewService(db, settings, logger.With("component", "penalty"))
	awarder := reward.NewAwarder(db, reward.DefaultPolicy(), logger.With("component", "reward"))
	orch := completion.NewOrchestrator(choreStore, spaceStore, awarder, penalties, logger.With("component", "completion"))

	publisher := handler.NewPublisher(runner, activityStore, hub, logger.With("component", "publisher"))

	return &Server{
		spaceH:   handler.NewSpaceHandler(spaceStore, pointsStore, activityStore, hub, logger.With("component", "space")),
		choreH:   handler.NewChoreHandler(choreStore, spaceStore, orch, publisher, logger.With("component", "chore")),
		penaltyH: handler.NewPenaltyHandler(penalties, settings, spaceStore, publisher, logger.With("component", "penalty_handler")),
		healthH:  handler.NewHealthHandler(db, logger.With("component", "health")),
		verifier: verifier,
		limiter:  limiter,
		limits:   limits,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthH.Health)
	outerMux.Handle("GET /metrics", metrics.Handler())

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/api/", middleware.RequireAuth(s.verifier)(protectedMux))

	// Browsers cannot send an Authorization header on the upgrade.
	outerMux.Handle("GET /api/spaces/{id}/ws", middleware.RequireStreamAuth(s.verifier)(http.HandlerFunc(s.spaceH.Stream)))

	logged := middleware.RequestLogger(s.logger.With("component", "http"), "/health", "/metrics")(outerMux)
	return metrics.InstrumentHandler(logged)
}

func (s *Server) rateLimited(name string, limit redis_rate.Limit, h http.HandlerFunc) http.Handler {
	rl := middleware.RateLimit(s.limiter, name, limit, middleware.UserOrIP, s.logger.With("component", "ratelimit"))
	return rl(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Spaces
	mux.HandleFunc("POST /api/spaces", s.spaceH.Create)
	mux.HandleFunc("GET /api/spaces", s.spaceH.List)
	mux.HandleFunc("GET /api/spaces/{id}/members", s.spaceH.ListMembers)
	mux.HandleFunc("POST /api/spaces/{id}/members", s.spaceH.AddMember)
	mux.HandleFunc("GET /api/spaces/{id}/points", s.spaceH.Leaderboard)
	mux.HandleFunc("GET /api/spaces/{id}/points/{userId}", s.spaceH.Balance)
	mux.HandleFunc("GET /api/spaces/{id}/points/{userId}/transactions", s.spaceH.Transactions)
	mux.HandleFunc("GET /api/spaces/{id}/activity", s.spaceH.Activity)

	// Chores
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PATCH /api/chores/{id}/status", s.choreH.UpdateStatus)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.Handle("POST /api/chores/{id}/complete", s.rateLimited("complete", s.limits.Complete, s.choreH.Complete))

	// Penalties
	mux.HandleFunc("GET /api/penalties", s.penaltyH.List)
	mux.HandleFunc("GET /api/penalties/settings", s.penaltyH.GetSettings)
	mux.HandleFunc("PUT /api/penalties/settings", s.penaltyH.UpdateSettings)
	mux.Handle("POST /api/penalties/forgive", s.rateLimited("forgive", s.limits.Forgive, s.penaltyH.Forgive))
}

// HTTPServer returns an http.Server for the router with conservative
// timeouts. Websocket connections are long lived so there is no write
// timeout.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
