package penalty

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukerupert/hearth/internal/apperr"
	"github.com/dukerupert/hearth/internal/chore"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

var tracer = otel.Tracer("github.com/dukerupert/hearth/internal/penalty")

// ApplyRequest identifies a completion to check for lateness.
type ApplyRequest struct {
	ChoreID     uuid.UUID
	UserID      uuid.UUID
	SpaceID     uuid.UUID
	CompletedAt time.Time
}

// ApplyResult reports the penalty recorded; Success is false when none was due.
type ApplyResult struct {
	Success        bool `json:"success"`
	PointsDeducted int  `json:"pointsDeducted"`
	DaysLate       int  `json:"daysLate"`
}

// ForgiveRequest names a penalty to refund and who is forgiving it.
type ForgiveRequest struct {
	PenaltyID  uuid.UUID
	ForgivenBy uuid.UUID
	Reason     *string
}

// ForgiveResult reports the points returned to the user.
type ForgiveResult struct {
	Success        bool `json:"success"`
	PointsRefunded int  `json:"pointsRefunded"`
}

// Service records late penalties and their forgiveness against the points
// ledger.
type Service struct {
	db        *sql.DB
	chores    *store.ChoreStore
	penalties *store.PenaltyStore
	points    *store.PointsStore
	settings  *Resolver
	logger   *slog.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func NewService(db *sql.DB, settings *Resolver, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		chores:    store.NewChoreStore(db),
		penalties: store.NewPenaltyStore(db),
		points:    store.NewPointsStore(db),
		settings:  settings,
		logger:    logger,
		Clock:     time.Now,
	}
}

func (s *Service) now() time.Time {
	return s.Clock().UTC().Truncate(time.Second)
}

// ApplyLatePenalty recalculates the penalty for a completion with the
// space's current settings and, when late, records it. A second call for
// the same chore and user returns a Conflict and changes nothing.
func (s *Service) ApplyLatePenalty(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "penalty.apply", trace.WithAttributes(
		attribute.String("chore.id", req.ChoreID.String()),
		attribute.String("space.id", req.SpaceID.String()),
	))
	defer span.End()

	c, err := s.chores.GetByID(ctx, req.ChoreID)
	if err != nil {
		return ApplyResult{}, spanError(span, err)
	}
	if c == nil || c.SpaceID != req.SpaceID {
		return ApplyResult{}, spanError(span, apperr.NotFound("chore not found"))
	}

	settings, err := s.settings.Get(ctx, req.SpaceID)
	if err != nil {
		return ApplyResult{}, spanError(span, err)
	}

	res := Calculate(c.DueDate, req.CompletedAt, settings, OverridesFor(*c))
	span.SetAttributes(attribute.Bool("penalty.late", res.IsLate), attribute.Int("penalty.points", res.PenaltyPoints))
	if !res.IsLate || res.PenaltyPoints == 0 {
		return ApplyResult{DaysLate: res.DaysLate}, nil
	}

	at := s.now()
	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		penalties := s.penalties.WithTx(tx)
		points := s.points.WithTx(tx)

		inserted, err := penalties.Insert(ctx, &model.LatePenalty{
			ChoreID:        req.ChoreID,
			UserID:         req.UserID,
			SpaceID:        req.SpaceID,
			PointsDeducted: res.PenaltyPoints,
			DaysLate:       res.DaysLate,
			CreatedAt:      at,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return apperr.Conflict("late penalty already applied")
		}

		if _, err := points.InsertTransaction(ctx, &model.PointTransaction{
			UserID:      req.UserID,
			SpaceID:     req.SpaceID,
			ChoreID:     req.ChoreID,
			Kind:        model.TransactionLatePenalty,
			Points:      -res.PenaltyPoints,
			Description: fmt.Sprintf("Late: %s (%d days)", c.Title, res.DaysLate),
			CreatedAt:   at,
		}); err != nil {
			return err
		}
		return points.AdjustTotal(ctx, req.UserID, req.SpaceID, -res.PenaltyPoints, at)
	})
	if err != nil {
		return ApplyResult{}, spanError(span, err)
	}

	metrics.RecordPenaltyApplied(res.PenaltyPoints)
	s.logger.Info("late penalty applied",
		"chore_id", req.ChoreID,
		"user_id", req.UserID,
		"points", res.PenaltyPoints,
		"days_late", res.DaysLate,
	)
	return ApplyResult{Success: true, PointsDeducted: res.PenaltyPoints, DaysLate: res.DaysLate}, nil
}

// ForgivePenalty refunds a penalty and marks it forgiven. The caller must
// have checked that the requester is an owner or admin of the space.
func (s *Service) ForgivePenalty(ctx context.Context, req ForgiveRequest) (ForgiveResult, error) {
	ctx, span := tracer.Start(ctx, "penalty.forgive", trace.WithAttributes(
		attribute.String("penalty.id", req.PenaltyID.String()),
	))
	defer span.End()

	p, err := s.penalties.GetByID(ctx, req.PenaltyID)
	if err != nil {
		return ForgiveResult{}, spanError(span, err)
	}
	if p == nil {
		return ForgiveResult{}, spanError(span, apperr.NotFound("penalty not found"))
	}
	if p.IsForgiven {
		return ForgiveResult{}, spanError(span, apperr.Conflict("penalty already forgiven"))
	}

	settings, err := s.settings.Get(ctx, p.SpaceID)
	if err != nil {
		return ForgiveResult{}, spanError(span, err)
	}
	if !settings.ForgivenessAllowed {
		return ForgiveResult{}, spanError(span, apperr.Validation("penalty forgiveness is disabled for this space", nil))
	}

	at := s.now()
	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		penalties := s.penalties.WithTx(tx)
		points := s.points.WithTx(tx)

		ok, err := penalties.MarkForgiven(ctx, p.ID, req.ForgivenBy, req.Reason, at)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("penalty already forgiven")
		}

		if _, err := points.InsertTransaction(ctx, &model.PointTransaction{
			UserID:      p.UserID,
			SpaceID:     p.SpaceID,
			ChoreID:     p.ChoreID,
			Kind:        model.TransactionPenaltyRefund,
			Points:      p.PointsDeducted,
			Description: "Penalty forgiven",
			CreatedAt:   at,
		}); err != nil {
			return err
		}
		return points.AdjustTotal(ctx, p.UserID, p.SpaceID, p.PointsDeducted, at)
	})
	if err != nil {
		return ForgiveResult{}, spanError(span, err)
	}

	metrics.RecordPenaltyForgiven(p.PointsDeducted)
	s.logger.Info("late penalty forgiven",
		"penalty_id", p.ID,
		"forgiven_by", req.ForgivenBy,
		"points", p.PointsDeducted,
	)
	return ForgiveResult{Success: true, PointsRefunded: p.PointsDeducted}, nil
}

// Get returns a single penalty or nil.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.LatePenalty, error) {
	return s.penalties.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f store.PenaltyFilter) ([]model.LatePenalty, error) {
	penalties, err := s.penalties.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if penalties == nil {
		penalties = []model.LatePenalty{}
	}
	return penalties, nil
}

// Periods accepted by Stats.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"
)

// Stats aggregates a space's penalties over a trailing period. An empty
// period means month.
func (s *Service) Stats(ctx context.Context, spaceID uuid.UUID, period string) (*model.PenaltyStats, error) {
	if period == "" {
		period = PeriodMonth
	}

	now := s.now()
	var since *time.Time
	switch period {
	case PeriodWeek:
		t := now.AddDate(0, 0, -7)
		since = &t
	case PeriodMonth:
		t := now.AddDate(0, -1, 0)
		since = &t
	case PeriodYear:
		t := now.AddDate(-1, 0, 0)
		since = &t
	case PeriodAll:
	default:
		return nil, apperr.Validation("invalid period", map[string]string{
			"period": "must be one of week, month, year, all",
		})
	}

	stats, err := s.penalties.Stats(ctx, spaceID, since)
	if err != nil {
		return nil, err
	}
	stats.Period = period
	return stats, nil
}

// Overdue lists the space's incomplete chores past due with the penalty
// each would incur if completed now.
func (s *Service) Overdue(ctx context.Context, spaceID uuid.UUID) ([]model.OverdueChore, error) {
	now := s.now()
	chores, err := s.chores.ListOverdue(ctx, spaceID, now)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	overdue := make([]model.OverdueChore, 0, len(chores))
	for _, c := range chores {
		if !chore.IsOverdue(c, now) {
			continue
		}
		item := model.OverdueChore{Chore: c, DaysLate: DaysLate(*c.DueDate, now, settings.ExcludeWeekends)}
		if chore.PenaltyEligible(c) {
			res := Calculate(c.DueDate, now, settings, OverridesFor(c))
			item.ProjectedPenalty = res.PenaltyPoints
			item.InGracePeriod = settings.Enabled && !res.IsLate
		}
		overdue = append(overdue, item)
	}
	return overdue, nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
