// Package completion sequences a chore completion: the status change,
// the reward, and any late penalty.
package completion

import (
	"context"
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
	"github.com/dukerupert/hearth/internal/penalty"
	"github.com/dukerupert/hearth/internal/reward"
)

var tracer = otel.Tracer("github.com/dukerupert/hearth/internal/completion")

// ChoreRepository loads chores and records their completion.
type ChoreRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Chore, error)
	MarkCompleted(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error)
}

// MembershipChecker looks up a user's membership in a space.
type MembershipChecker interface {
	GetMember(ctx context.Context, spaceID, userID uuid.UUID) (*model.SpaceMember, error)
}

// Awarder credits points for a completion.
type Awarder interface {
	AwardPoints(ctx context.Context, req reward.AwardRequest) (reward.Result, error)
}

// PenaltyApplicator records a late penalty for a completion.
type PenaltyApplicator interface {
	ApplyLatePenalty(ctx context.Context, req penalty.ApplyRequest) (penalty.ApplyResult, error)
}

// PenaltyOutcome summarizes the late penalty applied, if any.
type PenaltyOutcome struct {
	Applied        bool `json:"applied"`
	PointsDeducted int  `json:"pointsDeducted"`
	DaysLate       int  `json:"daysLate"`
}

// Result is the outcome of a completion, with NetPoints the reward minus the penalty.
type Result struct {
	Success   bool           `json:"success"`
	Chore     model.Chore    `json:"chore"`
	Rewards   reward.Result  `json:"rewards"`
	Penalty   PenaltyOutcome `json:"penalty"`
	NetPoints int            `json:"netPoints"`
}

// Orchestrator sequences a completion across the chore store, rewards and penalties.
type Orchestrator struct {
	chores    ChoreRepository
	members   MembershipChecker
	awarder   Awarder
	penalties PenaltyApplicator
	logger    *slog.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func NewOrchestrator(chores ChoreRepository, members MembershipChecker, awarder Awarder, penalties PenaltyApplicator, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		chores:    chores,
		members:   members,
		awarder:   awarder,
		penalties: penalties,
		logger:    logger,
		Clock:     time.Now,
	}
}

// CompleteChore marks the chore completed by userID and then awards points
// and applies any late penalty. Only lookup, membership and the
// already-completed check fail the request; once the status change is
// stored, reward and penalty failures are logged and reported as zero.
func (o *Orchestrator) CompleteChore(ctx context.Context, choreID, userID uuid.UUID) (*Result, error) {
	ctx, span := tracer.Start(ctx, "completion.complete", trace.WithAttributes(
		attribute.String("chore.id", choreID.String()),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	res, err := o.complete(ctx, span, choreID, userID)
	metrics.RecordCompletion(outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) complete(ctx context.Context, span trace.Span, choreID, userID uuid.UUID) (*Result, error) {
	c, err := o.chores.GetByID(ctx, choreID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("chore not found")
	}
	span.SetAttributes(attribute.String("space.id", c.SpaceID.String()))

	m, err := o.members.GetMember(ctx, c.SpaceID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.Forbidden("not a member of this space")
	}

	if c.Status == model.ChoreStatusCompleted {
		return nil, apperr.Conflict("chore is already completed")
	}

	at := o.Clock().UTC().Truncate(time.Second)
	won, err := o.chores.MarkCompleted(ctx, c.ID, userID, at)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperr.Conflict("chore is already completed")
	}
	c.Status = model.ChoreStatusCompleted
	c.CompletedAt = &at
	c.CompletedBy = &userID
	c.UpdatedAt = at

	res := &Result{Success: true, Chore: *c}
	res.Rewards = o.award(ctx, c, userID, at)
	if chore.PenaltyEligible(*c) {
		res.Penalty = o.applyPenalty(ctx, c, userID, at)
	}
	res.NetPoints = res.Rewards.PointsAwarded - res.Penalty.PointsDeducted

	o.logger.Info("chore completed",
		"chore_id", c.ID,
		"user_id", userID,
		"points_awarded", res.Rewards.PointsAwarded,
		"points_deducted", res.Penalty.PointsDeducted,
	)
	return res, nil
}

func (o *Orchestrator) award(ctx context.Context, c *model.Chore, userID uuid.UUID, at time.Time) reward.Result {
	r, err := o.awarder.AwardPoints(ctx, reward.AwardRequest{
		UserID:      userID,
		SpaceID:     c.SpaceID,
		ChoreID:     c.ID,
		ChoreTitle:  c.Title,
		BasePoints:  c.PointValue,
		CompletedAt: at,
	})
	if err != nil {
		metrics.RecordDegraded("award")
		o.logger.Error("award points failed",
			"chore_id", c.ID,
			"user_id", userID,
			"error", err,
		)
		return reward.Result{}
	}
	return r
}

func (o *Orchestrator) applyPenalty(ctx context.Context, c *model.Chore, userID uuid.UUID, at time.Time) PenaltyOutcome {
	r, err := o.penalties.ApplyLatePenalty(ctx, penalty.ApplyRequest{
		ChoreID:     c.ID,
		UserID:      userID,
		SpaceID:     c.SpaceID,
		CompletedAt: at,
	})
	if err != nil {
		metrics.RecordDegraded("penalty")
		o.logger.Error("apply late penalty failed",
			"chore_id", c.ID,
			"user_id", userID,
			"error", err,
		)
		return PenaltyOutcome{}
	}
	return PenaltyOutcome{Applied: r.Success, PointsDeducted: r.PointsDeducted, DaysLate: r.DaysLate}
}

func outcome(err error) string {
	if err == nil {
		return "completed"
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindForbidden:
		return "forbidden"
	case apperr.KindConflict:
		return "conflict"
	}
	return "error"
}
