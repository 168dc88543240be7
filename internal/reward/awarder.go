// Package reward credits points for completed chores and tracks daily
// completion streaks.
package reward

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

	"github.com/dukerupert/hearth/internal/apperr"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
)

const dateLayout = "2006-01-02"

var tracer = otel.Tracer("github.com/dukerupert/hearth/internal/reward")

type AwardRequest struct {
	UserID      uuid.UUID
	SpaceID     uuid.UUID
	ChoreID     uuid.UUID
	ChoreTitle  string
	BasePoints  int
	CompletedAt time.Time
}

type Result struct {
	PointsAwarded int `json:"pointsAwarded"`
	StreakBonus   int `json:"streakBonus"`
	NewStreak     int `json:"newStreak"`
}

type Awarder struct {
	db     *sql.DB
	points *store.PointsStore
	policy StreakPolicy
	logger *slog.Logger
}

func NewAwarder(db *sql.DB, policy StreakPolicy, logger *slog.Logger) *Awarder {
	return &Awarder{db: db, points: store.NewPointsStore(db), policy: policy, logger: logger}
}

// AwardPoints credits base points plus any streak bonus in one
// transaction. Points for a chore are awarded to a user at most once; a
// repeat returns a Conflict and leaves the balance untouched.
func (a *Awarder) AwardPoints(ctx context.Context, req AwardRequest) (Result, error) {
	ctx, span := tracer.Start(ctx, "reward.award")
	defer span.End()
	span.SetAttributes(
		attribute.String("chore.id", req.ChoreID.String()),
		attribute.Int("points.base", req.BasePoints),
	)

	at := req.CompletedAt.UTC()
	var res Result
	err := store.InTx(ctx, a.db, func(tx *sql.Tx) error {
		points := a.points.WithTx(tx)

		inserted, err := points.InsertTransaction(ctx, &model.PointTransaction{
			UserID:      req.UserID,
			SpaceID:     req.SpaceID,
			ChoreID:     req.ChoreID,
			Kind:        model.TransactionChoreCompletion,
			Points:      req.BasePoints,
			Description: "Completed: " + req.ChoreTitle,
			CreatedAt:   at,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return apperr.Conflict("points already awarded for this chore")
		}

		balance, err := points.GetBalance(ctx, req.UserID, req.SpaceID)
		if err != nil {
			return err
		}
		if balance == nil {
			balance = &model.PointBalance{UserID: req.UserID, SpaceID: req.SpaceID}
		}

		streak, extended := NextStreak(balance.LastCompletionDate, balance.CurrentStreak, at)
		bonus := 0
		if extended {
			bonus = a.policy.Bonus(streak)
		}

		if bonus > 0 {
			if _, err := points.InsertTransaction(ctx, &model.PointTransaction{
				UserID:      req.UserID,
				SpaceID:     req.SpaceID,
				ChoreID:     req.ChoreID,
				Kind:        model.TransactionStreakBonus,
				Points:      bonus,
				Description: fmt.Sprintf("%d day streak", streak),
				CreatedAt:   at,
			}); err != nil {
				return err
			}
		}

		balance.TotalPoints += req.BasePoints + bonus
		balance.CurrentStreak = streak
		balance.LongestStreak = max(balance.LongestStreak, streak)
		balance.LastCompletionDate = at.Format(dateLayout)
		balance.UpdatedAt = at
		if err := points.SaveBalance(ctx, balance); err != nil {
			return err
		}

		res = Result{PointsAwarded: req.BasePoints + bonus, StreakBonus: bonus, NewStreak: streak}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	metrics.RecordPointsAwarded(req.BasePoints, res.StreakBonus)
	a.logger.Debug("points awarded",
		"chore_id", req.ChoreID,
		"user_id", req.UserID,
		"points", res.PointsAwarded,
		"streak", res.NewStreak,
	)
	return res, nil
}

// NextStreak computes the streak after a completion at t given the last
// completion date (YYYY-MM-DD, UTC). extended is false when the user
// already completed something that day, in which case the streak is kept
// and no bonus applies.
func NextStreak(lastDate string, current int, t time.Time) (streak int, extended bool) {
	today := t.UTC().Format(dateLayout)
	if lastDate == "" {
		return 1, true
	}
	if lastDate == today {
		return max(current, 1), false
	}
	if lastDate == t.UTC().AddDate(0, 0, -1).Format(dateLayout) {
		return current + 1, true
	}
	return 1, true
}
