// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/websocket"
)

const overdueBatchSize = 100

type OverdueChores interface {
	ListUnnotifiedOverdue(ctx context.Context, now time.Time, limit int) ([]model.Chore, error)
	MarkOverdueNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type ActivityRecorder interface {
	Record(ctx context.Context, e model.ActivityEntry) error
}

type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// Cleaner drops idle state, such as per-client rate limit buckets.
type Cleaner interface {
	Cleanup()
}

type Scheduler struct {
	cron     *cron.Cron
	chores   OverdueChores
	activity ActivityRecorder
	hub      Broadcaster
	cleaners []Cleaner
	logger   *slog.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func New(chores OverdueChores, activity ActivityRecorder, hub Broadcaster, logger *slog.Logger, cleaners ...Cleaner) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		chores:   chores,
		activity: activity,
		hub:      hub,
		cleaners: cleaners,
		logger:   logger,
		Clock:    time.Now,
	}
}

// Start registers the jobs and starts the cron loop. overdueSpec is a cron
// expression or descriptor such as "@hourly".
func (s *Scheduler) Start(ctx context.Context, overdueSpec string) error {
	if _, err := s.cron.AddFunc(overdueSpec, func() { s.run(ctx, "overdue_sweep", s.SweepOverdue) }); err != nil {
		return fmt.Errorf("schedule overdue sweep %q: %w", overdueSpec, err)
	}
	if len(s.cleaners) > 0 {
		if _, err := s.cron.AddFunc("@every 1m", func() {
			s.run(ctx, "limiter_cleanup", func(context.Context) error {
				for _, c := range s.cleaners {
					c.Cleanup()
				}
				return nil
			})
		}); err != nil {
			return fmt.Errorf("schedule limiter cleanup: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "overdue_spec", overdueSpec, "jobs", len(s.cron.Entries()))
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run(ctx context.Context, job string, fn func(context.Context) error) {
	start := time.Now()
	err := fn(ctx)
	metrics.RecordJobRun(job, time.Since(start), err == nil)
	if err != nil {
		s.logger.Error("scheduled job failed", "job", job, "error", err)
	}
}

// SweepOverdue announces chores that became overdue since the last sweep.
// Each chore is announced once.
func (s *Scheduler) SweepOverdue(ctx context.Context) error {
	now := s.Clock().UTC().Truncate(time.Second)
	chores, err := s.chores.ListUnnotifiedOverdue(ctx, now, overdueBatchSize)
	if err != nil {
		return fmt.Errorf("list overdue chores: %w", err)
	}

	var announced int
	for _, c := range chores {
		ok, err := s.chores.MarkOverdueNotified(ctx, c.ID, now)
		if err != nil {
			s.logger.Warn("mark chore overdue", "chore_id", c.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		announced++

		extra := map[string]any{"title": c.Title, "due_date": c.DueDate}
		if c.AssignedTo != nil {
			extra["assigned_to"] = c.AssignedTo.String()
		}
		s.hub.Broadcast(websocket.NewMessage(c.SpaceID, "chore", "overdue", c.ID, extra))

		if err := s.activity.Record(ctx, model.ActivityEntry{
			SpaceID:    c.SpaceID,
			Action:     "chore_overdue",
			EntityType: "chore",
			EntityID:   c.ID,
			Details:    map[string]any{"title": c.Title},
			CreatedAt:  now,
		}); err != nil {
			s.logger.Warn("record overdue activity", "chore_id", c.ID, "error", err)
		}
	}

	if announced > 0 {
		s.logger.Info("overdue chores announced", "count", announced)
	}
	return nil
}
