// Package penalty decides whether a chore completion is late, how many
// points it costs, and records or reverses those deductions.
package penalty

import (
	"math"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

const day = 24 * time.Hour

// Overrides are per-chore values that take precedence over space settings.
type Overrides struct {
	PenaltyPoints    *int
	GracePeriodHours *int
}

// OverridesFor extracts the penalty overrides configured on a chore.
func OverridesFor(c model.Chore) Overrides {
	return Overrides{PenaltyPoints: c.LatePenaltyPoints, GracePeriodHours: c.GracePeriodHours}
}

type Result struct {
	IsLate        bool `json:"isLate"`
	DaysLate      int  `json:"daysLate"`
	PenaltyPoints int  `json:"penaltyPoints"`
}

// Calculate reports whether completedAt misses the grace-adjusted due date
// and the penalty owed. It is pure: the same inputs always give the same
// result.
func Calculate(dueDate *time.Time, completedAt time.Time, s model.PenaltySettings, o Overrides) Result {
	if !s.Enabled || dueDate == nil {
		return Result{}
	}
	due := *dueDate

	graceHours := s.DefaultGracePeriodHours
	if o.GracePeriodHours != nil {
		graceHours = *o.GracePeriodHours
	}
	deadline := due.Add(time.Duration(graceHours) * time.Hour)
	if !completedAt.After(deadline) {
		return Result{}
	}

	daysLate := DaysLate(due, completedAt, s.ExcludeWeekends)

	base := s.DefaultPenaltyPoints
	if o.PenaltyPoints != nil {
		base = *o.PenaltyPoints
	}

	points := base
	if s.ProgressivePenalty {
		mult := s.PenaltyMultiplierPerDay
		if mult <= 0 {
			mult = 1
		}
		days := min(daysLate, progressiveCap(base, mult, s.MaxPenaltyPerChore))
		points = int(math.Round(float64(base) * float64(days) * mult))
	}

	return Result{
		IsLate:        true,
		DaysLate:      daysLate,
		PenaltyPoints: clamp(points, 0, max(s.MaxPenaltyPerChore, 0)),
	}
}

// DaysLate counts started days between due and completedAt, at least 1.
// With excludeWeekends, time falling on Saturday or Sunday in due's
// location is not counted.
func DaysLate(due, completedAt time.Time, excludeWeekends bool) int {
	elapsed := completedAt.Sub(due)
	if excludeWeekends {
		elapsed -= weekendOverlap(due, completedAt)
	}
	days := int(math.Ceil(elapsed.Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// weekendOverlap returns how much of [start, end) falls on a weekend.
func weekendOverlap(start, end time.Time) time.Duration {
	var total time.Duration
	loc := start.Location()
	cursor := start
	for cursor.Before(end) {
		local := cursor.In(loc)
		next := startOfDay(local).AddDate(0, 0, 1)
		segEnd := end
		if next.Before(end) {
			segEnd = next
		}
		if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
			total += segEnd.Sub(cursor)
		}
		cursor = segEnd
	}
	return total
}

// progressiveCap bounds the day multiplier so the raw product cannot run
// far past the maximum before clamping.
func progressiveCap(base int, mult float64, maxPenalty int) int {
	perDay := float64(base) * mult
	if perDay <= 0 || maxPenalty <= 0 {
		return 1
	}
	c := int(math.Ceil(float64(maxPenalty) / perDay))
	if c < 1 {
		return 1
	}
	return c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
