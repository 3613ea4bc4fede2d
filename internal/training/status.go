package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/myrjola/ironbrain/internal/ironbrain"
	"github.com/myrjola/ironbrain/internal/observability"
)

// TaskStatus is a recovery task relevant for a day and whether it was ticked off.
type TaskStatus struct {
	Task ironbrain.RecoveryTask
	Done bool
}

// Status is the coaching dashboard for one date.
type Status struct {
	Date      time.Time
	Phase     ironbrain.Phase
	Metrics   ironbrain.PerformanceMetrics
	Readiness ironbrain.ReadinessStatus
	// Sleep and Wellness are nil when nothing was logged for the date.
	Sleep     *ironbrain.SleepLog
	Wellness  *ironbrain.DailyWellnessLog
	Completed []ironbrain.WorkoutLog
	Plans     []ironbrain.ScheduleFinding
	// Nutrition is zero when the athlete's weight is unknown.
	Nutrition ironbrain.Macros
	Tasks     []TaskStatus
}

// Status computes load, phase, readiness, plan warnings, nutrition targets and recovery tasks for date.
func (s *Service) Status(ctx context.Context, date time.Time) (Status, error) {
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var (
		a        Athlete
		history  []ironbrain.WorkoutLog
		wellness []ironbrain.DailyWellnessLog
		sleep    *ironbrain.SleepLog
		findings []ironbrain.ScheduleFinding
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = s.Athlete(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		if history, err = s.repo.workouts.List(gctx, time.Time{}, date); err != nil {
			return fmt.Errorf("list workouts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if wellness, err = s.repo.wellness.List(gctx, date, date); err != nil {
			return fmt.Errorf("list wellness: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		l, err := s.repo.sleep.Get(gctx, date)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get sleep: %w", err)
		}
		sleep = &l
		return nil
	})
	g.Go(func() error {
		var err error
		findings, err = s.ValidatePlans(gctx, date, date)
		return err
	})
	if err := g.Wait(); err != nil {
		return Status{}, err //nolint:wrapcheck // wrapped inside the group.
	}

	st := Status{
		Date:      date,
		Phase:     ironbrain.PhaseBase,
		Metrics:   ironbrain.MetricsAt(history, date),
		Readiness: ironbrain.ReadinessStatus{},
		Sleep:     sleep,
		Wellness:  nil,
		Completed: nil,
		Plans:     findings,
		Nutrition: ironbrain.Macros{},
		Tasks:     nil,
	}
	if len(wellness) > 0 {
		st.Wellness = &wellness[0]
	}
	for _, l := range history {
		if l.Date.Equal(date) {
			st.Completed = append(st.Completed, l)
		}
	}

	var (
		goal   *time.Time
		weight float64
	)
	if a.Profile != nil {
		goal = a.Profile.GoalDate
		weight = a.Profile.WeightKg
	}
	st.Phase = ironbrain.ClassifyPhase(date, goal)

	in := ironbrain.ReadinessInput{
		TSB:        int(math.Round(st.Metrics.TSB)),
		SleepScore: nil,
		Soreness:   nil,
		Mood:       nil,
		Allergy:    ironbrain.AllergyNone,
	}
	if sleep != nil {
		in.SleepScore = &sleep.Score
	}
	if st.Wellness != nil {
		in.Soreness = st.Wellness.Soreness
		in.Mood = st.Wellness.Mood
		in.Allergy = st.Wellness.Allergy
		if st.Wellness.MorningWeightKg != nil {
			weight = *st.Wellness.MorningWeightKg
		}
	}
	st.Readiness = ironbrain.ScoreReadiness(in)

	day := ironbrain.AggregateDay(dayActivities(st.Completed, findings))
	st.Nutrition = ironbrain.NutritionTargets(weight, day.TSS)
	var done []string
	if st.Wellness != nil {
		done = st.Wellness.CompletedTaskIDs
	}
	for _, t := range ironbrain.RelevantTasks(a.Tasks, day) {
		st.Tasks = append(st.Tasks, TaskStatus{Task: t, Done: slices.Contains(done, t.ID)})
	}

	observability.RecordStatus(st.Metrics, st.Readiness.Score)
	s.logger.LogAttrs(ctx, slog.LevelDebug, "computed status",
		slog.String("date", formatDate(date)), slog.String("phase", string(st.Phase)),
		slog.Int("readiness", st.Readiness.Score))
	return st, nil
}

// dayActivities prefers what was done over what was planned.
func dayActivities(completed []ironbrain.WorkoutLog, findings []ironbrain.ScheduleFinding) []ironbrain.Activity {
	activities := make([]ironbrain.Activity, 0, max(len(completed), len(findings)))
	if len(completed) > 0 {
		for _, l := range completed {
			activities = append(activities, l.Activity())
		}
		return activities
	}
	for _, f := range findings {
		activities = append(activities, f.Plan.Activity())
	}
	return activities
}
