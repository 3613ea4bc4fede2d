package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/myrjola/ironbrain/internal/ironbrain"
	"github.com/myrjola/ironbrain/internal/logging"
	"github.com/myrjola/ironbrain/internal/observability"
	"github.com/myrjola/ironbrain/internal/sqlite"
)

// ErrInvalidInput wraps validation failures of service input.
var ErrInvalidInput = errors.New("invalid input")

// historyWindowDays reaches two weeks past the trailing run window of the rules engine so the
// mechanical load rule can tell whether two full weeks of running exist.
const historyWindowDays = 28

// Service coordinates persistence and the coaching engine.
type Service struct {
	repo   *repository
	logger *slog.Logger
}

// NewService creates a new training service.
func NewService(db *sqlite.Database, logger *slog.Logger) *Service {
	factory := newRepositoryFactory(db, logger)
	return &Service{
		repo:   factory.newRepository(),
		logger: logger,
	}
}

// Athlete is the stored athlete configuration.
type Athlete struct {
	// Profile is nil until SaveAthlete has been called.
	Profile  *ironbrain.UserProfile
	Settings ironbrain.RuleSettings
	Tasks    []ironbrain.RecoveryTask
}

// Athlete loads the stored athlete configuration.
func (s *Service) Athlete(ctx context.Context) (Athlete, error) {
	var a Athlete
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if a.Profile, err = s.repo.athlete.Profile(gctx); err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if a.Settings, err = s.repo.athlete.Settings(gctx); err != nil {
			return fmt.Errorf("get rule settings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if a.Tasks, err = s.repo.athlete.Tasks(gctx); err != nil {
			return fmt.Errorf("get recovery tasks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Athlete{}, err //nolint:wrapcheck // wrapped inside the group.
	}
	return a, nil
}

// SaveAthlete validates and stores the profile, rule settings and recovery tasks.
func (s *Service) SaveAthlete(
	ctx context.Context,
	p ironbrain.UserProfile,
	settings ironbrain.RuleSettings,
	tasks []ironbrain.RecoveryTask,
) error {
	if err := validateAthlete(p, settings, tasks); err != nil {
		return err
	}
	if err := s.repo.athlete.Save(ctx, p, settings, tasks); err != nil {
		return fmt.Errorf("save athlete: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "saved athlete",
		slog.Int("strength_days", p.StrengthDays), slog.Int("recovery_tasks", len(tasks)))
	return nil
}

func validateAthlete(p ironbrain.UserProfile, settings ironbrain.RuleSettings, tasks []ironbrain.RecoveryTask) error {
	switch {
	case !p.Balance.Valid():
		return fmt.Errorf("%w: training balance %d/%d/%d must sum to 100",
			ErrInvalidInput, p.Balance.Swim, p.Balance.Bike, p.Balance.Run)
	case p.RampRate < ironbrain.MinRampRate || p.RampRate > ironbrain.MaxRampRate:
		return fmt.Errorf("%w: ramp rate %.3f outside %.2f-%.2f",
			ErrInvalidInput, p.RampRate, ironbrain.MinRampRate, ironbrain.MaxRampRate)
	case p.StrengthDays < 0 || p.StrengthDays > 7:
		return fmt.Errorf("%w: strength days %d outside 0-7", ErrInvalidInput, p.StrengthDays)
	case !ironbrain.ValidStrengthSpacing(settings.StrengthSpacingHours):
		return fmt.Errorf("%w: strength spacing %dh must be 24, 48 or 72",
			ErrInvalidInput, settings.StrengthSpacingHours)
	}
	for weekday, minutes := range p.Availability {
		if minutes < 0 {
			return fmt.Errorf("%w: negative availability on %s", ErrInvalidInput, time.Weekday(weekday))
		}
	}
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.ID == "" || seen[t.ID] {
			return fmt.Errorf("%w: recovery task id %q must be unique and non-empty", ErrInvalidInput, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// RecordWorkout stores a completed workout. A zero ComputedTSS is derived from the athlete's
// thresholds, and an empty ID gets a random one.
func (s *Service) RecordWorkout(ctx context.Context, l ironbrain.WorkoutLog) (ironbrain.WorkoutLog, error) {
	if l.Discipline == ironbrain.DisciplineNone || l.DurationMin < 0 || l.ComputedTSS < 0 {
		return ironbrain.WorkoutLog{}, fmt.Errorf("%w: workout needs a discipline and non-negative duration and TSS",
			ErrInvalidInput)
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.ComputedTSS == 0 {
		profile, err := s.repo.athlete.Profile(ctx)
		if err != nil {
			return ironbrain.WorkoutLog{}, fmt.Errorf("get profile: %w", err)
		}
		if profile == nil {
			profile = &ironbrain.UserProfile{} //nolint:exhaustruct // thresholds unknown, duration estimate.
		}
		l.ComputedTSS = ironbrain.ComputeTSS(l, *profile)
	}

	added, err := s.repo.workouts.Add(ctx, l)
	if err != nil {
		return ironbrain.WorkoutLog{}, fmt.Errorf("add workout: %w", err)
	}
	if added {
		observability.RecordWorkout(l.Discipline)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "recorded workout",
		slog.String("id", l.ID), slog.String("discipline", string(l.Discipline)),
		slog.Float64("tss", l.ComputedTSS), slog.Bool("new", added))
	return l, nil
}

// RecordWellness stores the subjective wellness of a day.
func (s *Service) RecordWellness(ctx context.Context, w ironbrain.DailyWellnessLog) error {
	for _, v := range []*int{w.Soreness, w.Mood} {
		if v != nil && (*v < 1 || *v > 10) {
			return fmt.Errorf("%w: soreness and mood must be within 1-10", ErrInvalidInput)
		}
	}
	if w.Allergy == "" {
		w.Allergy = ironbrain.AllergyNone
	}
	if err := s.repo.wellness.Set(ctx, w); err != nil {
		return fmt.Errorf("set wellness: %w", err)
	}
	return nil
}

// RecordSleep scores and stores a night of sleep. A score in the vendor note wins over the
// computed one.
func (s *Service) RecordSleep(ctx context.Context, l ironbrain.SleepLog) (ironbrain.SleepLog, error) {
	if l.DurationMin < 0 {
		return ironbrain.SleepLog{}, fmt.Errorf("%w: negative sleep duration", ErrInvalidInput)
	}
	l.Score = ironbrain.ScoreSleep(ironbrain.SleepInput{
		DurationMin:  l.DurationMin,
		DeepMin:      l.DeepMin,
		RemMin:       l.RemMin,
		LightMin:     l.LightMin,
		AwakeMin:     l.AwakeMin,
		TimeInBedMin: l.TimeInBedMin,
		VendorNote:   l.VendorNote,
	})
	if err := s.repo.sleep.Set(ctx, l); err != nil {
		return ironbrain.SleepLog{}, fmt.Errorf("set sleep: %w", err)
	}
	return l, nil
}

// AddSpecialPeriod stores an injury, holiday or recovery week period.
func (s *Service) AddSpecialPeriod(ctx context.Context, p ironbrain.SpecialPeriod) (ironbrain.SpecialPeriod, error) {
	switch p.Kind {
	case ironbrain.PeriodInjury, ironbrain.PeriodHoliday, ironbrain.PeriodRecoveryWeek:
	default:
		return ironbrain.SpecialPeriod{}, fmt.Errorf("%w: unknown period kind %q", ErrInvalidInput, p.Kind)
	}
	if p.End.Before(p.Start) {
		return ironbrain.SpecialPeriod{}, fmt.Errorf("%w: period ends before it starts", ErrInvalidInput)
	}
	id, err := s.repo.periods.Add(ctx, p)
	if err != nil {
		return ironbrain.SpecialPeriod{}, fmt.Errorf("add period: %w", err)
	}
	p.ID = id
	return p, nil
}

// DeleteSpecialPeriod removes a period by ID.
func (s *Service) DeleteSpecialPeriod(ctx context.Context, id int64) error {
	if err := s.repo.periods.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete period %d: %w", id, err)
	}
	return nil
}

// SpecialPeriods lists every stored period.
func (s *Service) SpecialPeriods(ctx context.Context) ([]ironbrain.SpecialPeriod, error) {
	periods, err := s.repo.periods.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// Plans lists the stored plans within the inclusive range.
func (s *Service) Plans(ctx context.Context, from, to time.Time) ([]ironbrain.TrainingPlan, error) {
	plans, err := s.repo.plans.List(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// GenerateSeason generates and stores a season of plans starting in the week of start. Invalid
// input is reported as an ironbrain.Failure with a nil error, and stored plans stay untouched.
func (s *Service) GenerateSeason(ctx context.Context, start time.Time, months int) (ironbrain.GenerationResult, error) {
	start = ironbrain.MondayOf(start)
	ctx = logging.WithAttrs(ctx, slog.String("season_start", formatDate(start)), slog.Int("months", months))

	var (
		profile  *ironbrain.UserProfile
		settings ironbrain.RuleSettings
		history  []ironbrain.WorkoutLog
		periods  []ironbrain.SpecialPeriod
	)
	dayBefore := start.AddDate(0, 0, -1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if profile, err = s.repo.athlete.Profile(gctx); err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if settings, err = s.repo.athlete.Settings(gctx); err != nil {
			return fmt.Errorf("get rule settings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if history, err = s.repo.workouts.List(gctx, time.Time{}, dayBefore); err != nil {
			return fmt.Errorf("list workouts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if periods, err = s.repo.periods.List(gctx); err != nil {
			return fmt.Errorf("list periods: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped inside the group.
	}

	req := ironbrain.SeasonRequest{
		StartDate:      start,
		CurrentCTL:     ironbrain.MetricsAt(history, dayBefore).CTL,
		Months:         months,
		RecentLogs:     recentLogs(history, start),
		Profile:        profile,
		Settings:       settings,
		Unavailable:    nil,
		ForcedRecovery: nil,
		Logger:         s.logger,
	}
	for _, p := range periods {
		r := ironbrain.DateRange{Start: p.Start, End: p.End}
		switch p.Kind {
		case ironbrain.PeriodInjury, ironbrain.PeriodHoliday:
			req.Unavailable = append(req.Unavailable, r)
		case ironbrain.PeriodRecoveryWeek:
			req.ForcedRecovery = append(req.ForcedRecovery, r)
		}
	}

	began := time.Now()
	result := ironbrain.GenerateSeason(ctx, req)
	observability.RecordSeason(result, time.Since(began))

	switch r := result.(type) {
	case ironbrain.Failure:
		s.logger.LogAttrs(ctx, slog.LevelWarn, "season generation failed",
			slog.String("reason", string(r.Reason)), slog.String("detail", r.Detail))
		return r, nil
	case ironbrain.Success:
		from := r.Weeks[0].Start
		to := from.AddDate(0, months, 0)
		if err := s.repo.plans.Replace(ctx, from, to, r.Plans); err != nil {
			return nil, fmt.Errorf("replace plans: %w", err)
		}
		s.logger.LogAttrs(ctx, slog.LevelInfo, "generated season",
			slog.Float64("ctl", math.Round(req.CurrentCTL*10)/10), //nolint:mnd // one decimal
			slog.Int("weeks", len(r.Weeks)), slog.Int("plans", len(r.Plans)))
		return r, nil
	default:
		return nil, fmt.Errorf("unexpected generation result %T", result)
	}
}

// recentLogs returns the logs of the trailing window before start.
func recentLogs(history []ironbrain.WorkoutLog, start time.Time) []ironbrain.WorkoutLog {
	cutoff := start.AddDate(0, 0, -historyWindowDays)
	var recent []ironbrain.WorkoutLog
	for _, l := range history {
		if !l.Date.Before(cutoff) {
			recent = append(recent, l)
		}
	}
	return recent
}

// ValidatePlans re-validates the stored plans dated within the inclusive range against the
// completed history, the surrounding plans and wellness logs.
func (s *Service) ValidatePlans(ctx context.Context, from, to time.Time) ([]ironbrain.ScheduleFinding, error) {
	var (
		a        Athlete
		plans    []ironbrain.TrainingPlan
		history  []ironbrain.WorkoutLog
		wellness []ironbrain.DailyWellnessLog
	)
	// Yesterday and the trailing run window reach back before from.
	lookback := from.AddDate(0, 0, -historyWindowDays)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = s.Athlete(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		if plans, err = s.repo.plans.List(gctx, lookback, to); err != nil {
			return fmt.Errorf("list plans: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if history, err = s.repo.workouts.List(gctx, lookback, to); err != nil {
			return fmt.Errorf("list workouts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if wellness, err = s.repo.wellness.List(gctx, from, to); err != nil {
			return fmt.Errorf("list wellness: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped inside the group.
	}

	var goal *time.Time
	if a.Profile != nil {
		goal = a.Profile.GoalDate
	}
	// Plans before from only give context. Days with a completed log use the log instead.
	logged := make(map[time.Time]bool, len(history))
	for _, l := range history {
		logged[l.Date] = true
	}
	var earlier, targets []ironbrain.TrainingPlan
	for _, p := range plans {
		switch {
		case !p.Date.Before(from):
			targets = append(targets, p)
		case !logged[p.Date]:
			earlier = append(earlier, p)
		}
	}

	findings := ironbrain.ValidateSchedule(append(earlier, targets...), history, wellness, a.Settings, goal)
	findings = findings[len(earlier):]
	for _, f := range findings {
		observability.RecordWarnings(f.Warnings)
	}
	return findings, nil
}
