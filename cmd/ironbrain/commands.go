package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/ironbrain/internal/athlete"
	"github.com/myrjola/ironbrain/internal/errors"
	"github.com/myrjola/ironbrain/internal/ironbrain"
	"github.com/myrjola/ironbrain/internal/sqlite"
	"github.com/myrjola/ironbrain/internal/training"
)

const (
	defaultSeasonMonths = 4
	validateWindowDays  = 28
)

// errBlockers makes validate exit non-zero when a stored plan violates a blocking rule.
var errBlockers = errors.NewSentinel("plans contain blockers")

// environment is what every command runs with.
type environment struct {
	logger  *slog.Logger
	db      *sqlite.Database
	service *training.Service
	out     *report
	now     func() time.Time
}

func (e *environment) today() time.Time {
	n := e.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

type command func(ctx context.Context, env *environment, args []string) error

//nolint:gochecknoglobals // dispatch table.
var commands = map[string]command{
	"athlete":  cmdAthlete,
	"log":      cmdLog,
	"wellness": cmdWellness,
	"sleep":    cmdSleep,
	"period":   cmdPeriod,
	"status":   cmdStatus,
	"generate": cmdGenerate,
	"validate": cmdValidate,
	"query":    cmdQuery,
}

func newFlagSet(name string, env *environment) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.out.w)
	return fs
}

// parseFlags treats -h as success.
func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	err := fs.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "parse flags")
	}
	if fs.NArg() > 0 {
		return false, errors.Wrap(errUsage, "unexpected arguments", slog.String("args", strings.Join(fs.Args(), " ")))
	}
	return true, nil
}

func cmdAthlete(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet("athlete", env)
	file := fs.String("file", "", "athlete YAML file to load before showing the athlete")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	if *file != "" {
		cfg, err := athlete.Load(*file)
		if err != nil {
			return errors.Wrap(err, "load athlete file", slog.String("file", *file))
		}
		if err = env.service.SaveAthlete(ctx, cfg.Profile, cfg.Settings, cfg.Tasks); err != nil {
			return errors.Wrap(err, "save athlete")
		}
	}

	a, err := env.service.Athlete(ctx)
	if err != nil {
		return errors.Wrap(err, "get athlete")
	}
	env.out.athlete(a)
	return nil
}

func cmdLog(ctx context.Context, env *environment, args []string) error {
	var (
		date       = env.today()
		hrZones    ironbrain.ZoneMinutes
		powerZones ironbrain.ZoneMinutes
	)
	fs := newFlagSet("log", env)
	fs.Var(dateFlag{&date}, "date", "workout date (YYYY-MM-DD), defaults to today")
	discipline := fs.String("discipline", "", "swim, bike, run, strength or other")
	duration := fs.Int("duration", 0, "duration in minutes")
	avgHR := optionalInt(fs, "hr", "average heart rate")
	avgPower := optionalInt(fs, "power", "average power in watts")
	distance := optionalFloat(fs, "distance", "distance in km")
	tss := fs.Float64("tss", 0, "training stress score, computed from thresholds when 0")
	commute := fs.Bool("commute", false, "the session was a commute")
	id := fs.String("id", "", "import ID, re-importing the same ID is a no-op")
	fs.Var(zonesFlag{&hrZones}, "hr-zones", "minutes in heart rate zones 1-5, comma separated")
	fs.Var(zonesFlag{&powerZones}, "power-zones", "minutes in power zones 1-5, comma separated")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	d, ok := ironbrain.ParseDiscipline(strings.ToUpper(*discipline))
	if !ok || d == ironbrain.DisciplineNone {
		return errors.Wrap(errUsage, "unknown discipline", slog.String("discipline", *discipline))
	}
	l, err := env.service.RecordWorkout(ctx, ironbrain.WorkoutLog{
		ID:               *id,
		Date:             date,
		Discipline:       d,
		DurationMin:      *duration,
		AvgHR:            *avgHR,
		AvgPowerW:        *avgPower,
		DistanceKm:       *distance,
		ComputedTSS:      *tss,
		HRZoneMinutes:    hrZones,
		PowerZoneMinutes: powerZones,
		IsCommute:        *commute,
	})
	if err != nil {
		return errors.Wrap(err, "record workout")
	}
	env.out.printf("recorded %s on %s: %d min, %.1f TSS (%s)\n",
		l.Discipline, l.Date.Format(time.DateOnly), l.DurationMin, l.ComputedTSS, l.ID)
	return nil
}

func cmdWellness(ctx context.Context, env *environment, args []string) error {
	var (
		date = env.today()
		done []string
	)
	fs := newFlagSet("wellness", env)
	fs.Var(dateFlag{&date}, "date", "date (YYYY-MM-DD), defaults to today")
	soreness := optionalInt(fs, "soreness", "muscle soreness 1-10")
	mood := optionalInt(fs, "mood", "mood 1-10")
	allergy := fs.String("allergy", string(ironbrain.AllergyNone), "none, mild, moderate or severe")
	weight := optionalFloat(fs, "weight", "morning weight in kg")
	fs.Var(listFlag{&done}, "done", "completed recovery task IDs, comma separated")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	severity := ironbrain.AllergySeverity(strings.ToUpper(*allergy))
	switch severity {
	case ironbrain.AllergyNone, ironbrain.AllergyMild, ironbrain.AllergyModerate, ironbrain.AllergySevere:
	default:
		return errors.Wrap(errUsage, "unknown allergy severity", slog.String("allergy", *allergy))
	}
	if err := env.service.RecordWellness(ctx, ironbrain.DailyWellnessLog{
		Date:             date,
		Soreness:         *soreness,
		Mood:             *mood,
		Allergy:          severity,
		MorningWeightKg:  *weight,
		CompletedTaskIDs: done,
	}); err != nil {
		return errors.Wrap(err, "record wellness")
	}
	env.out.printf("recorded wellness for %s\n", date.Format(time.DateOnly))
	return nil
}

func cmdSleep(ctx context.Context, env *environment, args []string) error {
	date := env.today()
	fs := newFlagSet("sleep", env)
	fs.Var(dateFlag{&date}, "date", "wake-up date (YYYY-MM-DD), defaults to today")
	duration := fs.Int("duration", 0, "minutes asleep")
	deep := fs.Int("deep", 0, "minutes of deep sleep")
	rem := fs.Int("rem", 0, "minutes of REM sleep")
	light := fs.Int("light", 0, "minutes of light sleep")
	awake := fs.Int("awake", 0, "minutes awake after falling asleep")
	inBed := fs.Int("in-bed", 0, "minutes in bed")
	note := fs.String("note", "", "tracker note, a score like \"Score: 82\" overrides the computed score")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	l, err := env.service.RecordSleep(ctx, ironbrain.SleepLog{
		Date:         date,
		DurationMin:  *duration,
		DeepMin:      *deep,
		RemMin:       *rem,
		LightMin:     *light,
		AwakeMin:     *awake,
		TimeInBedMin: *inBed,
		VendorNote:   *note,
		Score:        0,
	})
	if err != nil {
		return errors.Wrap(err, "record sleep")
	}
	env.out.printf("sleep score for %s: %d\n", l.Date.Format(time.DateOnly), l.Score)
	return nil
}

func cmdPeriod(ctx context.Context, env *environment, args []string) error {
	var start, end time.Time
	fs := newFlagSet("period", env)
	kind := fs.String("kind", "", "injury, holiday or recovery_week; lists periods when empty")
	fs.Var(dateFlag{&start}, "start", "first day (YYYY-MM-DD)")
	fs.Var(dateFlag{&end}, "end", "last day (YYYY-MM-DD), defaults to start")
	deleteID := fs.Int64("delete", 0, "delete the period with this ID")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	switch {
	case *deleteID != 0:
		if err := env.service.DeleteSpecialPeriod(ctx, *deleteID); err != nil {
			return errors.Wrap(err, "delete period")
		}
		env.out.printf("deleted period %d\n", *deleteID)
	case *kind != "":
		if start.IsZero() {
			return errors.Wrap(errUsage, "period needs -start")
		}
		if end.IsZero() {
			end = start
		}
		p, err := env.service.AddSpecialPeriod(ctx, ironbrain.SpecialPeriod{
			ID:    0,
			Kind:  ironbrain.PeriodKind(strings.ToUpper(*kind)),
			Start: start,
			End:   end,
		})
		if err != nil {
			return errors.Wrap(err, "add period")
		}
		env.out.periods([]ironbrain.SpecialPeriod{p})
	default:
		periods, err := env.service.SpecialPeriods(ctx)
		if err != nil {
			return errors.Wrap(err, "list periods")
		}
		env.out.periods(periods)
	}
	return nil
}

func cmdStatus(ctx context.Context, env *environment, args []string) error {
	date := env.today()
	fs := newFlagSet("status", env)
	fs.Var(dateFlag{&date}, "date", "date (YYYY-MM-DD), defaults to today")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	st, err := env.service.Status(ctx, date)
	if err != nil {
		return errors.Wrap(err, "status")
	}
	env.out.status(st)
	return nil
}

func cmdGenerate(ctx context.Context, env *environment, args []string) error {
	start := env.today()
	fs := newFlagSet("generate", env)
	fs.Var(dateFlag{&start}, "start", "season start (YYYY-MM-DD), moved back to its Monday; defaults to today")
	months := fs.Int("months", defaultSeasonMonths, "season length in months (1-6)")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	result, err := env.service.GenerateSeason(ctx, start, *months)
	if err != nil {
		return errors.Wrap(err, "generate season")
	}
	switch r := result.(type) {
	case ironbrain.Failure:
		return errors.Wrap(r, "generate season", slog.String("reason", string(r.Reason)))
	case ironbrain.Success:
		env.out.season(r)
	}
	return nil
}

func cmdValidate(ctx context.Context, env *environment, args []string) error {
	var (
		from = env.today()
		to   time.Time
	)
	fs := newFlagSet("validate", env)
	fs.Var(dateFlag{&from}, "from", "first day (YYYY-MM-DD), defaults to today")
	fs.Var(dateFlag{&to}, "to", "last day (YYYY-MM-DD), defaults to four weeks after from")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, validateWindowDays-1)
	}

	findings, err := env.service.ValidatePlans(ctx, from, to)
	if err != nil {
		return errors.Wrap(err, "validate plans")
	}
	env.out.findings(findings)

	blockers := 0
	for _, f := range findings {
		if ironbrain.HasBlocker(f.Warnings) {
			blockers++
		}
	}
	if blockers > 0 {
		return errors.Wrap(errBlockers, strconv.Itoa(blockers)+" blocked sessions")
	}
	return nil
}

// formatMinutes renders minutes as h:mm.
func formatMinutes(minutes int) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60) //nolint:mnd // minutes per hour
}

func cmdQuery(ctx context.Context, env *environment, args []string) error {
	fs := newFlagSet("query", env)
	maxRows := fs.Int("max-rows", 0, "maximum number of rows to print, 0 for the default of 1000")
	timeout := fs.Duration("timeout", 0, "query timeout, 0 for the default of 5s")
	err := fs.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "parse flags")
	}
	if fs.NArg() != 1 {
		return errors.Wrap(errUsage, "query takes exactly one SQL statement")
	}

	res, err := env.db.Query(ctx, fs.Arg(0), sqlite.QueryOptions{Timeout: *timeout, MaxRows: *maxRows})
	if err != nil {
		return errors.Wrap(err, "run query")
	}
	env.out.query(res)
	return nil
}
