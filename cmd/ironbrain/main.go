package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/myrjola/ironbrain/internal/envstruct"
	"github.com/myrjola/ironbrain/internal/errors"
	"github.com/myrjola/ironbrain/internal/flightrecorder"
	"github.com/myrjola/ironbrain/internal/logging"
	"github.com/myrjola/ironbrain/internal/observability"
	"github.com/myrjola/ironbrain/internal/sqlite"
	"github.com/myrjola/ironbrain/internal/training"
)

type config struct {
	// SqliteURL is the path to the SQLite database. ":memory:" gives an ethereal in-memory database.
	SqliteURL string `env:"IRONBRAIN_SQLITE_URL" envDefault:"./ironbrain.sqlite3"`
	// MetricsFile is where Prometheus metrics are written after each command. Empty disables it.
	MetricsFile string `env:"IRONBRAIN_METRICS_FILE" envDefault:""`
	// Debug enables debug logging.
	Debug bool `env:"IRONBRAIN_DEBUG" envDefault:"false"`
	// TracesDir enables the flight recorder. Commands slower than SlowCommand leave a trace there.
	TracesDir   string        `env:"IRONBRAIN_TRACES_DIR" envDefault:""`
	SlowCommand time.Duration `env:"IRONBRAIN_SLOW_COMMAND" envDefault:"5s"`
}

const usage = `usage: ironbrain <command> [flags]

commands:
  athlete   load the athlete file (-file) or show the stored athlete
  log       record a completed workout
  wellness  record soreness, mood, allergies, weight and completed recovery tasks
  sleep     record a night of sleep
  period    add, list or delete injury, holiday and recovery week periods
  status    show load, readiness, plans, nutrition and recovery tasks for a day
  generate  generate a season of training plans
  validate  re-validate stored plans against the rules
  query     run a read-only SQL query against the training history

Run "ironbrain <command> -h" for the flags of a command.
`

// errUsage is returned for a missing or unknown command.
var errUsage = errors.NewSentinel("invalid usage")

func run(
	ctx context.Context,
	args []string,
	stdout io.Writer,
	logger *slog.Logger,
	level *slog.LevelVar,
	lookupEnv func(string) (string, bool),
) (err error) {
	var cancel context.CancelFunc
	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}
	if cfg.Debug {
		level.Set(slog.LevelDebug)
	}

	if len(args) == 0 {
		_, _ = fmt.Fprint(stdout, usage)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		_, _ = fmt.Fprint(stdout, usage)
		return errors.Wrap(errUsage, "unknown command", slog.String("command", args[0]))
	}
	ctx = logging.WithAttrs(ctx, slog.String("command", args[0]))

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if optimizeErr := db.Optimize(context.WithoutCancel(ctx)); optimizeErr != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "optimize db", errors.SlogError(optimizeErr))
		}
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close db"))
		}
	}()

	if cfg.TracesDir != "" {
		var recorder *flightrecorder.Service
		if recorder, err = flightrecorder.New(flightrecorder.Config{
			Logger:          logger,
			MinAge:          0,
			MaxBytes:        0,
			TracesDirectory: cfg.TracesDir,
			Threshold:       cfg.SlowCommand,
		}); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer func() {
			if _, stopErr := recorder.Stop(context.WithoutCancel(ctx), args[0]); stopErr != nil {
				logger.LogAttrs(ctx, slog.LevelWarn, "capture trace", errors.SlogError(stopErr))
			}
		}()
	}

	env := &environment{
		logger:  logger,
		db:      db,
		service: training.NewService(db, logger),
		out:     newReport(stdout),
		now:     time.Now,
	}
	if err = invoke(ctx, cmd, env, args[1:]); err != nil {
		return errors.Wrap(err, args[0])
	}

	if cfg.MetricsFile != "" {
		if err = observability.WriteTextfile(cfg.MetricsFile); err != nil {
			return errors.Wrap(err, "write metrics", slog.String("path", cfg.MetricsFile))
		}
	}
	return nil
}

// invoke turns a panicking command into an error so the deferred database close still runs.
func invoke(ctx context.Context, cmd command, env *environment, args []string) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = errors.DecoratePanic(recovered)
		}
	}()
	return cmd(ctx, env, args)
}

func main() {
	ctx := context.Background()
	var level slog.LevelVar
	logger := logging.New(os.Stderr, &level)

	// A missing .env file is fine, the environment is used as is.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelWarn, "load .env", errors.SlogError(err))
	}

	if err := run(ctx, os.Args[1:], os.Stdout, logger, &level, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "command failed", errors.SlogError(err))
		os.Exit(1)
	}
}
