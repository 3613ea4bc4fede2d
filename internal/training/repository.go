package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/ironbrain/internal/sqlite"
)

const dateFormat = time.DateOnly

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// baseRepository holds what every SQLite repository needs.
type baseRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newBaseRepository(db *sqlite.Database, logger *slog.Logger) baseRepository {
	return baseRepository{
		db:     db,
		logger: logger,
	}
}

// repository bundles the per-table repositories the service works with.
type repository struct {
	athlete  *sqliteAthleteRepository
	workouts *sqliteWorkoutRepository
	plans    *sqlitePlanRepository
	wellness *sqliteWellnessRepository
	sleep    *sqliteSleepRepository
	periods  *sqlitePeriodRepository
}

// repositoryFactory creates repositories sharing one database.
type repositoryFactory struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newRepositoryFactory(db *sqlite.Database, logger *slog.Logger) *repositoryFactory {
	return &repositoryFactory{
		db:     db,
		logger: logger,
	}
}

func (f *repositoryFactory) newRepository() *repository {
	base := newBaseRepository(f.db, f.logger)
	return &repository{
		athlete:  &sqliteAthleteRepository{baseRepository: base},
		workouts: &sqliteWorkoutRepository{baseRepository: base},
		plans:    &sqlitePlanRepository{baseRepository: base},
		wellness: &sqliteWellnessRepository{baseRepository: base},
		sleep:    &sqliteSleepRepository{baseRepository: base},
		periods:  &sqlitePeriodRepository{baseRepository: base},
	}
}

func formatDate(t time.Time) string {
	return t.Format(dateFormat)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// dateBounds formats an inclusive date range. A zero bound is open.
func dateBounds(from, to time.Time) (string, string) {
	lo, hi := "0000-01-01", "9999-12-31"
	if !from.IsZero() {
		lo = formatDate(from)
	}
	if !to.IsZero() {
		hi = formatDate(to)
	}
	return lo, hi
}

// jsonArray encodes values for SQLite's json_each and JSON columns.
func jsonArray[T any](values []T) (string, error) {
	if values == nil {
		values = []T{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal json array: %w", err)
	}
	return string(b), nil
}
