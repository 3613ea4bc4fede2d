package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/myrjola/ironbrain/internal/ironbrain"
)

// sqliteSleepRepository stores one sleep log per night, keyed by wake-up date.
type sqliteSleepRepository struct {
	baseRepository
}

// Set upserts the sleep log of a date.
func (r *sqliteSleepRepository) Set(ctx context.Context, s ironbrain.SleepLog) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO sleep_logs (
			date, duration_min, deep_min, rem_min, light_min, awake_min, time_in_bed_min, vendor_note, score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			duration_min = excluded.duration_min,
			deep_min = excluded.deep_min,
			rem_min = excluded.rem_min,
			light_min = excluded.light_min,
			awake_min = excluded.awake_min,
			time_in_bed_min = excluded.time_in_bed_min,
			vendor_note = excluded.vendor_note,
			score = excluded.score`,
		formatDate(s.Date), s.DurationMin, s.DeepMin, s.RemMin, s.LightMin, s.AwakeMin, s.TimeInBedMin,
		s.VendorNote, s.Score)
	if err != nil {
		return fmt.Errorf("upsert sleep log: %w", err)
	}
	return nil
}

// Get returns the sleep log of a date or ErrNotFound.
func (r *sqliteSleepRepository) Get(ctx context.Context, date time.Time) (ironbrain.SleepLog, error) {
	s := ironbrain.SleepLog{Date: date} //nolint:exhaustruct // scanned below.
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT duration_min, deep_min, rem_min, light_min, awake_min, time_in_bed_min, vendor_note, score
		FROM sleep_logs
		WHERE date = ?`, formatDate(date)).Scan(
		&s.DurationMin, &s.DeepMin, &s.RemMin, &s.LightMin, &s.AwakeMin, &s.TimeInBedMin, &s.VendorNote, &s.Score,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ironbrain.SleepLog{}, ErrNotFound
	}
	if err != nil {
		return ironbrain.SleepLog{}, fmt.Errorf("query sleep log: %w", err)
	}
	return s, nil
}
