package training

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/ironbrain/internal/ironbrain"
	"github.com/myrjola/ironbrain/internal/ptr"
)

// sqliteWorkoutRepository stores completed workout logs. Logs are immutable once imported.
type sqliteWorkoutRepository struct {
	baseRepository
}

// Add stores a log. Re-importing an existing ID is a no-op and reports false.
func (r *sqliteWorkoutRepository) Add(ctx context.Context, l ironbrain.WorkoutLog) (bool, error) {
	hrZones, err := encodeZones(l.HRZoneMinutes)
	if err != nil {
		return false, err
	}
	powerZones, err := encodeZones(l.PowerZoneMinutes)
	if err != nil {
		return false, err
	}

	res, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO workout_logs (
			id, date, discipline, duration_min, avg_hr, avg_power_w, distance_km, computed_tss,
			hr_zone_minutes, power_zone_minutes, is_commute
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		l.ID, formatDate(l.Date), string(l.Discipline), l.DurationMin,
		ptr.ToNull(l.AvgHR), ptr.ToNull(l.AvgPowerW), ptr.ToNull(l.DistanceKm), l.ComputedTSS,
		hrZones, powerZones, l.IsCommute)
	if err != nil {
		return false, fmt.Errorf("insert workout log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "workout log already imported", slog.String("id", l.ID))
	}
	return affected > 0, nil
}

// List returns the logs dated within the inclusive range ordered by date. Zero bounds are open.
func (r *sqliteWorkoutRepository) List(ctx context.Context, from, to time.Time) (_ []ironbrain.WorkoutLog, err error) {
	lo, hi := dateBounds(from, to)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, date, discipline, duration_min, avg_hr, avg_power_w, distance_km, computed_tss,
		       hr_zone_minutes, power_zone_minutes, is_commute
		FROM workout_logs
		WHERE date BETWEEN ? AND ?
		ORDER BY date, id`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query workout logs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var logs []ironbrain.WorkoutLog
	for rows.Next() {
		var (
			l                   ironbrain.WorkoutLog
			dateStr, discipline string
			avgHR, avgPower     sql.Null[int]
			distance            sql.Null[float64]
			hrZones, powerZones sql.Null[string]
		)
		if err = rows.Scan(&l.ID, &dateStr, &discipline, &l.DurationMin, &avgHR, &avgPower, &distance,
			&l.ComputedTSS, &hrZones, &powerZones, &l.IsCommute); err != nil {
			return nil, fmt.Errorf("scan workout log row: %w", err)
		}
		if l.Date, err = parseDate(dateStr); err != nil {
			return nil, err
		}
		l.Discipline = ironbrain.Discipline(discipline)
		l.AvgHR = ptr.FromNull(avgHR)
		l.AvgPowerW = ptr.FromNull(avgPower)
		l.DistanceKm = ptr.FromNull(distance)
		if l.HRZoneMinutes, err = decodeZones(hrZones); err != nil {
			return nil, err
		}
		if l.PowerZoneMinutes, err = decodeZones(powerZones); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return logs, nil
}

// encodeZones stores reported zones as a JSON array. Unreported zones are NULL.
func encodeZones(z ironbrain.ZoneMinutes) (sql.Null[string], error) {
	if z.Total() == 0 {
		return sql.Null[string]{}, nil
	}
	s, err := jsonArray(z[:])
	if err != nil {
		return sql.Null[string]{}, err
	}
	return sql.Null[string]{V: s, Valid: true}, nil
}

func decodeZones(n sql.Null[string]) (ironbrain.ZoneMinutes, error) {
	var z ironbrain.ZoneMinutes
	if !n.Valid {
		return z, nil
	}
	if err := json.Unmarshal([]byte(n.V), &z); err != nil {
		return z, fmt.Errorf("unmarshal zone minutes: %w", err)
	}
	return z, nil
}
