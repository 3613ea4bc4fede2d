package training

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/myrjola/ironbrain/internal/ironbrain"
	"github.com/myrjola/ironbrain/internal/ptr"
)

// sqliteWellnessRepository stores daily wellness logs and completed recovery tasks.
type sqliteWellnessRepository struct {
	baseRepository
}

// Set upserts the wellness log of a date and replaces its completed tasks.
func (r *sqliteWellnessRepository) Set(ctx context.Context, w ironbrain.DailyWellnessLog) (err error) {
	dateStr := formatDate(w.Date)

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wellness_logs (date, soreness, mood, allergy, morning_weight_kg)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			soreness = excluded.soreness,
			mood = excluded.mood,
			allergy = excluded.allergy,
			morning_weight_kg = excluded.morning_weight_kg`,
		dateStr, ptr.ToNull(w.Soreness), ptr.ToNull(w.Mood), string(w.Allergy), ptr.ToNull(w.MorningWeightKg))
	if err != nil {
		return fmt.Errorf("upsert wellness log: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM completed_tasks WHERE date = ?", dateStr); err != nil {
		return fmt.Errorf("delete completed tasks: %w", err)
	}
	for _, id := range w.CompletedTaskIDs {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO completed_tasks (date, task_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING`, dateStr, id); err != nil {
			return fmt.Errorf("insert completed task %s: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// List returns the wellness logs dated within the inclusive range ordered by date.
func (r *sqliteWellnessRepository) List(
	ctx context.Context,
	from, to time.Time,
) (_ []ironbrain.DailyWellnessLog, err error) {
	lo, hi := dateBounds(from, to)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT w.date, w.soreness, w.mood, w.allergy, w.morning_weight_kg,
		       (SELECT json_group_array(c.task_id) FROM completed_tasks c WHERE c.date = w.date)
		FROM wellness_logs w
		WHERE w.date BETWEEN ? AND ?
		ORDER BY w.date`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query wellness logs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var logs []ironbrain.DailyWellnessLog
	for rows.Next() {
		var (
			w                ironbrain.DailyWellnessLog
			dateStr, allergy string
			soreness, mood   sql.Null[int]
			weight           sql.Null[float64]
			completed        string
		)
		if err = rows.Scan(&dateStr, &soreness, &mood, &allergy, &weight, &completed); err != nil {
			return nil, fmt.Errorf("scan wellness row: %w", err)
		}
		if w.Date, err = parseDate(dateStr); err != nil {
			return nil, err
		}
		w.Soreness = ptr.FromNull(soreness)
		w.Mood = ptr.FromNull(mood)
		w.Allergy = ironbrain.AllergySeverity(allergy)
		w.MorningWeightKg = ptr.FromNull(weight)
		if err = json.Unmarshal([]byte(completed), &w.CompletedTaskIDs); err != nil {
			return nil, fmt.Errorf("unmarshal completed tasks: %w", err)
		}
		if len(w.CompletedTaskIDs) == 0 {
			w.CompletedTaskIDs = nil
		}
		slices.Sort(w.CompletedTaskIDs)
		logs = append(logs, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return logs, nil
}
