package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/myrjola/ironbrain/internal/ironbrain"
	"github.com/myrjola/ironbrain/internal/ptr"
)

// sqliteAthleteRepository stores the single athlete profile, weekly schedule, rule settings and
// recovery task configuration.
type sqliteAthleteRepository struct {
	baseRepository
}

// Profile returns the athlete profile with its weekly schedule, or nil when none has been saved.
func (r *sqliteAthleteRepository) Profile(ctx context.Context) (_ *ironbrain.UserProfile, err error) {
	var (
		p    ironbrain.UserProfile
		goal sql.Null[string]
	)
	err = r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT ftp_watts, max_hr, lthr, threshold_pace_sec_per_km, weight_kg, goal_date,
		       swim_pct, bike_pct, run_pct, strength_days, ramp_rate
		FROM athlete_profile
		WHERE id = 1`).Scan(
		&p.FTPWatts, &p.MaxHR, &p.LTHR, &p.ThresholdPaceSecPerKm, &p.WeightKg, &goal,
		&p.Balance.Swim, &p.Balance.Bike, &p.Balance.Run, &p.StrengthDays, &p.RampRate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no profile is a valid state for a fresh database.
	}
	if err != nil {
		return nil, fmt.Errorf("query athlete profile: %w", err)
	}
	if goal.Valid {
		var goalDate time.Time
		if goalDate, err = parseDate(goal.V); err != nil {
			return nil, err
		}
		p.GoalDate = &goalDate
	}

	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT weekday, available_minutes, anchor, is_commute
		FROM weekly_schedule
		ORDER BY weekday`)
	if err != nil {
		return nil, fmt.Errorf("query weekly schedule: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	for rows.Next() {
		var (
			weekday, minutes int
			anchor           string
			commute          bool
		)
		if err = rows.Scan(&weekday, &minutes, &anchor, &commute); err != nil {
			return nil, fmt.Errorf("scan weekly schedule row: %w", err)
		}
		p.Availability[weekday] = minutes
		p.Anchors[weekday] = ironbrain.Discipline(anchor)
		p.CommuteDays[weekday] = commute
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &p, nil
}

// Settings returns the rule settings. Fixtures guarantee the row exists.
func (r *sqliteAthleteRepository) Settings(ctx context.Context) (ironbrain.RuleSettings, error) {
	var s ironbrain.RuleSettings
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT enabled, allow_consecutive_runs, commute_exempt, strength_spacing_hours, mechanical_load_monitoring
		FROM rule_settings
		WHERE id = 1`).Scan(
		&s.Enabled, &s.AllowConsecutiveRuns, &s.CommuteExempt, &s.StrengthSpacingHours, &s.MechanicalLoadMonitoring,
	)
	if err != nil {
		return ironbrain.RuleSettings{}, fmt.Errorf("query rule settings: %w", err)
	}
	return s, nil
}

// Tasks returns the recovery tasks in configuration order.
func (r *sqliteAthleteRepository) Tasks(ctx context.Context) (_ []ironbrain.RecoveryTask, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, title, trigger_type, threshold, discipline
		FROM recovery_tasks
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query recovery tasks: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var tasks []ironbrain.RecoveryTask
	for rows.Next() {
		var (
			t          ironbrain.RecoveryTask
			trigger    string
			discipline string
		)
		if err = rows.Scan(&t.ID, &t.Title, &trigger, &t.Threshold, &discipline); err != nil {
			return nil, fmt.Errorf("scan recovery task row: %w", err)
		}
		t.Trigger = ironbrain.TaskTrigger(trigger)
		t.Discipline = ironbrain.Discipline(discipline)
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tasks, nil
}

// Save replaces the profile, schedule, settings and recovery tasks in one transaction.
// Completion marks of tasks that no longer exist are removed with them.
func (r *sqliteAthleteRepository) Save(
	ctx context.Context,
	p ironbrain.UserProfile,
	s ironbrain.RuleSettings,
	tasks []ironbrain.RecoveryTask,
) (err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	var goal sql.Null[string]
	if p.GoalDate != nil {
		goal = ptr.ToNull(ptr.Ref(formatDate(*p.GoalDate)))
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO athlete_profile (
			id, ftp_watts, max_hr, lthr, threshold_pace_sec_per_km, weight_kg, goal_date,
			swim_pct, bike_pct, run_pct, strength_days, ramp_rate
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			ftp_watts = excluded.ftp_watts,
			max_hr = excluded.max_hr,
			lthr = excluded.lthr,
			threshold_pace_sec_per_km = excluded.threshold_pace_sec_per_km,
			weight_kg = excluded.weight_kg,
			goal_date = excluded.goal_date,
			swim_pct = excluded.swim_pct,
			bike_pct = excluded.bike_pct,
			run_pct = excluded.run_pct,
			strength_days = excluded.strength_days,
			ramp_rate = excluded.ramp_rate`,
		p.FTPWatts, p.MaxHR, p.LTHR, p.ThresholdPaceSecPerKm, p.WeightKg, goal,
		p.Balance.Swim, p.Balance.Bike, p.Balance.Run, p.StrengthDays, p.RampRate,
	)
	if err != nil {
		return fmt.Errorf("upsert athlete profile: %w", err)
	}

	for weekday := range p.Availability {
		_, err = tx.ExecContext(ctx, `
			UPDATE weekly_schedule
			SET available_minutes = ?, anchor = ?, is_commute = ?
			WHERE weekday = ?`,
			p.Availability[weekday], string(p.Anchors[weekday]), p.CommuteDays[weekday], weekday)
		if err != nil {
			return fmt.Errorf("update weekly schedule for %s: %w", time.Weekday(weekday), err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rule_settings
		SET enabled = ?, allow_consecutive_runs = ?, commute_exempt = ?, strength_spacing_hours = ?,
		    mechanical_load_monitoring = ?
		WHERE id = 1`,
		s.Enabled, s.AllowConsecutiveRuns, s.CommuteExempt, s.StrengthSpacingHours, s.MechanicalLoadMonitoring)
	if err != nil {
		return fmt.Errorf("update rule settings: %w", err)
	}

	if err = r.replaceTasks(ctx, tx, tasks); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *sqliteAthleteRepository) replaceTasks(ctx context.Context, tx *sql.Tx, tasks []ironbrain.RecoveryTask) error {
	ids := make([]any, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	// Tasks missing from the new configuration are deleted.
	keep, err := jsonArray(ids)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM recovery_tasks
		WHERE id NOT IN (SELECT value FROM json_each(?))`, keep); err != nil {
		return fmt.Errorf("delete removed recovery tasks: %w", err)
	}

	for position, t := range tasks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO recovery_tasks (id, title, trigger_type, threshold, discipline, position)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				title = excluded.title,
				trigger_type = excluded.trigger_type,
				threshold = excluded.threshold,
				discipline = excluded.discipline,
				position = excluded.position`,
			t.ID, t.Title, string(t.Trigger), t.Threshold, string(t.Discipline), position)
		if err != nil {
			return fmt.Errorf("upsert recovery task %s: %w", t.ID, err)
		}
	}
	return nil
}
