package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/myrjola/ironbrain/internal/ironbrain"
)

// sqlitePlanRepository stores planned sessions.
type sqlitePlanRepository struct {
	baseRepository
}

// List returns the plans dated within the inclusive range ordered by date. Zero bounds are open.
func (r *sqlitePlanRepository) List(ctx context.Context, from, to time.Time) (_ []ironbrain.TrainingPlan, err error) {
	lo, hi := dateBounds(from, to)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, date, discipline, sub_type, duration_min, planned_tss, strength_focus, strength_intensity,
		       is_commute
		FROM training_plans
		WHERE date BETWEEN ? AND ?
		ORDER BY date, rowid`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query training plans: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var plans []ironbrain.TrainingPlan
	for rows.Next() {
		var (
			p                        ironbrain.TrainingPlan
			dateStr, discipline      string
			strengthFocus, intensity string
		)
		if err = rows.Scan(&p.ID, &dateStr, &discipline, &p.SubType, &p.DurationMin, &p.PlannedTSS,
			&strengthFocus, &intensity, &p.IsCommute); err != nil {
			return nil, fmt.Errorf("scan training plan row: %w", err)
		}
		if p.Date, err = parseDate(dateStr); err != nil {
			return nil, err
		}
		p.Discipline = ironbrain.Discipline(discipline)
		p.StrengthFocus = ironbrain.StrengthFocus(strengthFocus)
		p.StrengthIntensity = ironbrain.StrengthIntensity(intensity)
		plans = append(plans, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return plans, nil
}

// Replace deletes the plans dated in [from, to) and inserts plans in one transaction.
func (r *sqlitePlanRepository) Replace(
	ctx context.Context,
	from, to time.Time,
	plans []ironbrain.TrainingPlan,
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

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM training_plans
		WHERE date >= ? AND date < ?`, formatDate(from), formatDate(to)); err != nil {
		return fmt.Errorf("delete plans in range: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO training_plans (
			id, date, discipline, sub_type, duration_min, planned_tss, strength_focus, strength_intensity, is_commute
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			date = excluded.date,
			discipline = excluded.discipline,
			sub_type = excluded.sub_type,
			duration_min = excluded.duration_min,
			planned_tss = excluded.planned_tss,
			strength_focus = excluded.strength_focus,
			strength_intensity = excluded.strength_intensity,
			is_commute = excluded.is_commute`)
	if err != nil {
		return fmt.Errorf("prepare plan insert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close statement: %w", closeErr))
		}
	}()

	for _, p := range plans {
		if _, err = stmt.ExecContext(ctx, p.ID, formatDate(p.Date), string(p.Discipline), p.SubType, p.DurationMin,
			p.PlannedTSS, string(p.StrengthFocus), string(p.StrengthIntensity), p.IsCommute); err != nil {
			return fmt.Errorf("insert plan %s: %w", p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
