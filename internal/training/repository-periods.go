package training

import (
	"context"
	"errors"
	"fmt"

	"github.com/myrjola/ironbrain/internal/ironbrain"
)

// sqlitePeriodRepository stores injury, holiday and recovery week periods.
type sqlitePeriodRepository struct {
	baseRepository
}

// Add stores a period and returns its ID.
func (r *sqlitePeriodRepository) Add(ctx context.Context, p ironbrain.SpecialPeriod) (int64, error) {
	var id int64
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO special_periods (kind, start_date, end_date)
		VALUES (?, ?, ?)
		RETURNING id`, string(p.Kind), formatDate(p.Start), formatDate(p.End)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert special period: %w", err)
	}
	return id, nil
}

// Delete removes a period. Unknown IDs return ErrNotFound.
func (r *sqlitePeriodRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ReadWrite.ExecContext(ctx, "DELETE FROM special_periods WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete special period: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every period ordered by start date.
func (r *sqlitePeriodRepository) List(ctx context.Context) (_ []ironbrain.SpecialPeriod, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, kind, start_date, end_date
		FROM special_periods
		ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("query special periods: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var periods []ironbrain.SpecialPeriod
	for rows.Next() {
		var (
			p                ironbrain.SpecialPeriod
			kind, start, end string
		)
		if err = rows.Scan(&p.ID, &kind, &start, &end); err != nil {
			return nil, fmt.Errorf("scan special period row: %w", err)
		}
		p.Kind = ironbrain.PeriodKind(kind)
		if p.Start, err = parseDate(start); err != nil {
			return nil, err
		}
		if p.End, err = parseDate(end); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return periods, nil
}
