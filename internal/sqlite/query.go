package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

const (
	defaultQueryTimeout = 5 * time.Second
	defaultQueryMaxRows = 1000
)

var (
	// ErrRestrictedQuery is returned for statements that could escape the read-only connection.
	ErrRestrictedQuery = errors.New("query contains restricted operations")

	//nolint:gochecknoglobals // compiled once.
	restrictedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bATTACH\b`),
		regexp.MustCompile(`(?i)\bDETACH\b`),
		regexp.MustCompile(`(?i)\bPRAGMA\b`),
		regexp.MustCompile(`(?i)\bload_extension\b`),
	}
)

// QueryResult holds the rows of an ad-hoc query rendered as strings. NULL becomes the empty string.
type QueryResult struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
}

// QueryOptions limit an ad-hoc query. Zero values pick the defaults.
type QueryOptions struct {
	Timeout time.Duration
	MaxRows int
}

// Query runs an ad-hoc statement against the read-only connection with the query_only pragma enabled.
func (db *Database) Query(ctx context.Context, query string, opts QueryOptions) (_ *QueryResult, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty query")
	}
	for _, pattern := range restrictedPatterns {
		if pattern.MatchString(query) {
			return nil, ErrRestrictedQuery
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultQueryTimeout
	}
	if opts.MaxRows == 0 {
		opts.MaxRows = defaultQueryMaxRows
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	conn, err := db.ReadOnly.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("release connection: %w", closeErr))
		}
	}()
	if _, err = conn.ExecContext(ctx, "PRAGMA query_only = TRUE"); err != nil {
		return nil, fmt.Errorf("enable query_only: %w", err)
	}

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	result := &QueryResult{
		Columns:   columns,
		Rows:      nil,
		Truncated: false,
	}
	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	for rows.Next() {
		if len(result.Rows) == opts.MaxRows {
			result.Truncated = true
			break
		}
		if err = rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	db.logger.LogAttrs(ctx, slog.LevelDebug, "ad-hoc query",
		slog.String("query", query),
		slog.Int("rows", len(result.Rows)),
		slog.Bool("truncated", result.Truncated))
	return result, nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.DateOnly)
	default:
		return fmt.Sprint(v)
	}
}
