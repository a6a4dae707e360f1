package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/storefront/pkg/audit"
)

// Aggregate expressions shared by the metrics queries.
const (
	countExpr       = "COUNT(*) AS count"
	successRateExpr = "CASE WHEN COUNT(*) > 0 THEN CAST(COUNT(*) FILTER (WHERE success) AS FLOAT) / COUNT(*) ELSE 0 END AS success_rate"
	avgDurationExpr = "COALESCE(AVG(duration_ms), 0) AS avg_duration_ms"
)

// tagSource expands each event into one row per invalidated cache tag.
const tagSource = eventsTable + " CROSS JOIN LATERAL unnest(tags) AS t(tag)"

// windowed restricts qb to the resolved window.
func windowed(qb sq.SelectBuilder, w audit.Window) sq.SelectBuilder {
	start, end := w.Bounds(time.Now())
	return qb.Where(sq.GtOrEq{"timestamp": start}).Where(sq.LtOrEq{"timestamp": end})
}

// collect runs a query and scans every row with scan.
func collect[T any](ctx context.Context, db *sql.DB, qb sq.SelectBuilder, what string, scan func(*sql.Rows, *T) error) ([]T, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building %s query: %w", what, err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	defer func() { _ = rows.Close() }()

	out := []T{}
	for rows.Next() {
		var v T
		if err := scan(rows, &v); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", what, err)
	}
	return out, nil
}

// Timeseries returns event counts bucketed by the filter's resolution,
// optionally for a single operation.
func (s *Store) Timeseries(ctx context.Context, filter audit.TimeseriesFilter) ([]audit.TimeseriesBucket, error) {
	if !filter.Resolution.Valid() {
		return nil, fmt.Errorf("invalid resolution: %q", filter.Resolution)
	}

	// Resolution is one of three constants.
	qb := psq.Select(
		fmt.Sprintf("date_trunc('%s', timestamp) AS bucket", filter.Resolution),
		countExpr,
		"COUNT(*) FILTER (WHERE success) AS success_count",
		"COUNT(*) FILTER (WHERE NOT success) AS error_count",
		avgDurationExpr,
	).From(eventsTable)
	qb = windowed(qb, filter.Window)
	if filter.Operation != "" {
		qb = qb.Where(sq.Eq{"operation": string(filter.Operation)})
	}
	qb = qb.GroupBy("bucket").OrderBy("bucket ASC")

	return collect(ctx, s.db, qb, "timeseries", func(rows *sql.Rows, b *audit.TimeseriesBucket) error {
		return rows.Scan(&b.Bucket, &b.Count, &b.SuccessCount, &b.ErrorCount, &b.AvgDurationMS)
	})
}

// Breakdown returns event counts grouped by a dimension, largest first.
// Grouping by tag counts an event once per invalidated tag.
func (s *Store) Breakdown(ctx context.Context, filter audit.BreakdownFilter) ([]audit.BreakdownEntry, error) {
	if !filter.GroupBy.Valid() {
		return nil, fmt.Errorf("invalid breakdown dimension: %q", filter.GroupBy)
	}

	from, column := eventsTable, string(filter.GroupBy)
	if filter.GroupBy == audit.DimensionTag {
		from, column = tagSource, "t.tag"
	}

	qb := psq.Select(
		fmt.Sprintf("COALESCE(%s, '') AS dimension", column),
		countExpr,
		successRateExpr,
		avgDurationExpr,
	).From(from)
	qb = windowed(qb, filter.Window).
		GroupBy("dimension").
		OrderBy("count DESC", "dimension ASC").
		Limit(uint64(filter.EffectiveLimit())) // #nosec G115 -- bounded by MaxBreakdownLimit

	return collect(ctx, s.db, qb, "breakdown", func(rows *sql.Rows, e *audit.BreakdownEntry) error {
		return rows.Scan(&e.Dimension, &e.Count, &e.SuccessRate, &e.AvgDurationMS)
	})
}

// Overview summarizes cart activity in the window.
func (s *Store) Overview(ctx context.Context, window audit.Window) (*audit.Overview, error) {
	qb := windowed(psq.Select(
		"COUNT(*) AS total_events",
		successRateExpr,
		avgDurationExpr,
		"COUNT(DISTINCT NULLIF(session_id, '')) AS unique_sessions",
		"COUNT(DISTINCT NULLIF(cart_id, '')) AS unique_carts",
		"COUNT(DISTINCT NULLIF(customer_id, '')) AS unique_customers",
		fmt.Sprintf("COUNT(*) FILTER (WHERE operation = '%s' AND success) AS orders_placed", audit.OpCompleteOrder),
		"COALESCE(SUM(cardinality(tags)), 0) AS invalidations",
		"COUNT(*) FILTER (WHERE NOT success) AS error_count",
	).From(eventsTable), window)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building overview query: %w", err)
	}

	var o audit.Overview
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&o.TotalEvents,
		&o.SuccessRate,
		&o.AvgDurationMS,
		&o.UniqueSessions,
		&o.UniqueCarts,
		&o.UniqueCustomers,
		&o.OrdersPlaced,
		&o.Invalidations,
		&o.ErrorCount,
	)
	if err != nil {
		return nil, fmt.Errorf("querying overview: %w", err)
	}
	return &o, nil
}

// Verify interface compliance.
var _ audit.MetricsQuerier = (*Store)(nil)
