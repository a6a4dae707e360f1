// Package postgres provides PostgreSQL storage for cart audit events.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/txn2/storefront/pkg/audit"
)

const (
	defaultRetentionDays = 90
	eventsTable          = "cart_events"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// eventColumns lists the event columns in scan order. Inserts add
// created_date, the partition key.
var eventColumns = []string{
	"id", "timestamp", "duration_ms", "request_id", "session_id",
	"customer_id", "operation", "cart_id", "country_code", "region_id",
	"tags", "parameters", "success", "error_message",
}

// Store implements audit.Logger and audit.MetricsQuerier using PostgreSQL.
type Store struct {
	db        *sql.DB
	retention time.Duration
	cancel    context.CancelFunc
	done      chan struct{}
}

// Config configures the PostgreSQL audit store.
type Config struct {
	// RetentionDays is how long events are kept. Defaults to 90.
	RetentionDays int
}

// New creates a PostgreSQL audit store over db. Schema is managed by the
// migrate package.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	return &Store{
		db:        db,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	}
}

// Log inserts one event. Nil parameters are stored as NULL.
func (s *Store) Log(ctx context.Context, event audit.Event) error {
	var params []byte
	if event.Parameters != nil {
		b, err := json.Marshal(event.Parameters)
		if err != nil {
			return fmt.Errorf("encoding audit parameters: %w", err)
		}
		params = b
	}
	tags := event.Tags
	if tags == nil {
		tags = []string{}
	}

	query, args, err := psq.Insert(eventsTable).
		Columns(append(eventColumns, "created_date")...).
		Values(
			event.ID, event.Timestamp, event.DurationMS,
			event.RequestID, event.SessionID, event.CustomerID,
			string(event.Operation), event.CartID, event.CountryCode, event.RegionID,
			pq.Array(tags), params, event.Success, event.ErrorMessage,
			event.Timestamp.UTC().Format(time.DateOnly),
		).ToSql()
	if err != nil {
		return fmt.Errorf("building audit insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// filtered adds the filter's conditions to qb.
func filtered(qb sq.SelectBuilder, f audit.QueryFilter) sq.SelectBuilder {
	eq := sq.Eq{}
	if f.ID != "" {
		eq["id"] = f.ID
	}
	if f.SessionID != "" {
		eq["session_id"] = f.SessionID
	}
	if f.CartID != "" {
		eq["cart_id"] = f.CartID
	}
	if f.Operation != "" {
		eq["operation"] = string(f.Operation)
	}
	if f.Success != nil {
		eq["success"] = *f.Success
	}
	if len(eq) > 0 {
		qb = qb.Where(eq)
	}
	if f.StartTime != nil {
		qb = qb.Where(sq.GtOrEq{"timestamp": *f.StartTime})
	}
	if f.EndTime != nil {
		qb = qb.Where(sq.LtOrEq{"timestamp": *f.EndTime})
	}
	return qb
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	qb := filtered(psq.Select(eventColumns...).From(eventsTable), filter).
		OrderBy("timestamp DESC")
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit)) // #nosec G115 -- checked positive
	}
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset)) // #nosec G115 -- checked positive
	}
	return collect(ctx, s.db, qb, "audit event", scanEvent)
}

// Count returns the number of matching events.
func (s *Store) Count(ctx context.Context, filter audit.QueryFilter) (int, error) {
	query, args, err := filtered(psq.Select("COUNT(*)").From(eventsTable), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit events: %w", err)
	}
	return n, nil
}

func scanEvent(rows *sql.Rows, e *audit.Event) error {
	var (
		op     string
		params []byte
	)
	if err := rows.Scan(
		&e.ID, &e.Timestamp, &e.DurationMS,
		&e.RequestID, &e.SessionID, &e.CustomerID,
		&op, &e.CartID, &e.CountryCode, &e.RegionID,
		pq.Array(&e.Tags), &params, &e.Success, &e.ErrorMessage,
	); err != nil {
		return err //nolint:wrapcheck // wrapped by collect
	}
	e.Operation = audit.Operation(op)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &e.Parameters); err != nil {
			slog.Debug("discarding unreadable audit parameters", "event_id", e.ID, "error", err)
		}
	}
	return nil
}

// Cleanup deletes events older than the retention period and returns how
// many went.
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.retention)
	query, args, err := psq.Delete(eventsTable).Where(sq.Lt{"timestamp": cutoff}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building audit cleanup: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleaning up audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting removed audit events: %w", err)
	}
	return int(n), nil
}

// StartCleanupRoutine runs Cleanup every interval until Close.
func (s *Store) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Cleanup(ctx)
				switch {
				case err != nil:
					slog.Warn("audit cleanup failed", "error", err)
				case n > 0:
					slog.Info("expired audit events removed", "count", n)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine. The database handle belongs to the
// caller.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
	return nil
}

// Verify interface compliance.
var (
	_ audit.Logger         = (*Store)(nil)
	_ audit.MetricsQuerier = (*Store)(nil)
)
