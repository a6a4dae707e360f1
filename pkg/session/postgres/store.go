// Package postgres provides PostgreSQL storage for storefront sessions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/storefront/pkg/session"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const sessionsTable = "sessions"

// sessionColumns lists the sessions columns in scan order.
var sessionColumns = []string{
	"id", "cart_id", "auth_token", "created_at", "last_active_at", "expires_at",
}

// live restricts a query to unexpired sessions.
var live = sq.Expr("expires_at > NOW()")

// Store implements session.Store using PostgreSQL.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures the PostgreSQL session store.
type Config struct {
	// TTL is how far Touch extends a session. Defaults to session.DefaultTTL.
	TTL time.Duration
}

// New creates a PostgreSQL session store over db. Schema is managed by the
// migrate package.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}
	return &Store{db: db, ttl: cfg.TTL}
}

func (s *Store) exec(ctx context.Context, b sq.Sqlizer, what string) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", what, err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return res, nil
}

// Create inserts a session row.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	_, err := s.exec(ctx, psq.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(sess.ID, sess.CartID, sess.AuthToken, sess.CreatedAt, sess.LastActiveAt, sess.ExpiresAt),
		"inserting session")
	return err
}

// Get retrieves a session by ID. Returns nil, nil if not found or expired.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	query, args, err := psq.Select(sessionColumns...).
		From(sessionsTable).
		Where(sq.Eq{"id": id}).
		Where(live).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session query: %w", err)
	}

	var sess session.Session
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&sess.ID, &sess.CartID, &sess.AuthToken, &sess.CreatedAt, &sess.LastActiveAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return &sess, nil
}

// Touch marks a live session active and extends it by the store's TTL.
// Expired rows are left for Cleanup.
func (s *Store) Touch(ctx context.Context, id string) error {
	_, err := s.exec(ctx, psq.Update(sessionsTable).
		Set("last_active_at", sq.Expr("NOW()")).
		Set("expires_at", sq.Expr("NOW() + make_interval(secs => ?)", s.ttl.Seconds())).
		Where(sq.Eq{"id": id}).
		Where(live),
		"touching session")
	return err
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.exec(ctx, psq.Delete(sessionsTable).Where(sq.Eq{"id": id}), "deleting session")
	return err
}

// Stats counts live sessions, those with a cart, and those signed in.
func (s *Store) Stats(ctx context.Context) (session.Stats, error) {
	query, args, err := psq.Select(
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE cart_id <> '')",
		"COUNT(*) FILTER (WHERE auth_token <> '')",
	).From(sessionsTable).Where(live).ToSql()
	if err != nil {
		return session.Stats{}, fmt.Errorf("building session stats query: %w", err)
	}

	var st session.Stats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&st.Active, &st.WithCart, &st.Customers); err != nil {
		return session.Stats{}, fmt.Errorf("counting sessions: %w", err)
	}
	return st, nil
}

// Update writes the selected attributes and marks the session active.
func (s *Store) Update(ctx context.Context, id string, u session.Update) error {
	if u.IsEmpty() {
		return nil
	}

	qb := psq.Update(sessionsTable).
		Set("last_active_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})
	if u.CartID != nil {
		qb = qb.Set("cart_id", *u.CartID)
	}
	if u.AuthToken != nil {
		qb = qb.Set("auth_token", *u.AuthToken)
	}
	_, err := s.exec(ctx, qb, "updating session")
	return err
}

// Cleanup deletes expired rows and returns how many went.
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	res, err := s.exec(ctx, psq.Delete(sessionsTable).Where("expires_at <= NOW()"), "cleaning up sessions")
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting removed sessions: %w", err)
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
					slog.Warn("session cleanup failed", "error", err)
				case n > 0:
					slog.Debug("expired sessions removed", "count", n)
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
var _ session.Store = (*Store)(nil)
