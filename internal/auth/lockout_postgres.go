package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresLockoutStore persists lockout records. Pure I/O; the window policy
// lives in the guard, except the increment which resets the count atomically
// when the window has elapsed.
type PostgresLockoutStore struct {
	db     *sql.DB
	window time.Duration
}

func NewPostgresLockoutStore(db *sql.DB, window time.Duration) *PostgresLockoutStore {
	return &PostgresLockoutStore{db: db, window: window}
}

func (s *PostgresLockoutStore) Get(ctx context.Context, identifier string) (*Lockout, error) {
	query := `
		SELECT identifier, failure_count, locked_until, last_failure_at
		FROM login_lockouts
		WHERE identifier = $1
	`
	record, err := scanLockout(s.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lockout: %w", err)
	}
	return record, nil
}

// RecordFailure increments in one atomic statement so concurrent failures
// never lose counts. A failure after the window restarts the count at 1.
func (s *PostgresLockoutStore) RecordFailure(ctx context.Context, identifier string, now time.Time) (*Lockout, error) {
	query := `
		INSERT INTO login_lockouts (identifier, failure_count, locked_until, last_failure_at)
		VALUES ($1, 1, NULL, $2)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = CASE
				WHEN login_lockouts.last_failure_at < $2 - make_interval(secs => $3) THEN 1
				ELSE login_lockouts.failure_count + 1
			END,
			last_failure_at = $2
		RETURNING identifier, failure_count, locked_until, last_failure_at
	`
	record, err := scanLockout(s.db.QueryRowContext(ctx, query, identifier, now, s.window.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("record login failure: %w", err)
	}
	return record, nil
}

func (s *PostgresLockoutStore) SetLock(ctx context.Context, identifier string, until time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE login_lockouts SET locked_until = $2 WHERE identifier = $1`,
		identifier, until,
	)
	if err != nil {
		return fmt.Errorf("set lock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set lock rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("set lock: no record for identifier")
	}
	return nil
}

func (s *PostgresLockoutStore) Clear(ctx context.Context, identifier string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM login_lockouts WHERE identifier = $1`, identifier); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

func scanLockout(r row) (*Lockout, error) {
	var (
		record      Lockout
		lockedUntil sql.NullTime
	)
	if err := r.Scan(&record.Identifier, &record.FailureCount, &lockedUntil, &record.LastFailureAt); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		record.LockedUntil = &lockedUntil.Time
	}
	return &record, nil
}
