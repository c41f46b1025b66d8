package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "convoca/pkg/domain"
	"convoca/pkg/platform/pg"
	"convoca/pkg/platform/sentinel"
)

// PostgresAccountStore persists accounts in PostgreSQL. Pure I/O; the unique
// index on lower(email) backs duplicate detection.
type PostgresAccountStore struct {
	db *sql.DB
}

func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

const accountColumns = `id, email, name, document, shares, role, password_hash, created_at`

func (s *PostgresAccountStore) Create(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID.String(), a.Email, a.Name, a.Document, a.Shares, a.Role, a.PasswordHash, a.CreatedAt,
	)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) FindByID(ctx context.Context, accountID id.AccountID) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, accountID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

func (s *PostgresAccountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return a, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanAccount(r row) (*Account, error) {
	var (
		a     Account
		rawID string
	)
	if err := r.Scan(&rawID, &a.Email, &a.Name, &a.Document, &a.Shares, &a.Role, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(rawID)
	if err != nil {
		return nil, err
	}
	a.ID = accountID
	return &a, nil
}
