package delegation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "convoca/pkg/domain"
	"convoca/pkg/platform/pg"
	"convoca/pkg/platform/sentinel"
)

// PostgresStore persists delegations in PostgreSQL. The uniqueness invariants
// live in the schema: unique (assembly_id, participant_id) and unique
// (assembly_id, delegate_document).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const delegationColumns = `id, assembly_id, participant_id, delegate_name, delegate_email, delegate_document, shares_delegated, status, created_at, validated_at, validated_by`

func (s *PostgresStore) Create(ctx context.Context, d *Delegation) error {
	query := `
		INSERT INTO delegations (` + delegationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var validatedBy any
	if d.ValidatedBy != nil {
		validatedBy = d.ValidatedBy.String()
	}
	_, err := s.db.ExecContext(ctx, query,
		d.ID.String(), d.AssemblyID.String(), d.ParticipantID.String(),
		d.DelegateName, d.DelegateEmail, d.DelegateDocument,
		d.SharesDelegated, string(d.Status), d.CreatedAt, d.ValidatedAt, validatedBy,
	)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create delegation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, delegationID id.DelegationID) (*Delegation, error) {
	query := `SELECT ` + delegationColumns + ` FROM delegations WHERE id = $1`
	return s.findOne(ctx, query, delegationID.String())
}

func (s *PostgresStore) ListByAssembly(ctx context.Context, assemblyID id.AssemblyID) ([]*Delegation, error) {
	query := `SELECT ` + delegationColumns + ` FROM delegations WHERE assembly_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, assemblyID.String())
	if err != nil {
		return nil, fmt.Errorf("list delegations: %w", err)
	}
	defer rows.Close()

	var out []*Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delegation: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delegations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateValidation(ctx context.Context, d *Delegation) error {
	var validatedBy any
	if d.ValidatedBy != nil {
		validatedBy = d.ValidatedBy.String()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE delegations
		SET status = $2, validated_at = $3, validated_by = $4
		WHERE id = $1
	`, d.ID.String(), string(d.Status), d.ValidatedAt, validatedBy)
	if err != nil {
		return fmt.Errorf("update delegation validation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update delegation rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindApprovedByParticipant(ctx context.Context, assemblyID id.AssemblyID, participantID id.AccountID) (*Delegation, error) {
	query := `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE assembly_id = $1 AND participant_id = $2 AND status = 'approved'
	`
	return s.findOne(ctx, query, assemblyID.String(), participantID.String())
}

func (s *PostgresStore) FindApprovedByDelegateEmail(ctx context.Context, assemblyID id.AssemblyID, email string) (*Delegation, error) {
	query := `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE assembly_id = $1 AND lower(delegate_email) = lower($2) AND status = 'approved'
	`
	return s.findOne(ctx, query, assemblyID.String(), email)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, args ...any) (*Delegation, error) {
	d, err := scanDelegation(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find delegation: %w", err)
	}
	return d, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanDelegation(r row) (*Delegation, error) {
	var (
		d                                  Delegation
		rawID, rawAssembly, rawParticipant string
		rawStatus                          string
		validatedAt                        sql.NullTime
		validatedBy                        sql.NullString
	)
	if err := r.Scan(&rawID, &rawAssembly, &rawParticipant,
		&d.DelegateName, &d.DelegateEmail, &d.DelegateDocument,
		&d.SharesDelegated, &rawStatus, &d.CreatedAt, &validatedAt, &validatedBy); err != nil {
		return nil, err
	}

	delegationID, err := id.ParseDelegationID(rawID)
	if err != nil {
		return nil, err
	}
	assemblyID, err := id.ParseAssemblyID(rawAssembly)
	if err != nil {
		return nil, err
	}
	participantID, err := id.ParseAccountID(rawParticipant)
	if err != nil {
		return nil, err
	}

	d.ID = delegationID
	d.AssemblyID = assemblyID
	d.ParticipantID = participantID
	d.Status = Status(rawStatus)
	if validatedAt.Valid {
		t := validatedAt.Time
		d.ValidatedAt = &t
	}
	if validatedBy.Valid {
		by, err := id.ParseAccountID(validatedBy.String)
		if err != nil {
			return nil, err
		}
		d.ValidatedBy = &by
	}
	return &d, nil
}
