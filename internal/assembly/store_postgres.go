package assembly

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "convoca/pkg/domain"
	"convoca/pkg/platform/pg"
	"convoca/pkg/platform/sentinel"
)

// PostgresStore persists assemblies and rosters in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *Assembly) error {
	query := `
		INSERT INTO assemblies (id, title, description, start_time, end_time, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID.String(), a.Title, a.Description, a.StartTime, a.EndTime, string(a.Status), a.CreatedBy.String(), a.CreatedAt,
	)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create assembly: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, assemblyID id.AssemblyID) (*Assembly, error) {
	query := `
		SELECT id, title, description, start_time, end_time, status, created_by, created_at
		FROM assemblies
		WHERE id = $1
	`
	a, err := scanAssembly(s.db.QueryRowContext(ctx, query, assemblyID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find assembly: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Assembly, error) {
	query := `
		SELECT id, title, description, start_time, end_time, status, created_by, created_at
		FROM assemblies
		ORDER BY start_time DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list assemblies: %w", err)
	}
	defer rows.Close()

	var out []*Assembly
	for rows.Next() {
		a, err := scanAssembly(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assembly: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assemblies: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, assemblyID id.AssemblyID, status Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE assemblies SET status = $2 WHERE id = $1`,
		assemblyID.String(), string(status),
	)
	if err != nil {
		return fmt.Errorf("update assembly status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assembly status rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Enroll(ctx context.Context, p *Participant) error {
	query := `
		INSERT INTO assembly_participants (assembly_id, account_id, shares, enrolled_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.AssemblyID.String(), p.AccountID.String(), p.Shares, p.EnrolledAt,
	)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("enroll participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindParticipant(ctx context.Context, assemblyID id.AssemblyID, accountID id.AccountID) (*Participant, error) {
	query := `
		SELECT assembly_id, account_id, shares, enrolled_at
		FROM assembly_participants
		WHERE assembly_id = $1 AND account_id = $2
	`
	p, err := scanParticipant(s.db.QueryRowContext(ctx, query, assemblyID.String(), accountID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find participant: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListRoster(ctx context.Context, assemblyID id.AssemblyID) ([]*Participant, error) {
	query := `
		SELECT assembly_id, account_id, shares, enrolled_at
		FROM assembly_participants
		WHERE assembly_id = $1
		ORDER BY enrolled_at
	`
	rows, err := s.db.QueryContext(ctx, query, assemblyID.String())
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	var out []*Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return out, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanAssembly(r row) (*Assembly, error) {
	var (
		a                   Assembly
		rawID, rawCreatedBy string
		rawStatus           string
	)
	if err := r.Scan(&rawID, &a.Title, &a.Description, &a.StartTime, &a.EndTime, &rawStatus, &rawCreatedBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	assemblyID, err := id.ParseAssemblyID(rawID)
	if err != nil {
		return nil, err
	}
	createdBy, err := id.ParseAccountID(rawCreatedBy)
	if err != nil {
		return nil, err
	}
	a.ID = assemblyID
	a.CreatedBy = createdBy
	a.Status = Status(rawStatus)
	return &a, nil
}

func scanParticipant(r row) (*Participant, error) {
	var (
		p                    Participant
		rawAssembly, rawAcct string
	)
	if err := r.Scan(&rawAssembly, &rawAcct, &p.Shares, &p.EnrolledAt); err != nil {
		return nil, err
	}
	assemblyID, err := id.ParseAssemblyID(rawAssembly)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(rawAcct)
	if err != nil {
		return nil, err
	}
	p.AssemblyID = assemblyID
	p.AccountID = accountID
	return &p, nil
}
