package voting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "convoca/pkg/domain"
	"convoca/pkg/platform/pg"
	"convoca/pkg/platform/sentinel"
)

// PostgresQuestionStore persists questions in PostgreSQL.
type PostgresQuestionStore struct {
	db *sql.DB
}

func NewPostgresQuestionStore(db *sql.DB) *PostgresQuestionStore {
	return &PostgresQuestionStore{db: db}
}

const questionColumns = `id, assembly_id, text, kind, options, start_time, end_time, status, created_at`

func (s *PostgresQuestionStore) Create(ctx context.Context, q *Question) error {
	query := `
		INSERT INTO questions (` + questionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		q.ID.String(), q.AssemblyID.String(), q.Text, string(q.Kind), pq.Array(q.Options),
		q.StartTime, q.EndTime, string(q.Status), q.CreatedAt,
	)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

func (s *PostgresQuestionStore) FindByID(ctx context.Context, questionID id.QuestionID) (*Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`
	q, err := scanQuestion(s.db.QueryRowContext(ctx, query, questionID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find question: %w", err)
	}
	return q, nil
}

func (s *PostgresQuestionStore) ListByAssembly(ctx context.Context, assemblyID id.AssemblyID) ([]*Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE assembly_id = $1 ORDER BY start_time`
	rows, err := s.db.QueryContext(ctx, query, assemblyID.String())
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []*Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

func (s *PostgresQuestionStore) UpdateStatus(ctx context.Context, questionID id.QuestionID, status QuestionStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE questions SET status = $2 WHERE id = $1`,
		questionID.String(), string(status),
	)
	if err != nil {
		return fmt.Errorf("update question status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update question status rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresBallotStore persists ballots. The unique index on
// (question_id, effective_voter_id) is the duplicate-vote arbiter; a second
// insert surfaces as sentinel.ErrConflict.
type PostgresBallotStore struct {
	db *sql.DB
}

func NewPostgresBallotStore(db *sql.DB) *PostgresBallotStore {
	return &PostgresBallotStore{db: db}
}

const ballotColumns = `id, question_id, effective_voter_id, selected_options, weight, via_delegation, delegation_id, cast_at`

func (s *PostgresBallotStore) Insert(ctx context.Context, b *Ballot) error {
	var delegationID sql.NullString
	if b.DelegationID != nil {
		delegationID = sql.NullString{String: b.DelegationID.String(), Valid: true}
	}
	query := `
		INSERT INTO ballots (` + ballotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ID.String(), b.QuestionID.String(), b.EffectiveVoterID.String(), pq.Array(b.SelectedOptions),
		b.Weight, b.ViaDelegation, delegationID, b.CastAt,
	)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ballot: %w", err)
	}
	return nil
}

func (s *PostgresBallotStore) Exists(ctx context.Context, questionID id.QuestionID, effectiveVoterID id.AccountID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ballots WHERE question_id = $1 AND effective_voter_id = $2)`,
		questionID.String(), effectiveVoterID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ballot exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresBallotStore) ListByQuestion(ctx context.Context, questionID id.QuestionID) ([]*Ballot, error) {
	query := `SELECT ` + ballotColumns + ` FROM ballots WHERE question_id = $1 ORDER BY cast_at`
	rows, err := s.db.QueryContext(ctx, query, questionID.String())
	if err != nil {
		return nil, fmt.Errorf("list ballots: %w", err)
	}
	defer rows.Close()

	var out []*Ballot
	for rows.Next() {
		b, err := scanBallot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ballots: %w", err)
	}
	return out, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanQuestion(r row) (*Question, error) {
	var (
		q                  Question
		rawID, rawAssembly string
		rawKind, rawStatus string
	)
	if err := r.Scan(&rawID, &rawAssembly, &q.Text, &rawKind, pq.Array(&q.Options), &q.StartTime, &q.EndTime, &rawStatus, &q.CreatedAt); err != nil {
		return nil, err
	}
	questionID, err := id.ParseQuestionID(rawID)
	if err != nil {
		return nil, err
	}
	assemblyID, err := id.ParseAssemblyID(rawAssembly)
	if err != nil {
		return nil, err
	}
	q.ID = questionID
	q.AssemblyID = assemblyID
	q.Kind = QuestionKind(rawKind)
	q.Status = QuestionStatus(rawStatus)
	return &q, nil
}

func scanBallot(r row) (*Ballot, error) {
	var (
		b                            Ballot
		rawID, rawQuestion, rawVoter string
		rawDelegation                sql.NullString
	)
	if err := r.Scan(&rawID, &rawQuestion, &rawVoter, pq.Array(&b.SelectedOptions), &b.Weight, &b.ViaDelegation, &rawDelegation, &b.CastAt); err != nil {
		return nil, err
	}
	ballotID, err := id.ParseBallotID(rawID)
	if err != nil {
		return nil, err
	}
	questionID, err := id.ParseQuestionID(rawQuestion)
	if err != nil {
		return nil, err
	}
	voterID, err := id.ParseAccountID(rawVoter)
	if err != nil {
		return nil, err
	}
	b.ID = ballotID
	b.QuestionID = questionID
	b.EffectiveVoterID = voterID
	if rawDelegation.Valid {
		delegationID, err := id.ParseDelegationID(rawDelegation.String)
		if err != nil {
			return nil, err
		}
		b.DelegationID = &delegationID
	}
	return &b, nil
}
