package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"convoca/internal/audit"
	id "convoca/pkg/domain"
)

// Store persists audit events in PostgreSQL. Append-only; events are never
// updated or deleted by the application.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (actor_id, question_id, action, reason, ip, user_agent, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var questionID any
	if !event.QuestionID.IsNil() {
		questionID = event.QuestionID.String()
	}
	_, err := s.db.ExecContext(ctx, query,
		event.ActorID.String(),
		questionID,
		string(event.Action),
		event.Reason,
		event.IP,
		event.UserAgent,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByActor(ctx context.Context, actorID id.AccountID) ([]audit.Event, error) {
	query := `
		SELECT actor_id, question_id, action, reason, ip, user_agent, request_id, occurred_at
		FROM audit_events
		WHERE actor_id = $1
		ORDER BY occurred_at
	`
	rows, err := s.db.QueryContext(ctx, query, actorID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events by actor: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT actor_id, question_id, action, reason, ip, user_agent, request_id, occurred_at
		FROM audit_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event      audit.Event
			actorID    string
			questionID sql.NullString
			action     string
		)
		if err := rows.Scan(&actorID, &questionID, &action, &event.Reason, &event.IP, &event.UserAgent, &event.RequestID, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if parsed, err := uuid.Parse(actorID); err == nil {
			event.ActorID = id.AccountID(parsed)
		}
		if questionID.Valid {
			if parsed, err := uuid.Parse(questionID.String); err == nil {
				event.QuestionID = id.QuestionID(parsed)
			}
		}
		event.Action = audit.Action(action)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
