// Package audit records every vote attempt, login outcome, and delegation
// change with enough request metadata for later forensics. Events are emitted
// from domain logic, queued on an in-process channel, and persisted by a
// worker; an optional Kafka publisher mirrors them to a topic.
package audit

import (
	"time"

	"github.com/mssola/useragent"

	id "convoca/pkg/domain"
)

// Action labels what happened.
type Action string

const (
	// Voting actions
	ActionVoteAttempted Action = "vote_attempted"
	ActionVoteCast      Action = "vote_cast"
	ActionVoteDenied    Action = "vote_denied"

	// Auth actions
	ActionLoginSucceeded Action = "login_succeeded"
	ActionLoginFailed    Action = "login_failed"
	ActionLoginLocked    Action = "login_locked"

	// Delegation actions
	ActionDelegationCreated   Action = "delegation_created"
	ActionDelegationValidated Action = "delegation_validated"

	// Assembly actions
	ActionAssemblyStateChanged Action = "assembly_state_changed"
	ActionQuestionStateChanged Action = "question_state_changed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time     `json:"timestamp"`
	ActorID    id.AccountID  `json:"actor_id"`
	QuestionID id.QuestionID `json:"question_id,omitempty"`
	Action     Action        `json:"action"`
	Reason     string        `json:"reason,omitempty"`
	IP         string        `json:"ip,omitempty"`
	UserAgent  string        `json:"user_agent,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
}

// NormalizeUserAgent reduces a raw User-Agent header to "Browser/Version (OS)"
// so stored events stay readable and bounded in size. Unparseable strings are
// truncated and kept as-is.
func NormalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		if len(raw) > 120 {
			return raw[:120]
		}
		return raw
	}
	normalized := name
	if version != "" {
		normalized += "/" + version
	}
	if os := ua.OS(); os != "" {
		normalized += " (" + os + ")"
	}
	return normalized
}
