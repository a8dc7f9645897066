package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrStateNotFound   = errors.New("session state not found")
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

type SessionStatus string

const (
	SessionNew           SessionStatus = "new"
	SessionAwaitingInput SessionStatus = "awaiting_input"
	SessionComplete      SessionStatus = "complete"
)

// SessionState is the durable per-conversation record: the memory accumulated
// across turns, the original intent the conversation started with, and whether
// the previous turn ended waiting for a missing parameter.
type SessionState struct {
	SessionID string         `json:"session_id"`
	Status    SessionStatus  `json:"status"`
	Memory    map[string]any `json:"memory,omitempty"`

	OriginalGoal            string `json:"original_goal,omitempty"`
	OriginalObjective       string `json:"original_objective,omitempty"`
	OriginalExpectedOutcome string `json:"original_expected_outcome,omitempty"`

	// Awaiting holds the missing parameter names returned by the previous
	// turn; the next caller utterance answers Awaiting[0].
	Awaiting []string `json:"awaiting,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewSessionState(sessionID string, now time.Time) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		Status:    SessionNew,
		Memory:    make(map[string]any, 8),
		UpdatedAt: now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// EnsureMemory makes sure s.Memory is initialized.
func (s *SessionState) EnsureMemory() {
	if s.Memory == nil {
		s.Memory = make(map[string]any, 8)
	}
}

// IsAwaitingInput reports whether the previous turn ended asking the caller
// for a missing parameter.
func (s *SessionState) IsAwaitingInput() bool {
	return s != nil && s.Status == SessionAwaitingInput && len(s.Awaiting) > 0
}

// BeginFresh resets the session for a brand-new request: memory comes from the
// caller-supplied parameters and the original intent is recorded for later
// re-planning.
func (s *SessionState) BeginFresh(goal, objective, expectedOutcome string, parameters map[string]any, now time.Time) {
	s.Memory = make(map[string]any, len(parameters)+4)
	for k, v := range parameters {
		s.Memory[k] = v
	}
	s.OriginalGoal = goal
	s.OriginalObjective = objective
	s.OriginalExpectedOutcome = expectedOutcome
	s.Status = SessionNew
	s.Awaiting = nil
	s.Touch(now)
}

// AbsorbAnswer binds the caller's raw utterance to the first parameter the
// previous turn reported missing.
func (s *SessionState) AbsorbAnswer(utterance string, now time.Time) (string, bool) {
	if !s.IsAwaitingInput() {
		return "", false
	}
	param := s.Awaiting[0]
	s.EnsureMemory()
	s.Memory[param] = strings.TrimSpace(utterance)
	s.Touch(now)
	return param, true
}

// MarkAwaiting records that this turn ended with missing parameters.
func (s *SessionState) MarkAwaiting(missing []string, now time.Time) {
	s.Status = SessionAwaitingInput
	s.Awaiting = missing
	s.Touch(now)
}

// MarkComplete records that a full plan executed.
func (s *SessionState) MarkComplete(now time.Time) {
	s.Status = SessionComplete
	s.Awaiting = nil
	s.Touch(now)
}

func (s *SessionState) Validate() error {
	if s == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if s.Status == SessionAwaitingInput && len(s.Awaiting) == 0 {
		return fmt.Errorf("awaiting_input session %s has no awaited parameters", s.SessionID)
	}
	return nil
}
