package orchestratornode

import (
	"errors"
	"time"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	planx "github.com/tanpawarit/atlas-banking-gateway/agent/plan"
	statex "github.com/tanpawarit/atlas-banking-gateway/agent/state"
)

var (
	ErrInvalidGoal    = errors.New("goal is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

// GraphState is the single value threaded through the turn pipeline.
type GraphState struct {
	Req contractx.TurnRequest
	Now time.Time

	Session *statex.SessionState

	// Effective intent for this turn: the caller's on a fresh request, the
	// session's recorded originals on a follow-up.
	Goal            string
	Objective       string
	ExpectedOutcome string

	PlanResp contractx.PlannerResponse
	Steps    []*planx.Step
	Missing  []string
}
