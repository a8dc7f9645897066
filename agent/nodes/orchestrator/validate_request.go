package orchestratornode

import (
	"strings"
	"time"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
)

func ValidateRequest(in contractx.TurnRequest, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	goal := strings.TrimSpace(in.Goal)
	if goal == "" {
		return nil, ErrInvalidGoal
	}

	in.SessionID = sessionID
	in.Goal = goal
	in.Objective = strings.TrimSpace(in.Objective)
	in.ExpectedOutcome = strings.TrimSpace(in.ExpectedOutcome)

	return &GraphState{
		Req: in,
		Now: nowFn().UTC(),
	}, nil
}
