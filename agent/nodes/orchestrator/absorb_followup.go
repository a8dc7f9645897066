package orchestratornode

import (
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
)

// AbsorbFollowup decides whether this turn answers a pending question or
// starts over. A follow-up binds the raw utterance to the first missing
// parameter and re-plans against the original intent, so re-planning stays
// anchored to what the conversation was about. Anything else is a fresh
// request: memory resets from the caller's parameters and the intent is
// recorded for later follow-ups.
func AbsorbFollowup(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	if param, ok := in.Session.AbsorbAnswer(in.Req.Goal, in.Now); ok {
		log.Debug().Str("session_id", in.Session.SessionID).Str("param", param).
			Msg("follow-up answer absorbed into session memory")
		in.Goal = in.Session.OriginalGoal
		in.Objective = in.Session.OriginalObjective
		in.ExpectedOutcome = in.Session.OriginalExpectedOutcome
		return in, nil
	}

	in.Session.BeginFresh(in.Req.Goal, in.Req.Objective, in.Req.ExpectedOutcome, in.Req.Parameters, in.Now)
	in.Goal = in.Req.Goal
	in.Objective = in.Req.Objective
	in.ExpectedOutcome = in.Req.ExpectedOutcome
	return in, nil
}
