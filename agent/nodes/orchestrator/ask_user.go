package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	planx "github.com/tanpawarit/atlas-banking-gateway/agent/plan"
	statex "github.com/tanpawarit/atlas-banking-gateway/agent/state"
)

const fallbackPrompt = "Could you help me with the required detail?"

// AskUser builds the continuation turn for a plan that cannot run yet. The
// session is parked in awaiting-input with the outstanding parameter names so
// the next utterance can be absorbed as an answer, and the caller receives a
// prompt naming the first missing parameter.
func AskUser(ctx context.Context, in *GraphState, store statex.Store) (contractx.TurnResponse, error) {
	if in == nil || in.Session == nil {
		return contractx.TurnResponse{}, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	in.Session.MarkAwaiting(in.Missing, in.Now)
	if err := store.Save(ctx, in.Session); err != nil {
		return contractx.TurnResponse{}, fmt.Errorf("save session %s: %w", in.Session.SessionID, err)
	}

	fallback := in.PlanResp.Fallback
	if fallback == "" {
		fallback = fallbackPrompt
	}

	log.Info().
		Str("session_id", in.Session.SessionID).
		Strs("missing", in.Missing).
		Msg("plan paused awaiting user input")

	return contractx.TurnResponse{
		Plan:       []*planx.Step{},
		NextAction: contractx.NextActionAskUser,
		Prompt:     fmt.Sprintf("Please provide %s", in.Missing[0]),
		Missing:    in.Missing,
		Fallback:   fallback,
		IsFinal:    false,
		SessionID:  in.Session.SessionID,
	}, nil
}
