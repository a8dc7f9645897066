package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	planx "github.com/tanpawarit/atlas-banking-gateway/agent/plan"
	statex "github.com/tanpawarit/atlas-banking-gateway/agent/state"
)

// Complete summarizes the executed plan, marks the session finished, and
// builds the terminal turn response. A summarizer failure never fails the
// turn: the raw step results are still worth returning, so the summary
// degrades instead.
func Complete(ctx context.Context, in *GraphState, summarizer contractx.Summarizer, store statex.Store) (contractx.TurnResponse, error) {
	if in == nil || in.Session == nil {
		return contractx.TurnResponse{}, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	steps := in.Steps
	if steps == nil {
		steps = []*planx.Step{}
	}

	resp := contractx.TurnResponse{
		Plan:       steps,
		NextAction: contractx.NextActionRespond,
		IsFinal:    true,
		SessionID:  in.Session.SessionID,
	}

	if len(in.Steps) == 0 {
		// Planner declined to use any tool; its fallback is the whole answer.
		resp.FinalSummary = in.PlanResp.Fallback
		resp.Fallback = in.PlanResp.Fallback
	} else {
		summary, err := summarizer.Summarize(ctx, contractx.SummaryRequest{
			Steps:           in.Steps,
			ExpectedOutcome: in.ExpectedOutcome,
		})
		if err != nil {
			log.Warn().Err(err).Str("session_id", in.Session.SessionID).Msg("summarizer failed, returning raw results")
			summary = contractx.SummaryResponse{Summary: "Summary unavailable."}
		}
		resp.FinalSummary = summary.Summary
		resp.RawResult = summary.RawResult
		resp.RawText = summary.RawText
	}

	in.Session.MarkComplete(in.Now)
	if err := store.Save(ctx, in.Session); err != nil {
		return contractx.TurnResponse{}, fmt.Errorf("save session %s: %w", in.Session.SessionID, err)
	}

	return resp, nil
}
