package contract

import (
	planx "github.com/tanpawarit/atlas-banking-gateway/agent/plan"
)

// PlannerRequest carries the caller's intent plus everything the planner may
// bind into step inputs. Memory is the accumulated session memory, TurnInputs
// are values supplied on this turn only.
type PlannerRequest struct {
	Goal            string         `json:"goal"`
	Objective       string         `json:"objective"`
	ExpectedOutcome string         `json:"expected_outcome"`
	Memory          map[string]any `json:"memory,omitempty"`
	TurnInputs      map[string]any `json:"turn_inputs,omitempty"`
}

// PlannerResponse is an ordered tool chain. Fallback is a human-readable reply
// used when no tool fits the goal.
type PlannerResponse struct {
	Steps    []*planx.Step `json:"tool_chain"`
	Fallback string        `json:"fallback_response,omitempty"`
}

// SummaryRequest hands the executed steps to the summarizer.
type SummaryRequest struct {
	Steps           []*planx.Step `json:"steps"`
	ExpectedOutcome string        `json:"expected_outcome"`
}

// SummaryResponse mirrors the aggregator output: a final narrative plus
// per-step raw results and per-step one-line texts.
type SummaryResponse struct {
	Summary   string                    `json:"summary"`
	Steps     []string                  `json:"steps,omitempty"`
	RawResult map[string]map[string]any `json:"raw_result,omitempty"`
	RawText   map[string]string         `json:"raw_text,omitempty"`
}

/* ------------------------- Turn request/response ------------------------- */

type TurnRequest struct {
	SessionID       string         `json:"session_id,omitempty"`
	Goal            string         `json:"goal"`
	Objective       string         `json:"objective"`
	ExpectedOutcome string         `json:"expected_outcome"`
	Parameters      map[string]any `json:"parameters,omitempty"`
}

const (
	NextActionAskUser = "ask_user"
	NextActionRespond = "respond_with_result"
)

type TurnResponse struct {
	Plan         []*planx.Step             `json:"plan"`
	NextAction   string                    `json:"next_action"`
	Prompt       string                    `json:"prompt,omitempty"`
	Missing      []string                  `json:"missing,omitempty"`
	Fallback     string                    `json:"fallback_response,omitempty"`
	FinalSummary string                    `json:"final_summary,omitempty"`
	RawResult    map[string]map[string]any `json:"raw_result,omitempty"`
	RawText      map[string]string         `json:"raw_text,omitempty"`
	IsFinal      bool                      `json:"is_final"`
	SessionID    string                    `json:"session_id"`
}

// TurnError is the fatal per-turn shape. The session id is always present so
// the client can retry the same conversation.
type TurnError struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}
