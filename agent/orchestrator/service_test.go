package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	planx "github.com/tanpawarit/atlas-banking-gateway/agent/plan"
	statex "github.com/tanpawarit/atlas-banking-gateway/agent/state"
	toolx "github.com/tanpawarit/atlas-banking-gateway/agent/tool"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	loadState *statex.SessionState
	loadErr   error
	saveErr   error
	saved     []*statex.SessionState
}

func (f *fakeStore) Load(ctx context.Context, sessionID string) (*statex.SessionState, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.loadState == nil {
		return nil, statex.ErrStateNotFound
	}
	return cloneSessionState(f.loadState), nil
}

func (f *fakeStore) Save(ctx context.Context, st *statex.SessionState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, cloneSessionState(st))
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, sessionID string) error {
	return nil
}

func cloneSessionState(st *statex.SessionState) *statex.SessionState {
	payload, err := json.Marshal(st)
	if err != nil {
		panic(err)
	}
	var out statex.SessionState
	if err := json.Unmarshal(payload, &out); err != nil {
		panic(err)
	}
	out.EnsureMemory()
	return &out
}

type fakePlanner struct {
	resp     contractx.PlannerResponse
	err      error
	calls    int
	lastReqs []contractx.PlannerRequest
}

func (f *fakePlanner) Plan(ctx context.Context, req contractx.PlannerRequest) (contractx.PlannerResponse, error) {
	f.calls++
	f.lastReqs = append(f.lastReqs, req)
	if f.err != nil {
		return contractx.PlannerResponse{}, f.err
	}
	// Steps are mutated downstream, so each call hands out fresh copies.
	out := contractx.PlannerResponse{Fallback: f.resp.Fallback}
	for _, step := range f.resp.Steps {
		inputs := make(map[string]any, len(step.Inputs))
		for k, v := range step.Inputs {
			inputs[k] = v
		}
		out.Steps = append(out.Steps, &planx.Step{Tool: step.Tool, Inputs: inputs})
	}
	return out, nil
}

type fakeSummarizer struct {
	resp  contractx.SummaryResponse
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req contractx.SummaryRequest) (contractx.SummaryResponse, error) {
	f.calls++
	if f.err != nil {
		return contractx.SummaryResponse{}, f.err
	}
	return f.resp, nil
}

type execCall struct {
	tool      string
	apiInputs map[string]any
}

type fakeExecutor struct {
	responses map[string]any
	err       error
	calls     []execCall
}

func (f *fakeExecutor) Execute(ctx context.Context, c *toolx.ToolContract, apiInputs map[string]any) (any, error) {
	copied := make(map[string]any, len(apiInputs))
	for k, v := range apiInputs {
		copied[k] = v
	}
	f.calls = append(f.calls, execCall{tool: c.Name, apiInputs: copied})
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[c.Name]
	if !ok {
		return nil, fmt.Errorf("no canned response for %s", c.Name)
	}
	return resp, nil
}

func testRegistry(t *testing.T) *toolx.Registry {
	t.Helper()
	dir := t.TempDir()
	contracts := map[string]string{
		"get_customer_accounts.json": `{
			"tool_name": "get_customer_accounts",
			"endpoint": "/api/v1/customers/{customerId}/accounts",
			"required_inputs": ["customerId"],
			"output_key": "accountId"
		}`,
		"get_account_balance.json": `{
			"tool_name": "get_account_balance",
			"endpoint": "/api/v1/accounts/{accountId}/balances",
			"required_inputs": ["accountId"]
		}`,
		"get_account_transactions.json": `{
			"tool_name": "get_account_transactions",
			"endpoint": "/api/v1/accounts/{accountId}/transactions",
			"required_inputs": ["accountId"],
			"optional_inputs": [{"name": "narrative", "send_to_api": false}],
			"filtering_rules": [{
				"input_param": "narrative",
				"response_field": "narrative",
				"filter_type": "substring"
			}]
		}`,
	}
	for name, content := range contracts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write contract: %v", err)
		}
	}
	registry, err := toolx.NewRegistry("https://api.example.com")
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if err := registry.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return registry
}

func newTestOrchestrator(t *testing.T, store statex.Store, planner contractx.Planner, summarizer contractx.Summarizer, exec *fakeExecutor) *Orchestrator {
	t.Helper()
	o, err := New(store, testRegistry(t), exec, planner, summarizer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	o.now = func() time.Time { return testNow }
	return o
}

func TestHandleTurnInvalidInput(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, &fakeStore{}, &fakePlanner{}, &fakeSummarizer{}, &fakeExecutor{})

	_, err := o.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "  ", Goal: "balance"})
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	_, err = o.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Goal: "   "})
	if !errors.Is(err, ErrInvalidGoal) {
		t.Fatalf("expected ErrInvalidGoal, got %v", err)
	}
}

func TestHandleTurnAsksForMissingInput(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	planner := &fakePlanner{
		resp: contractx.PlannerResponse{
			Steps: []*planx.Step{{
				Tool:   "get_account_balance",
				Inputs: map[string]any{"accountId": "<accountId>"},
			}},
		},
	}
	exec := &fakeExecutor{}

	o := newTestOrchestrator(t, store, planner, &fakeSummarizer{}, exec)

	resp, err := o.HandleTurn(context.Background(), contractx.TurnRequest{
		SessionID: "s1",
		Goal:      "what is my balance",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if resp.NextAction != contractx.NextActionAskUser {
		t.Fatalf("next action = %q", resp.NextAction)
	}
	if resp.Prompt != "Please provide accountId" {
		t.Fatalf("prompt = %q", resp.Prompt)
	}
	if len(resp.Missing) != 1 || resp.Missing[0] != "accountId" {
		t.Fatalf("missing = %v", resp.Missing)
	}
	if resp.IsFinal {
		t.Fatalf("an ask_user turn is never final")
	}
	if len(exec.calls) != 0 {
		t.Fatalf("nothing should execute with missing inputs, got %d calls", len(exec.calls))
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(store.saved))
	}
	saved := store.saved[0]
	if !saved.IsAwaitingInput() || saved.Awaiting[0] != "accountId" {
		t.Fatalf("session should await accountId: %+v", saved)
	}
	if saved.OriginalGoal != "what is my balance" {
		t.Fatalf("original goal not recorded: %q", saved.OriginalGoal)
	}
}

func TestHandleTurnFollowUpAnswersMissingParam(t *testing.T) {
	t.Parallel()

	awaiting := statex.NewSessionState("s1", testNow)
	awaiting.BeginFresh("what is my balance", "balance", "a number", nil, testNow)
	awaiting.MarkAwaiting([]string{"accountId"}, testNow)
	store := &fakeStore{loadState: awaiting}

	planner := &fakePlanner{
		resp: contractx.PlannerResponse{
			Steps: []*planx.Step{{
				Tool:   "get_account_balance",
				Inputs: map[string]any{"accountId": "<accountId>"},
			}},
		},
	}
	exec := &fakeExecutor{responses: map[string]any{
		"get_account_balance": map[string]any{
			"body": []any{map[string]any{"accountId": "ACC-1", "workingBalance": float64(1250)}},
		},
	}}
	summarizer := &fakeSummarizer{resp: contractx.SummaryResponse{Summary: "Your balance is 1250."}}

	o := newTestOrchestrator(t, store, planner, summarizer, exec)

	// The follow-up utterance is the raw answer, not a new goal.
	resp, err := o.HandleTurn(context.Background(), contractx.TurnRequest{
		SessionID: "s1",
		Goal:      "ACC-1",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if planner.calls != 1 {
		t.Fatalf("planner calls = %d", planner.calls)
	}
	if planner.lastReqs[0].Goal != "what is my balance" {
		t.Fatalf("re-plan must use the original goal, got %q", planner.lastReqs[0].Goal)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("expected one execution, got %d", len(exec.calls))
	}
	if exec.calls[0].apiInputs["accountId"] != "ACC-1" {
		t.Fatalf("absorbed answer should flow into the api inputs: %v", exec.calls[0].apiInputs)
	}
	if !resp.IsFinal || resp.NextAction != contractx.NextActionRespond {
		t.Fatalf("follow-up with all inputs should complete: %+v", resp)
	}
	if resp.FinalSummary != "Your balance is 1250." {
		t.Fatalf("final summary = %q", resp.FinalSummary)
	}

	last := store.saved[len(store.saved)-1]
	if last.Status != statex.SessionComplete {
		t.Fatalf("session should be complete, got %s", last.Status)
	}
}

func TestHandleTurnChainsIdentifierAcrossSteps(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	planner := &fakePlanner{
		resp: contractx.PlannerResponse{
			Steps: []*planx.Step{
				{
					Tool:   "get_customer_accounts",
					Inputs: map[string]any{"customerId": "C-1"},
				},
				{
					Tool:   "get_account_balance",
					Inputs: map[string]any{"accountId": "<accountId>"},
				},
			},
		},
	}
	exec := &fakeExecutor{responses: map[string]any{
		"get_customer_accounts": map[string]any{
			"body": []any{
				map[string]any{"displayName": "Joint savings"},
				map[string]any{"accountId": "ACC-9", "displayName": "Everyday"},
			},
		},
		"get_account_balance": map[string]any{
			"body": []any{map[string]any{"accountId": "ACC-9", "workingBalance": float64(300)}},
		},
	}}
	summarizer := &fakeSummarizer{resp: contractx.SummaryResponse{Summary: "Everyday account holds 300."}}

	o := newTestOrchestrator(t, store, planner, summarizer, exec)

	resp, err := o.HandleTurn(context.Background(), contractx.TurnRequest{
		SessionID: "s1",
		Goal:      "balance of my everyday account",
		Parameters: map[string]any{
			"customerId": "C-1",
		},
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if len(exec.calls) != 2 {
		t.Fatalf("expected two executions, got %d", len(exec.calls))
	}
	if exec.calls[1].apiInputs["accountId"] != "ACC-9" {
		t.Fatalf("step 2 should consume the identifier step 1 produced: %v", exec.calls[1].apiInputs)
	}
	if !resp.IsFinal {
		t.Fatalf("chained plan should complete: %+v", resp)
	}
	if summarizer.calls != 1 {
		t.Fatalf("summarizer calls = %d", summarizer.calls)
	}

	last := store.saved[len(store.saved)-1]
	if last.Memory["accountId"] != "ACC-9" {
		t.Fatalf("chained identifier should persist in session memory: %v", last.Memory)
	}
}

func TestHandleTurnAppliesLocalFilters(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{
		resp: contractx.PlannerResponse{
			Steps: []*planx.Step{{
				Tool: "get_account_transactions",
				Inputs: map[string]any{
					"accountId": "ACC-1",
					"narrative": "coffee",
				},
			}},
		},
	}
	exec := &fakeExecutor{responses: map[string]any{
		"get_account_transactions": map[string]any{
			"body": []any{
				map[string]any{"narrative": "Coffee Shop", "amount": float64(4.5)},
				map[string]any{"narrative": "Grocery", "amount": float64(70)},
			},
		},
	}}

	o := newTestOrchestrator(t, &fakeStore{}, planner, &fakeSummarizer{resp: contractx.SummaryResponse{Summary: "ok"}}, exec)

	resp, err := o.HandleTurn(context.Background(), contractx.TurnRequest{
		SessionID: "s1",
		Goal:      "coffee spending",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if _, ok := exec.calls[0].apiInputs["narrative"]; ok {
		t.Fatalf("local-only inputs must not reach the api: %v", exec.calls[0].apiInputs)
	}

	body, ok := resp.Plan[0].Result["body"].([]any)
	if !ok || len(body) != 1 {
		t.Fatalf("filtered body should keep one record: %v", resp.Plan[0].Result)
	}
	if body[0].(map[string]any)["narrative"] != "Coffee Shop" {
		t.Fatalf("wrong record kept: %v", body[0])
	}
}

func TestHandleTurnPlannerFallback(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{
		resp: contractx.PlannerResponse{Fallback: "I can only help with account enquiries."},
	}
	exec := &fakeExecutor{}
	summarizer := &fakeSummarizer{}
	store := &fakeStore{}

	o := newTestOrchestrator(t, store, planner, summarizer, exec)

	resp, err := o.HandleTurn(context.Background(), contractx.TurnRequest{
		SessionID: "s1",
		Goal:      "tell me a joke",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if !resp.IsFinal || resp.NextAction != contractx.NextActionRespond {
		t.Fatalf("fallback turn should respond: %+v", resp)
	}
	if resp.FinalSummary != "I can only help with account enquiries." {
		t.Fatalf("final summary = %q", resp.FinalSummary)
	}
	if len(exec.calls) != 0 || summarizer.calls != 0 {
		t.Fatalf("no execution or summarization for a fallback plan")
	}
}

func TestHandleTurnSummarizerDegrades(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{
		resp: contractx.PlannerResponse{
			Steps: []*planx.Step{{
				Tool:   "get_account_balance",
				Inputs: map[string]any{"accountId": "ACC-1"},
			}},
		},
	}
	exec := &fakeExecutor{responses: map[string]any{
		"get_account_balance": map[string]any{"body": []any{map[string]any{"workingBalance": float64(10)}}},
	}}
	summarizer := &fakeSummarizer{err: errors.New("model timeout")}

	o := newTestOrchestrator(t, &fakeStore{}, planner, summarizer, exec)

	resp, err := o.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Goal: "balance"})
	if err != nil {
		t.Fatalf("a summarizer failure must not fail the turn: %v", err)
	}
	if resp.FinalSummary != "Summary unavailable." {
		t.Fatalf("final summary = %q", resp.FinalSummary)
	}
	if !resp.IsFinal {
		t.Fatalf("turn should still complete")
	}
}

func TestHandleTurnUpstreamFailureIsFatal(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{
		resp: contractx.PlannerResponse{
			Steps: []*planx.Step{{
				Tool:   "get_account_balance",
				Inputs: map[string]any{"accountId": "ACC-1"},
			}},
		},
	}
	exec := &fakeExecutor{err: fmt.Errorf("%w: status=503", contractx.ErrUpstream)}
	store := &fakeStore{}

	o := newTestOrchestrator(t, store, planner, &fakeSummarizer{}, exec)

	_, err := o.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Goal: "balance"})
	if !errors.Is(err, contractx.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestHandleTurnUnknownToolIsFatal(t *testing.T) {
	t.Parallel()

	planner := &fakePlanner{
		resp: contractx.PlannerResponse{
			Steps: []*planx.Step{{Tool: "transfer_funds", Inputs: map[string]any{}}},
		},
	}

	o := newTestOrchestrator(t, &fakeStore{}, planner, &fakeSummarizer{}, &fakeExecutor{})

	_, err := o.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Goal: "send money"})
	if !errors.Is(err, contractx.ErrContractNotFound) {
		t.Fatalf("expected ErrContractNotFound, got %v", err)
	}
}

func TestHandleTurnFreshRequestResetsMemory(t *testing.T) {
	t.Parallel()

	prior := statex.NewSessionState("s1", testNow)
	prior.BeginFresh("old goal", "", "", map[string]any{"accountId": "OLD-ACC"}, testNow)
	prior.MarkComplete(testNow)
	store := &fakeStore{loadState: prior}

	planner := &fakePlanner{
		resp: contractx.PlannerResponse{
			Steps: []*planx.Step{{
				Tool:   "get_account_balance",
				Inputs: map[string]any{"accountId": "<accountId>"},
			}},
		},
	}
	exec := &fakeExecutor{responses: map[string]any{
		"get_account_balance": map[string]any{"body": []any{}},
	}}

	o := newTestOrchestrator(t, store, planner, &fakeSummarizer{resp: contractx.SummaryResponse{Summary: "ok"}}, exec)

	// A completed session is not awaiting input, so this is a fresh request
	// and the stale accountId must not leak into it.
	resp, err := o.HandleTurn(context.Background(), contractx.TurnRequest{
		SessionID: "s1",
		Goal:      "check balance again",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if resp.NextAction != contractx.NextActionAskUser {
		t.Fatalf("stale memory should not satisfy the new plan: %+v", resp)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("nothing should execute, got %d calls", len(exec.calls))
	}
}
