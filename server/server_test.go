package server

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/ut"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	orchestratorx "github.com/tanpawarit/atlas-banking-gateway/agent/orchestrator"
	statex "github.com/tanpawarit/atlas-banking-gateway/agent/state"
	toolx "github.com/tanpawarit/atlas-banking-gateway/agent/tool"
)

type fallbackPlanner struct{}

func (fallbackPlanner) Plan(ctx context.Context, req contractx.PlannerRequest) (contractx.PlannerResponse, error) {
	return contractx.PlannerResponse{Fallback: "I handle account enquiries only."}, nil
}

type noopSummarizer struct{}

func (noopSummarizer) Summarize(ctx context.Context, req contractx.SummaryRequest) (contractx.SummaryResponse, error) {
	return contractx.SummaryResponse{Summary: "ok"}, nil
}

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, c *toolx.ToolContract, apiInputs map[string]any) (any, error) {
	return map[string]any{"body": []any{}}, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	contract := `{
		"tool_name": "get_account_balance",
		"description": "Retrieve the working balance for one account.",
		"endpoint": "/api/v1/accounts/{accountId}/balances",
		"required_inputs": ["accountId"]
	}`
	if err := os.WriteFile(filepath.Join(dir, "balance.json"), []byte(contract), 0o644); err != nil {
		t.Fatalf("write contract: %v", err)
	}

	registry, err := toolx.NewRegistry("https://api.example.com")
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if err := registry.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	orch, err := orchestratorx.New(statex.NewMemoryStore(), registry, noopExecutor{}, fallbackPlanner{}, noopSummarizer{})
	if err != nil {
		t.Fatalf("orchestrator.New() error = %v", err)
	}

	srv, err := New(Config{Host: "127.0.0.1", Port: 0}, orch, registry, nil)
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}
	return srv
}

func TestProcessMintsSessionID(t *testing.T) {
	srv := testServer(t)

	body := []byte(`{"goal": "what can you do"}`)
	w := ut.PerformRequest(srv.hertz.Engine, "POST", "/process", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("POST /process status = %d, body = %s", got, w.Result().Body())
	}

	var resp contractx.TurnResponse
	if err := json.Unmarshal(w.Result().Body(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatalf("a session id should be minted when the caller sends none")
	}
	if !resp.IsFinal || resp.FinalSummary != "I handle account enquiries only." {
		t.Fatalf("unexpected turn response: %+v", resp)
	}
}

func TestProcessRejectsBadJSON(t *testing.T) {
	srv := testServer(t)

	body := []byte(`{not json`)
	w := ut.PerformRequest(srv.hertz.Engine, "POST", "/process", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	if got := w.Result().StatusCode(); got != 400 {
		t.Fatalf("bad json status = %d", got)
	}
}

func TestProcessRejectsEmptyGoal(t *testing.T) {
	srv := testServer(t)

	body := []byte(`{"session_id": "s1", "goal": "   "}`)
	w := ut.PerformRequest(srv.hertz.Engine, "POST", "/process", &ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	if got := w.Result().StatusCode(); got != 400 {
		t.Fatalf("empty goal status = %d", got)
	}

	var turnErr contractx.TurnError
	if err := json.Unmarshal(w.Result().Body(), &turnErr); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if turnErr.SessionID != "s1" {
		t.Fatalf("error payload should echo the session id: %+v", turnErr)
	}
}

func TestCapabilities(t *testing.T) {
	srv := testServer(t)

	w := ut.PerformRequest(srv.hertz.Engine, "GET", "/capabilities", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /capabilities status = %d", got)
	}

	var payload struct {
		Tools []capability `json:"tools"`
	}
	if err := json.Unmarshal(w.Result().Body(), &payload); err != nil {
		t.Fatalf("unmarshal capabilities: %v", err)
	}
	if len(payload.Tools) != 1 {
		t.Fatalf("expected one tool, got %d", len(payload.Tools))
	}
	got := payload.Tools[0]
	if got.Name != "get_account_balance" {
		t.Fatalf("tool name = %q", got.Name)
	}
	if len(got.RequiredInputs) != 1 || got.RequiredInputs[0] != "accountId" {
		t.Fatalf("required inputs = %v", got.RequiredInputs)
	}
}
