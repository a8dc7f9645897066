// Package planner provides the production Planner: an OpenRouter-hosted chat
// model prompted with the loaded tool contracts and asked for a structured
// tool chain.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	llmx "github.com/tanpawarit/atlas-banking-gateway/agent/llm"
	planx "github.com/tanpawarit/atlas-banking-gateway/agent/plan"
	toolx "github.com/tanpawarit/atlas-banking-gateway/agent/tool"
)

type LLMPlanner struct {
	runner   compose.Runnable[map[string]any, plannerLLMOutput]
	registry *toolx.Registry
}

type plannerLLMOutput struct {
	ToolChain []plannerLLMStep `json:"tool_chain"`
	Fallback  string           `json:"fallback_response,omitempty"`
}

type plannerLLMStep struct {
	Tool   string         `json:"tool"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

func New(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	registry *toolx.Registry,
) (*LLMPlanner, error) {
	runner, err := llmx.CompileStructuredGraph[plannerLLMOutput](ctx, chatModel, systemPrompt, "planner.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile planner graph: %v", contractx.ErrModelInvoke, err)
	}
	return &LLMPlanner{runner: runner, registry: registry}, nil
}

func (p *LLMPlanner) Plan(ctx context.Context, req contractx.PlannerRequest) (contractx.PlannerResponse, error) {
	if strings.TrimSpace(req.Goal) == "" {
		return contractx.PlannerResponse{}, fmt.Errorf("%w: goal is required", contractx.ErrValidation)
	}

	payload := map[string]any{
		"goal":             req.Goal,
		"objective":        req.Objective,
		"expected_outcome": req.ExpectedOutcome,
		"memory":           req.Memory,
		"tools":            describeTools(p.registry),
	}
	inputBytes, err := json.Marshal(payload)
	if err != nil {
		return contractx.PlannerResponse{}, fmt.Errorf("%w: marshal planner payload: %v", contractx.ErrValidation, err)
	}

	out, err := p.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return contractx.PlannerResponse{}, fmt.Errorf("%w: planner invoke: %v", contractx.ErrModelInvoke, err)
	}

	steps := make([]*planx.Step, 0, len(out.ToolChain))
	for _, s := range out.ToolChain {
		name := strings.TrimSpace(s.Tool)
		if name == "" {
			return contractx.PlannerResponse{}, fmt.Errorf("%w: plan step without tool name", contractx.ErrSchemaViolation)
		}
		inputs := s.Inputs
		if inputs == nil {
			inputs = map[string]any{}
		}
		steps = append(steps, &planx.Step{Tool: name, Inputs: inputs})
	}

	fallback := strings.TrimSpace(out.Fallback)
	if len(steps) == 0 && fallback == "" {
		return contractx.PlannerResponse{}, fmt.Errorf("%w: empty tool chain without fallback", contractx.ErrPlanning)
	}

	return contractx.PlannerResponse{Steps: steps, Fallback: fallback}, nil
}

// describeTools renders the registry in the compact shape the planner prompt
// expects: enough to choose a tool and name its parameters, nothing more.
func describeTools(registry *toolx.Registry) []map[string]any {
	names := registry.Names()
	tools := make([]map[string]any, 0, len(names))
	for _, name := range names {
		c, ok := registry.Get(name)
		if !ok {
			continue
		}
		optional := make([]map[string]any, 0, len(c.OptionalInputs))
		for _, opt := range c.OptionalInputs {
			optional = append(optional, map[string]any{
				"name":        opt.Name,
				"send_to_api": opt.SendToAPI,
			})
		}
		tools = append(tools, map[string]any{
			"tool_name":       c.Name,
			"description":     c.Description,
			"endpoint":        c.Path,
			"required_inputs": c.RequiredInputs,
			"optional_inputs": optional,
		})
	}
	return tools
}
