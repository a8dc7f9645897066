package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	nodex "github.com/tanpawarit/atlas-banking-gateway/agent/nodes/orchestrator"
)

func (o *Orchestrator) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[contractx.TurnRequest, contractx.TurnResponse], error) {
	graph := compose.NewGraph[contractx.TurnRequest, contractx.TurnResponse]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in contractx.TurnRequest) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_or_create_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateState(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_or_create_state: %w", err)
	}

	if err := graph.AddLambdaNode("absorb_followup",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AbsorbFollowup(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node absorb_followup: %w", err)
	}

	if err := graph.AddLambdaNode("plan_goal",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PlanGoal(ctx, in, o.planner)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node plan_goal: %w", err)
	}

	if err := graph.AddLambdaNode("prepare_steps",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PrepareSteps(in, o.registry)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node prepare_steps: %w", err)
	}

	if err := graph.AddLambdaNode("ask_user",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (contractx.TurnResponse, error) {
			return nodex.AskUser(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node ask_user: %w", err)
	}

	if err := graph.AddLambdaNode("execute_steps",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExecuteSteps(ctx, in, o.registry, o.executor)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute_steps: %w", err)
	}

	if err := graph.AddLambdaNode("complete",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (contractx.TurnResponse, error) {
			return nodex.Complete(ctx, in, o.summarizer, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node complete: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: turn graph state is nil", contractx.ErrValidation)
			}
			if len(in.Missing) > 0 {
				return "ask_user", nil
			}
			return "execute_steps", nil
		},
		map[string]bool{
			"ask_user":      true,
			"execute_steps": true,
		},
	)

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_or_create_state"},
		{"load_or_create_state", "absorb_followup"},
		{"absorb_followup", "plan_goal"},
		{"plan_goal", "prepare_steps"},
		{"execute_steps", "complete"},
		{"ask_user", compose.END},
		{"complete", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	if err := graph.AddBranch("prepare_steps", branch); err != nil {
		return nil, fmt.Errorf("add turn branch: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
