package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
)

func PlanGoal(ctx context.Context, in *GraphState, planner contractx.Planner) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	planResp, err := planner.Plan(ctx, contractx.PlannerRequest{
		Goal:            in.Goal,
		Objective:       in.Objective,
		ExpectedOutcome: in.ExpectedOutcome,
		Memory:          in.Session.Memory,
		TurnInputs:      in.Req.Parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("plan goal: %w", err)
	}

	in.PlanResp = planResp
	return in, nil
}
