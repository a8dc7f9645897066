package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	planx "github.com/tanpawarit/atlas-banking-gateway/agent/plan"
	toolx "github.com/tanpawarit/atlas-banking-gateway/agent/tool"
)

// StepExecutor performs one contract call. Satisfied by *tool.Executor.
type StepExecutor interface {
	Execute(ctx context.Context, c *toolx.ToolContract, apiInputs map[string]any) (any, error)
}

// chainFields are probed, in order, when a contract does not declare an
// output key. They cover the identifier names the upstream banking API uses
// across its record shapes.
var chainFields = []string{"account", "accountId", "arrangementId"}

// legacyChainKey is the placeholder name older plans emit for a value that a
// previous step will produce.
const legacyChainKey = "willbepopulated"

// ExecuteSteps runs the prepared plan in order. Before each step after the
// first, identifiers extracted from the previous step's filtered records are
// offered to placeholder resolution, so a step may consume what its
// predecessor produced. Filtered results are attached to each step in place.
func ExecuteSteps(ctx context.Context, in *GraphState, registry *toolx.Registry, exec StepExecutor) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	bindings := map[string]any{}

	for i, step := range in.Steps {
		contract, err := registry.Resolve(step.Tool)
		if err != nil {
			return nil, err
		}

		if i > 0 {
			lookup := make(map[string]any, len(in.Session.Memory)+len(bindings))
			for k, v := range in.Session.Memory {
				lookup[k] = v
			}
			for k, v := range bindings {
				lookup[k] = v
			}
			step.Inputs = planx.ResolveInputs(step.Inputs, lookup, in.Req.Parameters)
			planx.Classify(contract, step.Inputs).ApplyTo(step)
		}

		if len(step.Missing) > 0 {
			return nil, fmt.Errorf("%w: step %d (%s) still missing %v at execution", contractx.ErrRequiredInputMissing, i+1, step.Tool, step.Missing)
		}

		raw, err := exec.Execute(ctx, contract, step.APIInputs)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Tool, err)
		}

		filtered := toolx.ApplyFilters(raw, contract, step.LocalFilters)
		step.Result = map[string]any{"body": filtered.Body}

		if key, value, ok := extractChainValue(contract, filtered.Body); ok {
			bindings[key] = value
			bindings[legacyChainKey] = value
			if contract.OutputKey != "" {
				bindings[contract.OutputKey] = value
			}
			log.Debug().
				Str("tool", contract.Name).
				Str("binding", key).
				Msg("chained identifier extracted")
		}

		in.Session.EnsureMemory()
		for k, v := range step.APIInputs {
			in.Session.Memory[k] = v
		}
	}

	in.Session.EnsureMemory()
	for k, v := range bindings {
		if k == legacyChainKey {
			continue
		}
		in.Session.Memory[k] = v
	}

	return in, nil
}

// extractChainValue pulls a forwardable identifier out of the filtered
// records. Records are scanned in order and the first identifier found
// anywhere in the list wins; within a record the contract's declared output
// key takes precedence over the conventional identifier fields.
func extractChainValue(c *toolx.ToolContract, body []any) (string, any, bool) {
	for _, item := range body {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if c.OutputKey != "" {
			if v, ok := record[c.OutputKey]; ok && v != nil {
				return c.OutputKey, v, true
			}
		}
		for _, field := range chainFields {
			if v, ok := record[field]; ok && v != nil {
				return field, v, true
			}
		}
	}
	return "", nil, false
}
