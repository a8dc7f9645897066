package orchestratornode

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	planx "github.com/tanpawarit/atlas-banking-gateway/agent/plan"
	toolx "github.com/tanpawarit/atlas-banking-gateway/agent/tool"
)

// PrepareSteps turns the raw plan into validated, classified steps: tool
// names are resolved to canonical contracts, session memory and registry-wide
// local-only values are injected, placeholders are substituted, and every
// step's inputs are split into api inputs and local filters. A tool the
// resolver cannot map is fatal for the whole plan.
//
// Placeholders in steps after the first are chain candidates: an earlier
// step's output may satisfy them, so they stay symbolic here and are neither
// nilled out nor reported as missing. They get a final resolution pass right
// before their step executes.
func PrepareSteps(in *GraphState, registry *toolx.Registry) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	steps := in.PlanResp.Steps
	planx.InjectMemory(steps, in.Session.Memory)

	var missing []string
	seen := make(map[string]struct{})

	for i, step := range steps {
		contract, err := registry.Resolve(step.Tool)
		if err != nil {
			return nil, err
		}
		if contract.Name != step.Tool {
			log.Debug().Str("requested", step.Tool).Str("canonical", contract.Name).Msg("tool name resolved")
			step.Tool = contract.Name
		}

		planx.InjectLocalOnly(step, registry.LocalOnlyKeys(), in.Req.Parameters)

		raw := step.Inputs
		resolved := planx.ResolveInputs(raw, in.Session.Memory, in.Req.Parameters)
		deferred := map[string]struct{}{}
		if i > 0 {
			for k, v := range raw {
				s, isString := v.(string)
				if !isString {
					continue
				}
				if _, isPlaceholder := planx.PlaceholderName(strings.TrimSpace(s)); isPlaceholder && resolved[k] == nil {
					resolved[k] = s
					deferred[k] = struct{}{}
				}
			}
		}
		step.Inputs = resolved

		cls := planx.Classify(contract, resolved)
		if len(deferred) > 0 {
			kept := cls.Missing[:0]
			for _, name := range cls.Missing {
				if _, ok := deferred[name]; !ok {
					kept = append(kept, name)
				}
			}
			cls.Missing = kept
		}
		cls.ApplyTo(step)

		for _, name := range cls.Missing {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			missing = append(missing, name)
		}
	}

	in.Steps = steps
	in.Missing = missing
	return in, nil
}
