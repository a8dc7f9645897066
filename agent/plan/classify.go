package plan

import (
	"strings"
)

// ContractSpec is the slice of a tool contract the classifier needs.
type ContractSpec interface {
	RequiredNames() []string
	APIAllowed() map[string]struct{}
}

// Classification is the outcome of splitting a step's resolved inputs.
type Classification struct {
	APIInputs    map[string]any
	LocalFilters map[string]any
	Missing      []string
}

// Classify splits resolved inputs into API-bound parameters and local-only
// filter values, and computes which required inputs are still missing. A value
// is missing when it is absent, nil, an empty string after trimming, or a
// residual unresolved placeholder.
func Classify(spec ContractSpec, resolved map[string]any) Classification {
	allowed := spec.APIAllowed()

	api := make(map[string]any, len(resolved))
	local := make(map[string]any)
	for k, v := range resolved {
		if _, ok := allowed[k]; ok {
			api[k] = v
		} else {
			local[k] = v
		}
	}

	var missing []string
	for _, name := range spec.RequiredNames() {
		if isAbsent(api[name]) {
			missing = append(missing, name)
		}
	}

	return Classification{APIInputs: api, LocalFilters: local, Missing: missing}
}

// ApplyTo writes the classification back onto the step.
func (c Classification) ApplyTo(step *Step) {
	if step == nil {
		return
	}
	step.APIInputs = c.APIInputs
	step.LocalFilters = c.LocalFilters
	step.Missing = c.Missing
}

// InjectLocalOnly copies caller-supplied values whose key is a known
// local-only optional input (anywhere in the registry) into the step, without
// overwriting values the plan already set. This lets filter-only values such
// as a date range flow in without the planner naming them for the tool.
func InjectLocalOnly(step *Step, localOnlyKeys map[string]struct{}, turnInputs map[string]any) {
	if step == nil || len(localOnlyKeys) == 0 || len(turnInputs) == 0 {
		return
	}
	for key := range localOnlyKeys {
		if val, ok := turnInputs[key]; ok {
			step.SetDefault(key, val)
		}
	}
}

// InjectMemory seeds every step with session memory values, never overwriting
// what the plan supplied.
func InjectMemory(steps []*Step, memory map[string]any) {
	for _, step := range steps {
		if step == nil {
			continue
		}
		for k, v := range memory {
			step.SetDefault(k, v)
		}
	}
}

func isAbsent(v any) bool {
	switch tv := v.(type) {
	case nil:
		return true
	case string:
		trimmed := strings.TrimSpace(tv)
		if trimmed == "" {
			return true
		}
		_, isPlaceholder := PlaceholderName(trimmed)
		return isPlaceholder
	default:
		return false
	}
}
