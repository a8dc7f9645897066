package plan

// Step is one tool invocation inside a plan. The planner creates it with a raw
// tool name and symbolic inputs; the pipeline resolves placeholders, splits the
// inputs into API-bound parameters and local filters, and attaches the result
// after execution.
type Step struct {
	Tool         string         `json:"tool"`
	Inputs       map[string]any `json:"inputs,omitempty"`
	APIInputs    map[string]any `json:"api_inputs,omitempty"`
	LocalFilters map[string]any `json:"local_filters,omitempty"`
	Missing      []string       `json:"missing,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
}

// EnsureInputs makes sure s.Inputs is initialized.
func (s *Step) EnsureInputs() {
	if s.Inputs == nil {
		s.Inputs = make(map[string]any, 8)
	}
}

// SetDefault stores val under key only if the key is absent. Plan-supplied
// values always win over injected memory.
func (s *Step) SetDefault(key string, val any) {
	s.EnsureInputs()
	if _, ok := s.Inputs[key]; !ok {
		s.Inputs[key] = val
	}
}
