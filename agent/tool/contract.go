package tool

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Filter types understood by the local filter engine.
const (
	FilterExact          = "exact"
	FilterSubstring      = "substring"
	FilterFuzzySubstring = "fuzzy_substring"
	FilterNumericalFuzzy = "numerical_fuzzy"
	FilterDateFrom       = "date_from"
	FilterDateTo         = "date_to"
)

// Fuzzy scoring methods.
const (
	MethodRatio     = "ratio"
	MethodTokenSort = "token_sort"
	MethodPartial   = "partial"
)

const (
	defaultFuzzyThreshold   = 70.0
	defaultNumericTolerance = 0.2
)

type OptionalInput struct {
	Name      string `json:"name"`
	SendToAPI bool   `json:"send_to_api"`
}

// FilterRule is one declarative narrowing predicate, applied to the response
// after retrieval for criteria the backend itself cannot filter.
type FilterRule struct {
	InputParam    string  `json:"input_param"`
	ResponseField string  `json:"response_field"`
	FilterType    string  `json:"filter_type"`
	CaseSensitive bool    `json:"case_sensitive,omitempty"`
	Threshold     float64 `json:"threshold,omitempty"`
	Method        string  `json:"method,omitempty"`
	Tolerance     float64 `json:"tolerance,omitempty"`
	DateFormat    string  `json:"date_format,omitempty"`
}

func (r FilterRule) threshold() float64 {
	if r.Threshold > 0 {
		return r.Threshold
	}
	return defaultFuzzyThreshold
}

func (r FilterRule) tolerance() float64 {
	if r.Tolerance > 0 {
		return r.Tolerance
	}
	return defaultNumericTolerance
}

func (r FilterRule) method() string {
	switch r.Method {
	case MethodRatio, MethodTokenSort:
		return r.Method
	default:
		return MethodPartial
	}
}

// ToolContract declares one callable backend operation: its endpoint template,
// which inputs travel to the API, and which narrow the response locally.
type ToolContract struct {
	Name           string          `json:"tool_name"`
	Description    string          `json:"description,omitempty"`
	Endpoint       string          `json:"endpoint"`
	RequiredInputs []string        `json:"required_inputs"`
	OptionalInputs []OptionalInput `json:"optional_inputs,omitempty"`
	FilteringRules []FilterRule    `json:"filtering_rules,omitempty"`

	// OutputKey names the record field this tool exports to later plan steps.
	// When empty, conventional identifier fields are probed instead.
	OutputKey string `json:"output_key,omitempty"`

	RequestSchemaRaw   json.RawMessage `json:"request_schema,omitempty"`
	ResponseSchemaRaw  json.RawMessage `json:"response_schema,omitempty"`
	RequestSchemaFile  string          `json:"request_schema_file,omitempty"`
	ResponseSchemaFile string          `json:"response_schema_file,omitempty"`

	// Computed at load time.
	Path           string             `json:"-"`
	FullEndpoint   string             `json:"-"`
	RequestSchema  *jsonschema.Schema `json:"-"`
	ResponseSchema *jsonschema.Schema `json:"-"`
}

// RequiredNames returns the ordered required input names.
func (c *ToolContract) RequiredNames() []string {
	return c.RequiredInputs
}

// APIAllowed is the set of input names forwarded to the backend: every
// required input plus optional inputs flagged send_to_api.
func (c *ToolContract) APIAllowed() map[string]struct{} {
	allowed := make(map[string]struct{}, len(c.RequiredInputs)+len(c.OptionalInputs))
	for _, name := range c.RequiredInputs {
		allowed[name] = struct{}{}
	}
	for _, opt := range c.OptionalInputs {
		if opt.SendToAPI {
			allowed[opt.Name] = struct{}{}
		}
	}
	return allowed
}

// LocalOnlyNames returns optional inputs that never travel to the API.
func (c *ToolContract) LocalOnlyNames() []string {
	var names []string
	for _, opt := range c.OptionalInputs {
		if !opt.SendToAPI {
			names = append(names, opt.Name)
		}
	}
	return names
}
