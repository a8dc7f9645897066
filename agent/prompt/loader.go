package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/planner.txt
	plannerRaw string

	//go:embed template/step_summary.txt
	stepSummaryRaw string

	//go:embed template/final_summary.txt
	finalSummaryRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Planner      string
	StepSummary  string
	FinalSummary string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Planner:      strings.TrimSpace(plannerRaw),
		StepSummary:  strings.TrimSpace(stepSummaryRaw),
		FinalSummary: strings.TrimSpace(finalSummaryRaw),
	}
}
