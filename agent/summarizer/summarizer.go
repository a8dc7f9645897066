// Package summarizer turns executed plan steps into a short narrative. Empty
// and errored steps get a neutral line without a model call; model failures
// degrade to a stock sentence instead of failing the turn.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	llmx "github.com/tanpawarit/atlas-banking-gateway/agent/llm"
	planx "github.com/tanpawarit/atlas-banking-gateway/agent/plan"
)

const summaryUnavailable = "Summary unavailable."

var codeFencePattern = regexp.MustCompile("(?i)```(?:json|text)?")

type LLMSummarizer struct {
	stepRunner  compose.Runnable[map[string]any, *schema.Message]
	finalRunner compose.Runnable[map[string]any, finalLLMOutput]
}

type finalLLMOutput struct {
	Summary string `json:"summary"`
}

func New(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	stepPrompt string,
	finalPrompt string,
) (*LLMSummarizer, error) {
	stepRunner, err := llmx.CompileMessageGraph(ctx, chatModel, stepPrompt, "summarizer.step_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile step summary graph: %v", contractx.ErrModelInvoke, err)
	}
	finalRunner, err := llmx.CompileStructuredGraph[finalLLMOutput](ctx, chatModel, finalPrompt, "summarizer.final_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile final summary graph: %v", contractx.ErrModelInvoke, err)
	}
	return &LLMSummarizer{stepRunner: stepRunner, finalRunner: finalRunner}, nil
}

func (s *LLMSummarizer) Summarize(ctx context.Context, req contractx.SummaryRequest) (contractx.SummaryResponse, error) {
	resp := contractx.SummaryResponse{
		RawResult: make(map[string]map[string]any),
		RawText:   make(map[string]string),
	}

	for i, step := range req.Steps {
		if step == nil {
			continue
		}
		stepKey := fmt.Sprintf("step%d", i+1)
		text := s.stepText(ctx, stepKey, step)
		line := fmt.Sprintf("%s: %s", makeKey(step.Tool, step.APIInputs), text)

		if resp.RawResult[step.Tool] == nil {
			resp.RawResult[step.Tool] = make(map[string]any)
		}
		resp.RawResult[step.Tool][stepKey] = step.Result
		resp.RawText[step.Tool+"."+stepKey] = text
		resp.Steps = append(resp.Steps, line)

		log.Info().Str("step", stepKey).Str("tool", step.Tool).Str("summary", text).Msg("step summarized")
	}

	resp.Summary = s.finalSummary(ctx, resp.Steps, req.ExpectedOutcome)
	return resp, nil
}

// stepText handles empty and errored step results locally; only real data
// reaches the model.
func (s *LLMSummarizer) stepText(ctx context.Context, stepKey string, step *planx.Step) string {
	if msg := extractError(step.Result); msg != "" {
		return msg
	}
	if isNoData(step.Result) {
		return "No data found for this query."
	}

	payload := map[string]any{
		"step":          stepKey,
		"tool":          step.Tool,
		"local_filters": step.LocalFilters,
		"result":        step.Result,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return summaryUnavailable
	}

	msg, err := s.stepRunner.Invoke(ctx, map[string]any{"input": string(input)})
	if err != nil || msg == nil {
		log.Error().Err(err).Str("step", stepKey).Msg("step summary model call failed")
		return summaryUnavailable
	}
	return clean(msg.Content)
}

func (s *LLMSummarizer) finalSummary(ctx context.Context, lines []string, expectedOutcome string) string {
	payload := map[string]any{
		"steps":            lines,
		"expected_outcome": expectedOutcome,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return summaryUnavailable
	}

	out, err := s.finalRunner.Invoke(ctx, map[string]any{"input": string(input)})
	if err != nil {
		log.Error().Err(err).Msg("final summary model call failed")
		return summaryUnavailable
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return summaryUnavailable
	}
	return summary
}

// clean strips code fence markers and surrounding whitespace from model text.
func clean(text string) string {
	return strings.TrimSpace(codeFencePattern.ReplaceAllString(text, ""))
}

// extractError pulls an error message out of a step result, if any.
func extractError(result map[string]any) string {
	if result == nil {
		return ""
	}
	switch errVal := result["error"].(type) {
	case string:
		return errVal
	case map[string]any:
		if msg, ok := errVal["message"].(string); ok {
			return msg
		}
		return fmt.Sprintf("%v", errVal)
	}
	if header, ok := result["header"].(map[string]any); ok {
		if status, ok := header["status"].(string); ok && strings.EqualFold(status, "failed") {
			return "Error: upstream reported a failed status."
		}
	}
	return ""
}

// isNoData reports whether a step result carries no records.
func isNoData(result map[string]any) bool {
	if len(result) == 0 {
		return true
	}
	switch body := result["body"].(type) {
	case []any:
		return len(body) == 0
	case map[string]any:
		return len(body) == 0
	case nil:
		return true
	}
	return false
}

// makeKey builds a predictable identifier from the tool name and its ordered
// api inputs, stripped down to alphanumerics and underscores.
func makeKey(tool string, apiInputs map[string]any) string {
	keys := make([]string, 0, len(apiInputs))
	for k := range apiInputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(tool)
	for _, k := range keys {
		b.WriteByte('_')
		b.WriteString(k)
		b.WriteByte('_')
		b.WriteString(strings.ReplaceAll(fmt.Sprintf("%v", apiInputs[k]), " ", "_"))
	}

	cleaned := make([]rune, 0, b.Len())
	for _, r := range b.String() {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cleaned = append(cleaned, r)
		}
	}
	return strings.Trim(string(cleaned), "_")
}
