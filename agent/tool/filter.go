package tool

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/rs/zerolog/log"
)

// FilteredResponse wraps the surviving record list.
type FilteredResponse struct {
	Body []any `json:"body"`
}

// ApplyFilters narrows the response record list with every contract rule whose
// input parameter was supplied as a local filter. Rules compose by repeated
// narrowing in declaration order, so filtering is a conjunction. Filter-level
// parse problems never fail the call: an unparsable bound or unknown rule type
// skips that rule, an unconvertible record value drops that record.
func ApplyFilters(raw any, c *ToolContract, localFilters map[string]any) FilteredResponse {
	records := extractBody(raw)

	for _, rule := range c.FilteringRules {
		value, ok := localFilters[rule.InputParam]
		if !ok {
			continue
		}
		records = applyRule(records, rule, value)
	}

	return FilteredResponse{Body: records}
}

// extractBody pulls the candidate record list out of a raw response: a "body"
// list is used as-is, a "body" dict becomes a single-record list, a top-level
// list is used directly, anything else yields an empty list.
func extractBody(raw any) []any {
	switch tv := raw.(type) {
	case []any:
		return tv
	case map[string]any:
		switch body := tv["body"].(type) {
		case []any:
			return body
		case map[string]any:
			return []any{body}
		}
	}
	return []any{}
}

func applyRule(records []any, rule FilterRule, value any) []any {
	switch rule.FilterType {
	case FilterExact:
		return filterStrings(records, rule, value, func(want, got string) bool {
			return want == got
		})
	case FilterSubstring:
		return filterStrings(records, rule, value, func(want, got string) bool {
			return strings.Contains(got, want)
		})
	case FilterFuzzySubstring:
		return filterFuzzy(records, rule, value)
	case FilterNumericalFuzzy:
		return filterNumeric(records, rule, value)
	case FilterDateFrom, FilterDateTo:
		return filterDate(records, rule, value)
	default:
		log.Warn().Str("filter_type", rule.FilterType).Str("param", rule.InputParam).
			Msg("unknown filter type, rule skipped")
		return records
	}
}

func filterStrings(records []any, rule FilterRule, value any, match func(want, got string) bool) []any {
	want := stringify(value)
	if !rule.CaseSensitive {
		want = strings.ToLower(want)
	}

	kept := make([]any, 0, len(records))
	for _, rec := range records {
		field, ok := fieldValue(rec, rule.ResponseField)
		if !ok || field == nil {
			continue
		}
		got := stringify(field)
		if !rule.CaseSensitive {
			got = strings.ToLower(got)
		}
		if match(want, got) {
			kept = append(kept, rec)
		}
	}
	return kept
}

func filterFuzzy(records []any, rule FilterRule, value any) []any {
	want := strings.ToLower(stringify(value))
	threshold := rule.threshold()

	kept := make([]any, 0, len(records))
	for _, rec := range records {
		field, ok := fieldValue(rec, rule.ResponseField)
		if !ok || field == nil {
			continue
		}
		got := strings.ToLower(stringify(field))

		var score int
		switch rule.method() {
		case MethodRatio:
			score = fuzzy.Ratio(want, got)
		case MethodTokenSort:
			score = fuzzy.TokenSortRatio(want, got)
		default:
			score = fuzzy.PartialRatio(want, got)
		}

		if float64(score) >= threshold {
			kept = append(kept, rec)
		}
	}
	return kept
}

func filterNumeric(records []any, rule FilterRule, value any) []any {
	target, err := toFloat(value)
	if err != nil {
		log.Warn().Str("param", rule.InputParam).Interface("value", value).
			Msg("numeric filter value unparsable, rule skipped")
		return records
	}
	tolerance := rule.tolerance()

	// Denominator floor of 1 keeps the relative error bounded near zero targets.
	denom := target
	if denom < 0 {
		denom = -denom
	}
	if denom < 1 {
		denom = 1
	}

	kept := make([]any, 0, len(records))
	for _, rec := range records {
		field, ok := fieldValue(rec, rule.ResponseField)
		if !ok {
			continue
		}
		got, err := toFloat(field)
		if err != nil {
			continue
		}
		diff := got - target
		if diff < 0 {
			diff = -diff
		}
		if diff/denom <= tolerance {
			kept = append(kept, rec)
		}
	}
	return kept
}

func filterDate(records []any, rule FilterRule, value any) []any {
	bound, err := parseDate(value, rule.DateFormat)
	if err != nil {
		log.Warn().Err(err).Str("param", rule.InputParam).Interface("value", value).
			Msg("date filter bound unparsable, rule skipped")
		return records
	}

	kept := make([]any, 0, len(records))
	for _, rec := range records {
		field, ok := fieldValue(rec, rule.ResponseField)
		if !ok || field == nil {
			continue
		}
		d, err := parseDate(field, rule.DateFormat)
		if err != nil {
			continue
		}
		if rule.FilterType == FilterDateFrom && !d.Before(bound) {
			kept = append(kept, rec)
		}
		if rule.FilterType == FilterDateTo && !d.After(bound) {
			kept = append(kept, rec)
		}
	}
	return kept
}

// parseDate tries the rule's strict format first, then falls back to
// permissive parsing that accepts natural-language and timezone-qualified ISO
// strings. The result is truncated to the calendar day.
func parseDate(raw any, layout string) (time.Time, error) {
	s := strings.TrimSpace(stringify(raw))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}

	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateToDay(t), nil
		}
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, err
	}
	return truncateToDay(t), nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// fieldValue resolves a dot/bracket path like "account.balances[0].amount"
// inside a record.
func fieldValue(record any, path string) (any, bool) {
	current := record
	for _, seg := range splitFieldPath(path) {
		if seg.index >= 0 {
			list, ok := current.([]any)
			if !ok || seg.index >= len(list) {
				return nil, false
			}
			current = list[seg.index]
			continue
		}
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[seg.key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

type pathSegment struct {
	key   string
	index int // -1 for key segments
}

func splitFieldPath(path string) []pathSegment {
	var segments []pathSegment
	for _, part := range strings.Split(path, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				if part != "" {
					segments = append(segments, pathSegment{key: part, index: -1})
				}
				break
			}
			if open > 0 {
				segments = append(segments, pathSegment{key: part[:open], index: -1})
			}
			closing := strings.IndexByte(part[open:], ']')
			if closing < 0 {
				// Malformed bracket, treat the remainder as a literal key.
				segments = append(segments, pathSegment{key: part[open:], index: -1})
				break
			}
			idxStr := part[open+1 : open+closing]
			idx, err := strconv.Atoi(idxStr)
			if err != nil || idx < 0 {
				segments = append(segments, pathSegment{key: idxStr, index: -1})
			} else {
				segments = append(segments, pathSegment{index: idx})
			}
			part = part[open+closing+1:]
		}
	}
	return segments
}

func stringify(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", tv)
	}
}

func toFloat(v any) (float64, error) {
	switch tv := v.(type) {
	case float64:
		return tv, nil
	case float32:
		return float64(tv), nil
	case int:
		return float64(tv), nil
	case int64:
		return float64(tv), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(tv), 64)
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}
