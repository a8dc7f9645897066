package plan

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// ResolveInputs walks a step's input tree and substitutes symbolic references
// with concrete values. A string of the exact form "<identifier>" names a value
// looked up first in memory, then in turnInputs. An all-uppercase bare string
// that matches an existing memory key resolves too, for planners that omit the
// bracket syntax. An unresolvable placeholder becomes nil so it is visibly
// missing downstream instead of being sent to the backend as literal text.
//
// The input tree is never mutated; resolution is idempotent.
func ResolveInputs(inputs map[string]any, memory, turnInputs map[string]any) map[string]any {
	if inputs == nil {
		return nil
	}
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = resolveValue(v, memory, turnInputs)
	}
	return out
}

func resolveValue(v any, memory, turnInputs map[string]any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, inner := range tv {
			out[k] = resolveValue(inner, memory, turnInputs)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, inner := range tv {
			out[i] = resolveValue(inner, memory, turnInputs)
		}
		return out
	case string:
		return resolveString(tv, memory, turnInputs)
	default:
		return v
	}
}

func resolveString(s string, memory, turnInputs map[string]any) any {
	trimmed := strings.TrimSpace(s)

	if name, ok := PlaceholderName(trimmed); ok {
		if val, ok := lookup(name, memory, turnInputs); ok {
			return val
		}
		log.Debug().Str("placeholder", name).Msg("placeholder unresolved, treating as absent")
		return nil
	}

	// Compatibility path: a bare ALL-UPPERCASE token that names an existing
	// memory key resolves as if it were bracketed.
	if isUpperToken(trimmed) {
		if val, ok := memory[trimmed]; ok {
			return val
		}
	}

	return s
}

// PlaceholderName reports whether s is an exact "<identifier>" reference and
// returns the identifier with interior whitespace removed.
func PlaceholderName(s string) (string, bool) {
	if len(s) < 2 || !strings.HasPrefix(s, "<") || !strings.HasSuffix(s, ">") {
		return "", false
	}
	inner := s[1 : len(s)-1]
	if strings.ContainsAny(inner, "<>") {
		return "", false
	}
	name := strings.ReplaceAll(inner, " ", "")
	if name == "" {
		return "", false
	}
	return name, true
}

func lookup(name string, memory, turnInputs map[string]any) (any, bool) {
	if memory != nil {
		if val, ok := memory[name]; ok {
			return val, true
		}
	}
	if turnInputs != nil {
		if val, ok := turnInputs[name]; ok {
			return val, true
		}
	}
	return nil, false
}

func isUpperToken(s string) bool {
	if s == "" {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}
