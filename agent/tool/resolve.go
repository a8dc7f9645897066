package tool

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
)

// Resolve maps a possibly inexact tool name from the planner to a loaded
// contract. Match tiers, first hit wins:
//
//  1. exact key match
//  2. case-insensitive exact match
//  3. case-insensitive suffix match
//  4. case-insensitive substring containment
//
// Suffix ranks above substring because it produces fewer false positives for
// abbreviated names. Registry names are probed in sorted order so ties inside
// a tier resolve deterministically.
func (r *Registry) Resolve(requested string) (*ToolContract, error) {
	trimmed := strings.TrimSpace(requested)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty tool name", contractx.ErrContractNotFound)
	}

	if c, ok := r.contracts[trimmed]; ok {
		return c, nil
	}

	lower := strings.ToLower(trimmed)

	for _, name := range r.names {
		if strings.ToLower(name) == lower {
			return r.contracts[name], nil
		}
	}
	for _, name := range r.names {
		if strings.HasSuffix(strings.ToLower(name), lower) {
			return r.contracts[name], nil
		}
	}
	for _, name := range r.names {
		if strings.Contains(strings.ToLower(name), lower) {
			return r.contracts[name], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", contractx.ErrContractNotFound, trimmed)
}
