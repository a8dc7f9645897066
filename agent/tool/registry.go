package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var endpointParamPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// RegistryConfig is the backend-facing configuration block: where contracts
// live, where they point, and how long a call may take.
type RegistryConfig struct {
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	ContractDir string        `envconfig:"CONTRACT_DIR" split_words:"true" default:"schema/tool_contract"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

// Registry holds normalized tool contracts keyed by canonical name. It is
// built once at boot and read-only afterwards.
type Registry struct {
	baseURL   string
	contracts map[string]*ToolContract
	names     []string
	localOnly map[string]struct{}
}

func NewRegistry(baseURL string) (*Registry, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("backend base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	return &Registry{
		baseURL:   trimmed,
		contracts: make(map[string]*ToolContract),
		localOnly: make(map[string]struct{}),
	}, nil
}

// Load parses every *.json contract in dir. A single broken contract is
// reported and skipped so the rest of the registry still loads. Loading the
// same directory twice yields the same contract set.
func (r *Registry) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read contract dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(dir, name)
		contract, err := r.loadContract(dir, path)
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("skipping unloadable tool contract")
			continue
		}
		if _, exists := r.contracts[contract.Name]; exists {
			log.Warn().Str("tool", contract.Name).Str("file", name).Msg("duplicate tool name, keeping first contract")
			continue
		}
		r.contracts[contract.Name] = contract
		r.names = append(r.names, contract.Name)
		for _, key := range contract.LocalOnlyNames() {
			r.localOnly[key] = struct{}{}
		}
		loaded++
	}
	sort.Strings(r.names)

	log.Info().Int("loaded", loaded).Str("dir", dir).Msg("tool contract registry built")
	return nil
}

func (r *Registry) loadContract(dir, path string) (*ToolContract, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract: %w", err)
	}

	var contract ToolContract
	if err := json.Unmarshal(raw, &contract); err != nil {
		return nil, fmt.Errorf("parse contract: %w", err)
	}

	if strings.TrimSpace(contract.Name) == "" {
		base := filepath.Base(path)
		contract.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	contract.Path = r.normalizePath(contract.Endpoint)
	contract.FullEndpoint = r.baseURL + contract.Path

	if err := checkEndpointParams(&contract); err != nil {
		return nil, err
	}

	contract.RequestSchema = r.compileSchema(dir, contract.Name, "request", contract.RequestSchemaRaw, contract.RequestSchemaFile)
	contract.ResponseSchema = r.compileSchema(dir, contract.Name, "response", contract.ResponseSchemaRaw, contract.ResponseSchemaFile)

	return &contract, nil
}

// normalizePath strips a leading slash, removes a leading segment that
// duplicates the last path segment of the base URL (contracts authored against
// a base URL that already contains part of the path), and re-prefixes a single
// slash.
func (r *Registry) normalizePath(endpoint string) string {
	p := strings.TrimPrefix(strings.TrimSpace(endpoint), "/")

	if baseSeg := lastPathSegment(r.baseURL); baseSeg != "" {
		first, rest, found := strings.Cut(p, "/")
		if found && first == baseSeg {
			p = rest
		}
	}

	return "/" + p
}

func lastPathSegment(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	trimmed := strings.Trim(parsed.Path, "/")
	if trimmed == "" {
		return ""
	}
	segments := strings.Split(trimmed, "/")
	return segments[len(segments)-1]
}

// checkEndpointParams enforces the contract invariant that every {param} in
// the endpoint template is a declared required input.
func checkEndpointParams(c *ToolContract) error {
	required := make(map[string]struct{}, len(c.RequiredInputs))
	for _, name := range c.RequiredInputs {
		required[name] = struct{}{}
	}
	for _, match := range endpointParamPattern.FindAllStringSubmatch(c.Path, -1) {
		if _, ok := required[match[1]]; !ok {
			return fmt.Errorf("endpoint param {%s} not declared in required_inputs", match[1])
		}
	}
	return nil
}

// compileSchema attaches an inline or external JSON schema. A missing or
// unparsable schema is logged and omitted; the contract still loads.
func (r *Registry) compileSchema(dir, tool, kind string, inline json.RawMessage, file string) *jsonschema.Schema {
	var payload []byte
	switch {
	case len(inline) > 0:
		payload = inline
	case strings.TrimSpace(file) != "":
		raw, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			log.Warn().Err(err).Str("tool", tool).Str("schema", kind).Msg("schema file unreadable, omitting")
			return nil
		}
		payload = raw
	default:
		return nil
	}

	compiled, err := jsonschema.CompileString(fmt.Sprintf("%s_%s_schema.json", tool, kind), string(payload))
	if err != nil {
		log.Warn().Err(err).Str("tool", tool).Str("schema", kind).Msg("schema does not compile, omitting")
		return nil
	}
	return compiled
}

// Get returns the contract stored under the exact canonical name.
func (r *Registry) Get(name string) (*ToolContract, bool) {
	c, ok := r.contracts[name]
	return c, ok
}

// Names returns the canonical tool names in sorted order.
func (r *Registry) Names() []string {
	return r.names
}

// Contracts exposes the full mapping for collaborators that enumerate tools
// (the planner prompt, the capabilities endpoint). Callers must not mutate.
func (r *Registry) Contracts() map[string]*ToolContract {
	return r.contracts
}

// LocalOnlyKeys is the union of local-only optional input names across every
// loaded contract.
func (r *Registry) LocalOnlyKeys() map[string]struct{} {
	return r.localOnly
}
