package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
)

// Executor performs one backend API call per plan step. A single attempt, no
// retries; the caller owns any retry policy.
type Executor struct {
	client *resty.Client
	creds  contractx.CredentialProvider
}

func NewExecutor(baseURL string, timeout time.Duration, creds contractx.CredentialProvider) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(baseURL), "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Executor{client: client, creds: creds}
}

// Execute substitutes every {name} occurrence in the contract's endpoint
// template with the matching api input, sends the remaining api inputs as
// query parameters, and returns the decoded response body.
func (e *Executor) Execute(ctx context.Context, c *ToolContract, apiInputs map[string]any) (any, error) {
	path, consumed, err := buildPath(c, apiInputs)
	if err != nil {
		return nil, err
	}

	req := e.client.R().SetContext(ctx)
	if e.creds != nil {
		for k, v := range e.creds.Headers() {
			req.SetHeader(k, v)
		}
	}
	for k, v := range apiInputs {
		if _, used := consumed[k]; used {
			continue
		}
		if v == nil {
			continue
		}
		req.SetQueryParam(k, stringify(v))
	}

	var decoded any
	req.SetResult(&decoded)

	log.Debug().Str("tool", c.Name).Str("path", path).Msg("calling backend api")
	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contractx.ErrUpstream, c.Name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s: status=%d body=%s", contractx.ErrUpstream, c.Name, resp.StatusCode(), resp.String())
	}

	if c.ResponseSchema != nil {
		if err := c.ResponseSchema.Validate(decoded); err != nil {
			log.Debug().Err(err).Str("tool", c.Name).Msg("response does not match attached schema")
		}
	}

	return decoded, nil
}

func buildPath(c *ToolContract, apiInputs map[string]any) (string, map[string]struct{}, error) {
	path := c.Path
	consumed := make(map[string]struct{})

	for _, match := range endpointParamPattern.FindAllStringSubmatch(c.Path, -1) {
		name := match[1]
		val, ok := apiInputs[name]
		if !ok || val == nil || strings.TrimSpace(stringify(val)) == "" {
			return "", nil, fmt.Errorf("%w: %s needs %s", contractx.ErrRequiredInputMissing, c.Name, name)
		}
		path = strings.ReplaceAll(path, "{"+name+"}", stringify(val))
		consumed[name] = struct{}{}
	}

	return path, consumed, nil
}
