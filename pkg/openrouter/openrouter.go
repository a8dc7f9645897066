package openrouter

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Builder constructs an eino chat model from provider configuration.
type Builder interface {
	New(ctx context.Context) (model.ToolCallingChatModel, error)
}

var _ Builder = (*Config)(nil)

// Models that reject OpenRouter reasoning parameters outright.
var reasoningOptOut = map[string]bool{
	"x-ai/grok-4.1-fast": true,
}

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken *int          `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
}

func (c *Config) baseURL() string {
	trimmed := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if trimmed == "" {
		return defaultBaseURL
	}
	return trimmed
}

// New builds a tool-calling chat model bound to the configured OpenRouter
// model. Reasoning is disabled for models that do not accept the parameter.
func (c *Config) New(ctx context.Context) (model.ToolCallingChatModel, error) {
	apiKey := strings.TrimSpace(c.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter: api key is required")
	}
	modelName := strings.TrimSpace(c.Model)
	if modelName == "" {
		return nil, fmt.Errorf("openrouter: model name is required")
	}

	conf := &openaimodel.ChatModelConfig{
		BaseURL:     c.baseURL(),
		APIKey:      apiKey,
		Model:       modelName,
		MaxTokens:   c.MaxCompletionToken,
		Temperature: &c.Temperature,
		Timeout:     c.Timeout,
	}
	if reasoningOptOut[modelName] {
		conf.ExtraFields = map[string]any{
			"reasoning": map[string]any{
				"exclude": true,
				"effort":  "none",
			},
		}
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("openrouter: create chat model %q: %w", modelName, err)
	}
	return m, nil
}

// NewClient builds a raw OpenAI SDK client pointed at OpenRouter, for callers
// that need endpoints the eino model wrapper does not expose. Returns nil when
// no API key is configured.
func NewClient(cfg Config) *openaisdk.Client {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL()),
	}
	if v := strings.TrimSpace(cfg.SiteURL); v != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", v))
	}
	if v := strings.TrimSpace(cfg.SiteName); v != "" {
		opts = append(opts, option.WithHeader("X-Title", v))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}
