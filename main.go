package main

import (
	"context"

	"github.com/rs/zerolog/log"

	llmx "github.com/tanpawarit/atlas-banking-gateway/agent/llm"
	orchestratorx "github.com/tanpawarit/atlas-banking-gateway/agent/orchestrator"
	plannerx "github.com/tanpawarit/atlas-banking-gateway/agent/planner"
	promptx "github.com/tanpawarit/atlas-banking-gateway/agent/prompt"
	statex "github.com/tanpawarit/atlas-banking-gateway/agent/state"
	summarizerx "github.com/tanpawarit/atlas-banking-gateway/agent/summarizer"
	toolx "github.com/tanpawarit/atlas-banking-gateway/agent/tool"
	configx "github.com/tanpawarit/atlas-banking-gateway/pkg/config"
	_ "github.com/tanpawarit/atlas-banking-gateway/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/atlas-banking-gateway/pkg/openrouter"
	qstashx "github.com/tanpawarit/atlas-banking-gateway/pkg/qstash"
	serverx "github.com/tanpawarit/atlas-banking-gateway/server"
)

type AppConfig struct {
	SessionBackend string `envconfig:"SESSION_BACKEND" default:"memory"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm configuration")
	}
	openRouterClient := openrouterx.NewClient(llmCfg.OpenRouterFor(llmx.RolePlanner))
	if openRouterClient == nil {
		log.Fatal().Msg("initialize openrouter client")
	}
	if _, err := openRouterClient.Models.List(ctx); err != nil {
		log.Warn().Err(err).Msg("openrouter not reachable at startup")
	}

	regCfg := configx.MustNew[toolx.RegistryConfig]("BANKING")
	registry, err := toolx.NewRegistry(regCfg.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("create tool registry")
	}
	if err := registry.Load(regCfg.ContractDir); err != nil {
		log.Fatal().Err(err).Str("dir", regCfg.ContractDir).Msg("load tool contracts")
	}
	log.Info().Strs("tools", registry.Names()).Msg("tool contracts loaded")

	plannerCfg := llmCfg.OpenRouterFor(llmx.RolePlanner)
	plannerModel, err := plannerCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create planner model")
	}
	summarizerCfg := llmCfg.OpenRouterFor(llmx.RoleSummarizer)
	summarizerModel, err := summarizerCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create summarizer model")
	}

	prompts := promptx.LoadPromptSet()

	planner, err := plannerx.New(ctx, plannerModel, prompts.Planner, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("create planner")
	}
	summarizer, err := summarizerx.New(ctx, summarizerModel, prompts.StepSummary, prompts.FinalSummary)
	if err != nil {
		log.Fatal().Err(err).Msg("create summarizer")
	}

	credCfg := configx.MustNew[toolx.CredentialConfig]("BANKING")
	executor := toolx.NewExecutor(regCfg.BaseURL, regCfg.Timeout, toolx.NewEnvCredentials(*credCfg))

	var store statex.Store
	switch appCfg.SessionBackend {
	case "upstash":
		redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err = statex.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("create upstash session store")
		}
	default:
		store = statex.NewMemoryStore()
	}

	orch, err := orchestratorx.New(store, registry, executor, planner, summarizer)
	if err != nil {
		log.Fatal().Err(err).Msg("create orchestrator")
	}

	var audit serverx.AuditPublisher
	if qstashCfg, err := configx.New[qstashx.Config]("QSTASH"); err == nil {
		if client, err := qstashx.NewClient(*qstashCfg); err == nil {
			audit = client
		} else {
			log.Warn().Err(err).Msg("qstash disabled")
		}
	} else {
		log.Info().Msg("qstash not configured, audit publishing disabled")
	}

	serverCfg := configx.MustNew[serverx.Config]("SERVER")
	srv, err := serverx.New(*serverCfg, orch, registry, audit)
	if err != nil {
		log.Fatal().Err(err).Msg("create server")
	}

	log.Info().Str("host", serverCfg.Host).Int("port", serverCfg.Port).Msg("gateway starting")
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
