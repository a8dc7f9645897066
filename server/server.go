package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	hertzserver "github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	orchestratorx "github.com/tanpawarit/atlas-banking-gateway/agent/orchestrator"
	statex "github.com/tanpawarit/atlas-banking-gateway/agent/state"
	toolx "github.com/tanpawarit/atlas-banking-gateway/agent/tool"
)

type Config struct {
	Host         string        `split_words:"true" default:"0.0.0.0"`
	Port         int           `split_words:"true" default:"8000"`
	AuditURL     string        `split_words:"true"`
	AuditTimeout time.Duration `split_words:"true" default:"5s"`
}

// AuditPublisher receives a copy of every completed turn for out-of-band
// auditing. Satisfied by *qstash.Client.
type AuditPublisher interface {
	PublishJSON(ctx context.Context, destination string, payload any) error
}

// Server is the HTTP surface: one endpoint that runs a conversation turn and
// one that describes the registered tool contracts.
type Server struct {
	hertz        *hertzserver.Hertz
	orchestrator *orchestratorx.Orchestrator
	registry     *toolx.Registry

	audit        AuditPublisher
	auditURL     string
	auditTimeout time.Duration
}

func New(cfg Config, orch *orchestratorx.Orchestrator, registry *toolx.Registry, audit AuditPublisher) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}

	auditTimeout := cfg.AuditTimeout
	if auditTimeout <= 0 {
		auditTimeout = 5 * time.Second
	}

	s := &Server{
		hertz:        hertzserver.Default(hertzserver.WithHostPorts(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))),
		orchestrator: orch,
		registry:     registry,
		audit:        audit,
		auditURL:     strings.TrimSpace(cfg.AuditURL),
		auditTimeout: auditTimeout,
	}

	s.hertz.POST("/process", s.handleProcess)
	s.hertz.GET("/capabilities", s.handleCapabilities)

	return s, nil
}

func (s *Server) Run() error {
	return s.hertz.Run()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.hertz.Shutdown(ctx)
}

func (s *Server) handleProcess(c context.Context, ctx *app.RequestContext) {
	var req contractx.TurnRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, contractx.TurnError{
			Status:  "error",
			Message: "request body is not valid JSON",
		})
		return
	}

	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}

	resp, err := s.orchestrator.HandleTurn(c, req)
	if err != nil {
		status, msg := classifyTurnError(err)
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("turn failed")
		ctx.JSON(status, contractx.TurnError{
			Status:    "error",
			Message:   msg,
			SessionID: req.SessionID,
		})
		return
	}

	s.publishAudit(req, resp)
	ctx.JSON(consts.StatusOK, resp)
}

func classifyTurnError(err error) (int, string) {
	switch {
	case errors.Is(err, orchestratorx.ErrInvalidGoal),
		errors.Is(err, orchestratorx.ErrInvalidSession),
		errors.Is(err, contractx.ErrValidation),
		errors.Is(err, contractx.ErrRequiredInputMissing):
		return consts.StatusBadRequest, err.Error()
	case errors.Is(err, contractx.ErrContractNotFound):
		return consts.StatusNotFound, err.Error()
	case errors.Is(err, contractx.ErrUpstream):
		return consts.StatusBadGateway, err.Error()
	case errors.Is(err, contractx.ErrPlanning),
		errors.Is(err, contractx.ErrModelInvoke),
		errors.Is(err, contractx.ErrSchemaViolation):
		return consts.StatusBadGateway, err.Error()
	case errors.Is(err, statex.ErrStateNotFound):
		return consts.StatusNotFound, err.Error()
	default:
		return consts.StatusInternalServerError, "internal error"
	}
}

// publishAudit sends the turn outcome to the audit queue without blocking the
// response. Failures are logged and dropped.
func (s *Server) publishAudit(req contractx.TurnRequest, resp contractx.TurnResponse) {
	if s.audit == nil || s.auditURL == "" {
		return
	}

	event := map[string]any{
		"session_id":  resp.SessionID,
		"goal":        req.Goal,
		"next_action": resp.NextAction,
		"is_final":    resp.IsFinal,
		"missing":     resp.Missing,
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.auditTimeout)
		defer cancel()
		if err := s.audit.PublishJSON(ctx, s.auditURL, event); err != nil {
			log.Warn().Err(err).Str("session_id", resp.SessionID).Msg("audit publish failed")
		}
	}()
}

type capability struct {
	Name           string                `json:"tool_name"`
	Description    string                `json:"description,omitempty"`
	Endpoint       string                `json:"endpoint"`
	RequiredInputs []string              `json:"required_inputs"`
	OptionalInputs []toolx.OptionalInput `json:"optional_inputs,omitempty"`
	LocalOnly      []string              `json:"local_only_inputs,omitempty"`
}

func (s *Server) handleCapabilities(c context.Context, ctx *app.RequestContext) {
	names := s.registry.Names()
	caps := make([]capability, 0, len(names))
	for _, name := range names {
		contract, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		caps = append(caps, capability{
			Name:           contract.Name,
			Description:    contract.Description,
			Endpoint:       contract.Endpoint,
			RequiredInputs: contract.RequiredNames(),
			OptionalInputs: contract.OptionalInputs,
			LocalOnly:      contract.LocalOnlyNames(),
		})
	}
	ctx.JSON(consts.StatusOK, map[string]any{"tools": caps})
}
