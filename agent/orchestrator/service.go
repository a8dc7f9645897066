package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	nodex "github.com/tanpawarit/atlas-banking-gateway/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/atlas-banking-gateway/agent/state"
	toolx "github.com/tanpawarit/atlas-banking-gateway/agent/tool"
)

var (
	ErrInvalidGoal    = nodex.ErrInvalidGoal
	ErrInvalidSession = nodex.ErrInvalidSession
)

// Orchestrator owns one full conversation turn: session handling, planning,
// input classification, execution with identifier chaining, and
// summarization. Turns for the same session are serialized so concurrent
// callers cannot interleave state writes.
type Orchestrator struct {
	store      statex.Store
	registry   *toolx.Registry
	executor   nodex.StepExecutor
	planner    contractx.Planner
	summarizer contractx.Summarizer

	graphRunner compose.Runnable[contractx.TurnRequest, contractx.TurnResponse]

	sessionLocks sync.Map // session id -> *sync.Mutex

	now func() time.Time
}

func New(
	store statex.Store,
	registry *toolx.Registry,
	executor nodex.StepExecutor,
	planner contractx.Planner,
	summarizer contractx.Summarizer,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if executor == nil {
		return nil, errors.New("step executor is required")
	}
	if planner == nil {
		return nil, errors.New("planner is required")
	}
	if summarizer == nil {
		return nil, errors.New("summarizer is required")
	}

	o := &Orchestrator{
		store:      store,
		registry:   registry,
		executor:   executor,
		planner:    planner,
		summarizer: summarizer,
		now:        time.Now,
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn runs one caller turn through the pipeline graph.
func (o *Orchestrator) HandleTurn(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResponse, error) {
	if id := strings.TrimSpace(req.SessionID); id != "" {
		mu := o.lockFor(id)
		mu.Lock()
		defer mu.Unlock()
	}
	return o.graphRunner.Invoke(ctx, req)
}

func (o *Orchestrator) lockFor(sessionID string) *sync.Mutex {
	v, _ := o.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
