package contract

import "context"

type Planner interface {
	Plan(ctx context.Context, req PlannerRequest) (PlannerResponse, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (SummaryResponse, error)
}

// CredentialProvider supplies authentication and channel headers for backend
// calls. The pipeline never mints credentials itself.
type CredentialProvider interface {
	Headers() map[string]string
}
