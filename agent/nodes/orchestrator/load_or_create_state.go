package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/atlas-banking-gateway/agent/contract"
	statex "github.com/tanpawarit/atlas-banking-gateway/agent/state"
)

func LoadOrCreateState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	st, err := store.Load(ctx, in.Req.SessionID)
	if err != nil {
		if !errors.Is(err, statex.ErrStateNotFound) {
			return nil, err
		}
		st = statex.NewSessionState(in.Req.SessionID, in.Now)
	}

	in.Session = st
	return in, nil
}
