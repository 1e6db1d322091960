package agents

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/natthaphol/shopscout/agent/contract"
	convx "github.com/natthaphol/shopscout/agent/conversation"
)

// retrieverImpl runs the retrieval engine against the attributes the
// analyzer extracted earlier in the run.
type retrieverImpl struct {
	engine     contractx.Engine
	maxResults int
}

func (r *retrieverImpl) Type() convx.AgentType {
	return convx.AgentRetriever
}

func (r *retrieverImpl) Handle(ctx context.Context, conv *convx.Context) (contractx.Outcome, error) {
	if conv == nil || conv.Attributes == nil {
		return contractx.Outcome{}, fmt.Errorf("%w: query attributes are not set", contractx.ErrValidation)
	}

	k := r.maxResults
	if k <= 0 {
		k = defaultMaxResults
	}

	candidates, err := r.engine.Retrieve(ctx, *conv.Attributes, k)
	if err != nil {
		return contractx.Outcome{}, classifyRetrievalError(err)
	}
	if candidates == nil {
		candidates = []convx.Candidate{}
	}

	return contractx.Outcome{
		Candidates: candidates,
		Summary:    fmt.Sprintf("retrieved %d candidates", len(candidates)),
	}, nil
}

// classifyRetrievalError folds engine failures into the transient taxonomy
// the selector retries on. Errors already carrying a sentinel pass through.
func classifyRetrievalError(err error) error {
	switch {
	case errors.Is(err, contractx.ErrRetrievalTimeout), errors.Is(err, contractx.ErrRetrievalUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", contractx.ErrRetrievalTimeout, err)
	default:
		return fmt.Errorf("%w: %v", contractx.ErrRetrievalUnavailable, err)
	}
}
