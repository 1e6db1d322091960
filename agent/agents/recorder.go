package agents

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/natthaphol/shopscout/agent/contract"
	convx "github.com/natthaphol/shopscout/agent/conversation"
)

// recorderImpl emits the structured run record to the external log store.
// It runs on both success and failure paths; on failure it records whatever
// partial context exists.
type recorderImpl struct {
	store contractx.LogStore
	now   func() time.Time
}

func (r *recorderImpl) Type() convx.AgentType {
	return convx.AgentRecorder
}

func (r *recorderImpl) Handle(ctx context.Context, conv *convx.Context) (contractx.Outcome, error) {
	if conv == nil {
		return contractx.Outcome{}, fmt.Errorf("%w: conversation is nil", contractx.ErrValidation)
	}

	rec := buildLogRecord(conv, r.now())
	if err := r.store.Append(ctx, rec); err != nil {
		return contractx.Outcome{}, fmt.Errorf("%w: %v", contractx.ErrLogging, err)
	}

	return contractx.Outcome{
		Logged:  true,
		Summary: fmt.Sprintf("logged run %s", conv.RunID),
	}, nil
}

func buildLogRecord(conv *convx.Context, now time.Time) contractx.LogRecord {
	status := contractx.RunSuccess
	if conv.Failed() {
		status = contractx.RunFailure
	}

	turns := make([]contractx.TurnRecord, 0, len(conv.Turns))
	for _, t := range conv.Turns {
		turns = append(turns, contractx.TurnRecord{
			Agent:  t.Agent,
			Status: t.Status,
			At:     t.At,
			Err:    t.Err,
		})
	}

	var products []convx.ProductView
	if conv.Answer != nil {
		products = conv.Answer.Products
	}

	outputs := make(map[convx.AgentType]string, len(conv.Outputs))
	for agent, out := range conv.Outputs {
		outputs[agent] = out
	}

	return contractx.LogRecord{
		RunID:      conv.RunID,
		SessionID:  conv.SessionID,
		Query:      conv.RawQuery,
		Attributes: conv.Attributes,
		Outputs:    outputs,
		Products:   products,
		Turns:      turns,
		Status:     status,
		Failure:    conv.Failure,
		StartedAt:  conv.StartedAt,
		FinishedAt: now.UTC(),
	}
}
