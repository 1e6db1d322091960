// Package selector decides which agent speaks next in an orchestrated run.
//
// The policy is a total order over the pipeline stages: analyze, retrieve,
// format, record. Every call either advances the stage, retries the failed
// stage, or terminates, so the turn count is bounded.
package selector

import (
	"fmt"

	contractx "github.com/natthaphol/shopscout/agent/contract"
	convx "github.com/natthaphol/shopscout/agent/conversation"
)

// DefaultRetryCeiling is the number of failed turns one stage may accumulate
// before the run fails. Two consecutive failures exhaust the default.
const DefaultRetryCeiling = 2

// Decision is the selector's verdict for the current conversation state.
// Exactly one of Agent, Done, or Err is meaningful.
type Decision struct {
	Agent convx.AgentType
	Done  bool
	Err   error
}

// Next maps the conversation state to the next agent, completion, or a
// run-level failure. It never mutates the conversation.
func Next(conv *convx.Context, retryCeiling int) Decision {
	if conv == nil {
		return Decision{Err: fmt.Errorf("%w: conversation is nil", contractx.ErrValidation)}
	}
	if retryCeiling <= 0 {
		retryCeiling = DefaultRetryCeiling
	}

	if conv.Terminal {
		return Decision{Done: true}
	}

	if last := conv.LastTurn(); last != nil && last.Status == convx.TurnFailure {
		return afterFailure(conv, last, retryCeiling)
	}

	switch {
	case conv.Attributes == nil:
		return Decision{Agent: convx.AgentAnalyzer}
	case conv.Candidates == nil:
		return Decision{Agent: convx.AgentRetriever}
	case conv.Answer == nil:
		return Decision{Agent: convx.AgentFormatter}
	case !conv.LogRecorded:
		return Decision{Agent: convx.AgentRecorder}
	default:
		return Decision{Done: true}
	}
}

func afterFailure(conv *convx.Context, last *convx.Turn, retryCeiling int) Decision {
	// A malformed candidate record is a programming-contract violation, not a
	// transient fault. Never retried.
	if last.Agent == convx.AgentFormatter {
		return Decision{Err: fmt.Errorf("%w: %s", contractx.ErrFormatting, last.Err)}
	}

	if conv.FailureCount(last.Agent) >= retryCeiling {
		if last.Agent == convx.AgentRecorder {
			// Logging is best-effort: give up without failing the run.
			return Decision{Done: true}
		}
		return Decision{Err: fmt.Errorf("%w: agent %s failed %d times: %s", contractx.ErrRetryExhausted, last.Agent, retryCeiling, last.Err)}
	}

	return Decision{Agent: last.Agent}
}
