package contract

import (
	"context"

	convx "github.com/natthaphol/shopscout/agent/conversation"
)

// Agent is one stateless pipeline stage. Handle reads the shared conversation
// context and returns an outcome; the orchestrator alone appends turns and
// applies the outcome, so agents never mutate the context directly.
type Agent interface {
	Type() convx.AgentType
	Handle(ctx context.Context, conv *convx.Context) (Outcome, error)
}

// Registry exposes the four capability agents by stage.
type Registry interface {
	Analyzer() Agent
	Retriever() Agent
	Formatter() Agent
	Recorder() Agent
}

// Engine turns structured query attributes into scored candidates. Retrieve
// returns at most k candidates in descending score order; an empty slice is a
// valid outcome, not an error. It must be deterministic for identical
// (attrs, corpus-state) pairs.
type Engine interface {
	Retrieve(ctx context.Context, attrs convx.QueryAttributes, k int) ([]convx.Candidate, error)
}

// LogStore is the external append-only store behind the conversation
// recorder. The exact storage schema is the collaborator's concern.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Recent(ctx context.Context, sessionID string, n int) ([]LogRecord, error)
}
