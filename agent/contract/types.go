package contract

import (
	"time"

	convx "github.com/natthaphol/shopscout/agent/conversation"
)

// Outcome is the tagged result of one agent turn. Exactly one payload field
// is set, matching the agent's stage.
type Outcome struct {
	Attributes *convx.QueryAttributes `json:"attributes,omitempty"`
	Candidates []convx.Candidate      `json:"candidates,omitempty"`
	Answer     *convx.FinalAnswer     `json:"answer,omitempty"`
	Logged     bool                   `json:"logged,omitempty"`

	// Summary is a short human-readable account of the turn for the run log.
	Summary string `json:"summary,omitempty"`
}

// SearchResponse is the wire shape the external HTTP collaborator adapts.
// Products is never nil; a fatal run failure carries a generic user-facing
// message in Error, distinct from a legitimate empty result.
type SearchResponse struct {
	Products []convx.ProductView `json:"products"`
	Error    string              `json:"error,omitempty"`
}

// RunStatus labels a completed run in the log record.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
)

// TurnRecord is the per-turn slice of a LogRecord.
type TurnRecord struct {
	Agent  convx.AgentType  `json:"agent"`
	Status convx.TurnStatus `json:"status"`
	At     time.Time        `json:"at"`
	Err    string           `json:"error,omitempty"`
}

// LogRecord is the structured record the recorder emits to the log store:
// the query, per-agent outputs, timestamps, and the run verdict.
type LogRecord struct {
	RunID      string                     `json:"run_id"`
	SessionID  string                     `json:"session_id,omitempty"`
	Query      string                     `json:"query"`
	Attributes *convx.QueryAttributes     `json:"attributes,omitempty"`
	Outputs    map[convx.AgentType]string `json:"outputs,omitempty"`
	Products   []convx.ProductView        `json:"products,omitempty"`
	Turns      []TurnRecord               `json:"turns"`
	Status     RunStatus                  `json:"status"`
	Failure    string                     `json:"failure,omitempty"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
}
