package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Context is the shared state of one orchestrated run. It is owned by exactly
// one orchestrator invocation and mutated only through AppendTurn and the
// Set* helpers; it must never be shared across concurrent runs.
type Context struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id"`
	RawQuery  string `json:"raw_query"`

	Turns []Turn `json:"turns"`

	Attributes *QueryAttributes `json:"attributes,omitempty"`
	Candidates []Candidate      `json:"candidates,omitempty"`
	Answer     *FinalAnswer     `json:"answer,omitempty"`
	LogRecorded bool            `json:"log_recorded"`

	// Outputs keeps the latest raw output per agent for the run log.
	Outputs map[AgentType]string `json:"outputs,omitempty"`

	Terminal bool   `json:"terminal"`
	Failure  string `json:"failure,omitempty"`

	StartedAt time.Time `json:"started_at"`
}

type TurnStatus string

const (
	TurnSuccess TurnStatus = "success"
	TurnFailure TurnStatus = "failure"
)

// Turn is one recorded agent invocation. Immutable once appended.
type Turn struct {
	Agent  AgentType  `json:"agent"`
	Input  string     `json:"input"`
	Output string     `json:"output,omitempty"`
	Status TurnStatus `json:"status"`
	Err    string     `json:"error,omitempty"`
	At     time.Time  `json:"at"`
}

var (
	ErrNilContext      = errors.New("conversation context is nil")
	ErrTerminalContext = errors.New("conversation context is terminal")
	ErrAttributesReset = errors.New("query attributes already set")
)

func New(runID, sessionID, rawQuery string, now time.Time) *Context {
	return &Context{
		RunID:     strings.TrimSpace(runID),
		SessionID: strings.TrimSpace(sessionID),
		RawQuery:  rawQuery,
		Outputs:   make(map[AgentType]string, 4),
		StartedAt: now.UTC(),
	}
}

// AppendTurn records an agent invocation. Turns only grow. Once the context
// is terminal only recorder turns may still be appended: the best-effort
// logging attempt on failure paths happens after the terminal transition.
func (c *Context) AppendTurn(t Turn) error {
	if c == nil {
		return ErrNilContext
	}
	if c.Terminal && t.Agent != AgentRecorder {
		return ErrTerminalContext
	}
	t.At = t.At.UTC()
	c.Turns = append(c.Turns, t)
	if t.Status == TurnSuccess && t.Output != "" {
		if c.Outputs == nil {
			c.Outputs = make(map[AgentType]string, 4)
		}
		c.Outputs[t.Agent] = t.Output
	}
	return nil
}

// LastTurn returns the most recent turn, or nil when no agent has run yet.
func (c *Context) LastTurn() *Turn {
	if c == nil || len(c.Turns) == 0 {
		return nil
	}
	return &c.Turns[len(c.Turns)-1]
}

// FailureCount counts failed turns attributed to one agent.
func (c *Context) FailureCount(agent AgentType) int {
	if c == nil {
		return 0
	}
	n := 0
	for _, t := range c.Turns {
		if t.Agent == agent && t.Status == TurnFailure {
			n++
		}
	}
	return n
}

// SetAttributes installs the analyzer output. Attributes are written exactly
// once per run; a second write is a contract violation.
func (c *Context) SetAttributes(attrs QueryAttributes) error {
	if c == nil {
		return ErrNilContext
	}
	if c.Attributes != nil {
		return ErrAttributesReset
	}
	c.Attributes = &attrs
	return nil
}

// SetCandidates installs the retriever output. A nil slice is normalized to
// an empty one: no results is a valid, recorded outcome.
func (c *Context) SetCandidates(cands []Candidate) {
	if c == nil {
		return
	}
	if cands == nil {
		cands = []Candidate{}
	}
	c.Candidates = cands
}

func (c *Context) SetAnswer(answer FinalAnswer) {
	if c == nil {
		return
	}
	c.Answer = &answer
}

func (c *Context) MarkLogged() {
	if c == nil {
		return
	}
	c.LogRecorded = true
}

// MarkTerminal flips the terminal flag. The flag never reverts; reason is
// kept only for the first terminal transition.
func (c *Context) MarkTerminal(reason string) {
	if c == nil || c.Terminal {
		return
	}
	c.Terminal = true
	c.Failure = strings.TrimSpace(reason)
}

func (c *Context) Failed() bool {
	return c != nil && c.Terminal && c.Failure != ""
}

func (c *Context) Validate() error {
	if c == nil {
		return ErrNilContext
	}
	if c.Attributes == nil {
		for _, t := range c.Turns {
			if t.Agent == AgentRetriever {
				return fmt.Errorf("retrieval turn recorded before query attributes were set")
			}
		}
	}
	if !c.Terminal && c.Failure != "" {
		return fmt.Errorf("failure reason set on non-terminal context")
	}
	return nil
}
