package conversation

import (
	"errors"
	"testing"
	"time"
)

func testContext() *Context {
	return New("run-1", "session-1", "budget wireless headphones under $40", time.Now())
}

func TestAppendTurnGrowsAndRecordsOutputs(t *testing.T) {
	t.Parallel()

	conv := testContext()
	if err := conv.AppendTurn(Turn{Agent: AgentAnalyzer, Status: TurnSuccess, Output: "attrs"}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := conv.AppendTurn(Turn{Agent: AgentRetriever, Status: TurnFailure, Err: "boom"}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	if len(conv.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(conv.Turns))
	}
	if conv.Outputs[AgentAnalyzer] != "attrs" {
		t.Fatalf("expected analyzer output recorded, got %q", conv.Outputs[AgentAnalyzer])
	}
	if _, ok := conv.Outputs[AgentRetriever]; ok {
		t.Fatal("failed turn must not record an output")
	}
	if last := conv.LastTurn(); last == nil || last.Agent != AgentRetriever {
		t.Fatalf("unexpected last turn: %+v", last)
	}
}

func TestAppendTurnAfterTerminal(t *testing.T) {
	t.Parallel()

	conv := testContext()
	conv.MarkTerminal("retrieval exhausted")

	err := conv.AppendTurn(Turn{Agent: AgentAnalyzer, Status: TurnSuccess})
	if !errors.Is(err, ErrTerminalContext) {
		t.Fatalf("expected ErrTerminalContext, got %v", err)
	}

	// Best-effort logging still appends recorder turns on failed runs.
	if err := conv.AppendTurn(Turn{Agent: AgentRecorder, Status: TurnFailure, Err: "store down"}); err != nil {
		t.Fatalf("recorder turn on terminal context: %v", err)
	}
}

func TestSetAttributesExactlyOnce(t *testing.T) {
	t.Parallel()

	conv := testContext()
	if err := conv.SetAttributes(QueryAttributes{Category: "headphones"}); err != nil {
		t.Fatalf("SetAttributes() error = %v", err)
	}
	if err := conv.SetAttributes(QueryAttributes{Category: "laptop"}); !errors.Is(err, ErrAttributesReset) {
		t.Fatalf("expected ErrAttributesReset, got %v", err)
	}
	if conv.Attributes.Category != "headphones" {
		t.Fatalf("attributes overwritten: %+v", conv.Attributes)
	}
}

func TestSetCandidatesNormalizesNil(t *testing.T) {
	t.Parallel()

	conv := testContext()
	conv.SetCandidates(nil)
	if conv.Candidates == nil {
		t.Fatal("nil candidates must normalize to an empty slice")
	}
	if len(conv.Candidates) != 0 {
		t.Fatalf("expected empty candidates, got %d", len(conv.Candidates))
	}
}

func TestMarkTerminalNeverReverts(t *testing.T) {
	t.Parallel()

	conv := testContext()
	conv.MarkTerminal("first reason")
	conv.MarkTerminal("")

	if !conv.Terminal {
		t.Fatal("terminal flag reverted")
	}
	if conv.Failure != "first reason" {
		t.Fatalf("failure reason changed: %q", conv.Failure)
	}
	if !conv.Failed() {
		t.Fatal("expected Failed() on terminal context with a reason")
	}
}

func TestFailureCount(t *testing.T) {
	t.Parallel()

	conv := testContext()
	_ = conv.AppendTurn(Turn{Agent: AgentRetriever, Status: TurnFailure, Err: "a"})
	_ = conv.AppendTurn(Turn{Agent: AgentRetriever, Status: TurnSuccess})
	_ = conv.AppendTurn(Turn{Agent: AgentRetriever, Status: TurnFailure, Err: "b"})
	_ = conv.AppendTurn(Turn{Agent: AgentAnalyzer, Status: TurnFailure, Err: "c"})

	if got := conv.FailureCount(AgentRetriever); got != 2 {
		t.Fatalf("retriever failures = %d, want 2", got)
	}
	if got := conv.FailureCount(AgentFormatter); got != 0 {
		t.Fatalf("formatter failures = %d, want 0", got)
	}
}

func TestQueryAttributesSearchText(t *testing.T) {
	t.Parallel()

	attrs := QueryAttributes{
		Category: "headphones",
		Keywords: []string{"Budget", " wireless ", ""},
	}
	if got := attrs.SearchText(); got != "headphones budget wireless" {
		t.Fatalf("SearchText() = %q", got)
	}

	unknown := QueryAttributes{Category: AttributeUnknown}
	if got := unknown.SearchText(); got != "" {
		t.Fatalf("SearchText() on unknown attrs = %q, want empty", got)
	}
}
