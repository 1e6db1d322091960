package agents

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	contractx "github.com/natthaphol/shopscout/agent/contract"
	convx "github.com/natthaphol/shopscout/agent/conversation"
)

type fakeLogStore struct {
	appendErr error
	records   []contractx.LogRecord
}

func (f *fakeLogStore) Append(_ context.Context, rec contractx.LogRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLogStore) Recent(_ context.Context, _ string, n int) ([]contractx.LogRecord, error) {
	if n <= 0 || n > len(f.records) {
		n = len(f.records)
	}
	return f.records[len(f.records)-n:], nil
}

func TestRecorderAppendsRunRecord(t *testing.T) {
	t.Parallel()

	conv := newConv(t, "budget wireless headphones under $40")
	_ = conv.SetAttributes(convx.QueryAttributes{Category: "headphones"})
	conv.SetCandidates([]convx.Candidate{})
	conv.SetAnswer(convx.FinalAnswer{Products: []convx.ProductView{
		{Title: "SoundCore Wireless", Price: "$34.99", Source: "amazon", URL: "https://example.com/a"},
	}})
	_ = conv.AppendTurn(convx.Turn{Agent: convx.AgentAnalyzer, Status: convx.TurnSuccess, At: time.Now()})

	store := &fakeLogStore{}
	r := &recorderImpl{store: store, now: time.Now}

	out, err := r.Handle(context.Background(), conv)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !out.Logged {
		t.Fatal("expected Logged outcome")
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.records))
	}

	rec := store.records[0]
	if rec.RunID != "run-1" || rec.SessionID != "session-1" {
		t.Fatalf("record identity wrong: %+v", rec)
	}
	if rec.Status != contractx.RunSuccess {
		t.Fatalf("status = %s, want success", rec.Status)
	}
	if len(rec.Products) != 1 || len(rec.Turns) != 1 {
		t.Fatalf("record content wrong: products=%d turns=%d", len(rec.Products), len(rec.Turns))
	}
	if rec.FinishedAt.Before(rec.StartedAt) {
		t.Fatalf("finished %v before started %v", rec.FinishedAt, rec.StartedAt)
	}
}

func TestRecorderMarksFailedRuns(t *testing.T) {
	t.Parallel()

	conv := newConv(t, "budget wireless headphones under $40")
	conv.MarkTerminal("retrieval exhausted")

	store := &fakeLogStore{}
	r := &recorderImpl{store: store, now: time.Now}

	if _, err := r.Handle(context.Background(), conv); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	rec := store.records[0]
	if rec.Status != contractx.RunFailure {
		t.Fatalf("status = %s, want failure", rec.Status)
	}
	if rec.Failure != "retrieval exhausted" {
		t.Fatalf("failure = %q", rec.Failure)
	}
}

func TestRecorderWrapsStoreErrors(t *testing.T) {
	t.Parallel()

	conv := newConv(t, "budget wireless headphones under $40")
	r := &recorderImpl{store: &fakeLogStore{appendErr: fmt.Errorf("redis down")}, now: time.Now}

	_, err := r.Handle(context.Background(), conv)
	if !errors.Is(err, contractx.ErrLogging) {
		t.Fatalf("expected ErrLogging, got %v", err)
	}
}
