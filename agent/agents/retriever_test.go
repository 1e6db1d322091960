package agents

import (
	"context"
	"errors"
	"fmt"
	"testing"

	contractx "github.com/natthaphol/shopscout/agent/contract"
	convx "github.com/natthaphol/shopscout/agent/conversation"
)

type fakeEngine struct {
	candidates []convx.Candidate
	err        error
	lastK      int
	calls      int
}

func (f *fakeEngine) Retrieve(_ context.Context, _ convx.QueryAttributes, k int) ([]convx.Candidate, error) {
	f.calls++
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func attributedConv(t *testing.T) *convx.Context {
	t.Helper()
	conv := newConv(t, "budget wireless headphones under $40")
	if err := conv.SetAttributes(convx.QueryAttributes{Category: "headphones", Keywords: []string{"budget", "wireless"}}); err != nil {
		t.Fatalf("SetAttributes() error = %v", err)
	}
	return conv
}

func TestRetrieverPassesPositiveK(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{candidates: []convx.Candidate{
		{Title: "SoundCore Wireless", Price: 34.99, Source: "amazon", URL: "https://example.com/a", Score: 0.9},
	}}
	r := &retrieverImpl{engine: engine, maxResults: 3}

	out, err := r.Handle(context.Background(), attributedConv(t))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if engine.lastK != 3 {
		t.Fatalf("engine called with k=%d, want 3", engine.lastK)
	}
	if len(out.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out.Candidates))
	}

	// A zero-value retriever still asks for a positive k; the engine contract
	// promises nothing for k <= 0.
	unset := &retrieverImpl{engine: engine}
	if _, err := unset.Handle(context.Background(), attributedConv(t)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if engine.lastK != defaultMaxResults {
		t.Fatalf("engine called with k=%d, want %d", engine.lastK, defaultMaxResults)
	}
}

func TestRetrieverRequiresAttributes(t *testing.T) {
	t.Parallel()

	r := &retrieverImpl{engine: &fakeEngine{}, maxResults: 5}
	_, err := r.Handle(context.Background(), newConv(t, "budget wireless headphones"))
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation before attributes are set, got %v", err)
	}
}

func TestRetrieverNormalizesNilCandidates(t *testing.T) {
	t.Parallel()

	r := &retrieverImpl{engine: &fakeEngine{candidates: nil}, maxResults: 5}
	out, err := r.Handle(context.Background(), attributedConv(t))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Candidates == nil {
		t.Fatal("nil engine result must surface as an empty slice")
	}
	if len(out.Candidates) != 0 {
		t.Fatalf("expected empty candidates, got %d", len(out.Candidates))
	}
}

func TestRetrieverClassifiesErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		engineErr error
		want      error
	}{
		{"deadline becomes timeout", context.DeadlineExceeded, contractx.ErrRetrievalTimeout},
		{"typed timeout passes through", fmt.Errorf("%w: upstream", contractx.ErrRetrievalTimeout), contractx.ErrRetrievalTimeout},
		{"typed unavailable passes through", fmt.Errorf("%w: upstream", contractx.ErrRetrievalUnavailable), contractx.ErrRetrievalUnavailable},
		{"anything else is unavailable", fmt.Errorf("connection refused"), contractx.ErrRetrievalUnavailable},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := &retrieverImpl{engine: &fakeEngine{err: tc.engineErr}, maxResults: 5}
			_, err := r.Handle(context.Background(), attributedConv(t))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
