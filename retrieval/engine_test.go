package retrieval

import (
	"context"
	"reflect"
	"testing"

	convx "github.com/natthaphol/shopscout/agent/conversation"
)

func headphoneCorpus() []Product {
	return []Product{
		{Title: "SoundCore Wireless Headphones", Description: "budget over-ear bluetooth headphones", Category: "headphones", Price: 34.99, Source: "amazon", URL: "https://example.com/a"},
		{Title: "JLab Go Air Earbuds", Description: "budget wireless earbuds", Category: "headphones", Price: 24.99, Source: "walmart", URL: "https://example.com/b"},
		{Title: "Sony WH-CH520 Headphones", Description: "wireless on-ear headphones", Category: "headphones", Price: 38.00, Source: "amazon", URL: "https://example.com/c"},
		{Title: "Audiophile Studio Headphones", Description: "open-back wired studio headphones", Category: "headphones", Price: 149.00, Source: "amazon", URL: "https://example.com/d"},
		{Title: "Mechanical Gaming Keyboard", Description: "rgb mechanical keyboard", Category: "keyboard", Price: 45.50, Source: "walmart", URL: "https://example.com/e"},
	}
}

func newTestEngine(t *testing.T, products []Product, cfg EngineConfig) *Engine {
	t.Helper()

	index, err := NewIndex(IndexConfig{}, NewHashingEmbedder(256))
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	if err := index.Load(context.Background(), products); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	engine, err := NewEngine(index, cfg)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func budgetHeadphoneAttrs() convx.QueryAttributes {
	ceiling := 40.0
	return convx.QueryAttributes{
		Category:     "headphones",
		Keywords:     []string{"budget", "wireless", "headphones"},
		PriceCeiling: &ceiling,
	}
}

func TestRetrieveBudgetHeadphones(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, headphoneCorpus(), EngineConfig{MinSimilarity: 0.01})
	got, err := engine.Retrieve(context.Background(), budgetHeadphoneAttrs(), 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected candidates for the budget headphones query")
	}

	for i, c := range got {
		if c.Price > 40.99 {
			t.Fatalf("candidate %d priced %.2f above the tolerated ceiling", i, c.Price)
		}
		if c.Score < 0 || c.Score > 1 {
			t.Fatalf("candidate %d score %.4f outside [0,1]", i, c.Score)
		}
		if i > 0 && got[i-1].Score < c.Score {
			t.Fatalf("scores not descending at %d: %.4f < %.4f", i, got[i-1].Score, c.Score)
		}
		if !c.Valid() {
			t.Fatalf("candidate %d fails the formatter contract: %+v", i, c)
		}
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, headphoneCorpus(), EngineConfig{MinSimilarity: 0.01})
	attrs := budgetHeadphoneAttrs()

	first, err := engine.Retrieve(context.Background(), attrs, 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	second, err := engine.Retrieve(context.Background(), attrs, 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical queries diverged:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestRetrieveNothingExtractable(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, headphoneCorpus(), EngineConfig{})
	got, err := engine.Retrieve(context.Background(), convx.QueryAttributes{Category: convx.AttributeUnknown}, 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty candidate slice, got %+v", got)
	}
}

func TestRetrieveSimilarityThresholdCanEmptyTheResult(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, headphoneCorpus(), EngineConfig{MinSimilarity: 0.999})
	attrs := convx.QueryAttributes{
		Category: convx.AttributeUnknown,
		Keywords: []string{"quantum", "harp"},
	}

	got, err := engine.Retrieve(context.Background(), attrs, 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates above the threshold, got %+v", got)
	}
}

func TestRetrievePriceCeilingIsHardFilter(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, headphoneCorpus(), EngineConfig{MinSimilarity: 0.01})
	ceiling := 30.0
	attrs := convx.QueryAttributes{
		Category:     "headphones",
		Keywords:     []string{"headphones", "wireless"},
		PriceCeiling: &ceiling,
	}

	got, err := engine.Retrieve(context.Background(), attrs, 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	for i, c := range got {
		if c.Price > 30.99 {
			t.Fatalf("candidate %d priced %.2f above ceiling+tolerance", i, c.Price)
		}
	}
}

func TestRetrieveTieBreaksBySourcePriority(t *testing.T) {
	t.Parallel()

	// Identical embedding text and price, so similarity and blended score
	// tie; amazon has to outrank walmart regardless of insertion order.
	products := []Product{
		{Title: "Walmart Wireless Headphones", Description: "wireless headphones", Category: "headphones", Price: 29.99, Source: "walmart", URL: "https://example.com/w"},
		{Title: "Amazon Wireless Headphones", Description: "wireless headphones", Category: "headphones", Price: 29.99, Source: "amazon", URL: "https://example.com/z"},
	}
	// Same embedding input for both entries.
	products[0].Title = "Wireless Headphones"
	products[1].Title = "Wireless Headphones"

	engine := newTestEngine(t, products, EngineConfig{MinSimilarity: 0.01})
	attrs := convx.QueryAttributes{
		Category: "headphones",
		Keywords: []string{"wireless", "headphones"},
	}

	got, err := engine.Retrieve(context.Background(), attrs, 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Source != "amazon" {
		t.Fatalf("tie broken wrong: first source %q, want amazon", got[0].Source)
	}
}

func TestRetrieveCapsRequestedK(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, headphoneCorpus(), EngineConfig{MaxResults: 2, MinSimilarity: 0.01})
	got, err := engine.Retrieve(context.Background(), budgetHeadphoneAttrs(), 50)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) > 2 {
		t.Fatalf("expected at most 2 candidates, got %d", len(got))
	}
}
