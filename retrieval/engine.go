package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	convx "github.com/natthaphol/shopscout/agent/conversation"
)

// EngineConfig holds the ranking knobs.
type EngineConfig struct {
	// MaxResults caps k regardless of what the caller asks for.
	MaxResults int `envconfig:"MAX_RESULTS" split_words:"true" default:"5"`

	// Oversample controls how many neighbors are fetched before re-ranking:
	// n = Oversample * k.
	Oversample int `envconfig:"OVERSAMPLE" split_words:"true" default:"4"`

	// MinSimilarity drops neighbors below this cosine similarity. An empty
	// result set is a valid outcome, not an error.
	MinSimilarity float64 `envconfig:"MIN_SIMILARITY" split_words:"true" default:"0.30"`

	// Blend weights for the final score.
	SimilarityWeight float64 `envconfig:"SIMILARITY_WEIGHT" split_words:"true" default:"0.7"`
	PriceWeight      float64 `envconfig:"PRICE_WEIGHT" split_words:"true" default:"0.2"`
	CategoryWeight   float64 `envconfig:"CATEGORY_WEIGHT" split_words:"true" default:"0.1"`

	// PriceTolerance widens the stated ceiling: a $40 ceiling admits prices
	// up to $40.99.
	PriceTolerance float64 `envconfig:"PRICE_TOLERANCE" split_words:"true" default:"0.99"`

	// SourcePriority breaks score ties; earlier sources win. Unlisted sources
	// rank after all listed ones, then insertion order decides.
	SourcePriority []string `envconfig:"SOURCE_PRIORITY" split_words:"true" default:"amazon,walmart"`
}

func (c *EngineConfig) applyDefaults() {
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.Oversample <= 1 {
		c.Oversample = 4
	}
	if c.SimilarityWeight <= 0 {
		c.SimilarityWeight = 0.7
	}
	if c.PriceWeight < 0 {
		c.PriceWeight = 0.2
	}
	if c.CategoryWeight < 0 {
		c.CategoryWeight = 0.1
	}
	if c.PriceTolerance < 0 {
		c.PriceTolerance = 0.99
	}
	if len(c.SourcePriority) == 0 {
		c.SourcePriority = []string{"amazon", "walmart"}
	}
}

// Engine ranks indexed products against query attributes. It holds only a
// shared-read index handle, so one engine serves concurrent runs.
type Engine struct {
	index      *Index
	cfg        EngineConfig
	sourceRank map[string]int
}

func NewEngine(index *Index, cfg EngineConfig) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: index is required", ErrInvalidConfig)
	}
	cfg.applyDefaults()

	rank := make(map[string]int, len(cfg.SourcePriority))
	for i, src := range cfg.SourcePriority {
		rank[strings.ToLower(strings.TrimSpace(src))] = i
	}

	return &Engine{index: index, cfg: cfg, sourceRank: rank}, nil
}

// Retrieve embeds the attributes, fetches oversampled neighbors, re-ranks
// them by the blended score, and returns at most k candidates in descending
// score order. Identical (attrs, corpus-state) pairs yield identical output.
func (e *Engine) Retrieve(ctx context.Context, attrs convx.QueryAttributes, k int) ([]convx.Candidate, error) {
	if k <= 0 || k > e.cfg.MaxResults {
		k = e.cfg.MaxResults
	}

	text := attrs.SearchText()
	if text == "" {
		// Nothing extractable to search with; an empty answer is the honest one.
		return []convx.Candidate{}, nil
	}

	matches, err := e.index.Search(ctx, text, e.cfg.Oversample*k)
	if err != nil {
		return nil, err
	}

	scored := make([]scoredMatch, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < e.cfg.MinSimilarity {
			continue
		}
		if attrs.HasPriceCeiling() && m.Product.Price > *attrs.PriceCeiling+e.cfg.PriceTolerance {
			continue
		}
		scored = append(scored, scoredMatch{
			match: m,
			score: e.blend(m, attrs),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		ri, rj := e.rankSource(scored[i].match.Product.Source), e.rankSource(scored[j].match.Product.Source)
		if ri != rj {
			return ri < rj
		}
		return scored[i].match.Position < scored[j].match.Position
	})

	if len(scored) > k {
		scored = scored[:k]
	}

	out := make([]convx.Candidate, 0, len(scored))
	for _, s := range scored {
		out = append(out, convx.Candidate{
			Title:  s.match.Product.Title,
			Price:  s.match.Product.Price,
			Source: s.match.Product.Source,
			URL:    s.match.Product.URL,
			Score:  s.score,
		})
	}

	log.Debug().
		Str("query", text).
		Int("neighbors", len(matches)).
		Int("returned", len(out)).
		Msg("retrieval complete")

	return out, nil
}

type scoredMatch struct {
	match Match
	score float64
}

// blend combines similarity with attribute-match bonuses. Weights for
// attributes the query left unknown are dropped and the remainder is
// renormalized, so an unknown ceiling never penalizes anyone.
func (e *Engine) blend(m Match, attrs convx.QueryAttributes) float64 {
	score := e.cfg.SimilarityWeight * m.Similarity
	total := e.cfg.SimilarityWeight

	if attrs.HasPriceCeiling() {
		total += e.cfg.PriceWeight
		if m.Product.Price <= *attrs.PriceCeiling {
			score += e.cfg.PriceWeight
		}
	}
	if attrs.HasCategory() {
		total += e.cfg.CategoryWeight
		if strings.EqualFold(strings.TrimSpace(m.Product.Category), strings.TrimSpace(attrs.Category)) {
			score += e.cfg.CategoryWeight
		}
	}

	if total <= 0 {
		return clamp01(m.Similarity)
	}
	return clamp01(score / total)
}

func (e *Engine) rankSource(source string) int {
	if r, ok := e.sourceRank[strings.ToLower(strings.TrimSpace(source))]; ok {
		return r
	}
	return len(e.sourceRank)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
