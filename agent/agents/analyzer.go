package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/natthaphol/shopscout/agent/contract"
	convx "github.com/natthaphol/shopscout/agent/conversation"
)

// analyzerImpl extracts structured attributes from the raw query. The LLM is
// the primary extractor; when it is unavailable or misbehaves the analyzer
// downgrades to heuristics rather than blocking the pipeline.
type analyzerImpl struct {
	runner compose.Runnable[map[string]any, analyzerLLMOutput]
}

type analyzerLLMOutput struct {
	Category     string   `json:"category"`
	PriceCeiling float64  `json:"price_ceiling,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Quantity     int      `json:"quantity,omitempty"`
}

func (a *analyzerImpl) Type() convx.AgentType {
	return convx.AgentAnalyzer
}

func (a *analyzerImpl) Handle(ctx context.Context, conv *convx.Context) (contractx.Outcome, error) {
	if conv == nil {
		return contractx.Outcome{}, fmt.Errorf("%w: conversation is nil", contractx.ErrValidation)
	}

	raw := strings.TrimSpace(conv.RawQuery)
	if raw == "" {
		return contractx.Outcome{}, fmt.Errorf("%w: query is empty", contractx.ErrUnparsableQuery)
	}

	var attrs convx.QueryAttributes
	if !isText(raw) {
		// Nothing extractable. All-unknown attributes flow through the
		// pipeline to the legitimate empty answer rather than failing the run.
		log.Debug().Str("query", conv.RawQuery).Msg("non-text query, no attributes extracted")
		attrs = convx.QueryAttributes{Category: convx.AttributeUnknown}
	} else {
		attrs = a.extract(ctx, raw)
	}

	summary, err := json.Marshal(attrs)
	if err != nil {
		return contractx.Outcome{}, fmt.Errorf("%w: marshal attributes: %v", contractx.ErrValidation, err)
	}

	return contractx.Outcome{
		Attributes: &attrs,
		Summary:    string(summary),
	}, nil
}

func (a *analyzerImpl) extract(ctx context.Context, raw string) convx.QueryAttributes {
	fallback := heuristicAttributes(raw)
	if a.runner == nil {
		return fallback
	}

	out, err := a.runner.Invoke(ctx, map[string]any{
		"input": raw,
	})
	if err != nil {
		log.Warn().Err(err).Msg("analyzer model failed, using heuristic attributes")
		return fallback
	}

	return mergeAttributes(out, fallback)
}

// mergeAttributes normalizes the model output and backfills anything the
// model left out from the heuristic pass. Absent fields stay explicitly
// unknown; they are never guessed into ranking-relevant defaults.
func mergeAttributes(out analyzerLLMOutput, fallback convx.QueryAttributes) convx.QueryAttributes {
	attrs := convx.QueryAttributes{
		Category: convx.AttributeUnknown,
		Quantity: out.Quantity,
	}

	if c := strings.ToLower(strings.TrimSpace(out.Category)); c != "" && c != convx.AttributeUnknown {
		attrs.Category = c
	} else if fallback.HasCategory() {
		attrs.Category = fallback.Category
	}

	if out.PriceCeiling > 0 {
		ceiling := out.PriceCeiling
		attrs.PriceCeiling = &ceiling
	} else if fallback.HasPriceCeiling() {
		attrs.PriceCeiling = fallback.PriceCeiling
	}

	for _, kw := range out.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || kw == convx.AttributeUnknown {
			continue
		}
		attrs.Keywords = append(attrs.Keywords, kw)
	}
	if len(attrs.Keywords) == 0 {
		attrs.Keywords = fallback.Keywords
	}

	if attrs.Quantity <= 0 {
		attrs.Quantity = fallback.Quantity
	}

	return attrs
}

// isText rejects inputs with no letters or digits (separators, emoji soup,
// invalid UTF-8). Anything with a word in it gets best-effort treatment.
func isText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
