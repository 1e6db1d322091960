package conversation

import (
	"fmt"
	"strings"
)

// AgentType identifies one pipeline stage. The selector dispatches on these
// values rather than free-form name strings.
type AgentType string

const (
	AgentAnalyzer  AgentType = "query_analyzer"
	AgentRetriever AgentType = "retrieval_agent"
	AgentFormatter AgentType = "response_formatter"
	AgentRecorder  AgentType = "conversation_recorder"
)

// AttributeUnknown marks an attribute the analyzer could not extract. Absent
// attributes are always explicit; they are never silently defaulted to values
// that could bias ranking.
const AttributeUnknown = "unknown"

// QueryAttributes is the normalized shape of a raw query. Produced once by
// the query analyzer and read-only afterwards within the same run.
type QueryAttributes struct {
	Category     string   `json:"category"`
	Keywords     []string `json:"keywords,omitempty"`
	PriceCeiling *float64 `json:"price_ceiling,omitempty"`
	Quantity     int      `json:"quantity,omitempty"`
}

func (a QueryAttributes) HasCategory() bool {
	c := strings.TrimSpace(a.Category)
	return c != "" && !strings.EqualFold(c, AttributeUnknown)
}

func (a QueryAttributes) HasPriceCeiling() bool {
	return a.PriceCeiling != nil && *a.PriceCeiling > 0
}

// SearchText renders the attributes back into the text that gets embedded for
// nearest-neighbor search.
func (a QueryAttributes) SearchText() string {
	parts := make([]string, 0, len(a.Keywords)+1)
	if a.HasCategory() {
		parts = append(parts, strings.ToLower(strings.TrimSpace(a.Category)))
	}
	for _, kw := range a.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		parts = append(parts, kw)
	}
	return strings.Join(parts, " ")
}

// Candidate is one scored product produced by the retrieval engine.
type Candidate struct {
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Source string  `json:"source"`
	URL    string  `json:"url"`
	Score  float64 `json:"score"`
}

// Valid reports whether the candidate satisfies the formatter's input
// contract. A candidate missing required fields is a programming error
// upstream, not user input.
func (c Candidate) Valid() bool {
	return strings.TrimSpace(c.Title) != "" &&
		strings.TrimSpace(c.Source) != "" &&
		strings.TrimSpace(c.URL) != "" &&
		c.Price >= 0 &&
		c.Score >= 0 && c.Score <= 1
}

// ProductView is the externally documented product shape.
type ProductView struct {
	Title  string `json:"title"`
	Price  string `json:"price"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// FinalAnswer is the formatter's projection of the candidate list, returned
// to the caller unchanged in order and field values.
type FinalAnswer struct {
	Products []ProductView `json:"products"`
}

// FormatPrice renders a price the way the wire shape documents it.
func FormatPrice(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}
