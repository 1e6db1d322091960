package agents

import (
	"regexp"
	"strconv"
	"strings"

	convx "github.com/natthaphol/shopscout/agent/conversation"
)

// Price ceilings phrased as "under $40", "below 40", "less than $39.99",
// "up to $40", "max $40".
var priceCeilingPattern = regexp.MustCompile(
	`(?i)(?:under|below|less than|at most|up to|max(?:imum)?)\s*\$?\s*(\d+(?:\.\d{1,2})?)`)

// Quantities phrased as "2 pairs", "3x", "4 packs", "2 pcs".
var quantityPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(?:x\b|pairs?\b|packs?\b|pcs\b|pieces?\b)`)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "for": {}, "me": {}, "my": {}, "i": {},
	"want": {}, "need": {}, "find": {}, "show": {}, "get": {}, "buy": {},
	"some": {}, "good": {}, "best": {}, "please": {}, "under": {},
	"below": {}, "less": {}, "than": {}, "at": {}, "most": {}, "up": {},
	"to": {}, "max": {}, "maximum": {}, "and": {}, "or": {}, "with": {},
	"of": {}, "in": {}, "on": {},
}

// categoryVocabulary maps tokens the heuristic pass recognizes as a product
// category. Anything else stays explicitly unknown; the analyzer never
// guesses a category from arbitrary keywords.
var categoryVocabulary = map[string]string{
	"headphone": "headphones", "headphones": "headphones",
	"earbud": "headphones", "earbuds": "headphones",
	"laptop": "laptop", "laptops": "laptop",
	"keyboard": "keyboard", "keyboards": "keyboard",
	"mouse": "mouse", "mice": "mouse",
	"monitor": "monitor", "monitors": "monitor",
	"phone": "phone", "phones": "phone", "smartphone": "phone",
	"speaker": "speaker", "speakers": "speaker",
	"tablet": "tablet", "tablets": "tablet",
	"camera": "camera", "cameras": "camera",
	"charger": "charger", "chargers": "charger",
	"backpack": "backpack", "backpacks": "backpack",
	"shoe": "shoes", "shoes": "shoes", "sneakers": "shoes",
	"watch": "watch", "watches": "watch", "smartwatch": "watch",
}

var nonWordPattern = regexp.MustCompile(`[^a-z0-9$.]+`)

// heuristicAttributes is the no-model extraction path: regex for the price
// ceiling and quantity, token filtering for keywords, and a fixed vocabulary
// for the category.
func heuristicAttributes(raw string) convx.QueryAttributes {
	attrs := convx.QueryAttributes{
		Category: convx.AttributeUnknown,
	}

	if m := priceCeilingPattern.FindStringSubmatch(raw); len(m) == 2 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			attrs.PriceCeiling = &v
		}
	}
	if m := quantityPattern.FindStringSubmatch(raw); len(m) == 2 {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			attrs.Quantity = v
		}
	}

	lowered := nonWordPattern.ReplaceAllString(strings.ToLower(raw), " ")
	for _, tok := range strings.Fields(lowered) {
		tok = strings.Trim(tok, "$.")
		if tok == "" {
			continue
		}
		if _, isStop := stopwords[tok]; isStop {
			continue
		}
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			continue
		}
		attrs.Keywords = append(attrs.Keywords, tok)
		if cat, ok := categoryVocabulary[tok]; ok {
			attrs.Category = cat
		}
	}

	return attrs
}
