package prompt

import (
	_ "embed"
	"strings"
)

//go:embed template/analyzer.txt
var analyzerRaw string

// Set holds the loaded prompt content.
type Set struct {
	Analyzer string
}

// Load returns the trimmed prompt set. Safe to call concurrently; the embed
// is compile-time.
func Load() Set {
	return Set{
		Analyzer: strings.TrimSpace(analyzerRaw),
	}
}
