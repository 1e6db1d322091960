// Package retrieval implements the vector index and ranking engine that turn
// structured query attributes into scored product candidates.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

var (
	ErrEmptyCorpus   = errors.New("product index is empty")
	ErrInvalidConfig = errors.New("invalid retrieval configuration")
)

// Product is one corpus entry: embedding source text plus the metadata the
// engine needs for re-ranking and projection.
type Product struct {
	ID          string
	Title       string
	Description string
	Category    string
	Price       float64
	Source      string
	URL         string
}

// Match is one nearest-neighbor hit before re-ranking.
type Match struct {
	Product    Product
	Similarity float64
	Position   int
}

// IndexConfig configures the embedded chromem-go store.
type IndexConfig struct {
	Path       string `envconfig:"PATH" split_words:"true"`
	Collection string `envconfig:"COLLECTION" split_words:"true" default:"products"`
	Compress   bool   `envconfig:"COMPRESS" split_words:"true" default:"false"`
}

// Index is a read-only-after-load vector index over the product corpus.
// Queries are shared-read safe; Load must complete before the first query.
type Index struct {
	coll     *chromem.Collection
	embedder Embedder
	count    int
}

// NewIndex opens (or creates) the chromem collection. An empty Path keeps the
// corpus in memory, which is what tests and single-shot runs use.
func NewIndex(cfg IndexConfig, embedder Embedder) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	collName := strings.TrimSpace(cfg.Collection)
	if collName == "" {
		collName = "products"
	}

	var (
		db  *chromem.DB
		err error
	)
	if path := strings.TrimSpace(cfg.Path); path != "" {
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
		}
	} else {
		db = chromem.NewDB()
	}

	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	coll, err := db.GetOrCreateCollection(collName, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", collName, err)
	}

	return &Index{
		coll:     coll,
		embedder: embedder,
		count:    coll.Count(),
	}, nil
}

// Load embeds and stores the given products. Insertion order is recorded so
// ranking ties can be broken deterministically.
func (ix *Index) Load(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = embeddingText(p)
	}
	embeddings, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed products: %w", err)
	}
	if len(embeddings) != len(products) {
		return fmt.Errorf("embedding count mismatch: want %d got %d", len(products), len(embeddings))
	}

	docs := make([]chromem.Document, len(products))
	for i, p := range products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = fmt.Sprintf("product-%d", ix.count+i)
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   texts[i],
			Embedding: embeddings[i],
			Metadata: map[string]string{
				"title":    p.Title,
				"category": strings.ToLower(strings.TrimSpace(p.Category)),
				"price":    strconv.FormatFloat(p.Price, 'f', 2, 64),
				"source":   strings.ToLower(strings.TrimSpace(p.Source)),
				"url":      p.URL,
				"position": strconv.Itoa(ix.count + i),
			},
		}
	}

	if err := ix.coll.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	ix.count += len(docs)
	return nil
}

// Count returns the number of indexed products.
func (ix *Index) Count() int {
	return ix.coll.Count()
}

// Search returns up to n nearest neighbors for the query text, highest
// similarity first.
func (ix *Index) Search(ctx context.Context, text string, n int) ([]Match, error) {
	docCount := ix.coll.Count()
	if docCount == 0 {
		return []Match{}, nil
	}
	if n > docCount {
		n = docCount
	}
	if n <= 0 {
		return []Match{}, nil
	}

	results, err := ix.coll.Query(ctx, text, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Product:    productFromMetadata(r.ID, r.Metadata),
			Similarity: float64(r.Similarity),
			Position:   atoiOr(r.Metadata["position"], 0),
		})
	}
	return matches, nil
}

func embeddingText(p Product) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Title, p.Category, p.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func productFromMetadata(id string, md map[string]string) Product {
	price, _ := strconv.ParseFloat(md["price"], 64)
	return Product{
		ID:       id,
		Title:    md["title"],
		Category: md["category"],
		Price:    price,
		Source:   md["source"],
		URL:      md["url"],
	}
}

func atoiOr(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
