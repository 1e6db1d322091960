package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// CatalogConfig configures the Postgres product catalog that seeds the
// vector index. The catalog's build/update pipeline is an external concern;
// this side only reads.
type CatalogConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type productRow struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          int64   `bun:"id,pk,autoincrement"`
	Title       string  `bun:"title,notnull"`
	Description string  `bun:"description"`
	Category    string  `bun:"category"`
	Price       float64 `bun:"price,notnull"`
	Source      string  `bun:"source,notnull"`
	URL         string  `bun:"url,notnull"`
}

// Catalog reads the product corpus from Postgres.
type Catalog struct {
	db      *bun.DB
	timeout time.Duration
}

func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: catalog dsn is required", ErrInvalidConfig)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &Catalog{db: db, timeout: timeout}, nil
}

// All returns every product ordered by id, which fixes the corpus insertion
// order the engine uses for tie-breaking.
func (c *Catalog) All(ctx context.Context) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rows []productRow
	if err := c.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}

	products := make([]Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, Product{
			ID:          fmt.Sprintf("product-%d", r.ID),
			Title:       r.Title,
			Description: r.Description,
			Category:    r.Category,
			Price:       r.Price,
			Source:      r.Source,
			URL:         r.URL,
		})
	}
	return products, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
