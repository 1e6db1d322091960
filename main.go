package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/natthaphol/shopscout/agent/agents"
	contractx "github.com/natthaphol/shopscout/agent/contract"
	llmx "github.com/natthaphol/shopscout/agent/llm"
	"github.com/natthaphol/shopscout/agent/orchestrator"
	configx "github.com/natthaphol/shopscout/pkg/config"
	_ "github.com/natthaphol/shopscout/pkg/logger/autoload"
	logstorex "github.com/natthaphol/shopscout/pkg/logstore"
	openrouterx "github.com/natthaphol/shopscout/pkg/openrouter"
	storefrontx "github.com/natthaphol/shopscout/pkg/storefront"
	"github.com/natthaphol/shopscout/retrieval"
)

type AppConfig struct {
	SessionID string `envconfig:"SESSION_ID" split_words:"true"`

	// Corpus sources, tried in order: Postgres catalog, live storefront
	// search, built-in sample corpus.
	CatalogDSN       string `envconfig:"CATALOG_DSN" split_words:"true"`
	StorefrontURL    string `envconfig:"STOREFRONT_URL" split_words:"true"`
	StorefrontAPIKey string `envconfig:"STOREFRONT_API_KEY" split_words:"true"`
	StorefrontHost   string `envconfig:"STOREFRONT_HOST" split_words:"true"`
	StorefrontSeed   string `envconfig:"STOREFRONT_SEED" split_words:"true" default:"electronics"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	indexCfg := configx.MustNew[retrieval.IndexConfig]("INDEX")
	engineCfg := configx.MustNew[retrieval.EngineConfig]("RETRIEVAL")
	orchCfg := configx.MustNew[orchestrator.Config]("ORCHESTRATOR")

	embedder := buildEmbedder(llmCfg)

	index, err := retrieval.NewIndex(*indexCfg, embedder)
	if err != nil {
		log.Fatal().Err(err).Msg("open product index")
	}
	if index.Count() == 0 {
		if err := loadCorpus(ctx, index, appCfg); err != nil {
			log.Fatal().Err(err).Msg("load product corpus")
		}
		if index.Count() == 0 {
			log.Fatal().Err(retrieval.ErrEmptyCorpus).Msg("nothing to search over")
		}
	}

	engine, err := retrieval.NewEngine(index, *engineCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build retrieval engine")
	}

	logStore := buildLogStore()
	registry, err := agents.NewRegistry(ctx, *llmCfg, engine, logStore)
	if err != nil {
		log.Fatal().Err(err).Msg("build agent registry")
	}

	orch, err := orchestrator.New(registry, *orchCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: shopscout [-env path] <shopping query>")
		os.Exit(2)
	}

	if session := strings.TrimSpace(appCfg.SessionID); session != "" {
		if history, err := logStore.Recent(ctx, session, 5); err != nil {
			log.Warn().Err(err).Msg("read session history")
		} else if len(history) > 0 {
			log.Info().Int("prior_runs", len(history)).Str("session_id", session).Msg("session history loaded")
		}
	}

	resp := orch.Search(ctx, appCfg.SessionID, query)
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("encode response")
	}
	fmt.Println(string(out))
}

func buildEmbedder(llmCfg *llmx.Config) retrieval.Embedder {
	if !llmCfg.Enabled() {
		return retrieval.NewHashingEmbedder(0)
	}
	client := openrouterx.NewClient(llmCfg.AnalyzerModelConfig())
	if client == nil {
		return retrieval.NewHashingEmbedder(0)
	}
	embedder, err := retrieval.NewOpenAIEmbedder(client, llmCfg.EmbeddingModel)
	if err != nil {
		log.Warn().Err(err).Msg("falling back to hashing embedder")
		return retrieval.NewHashingEmbedder(0)
	}
	return embedder
}

func buildLogStore() contractx.LogStore {
	if strings.TrimSpace(os.Getenv("UPSTASH_REDIS_URL")) == "" {
		return logstorex.NewMemoryStore()
	}
	cfg := configx.MustNew[logstorex.UpstashRedisConfig]("UPSTASH_REDIS")
	store, err := logstorex.NewUpstashRedisStore(*cfg)
	if err != nil {
		log.Warn().Err(err).Msg("falling back to in-memory log store")
		return logstorex.NewMemoryStore()
	}
	return store
}

func loadCorpus(ctx context.Context, index *retrieval.Index, appCfg *AppConfig) error {
	if dsn := strings.TrimSpace(appCfg.CatalogDSN); dsn != "" {
		catalog, err := retrieval.NewCatalog(retrieval.CatalogConfig{DSN: dsn})
		if err != nil {
			return err
		}
		defer catalog.Close()

		products, err := catalog.All(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("products", len(products)).Msg("corpus loaded from catalog")
		return index.Load(ctx, products)
	}

	if url := strings.TrimSpace(appCfg.StorefrontURL); url != "" {
		client, err := storefrontx.NewClient(storefrontx.Config{
			URL:    url,
			APIKey: appCfg.StorefrontAPIKey,
			Host:   appCfg.StorefrontHost,
		})
		if err != nil {
			return err
		}
		products, err := client.Search(ctx, appCfg.StorefrontSeed, 50)
		if err != nil {
			return err
		}
		log.Info().Int("products", len(products)).Msg("corpus loaded from storefront")
		return index.Load(ctx, products)
	}

	log.Info().Msg("no catalog configured, loading sample corpus")
	return index.Load(ctx, sampleProducts())
}

// sampleProducts keeps offline runs useful without a catalog or storefront.
func sampleProducts() []retrieval.Product {
	return []retrieval.Product{
		{Title: "SoundCore Wireless Headphones", Description: "budget over-ear bluetooth headphones with 40h battery", Category: "headphones", Price: 34.99, Source: "amazon", URL: "https://example.com/p/soundcore-wireless"},
		{Title: "JLab Go Air Pop Earbuds", Description: "compact true wireless earbuds", Category: "headphones", Price: 24.99, Source: "walmart", URL: "https://example.com/p/jlab-go-air"},
		{Title: "Sony WH-CH520 Wireless Headphones", Description: "on-ear wireless headphones with multipoint", Category: "headphones", Price: 38.00, Source: "amazon", URL: "https://example.com/p/sony-whch520"},
		{Title: "Mechanical Gaming Keyboard", Description: "rgb backlit mechanical keyboard with blue switches", Category: "keyboard", Price: 45.50, Source: "walmart", URL: "https://example.com/p/mech-keyboard"},
		{Title: "Ergonomic Wireless Mouse", Description: "silent click wireless mouse with usb receiver", Category: "mouse", Price: 15.99, Source: "amazon", URL: "https://example.com/p/ergo-mouse"},
		{Title: "Portable Bluetooth Speaker", Description: "waterproof outdoor speaker with deep bass", Category: "speaker", Price: 29.99, Source: "walmart", URL: "https://example.com/p/bt-speaker"},
		{Title: "USB-C Fast Charger 30W", Description: "compact wall charger for phones and tablets", Category: "charger", Price: 12.99, Source: "amazon", URL: "https://example.com/p/usbc-charger"},
		{Title: "Laptop Backpack 15.6 inch", Description: "water resistant backpack with usb charging port", Category: "backpack", Price: 27.99, Source: "walmart", URL: "https://example.com/p/laptop-backpack"},
	}
}
