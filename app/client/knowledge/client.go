package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"leadagent/app/client/embedding"
	"leadagent/app/config"

	"github.com/samber/do"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/qdrant"
)

const (
	TypeProductGuide = "guia_producto"

	metaTitle = "title"
	metaType  = "type"
)

type Match struct {
	Title   string
	Content string
	Type    string
	Score   float32
}

// Client runs similarity searches over the knowledge collection.
// A client without a store returns no matches.
type Client struct {
	store vectorstores.VectorStore
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if cfg.Qdrant.URL == "" {
		slog.Warn("Qdrant url is empty, knowledge search disabled")
		return &Client{}, nil
	}

	qdrantURL, err := url.Parse(cfg.Qdrant.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url: %w", err)
	}

	store, err := qdrant.New(
		qdrant.WithURL(*qdrantURL),
		qdrant.WithAPIKey(cfg.Qdrant.APIKey),
		qdrant.WithCollectionName(cfg.Qdrant.Collection),
		qdrant.WithEmbedder(do.MustInvoke[*embedding.Client](di)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant store: %w", err)
	}

	return NewWithStore(store), nil
}

func NewWithStore(store vectorstores.VectorStore) *Client {
	return &Client{store: store}
}

// Search returns up to limit documents of docType scoring at least threshold.
func (c *Client) Search(ctx context.Context, query, docType string, threshold float32, limit int) ([]Match, error) {
	if c.store == nil || query == "" {
		return nil, nil
	}

	opts := []vectorstores.Option{
		vectorstores.WithScoreThreshold(threshold),
	}
	if docType != "" {
		opts = append(opts, vectorstores.WithFilters(typeFilter(docType)))
	}

	docs, err := c.store.SimilaritySearch(ctx, query, limit, opts...)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		// stores may ignore the threshold option
		if doc.Score < threshold {
			continue
		}
		matches = append(matches, toMatch(doc))
	}

	return matches, nil
}

// Index stores documents with their title and type as payload.
func (c *Client) Index(ctx context.Context, docType string, docs map[string]string) error {
	if c.store == nil {
		return nil
	}

	batch := make([]schema.Document, 0, len(docs))
	for title, content := range docs {
		batch = append(batch, schema.Document{
			PageContent: content,
			Metadata: map[string]any{
				metaTitle: title,
				metaType:  docType,
			},
		})
	}

	if _, err := c.store.AddDocuments(ctx, batch); err != nil {
		return fmt.Errorf("failed to index documents: %w", err)
	}

	return nil
}

func typeFilter(docType string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key": metaType,
				"match": map[string]any{
					"value": docType,
				},
			},
		},
	}
}

func toMatch(doc schema.Document) Match {
	m := Match{
		Content: doc.PageContent,
		Score:   doc.Score,
	}
	if title, ok := doc.Metadata[metaTitle].(string); ok {
		m.Title = title
	}
	if docType, ok := doc.Metadata[metaType].(string); ok {
		m.Type = docType
	}

	return m
}
