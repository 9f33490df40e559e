package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"leadagent/app/config"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/do"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

var _ embeddings.Embedder = (*Client)(nil)

// Client embeds text through an upstream embedder and keeps recent query
// vectors in a fixed-size LRU cache.
type Client struct {
	embedder embeddings.Embedder
	cache    *lru.Cache[string, []float32]
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di).OpenAI.Embedding

	llm, err := openai.New(
		openai.WithToken(cfg.Token),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{
			Timeout: 30 * time.Second,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding model: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return NewCached(embedder, cfg.CacheSize)
}

func NewCached(embedder embeddings.Embedder, size int) (*Client, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &Client{
		embedder: embedder,
		cache:    cache,
	}, nil
}

func cacheKey(text string) string {
	return strings.TrimSpace(text)
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.embedder.EmbedQuery(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	c.cache.Add(key, vec)

	return vec, nil
}

// EmbedDocuments embeds only the texts missing from the cache.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))

	var (
		missing    []string
		missingIdx []int
	)
	for i, text := range texts {
		if vec, ok := c.cache.Get(cacheKey(text)); ok {
			result[i] = vec
			continue
		}
		missing = append(missing, cacheKey(text))
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return result, nil
	}

	vecs, err := c.embedder.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missing))
	}

	for j, vec := range vecs {
		result[missingIdx[j]] = vec
		c.cache.Add(missing[j], vec)
	}

	return result, nil
}

// Cached reports whether text currently has a cached vector, without touching recency.
func (c *Client) Cached(text string) bool {
	return c.cache.Contains(cacheKey(text))
}

func (c *Client) Len() int {
	return c.cache.Len()
}
