package embedding

import (
	"context"
	"testing"
)

type countingEmbedder struct {
	calls int
}

func (e *countingEmbedder) vector(text string) []float32 {
	return []float32{float32(len(text))}
}

func (e *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.calls++
	return e.vector(text), nil
}

func TestEmbedQueryCaches(t *testing.T) {
	ctx := context.Background()
	upstream := &countingEmbedder{}

	c, err := NewCached(upstream, 10)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err = c.EmbedQuery(ctx, "quiero un dashboard"); err != nil {
			t.Fatalf("EmbedQuery: %v", err)
		}
	}
	if upstream.calls != 1 {
		t.Fatalf("upstream calls: want=1 got=%d", upstream.calls)
	}
}

func TestEvictionOrder(t *testing.T) {
	ctx := context.Background()
	upstream := &countingEmbedder{}

	c, err := NewCached(upstream, 2)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}

	mustEmbed := func(text string) {
		if _, err := c.EmbedQuery(ctx, text); err != nil {
			t.Fatalf("EmbedQuery(%s): %v", text, err)
		}
	}

	mustEmbed("a")
	mustEmbed("b")
	// touch a so b becomes least recently used
	mustEmbed("a")
	mustEmbed("c")

	if c.Len() != 2 {
		t.Fatalf("Len: want=2 got=%d", c.Len())
	}
	if !c.Cached("a") || !c.Cached("c") {
		t.Fatalf("a and c should stay cached")
	}
	if c.Cached("b") {
		t.Fatalf("b should be evicted")
	}
}

func TestEmbedDocumentsOnlyMissing(t *testing.T) {
	ctx := context.Background()
	upstream := &countingEmbedder{}

	c, err := NewCached(upstream, 10)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}

	if _, err = c.EmbedQuery(ctx, "uno"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}

	vecs, err := c.EmbedDocuments(ctx, []string{"uno", "dos", "tres"})
	if err != nil {
		t.Fatalf("EmbedDocuments: %v", err)
	}
	if len(vecs) != 3 || vecs[0][0] != 3 || vecs[2][0] != 4 {
		t.Fatalf("EmbedDocuments vectors: got=%v", vecs)
	}
	if upstream.calls != 2 {
		t.Fatalf("upstream calls: want=2 got=%d", upstream.calls)
	}

	if _, err = c.EmbedDocuments(ctx, []string{"dos", "tres"}); err != nil {
		t.Fatalf("EmbedDocuments cached: %v", err)
	}
	if upstream.calls != 2 {
		t.Fatalf("upstream calls after cached docs: want=2 got=%d", upstream.calls)
	}
}

func TestInvalidSize(t *testing.T) {
	if _, err := NewCached(&countingEmbedder{}, 0); err == nil {
		t.Fatalf("NewCached(0): want error")
	}
}
