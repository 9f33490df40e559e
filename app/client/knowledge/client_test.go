package knowledge

import (
	"context"
	"testing"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

type fakeStore struct {
	docs    []schema.Document
	added   []schema.Document
	lastOpt vectorstores.Options
}

func (f *fakeStore) AddDocuments(_ context.Context, docs []schema.Document, _ ...vectorstores.Option) ([]string, error) {
	f.added = append(f.added, docs...)
	return make([]string, len(docs)), nil
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ string, n int, options ...vectorstores.Option) ([]schema.Document, error) {
	f.lastOpt = vectorstores.Options{}
	for _, opt := range options {
		opt(&f.lastOpt)
	}
	if n < len(f.docs) {
		return f.docs[:n], nil
	}
	return f.docs, nil
}

func TestSearchAppliesThresholdAndFilter(t *testing.T) {
	store := &fakeStore{docs: []schema.Document{
		{PageContent: "guía dashboard", Score: 0.91, Metadata: map[string]any{"title": "GUIA DASHBOARD", "type": TypeProductGuide}},
		{PageContent: "poco relevante", Score: 0.40, Metadata: map[string]any{"title": "OTRO", "type": TypeProductGuide}},
	}}
	c := NewWithStore(store)

	matches, err := c.Search(context.Background(), "quiero ver mis métricas", TypeProductGuide, 0.65, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].Title != "GUIA DASHBOARD" {
		t.Fatalf("Search matches: got=%+v", matches)
	}
	if store.lastOpt.ScoreThreshold != 0.65 {
		t.Fatalf("ScoreThreshold: want=0.65 got=%v", store.lastOpt.ScoreThreshold)
	}
	if store.lastOpt.Filters == nil {
		t.Fatalf("Filters: want type filter")
	}
}

func TestDisabledClient(t *testing.T) {
	c := &Client{}

	matches, err := c.Search(context.Background(), "hola", TypeProductGuide, 0.65, 1)
	if err != nil || matches != nil {
		t.Fatalf("Search disabled: want=nil,nil got=%v,%v", matches, err)
	}
	if err = c.Index(context.Background(), TypeProductGuide, map[string]string{"a": "b"}); err != nil {
		t.Fatalf("Index disabled: %v", err)
	}
}

func TestIndex(t *testing.T) {
	store := &fakeStore{}
	c := NewWithStore(store)

	err := c.Index(context.Background(), TypeProductGuide, map[string]string{"GUIA CRM": "contenido"})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(store.added) != 1 || store.added[0].Metadata["type"] != TypeProductGuide {
		t.Fatalf("Index added: got=%+v", store.added)
	}
}
