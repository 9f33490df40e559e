package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"leadagent/app/model"
	"leadagent/app/util/testdb"
)

func newSeededCatalog(t *testing.T) *Service {
	t.Helper()

	s := NewCatalog(testdb.Open(t), nil)
	if err := s.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}

	return s
}

func TestBySlug(t *testing.T) {
	ctx := context.Background()
	s := newSeededCatalog(t)

	p, err := s.BySlug(ctx, "dashboard")
	if err != nil {
		t.Fatalf("BySlug: %v", err)
	}
	if p == nil || p.Name != "Dashboard Analítico" {
		t.Fatalf("BySlug: got=%+v", p)
	}
	if len(p.Tiers) != MaxTiers {
		t.Fatalf("BySlug tiers: want=%d got=%d", MaxTiers, len(p.Tiers))
	}
	if p.Tiers[0].Name != "Profesional" {
		t.Fatalf("BySlug featured tier first: got=%s", p.Tiers[0].Name)
	}

	missing, err := s.BySlug(ctx, "unknown")
	if err != nil || missing != nil {
		t.Fatalf("BySlug unknown: want=nil,nil got=%v,%v", missing, err)
	}
}

func TestBySectorIncludesUniversal(t *testing.T) {
	ctx := context.Background()
	s := newSeededCatalog(t)

	products, err := s.BySector(ctx, "salud", SectorLimit)
	if err != nil {
		t.Fatalf("BySector: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("BySector len: want=2 got=%d", len(products))
	}

	slugs := map[string]bool{}
	for _, p := range products {
		slugs[p.Slug] = true
		if len(p.Tiers) > MaxTiers {
			t.Fatalf("BySector tiers: want<=%d got=%d", MaxTiers, len(p.Tiers))
		}
	}
	if !slugs["crm-facturacion"] || !slugs["dashboard"] {
		t.Fatalf("BySector slugs: got=%v", slugs)
	}

	unknown, err := s.BySector(ctx, "mineria", SectorLimit)
	if err != nil {
		t.Fatalf("BySector unknown: %v", err)
	}
	if len(unknown) != 1 || unknown[0].Slug != "crm-facturacion" {
		t.Fatalf("BySector unknown sector: got=%+v", unknown)
	}
}

func TestInactiveProductsHidden(t *testing.T) {
	ctx := context.Background()
	s := NewCatalog(testdb.Open(t), nil)

	p := newProduct("Legacy", "legacy", "", 10, []string{model.SectorAll})
	p.Active = false
	if err := s.Save(ctx, []model.Product{p}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.BySlug(ctx, "legacy")
	if err != nil || got != nil {
		t.Fatalf("BySlug inactive: want=nil,nil got=%v,%v", got, err)
	}

	products, err := s.BySector(ctx, "retail", 0)
	if err != nil || len(products) != 0 {
		t.Fatalf("BySector inactive: want=0 got=%d err=%v", len(products), err)
	}
}

type fakeIndexer struct {
	calls   int
	docType string
	docs    map[string]string
	err     error
}

func (f *fakeIndexer) Index(_ context.Context, docType string, docs map[string]string) error {
	f.calls++
	f.docType = docType
	f.docs = docs
	return f.err
}

func TestSeedIndexesGuides(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndexer{}
	s := NewCatalog(testdb.Open(t), idx)

	if err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	if idx.calls != 1 || idx.docType != "guia_producto" {
		t.Fatalf("Index: calls=%d type=%s", idx.calls, idx.docType)
	}
	if len(idx.docs) != len(DefaultProducts()) {
		t.Fatalf("guides: want=%d got=%d", len(DefaultProducts()), len(idx.docs))
	}

	content, ok := idx.docs["GUIA DASHBOARD ANALÍTICO"]
	if !ok {
		t.Fatalf("dashboard guide missing: got=%v", idx.docs)
	}
	if !strings.Contains(content, "Plan Profesional: S/299/mes.") || !strings.Contains(content, "retail") {
		t.Fatalf("dashboard guide: got=%q", content)
	}

	if err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults again: %v", err)
	}
	if idx.calls != 1 {
		t.Fatalf("reseed indexed again: calls=%d", idx.calls)
	}
}

func TestSaveSurvivesIndexFailure(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndexer{err: errors.New("qdrant down")}
	s := NewCatalog(testdb.Open(t), idx)

	if err := s.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	if p, err := s.BySlug(ctx, "crm-facturacion"); err != nil || p == nil {
		t.Fatalf("BySlug after failed index: got=%v,%v", p, err)
	}

	inactive := newProduct("Legacy", "legacy", "", 10, []string{model.SectorAll})
	inactive.Active = false
	if err := s.Save(ctx, []model.Product{inactive}); err != nil {
		t.Fatalf("Save inactive: %v", err)
	}
	if idx.calls != 1 {
		t.Fatalf("inactive product indexed: calls=%d", idx.calls)
	}
}
