package qualification

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadagent/app/client/knowledge"
	"leadagent/app/model"
	"leadagent/app/service/catalog"
)

type fakeSearcher struct {
	matches []knowledge.Match
	err     error
	calls   int
}

func (f *fakeSearcher) Search(context.Context, string, string, float32, int) ([]knowledge.Match, error) {
	f.calls++
	return f.matches, f.err
}

type fakeCatalog struct {
	products map[string]model.RecommendedProduct
	sector   []model.RecommendedProduct
	err      error
}

func (f *fakeCatalog) BySlug(_ context.Context, slug string) (*model.RecommendedProduct, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[slug]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeCatalog) BySector(context.Context, string, int) ([]model.RecommendedProduct, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sector, nil
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[string]model.RecommendedProduct{
			CategoryDashboard: {Name: "Dashboard Analítico", Slug: CategoryDashboard},
			CategoryCRM:       {Name: "CRM", Slug: CategoryCRM},
			CategoryAgents:    {Name: "Agentes IA", Slug: CategoryAgents},
		},
		sector: []model.RecommendedProduct{
			{Name: "CRM", Slug: CategoryCRM},
			{Name: "Dashboard Analítico", Slug: CategoryDashboard},
		},
	}
}

func strPtr(s string) *string { return &s }

func TestDetectSignals(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	signals := DetectSignals("Estoy interesado, quiero saber los PRECIOS de sus agentes", at)
	got := map[string]int{}
	for _, s := range signals {
		got[s.Type] = s.Weight
		if !s.Timestamp.Equal(at) {
			t.Fatalf("signal timestamp: got=%v", s.Timestamp)
		}
	}

	want := map[string]int{"interesado": 10, "quiero": 10, "precio": 7, "agente": 15}
	if len(got) != len(want) {
		t.Fatalf("signals: want=%v got=%v", want, got)
	}
	for k, w := range want {
		if got[k] != w {
			t.Fatalf("signal %s: want=%d got=%d", k, w, got[k])
		}
	}

	if s := DetectSignals("", at); s != nil {
		t.Fatalf("empty utterance: want=nil got=%v", s)
	}
}

func TestKeywordsMatchWholeWords(t *testing.T) {
	if DetectCategory("todo bien, gracias") != "" {
		t.Fatalf("bi must not match inside bien")
	}
	if DetectCategory("necesito un tablero de BI") != CategoryDashboard {
		t.Fatalf("bi as a word should match dashboard")
	}
	if DetectCategory("quiero automatizar la cobranza por WhatsApp") != CategoryAgents {
		t.Fatalf("whatsapp should match agents")
	}
	if DetectCategory("emito facturas y boletas a SUNAT") != CategoryCRM {
		t.Fatalf("facturas should match crm")
	}
	if DetectCategory("Análisis de métricas") != CategoryDashboard {
		t.Fatalf("accented keywords should match")
	}
	if DetectCategory("uso inteligencia artificial") != CategoryAgents {
		t.Fatalf("phrase keyword should match")
	}
}

func TestCategoryPriority(t *testing.T) {
	// dashboard outranks crm and agents
	if got := DetectCategory("un dashboard de ventas con agentes"); got != CategoryDashboard {
		t.Fatalf("priority: want=%s got=%s", CategoryDashboard, got)
	}
	if got := DetectCategory("crm con bot"); got != CategoryCRM {
		t.Fatalf("priority: want=%s got=%s", CategoryCRM, got)
	}
}

func TestCategoryFromTitle(t *testing.T) {
	cases := map[string]string{
		"Guía DASHBOARD ejecutivo": CategoryDashboard,
		"Manual crm":               CategoryCRM,
		"Agentes de cobranza":      CategoryAgents,
		"Otra cosa":                "",
	}

	for title, want := range cases {
		if got := CategoryFromTitle(title); got != want {
			t.Fatalf("CategoryFromTitle(%s): want=%s got=%s", title, want, got)
		}
	}
}

func TestCatalogGuideTitlesMapToProducts(t *testing.T) {
	products := catalog.DefaultProducts()
	slugs := map[string]bool{}
	for _, p := range products {
		slugs[p.Slug] = true
	}

	for title := range catalog.Guides(products) {
		slug := CategoryFromTitle(title)
		if !slugs[slug] {
			t.Fatalf("CategoryFromTitle(%s): got=%q, not a catalog slug", title, slug)
		}
		delete(slugs, slug)
	}
	if len(slugs) != 0 {
		t.Fatalf("products without a guide: %v", slugs)
	}
}

func TestScoreBounds(t *testing.T) {
	if got := Score(nil, model.Fields{}); got != baseScore {
		t.Fatalf("base score: want=%d got=%d", baseScore, got)
	}

	fields := model.Fields{
		Name:    strPtr("Ana"),
		Email:   strPtr("ana@example.com"),
		Phone:   strPtr("987654321"),
		Sector:  strPtr("retail"),
		Company: strPtr("Ana SAC"),
	}
	if got := Score(nil, fields); got != 80 {
		t.Fatalf("field bonuses: want=80 got=%d", got)
	}

	var many []model.Signal
	for i := 0; i < 20; i++ {
		many = append(many, model.Signal{Type: "crm", Weight: 15})
	}
	if got := Score(many, fields); got != 100 {
		t.Fatalf("clamped high: want=100 got=%d", got)
	}
	if got := Score([]model.Signal{{Type: "x", Weight: -500}}, model.Fields{}); got != 0 {
		t.Fatalf("clamped low: want=0 got=%d", got)
	}
}

func TestQualifyUpdatesProbabilityAndStage(t *testing.T) {
	s := NewScorer(&fakeSearcher{}, newCatalog(), Options{})
	state := model.NewState("s")
	state.Fields.SetText(model.FieldName, "Ana")

	if err := s.Qualify(context.Background(), state, "quiero un crm"); err != nil {
		t.Fatalf("Qualify: %v", err)
	}

	// 20 + quiero 10 + crm 15 + name 10
	if state.Probability != 55 {
		t.Fatalf("probability: want=55 got=%d", state.Probability)
	}
	if state.Stage != model.StageQualification {
		t.Fatalf("stage: want=%s got=%s", model.StageQualification, state.Stage)
	}
	if len(state.Signals) != 2 {
		t.Fatalf("signals: want=2 got=%d", len(state.Signals))
	}
	if len(state.Products) != 1 || state.Products[0].Slug != CategoryCRM {
		t.Fatalf("products: got=%+v", state.Products)
	}
}

func TestRecommendedProductsAreSticky(t *testing.T) {
	search := &fakeSearcher{}
	s := NewScorer(search, newCatalog(), Options{})
	state := model.NewState("s")

	if err := s.Qualify(context.Background(), state, "necesito un dashboard"); err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if err := s.Qualify(context.Background(), state, "y también un crm y agentes"); err != nil {
		t.Fatalf("Qualify second: %v", err)
	}

	if len(state.Products) != 1 || state.Products[0].Slug != CategoryDashboard {
		t.Fatalf("sticky products: got=%+v", state.Products)
	}
	if search.calls != 0 {
		t.Fatalf("search calls: want=0 got=%d", search.calls)
	}
}

func TestSearchFallback(t *testing.T) {
	search := &fakeSearcher{matches: []knowledge.Match{{Title: "Guía AGENTES conversacionales", Score: 0.8}}}
	s := NewScorer(search, newCatalog(), Options{})
	state := model.NewState("s")

	if err := s.Qualify(context.Background(), state, "quiero responder mensajes solo"); err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if search.calls != 1 {
		t.Fatalf("search calls: want=1 got=%d", search.calls)
	}
	if len(state.Products) != 1 || state.Products[0].Slug != CategoryAgents {
		t.Fatalf("products: got=%+v", state.Products)
	}
}

func TestSectorFallback(t *testing.T) {
	cat := newCatalog()
	s := NewScorer(&fakeSearcher{}, cat, Options{})
	state := model.NewState("s")
	state.Fields.SetText(model.FieldSector, "retail")

	if err := s.Qualify(context.Background(), state, "hola"); err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if len(state.Products) != 2 {
		t.Fatalf("sector products: want=2 got=%d", len(state.Products))
	}
}

func TestMissingCategoryProductFallsBackToSector(t *testing.T) {
	cat := newCatalog()
	delete(cat.products, CategoryDashboard)
	s := NewScorer(&fakeSearcher{}, cat, Options{})
	state := model.NewState("s")
	state.Fields.SetText(model.FieldSector, "salud")

	if err := s.Qualify(context.Background(), state, "un dashboard"); err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if len(state.Products) != 2 {
		t.Fatalf("fallback products: want=2 got=%d", len(state.Products))
	}
}

func TestLookupFailuresAreReported(t *testing.T) {
	search := &fakeSearcher{err: errors.New("qdrant down")}
	cat := newCatalog()
	cat.err = errors.New("db down")
	s := NewScorer(search, cat, Options{})
	state := model.NewState("s")
	state.Fields.SetText(model.FieldSector, "retail")

	err := s.Qualify(context.Background(), state, "hola")
	if err == nil {
		t.Fatalf("Qualify: want error")
	}
	if len(state.Products) != 0 {
		t.Fatalf("products: want none got=%+v", state.Products)
	}
	if state.Probability != 30 {
		t.Fatalf("probability still scored: want=30 got=%d", state.Probability)
	}
}
