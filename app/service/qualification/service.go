package qualification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadagent/app/client/knowledge"
	"leadagent/app/config"
	"leadagent/app/model"
	"leadagent/app/service/catalog"

	"github.com/samber/do"
)

type Searcher interface {
	Search(ctx context.Context, query, docType string, threshold float32, limit int) ([]knowledge.Match, error)
}

type Catalog interface {
	BySlug(ctx context.Context, slug string) (*model.RecommendedProduct, error)
	BySector(ctx context.Context, sector string, limit int) ([]model.RecommendedProduct, error)
}

type Options struct {
	SimilarityThreshold float32
	SearchTimeout       time.Duration
}

type Service struct {
	search  Searcher
	catalog Catalog
	opts    Options
	now     func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewScorer(
		do.MustInvoke[*knowledge.Client](di),
		do.MustInvoke[*catalog.Service](di),
		Options{
			SimilarityThreshold: cfg.Qualification.SimilarityThreshold,
			SearchTimeout:       cfg.Timeouts.Search,
		},
	), nil
}

func NewScorer(search Searcher, cat Catalog, opts Options) *Service {
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = 0.65
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 5 * time.Second
	}

	return &Service{
		search:  search,
		catalog: cat,
		opts:    opts,
		now:     time.Now,
	}
}

// Qualify logs interest signals from the utterance, recomputes probability
// and stage, and resolves recommended products once. Lookup failures are
// returned for logging; state stays consistent either way.
func (s *Service) Qualify(ctx context.Context, state *model.State, utterance string) error {
	state.Signals = append(state.Signals, DetectSignals(utterance, s.now().UTC())...)
	state.Probability = Score(state.Signals, state.Fields)
	state.Stage = model.StageFor(state.Probability)

	if len(state.Products) > 0 {
		return nil
	}

	products, err := s.resolveProducts(ctx, utterance, state.Fields.Get(model.FieldSector))
	if len(products) > 0 {
		state.Products = products
	}

	return err
}

func (s *Service) resolveProducts(ctx context.Context, utterance, sector string) ([]model.RecommendedProduct, error) {
	var errs []error

	category := DetectCategory(utterance)
	if category == "" {
		found, err := s.searchCategory(ctx, utterance)
		if err != nil {
			errs = append(errs, err)
		}
		category = found
	}

	if category != "" {
		product, err := s.catalog.BySlug(ctx, category)
		if err != nil {
			errs = append(errs, err)
		}
		if product != nil {
			return []model.RecommendedProduct{*product}, errors.Join(errs...)
		}
	}

	if sector == "" {
		return nil, errors.Join(errs...)
	}

	products, err := s.catalog.BySector(ctx, sector, catalog.SectorLimit)
	if err != nil {
		errs = append(errs, err)
	}

	return products, errors.Join(errs...)
}

func (s *Service) searchCategory(ctx context.Context, utterance string) (string, error) {
	if s.search == nil || utterance == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	matches, err := s.search.Search(ctx, utterance, knowledge.TypeProductGuide, s.opts.SimilarityThreshold, 1)
	if err != nil {
		return "", fmt.Errorf("knowledge search: %w", err)
	}

	if len(matches) == 0 {
		return "", nil
	}

	return CategoryFromTitle(matches[0].Title), nil
}
