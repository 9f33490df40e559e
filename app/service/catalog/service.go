package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"leadagent/app/client/knowledge"
	"leadagent/app/model"
	"leadagent/app/service/database"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
	"gorm.io/gorm"
)

const (
	// MaxTiers bounds the pricing tiers attached to a recommendation.
	MaxTiers = 2

	// SectorLimit bounds the products recommended from a sector match.
	SectorLimit = 2
)

// GuideIndexer stores product guides for similarity search.
type GuideIndexer interface {
	Index(ctx context.Context, docType string, docs map[string]string) error
}

type Service struct {
	db     *gorm.DB
	guides GuideIndexer
}

func New(di *do.Injector) (*Service, error) {
	return NewCatalog(
		do.MustInvoke[*database.Service](di).DB(),
		do.MustInvoke[*knowledge.Client](di),
	), nil
}

// NewCatalog builds a catalog; guides may be nil.
func NewCatalog(db *gorm.DB, guides GuideIndexer) *Service {
	return &Service{db: db, guides: guides}
}

func activeTiers(db *gorm.DB) *gorm.DB {
	return db.Where("active = ?", true).Order("featured DESC").Order("sort_order ASC")
}

// BySlug returns the active product with the given slug, or nil when absent.
func (s *Service) BySlug(ctx context.Context, slug string) (*model.RecommendedProduct, error) {
	var product model.Product

	err := s.db.WithContext(ctx).
		Preload("Tiers", activeTiers).
		Where("slug = ? AND active = ?", slug, true).
		Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.In("catalog").With("slug", slug).Wrapf(err, "failed to load product")
	}

	result := toRecommendation(product)
	return &result, nil
}

// BySector returns up to limit active products tagged with sector or with the universal tag.
func (s *Service) BySector(ctx context.Context, sector string, limit int) ([]model.RecommendedProduct, error) {
	sector = strings.ToLower(strings.TrimSpace(sector))
	if sector == "" {
		return nil, nil
	}

	tagged := s.db.Model(&model.ProductSector{}).
		Select("product_id").
		Where("sector IN ?", []string{sector, model.SectorAll})

	var products []model.Product

	q := s.db.WithContext(ctx).
		Preload("Tiers", activeTiers).
		Where("active = ? AND id IN (?)", true, tagged).
		Order("name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&products).Error; err != nil {
		return nil, oops.In("catalog").With("sector", sector).Wrapf(err, "failed to load sector products")
	}

	return pie.Map(products, toRecommendation), nil
}

// Save inserts products together with their sector tags and tiers, then indexes their guides.
func (s *Service) Save(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).Create(&products).Error; err != nil {
		return oops.In("catalog").Wrapf(err, "failed to save products")
	}

	guides := Guides(products)
	if s.guides == nil || len(guides) == 0 {
		return nil
	}

	if err := s.guides.Index(ctx, knowledge.TypeProductGuide, guides); err != nil {
		slog.ErrorContext(ctx, "Failed to index product guides",
			"guides", len(guides),
			"error", err,
		)
	}

	return nil
}

// Guides renders one searchable guide per active product, keyed by title.
// Titles carry the upper-cased product name so the category can be read back from them.
func Guides(products []model.Product) map[string]string {
	result := make(map[string]string, len(products))

	for _, p := range products {
		if !p.Active {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s: %s.", p.Name, p.Description)

		if sectors := pie.Map(p.Sectors, func(ps model.ProductSector) string { return ps.Sector }); len(sectors) > 0 {
			fmt.Fprintf(&b, " Sectores: %s.", strings.Join(sectors, ", "))
		}

		for _, t := range p.Tiers {
			if t.Active {
				fmt.Fprintf(&b, " Plan %s: S/%.0f/mes.", t.Name, t.MonthlyPrice)
			}
		}

		result["GUIA "+strings.ToUpper(p.Name)] = b.String()
	}

	return result
}

func toRecommendation(p model.Product) model.RecommendedProduct {
	tiers := pie.Map(p.Tiers, func(t model.ProductTierRow) model.ProductTier {
		return model.ProductTier{
			Name:         t.Name,
			MonthlyPrice: t.MonthlyPrice,
			Featured:     t.Featured,
		}
	})

	return model.RecommendedProduct{
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		BasePrice:   p.BasePrice,
		Tiers:       pie.Top(tiers, MaxTiers),
	}
}
