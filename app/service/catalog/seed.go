package catalog

import (
	"context"
	"log/slog"

	"leadagent/app/model"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// SeedDefaults loads the starter catalog into an empty database.
func (s *Service) SeedDefaults(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Product{}).Count(&count).Error; err != nil {
		return oops.In("catalog").Wrapf(err, "failed to count products")
	}
	if count > 0 {
		return nil
	}

	if err := s.Save(ctx, DefaultProducts()); err != nil {
		return err
	}

	slog.Info("Seeded default catalog")

	return nil
}

func DefaultProducts() []model.Product {
	return []model.Product{
		newProduct("Dashboard Analítico", "dashboard",
			"Paneles de métricas y KPIs en tiempo real para tu negocio",
			149,
			[]string{"retail", "ecommerce", "gastronomia", "salud", "servicios", "telecomunicaciones"},
			tier("Básico", 149, false, 1),
			tier("Profesional", 299, true, 2),
			tier("Empresarial", 599, false, 3),
		),
		newProduct("CRM con Facturación Electrónica", "crm-facturacion",
			"Gestión de clientes y ventas con comprobantes electrónicos SUNAT",
			199,
			[]string{model.SectorAll},
			tier("Emprendedor", 99, false, 1),
			tier("Pyme", 199, true, 2),
			tier("Corporativo", 399, false, 3),
		),
		newProduct("Agentes IA", "agentes-ia",
			"Agentes de inteligencia artificial para WhatsApp, cobranza y atención",
			249,
			[]string{"retail", "ecommerce", "servicios", "telecomunicaciones"},
			tier("Starter", 249, false, 1),
			tier("Growth", 449, true, 2),
		),
	}
}

func newProduct(name, slug, description string, price float64, sectors []string, tiers ...model.ProductTierRow) model.Product {
	id := uuid.New()

	p := model.Product{
		ID:          id,
		Name:        name,
		Slug:        slug,
		Description: description,
		BasePrice:   price,
		Active:      true,
	}
	for _, sector := range sectors {
		p.Sectors = append(p.Sectors, model.ProductSector{ProductID: id, Sector: sector})
	}
	for _, t := range tiers {
		t.ID = uuid.New()
		t.ProductID = id
		p.Tiers = append(p.Tiers, t)
	}

	return p
}

func tier(name string, price float64, featured bool, order int) model.ProductTierRow {
	return model.ProductTierRow{
		Name:         name,
		MonthlyPrice: price,
		Featured:     featured,
		Active:       true,
		SortOrder:    order,
	}
}
