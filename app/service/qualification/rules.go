package qualification

import (
	"strings"
	"time"

	"leadagent/app/model"
	"leadagent/app/util/textmatch"

	"github.com/samber/lo"
)

const baseScore = 20

type signalRule struct {
	name    string
	weight  int
	keyword textmatch.Keyword
}

var signalRules = []signalRule{
	{name: "interesado", weight: 10, keyword: textmatch.Parse("interesado")},
	{name: "quiero", weight: 10, keyword: textmatch.Parse("quiero")},
	{name: "necesito", weight: 9, keyword: textmatch.Parse("necesito")},
	{name: "dashboard", weight: 15, keyword: textmatch.Parse("dashboard")},
	{name: "crm", weight: 15, keyword: textmatch.Parse("crm")},
	{name: "agente", weight: 15, keyword: textmatch.Parse("agente*")},
	{name: "precio", weight: 7, keyword: textmatch.Parse("precio*")},
}

var fieldBonuses = []struct {
	field model.Field
	bonus int
}{
	{model.FieldName, 10},
	{model.FieldEmail, 20},
	{model.FieldPhone, 15},
	{model.FieldSector, 10},
	{model.FieldCompany, 5},
}

const (
	CategoryDashboard = "dashboard"
	CategoryCRM       = "crm-facturacion"
	CategoryAgents    = "agentes-ia"
)

type category struct {
	slug     string
	keywords []textmatch.Keyword
	title    string
}

// categories are checked in priority order.
var categories = []category{
	{
		slug:  CategoryDashboard,
		title: "DASHBOARD",
		keywords: textmatch.ParseAll(
			"dashboard*", "analitic*", "analytics", "metrica*", "reporte*", "datos",
			"visualiz*", "kpi*", "indicador*", "analisis", "business intelligence", "bi",
		),
	},
	{
		slug:  CategoryCRM,
		title: "CRM",
		keywords: textmatch.ParseAll(
			"crm", "facturacion", "factura*", "sunat", "cliente*", "gestion",
			"venta*", "boleta*", "comprobante*",
		),
	},
	{
		slug:  CategoryAgents,
		title: "AGENTE",
		keywords: textmatch.ParseAll(
			"agente*", "ia", "cobranza*", "whatsapp", "automatiza*", "bot", "bots",
			"chatbot*", "inteligencia artificial", "automatic*",
		),
	},
}

// DetectSignals returns one signal per matching rule.
func DetectSignals(utterance string, at time.Time) []model.Signal {
	tokens := textmatch.Tokenize(utterance)
	if len(tokens) == 0 {
		return nil
	}

	var result []model.Signal
	for _, rule := range signalRules {
		if rule.keyword.Match(tokens) {
			result = append(result, model.Signal{
				Type:      rule.name,
				Weight:    rule.weight,
				Timestamp: at,
			})
		}
	}

	return result
}

// Score sums the base score, every logged signal and the field bonuses, clamped to [0,100].
func Score(signals []model.Signal, fields model.Fields) int {
	score := baseScore

	for _, s := range signals {
		score += s.Weight
	}

	for _, b := range fieldBonuses {
		if fields.Has(b.field) {
			score += b.bonus
		}
	}

	return lo.Clamp(score, 0, 100)
}

// DetectCategory returns the first product category whose keywords appear in the utterance.
func DetectCategory(utterance string) string {
	tokens := textmatch.Tokenize(utterance)

	for _, c := range categories {
		if textmatch.Any(c.keywords, tokens) {
			return c.slug
		}
	}

	return ""
}

// CategoryFromTitle maps a product guide title to its category.
func CategoryFromTitle(title string) string {
	title = strings.ToUpper(title)

	for _, c := range categories {
		if strings.Contains(title, c.title) {
			return c.slug
		}
	}

	return ""
}
