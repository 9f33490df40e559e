package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leadagent/app/client/llm"
	"leadagent/app/config"
	"leadagent/app/model"

	_ "embed"

	"github.com/elliotchance/pie/v2"
	"github.com/go-playground/validator/v10"
	"github.com/samber/do"
	"github.com/tmc/langchaingo/llms"
)

//go:embed prompt_template.txt
var promptTemplate string

const systemPrompt = "Eres un extractor de datos. Responde SOLO JSON válido con campos faltantes."

type Options struct {
	MaxTokens int
	Timeout   time.Duration
}

type Service struct {
	model    llm.Generator
	opts     Options
	validate *validator.Validate
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewEngine(do.MustInvoke[*llm.Client](di).Extraction, Options{
		MaxTokens: cfg.OpenAI.Extraction.MaxTokens,
		Timeout:   cfg.Timeouts.Extraction,
	}), nil
}

func NewEngine(gen llm.Generator, opts Options) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 200
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	return &Service{
		model:    gen,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Extract asks the extraction model for the fields still missing and merges
// the accepted values. Known fields are never touched. On failure the input
// fields are returned unchanged together with the error.
func (s *Service) Extract(ctx context.Context, utterance string, fields model.Fields) (model.Fields, []model.Field, error) {
	missing := fields.Missing()
	if len(missing) == 0 || strings.TrimSpace(utterance) == "" {
		return fields, nil, nil
	}

	known, err := json.Marshal(fields)
	if err != nil {
		return fields, nil, fmt.Errorf("failed to marshal known fields: %w", err)
	}

	prompt := strings.NewReplacer(
		"{message}", utterance,
		"{known}", string(known),
		"{missing}", strings.Join(pie.Map(missing, func(f model.Field) string { return string(f) }), ", "),
	).Replace(promptTemplate)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	raw, err := llm.Text(ctx, s.model, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	},
		llms.WithTemperature(0),
		llms.WithMaxTokens(s.opts.MaxTokens),
		llms.WithJSONMode(),
	)
	if err != nil {
		return fields, nil, fmt.Errorf("extraction call failed: %w", err)
	}

	var values map[string]any
	if err = json.Unmarshal([]byte(llm.StripFences(raw)), &values); err != nil {
		return fields, nil, fmt.Errorf("failed to unmarshal extraction response: %w", err)
	}

	merged, accepted := s.Merge(fields, missing, values)

	return merged, accepted, nil
}

// Merge applies raw extracted values onto fields. Only keys from missing are
// considered, and each value must survive normalization.
func (s *Service) Merge(fields model.Fields, missing []model.Field, values map[string]any) (model.Fields, []model.Field) {
	result := fields.Clone()

	byField := make(map[model.Field]any, len(values))
	for key, raw := range values {
		field, ok := lookupField(key)
		if !ok || raw == nil {
			continue
		}
		byField[field] = raw
	}

	var accepted []model.Field
	for _, field := range missing {
		raw, ok := byField[field]
		if !ok {
			continue
		}

		if field == model.FieldDecisionMaker {
			if b, ok := parseBool(raw); ok && result.SetDecisionMaker(b) {
				accepted = append(accepted, field)
			}
			continue
		}

		value, ok := s.normalize(field, raw)
		if !ok {
			continue
		}

		if result.SetText(field, value) {
			accepted = append(accepted, field)
		}
	}

	return result, accepted
}
