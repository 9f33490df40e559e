package strategy

import (
	"context"
	"fmt"
	"time"

	"leadagent/app/client/llm"
	"leadagent/app/config"
	"leadagent/app/model"

	"github.com/samber/do"
	"github.com/tmc/langchaingo/llms"
)

type Options struct {
	Assistant   string
	Company     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxMessages int
}

type Reply struct {
	Text     string
	Strategy Strategy
	Close    bool
	// Generated is false when the reply is fixed text and no model call was made.
	Generated bool
}

type Service struct {
	model llm.Generator
	opts  Options
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewStrategist(do.MustInvoke[*llm.Client](di).Reply, Options{
		Assistant:   cfg.Company.Assistant,
		Company:     cfg.Company.Name,
		Temperature: cfg.OpenAI.Reply.Temperature,
		MaxTokens:   cfg.OpenAI.Reply.MaxTokens,
		Timeout:     cfg.Timeouts.Generation,
		MaxMessages: cfg.Qualification.MaxMessages,
	}), nil
}

func NewStrategist(gen llm.Generator, opts Options) *Service {
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 400
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 25 * time.Second
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = SoftCloseAfter
	}

	return &Service{
		model: gen,
		opts:  opts,
	}
}

func (s *Service) Greeting() string {
	return GreetingText(s.opts.Assistant, s.opts.Company)
}

// Decide picks the strategy for the current state and utterance.
func (s *Service) Decide(state *model.State, utterance string) Rule {
	return Select(FactsOf(state, utterance, s.opts.MaxMessages))
}

// Respond picks a strategy and produces the reply text. It does not mutate state.
func (s *Service) Respond(ctx context.Context, state *model.State, utterance string) (*Reply, error) {
	rule := s.Decide(state, utterance)

	if rule.Strategy == Greeting {
		return &Reply{
			Text:     s.Greeting(),
			Strategy: rule.Strategy,
			Close:    rule.Close,
		}, nil
	}

	messages, err := Compose(state, rule.Strategy, utterance, s.opts.Assistant, s.opts.Company)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	text, err := llm.Text(ctx, s.model, messages,
		llms.WithTemperature(s.opts.Temperature),
		llms.WithMaxTokens(s.opts.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("reply generation failed (strategy %s): %w", rule.Strategy, err)
	}

	return &Reply{
		Text:      text,
		Strategy:  rule.Strategy,
		Close:     rule.Close,
		Generated: true,
	}, nil
}
