package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"leadagent/app/config"

	"github.com/samber/do"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const httpTimeout = 60 * time.Second

var ErrEmptyResponse = errors.New("empty model response")

// Generator is the part of a chat model the pipeline needs.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Client holds the two chat models: a deterministic one for extraction and a creative one for replies.
type Client struct {
	Extraction Generator
	Reply      Generator
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	extraction, err := NewModel(cfg.OpenAI.Extraction)
	if err != nil {
		return nil, fmt.Errorf("extraction model: %w", err)
	}

	reply, err := NewModel(cfg.OpenAI.Reply)
	if err != nil {
		return nil, fmt.Errorf("reply model: %w", err)
	}

	return &Client{
		Extraction: extraction,
		Reply:      reply,
	}, nil
}

func NewModel(cfg config.ModelConfig) (*openai.LLM, error) {
	return openai.New(
		openai.WithToken(cfg.Token),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{
			Timeout: httpTimeout,
		}),
		openai.WithCallback(LogCallbackHandler{}),
	)
}

// Text runs one generation and returns the trimmed content of the first choice.
func Text(ctx context.Context, gen Generator, messages []llms.MessageContent, options ...llms.CallOption) (string, error) {
	resp, err := gen.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	result := strings.TrimSpace(resp.Choices[0].Content)
	if result == "" {
		return "", ErrEmptyResponse
	}

	return result, nil
}

// StripFences removes markdown code fences and a leading json tag.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "JSON")

	return strings.TrimSpace(s)
}
