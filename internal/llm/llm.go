// Package llm wraps the hosted extraction model behind a narrow interface and
// carries the legacy model-driven resolver for complex split items.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Extractor is one call to the hosted extraction model. Responses may be
// empty, wrapped in prose, or only JSON-like; callers run them through the
// jsonrepair normalizer before use.
type Extractor interface {
	Extract(ctx context.Context, systemPrompt, userPrompt, payload string) (string, error)
}

// OpenAI is the production Extractor backed by an OpenAI-compatible chat
// completion endpoint.
type OpenAI struct {
	model llms.Model
}

// NewOpenAI builds the production extractor. baseURL may be empty to use the
// provider default, which also allows pointing at compatible gateways.
func NewOpenAI(model, apiKey, baseURL string) (*OpenAI, error) {
	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extraction model: %w", err)
	}
	return &OpenAI{model: client}, nil
}

// Extract sends the system prompt plus the user prompt and payload as a
// single human message. Temperature is pinned to 0; extraction must be as
// repeatable as the provider allows.
func (o *OpenAI) Extract(ctx context.Context, systemPrompt, userPrompt, payload string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt+"\n\n"+payload),
	}

	resp, err := o.model.GenerateContent(ctx, content, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("extraction call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("extraction model returned no choices")
	}
	return resp.Choices[0].Content, nil
}
