package fixer

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultModel = "claude-3-5-haiku-20241022"

// TextGenerator produces a rewritten snippet from a prompt. The fixer
// treats it as an optional capability: a nil generator disables the
// LLM path entirely and every fix comes from the deterministic
// suggestion.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// AnthropicGenerator implements TextGenerator over the Anthropic
// Messages API.
type AnthropicGenerator struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicGenerator creates a generator. An empty model selects
// the default.
func NewAnthropicGenerator(apiKey, model string) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicGenerator{client: &client, model: model}, nil
}

// GenerateText sends one user message and concatenates the text blocks
// of the response.
func (g *AnthropicGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// extractCodeBlock pulls the first fenced code block out of a model
// response. When no fence is present the whole trimmed response is
// treated as the snippet.
func extractCodeBlock(response string) string {
	trimmed := strings.TrimSpace(response)

	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}

	rest := trimmed[start+3:]
	// Drop a language tag on the fence line (```typescript).
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}

	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}
