package evaluator

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"

	"github.com/timvw/command-center/internal/model"
)

// AnthropicEvaluator evaluates pane content using the Anthropic Messages API.
// Works with both direct Anthropic API and Azure AI Foundry.
type AnthropicEvaluator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicConfig holds configuration for the Anthropic evaluator.
type AnthropicConfig struct {
	// BaseURL is the API endpoint (e.g., "https://resource.services.ai.azure.com/anthropic/v1").
	BaseURL string
	APIKey  string
	// Model is the model name (e.g., "claude-haiku-4-5").
	Model     string
	MaxTokens int64
	// ExtraHeaders are additional HTTP headers (e.g., "api-key" for Azure).
	ExtraHeaders map[string]string
}

// NewAnthropicEvaluator creates a new Anthropic evaluator.
func NewAnthropicEvaluator(cfg AnthropicConfig) *AnthropicEvaluator {
	var opts []option.RequestOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	for k, v := range cfg.ExtraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &AnthropicEvaluator{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (e *AnthropicEvaluator) Provider() string { return "anthropic" }

func (e *AnthropicEvaluator) Model() string { return e.model }

// Evaluate sends pane content to the Anthropic API and returns the verdict.
func (e *AnthropicEvaluator) Evaluate(ctx context.Context, content string) (*model.LLMVerdict, error) {
	userMessage := UserPromptTemplate + content
	ctx, span := startGeneration(ctx, e.Provider(), e.model, e.maxTokens, userMessage)
	defer span.End()

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	})
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}
	if len(resp.Content) == 0 {
		span.SetAttributes(attribute.String("error.type", "empty_response"))
		return nil, fmt.Errorf("anthropic API returned empty response")
	}

	span.SetAttributes(attribute.String("gen_ai.response.model", string(resp.Model)))
	return finishGeneration(span, resp.Content[0].Text, string(resp.StopReason), model.TokenUsage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	})
}
