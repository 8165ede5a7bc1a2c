// Package evaluator asks an LLM for a second opinion on a session's pane.
//
// The heuristic classifier in the status package stays authoritative for
// session status. An assessment only adds the LLM's reading: whether the
// agent is blocked, on what, and which keys would unblock it.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/timvw/command-center/internal/model"
)

// Evaluator sends pane content to an LLM and returns a verdict.
type Evaluator interface {
	// Evaluate sends the pane content to an LLM and returns the verdict.
	Evaluate(ctx context.Context, content string) (*model.LLMVerdict, error)

	// Provider returns the provider name (e.g., "anthropic", "openai").
	Provider() string

	// Model returns the model name used for evaluation.
	Model() string
}

var evalTracer = otel.Tracer("command-center/evaluator")

// startGeneration opens a GenAI client span following the OTel GenAI
// semantic conventions. Span name is "{operation} {model}".
func startGeneration(ctx context.Context, provider, modelName string, maxTokens int64, userMessage string) (context.Context, trace.Span) {
	ctx, span := evalTracer.Start(ctx, "chat "+modelName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", provider),
			attribute.String("gen_ai.request.model", modelName),
			attribute.Int64("gen_ai.request.max_tokens", maxTokens),
			attribute.String("langfuse.observation.type", "generation"),
		),
	)
	inputMessages := []map[string]string{
		{"role": "system", "content": SystemPrompt},
		{"role": "user", "content": userMessage},
	}
	if inputJSON, err := json.Marshal(inputMessages); err == nil {
		span.SetAttributes(attribute.String("gen_ai.input.messages", string(inputJSON)))
	}
	return ctx, span
}

// finishGeneration records usage and output on the span and decodes the
// model's reply into a verdict.
func finishGeneration(span trace.Span, rawText, finishReason string, usage model.TokenUsage) (*model.LLMVerdict, error) {
	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", usage.OutputTokens),
	)
	if finishReason != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{finishReason}))
	}
	outputMessages := []map[string]string{
		{"role": "assistant", "content": rawText},
	}
	if outputJSON, err := json.Marshal(outputMessages); err == nil {
		span.SetAttributes(attribute.String("gen_ai.output.messages", string(outputJSON)))
	}

	verdict, err := parseVerdict(rawText)
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "parse_error"))
		return nil, err
	}
	verdict.Usage = usage
	return verdict, nil
}

// parseVerdict decodes the JSON verdict, tolerating markdown fences and
// clamping the recommended index into the actions range.
func parseVerdict(raw string) (*model.LLMVerdict, error) {
	text := stripMarkdownFences(raw)
	var verdict model.LLMVerdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if verdict.Recommended < 0 || verdict.Recommended >= len(verdict.Actions) {
		verdict.Recommended = 0
	}
	return &verdict, nil
}

// stripMarkdownFences removes a surrounding ```json ... ``` block.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
