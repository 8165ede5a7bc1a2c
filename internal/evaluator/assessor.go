package evaluator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/timvw/command-center/internal/model"
	ccotel "github.com/timvw/command-center/internal/otel"
)

// Assessor produces cached LLM assessments of session panes.
type Assessor struct {
	Evaluator Evaluator
	Cache     *AssessmentCache
	Metrics   *ccotel.Metrics

	now func() time.Time
}

// Assess returns the LLM's assessment of content captured from s.
func (a *Assessor) Assess(ctx context.Context, s model.Session, content string) (*model.Assessment, error) {
	ctx, span := evalTracer.Start(ctx, "evaluator.assess")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", s.ID),
		attribute.String("session.window", s.WindowName),
	)

	start := a.clock()
	out := &model.Assessment{
		SessionID:   s.ID,
		WindowName:  s.WindowName,
		Status:      s.Status,
		Model:       a.Evaluator.Model(),
		Provider:    a.Evaluator.Provider(),
		EvaluatedAt: start,
	}

	if v, ok := a.Cache.Lookup(s.ID, content); ok {
		a.Metrics.RecordCacheHit(ctx)
		span.SetAttributes(attribute.Bool("evaluator.cached", true))
		out.Verdict = *v
		out.Cached = true
		return out, nil
	}
	a.Metrics.RecordCacheMiss(ctx)

	v, err := a.Evaluator.Evaluate(ctx, content)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	a.Metrics.RecordTokens(ctx, out.Provider, out.Model, v.Usage.InputTokens, v.Usage.OutputTokens)
	a.Cache.Store(s.ID, content, *v)

	out.Verdict = *v
	out.Usage = v.Usage
	out.DurationMs = a.clock().Sub(start).Milliseconds()
	return out, nil
}

func (a *Assessor) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}
