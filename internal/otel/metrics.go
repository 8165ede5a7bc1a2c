package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "command-center"

// Metrics holds all OTEL metric instruments for command-center.
// All instruments are safe for concurrent use, and every Record* method is
// a no-op on a nil receiver.
type Metrics struct {
	// Session lifecycle
	SessionsLaunched  metric.Int64Counter
	LaunchRejections  metric.Int64Counter
	SessionsKilled    metric.Int64Counter
	StatusTransitions metric.Int64Counter

	// Monitor
	Polls        metric.Int64Counter
	PollDuration metric.Float64Histogram

	// Fan-out
	Notifications metric.Int64Counter

	// Multiplexer failures (partitioned by operation)
	AdapterErrors metric.Int64Counter

	// LLM second opinion
	InputTokens           metric.Int64Counter
	OutputTokens          metric.Int64Counter
	AssessmentCacheHits   metric.Int64Counter
	AssessmentCacheMisses metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	// --- Session lifecycle ---

	m.SessionsLaunched, err = meter.Int64Counter("sessions.launched",
		metric.WithDescription("Sessions launched, partitioned by mode (normal, elevated)"))
	if err != nil {
		return nil, err
	}

	m.LaunchRejections, err = meter.Int64Counter("sessions.launch_rejections",
		metric.WithDescription("Launch requests rejected, partitioned by error kind"))
	if err != nil {
		return nil, err
	}

	m.SessionsKilled, err = meter.Int64Counter("sessions.killed",
		metric.WithDescription("Sessions killed on request"))
	if err != nil {
		return nil, err
	}

	m.StatusTransitions, err = meter.Int64Counter("sessions.status_transitions",
		metric.WithDescription("Observed status transitions, partitioned by target status"))
	if err != nil {
		return nil, err
	}

	// --- Monitor ---

	m.Polls, err = meter.Int64Counter("monitor.polls",
		metric.WithDescription("Monitor poll ticks"))
	if err != nil {
		return nil, err
	}

	m.PollDuration, err = meter.Float64Histogram("monitor.poll.duration",
		metric.WithDescription("Wall-clock duration of one monitor tick"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	// --- Fan-out ---

	m.Notifications, err = meter.Int64Counter("notifications.sent",
		metric.WithDescription("Notifications stored in the history, partitioned by type"))
	if err != nil {
		return nil, err
	}

	m.AdapterErrors, err = meter.Int64Counter("mux.errors",
		metric.WithDescription("Failed multiplexer commands, partitioned by operation"))
	if err != nil {
		return nil, err
	}

	// --- LLM ---

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total LLM input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total LLM output tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.AssessmentCacheHits, err = meter.Int64Counter("assessment_cache.hits",
		metric.WithDescription("Assessments served from cache (pane content unchanged)"))
	if err != nil {
		return nil, err
	}

	m.AssessmentCacheMisses, err = meter.Int64Counter("assessment_cache.misses",
		metric.WithDescription("Assessments that required an LLM call"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordLaunch records a successful launch.
func (m *Metrics) RecordLaunch(ctx context.Context, elevated bool) {
	if m == nil {
		return
	}
	mode := "normal"
	if elevated {
		mode = "elevated"
	}
	m.SessionsLaunched.Add(ctx, 1, metric.WithAttributes(attribute.String("session.mode", mode)))
}

// RecordLaunchRejection records a rejected launch by error kind.
func (m *Metrics) RecordLaunchRejection(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.LaunchRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("error.kind", kind)))
}

// RecordKill records a killed session.
func (m *Metrics) RecordKill(ctx context.Context) {
	if m == nil {
		return
	}
	m.SessionsKilled.Add(ctx, 1)
}

// RecordTransition records a status change.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status.from", from),
		attribute.String("status.to", to),
	))
}

// RecordPoll records one monitor tick and its duration.
func (m *Metrics) RecordPoll(ctx context.Context, sessions int, d time.Duration) {
	if m == nil {
		return
	}
	m.Polls.Add(ctx, 1)
	m.PollDuration.Record(ctx, float64(d.Microseconds())/1000,
		metric.WithAttributes(attribute.Int("monitor.sessions", sessions)))
}

// RecordNotification records a stored notification by type.
func (m *Metrics) RecordNotification(ctx context.Context, typ string) {
	if m == nil {
		return
	}
	m.Notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("notification.type", typ)))
}

// RecordAdapterError records a failed multiplexer command.
func (m *Metrics) RecordAdapterError(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.AdapterErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("mux.op", op)))
}

// RecordTokens records LLM token usage on the metric counters.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	m.InputTokens.Add(ctx, input, attrs)
	m.OutputTokens.Add(ctx, output, attrs)
}

// RecordCacheHit records an assessment cache hit.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.AssessmentCacheHits.Add(ctx, 1)
}

// RecordCacheMiss records an assessment cache miss.
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.AssessmentCacheMisses.Add(ctx, 1)
}
