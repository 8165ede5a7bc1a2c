// Package monitor polls every tracked session on a fixed interval, turns
// status transitions into notifications and streams output deltas to
// subscribers.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/timvw/command-center/internal/events"
	"github.com/timvw/command-center/internal/model"
	ccotel "github.com/timvw/command-center/internal/otel"
	"github.com/timvw/command-center/internal/status"
)

var tracer = otel.Tracer("command-center/monitor")

// DefaultInterval is the poll period used when none is configured.
const DefaultInterval = time.Second

// Sessions is the part of the session registry the Monitor drives.
type Sessions interface {
	ListAll(ctx context.Context) []model.Session
	Status(ctx context.Context, id string) (model.Session, error)
	Get(id string) (model.Session, error)
	FindByWindow(window string) (model.Session, bool)
	Touch(id string)
	AcceptBypass(ctx context.Context, id string) error
	DiscardCompleted(cutoff time.Time) int
}

// Publisher is the fan-out the Monitor emits into.
type Publisher interface {
	Send(n events.Notification) events.Notification
	Broadcast(topic string, payload any)
}

// Monitor is the polling loop. Set the exported fields before Run.
type Monitor struct {
	Sessions Sessions
	Events   Publisher
	Gate     *events.Gate
	Metrics  *ccotel.Metrics
	Logger   *log.Logger

	// Interval between ticks. Zero means DefaultInterval.
	Interval time.Duration
	// Retention drops completed sessions this long after they ended.
	// Zero keeps them until killed.
	Retention time.Duration

	now func() time.Time

	mu         sync.Mutex
	prevStatus map[string]model.Status
	prevOutput map[string]string
}

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger().Info("monitor started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			m.logger().Info("monitor stopped")
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll runs one tick. Per-session failures are logged and skipped.
func (m *Monitor) Poll(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "monitor.poll")
	defer span.End()
	start := time.Now()

	list := m.Sessions.ListAll(ctx)
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		seen[s.ID] = true
		m.observe(ctx, s)
	}
	m.prune(seen)

	if retention := m.retention(); retention > 0 {
		if n := m.Sessions.DiscardCompleted(m.clock().Add(-retention)); n > 0 {
			m.logger().Debug("discarded completed sessions", "count", n)
		}
	}

	span.SetAttributes(attribute.Int("monitor.sessions", len(list)))
	m.Metrics.RecordPoll(ctx, len(list), time.Since(start))
}

func (m *Monitor) observe(ctx context.Context, listed model.Session) {
	s := listed
	if listed.Active() {
		fresh, err := m.Sessions.Status(ctx, listed.ID)
		if err != nil {
			m.logger().Debug("status refresh failed, skipping", "id", listed.ID, "err", err)
			return
		}
		s = fresh
	}

	m.mu.Lock()
	m.init()
	prev, known := m.prevStatus[s.ID]
	if !known {
		prev = model.StatusRunning
	}
	prevOut := m.prevOutput[s.ID]
	m.prevStatus[s.ID] = s.Status
	m.prevOutput[s.ID] = s.LastOutput
	m.mu.Unlock()

	now := m.clock()
	if s.Status != prev {
		m.Metrics.RecordTransition(ctx, string(prev), string(s.Status))
		m.Events.Broadcast(events.TopicStatus, events.StatusUpdate{
			ID:          s.ID,
			Status:      string(s.Status),
			ProjectName: s.ProjectName,
			Timestamp:   now,
		})
		m.notifyTransition(ctx, s)
	}

	if s.LastOutput != prevOut && s.Active() {
		m.Sessions.Touch(s.ID)
		m.Events.Broadcast(events.TopicOutput, events.OutputUpdate{
			ID:          s.ID,
			Output:      s.LastOutput,
			ProjectName: s.ProjectName,
			Timestamp:   now,
		})
	}

	if s.ElevatedMode && !s.BypassAccepted && s.Active() && status.HasBypassPrompt(s.LastOutput) {
		if err := m.Sessions.AcceptBypass(ctx, s.ID); err != nil {
			m.logger().Debug("fallback bypass accept failed", "id", s.ID, "err", err)
		}
	}
}

func (m *Monitor) notifyTransition(ctx context.Context, s model.Session) {
	var n events.Notification
	switch s.Status {
	case model.StatusWaiting:
		if s.ElevatedMode && !s.BypassAccepted {
			m.logger().Debug("attention suppressed pending bypass accept", "id", s.ID)
			return
		}
		n = events.Notification{
			Type:  events.TypeAttention,
			Title: "Needs Attention",
			Body:  fmt.Sprintf("%s is waiting for input", s.ProjectName),
		}
	case model.StatusError:
		n = events.Notification{
			Type:  events.TypeError,
			Title: "Error Detected",
			Body:  fmt.Sprintf("%s encountered an error", s.ProjectName),
		}
	case model.StatusCompleted:
		n = events.Notification{
			Type:  events.TypeCompleted,
			Title: "Session Completed",
			Body:  fmt.Sprintf("%s session has ended", s.ProjectName),
		}
	default:
		return
	}
	m.emit(ctx, s, n)
}

func (m *Monitor) emit(ctx context.Context, s model.Session, n events.Notification) {
	if !m.Gate.Allows(n.Type) {
		return
	}
	n.SessionID = s.ID
	n.ProjectName = s.ProjectName
	sent := m.Events.Send(n)
	m.Metrics.RecordNotification(ctx, string(n.Type))
	m.logger().Info("notification", "type", sent.Type, "id", s.ID, "title", sent.Title)
}

// HandleHook turns a hook payload into activity and, for attention states,
// an attention notification. Payloads for unknown targets are dropped.
func (m *Monitor) HandleHook(ev events.HookEvent) {
	s, ok := m.Sessions.FindByWindow(ev.Target)
	if !ok {
		got, err := m.Sessions.Get(ev.Target)
		if err != nil {
			m.logger().Debug("hook for unknown target", "target", ev.Target, "state", ev.State)
			return
		}
		s = got
	}
	if !s.Active() {
		return
	}
	m.Sessions.Touch(s.ID)
	if !events.IsAttentionState(ev.State) {
		return
	}
	if s.ElevatedMode && !s.BypassAccepted {
		return
	}
	ctx, span := tracer.Start(context.Background(), "monitor.hook",
		trace.WithAttributes(attribute.String("session.id", s.ID), attribute.String("hook.state", ev.State)))
	defer span.End()

	body := fmt.Sprintf("%s is waiting for input", s.ProjectName)
	if ev.Message != "" {
		body = ev.Message
	}
	m.emit(ctx, s, events.Notification{
		Type:  events.TypeAttention,
		Title: "Needs Attention",
		Body:  body,
	})
}

// SetRetention changes Retention while Run is active.
func (m *Monitor) SetRetention(d time.Duration) {
	m.mu.Lock()
	m.Retention = d
	m.mu.Unlock()
}

func (m *Monitor) retention() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Retention
}

// prune forgets every id not in seen.
func (m *Monitor) prune(seen map[string]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.prevStatus {
		if !seen[id] {
			delete(m.prevStatus, id)
			delete(m.prevOutput, id)
		}
	}
}

// tracked returns how many sessions the Monitor currently remembers.
func (m *Monitor) tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prevStatus)
}

func (m *Monitor) init() {
	if m.prevStatus == nil {
		m.prevStatus = make(map[string]model.Status)
		m.prevOutput = make(map[string]string)
	}
}

func (m *Monitor) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *Monitor) logger() *log.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return log.Default()
}
