// Package session owns the authoritative table of launched agent sessions.
//
// The Registry launches sessions into host windows, reconciles its table
// against the windows the multiplexer still lists, classifies status on
// demand and delivers input. Post-launch watchers accept the elevated-mode
// confirmation screen and deliver the initial instruction once the agent is
// ready.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/timvw/command-center/internal/model"
	"github.com/timvw/command-center/internal/mux"
	ccotel "github.com/timvw/command-center/internal/otel"
	"github.com/timvw/command-center/internal/status"
)

var tracer = otel.Tracer("command-center/session")

// Defaults for Config fields left at zero.
const (
	DefaultMaxSessions  = 10
	DefaultWatchLines   = 50
	DefaultAgentCommand = "claude"
	DefaultElevatedArgs = "--dangerously-skip-permissions"
)

// WatchConfig tunes the post-launch watchers.
type WatchConfig struct {
	// StartupDelay is the wait before the first watcher attempt.
	StartupDelay time.Duration
	// Interval separates watcher attempts.
	Interval time.Duration
	// BypassAttempts bounds the confirmation-screen watcher.
	BypassAttempts int
	// ReadyAttempts bounds the readiness watcher.
	ReadyAttempts int
	// KeyDelay separates the Down and Enter keys when accepting.
	KeyDelay time.Duration
	// AcceptSettle is the wait between accepting and probing readiness.
	AcceptSettle time.Duration
}

// DefaultWatchConfig returns the watcher timings used in production.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		StartupDelay:   3 * time.Second,
		Interval:       time.Second,
		BypassAttempts: 15,
		ReadyAttempts:  20,
		KeyDelay:       500 * time.Millisecond,
		AcceptSettle:   2 * time.Second,
	}
}

// Config configures a Registry. Zero values fall back to the defaults above.
type Config struct {
	MaxSessions   int
	IdleThreshold time.Duration
	// CaptureLines is the scrollback read for status classification.
	CaptureLines int
	// WatchLines is the scrollback read by the post-launch watchers.
	WatchLines int
	// ProjectRoot is the parent of default working directories.
	ProjectRoot  string
	AgentCommand string
	ElevatedArgs string
	Watch        WatchConfig

	Logger    *log.Logger
	Metrics   *ccotel.Metrics
	Scheduler Scheduler
}

type entry struct {
	s      model.Session
	ctx    context.Context
	cancel context.CancelFunc
	// deliver serializes input delivery to this session's window.
	deliver sync.Mutex
}

// Registry is the session table. All methods are safe for concurrent use.
// The table lock is never held across a multiplexer call.
type Registry struct {
	host    mux.Host
	cfg     Config
	logger  *log.Logger
	metrics *ccotel.Metrics
	sched   Scheduler
	now     func() time.Time
	sleep   func(time.Duration)

	mu       sync.Mutex
	sessions map[string]*entry
	// reserved holds window names whose launch is in progress.
	reserved map[string]struct{}
	// issued holds every id handed out, including killed and discarded ones.
	issued map[string]struct{}
	suffix func() string
}

// New returns a Registry that launches sessions into host.
func New(host mux.Host, cfg Config) *Registry {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.CaptureLines <= 0 {
		cfg.CaptureLines = mux.DefaultCaptureLines
	}
	if cfg.WatchLines <= 0 {
		cfg.WatchLines = DefaultWatchLines
	}
	if cfg.AgentCommand == "" {
		cfg.AgentCommand = DefaultAgentCommand
	}
	if cfg.ElevatedArgs == "" {
		cfg.ElevatedArgs = DefaultElevatedArgs
	}
	if cfg.Watch == (WatchConfig{}) {
		cfg.Watch = DefaultWatchConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = TimerScheduler{}
	}
	return &Registry{
		host:     host,
		cfg:      cfg,
		logger:   logger,
		metrics:  cfg.Metrics,
		sched:    sched,
		now:      time.Now,
		sleep:    time.Sleep,
		sessions: make(map[string]*entry),
		reserved: make(map[string]struct{}),
		issued:   make(map[string]struct{}),
		suffix:   func() string { return uuid.NewString()[:6] },
	}
}

// MaxSessions returns the configured capacity.
func (r *Registry) MaxSessions() int {
	return r.cfg.MaxSessions
}

// SetIdleThreshold changes the idle threshold for later Status calls. Zero
// disables idle detection.
func (r *Registry) SetIdleThreshold(d time.Duration) {
	r.mu.Lock()
	r.cfg.IdleThreshold = d
	r.mu.Unlock()
}

// Launch starts a new agent session in its own host window.
func (r *Registry) Launch(ctx context.Context, req model.LaunchRequest) (model.Session, error) {
	ctx, span := tracer.Start(ctx, "session.launch",
		trace.WithAttributes(
			attribute.String("session.project", req.ProjectName),
			attribute.Bool("session.elevated", req.ElevatedMode),
		),
	)
	defer span.End()

	s, err := r.launch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordLaunchRejection(ctx, string(KindOf(err)))
		r.logger.Warn("launch rejected", "project", req.ProjectName, "err", err)
		return model.Session{}, err
	}
	span.SetAttributes(attribute.String("session.id", s.ID), attribute.String("session.window", s.WindowName))
	r.metrics.RecordLaunch(ctx, s.ElevatedMode)
	r.logger.Info("session launched", "id", s.ID, "window", s.WindowName, "elevated", s.ElevatedMode)
	return s, nil
}

func (r *Registry) launch(ctx context.Context, req model.LaunchRequest) (model.Session, error) {
	project := strings.TrimSpace(req.ProjectName)
	if project == "" {
		return model.Session{}, newError(KindValidation, nil, "projectName is required")
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = model.Slugify(project)
	}
	if slug == "" {
		return model.Session{}, newError(KindValidation, nil, "slug is empty")
	}
	window := model.WindowName(slug)

	if err := r.reserve(window); err != nil {
		return model.Session{}, err
	}
	release := func() {
		r.mu.Lock()
		delete(r.reserved, window)
		r.mu.Unlock()
	}

	windows, err := r.host.ListWindows(ctx)
	if err != nil && !hostGone(err) {
		release()
		r.metrics.RecordAdapterError(ctx, "list-windows")
		return model.Session{}, newError(KindAdapter, err, "list windows")
	}
	for _, w := range windows {
		if w == window {
			release()
			return model.Session{}, newError(KindDuplicate, nil, "window %s already exists on the host", window)
		}
	}

	if err := r.host.EnsureHost(ctx); err != nil {
		release()
		r.metrics.RecordAdapterError(ctx, "new-session")
		return model.Session{}, newError(KindAdapter, err, "ensure host session")
	}
	if err := r.host.CreateWindow(ctx, window); err != nil {
		release()
		if errors.Is(err, mux.ErrDuplicateWindow) {
			return model.Session{}, newError(KindDuplicate, err, "window %s already exists on the host", window)
		}
		r.metrics.RecordAdapterError(ctx, "new-window")
		return model.Session{}, newError(KindAdapter, err, "create window %s", window)
	}

	dir := strings.TrimSpace(req.WorkingDirectory)
	if dir == "" && r.cfg.ProjectRoot != "" {
		dir = filepath.Join(r.cfg.ProjectRoot, slug)
	}
	if err := r.host.SendText(ctx, window, r.startupLine(dir, req.ElevatedMode)); err != nil {
		if kerr := r.host.KillWindow(context.WithoutCancel(ctx), window); kerr != nil {
			r.logger.Warn("cleanup after failed launch", "window", window, "err", kerr)
		}
		release()
		r.metrics.RecordAdapterError(ctx, "paste-buffer")
		return model.Session{}, newError(KindAdapter, err, "start agent in %s", window)
	}

	color := strings.TrimSpace(req.Color)
	if color == "" {
		color = model.DefaultColor
	}
	now := r.now()
	sctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		s: model.Session{
			WindowName:         window,
			ProjectName:        project,
			Slug:               slug,
			RepoURL:            strings.TrimSpace(req.RepoURL),
			WorkingDirectory:   dir,
			Color:              color,
			ElevatedMode:       req.ElevatedMode,
			Status:             model.StatusRunning,
			LastActivity:       now,
			StartedAt:          now,
			PendingInstruction: strings.TrimSpace(req.InitialInstruction),
		},
		ctx:    sctx,
		cancel: cancel,
	}

	r.mu.Lock()
	delete(r.reserved, window)
	e.s.ID = r.newIDLocked(now)
	r.sessions[e.s.ID] = e
	s := e.s
	r.mu.Unlock()

	r.arm(e, s)
	return s, nil
}

// reserve claims window for an in-progress launch, enforcing uniqueness
// against the table and capacity against active sessions plus reservations.
func (r *Registry) reserve(window string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reserved[window]; ok {
		return newError(KindDuplicate, nil, "a launch for %s is already in progress", window)
	}
	active := 0
	for _, e := range r.sessions {
		if !e.s.Active() {
			continue
		}
		if e.s.WindowName == window {
			return newError(KindDuplicate, nil, "session %s already uses window %s", e.s.ID, window)
		}
		active++
	}
	if active+len(r.reserved) >= r.cfg.MaxSessions {
		return newError(KindCapacity, nil, "maximum of %d concurrent sessions reached", r.cfg.MaxSessions)
	}
	r.reserved[window] = struct{}{}
	return nil
}

// newIDLocked returns an id that has never been issued by this registry.
func (r *Registry) newIDLocked(now time.Time) string {
	for {
		id := fmt.Sprintf("session-%d-%s", now.UnixMilli(), r.suffix())
		if _, taken := r.issued[id]; !taken {
			r.issued[id] = struct{}{}
			return id
		}
	}
}

// startupLine is the single shell line typed into a new window.
func (r *Registry) startupLine(dir string, elevated bool) string {
	var b strings.Builder
	b.WriteString("unset CLAUDECODE; ")
	if dir != "" {
		b.WriteString("cd ")
		b.WriteString(shellQuote(dir))
		b.WriteString(" 2>/dev/null || true; ")
	}
	b.WriteString(r.cfg.AgentCommand)
	if elevated && r.cfg.ElevatedArgs != "" {
		b.WriteString(" ")
		b.WriteString(r.cfg.ElevatedArgs)
	}
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Kill removes the session from the table, stops its watchers and closes
// its window. Window removal is best effort.
func (r *Registry) Kill(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "session.kill", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		err := newError(KindNotFound, nil, "session %s not found", id)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	delete(r.sessions, id)
	window, active := e.s.WindowName, e.s.Active()
	r.mu.Unlock()

	e.cancel()
	// A completed session's window name may already belong to a newer launch.
	if active {
		if err := r.host.KillWindow(ctx, window); err != nil {
			r.metrics.RecordAdapterError(ctx, "kill-window")
			r.logger.Warn("kill window", "id", id, "window", window, "err", err)
		}
	}
	r.metrics.RecordKill(ctx)
	r.logger.Info("session killed", "id", id, "window", window)
	return nil
}

// ListAll reconciles the table against the host's live windows and returns
// a snapshot ordered by start time. Any active session whose window is gone
// becomes completed. If the host cannot be listed, reconciliation is skipped.
func (r *Registry) ListAll(ctx context.Context) []model.Session {
	windows, err := r.host.ListWindows(ctx)
	reconcile := err == nil || hostGone(err)
	if !reconcile {
		r.metrics.RecordAdapterError(ctx, "list-windows")
		r.logger.Warn("list windows, skipping reconciliation", "err", err)
	}
	live := make(map[string]bool, len(windows))
	for _, w := range windows {
		live[w] = true
	}

	now := r.now()
	r.mu.Lock()
	out := make([]model.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		if reconcile && e.s.Active() && !live[e.s.WindowName] {
			r.completeLocked(e, now)
		}
		out = append(out, e.s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) completeLocked(e *entry, now time.Time) {
	r.logger.Info("session completed", "id", e.s.ID, "window", e.s.WindowName)
	e.s.Status = model.StatusCompleted
	e.s.CompletedAt = &now
	e.cancel()
}

// Status captures the session's pane, classifies it and records the result.
// Completed sessions are returned unchanged.
func (r *Registry) Status(ctx context.Context, id string) (model.Session, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return model.Session{}, newError(KindNotFound, nil, "session %s not found", id)
	}
	if !e.s.Active() {
		s := e.s
		r.mu.Unlock()
		return s, nil
	}
	window := e.s.WindowName
	r.mu.Unlock()

	windows, err := r.host.ListWindows(ctx)
	if err != nil && !hostGone(err) {
		r.metrics.RecordAdapterError(ctx, "list-windows")
		return model.Session{}, newError(KindAdapter, err, "list windows")
	}
	present := false
	for _, w := range windows {
		if w == window {
			present = true
			break
		}
	}

	var output string
	if present {
		output, err = r.host.Capture(ctx, window, r.cfg.CaptureLines)
		if err != nil {
			r.metrics.RecordAdapterError(ctx, "capture-pane")
			r.logger.Debug("capture failed, classifying as blank", "id", id, "err", err)
			output = ""
		}
	}

	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[id]; !ok || cur != e {
		return model.Session{}, newError(KindNotFound, nil, "session %s not found", id)
	}
	if !e.s.Active() {
		return e.s, nil
	}
	if present {
		if output != e.s.LastOutput {
			e.s.LastActivity = now
		}
		e.s.LastOutput = output
	}
	st := status.Classify(output, status.Observation{
		WindowPresent: present,
		LastActivity:  e.s.LastActivity,
		IdleThreshold: r.cfg.IdleThreshold,
	}, now)
	if st == model.StatusCompleted {
		r.completeLocked(e, now)
	} else {
		e.s.Status = st
	}
	return e.s, nil
}

// SendInput pastes text into the session and presses Enter. Empty text
// only presses Enter.
func (r *Registry) SendInput(ctx context.Context, id, text string) error {
	ctx, span := tracer.Start(ctx, "session.input", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	e, window, err := r.activeEntry(id)
	if err != nil {
		return err
	}
	e.deliver.Lock()
	err = r.host.SendText(ctx, window, text)
	e.deliver.Unlock()
	if err != nil {
		span.RecordError(err)
		r.metrics.RecordAdapterError(ctx, "paste-buffer")
		return newError(KindAdapter, err, "send input to %s", window)
	}
	r.Touch(id)
	return nil
}

// SendKeys delivers raw key names to the session.
func (r *Registry) SendKeys(ctx context.Context, id string, keys ...string) error {
	if len(keys) == 0 {
		return newError(KindValidation, nil, "keys are required")
	}
	for _, k := range keys {
		if !mux.IsKeyName(k) {
			return newError(KindValidation, nil, "%q is not a key name", k)
		}
	}
	e, window, err := r.activeEntry(id)
	if err != nil {
		return err
	}
	e.deliver.Lock()
	err = r.host.SendKeys(ctx, window, keys...)
	e.deliver.Unlock()
	if err != nil {
		r.metrics.RecordAdapterError(ctx, "send-keys")
		return newError(KindAdapter, err, "send keys to %s", window)
	}
	r.Touch(id)
	return nil
}

func (r *Registry) activeEntry(id string) (*entry, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, "", newError(KindNotFound, nil, "session %s not found", id)
	}
	if !e.s.Active() {
		return nil, "", newError(KindValidation, nil, "session %s has completed", id)
	}
	return e, e.s.WindowName, nil
}

// Get returns a snapshot of one session without touching the host.
func (r *Registry) Get(id string) (model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return model.Session{}, newError(KindNotFound, nil, "session %s not found", id)
	}
	return e.s, nil
}

// FindByWindow returns the session bound to a window name, preferring an
// active session over completed records.
func (r *Registry) FindByWindow(window string) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *entry
	for _, e := range r.sessions {
		if e.s.WindowName != window {
			continue
		}
		if e.s.Active() {
			return e.s, true
		}
		if found == nil || e.s.StartedAt.After(found.s.StartedAt) {
			found = e
		}
	}
	if found == nil {
		return model.Session{}, false
	}
	return found.s, true
}

// Capture returns the last lines of the session's pane.
func (r *Registry) Capture(ctx context.Context, id string, lines int) (string, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return "", newError(KindNotFound, nil, "session %s not found", id)
	}
	window, active := e.s.WindowName, e.s.Active()
	last := e.s.LastOutput
	r.mu.Unlock()

	if !active {
		return last, nil
	}
	if lines <= 0 {
		lines = r.cfg.CaptureLines
	}
	out, err := r.host.Capture(ctx, window, lines)
	if err != nil {
		r.metrics.RecordAdapterError(ctx, "capture-pane")
		return "", newError(KindAdapter, err, "capture %s", window)
	}
	return out, nil
}

// Touch records activity on a session now.
func (r *Registry) Touch(id string) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok && e.s.Active() {
		e.s.LastActivity = now
	}
}

// AcceptBypass answers the elevated-mode confirmation screen for a session.
// It is idempotent: once accepted, further calls do nothing. The readiness
// watcher for a pending instruction is armed by whichever caller accepts.
func (r *Registry) AcceptBypass(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return newError(KindNotFound, nil, "session %s not found", id)
	}
	_, err := r.acceptBypass(ctx, e)
	return err
}

func (r *Registry) acceptBypass(ctx context.Context, e *entry) (bool, error) {
	accepted, pending, err := r.sendBypassKeys(ctx, e)
	if accepted && pending {
		r.armReady(e, r.cfg.Watch.AcceptSettle)
	}
	return accepted, err
}

func (r *Registry) sendBypassKeys(ctx context.Context, e *entry) (accepted, pending bool, err error) {
	e.deliver.Lock()
	defer e.deliver.Unlock()

	r.mu.Lock()
	if !e.s.ElevatedMode || e.s.BypassAccepted || !e.s.Active() {
		r.mu.Unlock()
		return false, false, nil
	}
	window, id := e.s.WindowName, e.s.ID
	r.mu.Unlock()

	if err := r.host.SendKeys(ctx, window, "Down"); err != nil {
		r.metrics.RecordAdapterError(ctx, "send-keys")
		return false, false, newError(KindAdapter, err, "accept bypass in %s", window)
	}
	r.sleep(r.cfg.Watch.KeyDelay)
	if err := r.host.SendKeys(ctx, window, "Enter"); err != nil {
		r.metrics.RecordAdapterError(ctx, "send-keys")
		return false, false, newError(KindAdapter, err, "accept bypass in %s", window)
	}

	r.mu.Lock()
	e.s.BypassAccepted = true
	pending = e.s.PendingInstruction != ""
	r.mu.Unlock()
	r.logger.Info("bypass confirmation accepted", "id", id, "window", window)
	return true, pending, nil
}

// DiscardCompleted drops completed records that ended before cutoff and
// returns how many were removed.
func (r *Registry) DiscardCompleted(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if e.s.Status == model.StatusCompleted && e.s.CompletedAt != nil && e.s.CompletedAt.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Close stops every pending watcher. The table is left intact.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.sessions {
		e.cancel()
	}
}

// arm starts the post-launch watchers for a freshly recorded session.
func (r *Registry) arm(e *entry, s model.Session) {
	switch {
	case s.ElevatedMode:
		r.armBypass(e)
	case s.PendingInstruction != "":
		r.armReady(e, r.cfg.Watch.StartupDelay)
	}
}

func (r *Registry) armBypass(e *entry) {
	w := &watcher{
		name:     "bypass",
		max:      r.cfg.Watch.BypassAttempts,
		interval: r.cfg.Watch.Interval,
		probe:    func(ctx context.Context) bool { return r.probeBypass(ctx, e) },
		done:     r.watchDone(e, "bypass"),
	}
	w.start(e.ctx, r.sched, r.cfg.Watch.StartupDelay)
}

func (r *Registry) armReady(e *entry, delay time.Duration) {
	w := &watcher{
		name:     "ready",
		max:      r.cfg.Watch.ReadyAttempts,
		interval: r.cfg.Watch.Interval,
		probe:    func(ctx context.Context) bool { return r.probeReady(ctx, e) },
		done:     r.watchDone(e, "ready"),
	}
	w.start(e.ctx, r.sched, delay)
}

func (r *Registry) watchDone(e *entry, name string) func(watchState, int) {
	return func(state watchState, attempts int) {
		r.mu.Lock()
		id := e.s.ID
		r.mu.Unlock()
		r.logger.Debug("watcher finished", "watcher", name, "id", id, "state", state, "attempts", attempts)
	}
}

func (r *Registry) probeBypass(ctx context.Context, e *entry) bool {
	r.mu.Lock()
	window, accepted := e.s.WindowName, e.s.BypassAccepted
	r.mu.Unlock()
	if accepted {
		return true
	}
	out, err := r.host.Capture(ctx, window, r.cfg.WatchLines)
	if err != nil || !status.HasBypassPrompt(out) {
		return false
	}
	if _, err := r.acceptBypass(ctx, e); err != nil {
		r.logger.Warn("accept bypass", "window", window, "err", err)
		return false
	}
	return true
}

func (r *Registry) probeReady(ctx context.Context, e *entry) bool {
	r.mu.Lock()
	window, text := e.s.WindowName, e.s.PendingInstruction
	r.mu.Unlock()
	if text == "" {
		return true
	}
	out, err := r.host.Capture(ctx, window, r.cfg.WatchLines)
	if err != nil || !status.IsReady(out) {
		return false
	}

	e.deliver.Lock()
	err = r.host.SendText(ctx, window, text)
	e.deliver.Unlock()
	if err != nil {
		r.metrics.RecordAdapterError(ctx, "paste-buffer")
		r.logger.Warn("deliver initial instruction", "window", window, "err", err)
		return true
	}

	r.mu.Lock()
	e.s.PendingInstruction = ""
	e.s.LastActivity = r.now()
	r.mu.Unlock()
	r.logger.Info("initial instruction delivered", "window", window)
	return true
}

// hostGone reports whether err means the host session or server no longer
// exists, in which case no windows are live.
func hostGone(err error) bool {
	return errors.Is(err, mux.ErrNoServer) || errors.Is(err, mux.ErrWindowNotFound)
}
