// Package dashboard is the interactive terminal view over a running server:
// sessions with live status, a pane preview, and the notification feed.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/command-center/internal/client"
	"github.com/timvw/command-center/internal/events"
	"github.com/timvw/command-center/internal/model"
	"github.com/timvw/command-center/internal/server"
)

// API is the part of the server client the dashboard drives.
type API interface {
	Sessions(ctx context.Context) ([]model.Session, error)
	Kill(ctx context.Context, id string) error
	SendInput(ctx context.Context, id, text string) error
	SendKeys(ctx context.Context, id string, keys ...string) error
	Notifications(ctx context.Context) (server.NotificationsResponse, error)
	MarkAllRead(ctx context.Context) error
	Subscribe(ctx context.Context) (<-chan client.Frame, error)
}

type viewMode int

const (
	modeList viewMode = iota
	modeTextInput
	modeConfirmKill
)

// previewLines is how much of the selected pane is shown.
const previewLines = 12

// notificationLines is how many notifications are listed.
const notificationLines = 5

// messages
type refreshMsg struct {
	sessions      []model.Session
	notifications server.NotificationsResponse
	err           error
}

type subscribedMsg struct {
	frames <-chan client.Frame
	err    error
}

type frameMsg struct {
	frame client.Frame
}

type disconnectedMsg struct{}

type actionMsg struct {
	text string
	err  error
}

type tickMsg struct{}

// TUI runs the dashboard.
type TUI struct {
	API             API
	RefreshInterval time.Duration // 0 disables periodic refresh
	Theme           Theme
}

type tuiModel struct {
	api             API
	ctx             context.Context
	refreshInterval time.Duration
	st              styles

	sessions      []model.Session
	notifications []events.Notification
	unread        int
	cursor        int
	mode          viewMode

	textInput  textinput.Model
	textTarget string // session id

	frames    <-chan client.Frame
	connected bool

	width  int
	height int

	loading bool
	message string
}

func (t *TUI) Run(ctx context.Context) error {
	m := newModel(ctx, t.API, t.RefreshInterval, t.Theme)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func newModel(ctx context.Context, api API, refresh time.Duration, theme Theme) *tuiModel {
	ti := textinput.New()
	ti.Placeholder = "Type input and press Enter..."
	ti.CharLimit = 2048
	ti.Width = 80
	if theme == (Theme{}) {
		theme = DarkTheme()
	}
	return &tuiModel{
		api:             api,
		ctx:             ctx,
		refreshInterval: refresh,
		st:              newStyles(theme),
		textInput:       ti,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	m.loading = true
	return tea.Batch(m.doRefresh(), m.doSubscribe())
}

func (m *tuiModel) doRefresh() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		sessions, err := api.Sessions(ctx)
		if err != nil {
			return refreshMsg{err: err}
		}
		notes, err := api.Notifications(ctx)
		return refreshMsg{sessions: sessions, notifications: notes, err: err}
	}
}

func (m *tuiModel) doSubscribe() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		frames, err := api.Subscribe(ctx)
		return subscribedMsg{frames: frames, err: err}
	}
}

// waitFrame blocks for the next pushed frame.
func waitFrame(frames <-chan client.Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return disconnectedMsg{}
		}
		return frameMsg{frame: f}
	}
}

func (m *tuiModel) scheduleTick() tea.Cmd {
	if m.refreshInterval <= 0 {
		return nil
	}
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// run wraps an API call so its outcome lands in the status line.
func (m *tuiModel) run(success string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: success}
	}
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		m.loading = false
		if msg.err != nil {
			m.message = fmt.Sprintf("Refresh error: %v", msg.err)
		} else {
			m.setSessions(msg.sessions)
			m.notifications = msg.notifications.Events
			m.unread = msg.notifications.UnreadCount
		}
		return m, m.scheduleTick()

	case tickMsg:
		if m.loading || m.mode != modeList {
			return m, m.scheduleTick()
		}
		m.loading = true
		return m, m.doRefresh()

	case subscribedMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Live updates unavailable: %v", msg.err)
			return m, nil
		}
		m.frames = msg.frames
		m.connected = true
		return m, waitFrame(m.frames)

	case frameMsg:
		m.applyFrame(msg.frame)
		return m, waitFrame(m.frames)

	case disconnectedMsg:
		m.connected = false
		m.message = "Disconnected from server"
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Failed: %v", msg.err)
			return m, nil
		}
		m.message = msg.text
		m.loading = true
		return m, m.doRefresh()
	}
	return m, nil
}

// applyFrame folds one pushed message into local state.
func (m *tuiModel) applyFrame(f client.Frame) {
	switch f.Type {
	case server.TypeInit:
		p, err := f.Init()
		if err != nil {
			return
		}
		m.setSessions(p.Sessions)
		m.notifications = p.Notifications
		m.unread = countUnread(p.Notifications)

	case events.TopicNotification:
		n, err := f.Notification()
		if err != nil {
			return
		}
		m.notifications = append([]events.Notification{n}, m.notifications...)
		if !n.Read {
			m.unread++
		}
		m.message = fmt.Sprintf("%s: %s", n.Title, n.Body)

	case events.TopicLaunched:
		var s model.Session
		if json.Unmarshal(f.Data, &s) != nil {
			return
		}
		m.setSessions(append(m.withoutSession(s.ID), s))

	case events.TopicKilled:
		var k events.Killed
		if json.Unmarshal(f.Data, &k) != nil {
			return
		}
		m.setSessions(m.withoutSession(k.ID))

	case events.TopicStatus:
		var u events.StatusUpdate
		if json.Unmarshal(f.Data, &u) != nil {
			return
		}
		if i := m.indexOf(u.ID); i >= 0 {
			m.sessions[i].Status = model.Status(u.Status)
		}

	case events.TopicOutput:
		var u events.OutputUpdate
		if json.Unmarshal(f.Data, &u) != nil {
			return
		}
		if i := m.indexOf(u.ID); i >= 0 {
			m.sessions[i].LastOutput = u.Output
			m.sessions[i].LastActivity = u.Timestamp
		}
	}
}

func (m *tuiModel) setSessions(list []model.Session) {
	m.sessions = list
	if m.cursor >= len(m.sessions) {
		m.cursor = len(m.sessions) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *tuiModel) withoutSession(id string) []model.Session {
	out := make([]model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

func (m *tuiModel) indexOf(id string) int {
	for i, s := range m.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m *tuiModel) selected() *model.Session {
	if m.cursor < 0 || m.cursor >= len(m.sessions) {
		return nil
	}
	return &m.sessions[m.cursor]
}

func countUnread(list []events.Notification) int {
	n := 0
	for _, e := range list {
		if !e.Read {
			n++
		}
	}
	return n
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeTextInput:
		return m.handleTextInputKey(msg)
	case modeConfirmKill:
		return m.handleConfirmKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m *tuiModel) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.sessions)-1 {
			m.cursor++
		}

	case "t", "i":
		s := m.selected()
		if s == nil || !s.Active() {
			return m, nil
		}
		m.mode = modeTextInput
		m.textTarget = s.ID
		m.textInput.SetValue("")
		m.textInput.Focus()
		return m, textinput.Blink

	case "enter":
		if s := m.selected(); s != nil && s.Active() {
			id := s.ID
			return m, m.run("Sent Enter to "+s.WindowName, func(ctx context.Context) error {
				return m.api.SendKeys(ctx, id, "Enter")
			})
		}

	case "ctrl+x":
		if s := m.selected(); s != nil && s.Active() {
			id := s.ID
			return m, m.run("Interrupted "+s.WindowName, func(ctx context.Context) error {
				return m.api.SendKeys(ctx, id, "C-c")
			})
		}

	case "x", "d":
		if m.selected() != nil {
			m.mode = modeConfirmKill
		}

	case "m":
		return m, m.run("Marked all notifications read", m.api.MarkAllRead)

	case "r":
		m.loading = true
		m.message = ""
		return m, m.doRefresh()
	}
	return m, nil
}

func (m *tuiModel) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = modeList
	s := m.selected()
	if s == nil {
		return m, nil
	}
	switch msg.String() {
	case "y", "Y":
		id, window := s.ID, s.WindowName
		return m, m.run("Killed "+window, func(ctx context.Context) error {
			return m.api.Kill(ctx, id)
		})
	default:
		m.message = "Kill cancelled"
		return m, nil
	}
}

func (m *tuiModel) handleTextInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "escape":
		m.mode = modeList
		m.textTarget = ""
		m.textInput.Blur()
		return m, nil

	case "enter":
		text := m.textInput.Value()
		target := m.textTarget
		m.mode = modeList
		m.textTarget = ""
		m.textInput.Blur()
		if strings.TrimSpace(text) == "" || target == "" {
			return m, nil
		}
		return m, m.run(fmt.Sprintf("Sent '%s'", truncate(text, 40)), func(ctx context.Context) error {
			return m.api.SendInput(ctx, target, text)
		})
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *tuiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.st.title.Render("Command Center"))
	b.WriteString("  ")
	switch m.mode {
	case modeTextInput:
		b.WriteString(m.st.dim.Render("Enter=send  Esc=cancel"))
	case modeConfirmKill:
		b.WriteString(m.st.err.Render("Kill selected session? y/n"))
	default:
		b.WriteString(m.st.dim.Render("↑↓=select  t=type  Enter=send Enter  ^X=interrupt  x=kill  m=mark read  r=refresh  q=quit"))
	}
	if m.connected {
		b.WriteString("  " + m.st.running.Render("live"))
	} else {
		b.WriteString("  " + m.st.dim.Render("offline"))
	}
	if m.loading {
		b.WriteString("  " + m.st.waiting.Render("refreshing..."))
	}
	b.WriteString("\n")

	if len(m.sessions) == 0 {
		b.WriteString("  No sessions.\n")
	} else {
		m.writeSessions(&b)
	}

	if s := m.selected(); s != nil {
		b.WriteString(m.renderPreview(*s))
		b.WriteString("\n")
	}

	if m.mode == modeTextInput {
		b.WriteString("  " + m.textInput.View() + "\n")
	}

	m.writeNotifications(&b)

	if m.message != "" {
		b.WriteString(m.st.dim.Render("  " + m.message))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *tuiModel) writeSessions(b *strings.Builder) {
	nameWidth := 12
	for _, s := range m.sessions {
		if len(s.ProjectName)+2 > nameWidth {
			nameWidth = len(s.ProjectName) + 2
		}
	}
	sep := m.st.header.Render(" | ")
	now := time.Now()
	active := 0
	for i, s := range m.sessions {
		if s.Active() {
			active++
		}
		name := s.ProjectName
		if s.ElevatedMode {
			name += " !"
		}
		status := fmt.Sprintf("%s %s", statusIcon(s.Status), s.Status)
		age := formatAge(now.Sub(s.LastActivity))
		if s.LastActivity.IsZero() {
			age = "-"
		}

		if i == m.cursor {
			line := fmt.Sprintf("→ %s | %s | %s | %s",
				padRight(name, nameWidth), padRight(status, 20), padRight(s.WindowName, 24), age)
			b.WriteString(m.st.selected.Render(padRight(line, m.width-1)))
		} else {
			b.WriteString("  ")
			b.WriteString(padRight(name, nameWidth))
			b.WriteString(sep)
			b.WriteString(m.st.statusStyle(s.Status).Render(padRight(status, 20)))
			b.WriteString(sep)
			b.WriteString(m.st.dim.Render(padRight(s.WindowName, 24)))
			b.WriteString(sep)
			b.WriteString(m.st.dim.Render(age))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.st.dim.Render(fmt.Sprintf("  %d sessions | %d active | %d unread", len(m.sessions), active, m.unread)))
	b.WriteString("\n")
}

func (m *tuiModel) renderPreview(s model.Session) string {
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	lines := tailLines(s.LastOutput, previewLines)
	for i, l := range lines {
		lines[i] = truncate(l, width-2)
	}
	if len(lines) == 0 {
		lines = []string{m.st.dim.Render("(no output yet)")}
	}
	return m.st.preview.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *tuiModel) writeNotifications(b *strings.Builder) {
	if len(m.notifications) == 0 {
		return
	}
	for i, n := range m.notifications {
		if i >= notificationLines {
			break
		}
		dot := " "
		if !n.Read {
			dot = m.st.info.Render("•")
		}
		line := fmt.Sprintf("%s %s  %s", n.Timestamp.Local().Format("15:04:05"), n.Title, n.Body)
		b.WriteString(fmt.Sprintf(" %s %s\n", dot, truncate(line, m.width-4)))
	}
}

// tailLines returns the last n non-trailing-blank lines of s.
func tailLines(s string, n int) []string {
	s = strings.TrimRight(s, "\n ")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// formatAge renders a duration as a short "ago" string.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// truncate cuts a string to at most maxLen characters.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// padRight pads a string with spaces to reach the desired visible width.
func padRight(s string, width int) string {
	visible := visibleLen(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

// visibleLen returns the visible length of a string, ignoring ANSI escape sequences.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		n++
	}
	return n
}
