// Package model holds the records shared across the orchestrator: sessions,
// launch requests, the project catalogue and LLM assessments.
package model

import (
	"regexp"
	"strings"
	"time"
)

// Status is the runtime state of a session as derived from its pane output.
type Status string

const (
	StatusRunning   Status = "running"
	StatusWaiting   Status = "waiting_for_input"
	StatusIdle      Status = "idle"
	StatusError     Status = "error"
	StatusCompleted Status = "completed"
)

// WindowPrefix is prepended to every slug to form the host window name.
const WindowPrefix = "claude-"

// DefaultColor is the display colour used when a launch request has none.
const DefaultColor = "#58a6ff"

// Session is a launched agent process living in one host window.
type Session struct {
	// ID is generated at launch and never reused.
	ID string `json:"id"`
	// WindowName is the host window that runs the agent.
	WindowName string `json:"windowName"`

	ProjectName      string `json:"projectName"`
	Slug             string `json:"slug"`
	RepoURL          string `json:"repoUrl,omitempty"`
	WorkingDirectory string `json:"workingDirectory"`
	Color            string `json:"color"`

	// ElevatedMode launches the agent with its permission prompts disabled.
	ElevatedMode bool `json:"elevatedMode"`
	// BypassAccepted is set once the one-time elevated-mode confirmation
	// has been accepted on the user's behalf.
	BypassAccepted bool `json:"bypassAccepted"`

	Status       Status     `json:"status"`
	LastOutput   string     `json:"lastOutput"`
	LastActivity time.Time  `json:"lastActivity"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`

	// PendingInstruction is delivered once, after the agent reports ready.
	PendingInstruction string `json:"pendingInstruction,omitempty"`
}

// Active reports whether the session still counts against capacity.
func (s Session) Active() bool {
	return s.Status != StatusCompleted
}

// LaunchRequest is the input to a session launch.
type LaunchRequest struct {
	ProjectName        string `json:"projectName"`
	Slug               string `json:"slug,omitempty"`
	RepoURL            string `json:"repoUrl,omitempty"`
	WorkingDirectory   string `json:"workingDirectory,omitempty"`
	ElevatedMode       bool   `json:"elevatedMode,omitempty"`
	InitialInstruction string `json:"initialInstruction,omitempty"`
	Color              string `json:"color,omitempty"`
}

// Project is one entry in the configured project catalogue.
type Project struct {
	Name             string `json:"name" yaml:"name" toml:"name"`
	Slug             string `json:"slug,omitempty" yaml:"slug" toml:"slug"`
	RepoURL          string `json:"repoUrl,omitempty" yaml:"repo_url" toml:"repo_url"`
	WorkingDirectory string `json:"workingDirectory,omitempty" yaml:"working_directory" toml:"working_directory"`
	Color            string `json:"color,omitempty" yaml:"color" toml:"color"`
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	windowSepRe  = regexp.MustCompile(`[.:\s]`)
)

// Slugify derives a slug from a project name: lowercased, with runs of
// whitespace collapsed to a single dash.
func Slugify(name string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// WindowName maps a slug to the host window name. Characters that tmux
// treats as target separators are replaced with dashes.
func WindowName(slug string) string {
	return windowSepRe.ReplaceAllString(WindowPrefix+slug, "-")
}

// Action is a key sequence that would unblock a waiting session.
type Action struct {
	// Keys are tmux key names (e.g., "Enter", "Down", "C-c").
	Keys []string `json:"keys"`
	// Label is a human-readable description of what this action does.
	Label string `json:"label"`
	// Risk is the risk level: "low", "medium", "high".
	Risk string `json:"risk"`
}

// TokenUsage tracks LLM token consumption for a single evaluation.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// LLMVerdict is the JSON structure returned by the LLM.
type LLMVerdict struct {
	Blocked     bool     `json:"blocked"`
	Reason      string   `json:"reason"`
	WaitingFor  string   `json:"waiting_for"`
	Actions     []Action `json:"actions,omitempty"`
	Recommended int      `json:"recommended"`
	Reasoning   string   `json:"reasoning"`

	// Usage is populated by the evaluator, not parsed from the LLM response.
	Usage TokenUsage `json:"-"`
}

// Assessment pairs a session's heuristic status with an LLM second opinion.
type Assessment struct {
	SessionID  string     `json:"session_id"`
	WindowName string     `json:"window_name"`
	Status     Status     `json:"status"`
	Verdict    LLMVerdict `json:"verdict"`
	Usage      TokenUsage `json:"usage"`
	Cached     bool       `json:"cached"`

	Model       string    `json:"model"`
	Provider    string    `json:"provider"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	DurationMs  int64     `json:"duration_ms"`
}
