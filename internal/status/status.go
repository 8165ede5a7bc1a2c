// Package status classifies a session's runtime state from the text its
// window last rendered.
//
// Everything here is a pure function of its inputs. The heuristics are
// regular expressions over the bottom of the capture and are best-effort by
// nature; they are kept in this package so they can be tuned and tested
// without touching the registry or monitor.
package status

import (
	"regexp"
	"strings"
	"time"

	"github.com/timvw/command-center/internal/model"
)

// DefaultIdleThreshold is how long a session may go without output changes
// before it is reported idle.
const DefaultIdleThreshold = 30 * time.Second

// tailLines is the number of lines from the bottom of the capture that the
// error and prompt patterns are matched against.
const tailLines = 10

var (
	errorRe   = regexp.MustCompile(`(?i)error:|exception:|traceback|failed|fatal`)
	confirmRe = regexp.MustCompile(`(?i)\(y/n\)|\(yes/no\)|\?\s*$|do you want|would you like|please confirm|enter .* to continue`)
	promptRe  = regexp.MustCompile(`(>|❯)\s*$`)
)

// Observation carries the session facts the classifier needs besides the
// captured text.
type Observation struct {
	// WindowPresent is whether the host still lists the session's window.
	WindowPresent bool
	// LastActivity is when the output last changed.
	LastActivity time.Time
	// IdleThreshold is the quiet period after which a session is idle.
	// Zero disables idle detection.
	IdleThreshold time.Duration
}

// Classify derives a status. The first matching rule wins:
//
//  1. window gone: completed
//  2. blank output: idle
//  3. error marker in the tail: error
//  4. confirmation question in the tail: waiting_for_input
//  5. trailing prompt glyph: waiting_for_input
//  6. quiet longer than the idle threshold: idle
//  7. otherwise: running
//
// Errors are checked before prompts because prompt detection is the noisier
// of the two.
func Classify(output string, obs Observation, now time.Time) model.Status {
	if !obs.WindowPresent {
		return model.StatusCompleted
	}

	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return model.StatusIdle
	}

	tail := strings.ToLower(Tail(trimmed, tailLines))
	if errorRe.MatchString(tail) {
		return model.StatusError
	}
	if confirmRe.MatchString(tail) {
		return model.StatusWaiting
	}
	if promptRe.MatchString(tail) {
		return model.StatusWaiting
	}

	if obs.IdleThreshold > 0 && !obs.LastActivity.IsZero() && now.Sub(obs.LastActivity) > obs.IdleThreshold {
		return model.StatusIdle
	}
	return model.StatusRunning
}

// Tail returns the last n lines of text, ignoring trailing blank lines.
func Tail(text string, n int) string {
	lines := strings.Split(text, "\n")
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	return strings.Join(lines[start:end], "\n")
}

// HasBypassPrompt reports whether the capture shows the agent's one-time
// elevated-mode confirmation dialog.
func HasBypassPrompt(output string) bool {
	return strings.Contains(output, "Bypass Permissions") || strings.Contains(output, "Yes, I accept")
}

// IsReady reports whether the agent is showing its input box and can take
// an instruction.
func IsReady(output string) bool {
	return strings.Contains(output, `Try "`) || strings.Contains(output, "❯") || strings.Contains(output, "> ")
}
