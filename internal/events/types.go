// Package events fans session notifications and live updates out to
// subscribers, and collects hook payloads that agents push over a local
// socket.
package events

import (
	"fmt"
	"strings"
	"time"
)

const (
	StateWaitingInput    = "waiting_input"
	StateWaitingApproval = "waiting_approval"
	StateRunning         = "running"
	StateCompleted       = "completed"
	StateError           = "error"
	StateIdle            = "idle"
)

// HookEvent is the normalized payload an agent hook sends to the collector.
// Target is the window name or the session id the hook runs under.
type HookEvent struct {
	Assistant string    `json:"assistant"`
	State     string    `json:"state"`
	Target    string    `json:"target"`
	TS        time.Time `json:"ts"`
	Message   string    `json:"message,omitempty"`
}

func (e HookEvent) Validate() error {
	if strings.TrimSpace(e.Assistant) == "" {
		return fmt.Errorf("assistant is required")
	}
	if !isValidState(e.State) {
		return fmt.Errorf("invalid state %q", e.State)
	}
	if !isValidTarget(e.Target) {
		return fmt.Errorf("invalid target %q", e.Target)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

func IsAttentionState(state string) bool {
	return state == StateWaitingInput || state == StateWaitingApproval
}

func isValidState(state string) bool {
	switch state {
	case StateWaitingInput, StateWaitingApproval, StateRunning, StateCompleted, StateError, StateIdle:
		return true
	default:
		return false
	}
}

// isValidTarget accepts a bare window name or session id: non-empty, no
// whitespace, and no tmux target separators.
func isValidTarget(target string) bool {
	if target == "" || strings.TrimSpace(target) != target {
		return false
	}
	return !strings.ContainsAny(target, " \t\n:.")
}
