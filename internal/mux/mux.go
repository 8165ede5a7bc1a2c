// Package mux is the pane capture adapter: a thin wrapper that issues window
// operations against the terminal multiplexer and returns their text output.
//
// The adapter holds no session state and never interprets pane content.
// Classification lives in the status package.
package mux

import (
	"context"
	"errors"
	"fmt"
)

// Host abstracts the multiplexer host session that owns one window per
// orchestrated agent session.
type Host interface {
	// Name returns the multiplexer name (e.g., "tmux").
	Name() string

	// EnsureHost creates the shared host session if it does not exist.
	EnsureHost(ctx context.Context) error

	// CreateWindow creates a named window under the host. It fails with
	// ErrDuplicateWindow if the multiplexer already lists that name.
	CreateWindow(ctx context.Context, name string) error

	// SendText pastes literal text into the window and presses Enter.
	// The text is never interpreted by a shell on the way in.
	SendText(ctx context.Context, name, text string) error

	// SendKeys delivers raw named key events (e.g., "Down", "Enter").
	SendKeys(ctx context.Context, name string, keys ...string) error

	// Capture returns the last lines of rendered pane content. A window
	// that no longer exists yields "" and a nil error.
	Capture(ctx context.Context, name string, lines int) (string, error)

	// ListWindows returns the names of all windows under the host.
	ListWindows(ctx context.Context) ([]string, error)

	// KillWindow removes a window. A missing window is not an error.
	KillWindow(ctx context.Context, name string) error
}

var (
	// ErrDuplicateWindow is returned by CreateWindow when the name is taken.
	ErrDuplicateWindow = errors.New("window already exists")
	// ErrNoServer means the multiplexer server is not running.
	ErrNoServer = errors.New("no multiplexer server running")
	// ErrWindowNotFound means the target window (or host) is gone.
	ErrWindowNotFound = errors.New("window not found")
	// ErrInvalidKey is returned by SendKeys for anything that is not a key name.
	ErrInvalidKey = errors.New("invalid key name")
)

// Error wraps a failed multiplexer command with the operation that issued it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tmux %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKeyName reports whether keys is a tmux key name rather than literal text.
// Raw key delivery only accepts key names so text never bypasses the paste
// path.
func IsKeyName(keys string) bool {
	switch keys {
	case "Enter", "Escape", "Up", "Down", "Left", "Right",
		"Tab", "BTab", "Space", "BSpace", "DC", "Home", "End",
		"PageUp", "PageDown", "PPage", "NPage":
		return true
	}
	// C-x patterns (Ctrl+key)
	if len(keys) == 3 && keys[0] == 'C' && keys[1] == '-' {
		return true
	}
	// M-x patterns (Meta/Alt+key)
	if len(keys) == 3 && keys[0] == 'M' && keys[1] == '-' {
		return true
	}
	// Single printable characters are menu selections ("y", "1").
	// A lone ";" would be parsed by tmux as a command separator.
	if len(keys) == 1 && keys[0] > ' ' && keys[0] < 0x7f && keys[0] != ';' {
		return true
	}
	return false
}
