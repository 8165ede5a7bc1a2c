package mux

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCaptureLines is used when Capture is asked for a non-positive count.
const DefaultCaptureLines = 100

// Runner executes one tmux command. stdin, when non-empty, is piped to the
// process. It returns stdout; on failure the error carries stderr.
type Runner func(ctx context.Context, stdin string, args ...string) (string, error)

// errHostExists is a new-session race: someone else created the host first.
var errHostExists = errors.New("host session already exists")

// Tmux implements Host for a single tmux session.
type Tmux struct {
	session string
	run     Runner
	sleep   func(time.Duration)

	// PasteSettle is the pause between pasting text and pressing Enter,
	// giving the agent's input box time to absorb a bracketed paste.
	PasteSettle time.Duration
}

// NewTmux creates a tmux adapter for the given host session name.
func NewTmux(session string) *Tmux {
	return &Tmux{
		session:     session,
		run:         execRunner,
		sleep:       time.Sleep,
		PasteSettle: 100 * time.Millisecond,
	}
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

// EnsureHost creates the host session (detached, first window "main") unless
// it already exists.
func (t *Tmux) EnsureHost(ctx context.Context) error {
	_, err := t.run(ctx, "", "has-session", "-t", "="+t.session)
	if err == nil {
		return nil
	}
	werr := wrapError(err)
	if !errors.Is(werr, ErrWindowNotFound) && !errors.Is(werr, ErrNoServer) {
		return &Error{Op: "has-session", Err: werr}
	}

	_, err = t.run(ctx, "", "new-session", "-d", "-s", t.session, "-n", "main")
	if err != nil {
		werr = wrapError(err)
		if errors.Is(werr, errHostExists) {
			return nil
		}
		return &Error{Op: "new-session", Err: werr}
	}
	return nil
}

// CreateWindow creates a detached window. The duplicate check consults the
// live window list so externally created windows are caught too.
func (t *Tmux) CreateWindow(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("window name is required")
	}
	names, err := t.ListWindows(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(names, name) {
		return fmt.Errorf("window %q: %w", name, ErrDuplicateWindow)
	}
	if _, err := t.run(ctx, "", "new-window", "-d", "-t", t.session+":", "-n", name); err != nil {
		return &Error{Op: "new-window", Err: wrapError(err)}
	}
	return nil
}

// SendText loads text into a private paste buffer, pastes it into the
// window with bracketed paste, then presses Enter. Nothing passes through a
// shell, so quotes, $ and backticks arrive verbatim.
func (t *Tmux) SendText(ctx context.Context, name, text string) error {
	target := t.target(name)

	if text != "" {
		buf := "cc-" + uuid.NewString()[:8]
		if _, err := t.run(ctx, text, "load-buffer", "-b", buf, "-"); err != nil {
			return &Error{Op: "load-buffer", Err: wrapError(err)}
		}
		if _, err := t.run(ctx, "", "paste-buffer", "-p", "-d", "-b", buf, "-t", target); err != nil {
			_, _ = t.run(ctx, "", "delete-buffer", "-b", buf)
			return &Error{Op: "paste-buffer", Err: wrapError(err)}
		}
		t.sleep(t.PasteSettle)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			t.sleep(200 * time.Millisecond)
		}
		if _, err := t.run(ctx, "", "send-keys", "-t", target, "Enter"); err != nil {
			lastErr = wrapError(err)
			if errors.Is(lastErr, ErrWindowNotFound) {
				break
			}
			continue
		}
		return nil
	}
	return &Error{Op: "send-keys", Err: lastErr}
}

// SendKeys sends raw key names to the window.
func (t *Tmux) SendKeys(ctx context.Context, name string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		if !IsKeyName(k) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k)
		}
	}
	args := append([]string{"send-keys", "-t", t.target(name)}, keys...)
	if _, err := t.run(ctx, "", args...); err != nil {
		return &Error{Op: "send-keys", Err: wrapError(err)}
	}
	return nil
}

// Capture returns the last lines of the window. Uses -p (stdout) and -J
// (joined, unwraps lines).
func (t *Tmux) Capture(ctx context.Context, name string, lines int) (string, error) {
	if lines <= 0 {
		lines = DefaultCaptureLines
	}
	out, err := t.run(ctx, "", "capture-pane", "-p", "-J", "-t", t.target(name), "-S", "-"+strconv.Itoa(lines))
	if err != nil {
		werr := wrapError(err)
		if errors.Is(werr, ErrWindowNotFound) || errors.Is(werr, ErrNoServer) {
			return "", nil
		}
		return "", &Error{Op: "capture-pane", Err: werr}
	}
	return out, nil
}

// ListWindows returns the window names of the host session.
func (t *Tmux) ListWindows(ctx context.Context) ([]string, error) {
	out, err := t.run(ctx, "", "list-windows", "-t", "="+t.session, "-F", "#{window_name}")
	if err != nil {
		return nil, &Error{Op: "list-windows", Err: wrapError(err)}
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names, nil
}

// KillWindow removes the window; a window that is already gone counts as
// success.
func (t *Tmux) KillWindow(ctx context.Context, name string) error {
	if _, err := t.run(ctx, "", "kill-window", "-t", t.target(name)); err != nil {
		werr := wrapError(err)
		if errors.Is(werr, ErrWindowNotFound) || errors.Is(werr, ErrNoServer) {
			return nil
		}
		return &Error{Op: "kill-window", Err: werr}
	}
	return nil
}

// target addresses a window by exact name within the host session, so a
// vanished "claude-demo" never prefix-matches "claude-demo2".
func (t *Tmux) target(name string) string {
	return t.session + ":=" + name
}

// execRunner executes a tmux command and returns its stdout.
func execRunner(ctx context.Context, stdin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

// wrapError maps tmux stderr text onto the package sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no server running"),
		strings.Contains(msg, "error connecting to"):
		return fmt.Errorf("%w: %w", ErrNoServer, err)
	case strings.Contains(msg, "duplicate session"):
		return fmt.Errorf("%w: %w", errHostExists, err)
	case strings.Contains(msg, "can't find window"),
		strings.Contains(msg, "can't find session"),
		strings.Contains(msg, "can't find pane"),
		strings.Contains(msg, "session not found"),
		strings.Contains(msg, "window not found"):
		return fmt.Errorf("%w: %w", ErrWindowNotFound, err)
	}
	return err
}
