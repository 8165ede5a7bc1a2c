package mux

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// runCall records a single invocation of the fake runner.
type runCall struct {
	stdin string
	args  []string
}

// fakeRunner answers tmux commands by subcommand name.
type fakeRunner struct {
	calls   []runCall
	outputs map[string]string
	errs    map[string]error
}

func (f *fakeRunner) run(_ context.Context, stdin string, args ...string) (string, error) {
	f.calls = append(f.calls, runCall{stdin: stdin, args: args})
	if err, ok := f.errs[args[0]]; ok {
		return "", err
	}
	return f.outputs[args[0]], nil
}

func (f *fakeRunner) subcommands() []string {
	var names []string
	for _, c := range f.calls {
		names = append(names, c.args[0])
	}
	return names
}

func newTestTmux(f *fakeRunner) *Tmux {
	return &Tmux{
		session: "cc",
		run:     f.run,
		sleep:   func(time.Duration) {},
	}
}

func tmuxFailure(stderr string) error {
	return fmt.Errorf("exit status 1: %s", stderr)
}

func TestEnsureHost_AlreadyRunning(t *testing.T) {
	f := &fakeRunner{}
	if err := newTestTmux(f).EnsureHost(context.Background()); err != nil {
		t.Fatalf("EnsureHost() error: %v", err)
	}
	if got := strings.Join(f.subcommands(), ","); got != "has-session" {
		t.Errorf("subcommands = %s, want has-session only", got)
	}
}

func TestEnsureHost_CreatesWhenMissing(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{
		"has-session": tmuxFailure("can't find session: cc"),
	}}
	if err := newTestTmux(f).EnsureHost(context.Background()); err != nil {
		t.Fatalf("EnsureHost() error: %v", err)
	}
	if len(f.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(f.calls))
	}
	want := "new-session -d -s cc -n main"
	if got := strings.Join(f.calls[1].args, " "); got != want {
		t.Errorf("call 2 = %q, want %q", got, want)
	}
}

func TestEnsureHost_NoServerStartsOne(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{
		"has-session": tmuxFailure("no server running on /tmp/tmux-1000/default"),
	}}
	if err := newTestTmux(f).EnsureHost(context.Background()); err != nil {
		t.Fatalf("EnsureHost() error: %v", err)
	}
}

func TestEnsureHost_CreateRaceIsSuccess(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{
		"has-session": tmuxFailure("can't find session: cc"),
		"new-session": tmuxFailure("duplicate session: cc"),
	}}
	if err := newTestTmux(f).EnsureHost(context.Background()); err != nil {
		t.Fatalf("EnsureHost() error: %v", err)
	}
}

func TestEnsureHost_Failure(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{
		"has-session": tmuxFailure("can't find session: cc"),
		"new-session": tmuxFailure("create window failed: fork failed"),
	}}
	err := newTestTmux(f).EnsureHost(context.Background())
	var adapterErr *Error
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if adapterErr.Op != "new-session" {
		t.Errorf("Op = %q, want new-session", adapterErr.Op)
	}
}

func TestCreateWindow_Duplicate(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{
		"list-windows": "main\nclaude-demo\n",
	}}
	err := newTestTmux(f).CreateWindow(context.Background(), "claude-demo")
	if !errors.Is(err, ErrDuplicateWindow) {
		t.Fatalf("expected ErrDuplicateWindow, got %v", err)
	}
	for _, c := range f.calls {
		if c.args[0] == "new-window" {
			t.Fatal("new-window must not run for a duplicate name")
		}
	}
}

func TestCreateWindow_Creates(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{"list-windows": "main\n"}}
	if err := newTestTmux(f).CreateWindow(context.Background(), "claude-demo"); err != nil {
		t.Fatalf("CreateWindow() error: %v", err)
	}
	want := "new-window -d -t cc: -n claude-demo"
	if got := strings.Join(f.calls[len(f.calls)-1].args, " "); got != want {
		t.Errorf("last call = %q, want %q", got, want)
	}
}

func TestSendText_PasteThenEnter(t *testing.T) {
	f := &fakeRunner{}
	text := `echo "$HOME" && ls ` + "`pwd`"
	if err := newTestTmux(f).SendText(context.Background(), "claude-demo", text); err != nil {
		t.Fatalf("SendText() error: %v", err)
	}

	if got := strings.Join(f.subcommands(), ","); got != "load-buffer,paste-buffer,send-keys" {
		t.Fatalf("subcommands = %s", got)
	}
	if f.calls[0].stdin != text {
		t.Errorf("load-buffer stdin = %q, want %q", f.calls[0].stdin, text)
	}
	buf := f.calls[0].args[2]
	paste := f.calls[1].args
	if paste[len(paste)-1] != "cc:=claude-demo" {
		t.Errorf("paste target = %q, want cc:=claude-demo", paste[len(paste)-1])
	}
	if !strings.Contains(strings.Join(paste, " "), "-b "+buf) {
		t.Errorf("paste-buffer %v does not use loaded buffer %q", paste, buf)
	}
	if last := f.calls[2].args; last[len(last)-1] != "Enter" {
		t.Errorf("final key = %q, want Enter", last[len(last)-1])
	}
}

func TestSendText_EmptyOnlyPressesEnter(t *testing.T) {
	f := &fakeRunner{}
	if err := newTestTmux(f).SendText(context.Background(), "claude-demo", ""); err != nil {
		t.Fatalf("SendText() error: %v", err)
	}
	if got := strings.Join(f.subcommands(), ","); got != "send-keys" {
		t.Errorf("subcommands = %s, want send-keys only", got)
	}
}

func TestSendText_PasteFailureDeletesBuffer(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{
		"paste-buffer": tmuxFailure("can't find window: claude-demo"),
	}}
	err := newTestTmux(f).SendText(context.Background(), "claude-demo", "hello")
	if !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
	if got := strings.Join(f.subcommands(), ","); got != "load-buffer,paste-buffer,delete-buffer" {
		t.Errorf("subcommands = %s", got)
	}
}

func TestSendKeys(t *testing.T) {
	f := &fakeRunner{}
	if err := newTestTmux(f).SendKeys(context.Background(), "claude-demo", "Down", "Enter"); err != nil {
		t.Fatalf("SendKeys() error: %v", err)
	}
	want := "send-keys -t cc:=claude-demo Down Enter"
	if got := strings.Join(f.calls[0].args, " "); got != want {
		t.Errorf("call = %q, want %q", got, want)
	}
}

func TestSendKeys_RejectsText(t *testing.T) {
	f := &fakeRunner{}
	err := newTestTmux(f).SendKeys(context.Background(), "claude-demo", "rm -rf /")
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("expected no tmux calls, got %d", len(f.calls))
	}
}

func TestCapture(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{"capture-pane": "line1\nline2\n"}}
	out, err := newTestTmux(f).Capture(context.Background(), "claude-demo", 50)
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if out != "line1\nline2\n" {
		t.Errorf("Capture() = %q", out)
	}
	want := "capture-pane -p -J -t cc:=claude-demo -S -50"
	if got := strings.Join(f.calls[0].args, " "); got != want {
		t.Errorf("call = %q, want %q", got, want)
	}
}

func TestCapture_DefaultLines(t *testing.T) {
	f := &fakeRunner{}
	if _, err := newTestTmux(f).Capture(context.Background(), "w", 0); err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if got := f.calls[0].args[len(f.calls[0].args)-1]; got != "-100" {
		t.Errorf("start line = %q, want -100", got)
	}
}

func TestCapture_MissingWindowIsEmpty(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{
		"capture-pane": tmuxFailure("can't find window: claude-demo"),
	}}
	out, err := newTestTmux(f).Capture(context.Background(), "claude-demo", 50)
	if err != nil {
		t.Fatalf("Capture() on missing window should not error, got %v", err)
	}
	if out != "" {
		t.Errorf("Capture() = %q, want empty", out)
	}
}

func TestCapture_OtherFailurePropagates(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{
		"capture-pane": tmuxFailure("server exited unexpectedly"),
	}}
	_, err := newTestTmux(f).Capture(context.Background(), "claude-demo", 50)
	var adapterErr *Error
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}

func TestListWindows(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{"list-windows": "main\nclaude-a\n\nclaude-b\n"}}
	names, err := newTestTmux(f).ListWindows(context.Background())
	if err != nil {
		t.Fatalf("ListWindows() error: %v", err)
	}
	if got := strings.Join(names, ","); got != "main,claude-a,claude-b" {
		t.Errorf("ListWindows() = %v", names)
	}
}

func TestListWindows_Failure(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{
		"list-windows": tmuxFailure("no server running on /tmp/tmux-1000/default"),
	}}
	_, err := newTestTmux(f).ListWindows(context.Background())
	if !errors.Is(err, ErrNoServer) {
		t.Fatalf("expected ErrNoServer, got %v", err)
	}
}

func TestKillWindow_MissingIsSuccess(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{
		"kill-window": tmuxFailure("can't find window: claude-demo"),
	}}
	if err := newTestTmux(f).KillWindow(context.Background(), "claude-demo"); err != nil {
		t.Fatalf("KillWindow() on missing window should succeed, got %v", err)
	}
}

func TestIsKeyName(t *testing.T) {
	tests := []struct {
		keys string
		want bool
	}{
		{"Enter", true},
		{"Escape", true},
		{"Down", true},
		{"BTab", true},
		{"C-c", true},
		{"M-x", true},
		{"y", true},
		{"1", true},
		{";", false},
		{" ", false},
		{"yes", false},
		{"echo hi", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.keys, func(t *testing.T) {
			if got := IsKeyName(tt.keys); got != tt.want {
				t.Errorf("IsKeyName(%q) = %v, want %v", tt.keys, got, tt.want)
			}
		})
	}
}
