package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Demo", "demo"},
		{"My Project", "my-project"},
		{"  Padded   Name  ", "padded-name"},
		{"tabs\tand\nnewlines", "tabs-and-newlines"},
		{"already-slugged", "already-slugged"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestWindowName(t *testing.T) {
	tests := []struct {
		slug string
		want string
	}{
		{"demo", "claude-demo"},
		{"v1.2", "claude-v1-2"},
		{"host:port", "claude-host-port"},
		{"with space", "claude-with-space"},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			if got := WindowName(tt.slug); got != tt.want {
				t.Errorf("WindowName(%q) = %q, want %q", tt.slug, got, tt.want)
			}
		})
	}
}

func TestSession_Active(t *testing.T) {
	for _, st := range []Status{StatusRunning, StatusWaiting, StatusIdle, StatusError} {
		if !(Session{Status: st}).Active() {
			t.Errorf("status %q should count as active", st)
		}
	}
	if (Session{Status: StatusCompleted}).Active() {
		t.Error("completed session should not count as active")
	}
}

func TestSession_JSONFieldNames(t *testing.T) {
	s := Session{
		ID:             "session-1",
		WindowName:     "claude-demo",
		ProjectName:    "Demo",
		ElevatedMode:   true,
		BypassAccepted: false,
		Status:         StatusRunning,
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	for _, want := range []string{`"windowName":"claude-demo"`, `"elevatedMode":true`, `"bypassAccepted":false`, `"status":"running"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON output missing %s, got: %s", want, string(data))
		}
	}
	if strings.Contains(string(data), "completedAt") {
		t.Errorf("completedAt should be omitted while running, got: %s", string(data))
	}
}

func TestLLMVerdict_RecommendedZeroInJSON(t *testing.T) {
	// Recommended=0 is a valid index (first action). It must appear in JSON
	// output, not be omitted by omitempty.
	v := LLMVerdict{
		Blocked: true,
		Reason:  "permission dialog",
		Actions: []Action{
			{Keys: []string{"Enter"}, Label: "approve", Risk: "medium"},
			{Keys: []string{"Escape"}, Label: "reject", Risk: "low"},
		},
		Recommended: 0,
	}

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	if !strings.Contains(string(data), `"recommended":0`) {
		t.Errorf("JSON output missing \"recommended\":0, got: %s", string(data))
	}
}
