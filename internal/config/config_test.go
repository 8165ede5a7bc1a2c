package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"COMMAND_CENTER_CONFIG", "COMMAND_CENTER_BIND", "COMMAND_CENTER_PORT",
		"COMMAND_CENTER_STATIC_DIR", "COMMAND_CENTER_MUX", "COMMAND_CENTER_HOST_SESSION",
		"COMMAND_CENTER_MAX_SESSIONS", "COMMAND_CENTER_POLL_INTERVAL",
		"COMMAND_CENTER_IDLE_THRESHOLD", "COMMAND_CENTER_COMPLETED_RETENTION",
		"COMMAND_CENTER_CAPTURE_LINES", "COMMAND_CENTER_PROJECT_ROOT",
		"COMMAND_CENTER_AGENT_COMMAND", "COMMAND_CENTER_ELEVATED_ARGS",
		"COMMAND_CENTER_HISTORY_SIZE", "COMMAND_CENTER_EVENT_SOCKET",
		"COMMAND_CENTER_PROVIDER", "COMMAND_CENTER_MODEL", "COMMAND_CENTER_BASE_URL",
		"COMMAND_CENTER_API_KEY", "COMMAND_CENTER_EVALUATOR_CACHE_TTL",
		"COMMAND_CENTER_LOG_LEVEL", "COMMAND_CENTER_MAX_TOKENS", "COMMAND_CENTER_HOOKS",
		"COMMAND_CENTER_EVALUATOR", "COMMAND_CENTER_NOTIFY_LAUNCHED",
		"COMMAND_CENTER_NOTIFY_WAITING_FOR_INPUT", "COMMAND_CENTER_NOTIFY_ERRORS",
		"COMMAND_CENTER_NOTIFY_COMPLETION",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS",
		"AZURE_OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY",
		"AZURE_RESOURCE_NAME",
	} {
		t.Setenv(key, "")
	}
	// Keep the user's ~/.config out of the search path.
	t.Setenv("HOME", t.TempDir())
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Port != 3000 {
		t.Errorf("Port: got %d, want %d", cfg.Port, 3000)
	}
	if cfg.HostSession != "command-center" {
		t.Errorf("HostSession: got %q, want %q", cfg.HostSession, "command-center")
	}
	if cfg.MaxSessions != 10 {
		t.Errorf("MaxSessions: got %d, want %d", cfg.MaxSessions, 10)
	}
	if cfg.PollInterval != "2s" {
		t.Errorf("PollInterval: got %q, want %q", cfg.PollInterval, "2s")
	}
	if cfg.IdleThreshold != "30s" {
		t.Errorf("IdleThreshold: got %q, want %q", cfg.IdleThreshold, "30s")
	}
	if cfg.HistorySize != 50 {
		t.Errorf("HistorySize: got %d, want %d", cfg.HistorySize, 50)
	}
	toggles := cfg.Notifications.Toggles()
	if !toggles.Launched || !toggles.WaitingForInput || !toggles.Errors || !toggles.Completion {
		t.Errorf("Notifications: got %+v, want all enabled", toggles)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile: got %q, want empty", cfg.ConfigFile)
	}
	if cfg.PollIntervalDuration != 2*time.Second {
		t.Errorf("PollIntervalDuration: got %v, want 2s", cfg.PollIntervalDuration)
	}
	if cfg.IdleThresholdDuration != 30*time.Second {
		t.Errorf("IdleThresholdDuration: got %v, want 30s", cfg.IdleThresholdDuration)
	}
	if cfg.CompletedRetentionDuration != 0 {
		t.Errorf("CompletedRetentionDuration: got %v, want 0", cfg.CompletedRetentionDuration)
	}
}

func TestIsAzureEndpoint(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://myresource.openai.azure.com/openai/v1", true},
		{"https://myresource.services.ai.azure.com/anthropic/", true},
		{"https://gov.openai.azure.us/", true},
		{"https://api.openai.com/v1", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := IsAzureEndpoint(tt.url); got != tt.want {
				t.Errorf("IsAzureEndpoint(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestParseDurationOrDisable(t *testing.T) {
	tests := []struct {
		input    string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{"", 5 * time.Second, 5 * time.Second, false},
		{"0", 5 * time.Second, 0, false},
		{"off", 5 * time.Second, 0, false},
		{"disable", 5 * time.Second, 0, false},
		{"500ms", time.Second, 500 * time.Millisecond, false},
		{"1m", time.Second, time.Minute, false},
		{"soon", time.Second, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDurationOrDisable(tt.input, tt.fallback)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDurationOrDisable(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseDurationOrDisable(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := `port: 4100
host_session: agents
max_sessions: 3
poll_interval: 500ms
idle_threshold: "off"
completed_retention: 10m
project_root: /src
notifications:
  launched: false
  errors: true
projects:
  - name: Demo
    slug: demo
    repo_url: https://example.com/demo.git
  - name: Portal
hooks: true
`
	if err := os.WriteFile(filepath.Join(dir, ".command-center.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.ConfigFile != ".command-center.yaml" {
		t.Errorf("ConfigFile: got %q", cfg.ConfigFile)
	}
	if cfg.Port != 4100 {
		t.Errorf("Port: got %d, want %d", cfg.Port, 4100)
	}
	if cfg.HostSession != "agents" {
		t.Errorf("HostSession: got %q, want %q", cfg.HostSession, "agents")
	}
	if cfg.MaxSessions != 3 {
		t.Errorf("MaxSessions: got %d, want %d", cfg.MaxSessions, 3)
	}
	if cfg.PollIntervalDuration != 500*time.Millisecond {
		t.Errorf("PollIntervalDuration: got %v, want 500ms", cfg.PollIntervalDuration)
	}
	if cfg.IdleThresholdDuration != 0 {
		t.Errorf("IdleThresholdDuration: got %v, want 0 (disabled)", cfg.IdleThresholdDuration)
	}
	if cfg.CompletedRetentionDuration != 10*time.Minute {
		t.Errorf("CompletedRetentionDuration: got %v, want 10m", cfg.CompletedRetentionDuration)
	}
	if !cfg.Hooks {
		t.Error("Hooks: got false, want true")
	}
	toggles := cfg.Notifications.Toggles()
	if toggles.Launched {
		t.Error("Notifications.Launched: got true, want false from file")
	}
	if !toggles.Errors || !toggles.Completion || !toggles.WaitingForInput {
		t.Errorf("Notifications: got %+v, want unspecified flags enabled", toggles)
	}
	if len(cfg.Projects) != 2 {
		t.Fatalf("Projects: got %d entries, want 2", len(cfg.Projects))
	}
	if cfg.Projects[0].Slug != "demo" || cfg.Projects[0].RepoURL != "https://example.com/demo.git" {
		t.Errorf("Projects[0]: got %+v", cfg.Projects[0])
	}
}

func TestLoadFromTOMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "cc.toml")
	content := `port = 5000
agent_command = "claude-dev"
evaluator = true
provider = "openai"
model = "gpt-4o-mini"

[notifications]
completion = false

[[projects]]
name = "Demo"
working_directory = "/work/demo"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}
	if cfg.Port != 5000 {
		t.Errorf("Port: got %d, want %d", cfg.Port, 5000)
	}
	if cfg.AgentCommand != "claude-dev" {
		t.Errorf("AgentCommand: got %q", cfg.AgentCommand)
	}
	if !cfg.Evaluator || cfg.Provider != "openai" || cfg.Model != "gpt-4o-mini" {
		t.Errorf("evaluator settings: got %v/%q/%q", cfg.Evaluator, cfg.Provider, cfg.Model)
	}
	if cfg.Notifications.Toggles().Completion {
		t.Error("Notifications.Completion: got true, want false from file")
	}
	if len(cfg.Projects) != 1 || cfg.Projects[0].WorkingDirectory != "/work/demo" {
		t.Errorf("Projects: got %+v", cfg.Projects)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() of a missing explicit path should fail")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMMAND_CENTER_POLL_INTERVAL", "fast")
	chdir(t, t.TempDir())
	if _, err := Load(""); err == nil {
		t.Fatal("Load() with an invalid poll interval should fail")
	}

	t.Setenv("COMMAND_CENTER_POLL_INTERVAL", "off")
	if _, err := Load(""); err == nil {
		t.Fatal("Load() with a disabled poll interval should fail")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := `port: 4100
max_sessions: 3
api_key: file-key
`
	if err := os.WriteFile(filepath.Join(dir, ".command-center.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	t.Setenv("COMMAND_CENTER_PORT", "9000")
	t.Setenv("COMMAND_CENTER_MAX_SESSIONS", "7")
	t.Setenv("COMMAND_CENTER_API_KEY", "env-key")
	t.Setenv("COMMAND_CENTER_NOTIFY_ERRORS", "off")
	t.Setenv("COMMAND_CENTER_HOOKS", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port: got %d, want %d (env should override file)", cfg.Port, 9000)
	}
	if cfg.MaxSessions != 7 {
		t.Errorf("MaxSessions: got %d, want %d (env should override file)", cfg.MaxSessions, 7)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey: got %q, want %q (env should override file)", cfg.APIKey, "env-key")
	}
	if cfg.Notifications.Toggles().Errors {
		t.Error("Notifications.Errors: got true, want false from env")
	}
	if !cfg.Hooks {
		t.Error("Hooks: got false, want true from env")
	}
}

func TestAPIKeyAndAzureFallbacks(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("AZURE_RESOURCE_NAME", "myres")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIKey != "sk-ant" {
		t.Errorf("APIKey: got %q, want %q", cfg.APIKey, "sk-ant")
	}
	if want := "https://myres.services.ai.azure.com/anthropic/"; cfg.BaseURL != want {
		t.Errorf("BaseURL: got %q, want %q", cfg.BaseURL, want)
	}
}

func TestSettings_NoSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.APIKey = "secret"
	cfg.PollIntervalDuration = 2 * time.Second
	cfg.IdleThresholdDuration = 30 * time.Second

	s := cfg.Settings()
	if s.PollInterval != 2000 || s.IdleThreshold != 30000 {
		t.Errorf("durations: got %d/%d, want 2000/30000", s.PollInterval, s.IdleThreshold)
	}
	if s.Provider != "" || s.Model != "" {
		t.Errorf("evaluator fields exposed while disabled: %q/%q", s.Provider, s.Model)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("max_sessions: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, log.New(io.Discard), func(c *Config) { reloaded <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("max_sessions: 6\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.MaxSessions != 6 {
			t.Errorf("reloaded MaxSessions: got %d, want 6", cfg.MaxSessions)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after writing the config file")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_RequiresPath(t *testing.T) {
	if err := Watch(context.Background(), "", nil, func(*Config) {}); err == nil {
		t.Fatal("Watch(\"\") should fail")
	}
}
