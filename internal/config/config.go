// Package config loads command-center configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (COMMAND_CENTER_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. the path passed to Load (--config flag or COMMAND_CENTER_CONFIG)
//  2. .command-center.yaml or .command-center.toml in the current directory
//  3. ~/.config/command-center/config.yaml or config.toml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/timvw/command-center/internal/events"
	"github.com/timvw/command-center/internal/model"
)

// Notifications holds the per-type enable flags. A flag left out of the
// file stays enabled.
type Notifications struct {
	Launched        *bool `yaml:"launched" toml:"launched"`
	WaitingForInput *bool `yaml:"waiting_for_input" toml:"waiting_for_input"`
	Errors          *bool `yaml:"errors" toml:"errors"`
	Completion      *bool `yaml:"completion" toml:"completion"`
}

// Toggles resolves the flags, defaulting each to enabled.
func (n Notifications) Toggles() events.Toggles {
	on := func(b *bool) bool { return b == nil || *b }
	return events.Toggles{
		Launched:        on(n.Launched),
		WaitingForInput: on(n.WaitingForInput),
		Errors:          on(n.Errors),
		Completion:      on(n.Completion),
	}
}

// Config holds all command-center configuration.
type Config struct {
	// HTTP surface
	Bind      string `yaml:"bind" toml:"bind"`
	Port      int    `yaml:"port" toml:"port"`
	StaticDir string `yaml:"static_dir" toml:"static_dir"`

	// Host multiplexer
	Mux         string `yaml:"mux" toml:"mux"`
	HostSession string `yaml:"host_session" toml:"host_session"`

	// Sessions
	MaxSessions        int    `yaml:"max_sessions" toml:"max_sessions"`
	PollInterval       string `yaml:"poll_interval" toml:"poll_interval"`             // Go duration string, e.g. "2s"
	IdleThreshold      string `yaml:"idle_threshold" toml:"idle_threshold"`           // "off" disables idle detection
	CompletedRetention string `yaml:"completed_retention" toml:"completed_retention"` // "0" keeps completed sessions
	CaptureLines       int    `yaml:"capture_lines" toml:"capture_lines"`
	ProjectRoot        string `yaml:"project_root" toml:"project_root"`
	AgentCommand       string `yaml:"agent_command" toml:"agent_command"`
	ElevatedArgs       string `yaml:"elevated_args" toml:"elevated_args"`

	// Fan-out
	HistorySize   int           `yaml:"history_size" toml:"history_size"`
	Notifications Notifications `yaml:"notifications" toml:"notifications"`

	// Project catalogue offered to clients
	Projects []model.Project `yaml:"projects" toml:"projects"`

	// Hook collector
	Hooks       bool   `yaml:"hooks" toml:"hooks"`
	EventSocket string `yaml:"event_socket" toml:"event_socket"`

	// LLM second opinion
	Evaluator         bool   `yaml:"evaluator" toml:"evaluator"`
	Provider          string `yaml:"provider" toml:"provider"`
	Model             string `yaml:"model" toml:"model"`
	BaseURL           string `yaml:"base_url" toml:"base_url"`
	APIKey            string `yaml:"api_key" toml:"api_key"`
	MaxTokens         int64  `yaml:"max_tokens" toml:"max_tokens"`
	EvaluatorCacheTTL string `yaml:"evaluator_cache_ttl" toml:"evaluator_cache_ttl"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint" toml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers" toml:"otel_headers"` // Comma-separated key=value pairs

	LogLevel string `yaml:"log_level" toml:"log_level"`

	// Parsed durations (not from file, set after loading)
	PollIntervalDuration       time.Duration `yaml:"-" toml:"-"`
	IdleThresholdDuration      time.Duration `yaml:"-" toml:"-"`
	CompletedRetentionDuration time.Duration `yaml:"-" toml:"-"`
	CacheTTLDuration           time.Duration `yaml:"-" toml:"-"`

	// OTLP is the parsed telemetry target (set after loading).
	OTLP OTLP `yaml:"-" toml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-" toml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Bind:               "127.0.0.1",
		Port:               3000,
		Mux:                "tmux",
		HostSession:        "command-center",
		MaxSessions:        10,
		PollInterval:       "2s",
		IdleThreshold:      "30s",
		CompletedRetention: "0",
		CaptureLines:       100,
		AgentCommand:       "claude",
		ElevatedArgs:       "--dangerously-skip-permissions",
		HistorySize:        events.DefaultHistorySize,
		Provider:           "anthropic",
		Model:              "claude-sonnet-4-5",
		MaxTokens:          4096,
		EvaluatorCacheTTL:  "5m",
		LogLevel:           "info",
	}
}

// Load reads configuration from file and environment variables.
// path may be empty to search the default locations.
// Environment variables always override file values.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("COMMAND_CENTER_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := applyFile(cfg, path, data); err != nil {
			return nil, err
		}
	} else if found, data, err := findConfigFile(); err == nil {
		if err := applyFile(cfg, found, data); err != nil {
			return nil, err
		}
	}

	// Environment variables override everything
	mergeEnv(cfg)

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.parseOTLP(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string, data []byte) error {
	var fileCfg Config
	if err := decode(path, data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.ConfigFile = path
	mergeFile(cfg, &fileCfg)
	return nil
}

// decode picks the format from the file extension. Anything that is not
// .toml is read as YAML.
func decode(path string, data []byte, v *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

func (c *Config) parseDurations() error {
	var err error
	c.PollIntervalDuration, err = parseDurationOrDisable(c.PollInterval, 2*time.Second)
	if err != nil {
		return fmt.Errorf("invalid poll interval %q: %w", c.PollInterval, err)
	}
	if c.PollIntervalDuration <= 0 {
		return fmt.Errorf("invalid poll interval %q: must be positive", c.PollInterval)
	}
	c.IdleThresholdDuration, err = parseDurationOrDisable(c.IdleThreshold, 30*time.Second)
	if err != nil {
		return fmt.Errorf("invalid idle threshold %q: %w", c.IdleThreshold, err)
	}
	c.CompletedRetentionDuration, err = parseDurationOrDisable(c.CompletedRetention, 0)
	if err != nil {
		return fmt.Errorf("invalid completed retention %q: %w", c.CompletedRetention, err)
	}
	c.CacheTTLDuration, err = parseDurationOrDisable(c.EvaluatorCacheTTL, 5*time.Minute)
	if err != nil {
		return fmt.Errorf("invalid evaluator cache TTL %q: %w", c.EvaluatorCacheTTL, err)
	}
	return nil
}

// Addr is the listen address of the HTTP surface.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	candidates := []string{".command-center.yaml", ".command-center.yml", ".command-center.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "command-center")
		candidates = append(candidates,
			filepath.Join(dir, "config.yaml"),
			filepath.Join(dir, "config.toml"),
		)
	}
	for _, path := range candidates {
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}
	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	setString(&cfg.Bind, file.Bind)
	setInt(&cfg.Port, file.Port)
	setString(&cfg.StaticDir, file.StaticDir)
	setString(&cfg.Mux, file.Mux)
	setString(&cfg.HostSession, file.HostSession)
	setInt(&cfg.MaxSessions, file.MaxSessions)
	setString(&cfg.PollInterval, file.PollInterval)
	setString(&cfg.IdleThreshold, file.IdleThreshold)
	setString(&cfg.CompletedRetention, file.CompletedRetention)
	setInt(&cfg.CaptureLines, file.CaptureLines)
	setString(&cfg.ProjectRoot, file.ProjectRoot)
	setString(&cfg.AgentCommand, file.AgentCommand)
	setString(&cfg.ElevatedArgs, file.ElevatedArgs)
	setInt(&cfg.HistorySize, file.HistorySize)
	if file.Notifications.Launched != nil {
		cfg.Notifications.Launched = file.Notifications.Launched
	}
	if file.Notifications.WaitingForInput != nil {
		cfg.Notifications.WaitingForInput = file.Notifications.WaitingForInput
	}
	if file.Notifications.Errors != nil {
		cfg.Notifications.Errors = file.Notifications.Errors
	}
	if file.Notifications.Completion != nil {
		cfg.Notifications.Completion = file.Notifications.Completion
	}
	if len(file.Projects) > 0 {
		cfg.Projects = file.Projects
	}
	if file.Hooks {
		cfg.Hooks = true
	}
	setString(&cfg.EventSocket, file.EventSocket)
	if file.Evaluator {
		cfg.Evaluator = true
	}
	setString(&cfg.Provider, file.Provider)
	setString(&cfg.Model, file.Model)
	setString(&cfg.BaseURL, file.BaseURL)
	setString(&cfg.APIKey, file.APIKey)
	if file.MaxTokens > 0 {
		cfg.MaxTokens = file.MaxTokens
	}
	setString(&cfg.EvaluatorCacheTTL, file.EvaluatorCacheTTL)
	setString(&cfg.OTELEndpoint, file.OTELEndpoint)
	setString(&cfg.OTELHeaders, file.OTELHeaders)
	setString(&cfg.LogLevel, file.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	envString := func(dst *string, key string) {
		if v := os.Getenv("COMMAND_CENTER_" + key); v != "" {
			*dst = v
		}
	}
	envInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(os.Getenv("COMMAND_CENTER_" + key)); err == nil && v > 0 {
			*dst = v
		}
	}
	envBool := func(key string) (bool, bool) {
		switch strings.ToLower(os.Getenv("COMMAND_CENTER_" + key)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
		return false, false
	}

	envString(&cfg.Bind, "BIND")
	envInt(&cfg.Port, "PORT")
	envString(&cfg.StaticDir, "STATIC_DIR")
	envString(&cfg.Mux, "MUX")
	envString(&cfg.HostSession, "HOST_SESSION")
	envInt(&cfg.MaxSessions, "MAX_SESSIONS")
	envString(&cfg.PollInterval, "POLL_INTERVAL")
	envString(&cfg.IdleThreshold, "IDLE_THRESHOLD")
	envString(&cfg.CompletedRetention, "COMPLETED_RETENTION")
	envInt(&cfg.CaptureLines, "CAPTURE_LINES")
	envString(&cfg.ProjectRoot, "PROJECT_ROOT")
	envString(&cfg.AgentCommand, "AGENT_COMMAND")
	envString(&cfg.ElevatedArgs, "ELEVATED_ARGS")
	envInt(&cfg.HistorySize, "HISTORY_SIZE")
	envString(&cfg.EventSocket, "EVENT_SOCKET")
	envString(&cfg.Provider, "PROVIDER")
	envString(&cfg.Model, "MODEL")
	envString(&cfg.BaseURL, "BASE_URL")
	envString(&cfg.APIKey, "API_KEY")
	envString(&cfg.EvaluatorCacheTTL, "EVALUATOR_CACHE_TTL")
	envString(&cfg.LogLevel, "LOG_LEVEL")
	if v, err := strconv.ParseInt(os.Getenv("COMMAND_CENTER_MAX_TOKENS"), 10, 64); err == nil && v > 0 {
		cfg.MaxTokens = v
	}
	if v, ok := envBool("HOOKS"); ok {
		cfg.Hooks = v
	}
	if v, ok := envBool("EVALUATOR"); ok {
		cfg.Evaluator = v
	}
	for key, dst := range map[string]**bool{
		"NOTIFY_LAUNCHED":          &cfg.Notifications.Launched,
		"NOTIFY_WAITING_FOR_INPUT": &cfg.Notifications.WaitingForInput,
		"NOTIFY_ERRORS":            &cfg.Notifications.Errors,
		"NOTIFY_COMPLETION":        &cfg.Notifications.Completion,
	} {
		if v, ok := envBool(key); ok {
			*dst = &v
		}
	}

	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}

	// API key fallbacks
	if cfg.APIKey == "" {
		if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
			cfg.APIKey = v
		}
	}
	if cfg.APIKey == "" {
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			cfg.APIKey = v
		}
	}
	if cfg.APIKey == "" {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.APIKey = v
		}
	}

	// Azure base URL fallback
	if cfg.BaseURL == "" {
		if rn := os.Getenv("AZURE_RESOURCE_NAME"); rn != "" {
			switch cfg.Provider {
			case "anthropic":
				cfg.BaseURL = fmt.Sprintf("https://%s.services.ai.azure.com/anthropic/", rn)
			case "openai":
				cfg.BaseURL = fmt.Sprintf("https://%s.openai.azure.com/openai/v1", rn)
			}
		}
	}
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// IsAzureEndpoint returns true if the URL is an Azure endpoint.
func IsAzureEndpoint(url string) bool {
	return strings.Contains(url, ".azure.com") || strings.Contains(url, ".azure.us")
}

// Settings is the client-visible view of the configuration. It never
// carries credentials.
type Settings struct {
	Port               int            `json:"port"`
	HostSession        string         `json:"hostSession"`
	MaxSessions        int            `json:"maxSessions"`
	PollInterval       int64          `json:"pollInterval"`
	IdleThreshold      int64          `json:"idleThreshold"`
	CompletedRetention int64          `json:"completedRetention"`
	Notifications      events.Toggles `json:"notifications"`
	Evaluator          bool           `json:"evaluator"`
	Provider           string         `json:"provider,omitempty"`
	Model              string         `json:"model,omitempty"`
	Hooks              bool           `json:"hooks"`
}

// Settings returns the sanitized view. Durations are in milliseconds.
func (c *Config) Settings() Settings {
	s := Settings{
		Port:               c.Port,
		HostSession:        c.HostSession,
		MaxSessions:        c.MaxSessions,
		PollInterval:       c.PollIntervalDuration.Milliseconds(),
		IdleThreshold:      c.IdleThresholdDuration.Milliseconds(),
		CompletedRetention: c.CompletedRetentionDuration.Milliseconds(),
		Notifications:      c.Notifications.Toggles(),
		Evaluator:          c.Evaluator,
		Hooks:              c.Hooks,
	}
	if c.Evaluator {
		s.Provider = c.Provider
		s.Model = c.Model
	}
	return s
}
