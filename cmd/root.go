package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/timvw/command-center/internal/config"
	"github.com/timvw/command-center/internal/evaluator"
	"github.com/timvw/command-center/internal/mux"
)

var (
	// Global flags.
	flagConfig      string
	flagMux         string
	flagHostSession string
	flagServer      string
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "command-center",
	Short: "Launch and watch AI coding agent sessions in tmux",
	Long: `command-center runs AI coding agents in tmux windows and keeps an eye on them.

The serve command launches sessions on request, polls their panes, classifies
each one as running, waiting for input, idle, errored or completed, and pushes
notifications to connected clients over HTTP and WebSocket.

The launch and watch commands talk to a running server. The list, capture and
check commands read the tmux host directly.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .command-center.yaml or ~/.config/command-center/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagMux, "mux", "", "terminal multiplexer (default: from config, tmux)")
	rootCmd.PersistentFlags().StringVar(&flagHostSession, "host-session", "", "tmux session that hosts agent windows (default: from config)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", envOrDefault("COMMAND_CENTER_SERVER", ""), "server URL for client commands (default: derived from bind and port)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
}

// loadConfig resolves the config and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flagMux != "" {
		cfg.Mux = flagMux
	}
	if flagHostSession != "" {
		cfg.HostSession = flagHostSession
	}
	return cfg, nil
}

// newLogger builds the process logger at the configured level.
func newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "command-center",
	})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	if flagVerbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

// getHost returns the configured multiplexer host.
func getHost(cfg *config.Config) (mux.Host, error) {
	return mux.FromName(cfg.Mux, cfg.HostSession)
}

// serverURL is where client commands find the server.
func serverURL(cfg *config.Config) string {
	if flagServer != "" {
		return flagServer
	}
	host := cfg.Bind
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Port)
}

// getEvaluator returns the configured LLM evaluator.
func getEvaluator(cfg *config.Config) (evaluator.Evaluator, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicEvaluator(cfg)
	case "openai":
		return newOpenAIEvaluator(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: anthropic, openai)", cfg.Provider)
	}
}

// newAnthropicEvaluator creates an Anthropic evaluator. API key and Azure
// base URL fallbacks are already resolved by the config layer.
func newAnthropicEvaluator(cfg *config.Config) (evaluator.Evaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key found. Set COMMAND_CENTER_API_KEY, AZURE_OPENAI_API_KEY, or ANTHROPIC_API_KEY")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	return evaluator.NewAnthropicEvaluator(evaluator.AnthropicConfig{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Model:        model,
		MaxTokens:    cfg.MaxTokens,
		ExtraHeaders: azureHeaders(cfg),
	}), nil
}

// newOpenAIEvaluator creates an OpenAI evaluator.
func newOpenAIEvaluator(cfg *config.Config) (evaluator.Evaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key found. Set COMMAND_CENTER_API_KEY, AZURE_OPENAI_API_KEY, or OPENAI_API_KEY")
	}
	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "claude-") {
		model = "gpt-4o-mini"
	}
	return evaluator.NewOpenAIEvaluator(evaluator.OpenAIConfig{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Model:        model,
		MaxTokens:    cfg.MaxTokens,
		ExtraHeaders: azureHeaders(cfg),
	}), nil
}

// azureHeaders adds the "api-key" header Azure AI Foundry expects next to
// the SDK's own auth header.
func azureHeaders(cfg *config.Config) map[string]string {
	h := map[string]string{}
	if os.Getenv("AZURE_RESOURCE_NAME") != "" || config.IsAzureEndpoint(cfg.BaseURL) {
		h["api-key"] = cfg.APIKey
	}
	return h
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
