package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/timvw/command-center/internal/evaluator"
	"github.com/timvw/command-center/internal/model"
	"github.com/timvw/command-center/internal/mux"
	"github.com/timvw/command-center/internal/status"
)

var flagLLM bool

// checkResult is printed by the check command.
type checkResult struct {
	Window       string            `json:"window"`
	Status       model.Status      `json:"status"`
	BypassPrompt bool              `json:"bypass_prompt"`
	Ready        bool              `json:"ready"`
	Assessment   *model.Assessment `json:"assessment,omitempty"`
	Content      string            `json:"content,omitempty"`
	CheckedAt    time.Time         `json:"checked_at"`
}

var checkCmd = &cobra.Command{
	Use:   "check <window>",
	Short: "Classify the status of one agent window",
	Long: `Capture a window in the host session and classify it with the same
rules the server's monitor uses. With --llm, also ask the configured LLM
whether the agent is blocked and which keys would unblock it.

Idle detection needs activity history and is not applied here.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		window := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		host, err := getHost(cfg)
		if err != nil {
			return err
		}

		windows, err := host.ListWindows(cmd.Context())
		if err != nil && !errors.Is(err, mux.ErrNoServer) {
			return fmt.Errorf("failed to list windows: %w", err)
		}
		present := slices.Contains(windows, window)

		var content string
		if present {
			content, err = host.Capture(cmd.Context(), window, cfg.CaptureLines)
			if err != nil {
				return fmt.Errorf("failed to capture window %q: %w", window, err)
			}
		}

		now := time.Now().UTC()
		res := checkResult{
			Window:       window,
			Status:       status.Classify(content, status.Observation{WindowPresent: present}, now),
			BypassPrompt: status.HasBypassPrompt(content),
			Ready:        status.IsReady(content),
			CheckedAt:    now,
		}

		if flagLLM && present {
			eval, err := getEvaluator(cfg)
			if err != nil {
				return err
			}
			a := &evaluator.Assessor{Evaluator: eval}
			res.Assessment, err = a.Assess(cmd.Context(), model.Session{WindowName: window, Status: res.Status}, content)
			if err != nil {
				return fmt.Errorf("evaluation failed for %q: %w", window, err)
			}
		}

		if flagVerbose {
			res.Content = content
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	checkCmd.Flags().BoolVar(&flagLLM, "llm", false, "also ask the configured LLM for a second opinion")
	rootCmd.AddCommand(checkCmd)
}
