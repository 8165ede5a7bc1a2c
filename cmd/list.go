package cmd

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timvw/command-center/internal/model"
	"github.com/timvw/command-center/internal/mux"
)

var (
	flagFilter string
	flagAll    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List agent windows in the host session",
	Long: `List the windows of the tmux host session.

Only agent windows (named with the claude- prefix) are shown unless --all is
given. Each line is a window name that can be passed to capture or check.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		host, err := getHost(cfg)
		if err != nil {
			return err
		}

		var filter *regexp.Regexp
		if flagFilter != "" {
			if filter, err = regexp.Compile(flagFilter); err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
		}

		windows, err := host.ListWindows(cmd.Context())
		if err != nil {
			if errors.Is(err, mux.ErrNoServer) {
				return fmt.Errorf("host session %s is not running", cfg.HostSession)
			}
			return fmt.Errorf("failed to list windows: %w", err)
		}
		for _, w := range windows {
			if !flagAll && !strings.HasPrefix(w, model.WindowPrefix) {
				continue
			}
			if filter != nil && !filter.MatchString(w) {
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), w)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&flagFilter, "filter", "", "regex pattern to filter by window name")
	listCmd.Flags().BoolVar(&flagAll, "all", false, "include windows that are not agent sessions")
	rootCmd.AddCommand(listCmd)
}
