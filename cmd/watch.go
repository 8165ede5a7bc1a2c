package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/timvw/command-center/internal/client"
	"github.com/timvw/command-center/internal/dashboard"
)

var (
	flagTheme   string
	flagRefresh time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Interactive dashboard over a running server",
	Long: `Open a terminal dashboard connected to a running server.

Sessions update live over the WebSocket push channel. From the list you can
type input into a session, send Enter or Ctrl-C, kill a session and mark
notifications read.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c := client.New(serverURL(cfg))
		if _, err := c.Sessions(cmd.Context()); err != nil {
			return fmt.Errorf("server at %s: %w", serverURL(cfg), err)
		}

		tui := &dashboard.TUI{
			API:             c,
			RefreshInterval: flagRefresh,
			Theme:           dashboard.ThemeByName(flagTheme),
		}
		return tui.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().StringVar(&flagTheme, "theme", "dark", "color theme: dark, light")
	watchCmd.Flags().DurationVar(&flagRefresh, "refresh", 10*time.Second, "full refresh interval (0 disables)")
	rootCmd.AddCommand(watchCmd)
}
