package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timvw/command-center/internal/mux"
)

var flagLines int

var captureCmd = &cobra.Command{
	Use:   "capture <window>",
	Short: "Print the recent output of an agent window",
	Long: `Capture the last lines of a window in the host session and print them
to stdout. No interpretation of the content.`,
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

		content, err := host.Capture(cmd.Context(), window, flagLines)
		if err != nil {
			return fmt.Errorf("failed to capture window %q: %w", window, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	},
}

func init() {
	captureCmd.Flags().IntVar(&flagLines, "lines", mux.DefaultCaptureLines, "number of scrollback lines")
	rootCmd.AddCommand(captureCmd)
}
