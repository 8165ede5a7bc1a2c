package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timvw/command-center/internal/client"
	"github.com/timvw/command-center/internal/model"
)

var (
	flagSlug        string
	flagRepoURL     string
	flagWorkdir     string
	flagElevated    bool
	flagInstruction string
	flagColor       string
	flagJSON        bool
)

var launchCmd = &cobra.Command{
	Use:   "launch <project>",
	Short: "Ask a running server to launch a session",
	Long: `Launch an agent session on a running server.

The project name may match an entry of the configured project catalogue, in
which case its slug, repository, working directory and colour are used as
defaults. Flags override catalogue values.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		req := model.LaunchRequest{ProjectName: strings.Join(args, " ")}
		for _, p := range cfg.Projects {
			if strings.EqualFold(p.Name, req.ProjectName) || p.Slug == req.ProjectName {
				req = model.LaunchRequest{
					ProjectName:      p.Name,
					Slug:             p.Slug,
					RepoURL:          p.RepoURL,
					WorkingDirectory: p.WorkingDirectory,
					Color:            p.Color,
				}
				break
			}
		}
		if flagSlug != "" {
			req.Slug = flagSlug
		}
		if flagRepoURL != "" {
			req.RepoURL = flagRepoURL
		}
		if flagWorkdir != "" {
			req.WorkingDirectory = flagWorkdir
		}
		if flagColor != "" {
			req.Color = flagColor
		}
		req.ElevatedMode = flagElevated
		req.InitialInstruction = flagInstruction

		s, err := client.New(serverURL(cfg)).Launch(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("launch %s: %w", req.ProjectName, err)
		}

		if flagJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.ID, s.WindowName, s.WorkingDirectory)
		return nil
	},
}

func init() {
	launchCmd.Flags().StringVar(&flagSlug, "slug", "", "window slug (default: derived from the project name)")
	launchCmd.Flags().StringVar(&flagRepoURL, "repo", "", "repository URL recorded with the session")
	launchCmd.Flags().StringVar(&flagWorkdir, "dir", "", "working directory (default: <project_root>/<slug>)")
	launchCmd.Flags().BoolVar(&flagElevated, "elevated", false, "start the agent with permission prompts disabled")
	launchCmd.Flags().StringVarP(&flagInstruction, "instruction", "i", "", "instruction typed once the agent is ready")
	launchCmd.Flags().StringVar(&flagColor, "color", "", "display colour")
	launchCmd.Flags().BoolVar(&flagJSON, "json", false, "print the session as JSON")
	rootCmd.AddCommand(launchCmd)
}
