package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/habitat-sh/core/pkg/ci"
	"github.com/habitat-sh/core/pkg/workspace"
)

var ciCmd = &cobra.Command{
	Use:   "ci",
	Short: "Tests the components affected by recent changes",
	Long: `ci inspects the CI environment and the git history to determine which
components changed, then runs the unit task (and any extra requested
actions) for each of them. Results are recorded so a later run with
--skip-unchanged can skip components that already passed at the same
commit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		skipUnchanged, _ := cmd.Flags().GetBool("skip-unchanged")
		dryRun, _ := cmd.Flags().GetBool("dry")

		root, err := findWorkspaceRoot()
		if err != nil {
			return err
		}

		manifest, err := workspace.LoadManifest(root)
		if err != nil {
			return err
		}

		ctx := workspace.WithLogger(cmd.Context(), &logger)
		tasks, err := workspace.Tasks(ctx, root, manifest)
		if err != nil {
			return err
		}

		plan, err := ci.DetectPlan(ctx, root, manifest)
		if err != nil {
			return err
		}

		if len(plan.Components) == 0 {
			logger.Info().Msg("No components affected, nothing to do")
			return nil
		}

		state, err := ci.OpenState(filepath.Join(root, cfg.CacheDir))
		if err != nil {
			return err
		}
		defer state.Close()

		return ci.Run(ctx, plan, tasks, state, ci.Options{
			SkipUnchanged: skipUnchanged,
			DryRun:        dryRun,
		})
	},
}

func init() {
	ciCmd.Flags().Bool("skip-unchanged", false, "skip components that already passed at the current commit")
	ciCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	rootCmd.AddCommand(ciCmd)
}
