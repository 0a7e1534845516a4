// Command hab drives habitat workspaces. It runs the per-component
// build and test tasks, the CI change detection and a few helpers for
// inspecting installed packages.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/habitat-sh/core/pkg/config"
)

var (
	cfg    *config.Config
	logger = zerolog.New(NewConsoleWriter())
)

var rootCmd = &cobra.Command{
	Use:   "hab",
	Short: "Habitat workspace and package tool",
	Long: `hab bundles the tools used to work on a habitat component workspace.
This includes the per-component build, test and lint tasks, the CI change
detection, and helpers to inspect installed packages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, err := cmd.Flags().GetBool("json")
		if err != nil {
			return err
		}

		loadedCfg, loader := config.Loader()
		err = loader.Load()
		if err != nil {
			return err
		}

		err = loadedCfg.Validate()
		if err != nil {
			return err
		}
		cfg = loadedCfg

		if jsonOutput || cfg.Log.JSON {
			logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		} else {
			logger = zerolog.New(NewConsoleWriter())
		}

		level := cfg.LogLevel()
		if os.Getenv("HAB_DEBUG") != "" {
			level = zerolog.DebugLevel
		}
		logger = logger.Level(level)
		log.Logger = logger

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "emit raw JSONND log output instead of pretty console messages")
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		logger.Fatal().Err(err).Msg("Command failed")
	}
}
