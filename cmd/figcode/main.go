package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shaun/figcode/server/internal/config"
	"github.com/shaun/figcode/server/internal/logging"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "figcode",
	Short: "Preview generated components locally and push them to GitHub",
	Long: `figcode runs the live preview of a generated React component on this machine
and commits generated files to a GitHub repository in a single commit.`,
	Example: `  # Preview a component and keep it in sync with edits
  figcode preview --component Button.tsx --css Button.css --watch

  # Push files into src/components of a repository
  figcode push --owner octo-org --repo design-system Button.tsx Button.css

  # Check where a file would land in the repository
  figcode path src/components Button.tsx`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load(".env")
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		logging.Setup(level, cfg.Log.Format, os.Stderr)
		loaded = cfg
		return nil
	},
}

// loaded is set by the root pre-run before any subcommand runs.
var loaded *config.Config

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default ./config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pathCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
