// Package cli is the trivia command line entrypoint.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "trivia",
		Short: "Timed trivia rounds over group chat",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to config file")
	cmd.AddCommand(newServeCmd(&configPath))
	return cmd
}
