package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillsenselab/voicerelay/version"
)

var (
	configPath string
	envPath    string
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Real-time speech transcription relay",
	Long: `voicerelay accepts audio chunks from clients, enforces per-user daily
quota and concurrency limits, forwards admitted audio to a streaming
transcription provider, and relays transcript events back over SSE.`,
	Version: version.Short(),
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand means serve.
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yml (searched if empty)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", "", "Path to .env file (searched if empty)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
