package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillsenselab/voicerelay/config"
	"github.com/skillsenselab/voicerelay/quota"
	"github.com/skillsenselab/voicerelay/upstream"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and connectivity",
	Long:  `Load the configuration, validate it, and verify that the quota store and the transcription provider are reachable.`,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	var opts []config.LoaderOption
	if configPath != "" {
		opts = append(opts, config.WithConfigFile(configPath))
	}
	if envPath != "" {
		opts = append(opts, config.WithEnvFile(envPath))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	fmt.Println("configuration: ok")

	store, err := quota.Open(cfg.Quota)
	if err != nil {
		return fmt.Errorf("quota store (%s): %w", cfg.Quota.Store, err)
	}
	defer store.Close()
	fmt.Printf("quota store (%s): ok\n", cfg.Quota.Store)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	provider := upstream.NewHTTPClient(cfg.Upstream)
	if !provider.IsAvailable(ctx) {
		return fmt.Errorf("transcription provider: unreachable at %s", cfg.Upstream.BaseURL)
	}
	fmt.Println("transcription provider: ok")

	return nil
}
