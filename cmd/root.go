package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simargl-labs/content-pipeline/internal/config"
)

var (
	cfg         *config.Config
	promptsPath string
)

var rootCmd = &cobra.Command{
	Use:   "content-pipeline",
	Short: "Quota-aware video analysis pipeline",
	Long:  "Discovers YouTube uploads, chunks them into analysis windows, runs Gemini insight and research passes under tier quota limits, and persists the results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&promptsPath, "prompts", "", "YAML file overriding the built-in insight and research prompts")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
