package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crosssell/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crosssell",
	Short: "Cross-sell and upsell recommendation service",
	Long:  "Looks up a customer, runs a five-stage completion pipeline over their profile, and returns scored cross-sell/upsell recommendations with a research report.",
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

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
