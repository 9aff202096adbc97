package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recommendCustomerID string

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Generate recommendations for one customer and print them as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.TrimSpace(recommendCustomerID)
		if id == "" {
			return eris.New("recommend: --customer-id is required")
		}

		ctx := cmd.Context()
		env, err := initPipeline(ctx, "recommend")
		if err != nil {
			return err
		}
		defer env.Close()

		resp := env.Recommender.Run(ctx, id)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return eris.Wrap(err, "recommend: encode response")
		}

		if !resp.Success {
			zap.L().Warn("recommendation failed",
				zap.String("customer_id", id),
				zap.String("error", resp.Error),
			)
			return eris.Errorf("recommend: %s", resp.Error)
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().StringVar(&recommendCustomerID, "customer-id", "", "customer ID to analyze (e.g. C001)")
	rootCmd.AddCommand(recommendCmd)
}
