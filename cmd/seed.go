package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crosssell/internal/customer"
)

var seedCSV string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the customer_data table and load it from a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("seed"); err != nil {
			return err
		}

		path := seedCSV
		if path == "" {
			path = cfg.Source.CSVPath
		}

		// Seed the backing store directly, bypassing any cache.
		redisURL := cfg.Cache.RedisURL
		cfg.Cache.RedisURL = ""
		src, err := openSource(ctx)
		cfg.Cache.RedisURL = redisURL
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		n, err := seedFromCSV(ctx, src, path)
		if err != nil {
			return err
		}
		zap.L().Info("seed complete",
			zap.String("source", src.Name()),
			zap.String("csv", path),
			zap.Int64("inserted", n),
		)
		return nil
	},
}

// seedFromCSV migrates dst and inserts every profile from the CSV at path.
// Rows whose customer_id already exists are skipped.
func seedFromCSV(ctx context.Context, dst customer.Source, path string) (int64, error) {
	seeder, ok := dst.(customer.Seeder)
	if !ok {
		return 0, eris.Errorf("seed: source %s cannot be seeded", dst.Name())
	}

	csvSrc, err := customer.NewCSVSource(path)
	if err != nil {
		return 0, err
	}

	if err := seeder.Migrate(ctx); err != nil {
		return 0, err
	}
	return seeder.Seed(ctx, csvSrc.Profiles())
}

func init() {
	seedCmd.Flags().StringVar(&seedCSV, "csv", "", "CSV file to load (default source.csv_path)")
	rootCmd.AddCommand(seedCmd)
}
