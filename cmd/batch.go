package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/config"
	"github.com/sells-group/product-match/internal/export"
	"github.com/sells-group/product-match/internal/ingest"
	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/model"
)

var (
	batchInput       string
	batchCatalog     string
	batchOutput      string
	batchProfile     string
	batchLimit       int
	batchConcurrency int
	batchEnhance     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Match a file of competitor products",
	Example: `  product-match batch --input competitors.csv --catalog catalog.xlsx --output matches.csv
  product-match batch --input competitors.json --catalog catalog.yaml --profile strict --output matches.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency > 0 {
			cfg.Batch.MaxConcurrency = batchConcurrency
		}
		env, err := initEngine(ctx, cfg, config.ModeMatch)
		if err != nil {
			return err
		}
		defer env.Close()

		catalog, err := loadCatalog(batchCatalog)
		if err != nil {
			return err
		}
		products, err := ingest.LoadCompetitors(batchInput)
		if err != nil {
			return eris.Wrap(err, "load competitors")
		}
		opts, err := applyProfile(env.Options, batchProfile)
		if err != nil {
			return err
		}

		responses, err := processBatch(ctx, env, products, catalog, opts, batchLimit, batchEnhance)
		if err != nil {
			return err
		}

		if batchOutput == "" {
			return writeResponses(os.Stdout, "table", responses)
		}
		if err := export.WriteFile(batchOutput, responses); err != nil {
			return err
		}
		zap.L().Info("results written", zap.String("output", batchOutput), zap.Int("responses", len(responses)))
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "competitor products file (csv, xlsx, json, yaml)")
	batchCmd.Flags().StringVar(&batchCatalog, "catalog", "", "catalog file (csv, xlsx, json, yaml)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "output file (.csv or .json); prints a table when empty")
	batchCmd.Flags().StringVar(&batchProfile, "profile", "", "option profile (default, strict, permissive)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of products to match (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "concurrent matches (default from config)")
	batchCmd.Flags().BoolVar(&batchEnhance, "enhance", false, "run research on results that are not high confidence")
	_ = batchCmd.MarkFlagRequired("input")
	_ = batchCmd.MarkFlagRequired("catalog")
	rootCmd.AddCommand(batchCmd)
}

// processBatch applies limit, matches every product and optionally enhances
// uncertain results. Per-item failures are kept as failed responses.
func processBatch(ctx context.Context, env *engineEnv, products []model.CompetitorProduct, catalog []model.CatalogProduct, opts model.MatchingOptions, limit int, enhance bool) ([]*model.MatchingResponse, error) {
	if len(products) == 0 {
		zap.L().Info("no competitor products found")
		return nil, nil
	}

	// Apply limit
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("products", len(products)),
		zap.Int("catalog", len(catalog)),
	)

	result, err := env.Engine.MatchBatch(ctx, products, catalog, opts)
	if err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	responses := make([]*model.MatchingResponse, 0, len(result.Items))
	enhanced := 0
	for _, item := range result.Items {
		resp := item.Response
		if resp == nil {
			continue
		}
		if item.Err != nil {
			zap.L().Warn("match failed", zap.Int("index", item.Index), zap.Error(item.Err))
		}
		if enhance && env.Research && matching.NeedsResearch(resp) {
			if out, err := env.Engine.Enhance(ctx, resp, catalog, opts); err == nil && out != resp {
				resp = out
				enhanced++
			}
		}
		responses = append(responses, resp)
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", result.Succeeded),
		zap.Int64("failed", result.Failed),
		zap.Int("enhanced", enhanced),
		zap.String("duration", result.Duration),
	)
	return responses, nil
}
