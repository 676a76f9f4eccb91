package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/config"
	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/model"
)

var (
	matchSKU         string
	matchModel       string
	matchCompany     string
	matchDescription string
	matchPrice       float64
	matchSpecs       map[string]string
	matchCatalog     string
	matchProfile     string
	matchEnhance     bool
	matchFormat      string
	matchExplain     bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match one competitor product against the catalog",
	Example: `  product-match match --catalog catalog.xlsx --sku TRN-4TTR4036 --company Trane
  product-match match --catalog catalog.csv --model 4TTR4036 --spec seer=16 --spec tonnage=3 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, cfg, config.ModeMatch)
		if err != nil {
			return err
		}
		defer env.Close()

		catalog, err := loadCatalog(matchCatalog)
		if err != nil {
			return err
		}
		opts, err := applyProfile(env.Options, matchProfile)
		if err != nil {
			return err
		}

		p := buildProduct(matchSKU, matchModel, matchCompany, matchDescription, matchPrice, matchSpecs)
		resp, err := runMatch(ctx, env, p, catalog, opts, matchEnhance)
		if err != nil {
			return err
		}
		return printMatch(os.Stdout, resp, matchFormat, matchExplain)
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchSKU, "sku", "", "competitor SKU")
	matchCmd.Flags().StringVar(&matchModel, "model", "", "competitor model number")
	matchCmd.Flags().StringVar(&matchCompany, "company", "", "competitor company or brand")
	matchCmd.Flags().StringVar(&matchDescription, "description", "", "free-text description")
	matchCmd.Flags().Float64Var(&matchPrice, "price", 0, "competitor price (0 = unknown)")
	matchCmd.Flags().StringToStringVar(&matchSpecs, "spec", nil, "specification key=value (repeatable)")
	matchCmd.Flags().StringVar(&matchCatalog, "catalog", "", "catalog file (csv, xlsx, json, yaml)")
	matchCmd.Flags().StringVar(&matchProfile, "profile", "", "option profile (default, strict, permissive)")
	matchCmd.Flags().BoolVar(&matchEnhance, "enhance", false, "ask the research enhancer when confidence is not high")
	matchCmd.Flags().StringVar(&matchFormat, "format", "table", "output format: table, json, csv")
	matchCmd.Flags().BoolVar(&matchExplain, "explain", false, "print reasoning for the best match")
	_ = matchCmd.MarkFlagRequired("catalog")
	rootCmd.AddCommand(matchCmd)
}

// buildProduct assembles a competitor product from flag values.
func buildProduct(sku, modelNo, company, description string, price float64, specs map[string]string) model.CompetitorProduct {
	p := model.CompetitorProduct{
		SKU:         sku,
		Model:       modelNo,
		Company:     company,
		Description: description,
		Source:      "cli",
	}
	if price != 0 {
		p.Price = model.Float(price)
	}
	if len(specs) > 0 {
		p.Specifications = specs
	}
	return p
}

// runMatch matches p and, when asked and needed, enhances the result with
// research.
func runMatch(ctx context.Context, env *engineEnv, p model.CompetitorProduct, catalog []model.CatalogProduct, opts model.MatchingOptions, enhance bool) (*model.MatchingResponse, error) {
	resp, err := env.Engine.Match(ctx, p, catalog, opts)
	if err != nil {
		return resp, eris.Wrap(err, "match")
	}
	if !enhance || !matching.NeedsResearch(resp) {
		return resp, nil
	}
	if !env.Research {
		zap.L().Warn("research requested but not enabled (MATCH_RESEARCH_ENABLED)")
		return resp, nil
	}
	return env.Engine.Enhance(ctx, resp, catalog, opts)
}

func printMatch(out io.Writer, resp *model.MatchingResponse, format string, explain bool) error {
	responses := []*model.MatchingResponse{resp}
	if err := writeResponses(out, format, responses); err != nil {
		return err
	}
	if explain && (format == "" || format == "table") {
		printReasoning(out, responses)
	}
	return nil
}
