package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/ingest"
	"github.com/sells-group/product-match/internal/mapping"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Manage confirmed competitor-to-catalog mappings",
	Long:  "Confirmed mappings short-circuit matching: a competitor SKU with a mapping resolves directly to its target.",
}

var (
	mapAddSKU        string
	mapAddCompany    string
	mapAddTarget     string
	mapAddConfidence float64
	mapAddSource     string
)

var mappingAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace one mapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return addMapping(ctx, st, os.Stdout, mapping.Mapping{
			CompetitorSKU:     mapAddSKU,
			CompetitorCompany: mapAddCompany,
			TargetSKU:         mapAddTarget,
			Confidence:        mapAddConfidence,
			Source:            mapAddSource,
		})
	},
}

var mapImportFile string

var mappingImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import mappings from a csv, xlsx, json or yaml file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := importMappings(ctx, st, mapImportFile)
		if err != nil {
			return err
		}
		zap.L().Info("import complete", zap.Int("mappings", n), zap.String("file", mapImportFile))
		return nil
	},
}

var (
	mapListCompany string
	mapListTarget  string
	mapListLimit   int
	mapListOffset  int
	mapListFormat  string
)

var mappingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored mappings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ms, err := st.List(ctx, mapping.Filter{
			Company:   mapListCompany,
			TargetSKU: mapListTarget,
			Limit:     mapListLimit,
			Offset:    mapListOffset,
		})
		if err != nil {
			return eris.Wrap(err, "list mappings")
		}
		if mapListFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ms)
		}
		return printMappings(os.Stdout, ms)
	},
}

var mappingDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a mapping by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Delete(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "delete mapping %s", args[0])
		}
		zap.L().Info("mapping deleted", zap.String("id", args[0]))
		return nil
	},
}

func init() {
	mappingAddCmd.Flags().StringVar(&mapAddSKU, "competitor-sku", "", "competitor SKU (required)")
	mappingAddCmd.Flags().StringVar(&mapAddCompany, "company", "", "competitor company; empty applies to any company")
	mappingAddCmd.Flags().StringVar(&mapAddTarget, "target", "", "our catalog SKU (required)")
	mappingAddCmd.Flags().Float64Var(&mapAddConfidence, "confidence", 1.0, "mapping confidence in [0,1]")
	mappingAddCmd.Flags().StringVar(&mapAddSource, "source", "manual", "where the mapping came from")
	_ = mappingAddCmd.MarkFlagRequired("competitor-sku")
	_ = mappingAddCmd.MarkFlagRequired("target")

	mappingImportCmd.Flags().StringVar(&mapImportFile, "file", "", "mappings file (required)")
	_ = mappingImportCmd.MarkFlagRequired("file")

	mappingListCmd.Flags().StringVar(&mapListCompany, "company", "", "filter by competitor company")
	mappingListCmd.Flags().StringVar(&mapListTarget, "target", "", "filter by target SKU")
	mappingListCmd.Flags().IntVar(&mapListLimit, "limit", mapping.DefaultListLimit, "max rows")
	mappingListCmd.Flags().IntVar(&mapListOffset, "offset", 0, "rows to skip")
	mappingListCmd.Flags().StringVar(&mapListFormat, "format", "table", "output format: table, json")

	mappingCmd.AddCommand(mappingAddCmd, mappingImportCmd, mappingListCmd, mappingDeleteCmd)
	rootCmd.AddCommand(mappingCmd)
}

// addMapping upserts m and prints the stored row.
func addMapping(ctx context.Context, st mapping.Store, out io.Writer, m mapping.Mapping) error {
	saved, err := st.Upsert(ctx, m)
	if err != nil {
		return eris.Wrap(err, "add mapping")
	}
	return printMappings(out, []mapping.Mapping{*saved})
}

// importMappings loads a mappings file and upserts every row in one
// transaction.
func importMappings(ctx context.Context, st mapping.Store, path string) (int, error) {
	ms, err := ingest.LoadMappings(path)
	if err != nil {
		return 0, eris.Wrap(err, "load mappings")
	}
	if len(ms) == 0 {
		return 0, eris.Errorf("no mappings found in %s", path)
	}
	n, err := st.Import(ctx, ms)
	if err != nil {
		return 0, eris.Wrap(err, "import mappings")
	}
	return n, nil
}

func printMappings(out io.Writer, ms []mapping.Mapping) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPETITOR_SKU\tCOMPANY\tTARGET\tCONFIDENCE\tSOURCE\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t--------------\t-------\t------\t----------\t------\t-------")
	for _, m := range ms {
		company := m.CompetitorCompany
		if company == "" {
			company = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			m.ID, m.CompetitorSKU, company, m.TargetSKU, m.Confidence, m.Source, m.UpdatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
