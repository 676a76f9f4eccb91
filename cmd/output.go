package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/product-match/internal/export"
	"github.com/sells-group/product-match/internal/model"
)

// writeResponses renders responses in the requested format.
func writeResponses(out io.Writer, format string, responses []*model.MatchingResponse) error {
	switch format {
	case "json":
		return export.WriteJSON(out, responses, false)
	case "csv":
		return export.WriteCSV(out, responses)
	case "", "table":
		return printMatchTable(out, responses)
	default:
		return fmt.Errorf("unknown output format %q (table, json, csv)", format)
	}
}

// printMatchTable writes responses as an aligned table.
func printMatchTable(out io.Writer, responses []*model.MatchingResponse) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPETITOR\tRANK\tTARGET\tCONFIDENCE\tMETHOD\tSTRATEGY")
	_, _ = fmt.Fprintln(w, "----------\t----\t------\t----------\t------\t--------")

	for _, row := range export.Rows(responses) {
		if row.Rank == 0 {
			status := row.Label
			if row.Error != "" {
				status = "error: " + row.Error
			}
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t%s\t-\t-\n", row.CompetitorSKU, status)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%.3f (%s)\t%s\t%s\n",
			row.CompetitorSKU, row.Rank, row.TargetSKU, row.Confidence, row.Label, row.Method, row.Strategy)
	}
	return w.Flush()
}

// printReasoning writes the reasoning of the best match of each response.
func printReasoning(out io.Writer, responses []*model.MatchingResponse) {
	for _, r := range responses {
		best := r.Best()
		if best == nil || len(best.Reasoning) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s -> %s\n  %s\n", r.Competitor.SKU, best.TargetSKU, strings.Join(best.Reasoning, "\n  "))
	}
}
