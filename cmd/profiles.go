package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/product-match/internal/matching"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List option profiles and registered strategies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printProfiles(os.Stdout, matching.NewEngine(nil, nil))
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func printProfiles(out io.Writer, engine *matching.Engine) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROFILE\tTHRESHOLD\tMAX_RESULTS\tSTRICT\tSTRATEGIES")
	for _, name := range matching.ProfileNames() {
		opts, err := matching.ProfileOptions(name)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%d\t%t\t%s\n",
			name, opts.ConfidenceThreshold, opts.MaxResults, opts.StrictMode, strings.Join(opts.Strategies, ","))
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "STRATEGY\tRANGE\tDESCRIPTION")
	for _, name := range engine.Strategies() {
		s := engine.Strategy(name)
		r := s.ConfidenceRange()
		_, _ = fmt.Fprintf(w, "%s\t%.2f-%.2f\t%s\n", s.Name(), r.Min, r.Max, s.Description())
	}
	return w.Flush()
}
