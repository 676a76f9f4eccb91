// Package export writes matching responses as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/product-match/internal/model"
)

// Row is one flattened match line. A response without matches yields a
// single row with empty match columns.
type Row struct {
	RequestID         string  `csv:"request_id"`
	CompetitorSKU     string  `csv:"competitor_sku"`
	CompetitorCompany string  `csv:"competitor_company"`
	Rank              int     `csv:"rank,omitempty"`
	TargetSKU         string  `csv:"target_sku"`
	TargetModel       string  `csv:"target_model"`
	Confidence        float64 `csv:"confidence"`
	Label             string  `csv:"label"`
	Method            string  `csv:"method"`
	Strategy          string  `csv:"strategy"`
	Reasoning         string  `csv:"reasoning"`
	State             string  `csv:"state"`
	ShortCircuited    bool    `csv:"short_circuited"`
	Enhanced          bool    `csv:"enhanced"`
	Error             string  `csv:"error"`
}

// Rows flattens responses in order, one row per match.
func Rows(responses []*model.MatchingResponse) []Row {
	var rows []Row
	for _, r := range responses {
		if r == nil {
			continue
		}
		base := Row{
			RequestID:         r.RequestID,
			CompetitorSKU:     r.Competitor.SKU,
			CompetitorCompany: r.Competitor.Company,
			Label:             string(r.Confidence),
			State:             string(r.State),
			ShortCircuited:    r.ShortCircuited,
			Enhanced:          r.Enhanced,
			Error:             r.Error,
		}
		if len(r.Matches) == 0 {
			rows = append(rows, base)
			continue
		}
		for i, m := range r.Matches {
			row := base
			row.Rank = i + 1
			row.TargetSKU = m.TargetSKU
			if m.Product != nil {
				row.TargetModel = m.Product.Model
			}
			row.Confidence = m.Confidence
			row.Label = string(model.LabelFor(m.Confidence))
			row.Method = string(m.Method)
			row.Strategy = m.Strategy
			row.Reasoning = strings.Join(m.Reasoning, "; ")
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteCSV writes responses as CSV with a header row.
func WriteCSV(w io.Writer, responses []*model.MatchingResponse) error {
	rows := Rows(responses)
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		if err := enc.EncodeHeader(Row{}); err != nil {
			return eris.Wrap(err, "export: write csv header")
		}
	} else if err := enc.Encode(rows); err != nil {
		return eris.Wrap(err, "export: write csv")
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteJSON writes responses as an indented JSON array. Raw strategy
// evidence is omitted unless withEvidence is set.
func WriteJSON(w io.Writer, responses []*model.MatchingResponse, withEvidence bool) error {
	out := make([]*model.MatchingResponse, 0, len(responses))
	for _, r := range responses {
		if r == nil {
			continue
		}
		if !withEvidence && len(r.Evidence) > 0 {
			c := *r
			c.Evidence = nil
			r = &c
		}
		out = append(out, r)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return eris.Wrap(err, "export: write json")
	}
	return nil
}

// WriteFile writes responses to path, choosing CSV or JSON by extension.
func WriteFile(path string, responses []*model.MatchingResponse) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = WriteCSV(f, responses)
	case ".json":
		err = WriteJSON(f, responses, false)
	default:
		err = eris.Errorf("export: unsupported output type %q", filepath.Ext(path))
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrap(cerr, "export: close file")
	}
	return err
}
