package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/model"
)

// Header aliases map normalized spreadsheet headers onto field tags.
var (
	competitorAliases = map[string]string{
		"competitor_sku":     "sku",
		"part_number":        "sku",
		"manufacturer":       "company",
		"brand":              "company",
		"competitor_company": "company",
		"model_number":       "model",
		"name":               "description",
		"product_name":       "description",
		"list_price":         "price",
	}
	catalogAliases = map[string]string{
		"model_number": "model",
		"manufacturer": "brand",
		"type":         "product_type",
		"tons":         "tonnage",
	}
	mappingAliases = map[string]string{
		"sku":         "competitor_sku",
		"company":     "competitor_company",
		"our_sku":     "target_sku",
		"catalog_sku": "target_sku",
	}
)

// rowReader yields table rows padded to the header width. It satisfies
// csvutil.Reader.
type rowReader interface {
	Read() ([]string, error)
}

// sliceReader serves rows already loaded in memory, as from an XLSX sheet.
type sliceReader struct {
	rows [][]string
	pos  int
}

func (r *sliceReader) Read() ([]string, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

// padReader pads or trims every record after the header to the header width
// and skips blank lines.
type padReader struct {
	src   rowReader
	width int
}

func (r *padReader) Read() ([]string, error) {
	for {
		row, err := r.src.Read()
		if err != nil {
			return nil, err
		}
		if r.width == 0 {
			r.width = len(row)
			return row, nil
		}
		if blank(row) {
			continue
		}
		switch {
		case len(row) < r.width:
			row = append(row, make([]string, r.width-len(row))...)
		case len(row) > r.width:
			row = row[:r.width]
		}
		return row, nil
	}
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// openRows opens a CSV or XLSX file as a padded row stream.
func openRows(path string, format Format) (rowReader, error) {
	switch format {
	case FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "csv: open file")
		}
		data, err := readAllRows(f)
		f.Close() //nolint:errcheck
		if err != nil {
			return nil, err
		}
		return &padReader{src: &sliceReader{rows: data}}, nil
	case FormatXLSX:
		rows, err := readXLSX(path)
		if err != nil {
			return nil, err
		}
		return &padReader{src: &sliceReader{rows: rows}}, nil
	default:
		return nil, eris.Errorf("ingest: %s is not tabular", format)
	}
}

func readAllRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read rows")
	}
	return rows, nil
}

// readXLSX returns the rows of the first sheet.
func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// normalizeHeader lower-cases a header and joins words with underscores,
// then applies the alias table.
func normalizeHeader(h string, aliases map[string]string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.' || r == '/'
	}), "_")
	if alias, ok := aliases[h]; ok {
		return alias
	}
	return h
}

// newDecoder reads the header row and returns a csvutil decoder keyed by the
// normalized header.
func newDecoder(rows rowReader, aliases map[string]string) (*csvutil.Decoder, []string, error) {
	raw, err := rows.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, eris.New("ingest: file has no header row")
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: read header")
	}

	header := make([]string, len(raw))
	for i, h := range raw {
		header[i] = normalizeHeader(h, aliases)
	}
	dec, err := csvutil.NewDecoder(rows, header...)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: build decoder")
	}
	return dec, raw, nil
}

// decodeTable decodes every row into out, which must point to a slice.
func decodeTable(rows rowReader, aliases map[string]string, out any) error {
	dec, _, err := newDecoder(rows, aliases)
	if err != nil {
		return err
	}
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return eris.Wrap(err, "ingest: decode rows")
	}
	return nil
}

// decodeCompetitors decodes competitor rows one at a time so columns that
// are not product fields can be collected into Specifications.
func decodeCompetitors(rows rowReader) ([]model.CompetitorProduct, error) {
	dec, raw, err := newDecoder(rows, competitorAliases)
	if err != nil {
		return nil, err
	}

	var out []model.CompetitorProduct
	for {
		var p model.CompetitorProduct
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "ingest: decode row %d", len(out)+2)
		}

		record := dec.Record()
		for _, i := range dec.Unused() {
			v := strings.TrimSpace(record[i])
			if v == "" {
				continue
			}
			if p.Specifications == nil {
				p.Specifications = make(map[string]string)
			}
			p.Specifications[strings.TrimSpace(raw[i])] = v
		}
		out = append(out, p)
	}
	return out, nil
}

func logDropped(path string, n int, reason string) {
	zap.L().Warn("ingest: skipped rows",
		zap.String("file", filepath.Base(path)),
		zap.Int("count", n),
		zap.String("reason", reason),
	)
}
