// Package ingest loads competitor products, catalog products and mapping
// records from CSV, XLSX, JSON or YAML files.
package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/product-match/internal/mapping"
	"github.com/sells-group/product-match/internal/model"
)

// Format is an input file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}

// LoadCompetitors reads competitor products. Tabular columns that are not
// product fields are kept as specifications.
func LoadCompetitors(path string) ([]model.CompetitorProduct, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var out []model.CompetitorProduct
	switch format {
	case FormatJSON, FormatYAML:
		if err := decodeDocument(path, format, &out); err != nil {
			return nil, err
		}
	default:
		rows, err := openRows(path, format)
		if err != nil {
			return nil, err
		}
		if out, err = decodeCompetitors(rows); err != nil {
			return nil, eris.Wrapf(err, "ingest: decode %s", filepath.Base(path))
		}
	}

	kept := out[:0]
	for _, p := range out {
		if p.HasIdentifier() {
			kept = append(kept, p)
		}
	}
	if dropped := len(out) - len(kept); dropped > 0 {
		logDropped(path, dropped, "no sku or model")
	}
	return kept, nil
}

// LoadCatalog reads catalog products. Rows without a SKU are skipped.
func LoadCatalog(path string) ([]model.CatalogProduct, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var out []model.CatalogProduct
	switch format {
	case FormatJSON, FormatYAML:
		if err := decodeDocument(path, format, &out); err != nil {
			return nil, err
		}
	default:
		rows, err := openRows(path, format)
		if err != nil {
			return nil, err
		}
		if err := decodeTable(rows, catalogAliases, &out); err != nil {
			return nil, eris.Wrapf(err, "ingest: decode %s", filepath.Base(path))
		}
	}

	kept := out[:0]
	for _, item := range out {
		if strings.TrimSpace(item.SKU) != "" {
			kept = append(kept, item)
		}
	}
	if dropped := len(out) - len(kept); dropped > 0 {
		logDropped(path, dropped, "no sku")
	}
	return kept, nil
}

// mappingRow is the file representation of a mapping record.
type mappingRow struct {
	CompetitorSKU     string   `json:"competitor_sku" yaml:"competitor_sku" csv:"competitor_sku"`
	CompetitorCompany string   `json:"competitor_company" yaml:"competitor_company" csv:"competitor_company,omitempty"`
	TargetSKU         string   `json:"target_sku" yaml:"target_sku" csv:"target_sku"`
	Confidence        *float64 `json:"confidence" yaml:"confidence" csv:"confidence,omitempty"`
	Source            string   `json:"source" yaml:"source" csv:"source,omitempty"`
}

// LoadMappings reads mapping records. A missing confidence means 1.0 and a
// missing source is filled with the file name.
func LoadMappings(path string) ([]mapping.Mapping, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var rows []mappingRow
	switch format {
	case FormatJSON, FormatYAML:
		if err := decodeDocument(path, format, &rows); err != nil {
			return nil, err
		}
	default:
		rr, err := openRows(path, format)
		if err != nil {
			return nil, err
		}
		if err := decodeTable(rr, mappingAliases, &rows); err != nil {
			return nil, eris.Wrapf(err, "ingest: decode %s", filepath.Base(path))
		}
	}

	source := "import:" + filepath.Base(path)
	out := make([]mapping.Mapping, 0, len(rows))
	for _, r := range rows {
		m := mapping.Mapping{
			CompetitorSKU:     r.CompetitorSKU,
			CompetitorCompany: r.CompetitorCompany,
			TargetSKU:         r.TargetSKU,
			Confidence:        1.0,
			Source:            r.Source,
		}
		if r.Confidence != nil {
			m.Confidence = *r.Confidence
		}
		if strings.TrimSpace(m.Source) == "" {
			m.Source = source
		}
		out = append(out, m)
	}
	return out, nil
}

// decodeDocument reads a JSON or YAML array into v.
func decodeDocument(path string, format Format, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "ingest: read file")
	}

	if format == FormatJSON {
		if err := json.Unmarshal(data, v); err != nil {
			return eris.Wrapf(err, "ingest: parse json %s", filepath.Base(path))
		}
		return nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "ingest: parse yaml %s", filepath.Base(path))
	}
	return nil
}
