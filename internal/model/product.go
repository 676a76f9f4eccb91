package model

import "strings"

// CompetitorProduct is a foreign product record to be resolved against our
// catalog. It is treated as immutable input.
type CompetitorProduct struct {
	SKU            string            `json:"sku" yaml:"sku" csv:"sku"`
	Company        string            `json:"company,omitempty" yaml:"company" csv:"company,omitempty"`
	Model          string            `json:"model,omitempty" yaml:"model" csv:"model,omitempty"`
	Description    string            `json:"description,omitempty" yaml:"description" csv:"description,omitempty"`
	Price          *float64          `json:"price,omitempty" yaml:"price" csv:"price,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty" yaml:"specifications" csv:"-"`
	Source         string            `json:"source,omitempty" yaml:"source" csv:"source,omitempty"`
}

// HasIdentifier reports whether the record carries a usable SKU or model.
func (p CompetitorProduct) HasIdentifier() bool {
	return strings.TrimSpace(p.SKU) != "" || strings.TrimSpace(p.Model) != ""
}

// CatalogProduct is a canonical product in our catalog.
type CatalogProduct struct {
	ID          string   `json:"id" yaml:"id" csv:"id"`
	SKU         string   `json:"sku" yaml:"sku" csv:"sku"`
	Model       string   `json:"model,omitempty" yaml:"model" csv:"model,omitempty"`
	Brand       string   `json:"brand,omitempty" yaml:"brand" csv:"brand,omitempty"`
	ProductType string   `json:"product_type,omitempty" yaml:"product_type" csv:"product_type,omitempty"`
	Tonnage     *float64 `json:"tonnage,omitempty" yaml:"tonnage" csv:"tonnage,omitempty"`
	SEER        *float64 `json:"seer,omitempty" yaml:"seer" csv:"seer,omitempty"`
	SEER2       *float64 `json:"seer2,omitempty" yaml:"seer2" csv:"seer2,omitempty"`
	AFUE        *float64 `json:"afue,omitempty" yaml:"afue" csv:"afue,omitempty"`
	HSPF        *float64 `json:"hspf,omitempty" yaml:"hspf" csv:"hspf,omitempty"`
	Refrigerant string   `json:"refrigerant,omitempty" yaml:"refrigerant" csv:"refrigerant,omitempty"`
	Stage       string   `json:"stage,omitempty" yaml:"stage" csv:"stage,omitempty"`
}

// Float returns a pointer to v. Handy for building optional spec fields.
func Float(v float64) *float64 { return &v }
