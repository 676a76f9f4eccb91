package matching

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Heuristics holds the industry-specific lookup tables and numeric knobs used
// by the strategies and the scorer. Defaults target residential HVAC.
type Heuristics struct {
	BrandFamilies      [][]string           `yaml:"brand_families"`
	BrandPrefixes      []string             `yaml:"brand_prefixes"`
	ProductTypes       map[string][]string  `yaml:"product_types"`
	CompatibleTypes    [][]string           `yaml:"compatible_types"`
	PriceBands         map[string]PriceBand `yaml:"price_bands"`
	SeriesTranslations []SeriesTranslation  `yaml:"series_translations"`
	CapacityCodes      map[string]float64   `yaml:"capacity_codes"`
	Specs              SpecConfig           `yaml:"specs"`
	Fuzzy              FuzzyConfig          `yaml:"fuzzy"`
	Scorer             ScorerConfig         `yaml:"scorer"`
}

// PriceBand is the expected price per nominal ton for a product type.
type PriceBand struct {
	PerTonMin float64 `yaml:"per_ton_min"`
	PerTonMax float64 `yaml:"per_ton_max"`
}

// SeriesTranslation maps a model series of one brand onto the equivalent
// series of a sister brand.
type SeriesTranslation struct {
	FromBrand  string `yaml:"from_brand"`
	FromPrefix string `yaml:"from_prefix"`
	ToBrand    string `yaml:"to_brand"`
	ToPrefix   string `yaml:"to_prefix"`
}

// SpecConfig weights each specification field in the weighted average.
type SpecConfig struct {
	TonnageWeight     float64 `yaml:"tonnage_weight"`
	SEERWeight        float64 `yaml:"seer_weight"`
	SEER2Weight       float64 `yaml:"seer2_weight"`
	AFUEWeight        float64 `yaml:"afue_weight"`
	HSPFWeight        float64 `yaml:"hspf_weight"`
	RefrigerantWeight float64 `yaml:"refrigerant_weight"`
	StageWeight       float64 `yaml:"stage_weight"`
	Ceiling           float64 `yaml:"ceiling"`
}

// FuzzyConfig holds per-algorithm ceilings and overlap minimums.
type FuzzyConfig struct {
	PrefixCeiling      float64 `yaml:"prefix_ceiling"`
	SuffixCeiling      float64 `yaml:"suffix_ceiling"`
	ContainsCeiling    float64 `yaml:"contains_ceiling"`
	LevenshteinCeiling float64 `yaml:"levenshtein_ceiling"`
	MinPrefixOverlap   int     `yaml:"min_prefix_overlap"`
	MinSuffixOverlap   int     `yaml:"min_suffix_overlap"`
	MinContainsLength  int     `yaml:"min_contains_length"`
	MinLevenshteinSim  float64 `yaml:"min_levenshtein_similarity"`
}

// ScorerConfig controls fusion and business-rule calibration.
type ScorerConfig struct {
	CorroborationStep    float64 `yaml:"corroboration_step"`
	CorroborationMax     float64 `yaml:"corroboration_max"`
	HeuristicCeiling     float64 `yaml:"heuristic_ceiling"`
	TypeWeight           float64 `yaml:"type_weight"`
	BrandWeight          float64 `yaml:"brand_weight"`
	PriceWeight          float64 `yaml:"price_weight"`
	BonusScale           float64 `yaml:"bonus_scale"`
	TypeMismatchPenalty  float64 `yaml:"type_mismatch_penalty"`
	BrandMismatchPenalty float64 `yaml:"brand_mismatch_penalty"`
	PricePenalty         float64 `yaml:"price_penalty"`
	SpecRatioCutoff      float64 `yaml:"spec_ratio_cutoff"`
	SpecRatioFloor       float64 `yaml:"spec_ratio_floor"`
	PriceLowFactor       float64 `yaml:"price_low_factor"`
	PriceHighFactor      float64 `yaml:"price_high_factor"`
}

// DefaultHeuristics returns the built-in tables.
func DefaultHeuristics() *Heuristics {
	return &Heuristics{
		BrandFamilies: [][]string{
			{"trane", "american standard", "ameristar", "runtru"},
			{"carrier", "bryant", "payne", "heil", "tempstar", "comfortmaker", "arcoaire", "day and night"},
			{"lennox", "ducane", "armstrong air", "aire-flo", "allied"},
			{"goodman", "amana", "daikin", "janitrol"},
			{"rheem", "ruud", "weatherking"},
			{"york", "coleman", "luxaire", "champion", "guardian"},
			{"nordyne", "frigidaire", "gibson", "tappan", "maytag", "westinghouse", "intertherm", "miller"},
		},
		BrandPrefixes: []string{
			"TRANE", "TRN", "AMSTD", "AS",
			"CARRIER", "CAR", "BRYANT", "BRY", "PAYNE",
			"LENNOX", "LEN",
			"GOODMAN", "GDM", "AMANA", "DAIKIN",
			"RHEEM", "RHM", "RUUD",
			"YORK", "YRK", "COLEMAN", "LUXAIRE",
		},
		ProductTypes: map[string][]string{
			"air_conditioner": {"air conditioner", "ac", "a/c", "condenser", "condensing unit", "cooling only"},
			"heat_pump":       {"heat pump", "hp", "heatpump"},
			"furnace":         {"furnace", "gas furnace", "oil furnace", "afue"},
			"air_handler":     {"air handler", "ahu", "fan coil", "blower"},
			"coil":            {"evaporator coil", "evap coil", "cased coil", "a-coil", "coil"},
			"package_unit":    {"package unit", "packaged unit", "rtu", "rooftop unit", "gas pack", "package"},
			"mini_split":      {"mini split", "mini-split", "ductless"},
		},
		CompatibleTypes: [][]string{
			{"air_conditioner", "heat_pump"},
			{"air_handler", "coil"},
		},
		PriceBands: map[string]PriceBand{
			"air_conditioner": {PerTonMin: 600, PerTonMax: 1500},
			"heat_pump":       {PerTonMin: 700, PerTonMax: 1800},
			"furnace":         {PerTonMin: 300, PerTonMax: 900},
			"air_handler":     {PerTonMin: 300, PerTonMax: 900},
			"coil":            {PerTonMin: 150, PerTonMax: 500},
			"package_unit":    {PerTonMin: 900, PerTonMax: 2200},
			"mini_split":      {PerTonMin: 800, PerTonMax: 2500},
		},
		SeriesTranslations: []SeriesTranslation{
			{FromBrand: "trane", FromPrefix: "4TTR", ToBrand: "american standard", ToPrefix: "4A7A"},
			{FromBrand: "trane", FromPrefix: "4TWR", ToBrand: "american standard", ToPrefix: "4A6H"},
			{FromBrand: "carrier", FromPrefix: "24ACC", ToBrand: "bryant", ToPrefix: "186CA"},
			{FromBrand: "carrier", FromPrefix: "25HCC", ToBrand: "bryant", ToPrefix: "286BN"},
			{FromBrand: "goodman", FromPrefix: "GSX", ToBrand: "amana", ToPrefix: "ASX"},
			{FromBrand: "goodman", FromPrefix: "GSZ", ToBrand: "amana", ToPrefix: "ASZ"},
			{FromBrand: "rheem", FromPrefix: "RA", ToBrand: "ruud", ToPrefix: "UA"},
			{FromBrand: "york", FromPrefix: "YC", ToBrand: "coleman", ToPrefix: "TC"},
		},
		CapacityCodes: map[string]float64{
			"018": 1.5, "024": 2.0, "030": 2.5, "036": 3.0,
			"042": 3.5, "048": 4.0, "060": 5.0,
		},
		Specs: SpecConfig{
			TonnageWeight:     1.0,
			SEERWeight:        0.8,
			SEER2Weight:       0.8,
			AFUEWeight:        0.7,
			HSPFWeight:        0.6,
			RefrigerantWeight: 0.5,
			StageWeight:       0.4,
			Ceiling:           0.90,
		},
		Fuzzy: FuzzyConfig{
			PrefixCeiling:      0.85,
			SuffixCeiling:      0.80,
			ContainsCeiling:    0.75,
			LevenshteinCeiling: 0.70,
			MinPrefixOverlap:   3,
			MinSuffixOverlap:   4,
			MinContainsLength:  4,
			MinLevenshteinSim:  0.6,
		},
		Scorer: ScorerConfig{
			CorroborationStep:    0.03,
			CorroborationMax:     0.15,
			HeuristicCeiling:     0.95,
			TypeWeight:           0.15,
			BrandWeight:          0.10,
			PriceWeight:          0.05,
			BonusScale:           0.05,
			TypeMismatchPenalty:  0.8,
			BrandMismatchPenalty: 0.9,
			PricePenalty:         0.95,
			SpecRatioCutoff:      0.5,
			SpecRatioFloor:       0.7,
			PriceLowFactor:       0.5,
			PriceHighFactor:      2.0,
		},
	}
}

// LoadHeuristics reads a YAML heuristics file. Sections missing from the
// file keep their defaults.
func LoadHeuristics(path string) (*Heuristics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "matching: read heuristics %s", path)
	}

	// The file has a top-level "heuristics" key.
	wrapper := struct {
		Heuristics *Heuristics `yaml:"heuristics"`
	}{Heuristics: DefaultHeuristics()}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "matching: parse heuristics")
	}

	h := wrapper.Heuristics
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate checks that the numeric knobs are internally consistent.
func (h *Heuristics) Validate() error {
	var errs []string

	weights := map[string]float64{
		"specs.tonnage_weight":      h.Specs.TonnageWeight,
		"specs.seer_weight":         h.Specs.SEERWeight,
		"specs.seer2_weight":        h.Specs.SEER2Weight,
		"specs.afue_weight":         h.Specs.AFUEWeight,
		"specs.hspf_weight":         h.Specs.HSPFWeight,
		"specs.refrigerant_weight":  h.Specs.RefrigerantWeight,
		"specs.stage_weight":        h.Specs.StageWeight,
		"scorer.type_weight":        h.Scorer.TypeWeight,
		"scorer.brand_weight":       h.Scorer.BrandWeight,
		"scorer.price_weight":       h.Scorer.PriceWeight,
		"scorer.corroboration_step": h.Scorer.CorroborationStep,
		"scorer.corroboration_max":  h.Scorer.CorroborationMax,
		"scorer.bonus_scale":        h.Scorer.BonusScale,
	}
	for _, name := range sortedKeys(weights) {
		if weights[name] < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	unit := map[string]float64{
		"specs.ceiling":                 h.Specs.Ceiling,
		"fuzzy.prefix_ceiling":          h.Fuzzy.PrefixCeiling,
		"fuzzy.suffix_ceiling":          h.Fuzzy.SuffixCeiling,
		"fuzzy.contains_ceiling":        h.Fuzzy.ContainsCeiling,
		"fuzzy.levenshtein_ceiling":     h.Fuzzy.LevenshteinCeiling,
		"scorer.heuristic_ceiling":      h.Scorer.HeuristicCeiling,
		"scorer.type_mismatch_penalty":  h.Scorer.TypeMismatchPenalty,
		"scorer.brand_mismatch_penalty": h.Scorer.BrandMismatchPenalty,
		"scorer.price_penalty":          h.Scorer.PricePenalty,
		"scorer.spec_ratio_floor":       h.Scorer.SpecRatioFloor,
	}
	for _, name := range sortedKeys(unit) {
		if v := unit[name]; v <= 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in (0, 1]", name))
		}
	}

	if h.Scorer.SpecRatioCutoff < 0 || h.Scorer.SpecRatioCutoff > 1 {
		errs = append(errs, "scorer.spec_ratio_cutoff must be between 0 and 1")
	}
	if h.Scorer.PriceLowFactor <= 0 || h.Scorer.PriceHighFactor < h.Scorer.PriceLowFactor {
		errs = append(errs, "scorer price factors must satisfy 0 < low <= high")
	}
	for name, band := range h.PriceBands {
		if band.PerTonMin < 0 || band.PerTonMax < band.PerTonMin {
			errs = append(errs, fmt.Sprintf("price_bands.%s must satisfy 0 <= min <= max", name))
		}
	}
	if h.Fuzzy.MinPrefixOverlap < 1 || h.Fuzzy.MinSuffixOverlap < 1 || h.Fuzzy.MinContainsLength < 1 {
		errs = append(errs, "fuzzy overlap minimums must be >= 1")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("matching: heuristics validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// BrandsCompatible reports whether two brands are the same or share a
// platform family. ok is false when either brand is unknown (empty).
func (h *Heuristics) BrandsCompatible(a, b string) (compatible, ok bool) {
	a, b = NormalizeBrand(a), NormalizeBrand(b)
	if a == "" || b == "" {
		return false, false
	}
	if a == b {
		return true, true
	}
	fa, fb := h.brandFamily(a), h.brandFamily(b)
	return fa >= 0 && fa == fb, true
}

func (h *Heuristics) brandFamily(brand string) int {
	for i, fam := range h.BrandFamilies {
		for _, member := range fam {
			if NormalizeBrand(member) == brand {
				return i
			}
		}
	}
	return -1
}

// DetectProductType returns the product-type family whose longest keyword
// occurs as a whole phrase in text, or "" when nothing matches.
func (h *Heuristics) DetectProductType(text string) string {
	padded := " " + phraseText(text) + " "
	if strings.TrimSpace(padded) == "" {
		return ""
	}

	best, bestLen := "", 0
	for _, family := range sortedKeys(h.ProductTypes) {
		// A bare family key ("heat_pump") counts as its own keyword.
		candidates := append([]string{strings.ReplaceAll(family, "_", " ")}, h.ProductTypes[family]...)
		for _, kw := range candidates {
			kw = phraseText(kw)
			if kw == "" || len(kw) <= bestLen {
				continue
			}
			if strings.Contains(padded, " "+kw+" ") {
				best, bestLen = family, len(kw)
			}
		}
	}
	return best
}

// TypesCompatible reports whether two detected product types may describe
// equivalent products. ok is false when either type is unknown.
func (h *Heuristics) TypesCompatible(a, b string) (compatible, ok bool) {
	if a == "" || b == "" {
		return false, false
	}
	if a == b {
		return true, true
	}
	for _, pair := range h.CompatibleTypes {
		if len(pair) < 2 {
			continue
		}
		if (pair[0] == a && pair[1] == b) || (pair[0] == b && pair[1] == a) {
			return true, true
		}
	}
	return false, true
}

// CatalogType resolves the product-type family of a catalog item.
func (h *Heuristics) CatalogType(productType string) string {
	key := strings.ToLower(strings.TrimSpace(productType))
	if _, ok := h.ProductTypes[key]; ok {
		return key
	}
	return h.DetectProductType(productType)
}

// phraseText lowercases and replaces separators with single spaces. "/" is
// kept so "a/c" survives.
func phraseText(s string) string {
	s = strings.ToLower(foldAccents(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '/':
			return r
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
