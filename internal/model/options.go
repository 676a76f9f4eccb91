package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// Tolerances are the allowed numeric differences per specification field.
type Tolerances struct {
	Tonnage float64 `json:"tonnage" yaml:"tonnage" mapstructure:"tonnage" validate:"gte=0"`
	SEER    float64 `json:"seer" yaml:"seer" mapstructure:"seer" validate:"gte=0"`
	SEER2   float64 `json:"seer2" yaml:"seer2" mapstructure:"seer2" validate:"gte=0"`
	AFUE    float64 `json:"afue" yaml:"afue" mapstructure:"afue" validate:"gte=0"`
	HSPF    float64 `json:"hspf" yaml:"hspf" mapstructure:"hspf" validate:"gte=0"`
}

// DefaultTolerances returns the standard tolerance windows.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Tonnage: 0.5,
		SEER:    2.0,
		SEER2:   2.0,
		AFUE:    2.0,
		HSPF:    0.5,
	}
}

// Scale multiplies every window by f.
func (t Tolerances) Scale(f float64) Tolerances {
	return Tolerances{
		Tonnage: t.Tonnage * f,
		SEER:    t.SEER * f,
		SEER2:   t.SEER2 * f,
		AFUE:    t.AFUE * f,
		HSPF:    t.HSPF * f,
	}
}

// WithDefaults fills every unset (zero) window from DefaultTolerances. A
// window cannot be switched off by omitting it.
func (t Tolerances) WithDefaults() Tolerances {
	d := DefaultTolerances()
	fill := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&t.Tonnage, d.Tonnage)
	fill(&t.SEER, d.SEER)
	fill(&t.SEER2, d.SEER2)
	fill(&t.AFUE, d.AFUE)
	fill(&t.HSPF, d.HSPF)
	return t
}

// MatchingOptions controls a single matching request.
type MatchingOptions struct {
	Strategies          []string   `json:"strategies" yaml:"strategies" mapstructure:"strategies" validate:"required,min=1,dive,required"`
	ConfidenceThreshold float64    `json:"confidence_threshold" yaml:"confidence_threshold" mapstructure:"confidence_threshold" validate:"gte=0,lte=1"`
	MaxResults          int        `json:"max_results" yaml:"max_results" mapstructure:"max_results" validate:"gte=1"`
	Tolerances          Tolerances `json:"tolerances" yaml:"tolerances" mapstructure:"tolerances"`
	StrictMode          bool       `json:"strict_mode" yaml:"strict_mode" mapstructure:"strict_mode"`
}

// Enabled reports whether the named strategy is switched on.
func (o MatchingOptions) Enabled(name string) bool {
	for _, s := range o.Strategies {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// WithDefaults returns o with unset tolerance windows filled in.
func (o MatchingOptions) WithDefaults() MatchingOptions {
	o.Tolerances = o.Tolerances.WithDefaults()
	return o
}

var validate = validator.New()

// Validate checks the options and returns a single error listing every
// violated constraint.
func (o MatchingOptions) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "model: validate options")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return eris.Errorf("model: invalid matching options: %s", strings.Join(msgs, "; "))
}
