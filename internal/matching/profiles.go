package matching

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-match/internal/model"
)

// Profile names.
const (
	ProfileDefault    = "default"
	ProfileStrict     = "strict"
	ProfilePermissive = "permissive"
)

// profiles differ only in threshold, result cap and tolerance windows.
var profiles = map[string]func() model.MatchingOptions{
	ProfileDefault: func() model.MatchingOptions {
		return model.MatchingOptions{
			Strategies:          append([]string(nil), DefaultStrategies...),
			ConfidenceThreshold: 0.5,
			MaxResults:          10,
			Tolerances:          model.DefaultTolerances(),
		}
	},
	ProfileStrict: func() model.MatchingOptions {
		return model.MatchingOptions{
			Strategies:          append([]string(nil), DefaultStrategies...),
			ConfidenceThreshold: 0.75,
			MaxResults:          3,
			Tolerances:          model.DefaultTolerances().Scale(0.5),
		}
	},
	ProfilePermissive: func() model.MatchingOptions {
		return model.MatchingOptions{
			Strategies:          append([]string(nil), DefaultStrategies...),
			ConfidenceThreshold: 0.3,
			MaxResults:          25,
			Tolerances:          model.DefaultTolerances().Scale(2),
		}
	},
}

// ProfileOptions returns the options of a named profile. Names are
// case-insensitive; "" selects the default profile.
func ProfileOptions(name string) (model.MatchingOptions, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = ProfileDefault
	}
	fn, ok := profiles[key]
	if !ok {
		return model.MatchingOptions{}, eris.Wrapf(ErrUnknownProfile, "matching: profile %q", name)
	}
	return fn(), nil
}

// DefaultOptions returns the default profile's options.
func DefaultOptions() model.MatchingOptions {
	return profiles[ProfileDefault]()
}

// ProfileNames lists the available profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
