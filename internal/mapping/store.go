// Package mapping persists confirmed competitor-to-catalog mappings and
// serves them to the matching engine's short-circuit check.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/product-match/internal/matching"
)

// Mapping is a confirmed link from a competitor SKU to one of our SKUs.
// CompetitorCompany may be empty, in which case the mapping applies to any
// company.
type Mapping struct {
	ID                string    `json:"id"`
	CompetitorSKU     string    `json:"competitor_sku" validate:"required"`
	CompetitorCompany string    `json:"competitor_company,omitempty"`
	TargetSKU         string    `json:"target_sku" validate:"required"`
	Confidence        float64   `json:"confidence" validate:"gte=0,lte=1"`
	Source            string    `json:"source,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Filter narrows List results.
type Filter struct {
	Company   string
	TargetSKU string
	Limit     int
	Offset    int
}

// Store defines mapping persistence.
type Store interface {
	// Upsert inserts m or replaces the mapping with the same key. The stored
	// mapping is returned.
	Upsert(ctx context.Context, m Mapping) (*Mapping, error)
	// Import upserts every mapping in one transaction.
	Import(ctx context.Context, ms []Mapping) (int, error)
	// Lookup returns the best mapping for a normalized SKU. A company-specific
	// mapping wins over a wildcard one. It returns nil when none exists.
	Lookup(ctx context.Context, sku, company string) (*Mapping, error)
	List(ctx context.Context, f Filter) ([]Mapping, error)
	Delete(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a mapping id does not exist.
var ErrNotFound = eris.New("mapping not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

var validate = validator.New()

// Normalize puts the mapping key fields in canonical form and validates it.
func Normalize(m Mapping) (Mapping, error) {
	m.CompetitorSKU = matching.NormalizeCode(m.CompetitorSKU)
	m.CompetitorCompany = matching.NormalizeBrand(m.CompetitorCompany)
	m.TargetSKU = strings.TrimSpace(m.TargetSKU)
	m.Source = strings.TrimSpace(m.Source)

	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return m, eris.Wrap(err, "mapping: validate")
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return m, eris.Errorf("mapping: invalid mapping: %s", strings.Join(msgs, "; "))
	}
	return m, nil
}

// Open creates a store for the configured driver and runs its migration.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(driver) {
	case "", "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres", "postgresql":
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("mapping: unsupported store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func listLimit(f Filter) int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
