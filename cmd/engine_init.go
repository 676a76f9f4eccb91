package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/config"
	"github.com/sells-group/product-match/internal/ingest"
	"github.com/sells-group/product-match/internal/mapping"
	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/metrics"
	"github.com/sells-group/product-match/internal/model"
	"github.com/sells-group/product-match/internal/research"
	"github.com/sells-group/product-match/pkg/anthropic"
)

// engineEnv holds the engine and the collaborators wired into it for the
// match/batch/serve commands.
type engineEnv struct {
	Engine   *matching.Engine
	Store    mapping.Store // nil when the mapping store is disabled
	Recorder *metrics.Recorder
	Options  model.MatchingOptions
	Research bool
}

// Close releases resources held by the engine environment.
func (ee *engineEnv) Close() {
	if ee.Store != nil {
		_ = ee.Store.Close()
	}
}

// initEngine validates c for mode and builds the engine with its
// collaborators. Callers should defer env.Close().
func initEngine(ctx context.Context, c *config.Config, mode string) (*engineEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	h, err := c.Heuristics()
	if err != nil {
		return nil, err
	}
	opts, err := c.MatchingOptions()
	if err != nil {
		return nil, err
	}

	rec := metrics.NewRecorder()
	engine := matching.NewEngine(matching.NewDefaultRegistry(h), matching.NewScorer(h)).
		WithObserver(rec).
		WithBatchConcurrency(c.Batch.MaxConcurrency)
	env := &engineEnv{Engine: engine, Recorder: rec, Options: opts}

	if c.Store.Enabled {
		st, err := mapping.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open mapping store")
		}
		env.Store = st
		engine.WithMappingLookup(mapping.NewLookup(st), c.Guard(matching.CollaboratorMappings))
	} else {
		zap.L().Debug("mapping store disabled, existing-mapping check skipped")
	}

	if c.Research.Enabled {
		client := anthropic.NewClient(c.Research.AnthropicKey)
		enhancer := research.NewEnhancer(client, research.Config{
			Model:         c.Research.Model,
			MaxTokens:     c.Research.MaxTokens,
			RatePerSecond: c.Research.RatePerSecond,
			MaxCandidates: c.Research.MaxCandidates,
		})
		engine.WithEnhancer(enhancer, c.Guard(matching.CollaboratorResearch))
		env.Research = true
		zap.L().Info("research enhancer enabled", zap.String("model", c.Research.Model))
	}

	return env, nil
}

// openStore opens the configured mapping store for the mapping commands.
func openStore(ctx context.Context, c *config.Config) (mapping.Store, error) {
	if err := c.Validate(config.ModeMapping); err != nil {
		return nil, err
	}
	st, err := mapping.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open mapping store")
	}
	return st, nil
}

// loadCatalog reads the catalog file, failing on an empty catalog.
func loadCatalog(path string) ([]model.CatalogProduct, error) {
	if path == "" {
		return nil, eris.New("catalog file is required (--catalog or MATCH_SERVER_CATALOG_FILE)")
	}
	catalog, err := ingest.LoadCatalog(path)
	if err != nil {
		return nil, eris.Wrap(err, "load catalog")
	}
	if len(catalog) == 0 {
		return nil, eris.Errorf("catalog %s has no products", path)
	}
	zap.L().Info("catalog loaded", zap.String("file", path), zap.Int("products", len(catalog)))
	return catalog, nil
}

// applyProfile swaps opts for a named profile when one is given.
func applyProfile(opts model.MatchingOptions, profile string) (model.MatchingOptions, error) {
	if profile == "" {
		return opts, nil
	}
	return matching.ProfileOptions(profile)
}
