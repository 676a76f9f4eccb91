package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-match/internal/config"
	"github.com/sells-group/product-match/internal/mapping"
	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Log.Level = "info"
	c.Store.Enabled = true
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "match.db")
	c.Collaborators.TimeoutMs = 1000
	c.Collaborators.RetryAttempts = 1
	c.Batch.MaxConcurrency = 4
	c.Server.Port = 8080
	return c
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const catalogCSV = "id,sku,model,brand,product_type,tonnage,seer\n" +
	"1,LEN-036-16,EL16XC1036,Lennox,air_conditioner,3,16\n" +
	"2,TRN-4TTR4036,4TTR4036,Trane,air_conditioner,3,14\n" +
	"3,GSX160361,GSX16-0361,Goodman,air_conditioner,3,16\n"

func TestBuildProduct(t *testing.T) {
	p := buildProduct("X-1", "M1", "Trane", "3 ton", 0, nil)
	assert.Equal(t, "X-1", p.SKU)
	assert.Nil(t, p.Price)
	assert.Nil(t, p.Specifications)
	assert.Equal(t, "cli", p.Source)

	p = buildProduct("X-1", "", "", "", 4200, map[string]string{"seer": "16"})
	require.NotNil(t, p.Price)
	assert.InDelta(t, 4200.0, *p.Price, 1e-9)
	assert.Equal(t, "16", p.Specifications["seer"])
}

func TestInitEngine(t *testing.T) {
	env, err := initEngine(context.Background(), testConfig(t), config.ModeMatch)
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Store)
	assert.NotNil(t, env.Recorder)
	assert.False(t, env.Research)
	assert.Equal(t, matching.DefaultOptions(), env.Options)
}

func TestInitEngine_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Research.Enabled = true

	_, err := initEngine(context.Background(), c, config.ModeMatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "research.anthropic_key")
}

func TestInitEngine_StoreDisabled(t *testing.T) {
	c := testConfig(t)
	c.Store.Enabled = false

	env, err := initEngine(context.Background(), c, config.ModeMatch)
	require.NoError(t, err)
	defer env.Close()
	assert.Nil(t, env.Store)
}

func TestRunMatch_UsesStoredMapping(t *testing.T) {
	ctx := context.Background()
	env, err := initEngine(ctx, testConfig(t), config.ModeMatch)
	require.NoError(t, err)
	defer env.Close()

	catalog, err := loadCatalog(writeTestFile(t, "catalog.csv", catalogCSV))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, addMapping(ctx, env.Store, &out, mapping.Mapping{
		CompetitorSKU: "ZZ-9000", TargetSKU: "GSX160361", Confidence: 0.97, Source: "manual",
	}))
	assert.Contains(t, out.String(), "GSX160361")

	resp, err := runMatch(ctx, env, buildProduct("zz 9000", "", "", "", 0, nil), catalog, env.Options, false)
	require.NoError(t, err)
	assert.True(t, resp.ShortCircuited)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "GSX160361", resp.Matches[0].TargetSKU)
	assert.Equal(t, model.MethodExistingMapping, resp.Matches[0].Method)
}

func TestRunMatch_InvalidInput(t *testing.T) {
	c := testConfig(t)
	c.Store.Enabled = false
	env, err := initEngine(context.Background(), c, config.ModeMatch)
	require.NoError(t, err)

	resp, err := runMatch(context.Background(), env, buildProduct("", "", "", "desc", 0, nil), nil, env.Options, false)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, model.StateFailed, resp.State)
}

func TestProcessBatch(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	c.Store.Enabled = false
	env, err := initEngine(ctx, c, config.ModeMatch)
	require.NoError(t, err)

	catalog, err := loadCatalog(writeTestFile(t, "catalog.csv", catalogCSV))
	require.NoError(t, err)
	products := []model.CompetitorProduct{
		{SKU: "LEN-036-16"},
		{SKU: "GSX160361"},
		{Description: "no identifiers"},
		{SKU: "TRN-4TTR4036"},
	}

	responses, err := processBatch(ctx, env, products, catalog, env.Options, 3, false)
	require.NoError(t, err)
	require.Len(t, responses, 3)
	assert.Equal(t, "LEN-036-16", responses[0].Matches[0].TargetSKU)
	assert.Equal(t, "GSX160361", responses[1].Matches[0].TargetSKU)
	assert.Equal(t, model.StateFailed, responses[2].State)

	none, err := processBatch(ctx, env, nil, catalog, env.Options, 0, false)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestImportMappings(t *testing.T) {
	ctx := context.Background()
	st, err := openStore(ctx, testConfig(t))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	path := writeTestFile(t, "mappings.csv", "competitor_sku,competitor_company,target_sku,confidence\n"+
		"AS-4A7A4036,American Standard,TRN-4TTR4036,0.9\n"+
		"GDM-1,,GSX160361,\n")
	n, err := importMappings(ctx, st, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ms, err := st.List(ctx, mapping.Filter{})
	require.NoError(t, err)
	require.Len(t, ms, 2)

	var out bytes.Buffer
	require.NoError(t, printMappings(&out, ms))
	assert.Contains(t, out.String(), "AS4A7A4036")
	assert.Contains(t, out.String(), "*")

	_, err = importMappings(ctx, st, writeTestFile(t, "empty.csv", "competitor_sku,target_sku\n"))
	assert.Error(t, err)
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := loadCatalog("")
	assert.Error(t, err)

	_, err = loadCatalog(writeTestFile(t, "empty.csv", "sku\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no products")
}

func TestApplyProfile(t *testing.T) {
	base := matching.DefaultOptions()
	got, err := applyProfile(base, "")
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = applyProfile(base, "strict")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 3, got.MaxResults)

	_, err = applyProfile(base, "bogus")
	assert.Error(t, err)
}

func TestWriteResponses(t *testing.T) {
	responses := []*model.MatchingResponse{{
		Competitor: model.CompetitorProduct{SKU: "LEN-036-16"},
		Matches: []model.MatchCandidate{{
			TargetSKU: "LEN-036-16", Confidence: 0.98, Method: model.MethodExactSKU, Strategy: "exact",
			Reasoning: []string{"normalized sku match"},
		}},
		Confidence: model.ConfidenceHigh,
		State:      model.StateComplete,
	}, {
		Competitor: model.CompetitorProduct{SKU: "NOPE"},
		Confidence: model.ConfidenceNone,
		State:      model.StateComplete,
	}}

	var table bytes.Buffer
	require.NoError(t, printMatch(&table, responses[0], "table", true))
	assert.Contains(t, table.String(), "COMPETITOR")
	assert.Contains(t, table.String(), "0.980 (high)")
	assert.Contains(t, table.String(), "normalized sku match")

	var all bytes.Buffer
	require.NoError(t, writeResponses(&all, "table", responses))
	lines := strings.Split(strings.TrimSpace(all.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[3], "none")

	var js bytes.Buffer
	require.NoError(t, writeResponses(&js, "json", responses))
	assert.True(t, strings.HasPrefix(js.String(), "["))

	var csvOut bytes.Buffer
	require.NoError(t, writeResponses(&csvOut, "csv", responses))
	assert.Contains(t, csvOut.String(), "request_id")

	assert.Error(t, writeResponses(&bytes.Buffer{}, "xml", responses))
}

func TestPrintProfiles(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printProfiles(&out, matching.NewEngine(nil, nil)))
	for _, want := range []string{"default", "strict", "permissive", "exact", "brand_translation", "price_band"} {
		assert.Contains(t, out.String(), want)
	}
}
