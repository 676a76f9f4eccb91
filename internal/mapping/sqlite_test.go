package mapping

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "mappings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_UpsertAndLookup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	m, err := st.Upsert(ctx, Mapping{
		CompetitorSKU:     "gsx14-0361",
		CompetitorCompany: "Goodman",
		TargetSKU:         "TRN-4TTR4036",
		Confidence:        0.95,
		Source:            "manual",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "GSX140361", m.CompetitorSKU)
	assert.Equal(t, "goodman", m.CompetitorCompany)

	got, err := st.Lookup(ctx, "GSX140361", "goodman")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "TRN-4TTR4036", got.TargetSKU)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_UpsertReplacesTarget(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.Upsert(ctx, Mapping{CompetitorSKU: "A-1", TargetSKU: "OLD", Confidence: 0.9})
	require.NoError(t, err)
	second, err := st.Upsert(ctx, Mapping{CompetitorSKU: "a1", TargetSKU: "NEW", Confidence: 0.8})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "NEW", second.TargetSKU)

	all, err := st.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_LookupPrefersCompanySpecific(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Import(ctx, []Mapping{
		{CompetitorSKU: "X1", TargetSKU: "ANY", Confidence: 0.99},
		{CompetitorSKU: "X1", CompetitorCompany: "Trane", TargetSKU: "TRANE-ONLY", Confidence: 0.9},
	})
	require.NoError(t, err)

	got, err := st.Lookup(ctx, "X1", "trane")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "TRANE-ONLY", got.TargetSKU)

	got, err = st.Lookup(ctx, "X1", "lennox")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ANY", got.TargetSKU)
}

func TestSQLite_LookupMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.Lookup(context.Background(), "NOPE", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ImportIsAtomic(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Import(ctx, []Mapping{
		{CompetitorSKU: "OK-1", TargetSKU: "T1", Confidence: 0.9},
		{CompetitorSKU: "BAD-1", TargetSKU: "T2", Confidence: 1.5},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import row 2")

	all, err := st.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLite_ListFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.Import(ctx, []Mapping{
		{CompetitorSKU: "C", CompetitorCompany: "Trane", TargetSKU: "T1", Confidence: 0.9},
		{CompetitorSKU: "A", CompetitorCompany: "Trane", TargetSKU: "T2", Confidence: 0.9},
		{CompetitorSKU: "B", CompetitorCompany: "Lennox", TargetSKU: "T1", Confidence: 0.9},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	trane, err := st.List(ctx, Filter{Company: "trane"})
	require.NoError(t, err)
	require.Len(t, trane, 2)
	assert.Equal(t, "A", trane[0].CompetitorSKU)

	t1, err := st.List(ctx, Filter{TargetSKU: "T1"})
	require.NoError(t, err)
	assert.Len(t, t1, 2)

	page, err := st.List(ctx, Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "B", page[0].CompetitorSKU)
}

func TestSQLite_Delete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	m, err := st.Upsert(ctx, Mapping{CompetitorSKU: "D-1", TargetSKU: "T", Confidence: 1})
	require.NoError(t, err)
	require.NoError(t, st.Delete(ctx, m.ID))
	assert.ErrorIs(t, st.Delete(ctx, m.ID), ErrNotFound)
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		m    Mapping
		want string
	}{
		{"no sku", Mapping{CompetitorSKU: " - ", TargetSKU: "T", Confidence: 0.5}, "CompetitorSKU"},
		{"no target", Mapping{CompetitorSKU: "A", TargetSKU: "  ", Confidence: 0.5}, "TargetSKU"},
		{"confidence", Mapping{CompetitorSKU: "A", TargetSKU: "T", Confidence: -0.1}, "Confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.m)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.ErrorContains(t, err, "unsupported store driver")
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	_, err = s.Upsert(context.Background(), Mapping{CompetitorSKU: "A", TargetSKU: "B", Confidence: 0.9})
	assert.NoError(t, err)
}
