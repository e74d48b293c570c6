package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storescout/internal/model"
)

func ptr(v float64) *float64 { return &v }

func TestFilter(t *testing.T) {
	stores := []model.Store{
		{Name: "Named only"},
		{Address: "1 Main St"},
		{City: "Springfield"},
		{Latitude: ptr(1), Longitude: ptr(2)},
		{Latitude: ptr(1)},     // half a coordinate pair identifies nothing
		{Phone: "+1 555 0100"}, // phone alone identifies nothing
		{},
	}

	got := Filter(stores)
	require.Len(t, got, 4)
	assert.Equal(t, "Named only", got[0].Name)
}

func TestDedupeCaseInsensitive(t *testing.T) {
	stores := []model.Store{
		{Name: "Acme", Address: "1 Main St", City: "Springfield", Source: model.SourceJSONLD},
		{Name: "acme", Address: "1 MAIN ST", City: "springfield", Source: model.SourceDynamicAPI},
		{Name: "Acme", Address: "2 Side St", City: "Springfield"},
	}

	got := Dedupe(stores)
	require.Len(t, got, 2)
	assert.Equal(t, model.SourceJSONLD, got[0].Source, "first observation wins")
	assert.Equal(t, "2 Side St", got[1].Address)
}

func TestDedupeIsIdempotent(t *testing.T) {
	stores := []model.Store{
		{Name: "A", City: "X"},
		{Name: "a", City: "x"},
		{Name: "B"},
	}
	once := Dedupe(stores)
	twice := Dedupe(once)
	assert.Equal(t, once, twice)
}

func TestDedupePreservesNearDuplicates(t *testing.T) {
	stores := []model.Store{
		{Name: "Acme Store", Address: "1 Main St"},
		{Name: "Acme Store", Address: "1 Main Street"},
	}
	assert.Len(t, Dedupe(stores), 2, "exact-match key, not fuzzy matching")
}

func TestSummarize(t *testing.T) {
	stores := []model.Store{
		{Name: "A", Source: model.SourceJSONLD, Latitude: ptr(1), Longitude: ptr(2)},
		{Name: "B", Source: model.SourceJSONLD},
		{Name: "C", Source: model.SourceDynamicAPI, Latitude: ptr(3), Longitude: ptr(4)},
	}

	s := Summarize("https://example.com/stores", stores)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.BySource[model.SourceJSONLD])
	assert.Equal(t, 1, s.BySource[model.SourceDynamicAPI])
	assert.Equal(t, 2, s.WithCoordinates)
	assert.Equal(t, "https://example.com/stores", s.URL)
}

func TestEnhance(t *testing.T) {
	stores := []model.Store{
		{Name: "  Acme \n Store ", City: "null", Phone: "N/A", Address: "1  Main   St"},
	}
	got := Enhance(stores)
	require.Len(t, got, 1)
	assert.Equal(t, "Acme Store", got[0].Name)
	assert.Equal(t, "", got[0].City)
	assert.Equal(t, "", got[0].Phone)
	assert.Equal(t, "1 Main St", got[0].Address)
}
