package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/modelarena/internal/domain"
)

func TestCatalog(t *testing.T) {
	t.Run("should resolve every catalog id to complete metadata", func(t *testing.T) {
		for _, id := range domain.CatalogIDs() {
			meta, ok := domain.Lookup(id)
			require.True(t, ok, "id %s", id)
			require.NotEmpty(t, meta.DisplayName)
			require.NotEmpty(t, meta.Provider)
			require.NotEmpty(t, meta.UpstreamName)
			require.Positive(t, meta.ContextWindow)
			require.Positive(t, meta.CostPer1KTokens)
		}
	})

	t.Run("should not resolve unknown ids", func(t *testing.T) {
		_, ok := domain.Lookup("openai-gpt99")
		require.False(t, ok)
	})

	t.Run("result keys should be unique across the catalog", func(t *testing.T) {
		seen := make(map[string]domain.ModelID)
		for _, id := range domain.CatalogIDs() {
			meta, _ := domain.Lookup(id)
			key := meta.ResultKey()
			require.NotContains(t, seen, key)
			seen[key] = id
		}
	})

	t.Run("default models should cover all three providers", func(t *testing.T) {
		defaults := domain.DefaultModels()
		require.Len(t, defaults, 3)

		providers := make(map[string]bool)
		for _, id := range defaults {
			meta, ok := domain.Lookup(id)
			require.True(t, ok)
			providers[meta.Provider] = true
		}
		require.Len(t, providers, 3)
	})
}

func TestEstimateCost(t *testing.T) {
	t.Run("should scale linearly with tokens", func(t *testing.T) {
		require.InDelta(t, 0.01, domain.EstimateCost(1000, 0.01), 1e-12)
		require.InDelta(t, 0.005, domain.EstimateCost(500, 0.01), 1e-12)
		require.Zero(t, domain.EstimateCost(0, 0.01))
	})

	t.Run("sum should not depend on summation order", func(t *testing.T) {
		a := domain.EstimateCost(123, 0.003)
		b := domain.EstimateCost(456, 0.00015)
		c := domain.EstimateCost(789, 0.002)
		require.InDelta(t, a+b+c, c+a+b, 1e-15)
	})
}
