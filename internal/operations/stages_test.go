package operations

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforecast/internal/config"
	"skuforecast/internal/dataprocessing"
	"skuforecast/internal/errors"
	"skuforecast/internal/shared/testutil"
)

func TestPostProcessor(t *testing.T) {
	summaries := []dataprocessing.SKUSummary{
		{SKU: "A", Category: "x", Observations: 10, Total: 100},
		{SKU: "B", Category: "y", Observations: 10, Total: 20},
		{SKU: "R1", Category: "x", Observations: 2, Total: 10, Rare: true},
		{SKU: "R2", Observations: 1, Total: 2, Rare: true},
	}
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		policy string
		clamp  bool
		sku    string
		pred   float64
		want   float64
	}{
		{"model policy keeps prediction", "model", true, "R1", 3, 3},
		{"rare sku uses category mean", "fallback", true, "R1", 3, 110.0 / 12.0},
		{"rare sku without category uses global mean", "fallback", true, "R2", 3, 132.0 / 23.0},
		{"frequent sku keeps prediction", "fallback", true, "A", 7, 7},
		{"negative clamped", "model", true, "A", -2, 0},
		{"negative kept without clamp", "model", false, "A", -2, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Forecast
			cfg.RareSKUPolicy = tt.policy
			cfg.ClampNegative = tt.clamp

			p := newPostProcessor(cfg, summaries)
			got, err := p.apply(tt.sku, day, tt.pred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestPostProcessor_NonFinite(t *testing.T) {
	p := newPostProcessor(config.Default().Forecast, nil)
	_, err := p.apply("A", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), math.NaN())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindPrediction))
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	first := testutil.WriteFile(t, dir, "a.csv", "sku_id,date,quantity\nA,2024-01-01,1\nA,2024-01-02,2\n")
	second := testutil.WriteFile(t, dir, "b.csv", "sku_id,date,quantity\nB,2024-01-01,3\n")
	broken := testutil.WriteFile(t, dir, "c.csv", "sku_id,date,quantity\nC,yesterday,3\n")

	records, err := loadAll(context.Background(), nil, []string{second, first})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "B", records[0].SKU)
	assert.Equal(t, "A", records[1].SKU)

	_, err = loadAll(context.Background(), nil, []string{first, broken})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindParse))
}
