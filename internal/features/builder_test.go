package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforecast/internal/config"
	"skuforecast/internal/dataprocessing"
	"skuforecast/internal/errors"
	"skuforecast/internal/shared/testutil"
	"skuforecast/pkg/contracts/domain"
)

func rec(t *testing.T, sku, date string, q float64, category string) domain.SalesRecord {
	return domain.SalesRecord{SKU: sku, Date: testutil.Date(t, date), Quantity: q, Category: category}
}

func forecastConfig(sentinel string) config.ForecastConfig {
	return config.ForecastConfig{
		Lags:     []int{1, 7},
		Windows:  []int{7, 28},
		Sentinel: sentinel,
	}
}

func value(t *testing.T, ds *Dataset, row Row, name string) float64 {
	t.Helper()
	v, ok := row.Value(ds.Schema, name)
	require.True(t, ok, "missing column %s", name)
	return v
}

func rowAt(t *testing.T, ds *Dataset, sku, date string) Row {
	t.Helper()
	d := testutil.Date(t, date)
	for _, r := range ds.Rows {
		if r.SKU == sku && r.Date.Equal(d) {
			return r
		}
	}
	t.Fatalf("no row for %s on %s", sku, date)
	return Row{}
}

func TestSchemaLayout(t *testing.T) {
	s := NewSchema([]int{1, 7}, []int{7}, []string{"drinks", "snacks"}, SentinelZero)

	assert.Equal(t, []string{
		"day_of_week", "month", "quarter", "day_of_month", "is_weekend", "is_holiday", "is_holiday_or_adjacent",
		"lag_1", "lag_7",
		"rolling_mean_7", "rolling_sum_7",
		"history_len", "last_price",
		"category=drinks", "category=snacks", "category=__other__",
	}, s.Columns)
	assert.Equal(t, 16, s.Width())
	assert.Equal(t, 13, s.categoryOffset())
	assert.Equal(t, -1, s.Index("lag_28"))
}

func TestBuildTraining_LagAndRolling(t *testing.T) {
	series := dataprocessing.GroupBySKU([]domain.SalesRecord{
		rec(t, "A", "2024-01-01", 3, "snacks"),
		rec(t, "A", "2024-01-02", 6, "snacks"),
		rec(t, "A", "2024-01-03", 9, "snacks"),
	})

	b := NewBuilder(forecastConfig(SentinelZero), nil)
	ds, err := b.BuildTraining(series)
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	first := rowAt(t, ds, "A", "2024-01-01")
	assert.Equal(t, 0.0, value(t, ds, first, "lag_1"))
	assert.Equal(t, 0.0, value(t, ds, first, "rolling_mean_7"))
	assert.Equal(t, 0.0, value(t, ds, first, "history_len"))
	assert.True(t, first.LatestSource.IsZero())
	require.NotNil(t, first.Target)
	assert.Equal(t, 3.0, *first.Target)

	third := rowAt(t, ds, "A", "2024-01-03")
	assert.Equal(t, 6.0, value(t, ds, third, "lag_1"))
	assert.Equal(t, 0.0, value(t, ds, third, "lag_7"))
	assert.Equal(t, 4.5, value(t, ds, third, "rolling_mean_7"))
	assert.Equal(t, 9.0, value(t, ds, third, "rolling_sum_7"))
	assert.Equal(t, 2.0, value(t, ds, third, "history_len"))
	assert.Equal(t, testutil.Date(t, "2024-01-02"), third.LatestSource)

	y, err := ds.Targets()
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 6, 9}, y)
}

func TestBuildFuture_RollingUsesAvailableSubset(t *testing.T) {
	series := dataprocessing.GroupBySKU([]domain.SalesRecord{
		rec(t, "A", "2024-01-01", 3, "snacks"),
		rec(t, "A", "2024-01-02", 6, "snacks"),
		rec(t, "A", "2024-01-03", 9, "snacks"),
	})

	b := NewBuilder(forecastConfig(SentinelZero), nil)
	_, err := b.BuildTraining(series)
	require.NoError(t, err)

	ds, err := b.BuildFuture(series, []time.Time{
		testutil.Date(t, "2024-01-05"),
		testutil.Date(t, "2024-01-04"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	// rows are ordered by date
	next := ds.Rows[0]
	assert.Equal(t, testutil.Date(t, "2024-01-04"), next.Date)
	assert.Nil(t, next.Target)
	assert.Equal(t, 9.0, value(t, ds, next, "lag_1"))
	assert.Equal(t, 6.0, value(t, ds, next, "rolling_mean_7"), "mean of the 3 prior observations")
	assert.Equal(t, 18.0, value(t, ds, next, "rolling_sum_7"))
	assert.Equal(t, 6.0, value(t, ds, next, "rolling_mean_28"))
	assert.Equal(t, 3.0, value(t, ds, next, "history_len"))

	// two days ahead: lag_1 reaches past the origin
	after := ds.Rows[1]
	assert.Equal(t, 0.0, value(t, ds, after, "lag_1"))
	assert.Equal(t, 6.0, value(t, ds, after, "rolling_mean_7"))

	_, err = ds.Targets()
	assert.True(t, errors.IsKind(err, errors.KindFeature))
}

func TestBuild_SentinelPolicies(t *testing.T) {
	records := []domain.SalesRecord{
		rec(t, "A", "2024-01-01", 5, "x"),
		rec(t, "B", "2024-01-02", 1, "y"),
		rec(t, "A", "2024-01-03", 7, "x"),
	}

	tests := []struct {
		sentinel string
		wantLag1 float64
	}{
		{SentinelZero, 0},
		{SentinelGlobalMean, 3},   // (5 + 1) / 2
		{SentinelCategoryMean, 5}, // only A is in category x
	}

	for _, tt := range tests {
		t.Run(tt.sentinel, func(t *testing.T) {
			b := NewBuilder(forecastConfig(tt.sentinel), nil)
			ds, err := b.BuildTraining(dataprocessing.GroupBySKU(records))
			require.NoError(t, err)

			row := rowAt(t, ds, "A", "2024-01-03")
			assert.InDelta(t, tt.wantLag1, value(t, ds, row, "lag_1"), 1e-9)
			assert.Equal(t, 5.0, value(t, ds, row, "rolling_mean_7"))

			// nothing precedes the first date: every policy yields 0
			first := rowAt(t, ds, "A", "2024-01-01")
			assert.Equal(t, 0.0, value(t, ds, first, "lag_1"))
		})
	}
}

func TestBuild_CategoryMeanFallsBackToGlobal(t *testing.T) {
	records := []domain.SalesRecord{
		rec(t, "A", "2024-01-01", 4, "x"),
		rec(t, "C", "2024-01-02", 2, "z"),
	}
	b := NewBuilder(forecastConfig(SentinelCategoryMean), nil)
	ds, err := b.BuildTraining(dataprocessing.GroupBySKU(records))
	require.NoError(t, err)

	// no earlier z observations: global mean of A's 4
	row := rowAt(t, ds, "C", "2024-01-02")
	assert.Equal(t, 4.0, value(t, ds, row, "lag_1"))
}

func TestBuild_NoLeakage(t *testing.T) {
	start := testutil.Date(t, "2024-01-01")
	cutoff := start.AddDate(0, 0, 20)

	var base, perturbed []domain.SalesRecord
	for i := 0; i < 40; i++ {
		d := start.AddDate(0, 0, i)
		if i%5 == 3 {
			continue // gaps
		}
		q := float64((i*7)%11 + 1)
		base = append(base, domain.SalesRecord{SKU: "A", Date: d, Quantity: q, Category: "x"})
		base = append(base, domain.SalesRecord{SKU: "B", Date: d, Quantity: q * 2, Category: "y"})

		if !d.Before(cutoff) {
			q *= 100
		}
		perturbed = append(perturbed, domain.SalesRecord{SKU: "A", Date: d, Quantity: q, Category: "x"})
		perturbed = append(perturbed, domain.SalesRecord{SKU: "B", Date: d, Quantity: q * 2, Category: "y"})
	}

	for _, sentinel := range []string{SentinelZero, SentinelGlobalMean, SentinelCategoryMean} {
		t.Run(sentinel, func(t *testing.T) {
			b := NewBuilder(forecastConfig(sentinel), nil)
			dsBase, err := b.BuildTraining(dataprocessing.GroupBySKU(base))
			require.NoError(t, err)
			dsPert, err := b.BuildTraining(dataprocessing.GroupBySKU(perturbed))
			require.NoError(t, err)
			require.Equal(t, dsBase.Len(), dsPert.Len())

			for i, row := range dsBase.Rows {
				if !row.LatestSource.IsZero() {
					assert.True(t, row.LatestSource.Before(row.Date))
				}
				// changing data on or after the cutoff never alters earlier rows
				if !row.Date.After(cutoff) {
					assert.Equal(t, row.Values, dsPert.Rows[i].Values, "%s %s", row.SKU, row.Date)
				}
			}
		})
	}
}

func TestBuild_CalendarAndCategoryColumns(t *testing.T) {
	cal, err := NewCalendar("UA", nil)
	require.NoError(t, err)

	series := dataprocessing.GroupBySKU([]domain.SalesRecord{
		rec(t, "A", "2023-12-31", 1, "snacks"),
		rec(t, "A", "2024-01-01", 1, "snacks"),
		rec(t, "B", "2024-01-06", 1, ""),
	})

	b := NewBuilder(forecastConfig(SentinelZero), cal)
	ds, err := b.BuildTraining(series)
	require.NoError(t, err)
	assert.Equal(t, []string{"snacks"}, ds.Schema.Categories)

	newYear := rowAt(t, ds, "A", "2024-01-01")
	assert.Equal(t, 0.0, value(t, ds, newYear, "day_of_week"))
	assert.Equal(t, 1.0, value(t, ds, newYear, "month"))
	assert.Equal(t, 1.0, value(t, ds, newYear, "quarter"))
	assert.Equal(t, 1.0, value(t, ds, newYear, "is_holiday"))
	assert.Equal(t, 1.0, value(t, ds, newYear, "category=snacks"))
	assert.Equal(t, 0.0, value(t, ds, newYear, "category=__other__"))

	eve := rowAt(t, ds, "A", "2023-12-31")
	assert.Equal(t, 0.0, value(t, ds, eve, "is_holiday"))
	assert.Equal(t, 1.0, value(t, ds, eve, "is_holiday_or_adjacent"))
	assert.Equal(t, 4.0, value(t, ds, eve, "quarter"))
	assert.Equal(t, 31.0, value(t, ds, eve, "day_of_month"))

	saturday := rowAt(t, ds, "B", "2024-01-06")
	assert.Equal(t, 5.0, value(t, ds, saturday, "day_of_week"))
	assert.Equal(t, 1.0, value(t, ds, saturday, "is_weekend"))
	assert.Equal(t, 1.0, value(t, ds, saturday, "category=__other__"))
}

func TestBuild_LastPrice(t *testing.T) {
	p := 2.5
	records := []domain.SalesRecord{
		{SKU: "A", Date: testutil.Date(t, "2024-01-01"), Quantity: 1, Price: &p},
		{SKU: "A", Date: testutil.Date(t, "2024-01-02"), Quantity: 1},
		{SKU: "A", Date: testutil.Date(t, "2024-01-03"), Quantity: 1},
	}
	b := NewBuilder(forecastConfig(SentinelZero), nil)
	ds, err := b.BuildTraining(dataprocessing.GroupBySKU(records))
	require.NoError(t, err)

	assert.Equal(t, 0.0, value(t, ds, rowAt(t, ds, "A", "2024-01-01"), "last_price"))
	assert.Equal(t, 2.5, value(t, ds, rowAt(t, ds, "A", "2024-01-02"), "last_price"))
	assert.Equal(t, 2.5, value(t, ds, rowAt(t, ds, "A", "2024-01-03"), "last_price"))
}

func TestBuild_Errors(t *testing.T) {
	series := dataprocessing.GroupBySKU([]domain.SalesRecord{
		rec(t, "A", "2024-01-01", 1, ""),
		rec(t, "A", "2024-01-02", 1, ""),
	})

	t.Run("empty series", func(t *testing.T) {
		_, err := NewBuilder(forecastConfig(SentinelZero), nil).BuildTraining(dataprocessing.Series{})
		assert.True(t, errors.IsKind(err, errors.KindFeature))
	})

	t.Run("future before schema", func(t *testing.T) {
		_, err := NewBuilder(forecastConfig(SentinelZero), nil).BuildFuture(series, []time.Time{testutil.Date(t, "2024-01-03")})
		assert.True(t, errors.IsKind(err, errors.KindFeature))
	})

	b := NewBuilder(forecastConfig(SentinelZero), nil)
	_, err := b.BuildTraining(series)
	require.NoError(t, err)

	t.Run("horizon inside history", func(t *testing.T) {
		_, err := b.BuildFuture(series, []time.Time{testutil.Date(t, "2024-01-02")})
		assert.True(t, errors.IsKind(err, errors.KindFeature))
	})

	t.Run("empty horizon", func(t *testing.T) {
		_, err := b.BuildFuture(series, nil)
		assert.True(t, errors.IsKind(err, errors.KindFeature))
	})

	t.Run("unknown sku row", func(t *testing.T) {
		_, err := b.BuildRow(series, "Z", testutil.Date(t, "2024-01-03"))
		assert.True(t, errors.IsKind(err, errors.KindFeature))
	})
}

func TestBuildRow_MatchesBuildFuture(t *testing.T) {
	rows := testutil.DailySeries("A", "snacks", testutil.Date(t, "2024-01-01"), 30, func(i int) float64 {
		return math.Mod(float64(i), 4)
	})
	var records []domain.SalesRecord
	for _, r := range rows {
		records = append(records, domain.SalesRecord{SKU: r.SKU, Date: r.Date, Quantity: r.Quantity, Category: r.Category})
	}
	series := dataprocessing.GroupBySKU(records)

	b := NewBuilder(forecastConfig(SentinelGlobalMean), nil)
	_, err := b.BuildTraining(series)
	require.NoError(t, err)

	target := testutil.Date(t, "2024-01-31")
	ds, err := b.BuildFuture(series, []time.Time{target})
	require.NoError(t, err)

	row, err := b.BuildRow(series, "A", target)
	require.NoError(t, err)
	assert.Equal(t, ds.Rows[0].Values, row.Values)
	assert.Equal(t, 30, row.HistoryLen)
}

func TestUseSchema(t *testing.T) {
	b := NewBuilder(forecastConfig(SentinelZero), nil)

	good := NewSchema([]int{2}, []int{3}, []string{"a"}, SentinelGlobalMean)
	require.NoError(t, b.UseSchema(good))
	assert.Equal(t, []int{2}, b.lags)
	assert.Equal(t, SentinelGlobalMean, b.sentinel)
	assert.Same(t, good, b.Schema())

	bad := NewSchema([]int{2}, []int{3}, []string{"a"}, SentinelZero)
	bad.Columns[7] = "lag_9"
	assert.True(t, errors.IsKind(b.UseSchema(bad), errors.KindFeature))

	short := &Schema{Columns: []string{"x"}, Lags: []int{1}}
	assert.Error(t, b.UseSchema(short))
	assert.Error(t, b.UseSchema(nil))
}
