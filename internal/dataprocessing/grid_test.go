package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforecast/internal/shared/testutil"
	"skuforecast/pkg/contracts/domain"
)

func TestExpandGrid(t *testing.T) {
	d := func(s string) domain.SalesRecord {
		return domain.SalesRecord{Date: testutil.Date(t, s)}
	}

	a2 := d("2024-01-02")
	a2.SKU, a2.Quantity, a2.Category, a2.Price = "A", 5, "snacks", price(2)
	a4 := d("2024-01-04")
	a4.SKU, a4.Quantity, a4.Category, a4.Price = "A", 7, "snacks", price(3)
	b1 := d("2024-01-01")
	b1.SKU, b1.Quantity, b1.Category = "B", 1, "drinks"
	b5 := d("2024-01-05")
	b5.SKU, b5.Quantity = "B", 2

	series := GroupBySKU([]domain.SalesRecord{a2, a4, b1, b5})
	expanded, stats := ExpandGrid(series)

	assert.Equal(t, 2, stats.SKUs)
	assert.Equal(t, 5, stats.Days)
	assert.Equal(t, 4, stats.Observed)
	assert.Equal(t, 6, stats.AddedRecords)
	assert.Equal(t, 10, expanded.Len())

	a := expanded["A"]
	require.Len(t, a, 5)

	// 2024-01-01 is before A's first sale: back-filled
	assert.True(t, a[0].Added)
	assert.Equal(t, 0.0, a[0].Quantity)
	assert.Equal(t, "snacks", a[0].Category)
	assert.Equal(t, 2.0, *a[0].Price)

	assert.False(t, a[1].Added)
	assert.Equal(t, 5.0, a[1].Quantity)

	// 2024-01-03 forward-filled from 2024-01-02
	assert.True(t, a[2].Added)
	assert.Equal(t, 2.0, *a[2].Price)

	// 2024-01-05 forward-filled from 2024-01-04
	assert.True(t, a[4].Added)
	assert.Equal(t, 3.0, *a[4].Price)
	assert.Equal(t, testutil.Date(t, "2024-01-05"), a[4].Date)

	b := expanded["B"]
	require.Len(t, b, 5)
	for _, r := range b[1:4] {
		assert.True(t, r.Added)
		assert.Equal(t, "drinks", r.Category)
		assert.Nil(t, r.Price)
	}

	// the input series is not modified
	assert.Len(t, series["A"], 2)
}

func TestExpandGrid_Empty(t *testing.T) {
	expanded, stats := ExpandGrid(Series{})
	assert.Empty(t, expanded)
	assert.Zero(t, stats.Days)
}
