package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforecast/internal/shared/testutil"
	"skuforecast/pkg/contracts/domain"
)

func price(v float64) *float64 { return &v }

func TestGroupBySKU(t *testing.T) {
	d1 := testutil.Date(t, "2024-01-01")
	d2 := testutil.Date(t, "2024-01-02")

	records := []domain.SalesRecord{
		{SKU: "B", Date: d2, Quantity: 1},
		{SKU: "A", Date: d2, Quantity: 5, StoreID: "S1", Category: "snacks"},
		{SKU: "A", Date: d1, Quantity: 2, StoreID: "S1"},
		{SKU: "A", Date: d2, Quantity: 3, StoreID: "S2", Price: price(1.5)},
		{SKU: "A", Date: d1, Quantity: 4, StoreID: "S1", Category: "snacks"},
	}

	series := GroupBySKU(records)
	assert.Equal(t, []string{"A", "B"}, series.SKUs())
	assert.Equal(t, 3, series.Len())

	a := series["A"]
	require.Len(t, a, 2)
	assert.Equal(t, d1, a[0].Date)
	assert.Equal(t, 6.0, a[0].Quantity)
	assert.Equal(t, "snacks", a[0].Category)
	assert.Equal(t, "S1", a[0].StoreID)

	assert.Equal(t, d2, a[1].Date)
	assert.Equal(t, 8.0, a[1].Quantity)
	assert.Empty(t, a[1].StoreID, "stores disagree")
	require.NotNil(t, a[1].Price)
	assert.Equal(t, 1.5, *a[1].Price)

	assert.Equal(t, "snacks", series.Category("A"))
	assert.Empty(t, series.Category("B"))

	first, last, ok := series.DateRange()
	require.True(t, ok)
	assert.Equal(t, d1, first)
	assert.Equal(t, d2, last)
}

func TestSeries_Empty(t *testing.T) {
	series := GroupBySKU(nil)
	assert.Empty(t, series.SKUs())
	_, _, ok := series.DateRange()
	assert.False(t, ok)
	assert.Empty(t, series.Records())
}

func TestSeries_Append(t *testing.T) {
	d1 := testutil.Date(t, "2024-01-01")
	series := GroupBySKU([]domain.SalesRecord{{SKU: "A", Date: d1, Quantity: 1}})

	extended := series.Append(domain.SalesRecord{SKU: "A", Date: d1.AddDate(0, 0, 1), Quantity: 2})
	assert.Len(t, series["A"], 1, "original untouched")
	require.Len(t, extended["A"], 2)
	assert.Equal(t, 2.0, extended["A"][1].Quantity)

	withNew := extended.Append(domain.SalesRecord{SKU: "Z", Date: d1, Quantity: 9})
	assert.Equal(t, []string{"A", "Z"}, withNew.SKUs())
	assert.Len(t, withNew.Records(), 3)
}
