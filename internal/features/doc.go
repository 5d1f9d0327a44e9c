// Package features derives model inputs from per-SKU daily sales.
//
// Columns, in schema order:
//
//	day_of_week (0=Monday), month, quarter, day_of_month, is_weekend,
//	is_holiday, is_holiday_or_adjacent
//	lag_<k>                        quantity at D-k
//	rolling_mean_<w>, rolling_sum_<w>  over observations in [D-w, D-1]
//	history_len, last_price
//	category=<c> ..., category=__other__
//
// No feature of a row dated D reads an observation dated D or later. A lag
// with no observation on D-k, and a window holding no observations, take the
// sentinel value: 0, or the mean of all (or same-category) quantities before
// D. A window holding fewer than w observations is aggregated over the ones
// it has.
package features
