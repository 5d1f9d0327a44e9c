package features

import (
	"log/slog"
	"sort"
	"time"

	"skuforecast/internal/config"
	"skuforecast/internal/dataprocessing"
	"skuforecast/internal/errors"
	"skuforecast/pkg/contracts/domain"
)

// Builder turns per-SKU sales series into feature rows. Every lag, rolling
// and price feature for a date D is computed from observations strictly
// before D.
type Builder struct {
	lags     []int
	windows  []int
	sentinel string
	calendar *Calendar
	logger   *slog.Logger

	schema        *Schema
	categoryIndex map[string]int
}

// NewBuilder creates a builder from the forecast configuration.
// A nil calendar disables holiday features.
func NewBuilder(cfg config.ForecastConfig, calendar *Calendar) *Builder {
	sentinel := cfg.Sentinel
	if sentinel == "" {
		sentinel = SentinelZero
	}
	return &Builder{
		lags:     append([]int(nil), cfg.Lags...),
		windows:  append([]int(nil), cfg.Windows...),
		sentinel: sentinel,
		calendar: calendar,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger used for build diagnostics
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Schema returns the active schema, nil before BuildTraining or UseSchema
func (b *Builder) Schema() *Schema {
	return b.schema
}

// UseSchema adopts a schema produced by an earlier training run, e.g. one
// stored with a saved model. Its lags, windows and sentinel replace the
// configured ones.
func (b *Builder) UseSchema(s *Schema) error {
	if s == nil {
		return errors.NewFeatureError("nil schema")
	}
	expected := NewSchema(s.Lags, s.Windows, s.Categories, s.Sentinel)
	if len(expected.Columns) != len(s.Columns) {
		return errors.NewFeatureError("schema has %d columns, layout expects %d", len(s.Columns), len(expected.Columns))
	}
	for i := range expected.Columns {
		if expected.Columns[i] != s.Columns[i] {
			return errors.NewFeatureError("schema column %d is %q, layout expects %q", i, s.Columns[i], expected.Columns[i])
		}
	}

	b.lags = append([]int(nil), s.Lags...)
	b.windows = append([]int(nil), s.Windows...)
	if s.Sentinel != "" {
		b.sentinel = s.Sentinel
	}
	b.setSchema(s)
	return nil
}

func (b *Builder) setSchema(s *Schema) {
	b.schema = s
	b.categoryIndex = make(map[string]int, len(s.Categories))
	for i, c := range s.Categories {
		b.categoryIndex[c] = i
	}
}

// BuildTraining builds one row per observation with the observed quantity as
// target, and fixes the schema's category vocabulary from series.
func (b *Builder) BuildTraining(series dataprocessing.Series) (*Dataset, error) {
	if series.Len() == 0 {
		return nil, errors.NewFeatureError("no sales history to build training features from")
	}

	categories := make(map[string]bool)
	for _, sku := range series.SKUs() {
		if c := series.Category(sku); c != "" {
			categories[c] = true
		}
	}
	vocab := make([]string, 0, len(categories))
	for c := range categories {
		vocab = append(vocab, c)
	}
	sort.Strings(vocab)
	b.setSchema(NewSchema(b.lags, b.windows, vocab, b.sentinel))

	f := newFrame(series)
	ds := &Dataset{Schema: b.schema, Rows: make([]Row, 0, series.Len())}
	for _, sku := range series.SKUs() {
		for _, r := range series[sku] {
			target := r.Quantity
			row, err := b.row(f, sku, r.Date, &target)
			if err != nil {
				return nil, err
			}
			ds.Rows = append(ds.Rows, row)
		}
	}

	b.logger.Debug("built training features",
		slog.Int("rows", ds.Len()),
		slog.Int("columns", b.schema.Width()),
		slog.Int("categories", len(vocab)))

	return ds, nil
}

// BuildFuture builds prediction rows for every SKU on every date. Features
// come from known history only, so lags and windows that reach past a SKU's
// last observation fall back to the sentinel or the available subset.
func (b *Builder) BuildFuture(series dataprocessing.Series, dates []time.Time) (*Dataset, error) {
	if b.schema == nil {
		return nil, errors.NewFeatureError("no feature schema: build training features or load a model first")
	}
	if series.Len() == 0 {
		return nil, errors.NewFeatureError("no sales history to forecast from")
	}
	if len(dates) == 0 {
		return nil, errors.NewFeatureError("empty forecast horizon")
	}

	sorted := make([]time.Time, len(dates))
	for i, d := range dates {
		sorted[i] = domain.Day(d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	f := newFrame(series)
	ds := &Dataset{Schema: b.schema, Rows: make([]Row, 0, len(series)*len(sorted))}
	for _, sku := range series.SKUs() {
		obs := series[sku]
		if len(obs) == 0 {
			continue
		}
		last := obs[len(obs)-1].Date
		for _, d := range sorted {
			if !d.After(last) {
				return nil, errors.NewFeatureError("forecast date %s is not after the last observation of %s (%s)",
					d.Format(domain.DateLayout), sku, last.Format(domain.DateLayout)).
					With("sku", sku)
			}
			row, err := b.row(f, sku, d, nil)
			if err != nil {
				return nil, err
			}
			ds.Rows = append(ds.Rows, row)
		}
	}

	return ds, nil
}

// BuildRow builds a single prediction row for sku on date from series
func (b *Builder) BuildRow(series dataprocessing.Series, sku string, date time.Time) (Row, error) {
	if b.schema == nil {
		return Row{}, errors.NewFeatureError("no feature schema: build training features or load a model first")
	}
	if len(series[sku]) == 0 {
		return Row{}, errors.NewFeatureError("no history for sku %s", sku).With("sku", sku)
	}
	return b.row(newFrame(series), sku, domain.Day(date), nil)
}

func (b *Builder) row(f *frame, sku string, date time.Time, target *float64) (Row, error) {
	sf := f.skus[sku]
	day := dayNumber(date)

	// observations [0, k) are strictly before date
	k := sort.Search(len(sf.days), func(i int) bool { return sf.days[i] >= day })

	row := Row{
		SKU:        sku,
		Date:       date,
		Category:   sf.category,
		Values:     make([]float64, b.schema.Width()),
		Target:     target,
		HistoryLen: k,
	}
	if k > 0 {
		row.LatestSource = sf.dates[k-1]
	}

	sentinelSet := false
	var sentinel float64
	fallback := func() float64 {
		if !sentinelSet {
			sentinel = f.prior.sentinel(b.sentinel, sf.category, day)
			sentinelSet = true
		}
		return sentinel
	}

	v := row.Values
	col := b.calendarFeatures(v, date)

	for _, lag := range b.lags {
		lagDay := day - int64(lag)
		j := sort.Search(k, func(i int) bool { return sf.days[i] >= lagDay })
		if j < k && sf.days[j] == lagDay {
			v[col] = sf.quantities[j]
		} else {
			v[col] = fallback()
		}
		col++
	}

	for _, w := range b.windows {
		lo := sort.Search(k, func(i int) bool { return sf.days[i] >= day-int64(w) })
		if n := k - lo; n > 0 {
			sum := sf.prefix[k] - sf.prefix[lo]
			v[col] = sum / float64(n)
			v[col+1] = sum
		} else {
			v[col] = fallback()
			v[col+1] = fallback()
		}
		col += 2
	}

	v[col] = float64(k)
	if k > 0 && sf.hasPrice[k-1] {
		v[col+1] = sf.lastPrice[k-1]
	}
	col += 2

	if idx, ok := b.categoryIndex[sf.category]; ok {
		v[col+idx] = 1
	} else {
		v[col+len(b.schema.Categories)] = 1
	}

	if !row.LatestSource.IsZero() && !row.LatestSource.Before(date) {
		return Row{}, errors.NewFeatureError("leakage: row %s/%s consumed data from %s",
			sku, date.Format(domain.DateLayout), row.LatestSource.Format(domain.DateLayout)).
			With("sku", sku)
	}

	return row, nil
}

// calendarFeatures fills the calendar columns and returns the next column
func (b *Builder) calendarFeatures(v []float64, date time.Time) int {
	weekday := (int(date.Weekday()) + 6) % 7 // Monday = 0
	month := int(date.Month())

	v[0] = float64(weekday)
	v[1] = float64(month)
	v[2] = float64((month-1)/3 + 1)
	v[3] = float64(date.Day())
	if weekday >= 5 {
		v[4] = 1
	}
	if b.calendar != nil {
		if b.calendar.IsHoliday(date) {
			v[5] = 1
		}
		if b.calendar.IsHolidayOrAdjacent(date) {
			v[6] = 1
		}
	}
	return len(calendarColumns)
}

// frame indexes a series for repeated row construction
type frame struct {
	skus  map[string]*skuFrame
	prior *priorMeans
}

type skuFrame struct {
	category   string
	days       []int64
	dates      []time.Time
	quantities []float64
	prefix     []float64
	lastPrice  []float64
	hasPrice   []bool
}

func newFrame(series dataprocessing.Series) *frame {
	f := &frame{
		skus:  make(map[string]*skuFrame, len(series)),
		prior: newPriorMeans(series),
	}

	for sku, obs := range series {
		sf := &skuFrame{
			category:   series.Category(sku),
			days:       make([]int64, len(obs)),
			dates:      make([]time.Time, len(obs)),
			quantities: make([]float64, len(obs)),
			prefix:     make([]float64, len(obs)+1),
			lastPrice:  make([]float64, len(obs)),
			hasPrice:   make([]bool, len(obs)),
		}
		for i, r := range obs {
			sf.days[i] = dayNumber(r.Date)
			sf.dates[i] = r.Date
			sf.quantities[i] = r.Quantity
			sf.prefix[i+1] = sf.prefix[i] + r.Quantity
			switch {
			case r.Price != nil:
				sf.lastPrice[i], sf.hasPrice[i] = *r.Price, true
			case i > 0:
				sf.lastPrice[i], sf.hasPrice[i] = sf.lastPrice[i-1], sf.hasPrice[i-1]
			}
		}
		f.skus[sku] = sf
	}

	return f
}

// dayNumber returns the number of days since the Unix epoch for t's calendar day
func dayNumber(t time.Time) int64 {
	return domain.Day(t).Unix() / 86400
}
