package features

import (
	"sort"

	"skuforecast/internal/dataprocessing"
)

// Sentinel policies for lag and rolling features with no history
const (
	SentinelZero         = "zero"
	SentinelGlobalMean   = "global_mean"
	SentinelCategoryMean = "category_mean"
)

// cumulative holds running totals over ascending day numbers
type cumulative struct {
	days  []int64
	sums  []float64
	count []int
}

func (c *cumulative) add(day int64, q float64) {
	n := len(c.days)
	if n > 0 && c.days[n-1] == day {
		c.sums[n-1] += q
		c.count[n-1]++
		return
	}
	var sum float64
	var cnt int
	if n > 0 {
		sum, cnt = c.sums[n-1], c.count[n-1]
	}
	c.days = append(c.days, day)
	c.sums = append(c.sums, sum+q)
	c.count = append(c.count, cnt+1)
}

// meanBefore returns the mean of all quantities on days strictly before day
func (c *cumulative) meanBefore(day int64) (float64, bool) {
	i := sort.Search(len(c.days), func(i int) bool { return c.days[i] >= day })
	if i == 0 {
		return 0, false
	}
	return c.sums[i-1] / float64(c.count[i-1]), true
}

// priorMeans answers global and per-category means using only earlier dates
type priorMeans struct {
	global     cumulative
	categories map[string]*cumulative
}

func newPriorMeans(series dataprocessing.Series) *priorMeans {
	type point struct {
		day      int64
		quantity float64
		category string
	}

	var points []point
	for _, sku := range series.SKUs() {
		category := series.Category(sku)
		for _, r := range series[sku] {
			points = append(points, point{day: dayNumber(r.Date), quantity: r.Quantity, category: category})
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].day < points[j].day })

	p := &priorMeans{categories: make(map[string]*cumulative)}
	for _, pt := range points {
		p.global.add(pt.day, pt.quantity)
		if pt.category == "" {
			continue
		}
		c, ok := p.categories[pt.category]
		if !ok {
			c = &cumulative{}
			p.categories[pt.category] = c
		}
		c.add(pt.day, pt.quantity)
	}
	return p
}

// sentinel returns the fallback value for a missing lag or window at day
func (p *priorMeans) sentinel(policy, category string, day int64) float64 {
	switch policy {
	case SentinelCategoryMean:
		if c, ok := p.categories[category]; ok {
			if mean, ok := c.meanBefore(day); ok {
				return mean
			}
		}
		fallthrough
	case SentinelGlobalMean:
		if mean, ok := p.global.meanBefore(day); ok {
			return mean
		}
	}
	return 0
}
