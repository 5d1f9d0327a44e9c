package features

import (
	"fmt"
	"sync"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/ua"

	"skuforecast/pkg/contracts/domain"
)

func dayOfMonth(name string, month time.Month, day, from, to int) *cal.Holiday {
	return &cal.Holiday{
		Name:      name,
		Type:      cal.ObservancePublic,
		Month:     month,
		Day:       day,
		StartYear: from,
		EndYear:   to,
		Func:      cal.CalcDayOfMonth,
	}
}

// uaHolidays follows ua.Holidays with the 2023 reform applied: Christmas and
// Victory Day move off the Julian dates from 2024, Statehood Day and Defenders
// Day move to new dates. Observed weekend substitutes are not used.
var uaHolidays = []*cal.Holiday{
	ua.NewYear.Clone(&cal.Holiday{Name: "New Year's Day"}),
	ua.OrthodoxChristmas.Clone(&cal.Holiday{Name: "Orthodox Christmas", EndYear: 2023}),
	ua.WomensDay.Clone(&cal.Holiday{Name: "International Women's Day"}),
	{Name: "Easter", Type: cal.ObservancePublic, Julian: true, Func: cal.CalcEasterOffset},
	ua.OrthodoxPentecostMonday.Clone(&cal.Holiday{Name: "Holy Trinity"}),
	ua.LabourDay.Clone(&cal.Holiday{Name: "Labour Day"}),
	ua.LabourDay2.Clone(&cal.Holiday{Name: "Labour Day"}),
	dayOfMonth("Day of Remembrance and Victory", time.May, 8, 2024, 0),
	ua.VictoryDay.Clone(&cal.Holiday{Name: "Victory Day", EndYear: 2023}),
	ua.ConstitutionDay.Clone(&cal.Holiday{Name: "Constitution Day", StartYear: 1997}),
	dayOfMonth("Statehood Day", time.July, 28, 2022, 2023),
	dayOfMonth("Statehood Day", time.July, 15, 2024, 0),
	ua.IndependenceDay.Clone(&cal.Holiday{Name: "Independence Day"}),
	ua.DefenderOfUkraineDay.Clone(&cal.Holiday{Name: "Defenders Day", EndYear: 2023}),
	dayOfMonth("Defenders Day", time.October, 1, 2024, 0),
	ua.CatholicChristmas.Clone(&cal.Holiday{Name: "Christmas Day", StartYear: 2017}),
}

// countryHolidays lists public holidays per supported country code
var countryHolidays = map[string][]*cal.Holiday{
	"UA": uaHolidays,
}

// Calendar answers holiday lookups for one country plus configured extra dates.
// Years are computed on first use.
type Calendar struct {
	rules []*cal.Holiday
	extra map[time.Time]bool

	mu    sync.Mutex
	years map[int]map[time.Time]string
}

// NewCalendar builds a calendar for country ("none" or "" disables country
// holidays). extra holds additional YYYY-MM-DD holiday dates.
func NewCalendar(country string, extra []string) (*Calendar, error) {
	c := &Calendar{
		extra: make(map[time.Time]bool, len(extra)),
		years: make(map[int]map[time.Time]string),
	}

	switch country {
	case "", "none":
	default:
		rules, ok := countryHolidays[country]
		if !ok {
			return nil, fmt.Errorf("unsupported holiday country %q", country)
		}
		c.rules = rules
	}

	for _, s := range extra {
		d, err := time.Parse(domain.DateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid extra holiday %q: %w", s, err)
		}
		c.extra[d] = true
	}

	return c, nil
}

func (c *Calendar) holidaysIn(year int) map[time.Time]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if days, ok := c.years[year]; ok {
		return days
	}

	days := make(map[time.Time]string)
	for _, h := range c.rules {
		actual, _ := h.Calc(year)
		if actual.IsZero() {
			continue
		}
		// cal returns dates in cal.DefaultLoc
		days[domain.Day(actual)] = h.Name
	}
	c.years[year] = days
	return days
}

// HolidayName returns the holiday falling on d, if any
func (c *Calendar) HolidayName(d time.Time) (string, bool) {
	d = domain.Day(d)
	if name, ok := c.holidaysIn(d.Year())[d]; ok {
		return name, true
	}
	if c.extra[d] {
		return "extra", true
	}
	return "", false
}

// IsHoliday reports whether d is a holiday
func (c *Calendar) IsHoliday(d time.Time) bool {
	_, ok := c.HolidayName(d)
	return ok
}

// IsHolidayOrAdjacent reports whether d, the day before or the day after is a holiday
func (c *Calendar) IsHolidayOrAdjacent(d time.Time) bool {
	return c.IsHoliday(d) || c.IsHoliday(d.AddDate(0, 0, -1)) || c.IsHoliday(d.AddDate(0, 0, 1))
}
