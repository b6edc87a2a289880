package timeseries

import (
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// Day type labels emitted by DayType.
const (
	DayTypeWorkday = "workday"
	DayTypeOffday  = "offday"
	DayTypeHoliday = "holiday"
)

// Weekday derives a categorical covariate of lowercase weekday names aligned
// with the input timestamps.
func Weekday(t []time.Time) []string {
	vals := make([]string, len(t))
	for i, ts := range t {
		vals[i] = strings.ToLower(ts.Weekday().String())
	}
	return vals
}

// NewBusinessCalendar returns a business calendar preloaded with US holidays.
func NewBusinessCalendar() *cal.BusinessCalendar {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(us.Holidays...)
	return c
}

// DayType derives a categorical covariate classifying each timestamp as a
// workday, weekend offday, or observed holiday. A nil calendar uses the US
// business calendar.
func DayType(t []time.Time, c *cal.BusinessCalendar) []string {
	if c == nil {
		c = NewBusinessCalendar()
	}
	vals := make([]string, len(t))
	for i, ts := range t {
		_, observed, _ := c.IsHoliday(ts)
		switch {
		case observed:
			vals[i] = DayTypeHoliday
		case c.IsWorkday(ts):
			vals[i] = DayTypeWorkday
		default:
			vals[i] = DayTypeOffday
		}
	}
	return vals
}
