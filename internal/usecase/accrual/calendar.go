package accrual

import (
	"fmt"
	"time"

	"github.com/rickar/cal/v2"
)

const day = 24 * time.Hour

// Calendar decides which local days count toward free time. Day
// classification comes from two business calendars: workweek knows only the
// Monday to Friday week, closures also carries the configured holidays.
type Calendar struct {
	loc      *time.Location
	workweek *cal.BusinessCalendar
	closures *cal.BusinessCalendar
}

// NewCalendar parses holidays as YYYY-MM-DD dates in loc.
func NewCalendar(loc *time.Location, holidays []string) (*Calendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := &Calendar{
		loc:      loc,
		workweek: cal.NewBusinessCalendar(),
		closures: cal.NewBusinessCalendar(),
	}
	for _, h := range holidays {
		d, err := time.ParseInLocation("2006-01-02", h, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		c.closures.AddHoliday(&cal.Holiday{
			Name:      h,
			Type:      cal.ObservancePublic,
			Month:     d.Month(),
			Day:       d.Day(),
			StartYear: d.Year(),
			EndYear:   d.Year(),
			Func:      cal.CalcDayOfMonth,
		})
	}
	return c, nil
}

type exclusions struct {
	weekends bool
	holidays bool
}

func (c *Calendar) chargeable(t time.Time, ex exclusions) bool {
	local := t.In(c.loc)
	if ex.weekends && !c.workweek.IsWorkday(local) {
		return false
	}
	if ex.holidays {
		if actual, observed, _ := c.closures.IsHoliday(local); actual || observed {
			return false
		}
	}
	return true
}

func (c *Calendar) nextMidnight(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, c.loc)
}

// elapsed sums the time between from and to that falls on chargeable days.
func (c *Calendar) elapsed(from, to time.Time, ex exclusions) time.Duration {
	if !to.After(from) {
		return 0
	}
	if !ex.weekends && !ex.holidays {
		return to.Sub(from)
	}

	var total time.Duration
	for cur := from; cur.Before(to); {
		end := c.nextMidnight(cur)
		if end.After(to) {
			end = to
		}
		if c.chargeable(cur, ex) {
			total += end.Sub(cur)
		}
		cur = end
	}
	return total
}

// advance returns the instant at which budget of chargeable time has elapsed since from.
func (c *Calendar) advance(from time.Time, budget time.Duration, ex exclusions) time.Time {
	if !ex.weekends && !ex.holidays {
		return from.Add(budget)
	}

	cur := from
	for budget > 0 {
		end := c.nextMidnight(cur)
		if c.chargeable(cur, ex) {
			span := end.Sub(cur)
			if span >= budget {
				return cur.Add(budget)
			}
			budget -= span
		}
		cur = end
	}
	return cur
}
