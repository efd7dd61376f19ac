// Package period turns report filters (today, yesterday, last N days, a
// date, a date range, a month) into half-open time windows in the
// business's local time.
package period

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mercadoforte/backend-caixa/internal/common"
)

// Filter names accepted in the "period" query parameter.
const (
	Today     = "today"
	Yesterday = "yesterday"
	Last7     = "last7"
	Last30    = "last30"
	Date      = "date"
	Between   = "range"
	Month     = "month"
)

const dateLayout = "2006-01-02"

// Range is the window [From, To).
type Range struct {
	Name string    `json:"period"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the window.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Calendar decides where a day starts and how far "today" reaches.
// TodayEnd is measured from local midnight, so 35h closes today's window at
// 11:00 of the next day.
type Calendar struct {
	Location *time.Location
	DayStart time.Duration
	TodayEnd time.Duration
}

// BusinessDay is the calendar sales reports use: the shop's day opens at
// 05:00 and late sales up to 11:00 the next morning still count as today.
func BusinessDay(loc *time.Location) Calendar {
	return Calendar{Location: loc, DayStart: 5 * time.Hour, TodayEnd: 35 * time.Hour}
}

// CalendarDay is a plain midnight-to-midnight calendar.
func CalendarDay(loc *time.Location) Calendar {
	return Calendar{Location: loc, TodayEnd: 24 * time.Hour}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Calendar) midnight(t time.Time) time.Time {
	t = t.In(c.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc())
}

func (c Calendar) dayStart(day time.Time) time.Time {
	return day.Add(c.DayStart)
}

// Resolve builds the named window relative to now.
func (c Calendar) Resolve(name string, now time.Time) (Range, error) {
	today := c.midnight(now)
	switch name {
	case "", Today:
		return Range{Name: Today, From: c.dayStart(today), To: today.Add(c.TodayEnd)}, nil
	case Yesterday:
		prev := today.AddDate(0, 0, -1)
		return Range{Name: Yesterday, From: c.dayStart(prev), To: c.dayStart(today)}, nil
	case Last7:
		return c.lastDays(Last7, 7, now, today), nil
	case Last30:
		return c.lastDays(Last30, 30, now, today), nil
	default:
		return Range{}, common.Validation("unknown period", map[string]any{"period": name})
	}
}

func (c Calendar) lastDays(name string, days int, now, today time.Time) Range {
	return Range{Name: name, From: now.In(c.loc()).AddDate(0, 0, -days), To: today.Add(c.TodayEnd)}
}

// Day is the business day starting on the given date.
func (c Calendar) Day(date string) (Range, error) {
	day, err := c.parseDate("date", date)
	if err != nil {
		return Range{}, err
	}
	return Range{Name: Date, From: c.dayStart(day), To: c.dayStart(day.AddDate(0, 0, 1))}, nil
}

// Between covers every business day from..to inclusive.
func (c Calendar) Between(from, to string) (Range, error) {
	start, err := c.parseDate("from", from)
	if err != nil {
		return Range{}, err
	}
	end, err := c.parseDate("to", to)
	if err != nil {
		return Range{}, err
	}
	if end.Before(start) {
		return Range{}, common.Validation("to must not be before from", map[string]any{"from": from, "to": to})
	}
	return Range{Name: Between, From: c.dayStart(start), To: c.dayStart(end.AddDate(0, 0, 1))}, nil
}

// Month covers a calendar month.
func (c Calendar) Month(month, year int) (Range, error) {
	if month < 1 || month > 12 {
		return Range{}, common.Validation("month must be between 1 and 12", map[string]any{"month": month})
	}
	if year < 2000 || year > 9999 {
		return Range{}, common.Validation("year is out of range", map[string]any{"year": year})
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, c.loc())
	return Range{Name: Month, From: start, To: start.AddDate(0, 1, 0)}, nil
}

func (c Calendar) parseDate(field, value string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), c.loc())
	if err != nil {
		return time.Time{}, common.Validation(field+" must be a date in YYYY-MM-DD format", map[string]any{"field": field})
	}
	return day, nil
}

// FromQuery reads period, date, from, to, month and year. An explicit date
// or range wins over the named period; no filter at all means today.
func (c Calendar) FromQuery(q url.Values, now time.Time) (Range, error) {
	name := strings.ToLower(strings.TrimSpace(q.Get("period")))
	switch {
	case q.Get("date") != "" || name == Date:
		return c.Day(q.Get("date"))
	case q.Get("from") != "" || q.Get("to") != "" || name == Between:
		return c.Between(q.Get("from"), q.Get("to"))
	case q.Get("month") != "" || name == Month:
		month, err := strconv.Atoi(strings.TrimSpace(q.Get("month")))
		if err != nil {
			return Range{}, common.Validation("month must be a number", map[string]any{"field": "month"})
		}
		year := now.In(c.loc()).Year()
		if raw := strings.TrimSpace(q.Get("year")); raw != "" {
			if year, err = strconv.Atoi(raw); err != nil {
				return Range{}, common.Validation("year must be a number", map[string]any{"field": "year"})
			}
		}
		return c.Month(month, year)
	default:
		return c.Resolve(name, now)
	}
}
