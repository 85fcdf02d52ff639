package core

import (
	"errors"
	"strings"
	"time"
)

// Timeframe is a named preset period selector.
type Timeframe string

const (
	Today       Timeframe = "today"
	Yesterday   Timeframe = "yesterday"
	ThisMonth   Timeframe = "this_month"
	SelectMonth Timeframe = "select_month"
	CustomRange Timeframe = "custom_range"
	Lifetime    Timeframe = "lifetime"
)

// AllBusinesses is the business filter sentinel that disables per-business filtering.
const AllBusinesses = "all"

var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Timeframes lists every supported timeframe in display order.
func Timeframes() []Timeframe {
	return []Timeframe{Today, Yesterday, ThisMonth, SelectMonth, CustomRange, Lifetime}
}

// ParseTimeframe validates a timeframe coming from outside the process.
// An empty value selects ThisMonth.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.TrimSpace(s))
	if tf == "" {
		return ThisMonth, nil
	}
	if !tf.Valid() {
		return "", ErrUnknownTimeframe
	}
	return tf, nil
}

func (t Timeframe) Valid() bool {
	switch t {
	case Today, Yesterday, ThisMonth, SelectMonth, CustomRange, Lifetime:
		return true
	default:
		return false
	}
}

func (t Timeframe) String() string {
	return string(t)
}

type (
	// DateRange is an explicit "YYYY-MM-DD" override. Empty strings mean unset.
	DateRange struct {
		Start string
		End   string
	}

	// Filters is the user's period and business selection.
	Filters struct {
		BusinessID    string
		DateRange     DateRange
		SelectedMonth string
		Timeframe     Timeframe
	}

	// Period is an inclusive [Start, End] interval.
	Period struct {
		Start time.Time
		End   time.Time
	}

	// Resolution pairs the selected period with the preceding one used for
	// trends. Comparable is false when Previous carries no meaning (lifetime).
	Resolution struct {
		Current    Period
		Previous   Period
		Comparable bool
	}
)

// IsSet reports whether either bound of the range was supplied.
func (r DateRange) IsSet() bool {
	return strings.TrimSpace(r.Start) != "" || strings.TrimSpace(r.End) != ""
}

// Business returns the business filter, defaulting to AllBusinesses.
func (f Filters) Business() string {
	if strings.TrimSpace(f.BusinessID) == "" {
		return AllBusinesses
	}
	return f.BusinessID
}

// Contains reports whether t falls within the period, both ends inclusive.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Location is the calendar the period was resolved against.
func (p Period) Location() *time.Location {
	return p.Start.Location()
}

// EpochFloor is the "beginning of time" bound for open-ended periods.
func EpochFloor(loc *time.Location) time.Time {
	return time.Unix(0, 0).In(loc)
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// StartOfMonth returns local midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func dayPeriod(day time.Time) Period {
	return Period{Start: StartOfDay(day), End: EndOfDay(day)}
}

func monthPeriod(first time.Time) Period {
	return Period{Start: first, End: first.AddDate(0, 1, 0).Add(-time.Millisecond)}
}

// ResolvePeriod turns filters into concrete bounds on now's local calendar.
// It never fails: missing or malformed inputs fall back to a default period.
func ResolvePeriod(f Filters, now time.Time) Resolution {
	loc := now.Location()

	if f.DateRange.IsSet() {
		return resolveRange(f.DateRange, now)
	}

	switch f.Timeframe {
	case Today:
		today := StartOfDay(now)
		return Resolution{
			Current:    dayPeriod(today),
			Previous:   dayPeriod(today.AddDate(0, 0, -1)),
			Comparable: true,
		}
	case Yesterday:
		yesterday := StartOfDay(now).AddDate(0, 0, -1)
		return Resolution{
			Current:    dayPeriod(yesterday),
			Previous:   dayPeriod(yesterday.AddDate(0, 0, -1)),
			Comparable: true,
		}
	case SelectMonth:
		first, ok := ParseMonth(f.SelectedMonth, loc)
		if !ok {
			return resolveThisMonth(now)
		}
		return Resolution{
			Current:    monthPeriod(first),
			Previous:   monthPeriod(first.AddDate(0, -1, 0)),
			Comparable: true,
		}
	case Lifetime, CustomRange:
		// custom_range without bounds has nothing to narrow on
		return resolveLifetime(now)
	case ThisMonth:
		return resolveThisMonth(now)
	default:
		return resolveThisMonth(now)
	}
}

func resolveThisMonth(now time.Time) Resolution {
	first := StartOfMonth(now)
	return Resolution{
		Current:    Period{Start: first, End: now},
		Previous:   monthPeriod(first.AddDate(0, -1, 0)),
		Comparable: true,
	}
}

func resolveLifetime(now time.Time) Resolution {
	floor := EpochFloor(now.Location())
	return Resolution{
		Current:    Period{Start: floor, End: EndOfDay(now)},
		Previous:   Period{Start: floor, End: floor},
		Comparable: false,
	}
}

func resolveRange(r DateRange, now time.Time) Resolution {
	loc := now.Location()

	start, hasStart := ParseDay(r.Start, loc)
	if !hasStart {
		start = EpochFloor(loc)
	}
	end := EndOfDay(now)
	if e, ok := ParseDay(r.End, loc); ok {
		end = EndOfDay(e)
	}

	current := Period{Start: start, End: end}
	prevEnd := start.Add(-time.Millisecond)
	return Resolution{
		Current:    current,
		Previous:   Period{Start: prevEnd.Add(-current.Duration()), End: prevEnd},
		Comparable: hasStart && !start.After(end),
	}
}
