// Package timeutil provides the calendar-date and clock-time arithmetic used
// throughout the scheduling engine.
//
// Dates and times of day are kept as plain calendar values, never as
// UTC-normalised instants. Formatting a Date always yields the same
// YYYY-MM-DD string regardless of the process timezone, so an appointment
// created just before local midnight can never drift onto the wrong day.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the serialization format for calendar dates.
const DateLayout = "2006-01-02"

// ClockLayout is the serialization format for times of day.
const ClockLayout = "15:04"

// MinutesPerDay bounds clock arithmetic to a single calendar date.
const MinutesPerDay = 24 * 60

// Date identifies a local calendar date with no time or zone component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf extracts the local calendar date from an instant.
func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses a YYYY-MM-DD value.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("timeutil: invalid date %q: %w", value, err)
	}
	return DateOf(t), nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns the instant at local midnight of the date in the supplied
// location. A nil location selects time.Local.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Weekday returns the day of week for the date.
func (d Date) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

// AddDays advances the date by n calendar days. Negative values step back.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// Before reports whether d falls strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports whether d falls strictly later than other.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// WeekStart returns the Monday of the week containing the date. Sunday is
// treated as the last day of its week, so its WeekStart is the preceding
// Monday.
func WeekStart(d Date) Date {
	// In Go, Monday == 1 and Sunday == 0.
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// IsWorkday reports whether the date falls on Monday through Friday.
func IsWorkday(d Date) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// AddWorkdays advances the date by n days, skipping Saturdays and Sundays.
// n must be non-negative; the result always lands on a workday.
func AddWorkdays(d Date, n int) Date {
	result := d
	for i := 0; i < n; i++ {
		result = result.AddDays(1)
		for !IsWorkday(result) {
			result = result.AddDays(1)
		}
	}
	return result
}

// NextWorkday returns the first workday strictly after the date.
func NextWorkday(d Date) Date {
	return AddWorkdays(d, 1)
}

// Clock is a time of day expressed as minutes since local midnight.
// The valid range for appointment bounds is [0, MinutesPerDay].
type Clock int

// NewClock builds a Clock from an hour and minute pair.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses a 24-hour HH:MM value. "24:00" is accepted as the
// end-of-day bound, matching Clock.String for MinutesPerDay.
func ParseClock(value string) (Clock, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "24:00" {
		return MinutesPerDay, nil
	}
	t, err := time.Parse(ClockLayout, trimmed)
	if err != nil {
		return 0, fmt.Errorf("timeutil: invalid time %q: %w", value, err)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

// String formats the clock as HH:MM.
func (c Clock) String() string {
	m := int(c)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// AddMinutes shifts the clock by the given number of minutes without
// clamping; callers decide how to treat values outside a single day.
func (c Clock) AddMinutes(minutes int) Clock {
	return c + Clock(minutes)
}

// Valid reports whether the clock lies within a single calendar date.
// MinutesPerDay itself is permitted so an appointment may end exactly at
// midnight.
func (c Clock) Valid() bool {
	return c >= 0 && c <= MinutesPerDay
}

// ClampToDay restricts the clock to the [0, MinutesPerDay] range. Used when
// extending windows by a buffer near the edges of a date.
func (c Clock) ClampToDay() Clock {
	if c < 0 {
		return 0
	}
	if c > MinutesPerDay {
		return MinutesPerDay
	}
	return c
}

// HoursToMinutes converts a fractional hour count to whole minutes,
// rounding to the nearest minute.
func HoursToMinutes(hours float64) int {
	return int(hours*60 + 0.5)
}
