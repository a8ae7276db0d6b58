// Package clock holds the small amount of wall-clock arithmetic betterrest needs:
// HH:MM parsing, seconds-since-midnight encoding and short time-of-day formatting.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MinutesPerDay = 1440

	Layout24h = "15:04"
	Layout12h = "3:04 PM"
)

// LayoutFor maps a configured time format ("24h" or "12h") to a time layout.
func LayoutFor(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "24h":
		return Layout24h, nil
	case "12h":
		return Layout12h, nil
	}
	return "", fmt.Errorf("unknown time format %q, expected 24h or 12h", format)
}

// ParseHHMM returns the minute of day for an "HH:MM" string.
func ParseHHMM(s string) (int, error) {
	t := strings.TrimSpace(s)
	parts := strings.Split(t, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return h*60 + m, nil
}

// FormatMinutes renders a minute of day as "HH:MM", wrapping values outside one day.
func FormatMinutes(min int) string {
	min = mod(min, MinutesPerDay)
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// On returns the instant at minuteOfDay on the calendar date of day in loc.
func On(day time.Time, minuteOfDay int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	d := day.In(loc)
	offset := floorDiv(minuteOfDay, MinutesPerDay)
	minuteOfDay = mod(minuteOfDay, MinutesPerDay)
	return time.Date(d.Year(), d.Month(), d.Day()+offset, minuteOfDay/60, minuteOfDay%60, 0, 0, loc)
}

// SecondsSinceMidnight encodes the hour and minute of t (in loc) as hour*3600 + minute*60.
// Seconds and sub-second parts of t are ignored.
func SecondsSinceMidnight(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	h, m, _ := t.In(loc).Clock()
	return h*3600 + m*60
}

// Format renders t as a short time of day in loc, without any date component.
func Format(t time.Time, loc *time.Location, layout string) string {
	if loc == nil {
		loc = time.Local
	}
	if layout == "" {
		layout = Layout24h
	}
	return t.In(loc).Format(layout)
}

func floorDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	q := a / b
	r := a % b
	if (r != 0) && ((r > 0) != (b > 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
