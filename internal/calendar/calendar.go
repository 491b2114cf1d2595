// Package calendar is pure whole-day date math. Every calendar day in the
// app is a strict YYYY-MM-DD string; all arithmetic happens in UTC so the
// server's local timezone can never shift which day a task lands on.
package calendar

import (
	"strconv"
	"strings"
	"time"
)

const Layout = "2006-01-02"

// ParseDay validates a strict YYYY-MM-DD string and returns its UTC
// midnight. Components must be all digits; Atoi-isms like a leading "+"
// would let two spellings of one day slip through and become distinct
// dispatch keys. Impossible dates (2024-02-30, 2023-02-29) are rejected by
// constructing the UTC date and checking the components survived: time.Date
// normalizes overflow, so a mismatch means the input named a day that does
// not exist.
func ParseDay(text string) (time.Time, bool) {
	if len(text) != 10 || text[4] != '-' || text[7] != '-' {
		return time.Time{}, false
	}
	year, ok := digits(text[0:4])
	if !ok {
		return time.Time{}, false
	}
	month, ok := digits(text[5:7])
	if !ok {
		return time.Time{}, false
	}
	day, ok := digits(text[8:10])
	if !ok {
		return time.Time{}, false
	}
	if year < 1 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// digits parses an all-digit string; anything else, signs included, fails.
func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Valid reports whether text is a real calendar day.
func Valid(text string) bool {
	_, ok := ParseDay(text)
	return ok
}

// NextDay returns the calendar day after day, crossing month and year
// boundaries. The input must be a valid day; garbage in returns "".
func NextDay(day string) string {
	t, ok := ParseDay(day)
	if !ok {
		return ""
	}
	return t.AddDate(0, 0, 1).Format(Layout)
}

func DayOfWeek(t time.Time) time.Weekday {
	return t.UTC().Weekday()
}

func DayOfMonth(t time.Time) int {
	return t.UTC().Day()
}

func Month(t time.Time) time.Month {
	return t.UTC().Month()
}

// RenderPattern substitutes YYYY, MM and DD tokens (zero-padded) into
// pattern. Anything else, including unknown tokens, passes through as-is.
func RenderPattern(t time.Time, pattern string) string {
	t = t.UTC()
	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); {
		switch {
		case strings.HasPrefix(pattern[i:], "YYYY"):
			b.WriteString(zeroPad(t.Year(), 4))
			i += 4
		case strings.HasPrefix(pattern[i:], "MM"):
			b.WriteString(zeroPad(int(t.Month()), 2))
			i += 2
		case strings.HasPrefix(pattern[i:], "DD"):
			b.WriteString(zeroPad(t.Day(), 2))
			i += 2
		default:
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

func zeroPad(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
