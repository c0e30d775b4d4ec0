// Package period handles YYYY-MM billing periods and payout months.
package period

import (
	"errors"
	"time"
)

// Layout is the canonical period format
const Layout = "2006-01"

// ErrInvalid is returned for strings that are not YYYY-MM
var ErrInvalid = errors.New("period must be in YYYY-MM format")

// Parse returns the first instant of the period in UTC
func Parse(s string) (time.Time, error) {
	if len(s) != len(Layout) {
		return time.Time{}, ErrInvalid
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, ErrInvalid
	}
	return t, nil
}

// Valid reports whether s is a well-formed period
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Of formats t as a period in t's own location
func Of(t time.Time) string {
	return t.Format(Layout)
}

// AddMonths shifts a period by n months
func AddMonths(s string, n int) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Of(t.AddDate(0, n, 0)), nil
}

// End returns the last period of a run of duration periods starting at start
func End(start string, duration int) (string, error) {
	if duration < 1 {
		return "", errors.New("duration must be at least 1")
	}
	return AddMonths(start, duration-1)
}

// Within reports whether p lies in [start, end]. An empty end is open.
func Within(p, start, end string) bool {
	if p < start {
		return false
	}
	return end == "" || p <= end
}

// Range lists every period from start to end inclusive
func Range(start, end string) ([]string, error) {
	from, err := Parse(start)
	if err != nil {
		return nil, err
	}
	to, err := Parse(end)
	if err != nil {
		return nil, err
	}
	var out []string
	for t := from; !t.After(to); t = t.AddDate(0, 1, 0) {
		out = append(out, Of(t))
	}
	return out, nil
}
