// Package downtime parses and evaluates administrator-declared maintenance
// windows of the form "D.M.Y-D.M.Y". The year may be omitted on both sides,
// in which case the interval is anchored to the current year and may span
// into the next one.
package downtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/encops/updatectl/pkg/types"
)

var (
	// ErrFormat indicates a downtime interval string whose numeric fields
	// cannot be parsed into a calendar date.
	ErrFormat = errors.New("malformed downtime interval")

	// ErrInconsistentYears indicates an interval that specifies the year on
	// one side but omits it on the other. The intended year cannot be
	// guessed, so the whole downtime configuration is untrusted.
	ErrInconsistentYears = errors.New("inconsistent use of year in downtime interval")

	// ErrRange indicates an interval whose explicit end date precedes its
	// start date.
	ErrRange = errors.New("downtime ends before it starts")
)

// ParseInterval parses a single interval string. The string is split on a
// single "-" into a start and an end date; an empty end side means a
// single-day interval. Each side consists of dot-separated day, month and
// optional year fields.
//
// If both sides omit the year, the interval is anchored to today's year. If
// the end then precedes the start, the interval is taken to span a year
// boundary and the end year becomes today's year plus one. An explicit end
// before an explicit start is an error, never auto-corrected.
func ParseInterval(raw string, today time.Time) (types.DowntimeInterval, error) {
	iv := types.DowntimeInterval{Raw: strings.TrimSpace(raw)}

	parts := strings.Split(raw, "-")
	if len(parts) != 2 {
		return iv, fmt.Errorf("%w: %q: expected \"start-end\"", ErrFormat, iv.Raw)
	}
	startText, endText := parts[0], parts[1]
	if strings.TrimSpace(endText) == "" {
		endText = startText
	}

	start, startYearOmitted, err := parseDate(startText, today.Year())
	if err != nil {
		return iv, fmt.Errorf("invalid start of downtime %q: %w", iv.Raw, err)
	}
	end, endYearOmitted, err := parseDate(endText, today.Year())
	if err != nil {
		return iv, fmt.Errorf("invalid end of downtime %q: %w", iv.Raw, err)
	}

	if startYearOmitted != endYearOmitted {
		return iv, fmt.Errorf("%w: %q", ErrInconsistentYears, iv.Raw)
	}
	iv.YearOmitted = startYearOmitted

	if end.Before(start) {
		if !iv.YearOmitted {
			return iv, fmt.Errorf("%w: %q", ErrRange, iv.Raw)
		}
		// Written without years and wrapping around new year, as in
		// "20.12.-05.01.": the end belongs to the following year.
		end = end.AddDate(1, 0, 0)
	}

	iv.Start = start
	iv.End = end
	return iv, nil
}

// ParseList parses all interval strings in their given order. The first
// malformed interval aborts parsing: a partially trusted downtime
// configuration must not gate fleet mutations.
func ParseList(raws []string, today time.Time) ([]types.DowntimeInterval, error) {
	intervals := make([]types.DowntimeInterval, 0, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		iv, err := ParseInterval(raw, today)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, nil
}

// ActiveOn returns the first interval containing the given day, in the order
// the intervals were supplied, or nil if no interval matches. Supplied order
// is the tie-break for overlapping intervals.
func ActiveOn(intervals []types.DowntimeInterval, day time.Time) *types.DowntimeInterval {
	day = midnightUTC(day)
	for i := range intervals {
		if intervals[i].Contains(day) {
			return &intervals[i]
		}
	}
	return nil
}

func parseDate(text string, defaultYear int) (time.Time, bool, error) {
	fields := strings.Split(text, ".")
	if len(fields) != 3 {
		return time.Time{}, false, fmt.Errorf("%w: %q: expected day.month.year", ErrFormat, strings.TrimSpace(text))
	}

	day, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: bad day %q", ErrFormat, strings.TrimSpace(fields[0]))
	}
	month, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: bad month %q", ErrFormat, strings.TrimSpace(fields[1]))
	}

	year := defaultYear
	yearOmitted := strings.TrimSpace(fields[2]) == ""
	if !yearOmitted {
		year, err = strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: bad year %q", ErrFormat, strings.TrimSpace(fields[2]))
		}
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components, e.g. 31.04. becomes
	// 01.05.; reject anything that does not round-trip.
	if d.Day() != day || d.Month() != time.Month(month) || d.Year() != year {
		return time.Time{}, false, fmt.Errorf("%w: %q is not a calendar date", ErrFormat, strings.TrimSpace(text))
	}
	return d, yearOmitted, nil
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
