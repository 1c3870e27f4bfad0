package utils

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DateFormatDDMMYYYY = "DD/MM/YYYY"
	DateFormatMMDDYYYY = "MM/DD/YYYY"
	DateFormatYYYYMMDD = "YYYY-MM-DD"
)

const (
	MultiDatesStatic    = "Static Text"
	MultiDatesAll       = "All"
	MultiDatesFirstLast = "First and Last"
	MultiDatesFirst     = "First"
	MultiDatesLast      = "Last"
)

var dateLayouts = map[string]string{
	DateFormatDDMMYYYY: "02/01/2006",
	DateFormatMMDDYYYY: "01/02/2006",
	DateFormatYYYYMMDD: "2006-01-02",
}

// MultiDateOptions controls how several acquisition dates are rendered in one cell.
type MultiDateOptions struct {
	Format    string
	Text      string
	Separator string
}

// FormatDate renders t with one of the DateFormat* constants. Unknown formats use YYYY-MM-DD.
func FormatDate(t time.Time, format string) string {
	layout, ok := dateLayouts[format]
	if !ok {
		layout = dateLayouts[DateFormatYYYYMMDD]
	}
	return t.Format(layout)
}

// ParseDate parses s written with one of the DateFormat* constants.
func ParseDate(s, format string) (time.Time, error) {
	layout, ok := dateLayouts[format]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown date format %q", format)
	}
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q does not match %s: %w", s, format, err)
	}
	return t, nil
}

// FormatMultiDates renders acquisition dates. A single date is always rendered as is.
func FormatMultiDates(dates []time.Time, dateFormat string, opts MultiDateOptions) string {
	if len(dates) == 0 {
		return ""
	}
	if len(dates) == 1 {
		return FormatDate(dates[0], dateFormat)
	}

	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	formatted := make([]string, len(sorted))
	for i, d := range sorted {
		formatted[i] = FormatDate(d, dateFormat)
	}

	switch opts.Format {
	case MultiDatesStatic:
		return opts.Text
	case MultiDatesFirstLast:
		return formatted[0] + opts.Separator + formatted[len(formatted)-1]
	case MultiDatesFirst:
		return formatted[0]
	case MultiDatesLast:
		return formatted[len(formatted)-1]
	default:
		return strings.Join(formatted, opts.Separator)
	}
}
