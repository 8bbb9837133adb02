// Package dateutils parses the calendar dates printed by banks in notifications and statements.
package dateutils

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts found in bank exports and notification emails.
const (
	DateLayoutISO       = "2006-01-02"
	DateLayoutEuropean  = "02.01.2006"
	DateLayoutShortEU   = "02.01.06"
	DateLayoutSlashEU   = "02/01/2006"
	DateLayoutFull      = "2006-01-02 15:04:05"
	DateLayoutWithMonth = "2-Jan-2006"
)

// CommonFormats is tried in order when no explicit layout is configured.
// Day-first layouts come before month-first ones.
var CommonFormats = []string{
	DateLayoutISO,
	DateLayoutEuropean,
	"2.1.2006",
	DateLayoutShortEU,
	DateLayoutSlashEU,
	"02-01-2006",
	DateLayoutFull,
	time.RFC3339,
	DateLayoutWithMonth,
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseDate parses dateStr with the first matching CommonFormats layout.
// It returns the calendar day in UTC and the layout that matched.
func ParseDate(dateStr string) (time.Time, string, error) {
	return ParseDateWithLayouts(dateStr, CommonFormats...)
}

// ParseDateWithLayouts is ParseDate restricted to the given layouts.
func ParseDateWithLayouts(dateStr string, layouts ...string) (time.Time, string, error) {
	clean := CleanDateString(dateStr)
	if clean == "" {
		return time.Time{}, "", fmt.Errorf("unable to parse date: empty value")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return ToCalendarDay(t), layout, nil
		}
	}
	return time.Time{}, "", fmt.Errorf("unable to parse date: %s", dateStr)
}

// CleanDateString trims dateStr and collapses inner whitespace runs into one space.
func CleanDateString(dateStr string) string {
	return strings.Join(strings.Fields(dateStr), " ")
}

// ToCalendarDay keeps the calendar day of t as seen in its own location, at midnight UTC.
func ToCalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ToISODate formats date as YYYY-MM-DD, or "" for the zero time.
func ToISODate(date time.Time) string {
	if date.IsZero() {
		return ""
	}
	return date.Format(DateLayoutISO)
}
