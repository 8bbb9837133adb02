// Package batch provides the sync window and the slicing of insert batches.
package batch

import (
	"fmt"
	"time"

	"fjacquet/budget-sync/internal/models"
)

// MaxSize is the largest batch the budgeting service accepts in one call.
const MaxSize = 50

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastDays returns the window covering the daysBack days before now and now itself.
func LastDays(now time.Time, daysBack int) DateRange {
	if daysBack < 0 {
		daysBack = 0
	}
	end := models.TruncateToDate(now)
	return DateRange{Start: end.AddDate(0, 0, -daysBack), End: end}
}

// String returns the date range in the format "YYYY-MM-DD_YYYY-MM-DD"
func (dr DateRange) String() string {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s_%s",
		dr.Start.Format(models.DateLayout),
		dr.End.Format(models.DateLayout))
}

// Merge combines this date range with another, returning the overall range
func (dr DateRange) Merge(other DateRange) DateRange {
	start := dr.Start
	end := dr.End

	if dr.Start.IsZero() {
		start = other.Start
	} else if !other.Start.IsZero() && other.Start.Before(start) {
		start = other.Start
	}

	if dr.End.IsZero() {
		end = other.End
	} else if !other.End.IsZero() && other.End.After(end) {
		end = other.End
	}

	return DateRange{Start: start, End: end}
}

// Contains reports whether the calendar day of t lies in the range.
func (dr DateRange) Contains(t time.Time) bool {
	d := models.TruncateToDate(t)
	if !dr.Start.IsZero() && d.Before(models.TruncateToDate(dr.Start)) {
		return false
	}
	if !dr.End.IsZero() && d.After(models.TruncateToDate(dr.End)) {
		return false
	}
	return true
}

// Chunk splits items into consecutive slices of at most size elements.
// A size below 1 yields a single chunk.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size < 1 {
		size = len(items)
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
