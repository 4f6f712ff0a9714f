package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vivektakcode/leave-tracker/internal/domain/balance"
)

var (
	oneDay  = decimal.NewFromInt(1)
	halfDay = decimal.NewFromFloat(0.5)
)

// sickDocumentThreshold is the request length above which sick leave needs a
// supporting document.
var sickDocumentThreshold = decimal.NewFromInt(2)

// Day truncates a timestamp to its calendar date in UTC. Requests deal in
// dates, never clock times.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ComputeDays turns a date range into a day count. A same-day request counts
// 1, or 0.5 when flagged half-day. A multi-day request counts its working
// days, half a day less when flagged half-day, never below 0.5.
func ComputeDays(workingDays int, sameDay, half bool) decimal.Decimal {
	if sameDay {
		if half {
			return halfDay
		}
		return oneDay
	}
	days := decimal.NewFromInt(int64(workingDays))
	if half {
		days = days.Sub(halfDay)
	}
	if days.LessThan(halfDay) {
		return halfDay
	}
	return days
}

// Overlaps reports whether [existingStart, existingEnd] intersects
// [start, end], all bounds inclusive.
func Overlaps(existingStart, existingEnd, start, end time.Time) bool {
	return !existingStart.After(end) && !existingEnd.Before(start)
}

// ShouldAutoApprove is the sweep predicate: only leave that already happened,
// and never sick leave, which always needs a human to check the document.
func ShouldAutoApprove(start time.Time, category balance.Category, now time.Time) bool {
	if category == balance.CategorySick {
		return false
	}
	return Day(start).Before(Day(now))
}

// NeedsDocument reports whether a sick request of the given length must carry
// a supporting document reference.
func NeedsDocument(category balance.Category, days decimal.Decimal) bool {
	return category == balance.CategorySick && days.GreaterThan(sickDocumentThreshold)
}
