// Package billing computes recurring billing dates. All arithmetic is on
// calendar days with no timezone: dates are normalized to UTC midnight.
package billing

import (
	"strings"
	"time"

	"github.com/yuu19/SubTrack/app/models"
)

// Info is the result of a next-billing computation.
type Info struct {
	NextBillingAt        string `json:"next_billing_at"`
	DaysUntilNextBilling int    `json:"days_until_next_billing"`
}

// CycleMonths maps a cycle unit to its month step. Unrecognized values fall
// back to monthly rather than failing.
func CycleMonths(cycle string) int {
	switch strings.ToLower(strings.TrimSpace(cycle)) {
	case models.CycleYearly:
		return 12
	case models.CycleQuarterly:
		return 3
	default:
		return 1
	}
}

// ComputeNextBilling returns the next billing date at or after the current
// day, reachable from firstPaymentDate by whole cycle steps, and the number
// of whole days until it.
func ComputeNextBilling(firstPaymentDate, cycle string) Info {
	return ComputeNextBillingAt(firstPaymentDate, cycle, time.Now())
}

// ComputeNextBillingAt is ComputeNextBilling evaluated against an explicit
// "today". It is total: an unparseable first payment date yields the raw
// input back with a zero day count instead of an error. Calling it twice on
// the same day yields identical output, and advancing today never moves the
// result backwards.
func ComputeNextBillingAt(firstPaymentDate, cycle string, today time.Time) Info {
	first, ok := ParseDate(firstPaymentDate)
	if !ok {
		return Info{NextBillingAt: firstPaymentDate, DaysUntilNextBilling: 0}
	}

	day := StartOfDay(today)
	step := CycleMonths(cycle)

	next := first
	for next.Before(day) {
		next = addMonths(next, step)
	}

	return Info{
		NextBillingAt:        next.Format(time.RFC3339),
		DaysUntilNextBilling: int(next.Sub(day).Hours() / 24),
	}
}

// ParseDate accepts a calendar date (2006-01-02) or a full RFC3339 timestamp
// and normalizes it to UTC midnight.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return StartOfDay(t), true
	}
	return time.Time{}, false
}

// StartOfDay truncates a timestamp to UTC midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// addMonths advances by whole calendar months, clamping to the last day of
// the target month (Jan 31 + 1 month = Feb 28/29, not Mar 2/3).
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := lastDayOfMonth(firstOfTarget); d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
