package leave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vivektakcode/leave-tracker/internal/domain/balance"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeDays(t *testing.T) {
	tests := []struct {
		name        string
		workingDays int
		sameDay     bool
		half        bool
		want        string
	}{
		{"single full day", 1, true, false, "1"},
		{"single half day", 1, true, true, "0.5"},
		{"three working days", 3, false, false, "3"},
		{"three working days with half flag", 3, false, true, "2.5"},
		{"weekend-only range floors at half", 0, false, false, "0.5"},
		{"half flag cannot push below half", 0, false, true, "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDays(tt.workingDays, tt.sameDay, tt.half)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestOverlaps(t *testing.T) {
	existingStart := date(2026, time.March, 10)
	existingEnd := date(2026, time.March, 12)

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"identical range", date(2026, time.March, 10), date(2026, time.March, 12), true},
		{"touches first day", date(2026, time.March, 8), date(2026, time.March, 10), true},
		{"touches last day", date(2026, time.March, 12), date(2026, time.March, 15), true},
		{"fully inside", date(2026, time.March, 11), date(2026, time.March, 11), true},
		{"fully covering", date(2026, time.March, 1), date(2026, time.March, 31), true},
		{"ends the day before", date(2026, time.March, 7), date(2026, time.March, 9), false},
		{"starts the day after", date(2026, time.March, 13), date(2026, time.March, 14), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(existingStart, existingEnd, tt.start, tt.end))
		})
	}
}

func TestShouldAutoApprove(t *testing.T) {
	now := date(2026, time.June, 15)

	assert.True(t, ShouldAutoApprove(date(2026, time.June, 10), balance.CategoryCasual, now))
	assert.True(t, ShouldAutoApprove(date(2026, time.June, 14), balance.CategoryPrivilege, now))

	// Sick leave is never auto-approved, elapsed or not.
	assert.False(t, ShouldAutoApprove(date(2026, time.June, 10), balance.CategorySick, now))

	// Today and the future stay pending.
	assert.False(t, ShouldAutoApprove(date(2026, time.June, 15), balance.CategoryCasual, now))
	assert.False(t, ShouldAutoApprove(date(2026, time.June, 20), balance.CategoryCasual, now))
}

func TestNeedsDocument(t *testing.T) {
	assert.False(t, NeedsDocument(balance.CategorySick, decimal.NewFromInt(2)))
	assert.True(t, NeedsDocument(balance.CategorySick, decimal.RequireFromString("2.5")))
	assert.True(t, NeedsDocument(balance.CategorySick, decimal.NewFromInt(5)))
	assert.False(t, NeedsDocument(balance.CategoryCasual, decimal.NewFromInt(10)))
	assert.False(t, NeedsDocument(balance.CategoryPrivilege, decimal.NewFromInt(10)))
}

func TestDayTruncates(t *testing.T) {
	stamp := time.Date(2026, time.April, 3, 17, 45, 12, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, date(2026, time.April, 3), Day(stamp))
}
