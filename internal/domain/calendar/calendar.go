// Package calendar decides which dates count as business days for a
// jurisdiction. Weekends follow the Gregorian calendar; holidays come from a
// HolidaySource keyed by jurisdiction and year.
package calendar

import (
	"context"
	"time"
)

const dayFormat = "2006-01-02"

// HolidaySource returns the declared holidays for one jurisdiction and year,
// keyed by date in YYYY-MM-DD form.
type HolidaySource interface {
	HolidaysFor(ctx context.Context, jurisdiction string, year int) (map[string]struct{}, error)
}

type Service struct {
	Holidays HolidaySource
}

func NewService(source HolidaySource) *Service {
	return &Service{Holidays: source}
}

// IsBusinessDay reports whether date is a weekday that is not a declared
// holiday in the given jurisdiction.
func (s *Service) IsBusinessDay(ctx context.Context, date time.Time, jurisdiction string) (bool, error) {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false, nil
	}
	holidays, err := s.Holidays.HolidaysFor(ctx, jurisdiction, date.Year())
	if err != nil {
		return false, err
	}
	_, holiday := holidays[date.Format(dayFormat)]
	return !holiday, nil
}

// WorkingDaysBetween counts business days in the inclusive range [start, end],
// evaluated day by day. A start after end yields 0.
func (s *Service) WorkingDaysBetween(ctx context.Context, jurisdiction string, start, end time.Time) (int, error) {
	if start.After(end) {
		return 0, nil
	}
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		business, err := s.IsBusinessDay(ctx, d, jurisdiction)
		if err != nil {
			return 0, err
		}
		if business {
			count++
		}
	}
	return count, nil
}

// NextBusinessDay returns the first business day strictly after date.
// Holiday sets are finite per year, so the walk terminates after a handful of
// iterations even across a holiday-bridged weekend.
func (s *Service) NextBusinessDay(ctx context.Context, date time.Time, jurisdiction string) (time.Time, error) {
	for d := date.AddDate(0, 0, 1); ; d = d.AddDate(0, 0, 1) {
		business, err := s.IsBusinessDay(ctx, d, jurisdiction)
		if err != nil {
			return time.Time{}, err
		}
		if business {
			return d, nil
		}
	}
}
