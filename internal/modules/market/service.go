// Package market provides the US market clock for scheduling decisions.
package market

import (
	"time"
)

// US regular session: 9:30-16:00 America/New_York, weekdays.
// Exchange holidays are not modeled; a holiday scan wastes a few API
// calls against an unchanged universe.
const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0
)

// Status describes the market clock at a point in time.
type Status struct {
	Open      bool      `json:"open"`
	LocalTime time.Time `json:"local_time"`
	NextOpen  time.Time `json:"next_open"`
}

// Service answers whether the US market is open
type Service struct {
	location *time.Location
	now      func() time.Time
}

// NewService creates a new market clock service
func NewService() (*Service, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, err
	}
	return &Service{location: loc, now: time.Now}, nil
}

// IsOpen reports whether the US market is open right now
func (s *Service) IsOpen() bool {
	return s.isOpenAt(s.now())
}

// StatusNow returns the full market clock status
func (s *Service) StatusNow() Status {
	now := s.now().In(s.location)
	return Status{
		Open:      s.isOpenAt(now),
		LocalTime: now,
		NextOpen:  s.nextOpen(now),
	}
}

func (s *Service) isOpenAt(t time.Time) bool {
	local := t.In(s.location)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	open := time.Date(local.Year(), local.Month(), local.Day(), openHour, openMinute, 0, 0, s.location)
	close := time.Date(local.Year(), local.Month(), local.Day(), closeHour, closeMinute, 0, 0, s.location)

	return !local.Before(open) && local.Before(close)
}

// nextOpen returns the next session open at or after t
func (s *Service) nextOpen(t time.Time) time.Time {
	local := t.In(s.location)
	day := time.Date(local.Year(), local.Month(), local.Day(), openHour, openMinute, 0, 0, s.location)

	if local.Before(day) && isWeekday(day) {
		return day
	}
	for {
		day = day.AddDate(0, 0, 1)
		if isWeekday(day) {
			return day
		}
	}
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
