// Package system provides clock implementations for queue runs.
package system

import "time"

// Clock implements queue.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Used to build a queue for a chosen start date.
type Fixed struct {
	at time.Time
}

// NewFixed returns a clock pinned to at.
func NewFixed(at time.Time) *Fixed {
	return &Fixed{at: at.UTC()}
}

// ParseDate pins a clock to a YYYY-MM-DD start date (UTC midnight).
func ParseDate(day string) (*Fixed, error) {
	at, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return nil, err
	}
	return NewFixed(at), nil
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time {
	return f.at
}
