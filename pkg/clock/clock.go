// Clock gives the daemon a single source of time so that the clock written
// to the stream table and the day used for rollover detection always agree
// on the timezone.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Day is a calendar date in the clock's location.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// Start returns midnight of the day in loc.
func (d Day) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

type Clock interface {
	Now() time.Time
	Today() Day
	Location() *time.Location
}

// System reads the wall clock in either UTC or local time.
type System struct {
	loc *time.Location
}

func NewSystem(useUTC bool) *System {
	if useUTC {
		return &System{loc: time.UTC}
	}
	return &System{loc: time.Local}
}

func (s *System) Now() time.Time {
	return time.Now().In(s.loc)
}

func (s *System) Today() Day {
	return DayOf(s.Now())
}

func (s *System) Location() *time.Location {
	return s.loc
}

// Manual is a settable clock for tests and replays.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Today() Day {
	return DayOf(m.Now())
}

func (m *Manual) Location() *time.Location {
	return m.Now().Location()
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
