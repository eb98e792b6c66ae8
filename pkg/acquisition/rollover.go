package acquisition

import "github.com/NotCoffee418/linky_meter/pkg/clock"

// RolloverDetector remembers the last calendar day a record was stored for.
type RolloverDetector struct {
	lastSeen clock.Day
}

// NewRolloverDetector seeds the detector with the current day so that the
// first cycle after startup never counts as a rollover.
func NewRolloverDetector(seed clock.Day) *RolloverDetector {
	return &RolloverDetector{lastSeen: seed}
}

// Check reports whether day differs from the last observed day.
func (d *RolloverDetector) Check(day clock.Day) bool {
	return day != d.lastSeen
}

func (d *RolloverDetector) Observe(day clock.Day) {
	d.lastSeen = day
}

func (d *RolloverDetector) LastSeen() clock.Day {
	return d.lastSeen
}
