package acquisition

import (
	"testing"

	"github.com/NotCoffee418/linky_meter/pkg/clock"
	"github.com/stretchr/testify/assert"
)

func TestRolloverDetector(t *testing.T) {
	day1 := clock.Day{Year: 2026, Month: 10, Day: 19}
	day2 := clock.Day{Year: 2026, Month: 10, Day: 20}

	d := NewRolloverDetector(day1)
	assert.False(t, d.Check(day1), "seed day is not a rollover")
	assert.True(t, d.Check(day2))

	// Check alone does not move the detector
	assert.True(t, d.Check(day2))

	d.Observe(day2)
	assert.False(t, d.Check(day2))
	assert.True(t, d.Check(day1), "going back in time is a change too")
	assert.Equal(t, day2, d.LastSeen())
}
