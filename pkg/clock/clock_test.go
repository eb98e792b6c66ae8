package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemUsesConfiguredLocation(t *testing.T) {
	assert.Equal(t, time.UTC, NewSystem(true).Now().Location())
	assert.Equal(t, time.Local, NewSystem(false).Now().Location())
	assert.Equal(t, time.UTC, NewSystem(true).Location())
}

func TestDayOfFollowsLocation(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 23:30 UTC is already the next day in Paris.
	instant := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, Day{2026, time.October, 18}, DayOf(instant))
	assert.Equal(t, Day{2026, time.October, 19}, DayOf(instant.In(paris)))
}

func TestDayStartAndString(t *testing.T) {
	d := Day{2026, time.January, 5}
	assert.Equal(t, "2026-01-05", d.String())
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), d.Start(time.UTC))
}

func TestManual(t *testing.T) {
	start := time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)
	m := NewManual(start)
	assert.Equal(t, start, m.Now())
	assert.Equal(t, Day{2026, time.May, 1}, m.Today())

	m.Advance(2 * time.Minute)
	assert.Equal(t, Day{2026, time.May, 2}, m.Today())

	m.Set(start)
	assert.Equal(t, start, m.Now())
	assert.Equal(t, time.UTC, m.Location())
}
