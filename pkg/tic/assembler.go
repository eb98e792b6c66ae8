package tic

import (
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/types"
)

type State uint8

const (
	Collecting State = iota
	Complete
)

// Assembler collects field events until both BASE and PAPP are known.
// A field seen twice before the other one keeps its latest value; some
// meters repeat BASE before PAPP shows up.
type Assembler struct {
	now   func() time.Time
	state State

	counter    uint32
	hasCounter bool
	power      uint32
	hasPower   bool
}

// now stamps every assembled reading.
func NewAssembler(now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// Feed records ev and returns the reading once it is complete. The
// assembler is back in Collecting when Feed returns.
func (a *Assembler) Feed(ev FieldEvent) (types.Reading, bool) {
	switch ev.Kind {
	case Counter:
		a.counter = ev.Value
		a.hasCounter = true
	case Power:
		a.power = ev.Value
		a.hasPower = true
	default:
		return types.Reading{}, false
	}

	if !a.hasCounter || !a.hasPower {
		return types.Reading{}, false
	}

	a.state = Complete
	reading := types.Reading{
		Counter:   a.counter,
		Power:     a.power,
		Timestamp: a.now(),
	}
	a.Reset()
	return reading, true
}

func (a *Assembler) State() State {
	return a.state
}

// Reset drops any partial values.
func (a *Assembler) Reset() {
	a.state = Collecting
	a.counter, a.hasCounter = 0, false
	a.power, a.hasPower = 0, false
}
