// Package tic extracts the BASE and PAPP fields from the Linky
// teleinformation (TIC) stream and assembles them into readings.
//
// The serial line carries many other labels (ADCO, OPTARIF, IINST, ...)
// and frame control bytes. Those lines are noise here and are dropped
// without error.
package tic

import (
	"strconv"
	"strings"
)

type FieldKind uint8

const (
	// BASE, cumulative energy index in Wh
	Counter FieldKind = iota + 1
	// PAPP, apparent power in VA
	Power
)

func (k FieldKind) String() string {
	switch k {
	case Counter:
		return "BASE"
	case Power:
		return "PAPP"
	default:
		return "UNKNOWN"
	}
}

type FieldEvent struct {
	Kind  FieldKind
	Value uint32
}

var labels = map[string]FieldKind{
	"BASE": Counter,
	"PAPP": Power,
}

// STX, ETX and EOT delimit TIC frames and end up glued to the first or
// last line of a frame.
const frameControl = "\x02\x03\x04"

// ParseLine returns the field carried by line, if it is one we track.
func ParseLine(line string) (FieldEvent, bool) {
	tokens := strings.Fields(strings.Trim(line, frameControl))
	if len(tokens) < 2 {
		return FieldEvent{}, false
	}

	kind, ok := labels[tokens[0]]
	if !ok {
		return FieldEvent{}, false
	}

	value, err := strconv.ParseUint(tokens[1], 10, 32)
	if err != nil {
		return FieldEvent{}, false
	}

	return FieldEvent{Kind: kind, Value: uint32(value)}, true
}
