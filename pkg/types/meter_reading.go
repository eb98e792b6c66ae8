package types

import (
	"encoding/json"
	"time"
)

// Reading is one complete TIC sample: the BASE index and PAPP power
// observed during a single acquisition cycle.
type Reading struct {
	// Cumulative energy index in Wh (BASE)
	Counter uint32 `json:"counter_wh"`
	// Instantaneous apparent power in VA (PAPP)
	Power     uint32    `json:"power_va"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *Reading) ToJsonBytes() []byte {
	// Plain numeric and time fields, cannot fail.
	data, _ := json.Marshal(r)
	return data
}

// Returns nil when the payload is not a reading.
func ReadingFromJsonBytes(data []byte) *Reading {
	var reading Reading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil
	}
	if reading.Timestamp.IsZero() {
		return nil
	}
	return &reading
}
