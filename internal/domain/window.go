package domain

import "time"

// DefaultSampleRate is reported when the source does not know its rate.
const DefaultSampleRate = 1000

// Window is the set of rows consumed by a single correlation step.
type Window struct {
	// Rows in arrival order; every row has the same number of channels
	Rows []Row

	// SampleRate is the effective rate after overflow decimation
	SampleRate float64

	// Partial is set when the input ended before a full window was collected
	Partial bool
}

// Channels returns the column count of the window, or 0 if it is empty.
func (w Window) Channels() int {
	if len(w.Rows) == 0 {
		return 0
	}
	return len(w.Rows[0])
}

// Len returns the number of rows.
func (w Window) Len() int {
	return len(w.Rows)
}

// Result is what one analytics step hands to the presentation layer.
type Result struct {
	// SessionID identifies the session that produced the result
	SessionID string

	// Seq numbers results within a session starting at 1
	Seq uint64

	// Keys is the channel count
	Keys int

	// Kfs holds one coefficient per unordered channel pair
	Kfs Matrix

	// SampleRate is the effective sample rate of the window
	SampleRate float64

	// Partial mirrors Window.Partial; coefficients of a partial window are skewed
	// by zero padding
	Partial bool

	// Backend names the compute backend that produced the squared differences
	Backend string

	// Duration is the wall time of the step
	Duration time.Duration

	// At is when the result was produced
	At time.Time
}
