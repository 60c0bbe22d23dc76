package acquire

import (
	"time"

	"github.com/hb9tf/radarlog/sensor"
)

// Result summarizes one run. It is returned for failed runs too.
type Result struct {
	Identifier string
	Provider   string
	Mode       sensor.Mode
	// FrameLength is the element count of every frame, zero if the service
	// was never created.
	FrameLength int
	// Updates is the number of frames written to the sink.
	Updates int
	// Interrupted is set if a cancellation request ended the poll loop.
	Interrupted bool
	// State is the last lifecycle state reached, StateFailed if Err is set.
	State State
	Err   error

	Start time.Time
	End   time.Time
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Succeeded reports whether the run ended without error.
func (r *Result) Succeeded() bool {
	return r.Err == nil
}
