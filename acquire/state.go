package acquire

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a service during a run.
type State int

const (
	StateIdle State = iota
	StateCreated
	StateActivated
	StatePolling
	StateDeactivated
	StateDestroyed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreated:
		return "created"
	case StateActivated:
		return "activated"
	case StatePolling:
		return "polling"
	case StateDeactivated:
		return "deactivated"
	case StateDestroyed:
		return "destroyed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stage names the lifecycle step an Error happened in.
type Stage string

const (
	StageCreate     Stage = "create"
	StageActivate   Stage = "activate"
	StagePoll       Stage = "poll"
	StageOutput     Stage = "output"
	StageDeactivate Stage = "deactivate"
	StageDestroy    Stage = "destroy"
)

// Error is returned by Runner.Run for every failed run.
type Error struct {
	Stage Stage
	// Update is the 1-based number of the poll or write that failed. It is
	// zero for the other stages.
	Update int
	Err    error
}

func (e *Error) Error() string {
	if e.Update > 0 {
		return fmt.Sprintf("%s failed at update %d: %v", e.Stage, e.Update, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of the first *Error in err's tree.
func StageOf(err error) (Stage, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage, true
	}
	return "", false
}
