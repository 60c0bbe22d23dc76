// Package notify publishes a run completed event once an acquisition run
// has ended.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hb9tf/radarlog/acquire"
)

// EventType is the type of every event published by radarlog.
const EventType = "run_completed"

// Outcomes of a run.
const (
	OutcomeSuccess     = "success"
	OutcomeInterrupted = "interrupted"
	OutcomeFailed      = "failed"
)

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	EventType  string `json:"event_type"`
	RunID      string `json:"run_id"`
	Provider   string `json:"provider"`
	Mode       string `json:"mode"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Updates    int    `json:"updates"`
	FrameLen   int    `json:"frame_length"`
	Output     string `json:"output,omitempty"`
	Archive    string `json:"archive,omitempty"`
	Timestamp  string `json:"timestamp"` // RFC 3339
	DurationMs int64  `json:"duration_ms"`
}

// NewEvent describes res. output and archive locate the written log and its
// uploaded copy, either may be empty.
func NewEvent(res *acquire.Result, output, archive string) *RunCompletedEvent {
	e := &RunCompletedEvent{
		EventType:  EventType,
		RunID:      res.Identifier,
		Provider:   res.Provider,
		Mode:       res.Mode.String(),
		Outcome:    OutcomeSuccess,
		Updates:    res.Updates,
		FrameLen:   res.FrameLength,
		Output:     output,
		Archive:    archive,
		Timestamp:  res.End.UTC().Format(time.RFC3339),
		DurationMs: res.Duration().Milliseconds(),
	}
	switch {
	case res.Err != nil:
		e.Outcome = OutcomeFailed
		e.Error = res.Err.Error()
		if stage, ok := acquire.StageOf(res.Err); ok {
			e.Stage = string(stage)
		}
	case res.Interrupted:
		e.Outcome = OutcomeInterrupted
	}
	return e
}

// Notifier publishes run completed events to a downstream system.
type Notifier interface {
	Publish(ctx context.Context, event *RunCompletedEvent) error
	Close() error
}

// BaseBackoff is the wait before the first retry. It doubles on every
// further retry.
var BaseBackoff = 500 * time.Millisecond

// Retry calls attempt up to 1+retries times with exponential backoff until
// it succeeds. Errors for which permanent returns true are not retried.
func Retry(ctx context.Context, retries int, attempt func(context.Context) error, permanent func(error) bool) error {
	var lastErr error
	attempts := 1 + retries
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
