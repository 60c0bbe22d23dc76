package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hb9tf/radarlog/acquire"
	"github.com/hb9tf/radarlog/sensor"
)

func TestNewEvent(t *testing.T) {
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	res := &acquire.Result{
		Identifier:  "run-1",
		Provider:    "synthetic",
		Mode:        sensor.Envelope,
		FrameLength: 890,
		Updates:     42,
		State:       acquire.StateDestroyed,
		Start:       start,
		End:         start.Add(1500 * time.Millisecond),
	}

	tests := []struct {
		name        string
		mutate      func(*acquire.Result)
		wantOutcome string
		wantStage   string
	}{
		{name: "success", mutate: func(*acquire.Result) {}, wantOutcome: OutcomeSuccess},
		{name: "interrupted", mutate: func(r *acquire.Result) { r.Interrupted = true }, wantOutcome: OutcomeInterrupted},
		{
			name: "failed",
			mutate: func(r *acquire.Result) {
				r.Interrupted = true
				r.Err = &acquire.Error{Stage: acquire.StagePoll, Update: 3, Err: errors.New("timeout")}
			},
			wantOutcome: OutcomeFailed,
			wantStage:   "poll",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := *res
			tc.mutate(&r)
			e := NewEvent(&r, "/tmp/run.tsv", "s3://bucket/run.tsv")
			if e.Outcome != tc.wantOutcome || e.Stage != tc.wantStage {
				t.Errorf("outcome/stage = %s/%s, want %s/%s", e.Outcome, e.Stage, tc.wantOutcome, tc.wantStage)
			}
			if e.EventType != EventType || e.RunID != "run-1" || e.Mode != "envelope" || e.Updates != 42 || e.FrameLen != 890 {
				t.Errorf("event = %+v", e)
			}
			if e.DurationMs != 1500 || e.Timestamp != "2026-10-01T12:00:01Z" {
				t.Errorf("duration/timestamp = %d/%s", e.DurationMs, e.Timestamp)
			}
			if tc.wantOutcome == OutcomeFailed && e.Error == "" {
				t.Error("failed event without error text")
			}
		})
	}
}

func TestRetry(t *testing.T) {
	old := BaseBackoff
	BaseBackoff = time.Millisecond
	defer func() { BaseBackoff = old }()

	calls := 0
	err := Retry(context.Background(), 3, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, nil)
	if err != nil || calls != 3 {
		t.Fatalf("Retry() = %v after %d calls, want success after 3", err, calls)
	}

	calls = 0
	errPermanent := errors.New("permanent")
	err = Retry(context.Background(), 3, func(context.Context) error {
		calls++
		return errPermanent
	}, func(err error) bool { return errors.Is(err, errPermanent) })
	if !errors.Is(err, errPermanent) || calls != 1 {
		t.Fatalf("Retry() = %v after %d calls, want permanent failure after 1", err, calls)
	}

	calls = 0
	err = Retry(context.Background(), 2, func(context.Context) error {
		calls++
		return errors.New("down")
	}, nil)
	if err == nil || calls != 3 {
		t.Fatalf("Retry() = %v after %d calls, want failure after 3", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Retry(ctx, 2, func(context.Context) error { return nil }, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() on canceled context = %v", err)
	}
}
