// Package acquire drives a radar service through its lifecycle and streams
// its frames into a sink.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/radarlog/sensor"
)

// Sink consumes the frames of a run, one at a time and in order. The frame
// passed to Write is reused for the next update.
type Sink interface {
	Write(ctx context.Context, f *sensor.Frame) error
	Close() error
}

// Options control when the poll loop stops.
type Options struct {
	// UpdateCount bounds the run to this many frames. Zero runs until
	// cancellation.
	UpdateCount int
	// StopBoundedOnInterrupt lets a cancellation request end a bounded run
	// early. Unbounded runs always stop on cancellation.
	StopBoundedOnInterrupt bool
	// ProgressEvery logs the number of written frames every that many
	// updates. Zero disables progress logging.
	ProgressEvery int
}

// Runner executes one acquisition run per call to Run.
type Runner struct {
	Provider sensor.Provider
	// Open creates the sink once the service is active and its frame layout
	// is known.
	Open func(md sensor.Metadata) (Sink, error)
	// Interrupt is checked before every poll. It may be nil.
	Interrupt  *Flag
	Options    Options
	Identifier string
}

// Run creates a service for cfg, activates it, polls frames into the sink
// until the stop condition holds and tears everything down again. The
// service is destroyed exactly once on every path after a successful
// create. The returned error is an *Error, or several joined together when
// teardown fails as well.
func (r *Runner) Run(ctx context.Context, cfg *sensor.Config) (res *Result, err error) {
	res = &Result{
		Identifier: r.Identifier,
		Provider:   r.Provider.Name(),
		Mode:       cfg.Mode,
		Start:      time.Now(),
		State:      StateIdle,
	}
	defer func() {
		res.End = time.Now()
		res.Err = err
		if err != nil {
			res.State = StateFailed
		}
	}()
	if r.Open == nil {
		return res, &Error{Stage: StageOutput, Err: errors.New("no sink configured")}
	}

	svc, cerr := r.Provider.Create(cfg)
	if cerr != nil {
		return res, &Error{Stage: StageCreate, Err: cerr}
	}
	res.State = StateCreated
	defer func() {
		if derr := svc.Destroy(); derr != nil {
			err = join(err, &Error{Stage: StageDestroy, Err: derr})
			return
		}
		res.State = StateDestroyed
		glog.V(1).Infof("%s service destroyed", res.Provider)
	}()

	md := svc.Metadata()
	if md.Length <= 0 {
		return res, &Error{Stage: StageCreate, Err: fmt.Errorf("service reports frame length %d", md.Length)}
	}
	res.FrameLength = md.Length
	glog.V(1).Infof("%s %s service created: %d elements per frame, %.3f m to %.3f m",
		res.Provider, md.Mode, md.Length, md.StartM, md.StartM+md.LengthM)

	if aerr := svc.Activate(); aerr != nil {
		return res, &Error{Stage: StageActivate, Err: aerr}
	}
	res.State = StateActivated

	sink, oerr := r.Open(md)
	if oerr != nil {
		return res, r.deactivate(svc, res, &Error{Stage: StageOutput, Err: oerr})
	}

	res.State = StatePolling
	perr := r.poll(ctx, svc, sink, md, res)
	if serr := sink.Close(); serr != nil {
		perr = join(perr, &Error{Stage: StageOutput, Err: serr})
	}
	return res, r.deactivate(svc, res, perr)
}

// deactivate stops the service. Its failure turns an otherwise successful
// run into a failed one.
func (r *Runner) deactivate(svc sensor.Service, res *Result, err error) error {
	if derr := svc.Deactivate(); derr != nil {
		return join(err, &Error{Stage: StageDeactivate, Err: derr})
	}
	res.State = StateDeactivated
	return err
}

func (r *Runner) poll(ctx context.Context, svc sensor.Service, sink Sink, md sensor.Metadata, res *Result) error {
	frame := sensor.NewFrame(md)
	for update := 1; ; update++ {
		if ok, interrupted := r.proceed(ctx, res.Updates); !ok {
			res.Interrupted = interrupted
			return nil
		}
		if err := svc.Next(frame); err != nil {
			return &Error{Stage: StagePoll, Update: update, Err: err}
		}
		frame.Seq = uint64(update)
		frame.Time = time.Now()
		if err := sink.Write(ctx, frame); err != nil {
			return &Error{Stage: StageOutput, Update: update, Err: err}
		}
		res.Updates = update

		if glog.V(2) {
			s := frame.Summarize()
			glog.Infof("update %d: min %.1f max %.1f mean %.1f peak at %d", update, s.Min, s.Max, s.Mean, s.Peak)
		}
		if r.Options.ProgressEvery > 0 && update%r.Options.ProgressEvery == 0 {
			glog.Infof("%d updates written", update)
		}
	}
}

// proceed reports whether another poll should happen, and if not, whether
// a cancellation request was the reason.
func (r *Runner) proceed(ctx context.Context, done int) (ok, interrupted bool) {
	cancelled := r.Interrupt.IsSet() || ctx.Err() != nil
	if r.Options.UpdateCount <= 0 {
		return !cancelled, cancelled
	}
	if done >= r.Options.UpdateCount {
		return false, false
	}
	if r.Options.StopBoundedOnInterrupt && cancelled {
		return false, true
	}
	return true, false
}

func join(err, next error) error {
	if err == nil {
		return next
	}
	return errors.Join(err, next)
}
