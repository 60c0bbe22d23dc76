package acquire

import (
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/golang/glog"
)

// Flag records a cancellation request. It is set at most once and never
// reset; the zero value is an unset flag.
type Flag struct {
	set atomic.Bool
}

// Set requests cancellation. It reports whether this call set the flag.
func (f *Flag) Set() bool {
	return f.set.CompareAndSwap(false, true)
}

// IsSet reports whether cancellation was requested. A nil flag is never set.
func (f *Flag) IsSet() bool {
	return f != nil && f.set.Load()
}

// NotifyOnSignal sets f when one of sigs is delivered. The returned function
// stops the signal delivery.
func NotifyOnSignal(f *Flag, sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)
	go func() {
		for {
			select {
			case sig := <-ch:
				if f.Set() {
					glog.Infof("received %s, stopping after the current update", sig)
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
