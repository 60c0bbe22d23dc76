package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/hb9tf/radarlog/sensor"
)

// TSV writes one tab separated line per frame. Every field, including the
// last one, is followed by a tab.
type TSV struct {
	w      *csv.Writer
	closer io.Closer
	// flushEachLine makes every frame visible as soon as it is written.
	flushEachLine bool
	counts        map[string]int
}

// NewTSV writes to w. With flushEachLine set, every line is flushed
// immediately, otherwise output is flushed on Close.
func NewTSV(w io.Writer, flushEachLine bool) *TSV {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return &TSV{
		w:             cw,
		flushEachLine: flushEachLine,
		counts:        newCounts(),
	}
}

// CreateTSV writes to a newly created file at path, or to standard output
// with per line flushing if path is empty.
func CreateTSV(path string) (*TSV, error) {
	if path == "" {
		return NewTSV(os.Stdout, true), nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %q failed: %w", path, err)
	}
	t := NewTSV(f, false)
	t.closer = f
	return t, nil
}

func (t *TSV) Write(ctx context.Context, f *sensor.Frame) error {
	// The trailing empty field yields the terminating tab.
	record := append(Fields(f), "")
	err := t.w.Write(record)
	if err == nil && t.flushEachLine {
		t.w.Flush()
		err = t.w.Error()
	}
	count("TSV", t.counts, err)
	if err != nil {
		return fmt.Errorf("error while writing TSV line: %w", err)
	}
	return nil
}

func (t *TSV) Close() error {
	t.w.Flush()
	err := t.w.Error()
	if t.closer != nil {
		if cerr := t.closer.Close(); err == nil {
			err = cerr
		}
	}
	glog.V(1).Infof("TSV export counts: %+v", t.counts)
	if err != nil {
		return fmt.Errorf("error flushing TSV: %w", err)
	}
	return nil
}
