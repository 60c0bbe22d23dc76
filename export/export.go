package export

import (
	"context"

	"github.com/golang/glog"

	"github.com/hb9tf/radarlog/sensor"
)

// countInfoInterval is how many records pass between two progress logs.
const countInfoInterval = 1000

// Exporter receives frames one at a time, in order. Close flushes and
// releases the underlying sink.
type Exporter interface {
	Write(context.Context, *sensor.Frame) error
	Close() error
}

// RecordWriter stores records that were produced elsewhere, e.g. received
// by the collector server.
type RecordWriter interface {
	WriteRecord(context.Context, Record) error
	Close() error
}

func newCounts() map[string]int {
	return map[string]int{
		"error":   0,
		"success": 0,
		"total":   0,
	}
}

// count records the outcome of one export and logs the counts periodically.
func count(name string, counts map[string]int, err error) {
	counts["total"] += 1
	if err != nil {
		counts["error"] += 1
	} else {
		counts["success"] += 1
	}
	if counts["total"]%countInfoInterval == 0 {
		glog.Infof("%s export counts: %+v\n", name, counts)
	}
}
