package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hb9tf/radarlog/sensor"
)

// Record is the serialized form of a frame, shared by the msgpack log, the
// SQL tables and the collector protocol.
type Record struct {
	// Metadata
	Identifier string `json:"identifier" msgpack:"identifier"`
	Source     string `json:"source" msgpack:"source"`
	Mode       string `json:"mode" msgpack:"mode"`
	Seq        uint64 `json:"seq" msgpack:"seq"`
	Time       int64  `json:"time" msgpack:"time"` // unix milliseconds

	// Radar data, depending on Mode.
	Amplitudes []uint16     `json:"amplitudes,omitempty" msgpack:"amplitudes,omitempty"`
	IQ         [][2]float32 `json:"iq,omitempty" msgpack:"iq,omitempty"`
}

// NewRecord copies f into a Record.
func NewRecord(identifier, source string, f *sensor.Frame) Record {
	r := Record{
		Identifier: identifier,
		Source:     source,
		Mode:       f.Mode.String(),
		Seq:        f.Seq,
		Time:       f.Time.UnixMilli(),
	}
	if f.Mode == sensor.IQ {
		r.IQ = make([][2]float32, len(f.IQ))
		for i, v := range f.IQ {
			r.IQ[i] = [2]float32{real(v), imag(v)}
		}
		return r
	}
	r.Amplitudes = append([]uint16(nil), f.Amplitudes...)
	return r
}

// Len returns the number of frame elements in the record.
func (r *Record) Len() int {
	if len(r.IQ) > 0 {
		return len(r.IQ)
	}
	return len(r.Amplitudes)
}

// Frame converts the record back into a frame.
func (r *Record) Frame() (*sensor.Frame, error) {
	mode, err := sensor.ParseMode(r.Mode)
	if err != nil {
		return nil, err
	}
	f := &sensor.Frame{
		Mode: mode,
		Seq:  r.Seq,
		Time: time.UnixMilli(r.Time),
	}
	if mode == sensor.IQ {
		f.IQ = make([]complex64, len(r.IQ))
		for i, v := range r.IQ {
			f.IQ[i] = complex(v[0], v[1])
		}
		return f, nil
	}
	f.Amplitudes = append([]uint16(nil), r.Amplitudes...)
	return f, nil
}

// Data renders the frame elements of the record as one tab separated line
// without terminator, the representation stored in SQL tables.
func (r *Record) Data() (string, error) {
	f, err := r.Frame()
	if err != nil {
		return "", err
	}
	return strings.Join(Fields(f), "\t"), nil
}

// SetData parses a line produced by Data into the record according to its Mode.
func (r *Record) SetData(data string) error {
	mode, err := sensor.ParseMode(r.Mode)
	if err != nil {
		return err
	}
	f, err := ParseLine(mode, data)
	if err != nil {
		return err
	}
	f.Seq, f.Time = r.Seq, time.UnixMilli(r.Time)
	*r = NewRecord(r.Identifier, r.Source, f)
	return nil
}

// Fields renders every frame element as text: a plain integer for power bin
// and envelope frames, real and imaginary part with six decimals for IQ.
func Fields(f *sensor.Frame) []string {
	if f.Mode == sensor.IQ {
		fields := make([]string, 0, 2*len(f.IQ))
		for _, v := range f.IQ {
			fields = append(fields,
				strconv.FormatFloat(float64(real(v)), 'f', 6, 32),
				strconv.FormatFloat(float64(imag(v)), 'f', 6, 32),
			)
		}
		return fields
	}
	fields := make([]string, len(f.Amplitudes))
	for i, v := range f.Amplitudes {
		fields[i] = strconv.FormatUint(uint64(v), 10)
	}
	return fields
}

// ParseLine parses one tab separated line as written by the TSV exporter.
// Empty fields, such as the one after the trailing tab, are skipped.
func ParseLine(mode sensor.Mode, line string) (*sensor.Frame, error) {
	var values []string
	for _, field := range strings.Split(strings.TrimRight(line, "\r\n"), "\t") {
		if field != "" {
			values = append(values, field)
		}
	}

	f := &sensor.Frame{Mode: mode}
	switch mode {
	case sensor.PowerBin, sensor.Envelope:
		f.Amplitudes = make([]uint16, len(values))
		for i, v := range values {
			n, err := strconv.ParseUint(v, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			f.Amplitudes[i] = uint16(n)
		}
	case sensor.IQ:
		if len(values)%2 != 0 {
			return nil, fmt.Errorf("odd number of IQ fields: %d", len(values))
		}
		f.IQ = make([]complex64, len(values)/2)
		for i := range f.IQ {
			re, err := strconv.ParseFloat(values[2*i], 32)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", 2*i, err)
			}
			im, err := strconv.ParseFloat(values[2*i+1], 32)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", 2*i+1, err)
			}
			f.IQ[i] = complex(float32(re), float32(im))
		}
	default:
		return nil, fmt.Errorf("%w: %d", sensor.ErrInvalidMode, mode)
	}
	return f, nil
}
