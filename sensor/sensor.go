package sensor

import (
	"fmt"
	"math/cmplx"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mode selects the representation the radar service produces.
type Mode int

const (
	ModeInvalid Mode = iota
	PowerBin
	Envelope
	IQ
)

func (m Mode) String() string {
	switch m {
	case PowerBin:
		return "power_bin"
	case Envelope:
		return "envelope"
	case IQ:
		return "iq"
	default:
		return "invalid"
	}
}

// ModeFromIndex maps the numeric service type of the command line
// (0=power bin, 1=envelope, 2=IQ) to a Mode.
func ModeFromIndex(idx int) (Mode, error) {
	switch idx {
	case 0:
		return PowerBin, nil
	case 1:
		return Envelope, nil
	case 2:
		return IQ, nil
	default:
		return ModeInvalid, fmt.Errorf("%w: service type %d", ErrInvalidMode, idx)
	}
}

// ParseMode accepts either a mode name or its numeric service type.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "power_bin", "powerbin", "power-bin", "power_bins":
		return PowerBin, nil
	case "envelope":
		return Envelope, nil
	case "iq":
		return IQ, nil
	}
	idx, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return ModeInvalid, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return ModeFromIndex(idx)
}

// Metadata describes the frames a service produces. It is fixed for the
// lifetime of a service.
type Metadata struct {
	Mode Mode
	// Length is the number of elements in every frame.
	Length int
	// StartM and LengthM are the distance window the service actually uses,
	// which may differ slightly from the requested one.
	StartM  float64
	LengthM float64
}

// Frame is one measurement snapshot. Exactly one of Amplitudes (power bin,
// envelope) or IQ is populated, depending on Mode.
type Frame struct {
	Mode Mode
	Seq  uint64
	Time time.Time

	Amplitudes []uint16
	IQ         []complex64
}

// NewFrame allocates a frame buffer large enough for the given metadata.
func NewFrame(md Metadata) *Frame {
	f := &Frame{Mode: md.Mode}
	if md.Mode == IQ {
		f.IQ = make([]complex64, md.Length)
	} else {
		f.Amplitudes = make([]uint16, md.Length)
	}
	return f
}

// Len returns the number of elements in the frame.
func (f *Frame) Len() int {
	if f.Mode == IQ {
		return len(f.IQ)
	}
	return len(f.Amplitudes)
}

// Magnitudes appends the magnitude of every element to dst.
func (f *Frame) Magnitudes(dst []float64) []float64 {
	if f.Mode == IQ {
		for _, v := range f.IQ {
			dst = append(dst, cmplx.Abs(complex128(v)))
		}
		return dst
	}
	for _, v := range f.Amplitudes {
		dst = append(dst, float64(v))
	}
	return dst
}

// Summary holds simple statistics over the magnitudes of a frame.
type Summary struct {
	Min, Max, Mean float64
	// Peak is the index of the strongest element.
	Peak int
}

// Summarize computes a Summary of the frame. An empty frame yields the zero value.
func (f *Frame) Summarize() Summary {
	mags := f.Magnitudes(nil)
	if len(mags) == 0 {
		return Summary{}
	}
	return Summary{
		Min:  floats.Min(mags),
		Max:  floats.Max(mags),
		Mean: stat.Mean(mags, nil),
		Peak: floats.MaxIdx(mags),
	}
}

// Provider is the opaque radar service stack.
type Provider interface {
	Name() string
	// Validate checks whether the provider can serve cfg.
	Validate(cfg *Config) error
	// Create allocates a service for cfg.
	Create(cfg *Config) (Service, error)
}

// Service is one created radar service. Next blocks until a frame is
// available and fills f, which must have been sized from Metadata.
type Service interface {
	Metadata() Metadata
	Activate() error
	Next(f *Frame) error
	Deactivate() error
	Destroy() error
}
