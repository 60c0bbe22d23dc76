package sensor

import (
	"errors"
	"math"
	"testing"
)

func TestModeFromIndex(t *testing.T) {
	for idx, want := range []Mode{PowerBin, Envelope, IQ} {
		got, err := ModeFromIndex(idx)
		if err != nil {
			t.Fatalf("ModeFromIndex(%d) error = %v", idx, err)
		}
		if got != want {
			t.Errorf("ModeFromIndex(%d) = %v, want %v", idx, got, want)
		}
	}
	if _, err := ModeFromIndex(3); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ModeFromIndex(3) error = %v, want ErrInvalidMode", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"power_bin": PowerBin,
		"Envelope":  Envelope,
		"iq":        IQ,
		"1":         Envelope,
		" 2 ":       IQ,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		if err != nil {
			t.Fatalf("ParseMode(%q) error = %v", in, err)
		}
		if got != want {
			t.Errorf("ParseMode(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseMode("sparse"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode(sparse) error = %v, want ErrInvalidMode", err)
	}
}

func TestNewFrame(t *testing.T) {
	f := NewFrame(Metadata{Mode: IQ, Length: 4})
	if len(f.IQ) != 4 || f.Amplitudes != nil {
		t.Fatalf("IQ frame: got %d IQ, %d amplitudes", len(f.IQ), len(f.Amplitudes))
	}
	if f.Len() != 4 {
		t.Errorf("Len() = %d, want 4", f.Len())
	}

	f = NewFrame(Metadata{Mode: Envelope, Length: 7})
	if len(f.Amplitudes) != 7 || f.IQ != nil {
		t.Fatalf("envelope frame: got %d amplitudes, %d IQ", len(f.Amplitudes), len(f.IQ))
	}
}

func TestSummarize(t *testing.T) {
	f := &Frame{Mode: PowerBin, Amplitudes: []uint16{4, 10, 1}}
	s := f.Summarize()
	if s.Min != 1 || s.Max != 10 || s.Peak != 1 {
		t.Errorf("Summarize() = %+v", s)
	}
	if s.Mean != 5 {
		t.Errorf("mean = %v, want 5", s.Mean)
	}

	f = &Frame{Mode: IQ, IQ: []complex64{complex(3, 4), complex(0, 1)}}
	s = f.Summarize()
	if math.Abs(s.Max-5) > 1e-6 || s.Peak != 0 {
		t.Errorf("IQ Summarize() = %+v", s)
	}

	if got := (&Frame{Mode: Envelope}).Summarize(); got != (Summary{}) {
		t.Errorf("empty Summarize() = %+v, want zero", got)
	}
}
