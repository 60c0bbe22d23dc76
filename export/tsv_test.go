package export

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hb9tf/radarlog/sensor"
)

func TestTSVPowerBin(t *testing.T) {
	var buf bytes.Buffer
	w := NewTSV(&buf, false)
	ctx := context.Background()
	for _, amps := range [][]uint16{{1, 2, 3}, {4, 5, 6}} {
		if err := w.Write(ctx, &sensor.Frame{Mode: sensor.PowerBin, Amplitudes: amps}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got, want := buf.String(), "1\t2\t3\t\n4\t5\t6\t\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestTSVFlushEachLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewTSV(&buf, true)
	if err := w.Write(context.Background(), &sensor.Frame{Mode: sensor.Envelope, Amplitudes: []uint16{7, 65535}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got, want := buf.String(), "7\t65535\t\n"; got != want {
		t.Errorf("output before Close = %q, want %q", got, want)
	}
}

func TestTSVIQ(t *testing.T) {
	var buf bytes.Buffer
	w := NewTSV(&buf, false)
	f := &sensor.Frame{Mode: sensor.IQ, IQ: []complex64{complex(0.5, -0.25), complex(1, 0)}}
	if err := w.Write(context.Background(), f); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	w.Close()

	want := "0.500000\t-0.250000\t1.000000\t0.000000\t\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}

	got, err := ParseLine(sensor.IQ, buf.String())
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if len(got.IQ) != len(f.IQ) {
		t.Fatalf("ParseLine() got %d values, want %d", len(got.IQ), len(f.IQ))
	}
	for i := range f.IQ {
		if d := math.Abs(float64(real(got.IQ[i]) - real(f.IQ[i]))); d > 1e-6 {
			t.Errorf("real[%d] = %v, want %v", i, real(got.IQ[i]), real(f.IQ[i]))
		}
		if d := math.Abs(float64(imag(got.IQ[i]) - imag(f.IQ[i]))); d > 1e-6 {
			t.Errorf("imag[%d] = %v, want %v", i, imag(got.IQ[i]), imag(f.IQ[i]))
		}
	}
}

func TestCreateTSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tsv")
	w, err := CreateTSV(path)
	if err != nil {
		t.Fatalf("CreateTSV() error = %v", err)
	}
	if err := w.Write(context.Background(), &sensor.Frame{Mode: sensor.PowerBin, Amplitudes: []uint16{9}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "9\t\n" {
		t.Errorf("file content = %q", data)
	}
}

func TestCreateTSVUnwritable(t *testing.T) {
	if _, err := CreateTSV(filepath.Join(t.TempDir(), "missing", "out.tsv")); err == nil {
		t.Fatal("CreateTSV() into a missing directory succeeded")
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		mode    sensor.Mode
		line    string
		want    int
		wantErr bool
	}{
		{name: "power bin", mode: sensor.PowerBin, line: "1\t2\t3\t\n", want: 3},
		{name: "no trailing tab", mode: sensor.Envelope, line: "1\t2", want: 2},
		{name: "empty", mode: sensor.Envelope, line: "\n", want: 0},
		{name: "not a number", mode: sensor.Envelope, line: "1\tx\t", wantErr: true},
		{name: "overflow", mode: sensor.PowerBin, line: "70000\t", wantErr: true},
		{name: "odd IQ", mode: sensor.IQ, line: "1.0\t2.0\t3.0\t", wantErr: true},
		{name: "invalid mode", mode: sensor.ModeInvalid, line: "1\t", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseLine(tc.mode, tc.line)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseLine(%q) succeeded, want error", tc.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine(%q) error = %v", tc.line, err)
			}
			if f.Len() != tc.want {
				t.Errorf("ParseLine(%q) len = %d, want %d", tc.line, f.Len(), tc.want)
			}
		})
	}
}

func TestRecordData(t *testing.T) {
	f := &sensor.Frame{Mode: sensor.Envelope, Seq: 3, Amplitudes: []uint16{10, 20}}
	r := NewRecord("run", "synthetic", f)
	data, err := r.Data()
	if err != nil || data != "10\t20" {
		t.Fatalf("Data() = %q, %v", data, err)
	}

	back := Record{Identifier: r.Identifier, Source: r.Source, Mode: r.Mode, Seq: r.Seq, Time: r.Time}
	if err := back.SetData(data); err != nil {
		t.Fatalf("SetData() error = %v", err)
	}
	if back.Len() != 2 || back.Amplitudes[1] != 20 || back.Seq != 3 {
		t.Errorf("SetData() = %+v", back)
	}
	if !strings.EqualFold(back.Mode, "envelope") {
		t.Errorf("Mode = %q", back.Mode)
	}
}

func TestRecordDataInvalidMode(t *testing.T) {
	r := Record{Mode: "doppler", Amplitudes: []uint16{1, 2}}
	if _, err := r.Data(); !errors.Is(err, sensor.ErrInvalidMode) {
		t.Errorf("Data() error = %v, want ErrInvalidMode", err)
	}
}
