// Package synthetic provides an in-process radar service that synthesizes
// frames for a single simulated reflector. It needs no hardware and is used
// for demos, soak runs of the exporters, and tests.
package synthetic

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"sync"
	"time"

	"github.com/hb9tf/radarlog/sensor"
)

const (
	Name = "synthetic"

	// stepM is the distance between two envelope or IQ points.
	stepM = 0.000484
	// maxRangeM is the furthest distance the simulated sensor covers.
	maxRangeM = 7.0
	// wavelengthM of a 60.5 GHz carrier.
	wavelengthM = 0.004955

	defaultTargetM = 0.25
	defaultGain    = 0.7
	noiseFloor     = 40.0
	echoPeak       = 12000.0
	echoWidthM     = 0.012
)

var (
	errNotActive = errors.New("service not active")
	errDestroyed = errors.New("service destroyed")
)

// Provider creates synthetic services. The zero value is usable.
type Provider struct {
	// TargetM is the distance of the simulated reflector. Zero uses 0.25 m.
	TargetM float64
	// Seed makes the noise reproducible.
	Seed int64
	// Unpaced disables waiting for the repetition rate between frames.
	Unpaced bool

	// FailCreate and FailActivate make the corresponding call fail.
	FailCreate   error
	FailActivate error
	// FailAfter makes Next fail once this many frames have been produced.
	// Zero never fails.
	FailAfter int
}

func (p *Provider) Name() string {
	return Name
}

func (p *Provider) Validate(cfg *sensor.Config) error {
	switch {
	case cfg.StartM < 0:
		return fmt.Errorf("start %v m is negative", cfg.StartM)
	case cfg.LengthM <= 0:
		return fmt.Errorf("length %v m must be positive", cfg.LengthM)
	case cfg.StartM+cfg.LengthM > maxRangeM:
		return fmt.Errorf("range end %v m beyond %v m", cfg.StartM+cfg.LengthM, maxRangeM)
	case cfg.RepetitionHz <= 0:
		return fmt.Errorf("repetition rate %v Hz must be positive", cfg.RepetitionHz)
	case cfg.Sensor < 1 || cfg.Sensor > sensor.MaxSensor:
		return fmt.Errorf("sensor %d not connected", cfg.Sensor)
	case cfg.Mode == sensor.PowerBin && (cfg.BinCount < 1 || cfg.BinCount > sensor.MaxBinCount):
		return fmt.Errorf("bin count %d not supported", cfg.BinCount)
	case cfg.Mode == sensor.IQ && cfg.IQFormat != sensor.IQFormatFloatComplex:
		return errors.New("only float complex IQ output is supported")
	}
	return nil
}

func (p *Provider) Create(cfg *sensor.Config) (sensor.Service, error) {
	if p.FailCreate != nil {
		return nil, p.FailCreate
	}
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}

	target := p.TargetM
	if target == 0 {
		target = defaultTargetM
	}
	gain := defaultGain
	if cfg.Gain != nil {
		gain = *cfg.Gain
	}
	var smoothing float64
	if cfg.RunningAverage != nil {
		smoothing = *cfg.RunningAverage
	}

	points := int(math.Ceil(cfg.LengthM / stepM))
	length := points
	if cfg.Mode == sensor.PowerBin {
		length = cfg.BinCount
	}

	return &service{
		provider:  p,
		cfg:       *cfg,
		target:    target,
		gain:      gain,
		smoothing: smoothing,
		points:    points,
		period:    time.Duration(float64(time.Second) / cfg.RepetitionHz),
		rng:       rand.New(rand.NewSource(p.Seed)),
		md: sensor.Metadata{
			Mode:    cfg.Mode,
			Length:  length,
			StartM:  cfg.StartM,
			LengthM: float64(points) * stepM,
		},
	}, nil
}

type service struct {
	provider *Provider
	cfg      sensor.Config
	md       sensor.Metadata

	target    float64
	gain      float64
	smoothing float64
	points    int
	period    time.Duration

	mu        sync.Mutex
	rng       *rand.Rand
	active    bool
	destroyed bool
	produced  int
	due       time.Time
	// previous smoothed envelope, used by the running average.
	previous []float64
}

func (s *service) Metadata() sensor.Metadata {
	return s.md
}

func (s *service) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return errDestroyed
	}
	if s.active {
		return errors.New("service already active")
	}
	if s.provider.FailActivate != nil {
		return s.provider.FailActivate
	}
	s.active = true
	s.due = time.Now()
	return nil
}

func (s *service) Next(f *sensor.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return errDestroyed
	}
	if !s.active {
		return errNotActive
	}
	if s.provider.FailAfter > 0 && s.produced >= s.provider.FailAfter {
		return fmt.Errorf("no frame after %d updates", s.produced)
	}
	if f.Mode != s.md.Mode || f.Len() != s.md.Length {
		return fmt.Errorf("frame buffer holds %d %s elements, need %d %s", f.Len(), f.Mode, s.md.Length, s.md.Mode)
	}

	if !s.provider.Unpaced {
		if wait := time.Until(s.due); wait > 0 {
			time.Sleep(wait)
		}
		s.due = s.due.Add(s.period)
	}

	env := s.envelope()
	switch s.md.Mode {
	case sensor.PowerBin:
		binPoints := float64(len(env)) / float64(len(f.Amplitudes))
		for i := range f.Amplitudes {
			lo := int(float64(i) * binPoints)
			hi := int(float64(i+1) * binPoints)
			if hi <= lo {
				hi = lo + 1
			}
			var sum float64
			for _, v := range env[lo:min(hi, len(env))] {
				sum += v
			}
			f.Amplitudes[i] = clampUint16(sum / float64(hi-lo))
		}
	case sensor.Envelope:
		for i := range f.Amplitudes {
			f.Amplitudes[i] = clampUint16(env[i])
		}
	case sensor.IQ:
		for i := range f.IQ {
			d := s.distance(i)
			phase := 4*math.Pi*d/wavelengthM + 0.05*float64(s.produced)
			v := cmplx.Rect(env[i]/echoPeak, phase)
			f.IQ[i] = complex64(v)
		}
	}
	s.produced++
	return nil
}

func (s *service) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return errDestroyed
	}
	if !s.active {
		return errNotActive
	}
	s.active = false
	return nil
}

func (s *service) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return errDestroyed
	}
	s.destroyed = true
	s.active = false
	s.previous = nil
	return nil
}

func (s *service) distance(i int) float64 {
	return s.cfg.StartM + float64(i)*stepM
}

// envelope synthesizes one envelope sweep over all points, smoothed with the
// previous one by the running average factor.
func (s *service) envelope() []float64 {
	env := make([]float64, s.points)
	for i := range env {
		d := s.distance(i) - s.target
		echo := echoPeak * s.gain * math.Exp(-(d*d)/(echoWidthM*echoWidthM))
		env[i] = noiseFloor + echo + s.rng.NormFloat64()*noiseFloor*0.1
	}
	if s.previous != nil && s.smoothing > 0 {
		for i := range env {
			env[i] = s.smoothing*s.previous[i] + (1-s.smoothing)*env[i]
		}
	}
	s.previous = env
	return env
}

func clampUint16(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v + 0.5)
	}
}
