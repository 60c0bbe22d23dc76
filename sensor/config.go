package sensor

import (
	"fmt"

	"github.com/golang/glog"
)

// Defaults applied when an option is not given.
const (
	DefaultStartM      = 0.07
	DefaultEndM        = 0.5
	DefaultFrequencyHz = 10.0
	DefaultBinCount    = 10
	DefaultSensor      = 1

	MaxFrequencyHz = 100000.0
	MaxBinCount    = 32
	MaxSensor      = 4
)

// Options are the user supplied acquisition parameters.
type Options struct {
	Mode Mode

	// StartM is where measurements start, EndM where they end, in meters.
	StartM float64
	EndM   float64

	// FrequencyHz is the streaming update rate.
	FrequencyHz float64

	// Sensor is the id of the physical sensor, starting at 1.
	Sensor int

	// BinCount is the requested number of power bins. Ignored for other modes.
	BinCount int

	// Optional overrides. Nil defers to the provider default.
	Gain           *float64
	RunningAverage *float64
	Profile        *int
}

// DefaultOptions returns options with every default applied and no mode selected.
func DefaultOptions() Options {
	return Options{
		StartM:      DefaultStartM,
		EndM:        DefaultEndM,
		FrequencyHz: DefaultFrequencyHz,
		Sensor:      DefaultSensor,
		BinCount:    DefaultBinCount,
	}
}

// Validate checks every option against its permitted range. The distance
// window is left to the provider.
func (o *Options) Validate() error {
	if o.Mode != PowerBin && o.Mode != Envelope && o.Mode != IQ {
		return fmt.Errorf("%w: missing option service type", ErrInvalidMode)
	}
	if !(o.FrequencyHz > 0 && o.FrequencyHz < MaxFrequencyHz) {
		return fmt.Errorf("%w: frequency %v", ErrOutOfRange, o.FrequencyHz)
	}
	if o.Gain != nil && (*o.Gain < 0 || *o.Gain > 1) {
		return fmt.Errorf("%w: gain %v", ErrOutOfRange, *o.Gain)
	}
	if o.BinCount <= 0 || o.BinCount > MaxBinCount {
		return fmt.Errorf("%w: number of bins %d", ErrOutOfRange, o.BinCount)
	}
	if o.RunningAverage != nil && (*o.RunningAverage < 0 || *o.RunningAverage > 1) {
		return fmt.Errorf("%w: running average factor %v", ErrOutOfRange, *o.RunningAverage)
	}
	if o.Sensor <= 0 || o.Sensor > MaxSensor {
		return fmt.Errorf("%w: sensor id %d", ErrOutOfRange, o.Sensor)
	}
	if o.Profile != nil && *o.Profile < 1 {
		return fmt.Errorf("%w: service profile %d", ErrOutOfRange, *o.Profile)
	}
	return nil
}

// IQFormat is the sample representation of IQ frames.
type IQFormat int

const (
	IQFormatDefault IQFormat = iota
	IQFormatFloatComplex
)

// Config is the mode specific configuration handed to a Provider.
type Config struct {
	Mode   Mode
	Sensor int

	StartM  float64
	LengthM float64
	// RepetitionHz is the streaming repetition rate.
	RepetitionHz float64

	// Profile numbering starts at 1; nil uses the service default profile.
	Profile *int
	Gain    *float64

	// BinCount is only used in power bin mode.
	BinCount int
	// RunningAverage is only used in envelope and IQ mode.
	RunningAverage *float64
	// IQFormat is only used in IQ mode.
	IQFormat IQFormat
}

func baseConfig(mode Mode, o *Options) *Config {
	cfg := &Config{
		Mode:         mode,
		Sensor:       o.Sensor,
		StartM:       o.StartM,
		LengthM:      o.EndM - o.StartM,
		RepetitionHz: o.FrequencyHz,
	}
	if o.Profile != nil {
		p := *o.Profile
		cfg.Profile = &p
	}
	if o.Gain != nil {
		g := *o.Gain
		cfg.Gain = &g
	}
	return cfg
}

// BuildPowerBin builds a power bin configuration.
func BuildPowerBin(o *Options) *Config {
	cfg := baseConfig(PowerBin, o)
	cfg.BinCount = o.BinCount
	return cfg
}

// BuildEnvelope builds an envelope configuration.
func BuildEnvelope(o *Options) *Config {
	cfg := baseConfig(Envelope, o)
	if o.RunningAverage != nil {
		glog.Infof("using running avg: %f", *o.RunningAverage)
		r := *o.RunningAverage
		cfg.RunningAverage = &r
	}
	return cfg
}

// BuildIQ builds an IQ configuration producing complex float samples.
func BuildIQ(o *Options) *Config {
	cfg := BuildEnvelope(o)
	cfg.Mode = IQ
	cfg.IQFormat = IQFormatFloatComplex
	return cfg
}

var builders = map[Mode]func(*Options) *Config{
	PowerBin: BuildPowerBin,
	Envelope: BuildEnvelope,
	IQ:       BuildIQ,
}

// Build builds the configuration for o.Mode.
func Build(o *Options) (*Config, error) {
	build, ok := builders[o.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, o.Mode)
	}
	return build(o), nil
}

// Configure builds the configuration for o.Mode and lets p validate it.
func Configure(p Provider, o *Options) (*Config, error) {
	cfg, err := Build(o)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s %s configuration: %w", ErrConfigurationBuild, p.Name(), cfg.Mode, err)
	}
	return cfg, nil
}
