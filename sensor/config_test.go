package sensor

import (
	"errors"
	"testing"
)

func ptr[T any](v T) *T { return &v }

type stubProvider struct {
	err error
	got *Config
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Validate(cfg *Config) error {
	s.got = cfg
	return s.err
}

func (s *stubProvider) Create(*Config) (Service, error) { return nil, errors.New("not implemented") }

func TestBuildPowerBin(t *testing.T) {
	o := DefaultOptions()
	o.Mode = PowerBin
	o.StartM = 0.2
	o.EndM = 0.7
	o.BinCount = 3
	o.Sensor = 2
	o.FrequencyHz = 50

	cfg := BuildPowerBin(&o)
	if cfg.Mode != PowerBin {
		t.Fatalf("mode = %v, want power_bin", cfg.Mode)
	}
	if cfg.BinCount != 3 {
		t.Errorf("bin count = %d, want 3", cfg.BinCount)
	}
	if cfg.StartM != 0.2 {
		t.Errorf("start = %v, want 0.2", cfg.StartM)
	}
	if d := cfg.LengthM - 0.5; d > 1e-9 || d < -1e-9 {
		t.Errorf("length = %v, want 0.5", cfg.LengthM)
	}
	if cfg.RepetitionHz != 50 {
		t.Errorf("repetition = %v, want 50", cfg.RepetitionHz)
	}
	if cfg.Sensor != 2 {
		t.Errorf("sensor = %d, want 2", cfg.Sensor)
	}
	if cfg.Gain != nil || cfg.Profile != nil || cfg.RunningAverage != nil {
		t.Errorf("unset optionals must stay nil, got gain=%v profile=%v avg=%v", cfg.Gain, cfg.Profile, cfg.RunningAverage)
	}
}

func TestBuildOptionalsOnlyWhenSet(t *testing.T) {
	o := DefaultOptions()
	o.Gain = ptr(0.5)
	o.Profile = ptr(3)
	o.RunningAverage = ptr(0.7)

	env := BuildEnvelope(&o)
	if env.Gain == nil || *env.Gain != 0.5 {
		t.Errorf("envelope gain = %v, want 0.5", env.Gain)
	}
	if env.Profile == nil || *env.Profile != 3 {
		t.Errorf("envelope profile = %v, want 3", env.Profile)
	}
	if env.RunningAverage == nil || *env.RunningAverage != 0.7 {
		t.Errorf("envelope running average = %v, want 0.7", env.RunningAverage)
	}
	if env.BinCount != 0 {
		t.Errorf("envelope bin count = %d, want 0", env.BinCount)
	}

	pb := BuildPowerBin(&o)
	if pb.RunningAverage != nil {
		t.Errorf("power bin must not carry running average")
	}

	*o.Gain = 0.9
	if *env.Gain != 0.5 {
		t.Errorf("config must not alias options")
	}
}

func TestBuildIQForcesComplexFormat(t *testing.T) {
	o := DefaultOptions()
	cfg := BuildIQ(&o)
	if cfg.Mode != IQ {
		t.Fatalf("mode = %v, want iq", cfg.Mode)
	}
	if cfg.IQFormat != IQFormatFloatComplex {
		t.Errorf("iq format = %v, want float complex", cfg.IQFormat)
	}
}

func TestBuildInvalidMode(t *testing.T) {
	o := DefaultOptions()
	if _, err := Build(&o); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("Build() error = %v, want ErrInvalidMode", err)
	}
}

func TestConfigure(t *testing.T) {
	o := DefaultOptions()
	o.Mode = Envelope

	p := &stubProvider{}
	cfg, err := Configure(p, &o)
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if p.got != cfg {
		t.Errorf("provider did not validate the built config")
	}

	p = &stubProvider{err: errors.New("length too large")}
	if _, err := Configure(p, &o); !errors.Is(err, ErrConfigurationBuild) {
		t.Fatalf("Configure() error = %v, want ErrConfigurationBuild", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	valid := func() Options {
		o := DefaultOptions()
		o.Mode = PowerBin
		return o
	}

	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr error
	}{
		{name: "defaults", mutate: func(*Options) {}},
		{name: "missing mode", mutate: func(o *Options) { o.Mode = ModeInvalid }, wantErr: ErrInvalidMode},
		{name: "zero frequency", mutate: func(o *Options) { o.FrequencyHz = 0 }, wantErr: ErrOutOfRange},
		{name: "frequency at limit", mutate: func(o *Options) { o.FrequencyHz = MaxFrequencyHz }, wantErr: ErrOutOfRange},
		{name: "gain above one", mutate: func(o *Options) { o.Gain = ptr(1.5) }, wantErr: ErrOutOfRange},
		{name: "gain zero", mutate: func(o *Options) { o.Gain = ptr(0.0) }},
		{name: "zero bins", mutate: func(o *Options) { o.BinCount = 0 }, wantErr: ErrOutOfRange},
		{name: "33 bins", mutate: func(o *Options) { o.BinCount = 33 }, wantErr: ErrOutOfRange},
		{name: "32 bins", mutate: func(o *Options) { o.BinCount = 32 }},
		{name: "negative running average", mutate: func(o *Options) { o.RunningAverage = ptr(-0.1) }, wantErr: ErrOutOfRange},
		{name: "sensor zero", mutate: func(o *Options) { o.Sensor = 0 }, wantErr: ErrOutOfRange},
		{name: "sensor five", mutate: func(o *Options) { o.Sensor = 5 }, wantErr: ErrOutOfRange},
		{name: "sensor four", mutate: func(o *Options) { o.Sensor = 4 }},
		{name: "profile zero", mutate: func(o *Options) { o.Profile = ptr(0) }, wantErr: ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
