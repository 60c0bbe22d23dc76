package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radarlog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("RADARLOG_HOOK", "https://hooks.example/radar")
	path := writeConfig(t, `
service_type: 1
sweep_count: 0
range_start: 0.2
range_end: 0.6
gain: 0.5
running_avg_factor: 0.7
interrupt_bounded: false
provider:
  name: replay
  replay_file: /data/run.tsv
export:
  type: sqlite
  sqlite_file: /data/frames.db
notify:
  type: webhook
  url: ${RADARLOG_HOOK}
archive:
  url: s3://radar/${RADARLOG_SITE:-lab}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServiceType == nil || *cfg.ServiceType != 1 {
		t.Errorf("ServiceType = %v", cfg.ServiceType)
	}
	if cfg.SweepCount == nil || *cfg.SweepCount != 0 {
		t.Errorf("SweepCount = %v, want explicit 0", cfg.SweepCount)
	}
	if cfg.Frequency != nil || cfg.Bins != nil || cfg.Profile != nil {
		t.Errorf("unset values were populated: %+v", cfg)
	}
	if cfg.RangeStart == nil || *cfg.RangeStart != 0.2 || cfg.Gain == nil || *cfg.Gain != 0.5 {
		t.Errorf("RangeStart/Gain = %v/%v", cfg.RangeStart, cfg.Gain)
	}
	if cfg.InterruptBounded == nil || *cfg.InterruptBounded {
		t.Errorf("InterruptBounded = %v, want explicit false", cfg.InterruptBounded)
	}
	if cfg.Provider.Name != "replay" || cfg.Export.SQLiteFile != "/data/frames.db" {
		t.Errorf("provider/export = %+v/%+v", cfg.Provider, cfg.Export)
	}
	if cfg.Notify.URL != "https://hooks.example/radar" {
		t.Errorf("Notify.URL = %q", cfg.Notify.URL)
	}
	if cfg.Archive.URL != "s3://radar/lab" {
		t.Errorf("Archive.URL = %q", cfg.Archive.URL)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Load(missing) error = %v", err)
	}
	if _, err := Load(writeConfig(t, "gain: [1, 2\n")); err == nil {
		t.Error("Load(invalid YAML) succeeded")
	}
	if _, err := Load(writeConfig(t, "sweeps: 3\n")); err == nil {
		t.Error("Load(unknown key) succeeded")
	}
}

func TestLoadEmpty(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load(empty) error = %v", err)
	}
	if cfg.ServiceType != nil || cfg.Out != "" {
		t.Errorf("Load(empty) = %+v", cfg)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("RADAR_SET", "on")
	t.Setenv("RADAR_EMPTY", "")
	tests := map[string]string{
		"${RADAR_SET}":         "on",
		"$RADAR_SET/x":         "on/x",
		"${RADAR_UNSET}":       "",
		"${RADAR_UNSET:-dflt}": "dflt",
		"${RADAR_EMPTY:-dflt}": "dflt",
		"${RADAR_SET:-dflt}":   "on",
		"no variables":         "no variables",
	}
	for in, want := range tests {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
