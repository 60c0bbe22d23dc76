// Package config reads radarlog.yaml. Every value is optional and acts as a
// default for the corresponding command line flag; flags given on the
// command line always win.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config mirrors the command line flags. Pointer fields distinguish an
// explicit zero from an absent value.
type Config struct {
	ServiceType      *int     `yaml:"service_type"`
	SweepCount       *int     `yaml:"sweep_count"`
	RangeStart       *float64 `yaml:"range_start"`
	RangeEnd         *float64 `yaml:"range_end"`
	Frequency        *float64 `yaml:"frequency"`
	Gain             *float64 `yaml:"gain"`
	Bins             *int     `yaml:"number_of_bins"`
	Out              string   `yaml:"out"`
	Profile          *int     `yaml:"service_profile"`
	RunningAverage   *float64 `yaml:"running_avg_factor"`
	Sensor           *int     `yaml:"sensor"`
	Verbose          *bool    `yaml:"verbose"`
	ID               string   `yaml:"id"`
	InterruptBounded *bool    `yaml:"interrupt_bounded"`

	Provider ProviderConfig `yaml:"provider"`
	Export   ExportConfig   `yaml:"export"`
	Notify   NotifyConfig   `yaml:"notify"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// ProviderConfig selects the radar service stack.
type ProviderConfig struct {
	Name       string `yaml:"name"`
	ReplayFile string `yaml:"replay_file"`
	ReplayLoop *bool  `yaml:"replay_loop"`
}

// ExportConfig selects where frames go.
type ExportConfig struct {
	Type        string      `yaml:"type"`
	SQLiteFile  string      `yaml:"sqlite_file"`
	MySQL       MySQLConfig `yaml:"mysql"`
	Server      string      `yaml:"server"`
	ServerBatch *int        `yaml:"server_batch"`
}

type MySQLConfig struct {
	Server       string `yaml:"server"`
	User         string `yaml:"user"`
	PasswordFile string `yaml:"password_file"`
	DBName       string `yaml:"db_name"`
}

// NotifyConfig configures the run completed notification.
type NotifyConfig struct {
	// Type is webhook or redis.
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type ArchiveConfig struct {
	// URL has the form s3://bucket/prefix.
	URL         string `yaml:"url"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Load reads the YAML file at path, expanding environment variables first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &cfg, nil
}

// ExpandEnv replaces ${VAR} and $VAR with the value of the environment
// variable. ${VAR:-default} falls back to default if VAR is unset or empty.
func ExpandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		key, def, hasDefault := strings.Cut(name, ":-")
		if v := os.Getenv(key); v != "" || !hasDefault {
			return v
		}
		return def
	})
}
