package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/hb9tf/radarlog/acquire"
	"github.com/hb9tf/radarlog/config"
	"github.com/hb9tf/radarlog/export"
	"github.com/hb9tf/radarlog/sensor"
)

// progressEvery is how many updates pass between two progress logs.
const progressEvery = 1000

// settings is the merged result of command line flags and the config file.
type settings struct {
	sensor sensor.Options
	loop   acquire.Options

	id      string
	out     string
	verbose bool

	provider   string
	replayFile string
	replayLoop bool
	unpaced    bool

	export      string
	sqliteFile  string
	mysql       export.MySQLConfig
	server      string
	serverBatch int

	notify        string
	notifyURL     string
	notifyChannel string

	archive          string
	archiveRegion    string
	archiveEndpoint  string
	archivePathStyle bool
}

// resolveSettings merges c and fc. A flag given on the command line wins
// over the config file, which wins over the flag default.
func resolveSettings(c *cli.Context, fc *config.Config) (*settings, error) {
	if fc == nil {
		fc = &config.Config{}
	}
	s := &settings{
		sensor: sensor.DefaultOptions(),
		loop: acquire.Options{
			UpdateCount:            resolveInt(c, flagSweepCount, fc.SweepCount),
			StopBoundedOnInterrupt: resolveBool(c, flagInterruptBounded, fc.InterruptBounded),
			ProgressEvery:          progressEvery,
		},
		id:      resolveString(c, flagID, fc.ID),
		out:     resolveString(c, flagOut, fc.Out),
		verbose: resolveBool(c, flagVerbose, fc.Verbose),

		provider:   strings.ToLower(resolveString(c, flagProvider, fc.Provider.Name)),
		replayFile: resolveString(c, flagReplayFile, fc.Provider.ReplayFile),
		replayLoop: resolveBool(c, flagReplayLoop, fc.Provider.ReplayLoop),
		unpaced:    c.Bool(flagUnpaced),

		export:     strings.ToLower(resolveString(c, flagExport, fc.Export.Type)),
		sqliteFile: resolveString(c, flagSQLiteFile, fc.Export.SQLiteFile),
		mysql: export.MySQLConfig{
			Server:       resolveString(c, flagMySQLServer, fc.Export.MySQL.Server),
			User:         resolveString(c, flagMySQLUser, fc.Export.MySQL.User),
			PasswordFile: resolveString(c, flagMySQLPasswordFile, fc.Export.MySQL.PasswordFile),
			DBName:       resolveString(c, flagMySQLDBName, fc.Export.MySQL.DBName),
		},
		server:      resolveString(c, flagServer, fc.Export.Server),
		serverBatch: resolveInt(c, flagServerBatch, fc.Export.ServerBatch),

		notify:        strings.ToLower(resolveString(c, flagNotify, fc.Notify.Type)),
		notifyURL:     resolveString(c, flagNotifyURL, fc.Notify.URL),
		notifyChannel: resolveString(c, flagNotifyChannel, fc.Notify.Channel),

		archive:          resolveString(c, flagArchive, fc.Archive.URL),
		archiveRegion:    fc.Archive.Region,
		archiveEndpoint:  fc.Archive.Endpoint,
		archivePathStyle: fc.Archive.S3PathStyle,
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.loop.UpdateCount < 0 {
		return nil, fmt.Errorf("%w: sweep count %d", sensor.ErrOutOfRange, s.loop.UpdateCount)
	}

	if !c.IsSet(flagServiceType) && fc.ServiceType == nil {
		return nil, fmt.Errorf("%w: missing option service type (-t)", sensor.ErrInvalidMode)
	}
	mode, err := sensor.ModeFromIndex(resolveInt(c, flagServiceType, fc.ServiceType))
	if err != nil {
		return nil, err
	}
	s.sensor.Mode = mode
	s.sensor.StartM = resolveFloat(c, flagRangeStart, fc.RangeStart)
	s.sensor.EndM = resolveFloat(c, flagRangeEnd, fc.RangeEnd)
	s.sensor.FrequencyHz = resolveFloat(c, flagFrequency, fc.Frequency)
	s.sensor.Sensor = resolveInt(c, flagSensor, fc.Sensor)
	s.sensor.BinCount = resolveInt(c, flagBins, fc.Bins)
	s.sensor.Gain = resolveOptionalFloat(c, flagGain, fc.Gain)
	s.sensor.RunningAverage = resolveOptionalFloat(c, flagRunningAverage, fc.RunningAverage)
	// Profile 0 selects the provider default.
	if profile := resolveInt(c, flagProfile, fc.Profile); profile != 0 {
		s.sensor.Profile = &profile
	}
	if err := s.sensor.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// outputFile returns the file the exporter writes, if any.
func (s *settings) outputFile() string {
	switch s.export {
	case exportTSV, exportMsgPack:
		return s.out
	case exportSQLite:
		return s.sqliteFile
	default:
		return ""
	}
}

func resolveString(c *cli.Context, name, fromConfig string) string {
	if c.IsSet(name) || fromConfig == "" {
		return c.String(name)
	}
	return fromConfig
}

func resolveInt(c *cli.Context, name string, fromConfig *int) int {
	if c.IsSet(name) || fromConfig == nil {
		return c.Int(name)
	}
	return *fromConfig
}

func resolveFloat(c *cli.Context, name string, fromConfig *float64) float64 {
	if c.IsSet(name) || fromConfig == nil {
		return c.Float64(name)
	}
	return *fromConfig
}

func resolveBool(c *cli.Context, name string, fromConfig *bool) bool {
	if c.IsSet(name) || fromConfig == nil {
		return c.Bool(name)
	}
	return *fromConfig
}

// resolveOptionalFloat returns nil unless the value was given on the
// command line or in the config file.
func resolveOptionalFloat(c *cli.Context, name string, fromConfig *float64) *float64 {
	if c.IsSet(name) {
		v := c.Float64(name)
		return &v
	}
	return fromConfig
}
