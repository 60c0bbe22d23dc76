// Command radarlog configures a radar service in power bin, envelope or IQ
// mode, polls its frames and logs them as tab separated lines, one frame
// per line, to a file or standard output.
//
// Usage:
//
//	radarlog -t <service type> [options]
//
// Every run ends with exit code 0 on success and 1 on any failure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/golang/glog"
	"github.com/urfave/cli/v2"

	"github.com/hb9tf/radarlog/acquire"
	"github.com/hb9tf/radarlog/archive"
	"github.com/hb9tf/radarlog/config"
	"github.com/hb9tf/radarlog/export"
	"github.com/hb9tf/radarlog/notify"
	redisnotify "github.com/hb9tf/radarlog/notify/redis"
	"github.com/hb9tf/radarlog/notify/webhook"
	"github.com/hb9tf/radarlog/sensor"
	"github.com/hb9tf/radarlog/sensor/replay"
	"github.com/hb9tf/radarlog/sensor/synthetic"
)

const (
	flagServiceType       = "service-type"
	flagSweepCount        = "sweep-count"
	flagRangeStart        = "range-start"
	flagRangeEnd          = "range-end"
	flagFrequency         = "frequency"
	flagGain              = "gain"
	flagBins              = "number-of-bins"
	flagOut               = "out"
	flagProfile           = "service-profile"
	flagRunningAverage    = "running-avg-factor"
	flagSensor            = "sensor"
	flagVerbose           = "verbose"
	flagConfig            = "config"
	flagProvider          = "provider"
	flagReplayFile        = "replay-file"
	flagReplayLoop        = "replay-loop"
	flagUnpaced           = "unpaced"
	flagExport            = "export"
	flagSQLiteFile        = "sqlite-file"
	flagMySQLServer       = "mysql-server"
	flagMySQLUser         = "mysql-user"
	flagMySQLPasswordFile = "mysql-password-file"
	flagMySQLDBName       = "mysql-db"
	flagServer            = "server"
	flagServerBatch       = "server-batch"
	flagID                = "id"
	flagInterruptBounded  = "interrupt-bounded"
	flagNotify            = "notify"
	flagNotifyURL         = "notify-url"
	flagNotifyChannel     = "notify-channel"
	flagArchive           = "archive"

	exportTSV     = "tsv"
	exportMsgPack = "msgpack"
	exportSQLite  = "sqlite"
	exportMySQL   = "mysql"
	exportServer  = "server"
)

func newApp() *cli.App {
	return &cli.App{
		Name:            "radarlog",
		Usage:           "log radar service frames as tab separated lines",
		UsageText:       "radarlog -t <0|1|2> [options]",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: flagServiceType, Aliases: []string{"t"}, Usage: "service type: 0 = power bin, 1 = envelope, 2 = IQ"},
			&cli.IntFlag{Name: flagSweepCount, Aliases: []string{"c"}, Usage: "number of updates, 0 runs until interrupted"},
			&cli.Float64Flag{Name: flagRangeStart, Aliases: []string{"b"}, Value: sensor.DefaultStartM, Usage: "start of measurement range in meters"},
			&cli.Float64Flag{Name: flagRangeEnd, Aliases: []string{"e"}, Value: sensor.DefaultEndM, Usage: "end of measurement range in meters"},
			&cli.Float64Flag{Name: flagFrequency, Aliases: []string{"f"}, Value: sensor.DefaultFrequencyHz, Usage: "update rate in Hz, 0 < f < 100000"},
			&cli.Float64Flag{Name: flagGain, Aliases: []string{"g"}, Usage: "receiver gain, 0 to 1 (default: service default)"},
			&cli.IntFlag{Name: flagBins, Aliases: []string{"n"}, Value: sensor.DefaultBinCount, Usage: "number of bins, power bin only, 1 to 32"},
			&cli.StringFlag{Name: flagOut, Aliases: []string{"o"}, Usage: "output file, standard output if omitted"},
			&cli.IntFlag{Name: flagProfile, Aliases: []string{"y"}, Usage: "service profile, 0 selects the service default"},
			&cli.Float64Flag{Name: flagRunningAverage, Aliases: []string{"r"}, Usage: "running average factor, envelope and IQ only, 0 to 1"},
			&cli.IntFlag{Name: flagSensor, Aliases: []string{"s"}, Value: sensor.DefaultSensor, Usage: "sensor id, 1 to 4"},
			&cli.BoolFlag{Name: flagVerbose, Aliases: []string{"v"}, Usage: "verbose logging"},
			&cli.StringFlag{Name: flagConfig, Usage: "YAML file with defaults for these flags"},

			&cli.StringFlag{Name: flagProvider, Value: synthetic.Name, Usage: "radar service stack (synthetic, replay)"},
			&cli.StringFlag{Name: flagReplayFile, Usage: "TSV or msgpack log served by the replay provider"},
			&cli.BoolFlag{Name: flagReplayLoop, Usage: "restart the replay file at its end"},
			&cli.BoolFlag{Name: flagUnpaced, Usage: "do not wait for the update rate between synthetic frames"},

			&cli.StringFlag{Name: flagExport, Value: exportTSV, Usage: "export mechanism (tsv, msgpack, sqlite, mysql, server)"},
			&cli.StringFlag{Name: flagSQLiteFile, Value: "/tmp/radarlog.db", Usage: "sqlite DB file"},
			&cli.StringFlag{Name: flagMySQLServer, Value: "127.0.0.1:3306", Usage: "MySQL TCP endpoint (IP/DNS and port)"},
			&cli.StringFlag{Name: flagMySQLUser, Usage: "MySQL user"},
			&cli.StringFlag{Name: flagMySQLPasswordFile, Usage: "file containing the password of the MySQL user"},
			&cli.StringFlag{Name: flagMySQLDBName, Value: "radarlog", Usage: "MySQL database"},
			&cli.StringFlag{Name: flagServer, Usage: "collector server URL"},
			&cli.IntFlag{Name: flagServerBatch, Value: 100, Usage: "records sent to the collector per request"},

			&cli.StringFlag{Name: flagID, Usage: "run identifier (default: random UUID)"},
			&cli.BoolFlag{Name: flagInterruptBounded, Value: true, Usage: "let an interrupt end runs with a sweep count early"},
			&cli.StringFlag{Name: flagNotify, Usage: "publish a run completed event (webhook, redis)"},
			&cli.StringFlag{Name: flagNotifyURL, Usage: "webhook URL or redis://host:port"},
			&cli.StringFlag{Name: flagNotifyChannel, Usage: "redis channel"},
			&cli.StringFlag{Name: flagArchive, Usage: "upload the output file to s3://bucket/prefix"},
		},
		Action: runAction,
	}
}

func main() {
	// Set defaults for glog flags. Can be overridden via --verbose.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	flag.CommandLine.Parse(nil)

	app := newApp()
	app.ExitErrHandler = exitErrHandler
	err := app.Run(os.Args)
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

// exitErrHandler prints the message of a failed run and exits with its code.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	glog.Flush()
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		if msg := exitCoder.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(exitCoder.ExitCode())
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runAction(c *cli.Context) error {
	ctx := c.Context

	var fc *config.Config
	if path := c.String(flagConfig); path != "" {
		var err error
		if fc, err = config.Load(path); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	s, err := resolveSettings(c, fc)
	if err != nil {
		return usageError(c, err)
	}
	if s.verbose {
		flag.Set("v", "2")
		flag.Set("stderrthreshold", "INFO")
	}

	provider, err := newProvider(s)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	cfg, err := sensor.Configure(provider, &s.sensor)
	if err != nil {
		return usageError(c, err)
	}
	// Reject unusable sinks before the service is created.
	if err := s.checkExport(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	var uploader *archive.S3
	if s.archive != "" {
		if uploader, err = newArchive(ctx, s); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	notifier, err := newNotifier(s)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if notifier != nil {
		defer notifier.Close()
	}

	interrupt := &acquire.Flag{}
	stop := acquire.NotifyOnSignal(interrupt, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &acquire.Runner{
		Provider: provider,
		Open: func(md sensor.Metadata) (acquire.Sink, error) {
			return openExporter(ctx, c, s, provider.Name())
		},
		Interrupt:  interrupt,
		Options:    s.loop,
		Identifier: s.id,
	}
	glog.Infof("run %s: %s service on %s provider, writing %s", s.id, cfg.Mode, provider.Name(), s.export)
	res, runErr := runner.Run(ctx, cfg)
	glog.Infof("run %s: %d updates in %s, state %s", s.id, res.Updates, res.Duration(), res.State)

	var location string
	if file := s.outputFile(); uploader != nil && file != "" && (runErr == nil || res.Updates > 0) {
		if location, err = uploader.Upload(ctx, s.id, file); err != nil {
			glog.Errorf("archiving %s failed: %s", file, err)
		}
	}
	if notifier != nil {
		if err := notifier.Publish(ctx, notify.NewEvent(res, s.outputFile(), location)); err != nil {
			glog.Errorf("run completed notification failed: %s", err)
		}
	}

	if runErr != nil {
		return cli.Exit(runErr.Error(), 1)
	}
	return nil
}

// usageError prints the usage text to the error writer when err stems from
// an invalid argument.
func usageError(c *cli.Context, err error) error {
	if errors.Is(err, sensor.ErrInvalidMode) || errors.Is(err, sensor.ErrOutOfRange) {
		tmpl := c.App.CustomAppHelpTemplate
		if tmpl == "" {
			tmpl = cli.AppHelpTemplate
		}
		cli.HelpPrinter(c.App.ErrWriter, tmpl, c.App)
	}
	return cli.Exit(err.Error(), 1)
}

func newProvider(s *settings) (sensor.Provider, error) {
	switch s.provider {
	case synthetic.Name:
		return &synthetic.Provider{Unpaced: s.unpaced}, nil
	case replay.Name:
		return &replay.Provider{Path: s.replayFile, Loop: s.replayLoop, Paced: !s.unpaced}, nil
	default:
		return nil, fmt.Errorf("%q is not a supported provider, pick one of: %s, %s", s.provider, synthetic.Name, replay.Name)
	}
}

func (s *settings) checkExport() error {
	switch s.export {
	case exportTSV, exportMsgPack, exportSQLite, exportMySQL:
		return nil
	case exportServer:
		if s.server == "" {
			return errors.New("--server is required for the server export")
		}
		return nil
	default:
		return fmt.Errorf("%q is not a supported export method, pick one of: tsv, msgpack, sqlite, mysql, server", s.export)
	}
}

// openExporter creates the sink of a run. It is called once the service is
// active.
func openExporter(ctx context.Context, c *cli.Context, s *settings, source string) (export.Exporter, error) {
	switch s.export {
	case exportTSV:
		if s.out == "" {
			return export.NewTSV(c.App.Writer, true), nil
		}
		return export.CreateTSV(s.out)
	case exportMsgPack:
		if s.out == "" {
			return export.NewMsgPack(c.App.Writer, s.id, source), nil
		}
		return export.CreateMsgPack(s.out, s.id, source)
	case exportSQLite:
		db, err := export.OpenSQLite(s.sqliteFile)
		if err != nil {
			return nil, err
		}
		e, err := export.NewSQLite(ctx, db, s.id, source)
		if err != nil {
			db.Close()
			return nil, err
		}
		return e, nil
	case exportMySQL:
		db, err := export.OpenMySQL(s.mysql)
		if err != nil {
			return nil, err
		}
		e, err := export.NewMySQL(ctx, db, s.id, source)
		if err != nil {
			db.Close()
			return nil, err
		}
		return e, nil
	case exportServer:
		return &export.Server{
			Identifier:      s.id,
			Source:          source,
			Server:          s.server,
			SendRecordCount: s.serverBatch,
		}, nil
	default:
		return nil, fmt.Errorf("%q is not a supported export method", s.export)
	}
}

func newArchive(ctx context.Context, s *settings) (*archive.S3, error) {
	if s.outputFile() == "" {
		return nil, fmt.Errorf("--archive needs a file output, %s export writes none", s.export)
	}
	cfg, err := archive.ParseURL(s.archive)
	if err != nil {
		return nil, err
	}
	cfg.Region = s.archiveRegion
	cfg.Endpoint = s.archiveEndpoint
	cfg.UsePathStyle = s.archivePathStyle
	return archive.New(ctx, cfg)
}

func newNotifier(s *settings) (notify.Notifier, error) {
	switch s.notify {
	case "":
		return nil, nil
	case "webhook":
		return webhook.New(webhook.Config{URL: s.notifyURL, Retries: webhook.DefaultRetries})
	case "redis":
		return redisnotify.New(redisnotify.Config{URL: s.notifyURL, Channel: s.notifyChannel, Retries: redisnotify.DefaultRetries})
	default:
		return nil, fmt.Errorf("%q is not a supported notifier, pick one of: webhook, redis", s.notify)
	}
}
