package main

import (
	"context"
	"flag"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/hb9tf/radarlog/export"
)

var (
	listen   = flag.String("listen", ":8443", "Address to listen on.")
	certFile = flag.String("certFile", "", "Path of the file containing the certificate (including the chained intermediates and root) for the TLS connection.")
	keyFile  = flag.String("keyFile", "", "Path of the file containing the key for the TLS connection.")
	output   = flag.String("output", "sqlite", "Export mechanism to use (one of: sqlite, mysql)")
	queueLen = flag.Int("queue", 1000, "Number of records buffered between the handlers and the exporter.")

	// SQLite
	sqliteFile = flag.String("sqliteFile", "/tmp/radarlog.db", "File path of the sqlite DB file to use.")

	// MySQL
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "radarlog", "Name of the DB to use.")
)

const statusEndpoint = "/radarlog/v1/status"

// Collector receives records from remote loggers and hands them to a single
// exporter goroutine.
type Collector struct {
	records chan export.Record

	mu       sync.Mutex
	received int
	stored   int
	failed   int
	started  time.Time
}

func NewCollector(queueLen int) *Collector {
	return &Collector{
		records: make(chan export.Record, queueLen),
		started: time.Now(),
	}
}

// Router returns the HTTP handlers of the collector.
func (c *Collector) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST(export.CollectEndpoint, c.collectHandler)
	r.GET(statusEndpoint, c.statusHandler)
	return r
}

func (c *Collector) collectHandler(ctx *gin.Context) {
	records := []export.Record{}
	if err := ctx.ShouldBindJSON(&records); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, r := range records {
		select {
		case c.records <- r:
		case <-ctx.Request.Context().Done():
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "request aborted"})
			return
		}
	}
	c.mu.Lock()
	c.received += len(records)
	c.mu.Unlock()
	ctx.JSON(http.StatusOK, export.CollectResponse{Status: "ok", RecordCount: len(records)})
}

type statusResponse struct {
	Received int    `json:"received"`
	Stored   int    `json:"stored"`
	Failed   int    `json:"failed"`
	Queued   int    `json:"queued"`
	Uptime   string `json:"uptime"`
}

func (c *Collector) statusHandler(ctx *gin.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx.JSON(http.StatusOK, statusResponse{
		Received: c.received,
		Stored:   c.stored,
		Failed:   c.failed,
		Queued:   len(c.records),
		Uptime:   time.Since(c.started).Round(time.Second).String(),
	})
}

// Export writes queued records to w until ctx is done or the queue is
// closed.
func (c *Collector) Export(ctx context.Context, w export.RecordWriter) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-c.records:
			if !ok {
				return
			}
			err := w.WriteRecord(ctx, r)
			c.mu.Lock()
			if err != nil {
				c.failed++
			} else {
				c.stored++
			}
			c.mu.Unlock()
			if err != nil {
				glog.Warningf("unable to store record %d of run %s: %s", r.Seq, r.Identifier, err)
			}
		}
	}
}

func main() {
	ctx := context.Background()
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	gin.SetMode(gin.ReleaseMode)

	// Exporter setup
	var writer export.RecordWriter
	switch strings.ToLower(*output) {
	case "sqlite":
		db, err := export.OpenSQLite(*sqliteFile)
		if err != nil {
			glog.Exit(err)
		}
		if writer, err = export.NewSQLite(ctx, db, "", ""); err != nil {
			glog.Exitf("unable to set up sqlite DB %q: %s", *sqliteFile, err)
		}
	case "mysql":
		db, err := export.OpenMySQL(export.MySQLConfig{
			Server:       *mysqlServer,
			User:         *mysqlUser,
			PasswordFile: *mysqlPasswordFile,
			DBName:       *mysqlDBName,
		})
		if err != nil {
			glog.Exit(err)
		}
		if writer, err = export.NewMySQL(ctx, db, "", ""); err != nil {
			glog.Exitf("unable to set up MySQL DB %q: %s", *mysqlServer, err)
		}
	default:
		glog.Exitf("%q is not a supported export method, pick one of: sqlite, mysql", *output)
	}
	defer writer.Close()

	c := NewCollector(*queueLen)
	go c.Export(ctx, writer)

	// Configure and run webserver.
	srv := &http.Server{
		Addr:    *listen,
		Handler: c.Router(),
	}
	if *certFile != "" || *keyFile != "" {
		glog.Fatal(srv.ListenAndServeTLS(*certFile, *keyFile))
	} else {
		glog.Infoln("Resorting to serving HTTP because there was no certificate and key defined.")
		glog.Fatal(srv.ListenAndServe())
	}

	glog.Flush()
}
