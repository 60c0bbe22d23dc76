package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hb9tf/radarlog/export"
	"github.com/hb9tf/radarlog/sensor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memWriter struct {
	mu      sync.Mutex
	records []export.Record
	done    chan struct{}
	want    int
}

func (m *memWriter) WriteRecord(ctx context.Context, r export.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	if len(m.records) == m.want {
		close(m.done)
	}
	return nil
}

func (m *memWriter) Close() error { return nil }

func TestCollectorEndToEnd(t *testing.T) {
	c := NewCollector(10)
	ts := httptest.NewServer(c.Router())
	defer ts.Close()

	w := &memWriter{done: make(chan struct{}), want: 3}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Export(ctx, w)

	push := &export.Server{Identifier: "run-5", Source: "synthetic", Server: ts.URL, SendRecordCount: 2}
	for i := 1; i <= 3; i++ {
		f := &sensor.Frame{Mode: sensor.Envelope, Seq: uint64(i), Amplitudes: []uint16{uint16(i), 9}}
		if err := push.Write(ctx, f); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	push.Close()

	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for records")
	}
	w.mu.Lock()
	for i, r := range w.records {
		if r.Identifier != "run-5" || r.Seq != uint64(i+1) || len(r.Amplitudes) != 2 {
			t.Errorf("record %d = %+v", i, r)
		}
	}
	w.mu.Unlock()

	resp, err := http.Get(ts.URL + statusEndpoint)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Received != 3 {
		t.Errorf("status = %+v", status)
	}
}

func TestCollectRejectsBadJSON(t *testing.T) {
	c := NewCollector(1)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, export.CollectEndpoint, strings.NewReader("{not json"))
	c.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCollectorStoresInSQLite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db, err := export.OpenSQLite(filepath.Join(t.TempDir(), "collector.db"))
	if err != nil {
		t.Fatal(err)
	}
	w, err := export.NewSQLite(ctx, db, "", "")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	c := NewCollector(4)
	body := `[{"identifier":"run-1","source":"replay","mode":"power_bin","seq":1,"time":1700000000000,"amplitudes":[1,2,3]}]`
	rec := httptest.NewRecorder()
	c.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, export.CollectEndpoint, strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	close(c.records)
	c.Export(ctx, w)

	if c.stored != 1 || c.failed != 0 {
		t.Fatalf("stored = %d, failed = %d", c.stored, c.failed)
	}
	var data string
	if err := db.QueryRow("SELECT Data FROM frames WHERE Identifier = ?", "run-1").Scan(&data); err != nil {
		t.Fatal(err)
	}
	if data != "1\t2\t3" {
		t.Errorf("Data = %q", data)
	}
}
