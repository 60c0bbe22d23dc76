package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang/glog"

	"github.com/hb9tf/radarlog/sensor"
)

const (
	contentType = "application/json"
	// CollectEndpoint is the path the collector server accepts records on.
	CollectEndpoint        = "/radarlog/v1/collect"
	defaultSendRecordCount = 100
)

// CollectResponse is returned by the collector for every accepted batch.
type CollectResponse struct {
	Status      string `json:"status"`
	RecordCount int    `json:"recordCount"`
}

// Server pushes batches of records to a collector server.
type Server struct {
	Identifier string
	Source     string
	// Server is the base URL of the collector, e.g. https://host:8443.
	Server string
	// SendRecordCount is the batch size. Defaults to 100.
	SendRecordCount int
	Client          *http.Client

	batch  []Record
	counts map[string]int
}

func (s *Server) Write(ctx context.Context, f *sensor.Frame) error {
	return s.WriteRecord(ctx, NewRecord(s.Identifier, s.Source, f))
}

// WriteRecord queues r and sends the batch once it is full. The records
// of a batch that could not be sent are dropped.
func (s *Server) WriteRecord(ctx context.Context, r Record) error {
	s.batch = append(s.batch, r)
	size := defaultSendRecordCount
	if s.SendRecordCount > 0 {
		size = s.SendRecordCount
	}
	if len(s.batch) < size {
		return nil // not enough records collected yet
	}
	return s.flush(ctx)
}

func (s *Server) flush(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}
	if s.counts == nil {
		s.counts = newCounts()
	}
	n := len(s.batch)
	err := s.send(ctx, s.batch)
	for i := 0; i < n; i++ {
		count("server", s.counts, err)
	}
	s.batch = nil
	if err != nil {
		glog.Warningf("error sending %d records to %s: %s\n", n, s.Server, err)
		return fmt.Errorf("unable to send %d records to %s: %w", n, s.Server, err)
	}
	return nil
}

func (s *Server) send(ctx context.Context, records []Record) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("error marshalling records to JSON: %w", err)
	}
	url := strings.TrimRight(s.Server, "/") + CollectEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error POSTing records: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading POST body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	collectResponse := CollectResponse{}
	if err := json.Unmarshal(respBody, &collectResponse); err != nil {
		return fmt.Errorf("error decoding collector response: %w", err)
	}
	glog.V(1).Infof("submitted %d records to server %s", collectResponse.RecordCount, s.Server)
	return nil
}

// Close sends any records still queued.
func (s *Server) Close() error {
	err := s.flush(context.Background())
	glog.V(1).Infof("server export counts: %+v", s.counts)
	return err
}
