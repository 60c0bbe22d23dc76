// Package replay serves frames recorded by an earlier run, either as a TSV
// log or as a msgpack frame file.
package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hb9tf/radarlog/export"
	"github.com/hb9tf/radarlog/sensor"
)

const (
	Name = "replay"

	maxLineSize = 4 * 1024 * 1024
)

// Format of a recorded log.
type Format int

const (
	// FormatAuto picks the format from the file extension.
	FormatAuto Format = iota
	FormatTSV
	FormatMsgPack
)

// FormatFromPath returns FormatMsgPack for .msgpack and .mpk files and
// FormatTSV for everything else.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return FormatMsgPack
	default:
		return FormatTSV
	}
}

// Provider replays the frames of a log file. The first frame defines the
// frame length, every later frame must have the same length.
type Provider struct {
	Path   string
	Format Format
	// Loop restarts at the beginning of the file once it is exhausted.
	// Without it, the end of the file is reported as a failed poll.
	Loop bool
	// Paced waits for the configured repetition rate between frames.
	Paced bool
}

func (p *Provider) Name() string {
	return Name
}

func (p *Provider) Validate(cfg *sensor.Config) error {
	if p.Path == "" {
		return errors.New("no replay file given")
	}
	if _, err := os.Stat(p.Path); err != nil {
		return err
	}
	if p.Paced && cfg.RepetitionHz <= 0 {
		return fmt.Errorf("repetition rate %v Hz must be positive", cfg.RepetitionHz)
	}
	return nil
}

func (p *Provider) Create(cfg *sensor.Config) (sensor.Service, error) {
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}
	format := p.Format
	if format == FormatAuto {
		format = FormatFromPath(p.Path)
	}
	file, err := os.Open(p.Path)
	if err != nil {
		return nil, err
	}

	s := &service{
		provider: p,
		mode:     cfg.Mode,
		format:   format,
		file:     file,
	}
	if p.Paced {
		s.period = time.Duration(float64(time.Second) / cfg.RepetitionHz)
	}
	if err := s.rewind(); err != nil {
		file.Close()
		return nil, err
	}

	first, err := s.reader.next(cfg.Mode)
	if err != nil {
		file.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("replay file %q holds no frames", p.Path)
		}
		return nil, fmt.Errorf("reading first frame of %q: %w", p.Path, err)
	}
	if first.Len() == 0 {
		file.Close()
		return nil, fmt.Errorf("first frame of %q is empty", p.Path)
	}
	s.pending = first
	s.md = sensor.Metadata{
		Mode:    cfg.Mode,
		Length:  first.Len(),
		StartM:  cfg.StartM,
		LengthM: cfg.LengthM,
	}
	return s, nil
}

type frameReader interface {
	next(mode sensor.Mode) (*sensor.Frame, error)
}

type tsvReader struct {
	scanner *bufio.Scanner
}

func (r *tsvReader) next(mode sensor.Mode) (*sensor.Frame, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		return export.ParseLine(mode, line)
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

type msgpackReader struct {
	decoder *export.FrameDecoder
}

func (r *msgpackReader) next(mode sensor.Mode) (*sensor.Frame, error) {
	rec, err := r.decoder.Next()
	if err != nil {
		return nil, err
	}
	f, err := rec.Frame()
	if err != nil {
		return nil, err
	}
	if f.Mode != mode {
		return nil, fmt.Errorf("recorded %s frame, service runs in %s mode", f.Mode, mode)
	}
	return f, nil
}

type service struct {
	provider *Provider
	mode     sensor.Mode
	format   Format
	period   time.Duration
	md       sensor.Metadata

	mu        sync.Mutex
	file      *os.File
	reader    frameReader
	pending   *sensor.Frame
	active    bool
	destroyed bool
	replayed  int
	due       time.Time
}

// rewind starts reading the file from the beginning.
func (s *service) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	switch s.format {
	case FormatMsgPack:
		s.reader = &msgpackReader{decoder: export.NewFrameDecoder(s.file)}
	default:
		scanner := bufio.NewScanner(s.file)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		s.reader = &tsvReader{scanner: scanner}
	}
	return nil
}

func (s *service) Metadata() sensor.Metadata {
	return s.md
}

func (s *service) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return errors.New("service destroyed")
	}
	if s.active {
		return errors.New("service already active")
	}
	s.active = true
	s.due = time.Now()
	return nil
}

func (s *service) Next(f *sensor.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return errors.New("service destroyed")
	}
	if !s.active {
		return errors.New("service not active")
	}

	rec, err := s.read()
	if err != nil {
		return err
	}
	if rec.Len() != s.md.Length {
		return fmt.Errorf("frame %d holds %d elements, expected %d", s.replayed+1, rec.Len(), s.md.Length)
	}
	if f.Mode != s.md.Mode || f.Len() != s.md.Length {
		return fmt.Errorf("frame buffer holds %d %s elements, need %d %s", f.Len(), f.Mode, s.md.Length, s.md.Mode)
	}

	if s.period > 0 {
		if wait := time.Until(s.due); wait > 0 {
			time.Sleep(wait)
		}
		s.due = s.due.Add(s.period)
	}

	copy(f.Amplitudes, rec.Amplitudes)
	copy(f.IQ, rec.IQ)
	s.replayed++
	return nil
}

func (s *service) read() (*sensor.Frame, error) {
	if s.pending != nil {
		f := s.pending
		s.pending = nil
		return f, nil
	}
	f, err := s.reader.next(s.mode)
	if !errors.Is(err, io.EOF) || !s.provider.Loop {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("replay file exhausted after %d frames: %w", s.replayed, err)
		}
		return f, err
	}
	if err := s.rewind(); err != nil {
		return nil, fmt.Errorf("rewinding replay file: %w", err)
	}
	return s.reader.next(s.mode)
}

func (s *service) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return errors.New("service destroyed")
	}
	if !s.active {
		return errors.New("service not active")
	}
	s.active = false
	return nil
}

func (s *service) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return errors.New("service destroyed")
	}
	s.destroyed = true
	s.active = false
	return s.file.Close()
}
