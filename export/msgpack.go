package export

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hb9tf/radarlog/sensor"
)

const (
	// LengthPrefixSize is the size of the big endian length prefix of a frame.
	LengthPrefixSize = 4
	// MaxPayloadSize bounds a single encoded record.
	MaxPayloadSize = 16*1024*1024 - LengthPrefixSize
)

// MsgPack writes length prefixed msgpack encoded records, one per frame.
type MsgPack struct {
	Identifier string
	Source     string

	w      *bufio.Writer
	closer io.Closer
	counts map[string]int
}

// NewMsgPack writes records to w.
func NewMsgPack(w io.Writer, identifier, source string) *MsgPack {
	return &MsgPack{
		Identifier: identifier,
		Source:     source,
		w:          bufio.NewWriter(w),
		counts:     newCounts(),
	}
}

// CreateMsgPack writes records to a newly created file at path.
func CreateMsgPack(path, identifier, source string) (*MsgPack, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %q failed: %w", path, err)
	}
	m := NewMsgPack(f, identifier, source)
	m.closer = f
	return m, nil
}

func (m *MsgPack) Write(ctx context.Context, f *sensor.Frame) error {
	return m.WriteRecord(ctx, NewRecord(m.Identifier, m.Source, f))
}

func (m *MsgPack) WriteRecord(ctx context.Context, r Record) error {
	err := m.writeRecord(r)
	count("msgpack", m.counts, err)
	return err
}

func (m *MsgPack) writeRecord(r Record) error {
	payload, err := msgpack.Marshal(&r)
	if err != nil {
		return fmt.Errorf("error marshalling record: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("record of %d bytes exceeds maximum %d", len(payload), MaxPayloadSize)
	}
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := m.w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = m.w.Write(payload)
	return err
}

func (m *MsgPack) Close() error {
	err := m.w.Flush()
	if m.closer != nil {
		if cerr := m.closer.Close(); err == nil {
			err = cerr
		}
	}
	glog.V(1).Infof("msgpack export counts: %+v", m.counts)
	return err
}

// FrameErrorKind classifies decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a length prefix above MaxPayloadSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a payload that is not a msgpack record.
	FrameErrorDecode
)

// FrameError is returned by FrameDecoder for malformed input.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// FrameDecoder reads records written by MsgPack.
type FrameDecoder struct {
	r io.Reader
}

func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{r: bufio.NewReader(r)}
}

// Next returns the next record, or io.EOF at a clean end of stream.
func (d *FrameDecoder) Next() (*Record, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", size, MaxPayloadSize),
		}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read payload", Err: err}
	}

	var r Record
	if err := msgpack.Unmarshal(payload, &r); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode record", Err: err}
	}
	return &r, nil
}
