// Package goevtlib is a library to read the raw streams produced by
// event-based vision sensors.
package goevtlib

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/evtkit/goevtlib/pkg/event"
	"github.com/evtkit/goevtlib/pkg/evt2"
	"github.com/evtkit/goevtlib/pkg/geometry"
	"github.com/evtkit/goevtlib/pkg/rawheader"
)

const readChunkSize = 16384

type countingReader struct {
	r     io.Reader
	count int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.count += int64(n)
	return n, err
}

// Reader reads events from a raw stream.
//
// It parses the stream header, then feeds the byte stream to a decoder and
// serves decoded events by time slice or by count. It is not safe for
// concurrent use.
type Reader struct {
	// the raw byte transport. Required.
	// When it implements io.Seeker, Rewind is available.
	Source io.Reader

	// rebase timestamps on the time of the first time high record.
	TimeShift bool

	// known timestamp shift, e.g. from a persisted index. When set, it is
	// installed into the decoder at initialization, skipping re-derivation
	// from the stream. Requires TimeShift.
	TimeShiftOverride *event.Timestamp

	// maximum stream time to read, in the decoded time reference. Events
	// at or after this bound are discarded, and reads return io.EOF once
	// it is reached. 0 means unbounded.
	MaxDuration event.Timestamp

	// serve event timestamps relative to the start of each read instead
	// of the start of the stream.
	RelativeTimestamps bool

	// called with each decoded external trigger event. Optional.
	OnExtTrigger func(event.ExtTrigger)

	header    *rawheader.Header
	dec       *evt2.Decoder
	br        *bufio.Reader
	chunk     []byte
	pending   []event.CD
	curTime   event.Timestamp
	dataStart int64
	eof       bool
}

// Initialize initializes a Reader.
func (r *Reader) Initialize() error {
	if r.Source == nil {
		return fmt.Errorf("Source is required")
	}

	cr := &countingReader{r: r.Source}
	br := bufio.NewReader(cr)

	h := &rawheader.Header{}
	err := h.Unmarshal(br)
	if err != nil {
		return err
	}

	if h.Geometry == nil {
		return fmt.Errorf("header does not carry the sensor geometry")
	}
	if h.Format != "" && h.Format != "EVT2" {
		return fmt.Errorf("unsupported format: %s", h.Format)
	}

	dec := &evt2.Decoder{
		TimeShift: r.TimeShift,
		OnCDEvent: func(ev event.CD) {
			r.pending = append(r.pending, ev)
		},
		OnExtTriggerEvent: r.OnExtTrigger,
	}
	err = dec.Initialize()
	if err != nil {
		return err
	}

	if r.TimeShiftOverride != nil {
		err = dec.ResetTimestampShift(*r.TimeShiftOverride)
		if err != nil {
			return err
		}
	}

	r.header = h
	r.dec = dec
	r.br = br
	r.chunk = make([]byte, readChunkSize)
	r.dataStart = cr.count - int64(br.Buffered())

	return nil
}

// Header returns the stream header.
func (r *Reader) Header() *rawheader.Header {
	return r.header
}

// Geometry returns the sensor geometry.
func (r *Reader) Geometry() *geometry.Geometry {
	return r.header.Geometry
}

// CurrentTime returns the current position of the reader in the stream
// time reference.
func (r *Reader) CurrentTime() event.Timestamp {
	return r.curTime
}

// TimestampShift returns the shift applied to decoded timestamps, if known.
func (r *Reader) TimestampShift() (event.Timestamp, bool) {
	return r.dec.TimestampShift()
}

// fill reads one chunk from the source and decodes it.
func (r *Reader) fill() error {
	n, err := r.br.Read(r.chunk)
	if n > 0 {
		err2 := r.dec.Decode(r.chunk[:n])
		if err2 != nil {
			return err2
		}
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.eof = true
			return io.EOF
		}
		return err
	}

	return nil
}

// ReadDeltaT returns the events of the next time slice of the given
// duration. The returned slice may be empty when no event occurred during
// the slice. It returns io.EOF once the stream is exhausted.
func (r *Reader) ReadDeltaT(delta event.Timestamp) ([]event.CD, error) {
	if delta <= 0 {
		return nil, fmt.Errorf("delta must be positive")
	}

	if r.MaxDuration > 0 && r.curTime >= r.MaxDuration {
		return nil, io.EOF
	}

	start := r.curTime
	end := start + delta

	for !r.eof && r.dec.LastTimestamp() < end {
		err := r.fill()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}

	i := 0
	for i < len(r.pending) && r.pending[i].Time < end {
		i++
	}

	if r.eof && len(r.pending) == 0 {
		return nil, io.EOF
	}

	evs := r.pending[:i:i]
	r.pending = r.pending[i:]
	r.curTime = end

	if r.MaxDuration > 0 {
		for len(evs) > 0 && evs[len(evs)-1].Time >= r.MaxDuration {
			evs = evs[:len(evs)-1]
		}
	}

	if r.RelativeTimestamps {
		for i := range evs {
			evs[i].Time -= start
		}
	}

	return evs, nil
}

// ReadNEvents returns the next n events. Fewer events are returned when the
// stream ends first. It returns io.EOF once the stream is exhausted.
func (r *Reader) ReadNEvents(n int) ([]event.CD, error) {
	if n <= 0 {
		return nil, fmt.Errorf("n must be positive")
	}

	for !r.eof && len(r.pending) < n {
		if r.MaxDuration > 0 && r.dec.LastTimestamp() >= r.MaxDuration {
			break
		}

		err := r.fill()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}

	if r.MaxDuration > 0 {
		i := 0
		for i < len(r.pending) && r.pending[i].Time < r.MaxDuration {
			i++
		}
		r.pending = r.pending[:i]
	}

	if len(r.pending) == 0 {
		return nil, io.EOF
	}

	if n > len(r.pending) {
		n = len(r.pending)
	}

	start := r.curTime
	evs := r.pending[:n:n]
	r.pending = r.pending[n:]
	r.curTime = evs[len(evs)-1].Time

	if r.RelativeTimestamps {
		for i := range evs {
			evs[i].Time -= start
		}
	}

	return evs, nil
}

// SeekTime advances the reader to the given time, discarding earlier
// events. Seeking is forward-only; use Rewind to go back to the start.
func (r *Reader) SeekTime(ts event.Timestamp) error {
	if ts < r.curTime {
		return fmt.Errorf("cannot seek backward: %d < %d", ts, r.curTime)
	}

	for !r.eof && r.dec.LastTimestamp() < ts {
		err := r.fill()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
	}

	i := 0
	for i < len(r.pending) && r.pending[i].Time < ts {
		i++
	}
	r.pending = r.pending[i:]
	r.curTime = ts

	return nil
}

// Rewind moves the reader back to the first event of the stream. It
// requires the source to implement io.Seeker.
func (r *Reader) Rewind() error {
	seeker, ok := r.Source.(io.Seeker)
	if !ok {
		return fmt.Errorf("source is not seekable")
	}

	_, err := seeker.Seek(r.dataStart, io.SeekStart)
	if err != nil {
		return err
	}

	r.br = bufio.NewReader(r.Source)
	r.pending = nil
	r.curTime = 0
	r.eof = false

	return r.dec.ResetTimestamp(0)
}
