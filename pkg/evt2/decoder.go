package evt2

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/evtkit/goevtlib/pkg/event"
)

// ErrTimeShiftDisabled is returned by Decoder.ResetTimestampShift when time
// shifting was disabled at initialization.
var ErrTimeShiftDisabled = errors.New("time shifting is disabled")

// discovery state of the timestamp shift.
type shiftState int

const (
	shiftUnknown shiftState = iota
	shiftDerived
	shiftOverridden
)

// Decoder is an EVT2 decoder.
//
// It consumes strictly consecutive chunks of a single raw stream and
// dispatches decoded events to per-type callbacks, in stream order.
// It is not safe for concurrent use.
type Decoder struct {
	// rebase timestamps on the time of the first time high record,
	// so that decoded timestamps start from zero.
	TimeShift bool

	// called with each decoded contrast detection event. Required.
	OnCDEvent func(event.CD)

	// called with each decoded external trigger event. Optional:
	// when nil, trigger records still advance the decoder clock
	// but are not forwarded.
	OnExtTriggerEvent func(event.ExtTrigger)

	lastTimestamp event.Timestamp
	timeHigh      event.Timestamp // high-order time base, raw stream reference
	timeShift     event.Timestamp
	shiftState    shiftState
	frag          [RawEventSize]byte
	fragSize      int
}

// Initialize initializes a Decoder.
func (d *Decoder) Initialize() error {
	if d.OnCDEvent == nil {
		return fmt.Errorf("OnCDEvent is required")
	}

	return nil
}

// Decode decodes records from the next chunk of the raw stream.
//
// Chunks passed to successive calls must be strictly consecutive bytes of
// the same stream: no gaps, no overlaps, no reordering. Chunks do not have
// to be aligned to record boundaries; a partial trailing record is buffered
// internally and completed by the next call.
//
// On an unknown record type, decoding stops at the offending record and an
// error is returned; events decoded earlier in the chunk have already been
// dispatched.
func (d *Decoder) Decode(buf []byte) error {
	// complete a partial record left over from the previous call.
	if d.fragSize != 0 {
		n := copy(d.frag[d.fragSize:], buf)
		d.fragSize += n
		if d.fragSize < RawEventSize {
			return nil
		}
		buf = buf[n:]
		d.fragSize = 0

		err := d.decodeRecord(binary.LittleEndian.Uint32(d.frag[:]))
		if err != nil {
			return err
		}
	}

	for len(buf) >= RawEventSize {
		err := d.decodeRecord(binary.LittleEndian.Uint32(buf))
		if err != nil {
			return err
		}
		buf = buf[RawEventSize:]
	}

	d.fragSize = copy(d.frag[:], buf)

	return nil
}

func (d *Decoder) decodeRecord(w uint32) error {
	switch recordType(w >> 28) {
	case recordTypeTimeHigh:
		raw := event.Timestamp(w&0x0FFFFFFF) << timeHighShift
		if d.TimeShift && d.shiftState == shiftUnknown {
			d.timeShift = raw
			d.shiftState = shiftDerived
		}
		d.timeHigh = raw
		d.lastTimestamp = d.timeHigh - d.timeShift

	case recordTypeCDOff, recordTypeCDOn:
		ts := d.timeHigh - d.timeShift + event.Timestamp((w>>22)&timeLowMask)
		d.lastTimestamp = ts
		d.OnCDEvent(event.CD{
			X:        uint16((w >> 11) & coordMask),
			Y:        uint16(w & coordMask),
			Polarity: recordType(w>>28) == recordTypeCDOn,
			Time:     ts,
		})

	case recordTypeExtTrigger:
		ts := d.timeHigh - d.timeShift + event.Timestamp((w>>22)&timeLowMask)
		d.lastTimestamp = ts
		if d.OnExtTriggerEvent != nil {
			d.OnExtTriggerEvent(event.ExtTrigger{
				ID:       uint8((w >> 8) & triggerIDMask),
				Polarity: (w & 0x01) != 0,
				Time:     ts,
			})
		}

	default:
		return fmt.Errorf("unknown record type 0x%X", w>>28)
	}

	return nil
}

// LastTimestamp returns the timestamp of the most recently decoded record.
func (d *Decoder) LastTimestamp() event.Timestamp {
	return d.lastTimestamp
}

// TimestampShift returns the shift applied to decoded timestamps.
//
// The shift is known once the first time high record has been decoded, or
// after a successful ResetTimestampShift. Before that, ok is false.
func (d *Decoder) TimestampShift() (event.Timestamp, bool) {
	if d.shiftState == shiftUnknown {
		return 0, false
	}

	return d.timeShift, true
}

// RawEventSizeBytes returns the size of a raw record in bytes.
func (d *Decoder) RawEventSizeBytes() int {
	return RawEventSize
}

// ResetTimestamp rebases the decoder clock, so that the next decoded record
// gets a timestamp relative to ts instead of the previous stream position.
//
// When time shifting is enabled, ts is expressed in the shifted time
// reference. Any buffered partial record is discarded, since a reset follows
// a seek and the buffered bytes belong to the old stream position.
// It must be called between Decode calls, never concurrently with one.
func (d *Decoder) ResetTimestamp(ts event.Timestamp) error {
	d.timeHigh = ts + d.timeShift
	d.lastTimestamp = ts
	d.fragSize = 0

	return nil
}

// ResetTimestampShift sets the timestamp shift to a known value, overriding
// any shift derived from the stream; later time high records never re-derive
// it. It returns ErrTimeShiftDisabled when time shifting is disabled.
func (d *Decoder) ResetTimestampShift(shift event.Timestamp) error {
	if !d.TimeShift {
		return ErrTimeShiftDisabled
	}

	d.timeShift = shift
	d.shiftState = shiftOverridden

	return nil
}
