package evt2

import (
	"encoding/binary"
	"fmt"

	"github.com/evtkit/goevtlib/pkg/event"
)

const maxTimeHigh = 0x0FFFFFFF // 28 bits

// Encoder is an EVT2 encoder.
//
// It appends raw records to a buffer, interleaving time high records
// whenever the high-order part of the timestamp advances. Events must be
// encoded in non-decreasing timestamp order. It is not safe for concurrent
// use.
type Encoder struct {
	timeHigh event.Timestamp
	lastTime event.Timestamp
}

// Initialize initializes an Encoder.
func (e *Encoder) Initialize() error {
	// force a time high record before the first event.
	e.timeHigh = -1

	return nil
}

// EncodeCD appends a contrast detection event to buf and returns the
// extended buffer.
func (e *Encoder) EncodeCD(buf []byte, ev event.CD) ([]byte, error) {
	if (ev.X & ^uint16(coordMask)) != 0 {
		return nil, fmt.Errorf("X is out of range: %d", ev.X)
	}
	if (ev.Y & ^uint16(coordMask)) != 0 {
		return nil, fmt.Errorf("Y is out of range: %d", ev.Y)
	}

	buf, err := e.encodeTime(buf, ev.Time)
	if err != nil {
		return nil, err
	}

	typ := recordTypeCDOff
	if ev.Polarity {
		typ = recordTypeCDOn
	}

	w := uint32(typ)<<28 |
		uint32(ev.Time&timeLowMask)<<22 |
		uint32(ev.X)<<11 |
		uint32(ev.Y)

	return binary.LittleEndian.AppendUint32(buf, w), nil
}

// EncodeExtTrigger appends an external trigger event to buf and returns the
// extended buffer.
func (e *Encoder) EncodeExtTrigger(buf []byte, ev event.ExtTrigger) ([]byte, error) {
	if (ev.ID & ^uint8(triggerIDMask)) != 0 {
		return nil, fmt.Errorf("ID is out of range: %d", ev.ID)
	}

	buf, err := e.encodeTime(buf, ev.Time)
	if err != nil {
		return nil, err
	}

	var pol uint32
	if ev.Polarity {
		pol = 1
	}

	w := uint32(recordTypeExtTrigger)<<28 |
		uint32(ev.Time&timeLowMask)<<22 |
		uint32(ev.ID)<<8 |
		pol

	return binary.LittleEndian.AppendUint32(buf, w), nil
}

// encodeTime validates ts and appends a time high record when the
// high-order part of the timestamp has advanced.
func (e *Encoder) encodeTime(buf []byte, ts event.Timestamp) ([]byte, error) {
	if ts < 0 {
		return nil, fmt.Errorf("timestamp is negative: %d", ts)
	}
	if ts < e.lastTime {
		return nil, fmt.Errorf("timestamp is not monotonic: %d < %d", ts, e.lastTime)
	}
	if (ts >> timeHighShift) > maxTimeHigh {
		return nil, fmt.Errorf("timestamp is too large: %d", ts)
	}
	e.lastTime = ts

	high := ts &^ timeLowMask
	if high != e.timeHigh {
		w := uint32(recordTypeTimeHigh)<<28 | uint32(ts>>timeHighShift)
		buf = binary.LittleEndian.AppendUint32(buf, w)
		e.timeHigh = high
	}

	return buf, nil
}
