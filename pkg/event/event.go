// Package event contains the event types produced by a decoder.
package event

// Timestamp is a timestamp in microseconds.
type Timestamp int64

// CD is a contrast detection event: a luminance change at a given pixel.
type CD struct {
	// horizontal pixel coordinate.
	X uint16

	// vertical pixel coordinate.
	Y uint16

	// whether luminance increased (true) or decreased (false).
	Polarity bool

	// time at which the change was detected.
	Time Timestamp
}

// ExtTrigger is an edge detected on an external trigger channel.
type ExtTrigger struct {
	// trigger channel.
	ID uint8

	// whether the edge is rising (true) or falling (false).
	Polarity bool

	// time at which the edge was detected.
	Time Timestamp
}
