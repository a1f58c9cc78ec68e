// Package evt2 contains an EVT2 decoder and encoder.
//
// EVT2 is a raw event stream format made of fixed-size 4-byte records,
// encoded as little-endian 32-bit words. The 4 most significant bits of
// each word carry the record type.
package evt2

// RawEventSize is the size of a raw EVT2 record in bytes.
const RawEventSize = 4

// recordType is the type of a raw EVT2 record.
type recordType uint8

// standard record types.
const (
	recordTypeCDOff      recordType = 0x0
	recordTypeCDOn       recordType = 0x1
	recordTypeTimeHigh   recordType = 0x8
	recordTypeExtTrigger recordType = 0xA
)

const (
	// a time high word carries bits 33..6 of the timestamp.
	timeHighShift = 6

	// low-order timestamp bits carried by CD and trigger words.
	timeLowMask = 0x3F

	// pixel coordinates are 11 bits wide.
	coordMask = 0x7FF

	// trigger channel ids are 5 bits wide.
	triggerIDMask = 0x1F
)
