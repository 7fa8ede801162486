package adjust

import (
	"example.com/ptp-relay/net/ptp"
)

// window is the intersection of a patchable field with the chunk
// currently streaming past.
type window struct {
	fieldOff int // first overlapping byte, relative to the field start
	chunkOff int // first overlapping byte, relative to the chunk start
	n        int
}

// locator resolves which patchable fields intersect a given byte range
// of the frame. Pure offset arithmetic; a field may straddle any number
// of consecutive chunks.
type locator struct {
	msgPos int
	tlvPos int
}

func (l *locator) init(meta *Metadata) {
	l.msgPos = meta.MsgPos
	l.tlvPos = meta.TlvPos
}

// intersect computes the overlap of [fieldPos, fieldPos+fieldLen) with
// the chunk covering frame bytes [pos, pos+n).
func intersect(fieldPos, fieldLen, pos, n int) (window, bool) {
	if fieldPos == PosNone {
		return window{}, false
	}
	lo := fieldPos
	if pos > lo {
		lo = pos
	}
	hi := fieldPos + fieldLen
	if pos+n < hi {
		hi = pos + n
	}
	if lo >= hi {
		return window{}, false
	}
	return window{
		fieldOff: lo - fieldPos,
		chunkOff: lo - pos,
		n:        hi - lo,
	}, true
}

// typeByte locates the messageType byte (low nibble is the type).
func (l *locator) typeByte(pos, n int) (window, bool) {
	if l.msgPos == PosNone {
		return window{}, false
	}
	return intersect(l.msgPos+ptp.OffsetMessageType, 1, pos, n)
}

// flagByte locates the first flagField byte, which carries the
// twoStepFlag bit.
func (l *locator) flagByte(pos, n int) (window, bool) {
	if l.msgPos == PosNone {
		return window{}, false
	}
	return intersect(l.msgPos+ptp.OffsetFlagField, 1, pos, n)
}

// correction locates the 8-byte correctionField.
func (l *locator) correction(pos, n int) (window, bool) {
	if l.msgPos == PosNone {
		return window{}, false
	}
	return intersect(l.msgPos+ptp.OffsetCorrection, 8, pos, n)
}

// doppler locates the 6-byte Doppler TLV value.
func (l *locator) doppler(pos, n int) (window, bool) {
	return intersect(l.tlvPos, ptp.DopplerValueLen, pos, n)
}
