// Package adjust implements the per-frame PTP field-rewrite datapath of a
// transparent clock: it streams Ethernet frames through in chunks, rewrites
// the correctionField, twoStepFlag and Doppler TLV of embedded PTP messages
// in place, and schedules Follow_Up clone records for two-step conversion.
package adjust

import (
	"example.com/ptp-relay/net/ptp"
)

// PosNone marks a byte position that does not exist in the frame.
const PosNone = -1

// Interval is a fixed-point time or frequency value that may be
// unavailable. Unavailable values are encoded as zero on the wire and
// reported via the frame error flag.
type Interval struct {
	Value ptp.TimeInterval
	Valid bool
}

// PortMask is a bit set of egress ports.
type PortMask uint32

func (m PortMask) Empty() bool { return m == 0 }

// Metadata accompanies the first transfer of each frame and is held
// constant for the frame's duration.
type Metadata struct {
	// MsgPos is the byte offset of the PTP message header within the
	// frame, or PosNone if the frame carries no PTP message.
	MsgPos int
	// TlvPos is the byte offset of the Doppler TLV value within the
	// frame, or PosNone if the message carries no such TLV.
	TlvPos int
	// VlanTag is the 802.1Q tag, passed through unmodified.
	VlanTag uint16
	// RefTime and LocalTime form the new correctionField,
	// RefTime + LocalTime.
	RefTime   Interval
	LocalTime Interval
	// FreqOffset is the frequency correction written into the
	// Doppler TLV.
	FreqOffset Interval
	// TwoStepMask selects the egress ports that require two-step
	// handling for this frame.
	TwoStepMask PortMask
}

// Transfer is one chunk of a frame moving through the pipeline.
// Meta is read on the first transfer of each frame; Error is set by
// the pipeline on the transfer carrying the final byte.
type Transfer struct {
	Data  []byte
	Last  bool
	Meta  Metadata
	Error bool
}

// CloneRecord announces a generated two-step companion message for a
// frame whose one-step timing information was converted in transit.
// It is a pure announcement: it carries no positions and no timestamps.
type CloneRecord struct {
	DstMask PortMask
	MsgType uint8 // Follow_Up or Pdelay_Resp_Follow_Up
	Meta    Metadata
}
