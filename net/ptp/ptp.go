package ptp

// See IEEE 1588-2019, PTP version 2.1, Section 13.3,
// and the SatCat5 Doppler-TLV extension.

import (
	"errors"
	"time"
)

const (
	EventPortIP   = 319 // Sync, Delay_Req, Pdelay_Req, Pdelay_Resp
	GeneralPortIP = 320 // Follow_Up, Delay_Resp, Announce, ...

	EtherType = 0x88F7 // PTP over IEEE 802.3

	HeaderLen = 34

	// Message types (Section 13.3.2.3, Table 36)
	MessageTypeSync               = 0x0
	MessageTypeDelayReq           = 0x1
	MessageTypePdelayReq          = 0x2
	MessageTypePdelayResp         = 0x3
	MessageTypeFollowUp           = 0x8
	MessageTypeDelayResp          = 0x9
	MessageTypePdelayRespFollowUp = 0xA
	MessageTypeAnnounce           = 0xB
	MessageTypeSignaling          = 0xC
	MessageTypeManagement         = 0xD

	// Flag definitions (Section 13.3.2.8, Table 37)
	FlagLeap61        = 1 << 0
	FlagLeap59        = 1 << 1
	FlagUTCValid      = 1 << 2
	FlagPTPTimescale  = 1 << 3
	FlagTimeTraceable = 1 << 4
	FlagFreqTraceable = 1 << 5
	FlagAltMaster     = 1 << 8
	FlagTwoStep       = 1 << 9
	FlagUnicast       = 1 << 10

	PTPVersion = 2

	// Byte offsets from the start of the message header.
	OffsetMessageType = 0 // messageType, low nibble
	OffsetFlagField   = 6 // flagField, 2 bytes
	OffsetCorrection  = 8 // correctionField, 8 bytes

	// Doppler velocity TLV (experimental, SatCat5 only).
	// The value is a 48-bit signed velocity in subns per second.
	TLVTypeDoppler  = 0x20AE
	TLVHeaderLen    = 4
	DopplerValueLen = 6

	// correctionField and Doppler values are fixed point with
	// 2^-16 ns resolution, referred to as "subnanoseconds".
	SubnsPerNsec int64 = 1 << 16
)

// TimeInterval is a signed time interval in subnanoseconds,
// the unit of the correctionField (Section 13.3.2.9).
type TimeInterval int64

const (
	intervalMax48 TimeInterval = 1<<47 - 1
	intervalMin48 TimeInterval = -1 << 47
)

var (
	errUnexpectedMessageSize = errors.New("unexpected message size")
	errUnexpectedTLVSize     = errors.New("unexpected TLV size")
)

type PortID struct {
	ClockID uint64
	Port    uint16
}

// Header is the 34-byte message header common to all PTP message types.
type Header struct {
	SdoIDMessageType    uint8
	Version             uint8
	MessageLength       uint16
	DomainNumber        uint8
	MinorSdoID          uint8
	FlagField           uint16
	CorrectionField     TimeInterval
	MessageTypeSpecific uint32
	SourcePortIdentity  PortID
	SequenceID          uint16
	ControlField        uint8
	LogMessageInterval  int8
}

func (h *Header) MessageType() uint8 {
	return h.SdoIDMessageType & 0x0F
}

func (h *Header) SetMessageType(t uint8) {
	if t&0x0F != t {
		panic("unexpected PTP message type value")
	}
	h.SdoIDMessageType = (h.SdoIDMessageType & 0xF0) | t
}

func (h *Header) TwoStep() bool {
	return h.FlagField&FlagTwoStep != 0
}

func (h *Header) SetTwoStep(v bool) {
	if v {
		h.FlagField |= FlagTwoStep
	} else {
		h.FlagField &^= FlagTwoStep
	}
}

// Adjustable reports whether a message type is subject to residence
// time correction by a transparent clock: the event messages that
// carry an egress timestamp, as opposed to the general messages that
// merely reference one.
func Adjustable(msgType uint8) bool {
	switch msgType {
	case MessageTypeSync, MessageTypeDelayReq,
		MessageTypePdelayReq, MessageTypePdelayResp:
		return true
	default:
		return false
	}
}

// FollowUpType returns the message type of the two-step companion
// generated for msgType, if the protocol defines one.
func FollowUpType(msgType uint8) (uint8, bool) {
	switch msgType {
	case MessageTypeSync:
		return MessageTypeFollowUp, true
	case MessageTypePdelayResp:
		return MessageTypePdelayRespFollowUp, true
	default:
		return 0, false
	}
}

// BodyLen returns the length of the message body following the common
// header, per IEEE 1588-2019 Sections 13.5-13.12, or 0 for reserved
// message types.
func BodyLen(msgType uint8) int {
	switch msgType {
	case MessageTypeSync:
		return 10
	case MessageTypeDelayReq:
		return 10
	case MessageTypePdelayReq:
		return 20
	case MessageTypePdelayResp:
		return 20
	case MessageTypeFollowUp:
		return 10
	case MessageTypeDelayResp:
		return 20
	case MessageTypePdelayRespFollowUp:
		return 20
	case MessageTypeAnnounce:
		return 30
	case MessageTypeSignaling:
		return 10
	case MessageTypeManagement:
		return 14
	default:
		return 0
	}
}

func IntervalFromDuration(d time.Duration) TimeInterval {
	return TimeInterval(d.Nanoseconds() * SubnsPerNsec)
}

func DurationFromInterval(i TimeInterval) time.Duration {
	return time.Duration(i >> 16)
}

func EncodeHeader(b []byte, hdr *Header) {
	if len(b) < HeaderLen {
		panic("invalid argument: buffer too small for PTP header")
	}
	_ = b[33]
	b[0] = hdr.SdoIDMessageType
	b[1] = hdr.Version
	b[2] = byte(hdr.MessageLength >> 8)
	b[3] = byte(hdr.MessageLength)
	b[4] = hdr.DomainNumber
	b[5] = hdr.MinorSdoID
	b[6] = byte(hdr.FlagField >> 8)
	b[7] = byte(hdr.FlagField)
	b[8] = byte(uint64(hdr.CorrectionField) >> 56)
	b[9] = byte(uint64(hdr.CorrectionField) >> 48)
	b[10] = byte(uint64(hdr.CorrectionField) >> 40)
	b[11] = byte(uint64(hdr.CorrectionField) >> 32)
	b[12] = byte(uint64(hdr.CorrectionField) >> 24)
	b[13] = byte(uint64(hdr.CorrectionField) >> 16)
	b[14] = byte(uint64(hdr.CorrectionField) >> 8)
	b[15] = byte(uint64(hdr.CorrectionField))
	b[16] = byte(hdr.MessageTypeSpecific >> 24)
	b[17] = byte(hdr.MessageTypeSpecific >> 16)
	b[18] = byte(hdr.MessageTypeSpecific >> 8)
	b[19] = byte(hdr.MessageTypeSpecific)
	b[20] = byte(hdr.SourcePortIdentity.ClockID >> 56)
	b[21] = byte(hdr.SourcePortIdentity.ClockID >> 48)
	b[22] = byte(hdr.SourcePortIdentity.ClockID >> 40)
	b[23] = byte(hdr.SourcePortIdentity.ClockID >> 32)
	b[24] = byte(hdr.SourcePortIdentity.ClockID >> 24)
	b[25] = byte(hdr.SourcePortIdentity.ClockID >> 16)
	b[26] = byte(hdr.SourcePortIdentity.ClockID >> 8)
	b[27] = byte(hdr.SourcePortIdentity.ClockID)
	b[28] = byte(hdr.SourcePortIdentity.Port >> 8)
	b[29] = byte(hdr.SourcePortIdentity.Port)
	b[30] = byte(hdr.SequenceID >> 8)
	b[31] = byte(hdr.SequenceID)
	b[32] = hdr.ControlField
	b[33] = byte(hdr.LogMessageInterval)
}

func DecodeHeader(hdr *Header, b []byte) error {
	if len(b) < HeaderLen {
		return errUnexpectedMessageSize
	}

	_ = b[33]
	hdr.SdoIDMessageType = b[0]
	hdr.Version = b[1]
	hdr.MessageLength = uint16(b[2])<<8 | uint16(b[3])
	hdr.DomainNumber = b[4]
	hdr.MinorSdoID = b[5]
	hdr.FlagField = uint16(b[6])<<8 | uint16(b[7])
	hdr.CorrectionField = TimeInterval(
		uint64(b[8])<<56 | uint64(b[9])<<48 | uint64(b[10])<<40 |
			uint64(b[11])<<32 | uint64(b[12])<<24 | uint64(b[13])<<16 |
			uint64(b[14])<<8 | uint64(b[15]))
	hdr.MessageTypeSpecific = uint32(b[16])<<24 | uint32(b[17])<<16 |
		uint32(b[18])<<8 | uint32(b[19])
	hdr.SourcePortIdentity.ClockID = uint64(b[20])<<56 | uint64(b[21])<<48 |
		uint64(b[22])<<40 | uint64(b[23])<<32 | uint64(b[24])<<24 |
		uint64(b[25])<<16 | uint64(b[26])<<8 | uint64(b[27])
	hdr.SourcePortIdentity.Port = uint16(b[28])<<8 | uint16(b[29])
	hdr.SequenceID = uint16(b[30])<<8 | uint16(b[31])
	hdr.ControlField = b[32]
	hdr.LogMessageInterval = int8(b[33])

	return nil
}

// EncodeDoppler writes the 6-byte Doppler TLV value. Values outside
// the 48-bit range saturate to the field limits; a wrapped velocity
// would be meaningless downstream.
func EncodeDoppler(b []byte, v TimeInterval) {
	if len(b) < DopplerValueLen {
		panic("invalid argument: buffer too small for Doppler value")
	}
	if v > intervalMax48 {
		v = intervalMax48
	} else if v < intervalMin48 {
		v = intervalMin48
	}
	_ = b[5]
	b[0] = byte(uint64(v) >> 40)
	b[1] = byte(uint64(v) >> 32)
	b[2] = byte(uint64(v) >> 24)
	b[3] = byte(uint64(v) >> 16)
	b[4] = byte(uint64(v) >> 8)
	b[5] = byte(uint64(v))
}

func DecodeDoppler(b []byte) (TimeInterval, error) {
	if len(b) < DopplerValueLen {
		return 0, errUnexpectedTLVSize
	}
	_ = b[5]
	v := uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
	if v&(1<<47) != 0 {
		v |= 0xFFFF000000000000 // sign extend
	}
	return TimeInterval(v), nil
}
