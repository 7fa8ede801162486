// Package classify derives per-frame adjustment metadata from raw
// Ethernet frames: where the PTP message starts, where the Doppler TLV
// value lives, and the 802.1Q tag. PTP traffic is recognized both over
// raw Ethernet (EtherType 0x88F7) and over UDP/IPv4 (ports 319/320).
package classify

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"example.com/ptp-relay/core/adjust"
	"example.com/ptp-relay/net/ptp"
)

// Classifier is not safe for concurrent use; each goroutine should own
// its own instance.
type Classifier struct {
	eth     layers.Ethernet
	dot1q   layers.Dot1Q
	ip4     layers.IPv4
	udp     layers.UDP
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

func NewClassifier() *Classifier {
	c := &Classifier{}
	c.parser = gopacket.NewDecodingLayerParser(
		layers.LayerTypeEthernet, &c.eth, &c.dot1q, &c.ip4, &c.udp)
	c.parser.IgnoreUnsupported = true
	c.decoded = make([]gopacket.LayerType, 0, 4)
	return c
}

// Classify returns the positions and VLAN tag for a frame. Non-PTP
// frames yield PosNone positions; that is normal traffic, not an
// error. Timestamp metadata is the caller's to fill in.
func (c *Classifier) Classify(frame []byte) adjust.Metadata {
	meta := adjust.Metadata{
		MsgPos: adjust.PosNone,
		TlvPos: adjust.PosNone,
	}

	err := c.parser.DecodeLayers(frame, &c.decoded)
	if err != nil {
		return meta
	}

	var payload []byte
	for _, lt := range c.decoded {
		switch lt {
		case layers.LayerTypeEthernet:
			if c.eth.EthernetType == ptp.EtherType {
				payload = c.eth.Payload
			}
		case layers.LayerTypeDot1Q:
			meta.VlanTag = uint16(c.dot1q.Priority)<<13 |
				c.dot1q.VLANIdentifier
			if c.dot1q.DropEligible {
				meta.VlanTag |= 1 << 12
			}
			if c.dot1q.Type == ptp.EtherType {
				payload = c.dot1q.Payload
			}
		case layers.LayerTypeUDP:
			if c.udp.DstPort == ptp.EventPortIP ||
				c.udp.DstPort == ptp.GeneralPortIP {
				payload = c.udp.Payload
			}
		}
	}
	if payload == nil || len(payload) < ptp.HeaderLen {
		return meta
	}

	// Contents and payload slices alias the input frame, so offsets
	// fall out of the slice lengths. That only holds while the payload
	// is a suffix of the frame; a frame padded past the declared IP
	// total length breaks it, and a position computed from the frame
	// end would land in the padding.
	msgPos := len(frame) - len(payload)
	if &frame[msgPos] != &payload[0] {
		return meta
	}
	meta.MsgPos = msgPos
	meta.TlvPos = dopplerPos(frame, meta.MsgPos)
	return meta
}

// dopplerPos scans the TLV chain after the fixed message body for a
// Doppler tag and returns the byte offset of its value, or PosNone.
func dopplerPos(frame []byte, msgPos int) int {
	msgType := frame[msgPos] & 0x0F
	bodyLen := ptp.BodyLen(msgType)
	if bodyLen == 0 {
		return adjust.PosNone
	}
	msgLen := int(frame[msgPos+2])<<8 | int(frame[msgPos+3])
	end := msgPos + msgLen
	if end > len(frame) {
		end = len(frame)
	}
	i := msgPos + ptp.HeaderLen + bodyLen
	for i+ptp.TLVHeaderLen <= end {
		tlvType := int(frame[i])<<8 | int(frame[i+1])
		tlvLen := int(frame[i+2])<<8 | int(frame[i+3])
		if tlvType == ptp.TLVTypeDoppler && tlvLen == ptp.DopplerValueLen {
			if i+ptp.TLVHeaderLen+ptp.DopplerValueLen <= end {
				return i + ptp.TLVHeaderLen
			}
			return adjust.PosNone
		}
		i += ptp.TLVHeaderLen + tlvLen
	}
	return adjust.PosNone
}

// ClassifyMessage returns metadata for a bare PTP message, as received
// from a UDP socket: the message starts at offset zero and any Doppler
// TLV is located by scanning the TLV chain.
func ClassifyMessage(msg []byte) adjust.Metadata {
	meta := adjust.Metadata{
		MsgPos: adjust.PosNone,
		TlvPos: adjust.PosNone,
	}
	if len(msg) < ptp.HeaderLen {
		return meta
	}
	meta.MsgPos = 0
	meta.TlvPos = dopplerPos(msg, 0)
	return meta
}
