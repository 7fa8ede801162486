package ptp_test

import (
	"bytes"
	"math"
	"testing"
	"time"

	"example.com/ptp-relay/net/ptp"
)

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		hdr  ptp.Header
	}{
		{
			name: "zero",
			hdr:  ptp.Header{},
		},
		{
			name: "sync",
			hdr: ptp.Header{
				SdoIDMessageType:   ptp.MessageTypeSync,
				Version:            ptp.PTPVersion,
				MessageLength:      44,
				FlagField:          ptp.FlagTwoStep | ptp.FlagPTPTimescale,
				CorrectionField:    123 << 16,
				SourcePortIdentity: ptp.PortID{ClockID: 0x0102030405060708, Port: 9},
				SequenceID:         0x1234,
				ControlField:       0,
				LogMessageInterval: -3,
			},
		},
		{
			name: "extremes",
			hdr: ptp.Header{
				SdoIDMessageType:    math.MaxUint8,
				Version:             math.MaxUint8,
				MessageLength:       math.MaxUint16,
				DomainNumber:        math.MaxUint8,
				MinorSdoID:          math.MaxUint8,
				FlagField:           math.MaxUint16,
				CorrectionField:     ptp.TimeInterval(math.MinInt64),
				MessageTypeSpecific: math.MaxUint32,
				SourcePortIdentity:  ptp.PortID{ClockID: math.MaxUint64, Port: math.MaxUint16},
				SequenceID:          math.MaxUint16,
				ControlField:        math.MaxUint8,
				LogMessageInterval:  math.MinInt8,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := make([]byte, ptp.HeaderLen)
			ptp.EncodeHeader(b, &tc.hdr)
			var hdr ptp.Header
			err := ptp.DecodeHeader(&hdr, b)
			if err != nil {
				t.Fatal(err)
			}
			if hdr != tc.hdr {
				t.Errorf("header roundtrip failed: got %+v, want %+v", hdr, tc.hdr)
			}
		})
	}
}

func TestDecodeHeaderShortBuffer(t *testing.T) {
	var hdr ptp.Header
	err := ptp.DecodeHeader(&hdr, make([]byte, ptp.HeaderLen-1))
	if err == nil {
		t.Fail()
	}
}

func TestHeaderWireLayout(t *testing.T) {
	hdr := ptp.Header{
		SdoIDMessageType: ptp.MessageTypeSync,
		FlagField:        ptp.FlagTwoStep,
		CorrectionField:  0x0102030405060708,
	}
	b := make([]byte, ptp.HeaderLen)
	ptp.EncodeHeader(b, &hdr)

	if b[ptp.OffsetMessageType]&0x0F != ptp.MessageTypeSync {
		t.Fail()
	}
	if b[ptp.OffsetFlagField]&0x02 == 0 {
		t.Errorf("twoStepFlag not in first flagField byte: % x", b[6:8])
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(b[ptp.OffsetCorrection:ptp.OffsetCorrection+8], want) {
		t.Errorf("correctionField layout: got % x, want % x",
			b[ptp.OffsetCorrection:ptp.OffsetCorrection+8], want)
	}
}

func TestMessageType(t *testing.T) {
	hdr := ptp.Header{SdoIDMessageType: 0x50 | ptp.MessageTypeAnnounce}
	if hdr.MessageType() != ptp.MessageTypeAnnounce {
		t.Fail()
	}
	hdr.SetMessageType(ptp.MessageTypeFollowUp)
	if hdr.MessageType() != ptp.MessageTypeFollowUp {
		t.Fail()
	}
	if hdr.SdoIDMessageType&0xF0 != 0x50 {
		t.Errorf("majorSdoId nibble not preserved: %#x", hdr.SdoIDMessageType)
	}

	defer func() {
		if recover() == nil {
			t.Fail()
		}
	}()
	hdr.SetMessageType(0x10)
}

func TestTwoStepFlag(t *testing.T) {
	var hdr ptp.Header
	if hdr.TwoStep() {
		t.Fail()
	}
	hdr.SetTwoStep(true)
	if !hdr.TwoStep() || hdr.FlagField != ptp.FlagTwoStep {
		t.Fail()
	}
	hdr.FlagField |= ptp.FlagPTPTimescale
	hdr.SetTwoStep(false)
	if hdr.TwoStep() || hdr.FlagField != ptp.FlagPTPTimescale {
		t.Fail()
	}
}

func TestAdjustable(t *testing.T) {
	adjustable := map[uint8]bool{
		ptp.MessageTypeSync:       true,
		ptp.MessageTypeDelayReq:   true,
		ptp.MessageTypePdelayReq:  true,
		ptp.MessageTypePdelayResp: true,
	}
	for msgType := uint8(0); msgType <= 0x0F; msgType++ {
		if ptp.Adjustable(msgType) != adjustable[msgType] {
			t.Errorf("Adjustable(%#x) = %v", msgType, ptp.Adjustable(msgType))
		}
	}
}

func TestFollowUpType(t *testing.T) {
	for msgType := uint8(0); msgType <= 0x0F; msgType++ {
		fu, ok := ptp.FollowUpType(msgType)
		switch msgType {
		case ptp.MessageTypeSync:
			if !ok || fu != ptp.MessageTypeFollowUp {
				t.Fail()
			}
		case ptp.MessageTypePdelayResp:
			if !ok || fu != ptp.MessageTypePdelayRespFollowUp {
				t.Fail()
			}
		default:
			if ok {
				t.Errorf("FollowUpType(%#x) = %#x, true", msgType, fu)
			}
		}
	}
}

func TestBodyLen(t *testing.T) {
	tests := []struct {
		msgType uint8
		want    int
	}{
		{ptp.MessageTypeSync, 10},
		{ptp.MessageTypeDelayReq, 10},
		{ptp.MessageTypePdelayReq, 20},
		{ptp.MessageTypePdelayResp, 20},
		{ptp.MessageTypeFollowUp, 10},
		{ptp.MessageTypeDelayResp, 20},
		{ptp.MessageTypePdelayRespFollowUp, 20},
		{ptp.MessageTypeAnnounce, 30},
		{ptp.MessageTypeSignaling, 10},
		{ptp.MessageTypeManagement, 14},
		{0x4, 0},
		{0xF, 0},
	}
	for _, tc := range tests {
		if got := ptp.BodyLen(tc.msgType); got != tc.want {
			t.Errorf("BodyLen(%#x) = %d, want %d", tc.msgType, got, tc.want)
		}
	}
}

func TestDopplerRoundTrip(t *testing.T) {
	vs := []ptp.TimeInterval{
		0, 1, -1,
		250 << 16, -(250 << 16),
		1<<47 - 1, -1 << 47,
	}
	for _, v := range vs {
		b := make([]byte, ptp.DopplerValueLen)
		ptp.EncodeDoppler(b, v)
		got, err := ptp.DecodeDoppler(b)
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Errorf("Doppler roundtrip failed for %d: got %d", v, got)
		}
	}
}

// Values beyond the 48-bit field range saturate to the field limits
// rather than wrapping.
func TestDopplerSaturation(t *testing.T) {
	tests := []struct {
		v    ptp.TimeInterval
		want ptp.TimeInterval
	}{
		{1 << 47, 1<<47 - 1},
		{math.MaxInt64, 1<<47 - 1},
		{-1<<47 - 1, -1 << 47},
		{math.MinInt64, -1 << 47},
	}
	for _, tc := range tests {
		b := make([]byte, ptp.DopplerValueLen)
		ptp.EncodeDoppler(b, tc.v)
		got, err := ptp.DecodeDoppler(b)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("EncodeDoppler(%d) decoded to %d, want %d", tc.v, got, tc.want)
		}
	}
}

func TestDecodeDopplerSignExtension(t *testing.T) {
	b := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	v, err := ptp.DecodeDoppler(b)
	if err != nil {
		t.Fatal(err)
	}
	if v != -1 {
		t.Errorf("got %d, want -1", v)
	}
}

func TestDecodeDopplerShortBuffer(t *testing.T) {
	_, err := ptp.DecodeDoppler(make([]byte, ptp.DopplerValueLen-1))
	if err == nil {
		t.Fail()
	}
}

func TestIntervalConversion(t *testing.T) {
	tests := []struct {
		d time.Duration
		i ptp.TimeInterval
	}{
		{0, 0},
		{time.Nanosecond, 1 << 16},
		{-time.Nanosecond, -1 << 16},
		{time.Microsecond, 1000 << 16},
	}
	for _, tc := range tests {
		if got := ptp.IntervalFromDuration(tc.d); got != tc.i {
			t.Errorf("IntervalFromDuration(%v) = %d, want %d", tc.d, got, tc.i)
		}
		if got := ptp.DurationFromInterval(tc.i); got != tc.d {
			t.Errorf("DurationFromInterval(%d) = %v, want %v", tc.i, got, tc.d)
		}
	}
}
