package adjust

import (
	"example.com/ptp-relay/net/ptp"
)

// Adjuster is the single-frame streaming core. It consumes a frame as
// a sequence of transfers of arbitrary chunk size, emits each chunk
// with the patchable fields rewritten, and reports the clone record,
// if any, together with the final chunk.
//
// The zero value is an idle Adjuster. A frame begins with the first
// transfer passed to Next and ends with the transfer whose Last flag
// is set; metadata is latched at the first transfer and held for the
// frame's duration. No state persists across frames.
type Adjuster struct {
	loc locator
	pat patcher

	inFrame bool
	cursor  int
	meta    Metadata
	adj     adjustment

	typeKnown  bool
	msgType    uint8
	adjustable bool

	cloneType      uint8
	cloneScheduled bool

	frameErr bool
}

// Reset forcibly returns the Adjuster to idle, discarding any
// partially streamed frame.
func (a *Adjuster) Reset() {
	*a = Adjuster{}
}

func (a *Adjuster) start(meta Metadata) {
	if meta.MsgPos < 0 && meta.MsgPos != PosNone {
		panic("invalid argument: negative message position")
	}
	if meta.TlvPos < 0 && meta.TlvPos != PosNone {
		panic("invalid argument: negative TLV position")
	}
	a.meta = meta
	a.loc.init(&meta)
	a.adj = computeAdjustment(&meta)
	a.pat.setCorrection(a.adj.correction)
	a.pat.setDoppler(a.adj.doppler)
	a.inFrame = true
	a.cursor = 0
	a.typeKnown = false
	a.msgType = 0
	a.adjustable = false
	a.cloneScheduled = false
	a.cloneType = 0
	a.frameErr = false
}

// Next processes one transfer. The returned transfer holds a patched
// copy of the input chunk; the input is never modified. The clone
// record is non-nil only on the final transfer of a frame that
// requires two-step conversion.
func (a *Adjuster) Next(t Transfer) (Transfer, *CloneRecord) {
	if !a.inFrame {
		a.start(t.Meta)
	}

	out := Transfer{
		Data: append([]byte(nil), t.Data...),
		Last: t.Last,
	}
	pos, n := a.cursor, len(t.Data)
	data := out.Data

	// Stream order guarantees causality: the messageType byte
	// precedes the flagField byte, which precedes the
	// correctionField, which precedes any trailing TLV.
	if w, ok := a.loc.typeByte(pos, n); ok {
		a.msgType = data[w.chunkOff] & 0x0F
		a.typeKnown = true
		a.adjustable = ptp.Adjustable(a.msgType)
	}
	if w, ok := a.loc.flagByte(pos, n); ok && a.adjustable {
		twoStep := data[w.chunkOff]&twoStepBit != 0
		if ct, clone := cloneDecision(a.msgType, twoStep, a.meta.TwoStepMask); clone {
			a.cloneType = ct
			a.cloneScheduled = true
			// The generated companion must be announced, or the
			// receiver would apply the correction twice.
			data[w.chunkOff] = setTwoStepFlag(data[w.chunkOff], true)
		}
	}
	if w, ok := a.loc.correction(pos, n); ok && a.adjustable {
		a.pat.patchCorrection(data, w)
		if a.adj.correctionErr {
			a.frameErr = true
		}
	}
	if w, ok := a.loc.doppler(pos, n); ok && a.adjustable {
		a.pat.patchDoppler(data, w)
		if a.adj.dopplerErr {
			a.frameErr = true
		}
	}
	a.cursor += n

	var rec *CloneRecord
	if t.Last {
		out.Error = a.frameErr
		if a.cloneScheduled {
			rec = &CloneRecord{
				DstMask: a.meta.TwoStepMask,
				MsgType: a.cloneType,
				Meta: Metadata{
					MsgPos:  PosNone,
					TlvPos:  PosNone,
					VlanTag: a.meta.VlanTag,
				},
			}
		}
		a.inFrame = false
	}
	return out, rec
}

// AdjustFrame runs a whole frame through an Adjuster in one transfer.
// It returns the adjusted frame, the clone record if the frame
// requires two-step conversion, and the frame error flag.
func AdjustFrame(meta Metadata, frame []byte) ([]byte, *CloneRecord, bool) {
	var a Adjuster
	out, rec := a.Next(Transfer{Data: frame, Last: true, Meta: meta})
	return out.Data, rec, out.Error
}

// CloneFrame synthesizes the two-step companion frame announced by a
// clone record: a copy of the adjusted frame with the messageType
// nibble rewritten and the twoStepFlag cleared. The caller owns any
// further body rewrites.
func CloneFrame(frame []byte, meta Metadata, rec *CloneRecord) []byte {
	if meta.MsgPos == PosNone || meta.MsgPos+ptp.OffsetFlagField >= len(frame) {
		panic("invalid argument: frame carries no PTP header")
	}
	out := append([]byte(nil), frame...)
	i := meta.MsgPos + ptp.OffsetMessageType
	out[i] = setMessageType(out[i], rec.MsgType)
	i = meta.MsgPos + ptp.OffsetFlagField
	out[i] = setTwoStepFlag(out[i], false)
	return out
}
