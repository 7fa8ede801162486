package adjust

import (
	"example.com/ptp-relay/net/ptp"
)

// twoStepBit is the twoStepFlag within the first flagField byte
// (flagField is big-endian on the wire).
const twoStepBit = byte(ptp.FlagTwoStep >> 8)

// patcher holds the replacement bytes latched for the duration of one
// frame and substitutes them into chunks as the matching windows
// stream past. Bytes outside the windows are never touched.
type patcher struct {
	corr [8]byte
	freq [ptp.DopplerValueLen]byte
}

func (p *patcher) setCorrection(v ptp.TimeInterval) {
	p.corr[0] = byte(uint64(v) >> 56)
	p.corr[1] = byte(uint64(v) >> 48)
	p.corr[2] = byte(uint64(v) >> 40)
	p.corr[3] = byte(uint64(v) >> 32)
	p.corr[4] = byte(uint64(v) >> 24)
	p.corr[5] = byte(uint64(v) >> 16)
	p.corr[6] = byte(uint64(v) >> 8)
	p.corr[7] = byte(uint64(v))
}

func (p *patcher) setDoppler(v ptp.TimeInterval) {
	ptp.EncodeDoppler(p.freq[:], v)
}

// patchCorrection substitutes the overlapping slice of the
// correctionField into the chunk.
func (p *patcher) patchCorrection(chunk []byte, w window) {
	copy(chunk[w.chunkOff:w.chunkOff+w.n], p.corr[w.fieldOff:w.fieldOff+w.n])
}

// patchDoppler substitutes the overlapping slice of the Doppler TLV
// value into the chunk.
func (p *patcher) patchDoppler(chunk []byte, w window) {
	copy(chunk[w.chunkOff:w.chunkOff+w.n], p.freq[w.fieldOff:w.fieldOff+w.n])
}

// setTwoStepFlag forces the twoStepFlag bit in the flagField byte.
func setTwoStepFlag(b byte, v bool) byte {
	if v {
		return b | twoStepBit
	}
	return b &^ twoStepBit
}

// setMessageType rewrites the messageType nibble, preserving the
// majorSdoId nibble.
func setMessageType(b byte, t uint8) byte {
	return (b & 0xF0) | (t & 0x0F)
}
