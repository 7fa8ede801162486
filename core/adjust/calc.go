package adjust

import (
	"example.com/ptp-relay/net/ptp"
)

// adjustment holds the replacement values computed once per frame from
// the latched metadata. An unavailable input degrades only its own
// field: it is written as zero and flags the frame as erroneous.
type adjustment struct {
	correction    ptp.TimeInterval
	correctionErr bool
	doppler       ptp.TimeInterval
	dopplerErr    bool
}

// computeAdjustment derives the replacement field values. The new
// correctionField is RefTime + LocalTime in subns, wrapping per the
// field's modular arithmetic. The Doppler value is the precomputed
// frequency correction.
func computeAdjustment(meta *Metadata) adjustment {
	var a adjustment
	if meta.RefTime.Valid && meta.LocalTime.Valid {
		a.correction = meta.RefTime.Value + meta.LocalTime.Value
	} else {
		a.correctionErr = true
	}
	if meta.FreqOffset.Valid {
		a.doppler = meta.FreqOffset.Value
	} else {
		a.dopplerErr = true
	}
	return a
}

// cloneDecision decides whether a frame of the given received message
// type and twoStepFlag state requires a generated two-step companion,
// and with which message type. A sender that already set the
// twoStepFlag delivers its own Follow_Up, so no clone is generated.
func cloneDecision(msgType uint8, twoStep bool, mask PortMask) (uint8, bool) {
	if twoStep || mask.Empty() {
		return 0, false
	}
	if !ptp.Adjustable(msgType) {
		return 0, false
	}
	return ptp.FollowUpType(msgType)
}
