package metrics

const (
	PipelineFramesTotalH    = "The total number of frames accepted by the adjustment pipeline"
	PipelineFramesTotalN    = "ptprelay_pipeline_frames_total"
	PipelineFramesAdjustedH = "The total number of frames with at least one rewritten PTP field"
	PipelineFramesAdjustedN = "ptprelay_pipeline_frames_adjusted"
	PipelineAdjustErrorsH   = "The total number of frames flagged with an adjustment error"
	PipelineAdjustErrorsN   = "ptprelay_pipeline_adjust_errors"
	PipelineClonesEmittedH  = "The total number of two-step clone records emitted"
	PipelineClonesEmittedN  = "ptprelay_pipeline_clones_emitted"

	RelayPktsReceivedH  = "The total number of packets received by the relay"
	RelayPktsReceivedN  = "ptprelay_relay_pkts_received"
	RelayPktsForwardedH = "The total number of packets forwarded by the relay"
	RelayPktsForwardedN = "ptprelay_relay_pkts_forwarded"
	RelayPktsDroppedH   = "The total number of packets dropped by the relay"
	RelayPktsDroppedN   = "ptprelay_relay_pkts_dropped"
)
