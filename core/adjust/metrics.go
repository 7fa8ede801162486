package adjust

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/ptp-relay/base/metrics"
)

type pipelineMetrics struct {
	framesTotal    prometheus.Counter
	framesAdjusted prometheus.Counter
	adjustErrors   prometheus.Counter
	clonesEmitted  prometheus.Counter
}

func newPipelineMetrics() *pipelineMetrics {
	return &pipelineMetrics{
		framesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.PipelineFramesTotalN,
			Help: metrics.PipelineFramesTotalH,
		}),
		framesAdjusted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.PipelineFramesAdjustedN,
			Help: metrics.PipelineFramesAdjustedH,
		}),
		adjustErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.PipelineAdjustErrorsN,
			Help: metrics.PipelineAdjustErrorsH,
		}),
		clonesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.PipelineClonesEmittedN,
			Help: metrics.PipelineClonesEmittedH,
		}),
	}
}
