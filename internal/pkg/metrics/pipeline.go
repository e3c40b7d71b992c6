package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PipelineMetrics struct {
	CommittedHeight prometheus.Gauge
	CommittedTotal  prometheus.Counter
	DuplicatesTotal prometheus.Counter
	BlockToCommitMS prometheus.Histogram
}

var (
	pipelineOnce sync.Once
	pipeline     *PipelineMetrics
)

func Pipeline() *PipelineMetrics {
	pipelineOnce.Do(func() {
		r := Registerer()
		pipeline = &PipelineMetrics{
			CommittedHeight: promauto.With(r).NewGauge(prometheus.GaugeOpts{
				Name: "pipeline_checkpoint_height",
				Help: "last block height written to the checkpoint",
			}),
			CommittedTotal: promauto.With(r).NewCounter(prometheus.CounterOpts{
				Name: "pipeline_committed_blocks_total",
				Help: "blocks published and checkpointed",
			}),
			DuplicatesTotal: promauto.With(r).NewCounter(prometheus.CounterOpts{
				Name: "pipeline_duplicate_blocks_total",
				Help: "blocks at or below the checkpoint that were not republished",
			}),
			BlockToCommitMS: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
				Name:    "pipeline_block_to_commit_ms",
				Help:    "latency from block delivery to checkpoint write (ms)",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
			}),
		}
	})
	return pipeline
}
