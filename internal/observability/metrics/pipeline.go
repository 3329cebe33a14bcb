package metrics

import (
	"time"

	"github.com/datareveal/docverse/internal/core/domain"
)

// PipelineObserver binds the engine's stage telemetry to one service's
// metric label. It satisfies the engine's stage-observer contract.
type PipelineObserver struct {
	metrics *QueryMetrics
	service string
}

func (m *QueryMetrics) PipelineObserver(service string) *PipelineObserver {
	return &PipelineObserver{metrics: m, service: service}
}

func (o *PipelineObserver) ObserveStage(stage string, duration time.Duration) {
	o.metrics.stageDuration.WithLabelValues(o.service, stage).Observe(duration.Seconds())
}

func (o *PipelineObserver) PartialFailure(source string) {
	o.metrics.partialFailureTotal.WithLabelValues(o.service, source).Inc()
}

func (o *PipelineObserver) DegradedAnswer() {
	o.metrics.degradedTotal.Inc()
}

// RecordSourcesUsed counts which retrieval paths contributed to an answer.
func (m *QueryMetrics) RecordSourcesUsed(service string, sources domain.SourcesUsed) {
	if sources.Metadata {
		m.sourcesUsedTotal.WithLabelValues(service, "metadata").Inc()
	}
	if sources.Semantic {
		m.sourcesUsedTotal.WithLabelValues(service, "semantic").Inc()
	}
}

// RecordIndexEvent tracks document-indexed events for staleness monitoring.
func (m *QueryMetrics) RecordIndexEvent(_ string, indexedAt time.Time) {
	m.indexEventsTotal.Inc()
	if !indexedAt.IsZero() {
		m.indexLastTimestamp.Set(float64(indexedAt.Unix()))
	}
}
