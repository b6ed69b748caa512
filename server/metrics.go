package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fablecast"

var (
	// jobsTotal counts finished jobs by outcome.
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of finished production jobs",
		},
		[]string{"status"}, // status: done, failed
	)

	// jobsActive gauges jobs currently queued or rendering.
	jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Number of jobs queued or running",
		},
	)

	// jobDuration is a histogram of whole-job wall time.
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Histogram of production job duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	// stageEvents counts pipeline progress events by stage.
	stageEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_events_total",
			Help:      "Total pipeline progress events by stage",
		},
		[]string{"stage"},
	)

	// cacheBytes gauges the synthesis cache footprint per level.
	cacheBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_bytes",
			Help:      "Synthesis cache size in bytes",
		},
		[]string{"level"}, // level: memory, disk
	)
)

var allMetrics = []prometheus.Collector{
	jobsTotal,
	jobsActive,
	jobDuration,
	stageEvents,
	cacheBytes,
}

func init() {
	for _, c := range allMetrics {
		prometheus.MustRegister(c)
	}
}

// RecordJobStart marks a job entering the queue.
func RecordJobStart() {
	jobsActive.Inc()
}

// RecordJobEnd marks a job leaving the system.
func RecordJobEnd(status string, elapsed time.Duration) {
	jobsActive.Dec()
	jobsTotal.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// RecordStageEvent counts one progress event.
func RecordStageEvent(stage string) {
	stageEvents.WithLabelValues(stage).Inc()
}

// RecordCacheBytes publishes cache level sizes.
func RecordCacheBytes(memory, disk int64) {
	cacheBytes.WithLabelValues("memory").Set(float64(memory))
	cacheBytes.WithLabelValues("disk").Set(float64(disk))
}
