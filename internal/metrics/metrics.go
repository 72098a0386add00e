package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MediaDetected counts accepted detections by channel.
	MediaDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "umd_media_detected_total",
		Help: "Total number of media resources accepted into the registry",
	}, []string{"channel"})

	// MediaRejected counts insert attempts that were turned away.
	MediaRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "umd_media_rejected_total",
		Help: "Total number of rejected insert attempts",
	}, []string{"reason"})

	// RegistrySize tracks the number of resources currently held.
	RegistrySize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "umd_registry_size",
		Help: "Number of media resources currently in the registry",
	})

	// Downloads counts finished download operations by result.
	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "umd_downloads_total",
		Help: "Total number of finished download operations",
	}, []string{"result"})

	// SegmentFailures counts individual segment fetches that were dropped.
	SegmentFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "umd_segment_failures_total",
		Help: "Total number of dropped segment fetches",
	})

	// ProbeFailures counts size probes that could not resolve a size.
	ProbeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "umd_probe_failures_total",
		Help: "Total number of failed size probes",
	})
)

// Rejection reasons used with MediaRejected.
const (
	ReasonNotMedia  = "not_media"
	ReasonDuplicate = "duplicate"
	ReasonBadURL    = "bad_url"
)

// Download results used with Downloads.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
)
