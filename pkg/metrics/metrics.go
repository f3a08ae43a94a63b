package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transport metrics
	FramesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcluster_frames_sent_total",
			Help: "Total number of frames sent, by destination peer worker id",
		},
		[]string{"peer"},
	)

	FramesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcluster_frames_received_total",
			Help: "Total number of frames received over inbound connections",
		},
		[]string{"peer"},
	)

	BytesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcluster_bytes_sent_total",
			Help: "Total number of payload bytes sent, by destination peer worker id",
		},
		[]string{"peer"},
	)

	BytesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcluster_bytes_received_total",
			Help: "Total number of payload bytes received over inbound connections",
		},
		[]string{"peer"},
	)

	SendDropsUnknownPeer = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "actorcluster_send_drops_unknown_peer_total",
			Help: "Total number of sends dropped because the target peer had no outbound connection",
		},
	)

	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "actorcluster_connections_active",
			Help: "Number of currently accepted inbound connections",
		},
	)

	// Directory metrics
	DirectoryEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "actorcluster_directory_entries",
			Help: "Number of entries currently registered in the directory",
		},
	)

	DirectoryLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actorcluster_directory_lookups_total",
			Help: "Total number of directory lookups, by hit or miss",
		},
		[]string{"result"},
	)

	DirectoryOverflows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "actorcluster_directory_overflows_total",
			Help: "Total number of registrations dropped because the directory table was full",
		},
	)

	// Node metrics
	SendsLocal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "actorcluster_sends_local_total",
			Help: "Total number of sends delivered to a locally-owned actor",
		},
	)

	SendsRemote = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "actorcluster_sends_remote_total",
			Help: "Total number of sends forwarded to a remote owner over transport",
		},
	)

	DeliveryDropsUnknownPath = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "actorcluster_delivery_drops_unknown_path_total",
			Help: "Total number of received envelopes dropped because the destination actor does not exist locally",
		},
	)

	RingLookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "actorcluster_ring_lookup_duration_seconds",
			Help:    "Time taken to resolve a path to a worker id via the ring",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		FramesSent,
		FramesReceived,
		BytesSent,
		BytesReceived,
		SendDropsUnknownPeer,
		ConnectionsActive,
		DirectoryEntries,
		DirectoryLookups,
		DirectoryOverflows,
		SendsLocal,
		SendsRemote,
		DeliveryDropsUnknownPath,
		RingLookupDuration,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
