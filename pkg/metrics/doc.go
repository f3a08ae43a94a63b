/*
Package metrics defines and registers the cluster runtime's Prometheus
metrics: transport frame/byte counters, directory size and lookup results,
and node send/delivery counters. All metrics register at package init and
are exposed over HTTP via Handler().

# Usage

	import "github.com/actorcluster/actorcluster/pkg/metrics"

	metrics.FramesSent.WithLabelValues("2").Inc()
	metrics.DirectoryLookups.WithLabelValues("hit").Inc()

	timer := metrics.NewTimer()
	owner := ring.NodeFor(path)
	timer.ObserveDuration(metrics.RingLookupDuration)

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
