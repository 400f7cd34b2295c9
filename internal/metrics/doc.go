// Package metrics collects redirect metrics for the link rotator.
//
// Events flow through a buffered channel into a collector goroutine, so the
// request path never blocks on metrics. The collector keeps an in-memory
// snapshot for the /stats endpoint and mirrors every event into Prometheus
// series served on /metrics:
//   - redirects served, per destination
//   - fallbacks by reason
//   - resolve latency with percentiles (P50, P95, P99)
//   - cache refreshes and store loads
//   - bot placeholder hits
//
// Example usage:
//
//	prom := metrics.NewPrometheus("link_rotator")
//	collector := metrics.NewCollector(1000, logger, prom)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:        metrics.EventRedirectServed,
//		Destination: "https://shop.test/item",
//		Duration:    2 * time.Millisecond,
//	})
//
//	snapshot := collector.Snapshot("sequential")
package metrics
