// Package metrics defines interfaces for collecting guidance metrics.
// Sinks like PromSink and InfluxSink record decision outcomes and parking
// cost breakdowns and can be combined with NewMultiSink. The factory helpers
// return a MultiSink automatically when multiple sinks are configured.
package metrics
