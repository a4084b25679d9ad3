// Package simfeed describes the read-only view of the traffic simulator the
// advisor polls for every decision, and the stop reservation the guidance
// loop issues once parking areas have been ranked.
package simfeed
