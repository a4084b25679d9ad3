// Package events defines the guidance events emitted on the event bus.
//
// Available event types:
//   - Decision: outcome of guiding one vehicle
//   - Step: summary of one simulation step
package events
