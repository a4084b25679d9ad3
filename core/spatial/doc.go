// Package spatial defines the contract of the geospatial, travel-time and
// history data store consumed by the advisor, together with the typed
// result used to turn failed or slow calls into explicit fallbacks.
package spatial
