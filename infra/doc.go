// Package infra contains technical adapters such as the MQTT simulator
// feed, spatial providers and metrics exporters. These packages should
// depend only on the interfaces defined in the core packages.
package infra
