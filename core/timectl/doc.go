// Package timectl converts simulation time to global and week-relative time.
// The start time is fixed when a Clock is built, either from a checkpoint
// file or from explicit week/day/time-of-day arguments. Only the current
// simulation time advances afterwards.
package timectl
