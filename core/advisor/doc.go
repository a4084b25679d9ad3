// Package advisor implements the guidance decision engine.
//
// SuggestTargets fuses four independent signal sources (nearby buildings,
// calendar entries, visit history and recurring weekly patterns) into a
// ranked list of probable destinations. BlendWeights derives a contextual
// weight triple from weather, global parking availability, time to the next
// relevant event and air quality. PickParkingAreas scores the parking areas
// around a destination with those weights and returns the cheapest ones.
//
// Every call to the data provider or the simulator feed is bounded by
// Params.CallTimeout and resolves to a documented fallback on failure, so a
// decision always produces a (possibly degraded) result. The estimated
// arrival cache lives inside a single Suggestion and is never shared with
// another decision.
package advisor
