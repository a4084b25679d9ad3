// Package weights holds the contextual weight-level table. Each factor owns
// levels ordered by upper threshold; a scalar value selects the first level
// whose threshold is greater than or equal to it. Values above every
// threshold are clamped to the highest level.
package weights
