// Package analysis derives business-performance metrics and advisory reports
// from a single period record.
//
// The pipeline has three pure stages, called in order by Analyze:
//
//	Normalize(raw) -> Record     input adapter: coercion, defaults, validation
//	Compute(Record) -> Metrics   profit, percentage changes, CAC
//	Advise(Metrics) -> Report    loss, CAC-spike and growth rules
//
// Optional previous-period values are *float64: nil means "no data" and
// suppresses the matching change calculation, which is distinct from zero.
//
// Rule thresholds are fixed constants (CACSpikeThresholdPct, GrowthFloorPct).
// Nothing in this package keeps state between calls; every function is safe
// for concurrent use.
package analysis
