// Package collect turns raw source loads into analyzed outcomes.
//
// Engine.Process runs the analysis pipeline on one source.Result and keeps a
// little per-source state between cycles: the recent load history (for the
// availability percentage) and, for sources with carry_forward enabled, the
// last observed record so absent prev_* fields can be filled in.
//
// Engine.Process accepts an injectable time.Time so tests are deterministic.
package collect
