// Package ironbrain is the planning and validation engine of the training coach.
//
// Everything here is a pure function over in-memory snapshots: the load model (CTL, ATL, TSB),
// phase classification, readiness scoring, the injury prevention rules, season generation and the
// small sleep and recovery calculators. Nothing in the package performs I/O, so every function is
// safe for concurrent use and returns the same result for the same input.
package ironbrain
