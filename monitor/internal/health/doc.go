// Package health turns the prediction log into a per-engine health table.
//
// status.go maps a RUL value to Healthy / Minor / Major / Broken using
// configurable thresholds (defaults 100/50/20); boundaries are exclusive, so
// RUL exactly 100 is Minor and exactly 20 is Broken.
//
// fleet.go provides Rescan, which reads the whole log from the start on every
// poll and keeps, per engine, the latest record and the RUL of the record
// before it. ΔRUL is latest minus previous, or 0 for an engine seen once.
//
// tracker.go provides Tracker for the alternative "poll" delta mode, where
// ΔRUL compares with the value shown at the previous poll instead.
package health
