// Package source reads turbofan run-to-failure telemetry.
//
// Rows follow a fixed schema: unit_number, time_in_cycles, three operational
// settings and 21 sensor measurements, optionally followed by two ignorable
// trailing columns. Any other shape is a *FormatError and aborts the run
// before dispatch.
//
// Labels: TrainingLabels caps remaining cycles at a configurable ceiling;
// TestLabels aligns the ground-truth file (one value per engine, ascending
// engine order) to each test engine's last recorded cycle.
//
// Records turns a Table into per-engine ordered SensorRecord streams, the
// input of the dispatch loop.
package source
