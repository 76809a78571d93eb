// Package types defines the data model shared by the pipeline and monitor
// binaries: sensor records flowing into the inference workers and the
// prediction records they append to the log.
//
// The prediction log is one JSON object per line:
//
//	{"unit": 3, "cycle": 41, "rul": 112.7}
//
// "cycle" is omitted by deployments running the simpler log variant.
// EncodeLine produces exactly one line per record so a single Write call is
// a whole-record append. ScanLog and ReadLogFile read the log back in order,
// skipping lines that cannot be decoded (a concurrent writer may leave a
// torn final line that the next rescan will see complete).
package types
